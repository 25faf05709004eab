package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// EventKind discriminates investment events.
type EventKind string

const (
	EventInvestmentAdded   EventKind = "investment_added"
	EventInvestmentRemoved EventKind = "investment_removed"
)

// InvestmentAdded is emitted after a successful deposit.
type InvestmentAdded struct {
	Account common.Address `json:"account"`
	Token   common.Address `json:"token"`
	Amount  *uint256.Int   `json:"amount"`
	Period  uint64         `json:"period"`
}

// InvestmentRemoved is emitted after a successful withdrawal.
type InvestmentRemoved struct {
	Account  common.Address `json:"account"`
	Token    common.Address `json:"token"`
	Fraction uint16         `json:"fraction"`
}

// Event envelope persisted in the journal and fanned out to subscribers.
// Exactly one of Added and Removed is set, matching Kind.
type Event struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"ts"`
	Kind      EventKind          `json:"kind"`
	Added     *InvestmentAdded   `json:"added,omitempty"`
	Removed   *InvestmentRemoved `json:"removed,omitempty"`
}

// NewInvestmentAddedEvent wraps e into an envelope.
func NewInvestmentAddedEvent(ts time.Time, e InvestmentAdded) Event {
	return Event{ID: uuid.New().String(), Timestamp: ts, Kind: EventInvestmentAdded, Added: &e}
}

// NewInvestmentRemovedEvent wraps e into an envelope.
func NewInvestmentRemovedEvent(ts time.Time, e InvestmentRemoved) Event {
	return Event{ID: uuid.New().String(), Timestamp: ts, Kind: EventInvestmentRemoved, Removed: &e}
}

// Account returns the account the event refers to.
func (e Event) Account() common.Address {
	switch {
	case e.Added != nil:
		return e.Added.Account
	case e.Removed != nil:
		return e.Removed.Account
	default:
		return common.Address{}
	}
}

// EventRecord bundles an event with its journal index.
type EventRecord struct {
	Index uint64
	Event Event
}
