// Package journal keeps an append-only log of investment events in a WAL.
package journal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/lpinvest/internal/domain"
)

const (
	DefaultDir   = "./wal/events"
	segmentLimit = 100
	maxSegments  = 10

	eventKeyPrefix = "investment_"
)

// segmentLog is the part of gowal.Wal the journal uses.
type segmentLog interface {
	Write(index uint64, key string, value []byte) error
	Get(index uint64) (string, []byte, error)
	CurrentIndex() uint64
	Close() error
}

// WALStore persists investment events in a WAL.
type WALStore struct {
	wal segmentLog
	mu  sync.RWMutex

	// lowest index that may still be readable; segments are evicted oldest first.
	first atomic.Uint64
}

// NewWALStore initializes a WAL-backed event journal.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "event_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init event WAL")
	}

	return newStore(wal), nil
}

func newStore(wal segmentLog) *WALStore {
	s := &WALStore{wal: wal}
	s.first.Store(1)
	return s
}

// Save appends event to the journal and returns its index.
func (s *WALStore) Save(event domain.Event) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errors.New("event journal is not initialized")
	}
	if event.Added == nil && event.Removed == nil {
		return 0, errors.Errorf("event %s has no payload", event.ID)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return 0, errors.Wrap(err, "marshal investment event")
	}

	key := fmt.Sprintf("%s%s_%s", eventKeyPrefix, event.Kind, event.Account().Hex())

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return 0, errors.Wrap(err, "write investment event")
	}
	return nextIndex, nil
}

// EventsAfter returns all events written after the provided WAL index.
func (s *WALStore) EventsAfter(index uint64) ([]domain.EventRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("event journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	start := max(index+1, s.first.Load())
	if start > current {
		return nil, nil
	}

	records := make([]domain.EventRecord, 0, current-start+1)
	evicted := true
	for idx := start; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			if evicted {
				s.raiseFirst(idx + 1)
			}
			continue
		}
		evicted = false
		if !strings.HasPrefix(key, eventKeyPrefix) {
			continue
		}

		var event domain.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errors.Wrapf(err, "decode investment event %d", idx)
		}
		records = append(records, domain.EventRecord{Index: idx, Event: event})
	}

	return records, nil
}

func (s *WALStore) raiseFirst(idx uint64) {
	for {
		cur := s.first.Load()
		if idx <= cur || s.first.CompareAndSwap(cur, idx) {
			return
		}
	}
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("event journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
