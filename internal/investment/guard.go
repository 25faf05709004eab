package investment

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/lpinvest/internal/domain"
)

// authorize gates every mutating entry point: caller must own account and account must be unlocked.
func (m *Manager) authorize(ctx context.Context, account, caller common.Address) error {
	owner, err := m.guard.IsOwner(ctx, account, caller)
	if err != nil {
		return errors.Wrap(err, "failed to check account owner")
	}
	if !owner {
		return errors.Wrapf(domain.ErrNotOwner, "caller %s, account %s", caller.Hex(), account.Hex())
	}

	locked, err := m.guard.IsLocked(ctx, account)
	if err != nil {
		return errors.Wrap(err, "failed to check account lock")
	}
	if locked {
		return errors.Wrapf(domain.ErrAccountLocked, "account %s", account.Hex())
	}
	return nil
}
