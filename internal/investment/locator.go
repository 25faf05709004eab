package investment

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/lpinvest/internal/domain"
)

// locatePool resolves the pool for token and fails with domain.ErrPoolNotFound when there is none.
func (m *Manager) locatePool(ctx context.Context, token common.Address) (common.Address, error) {
	if domain.AssetFromAddress(token).IsNative() {
		return common.Address{}, errors.Wrap(domain.ErrPoolNotFound, "native asset is not tradable against itself")
	}
	pool, err := m.registry.Locate(ctx, token)
	if err != nil {
		return common.Address{}, errors.Wrapf(err, "failed to locate pool for %s", token.Hex())
	}
	if pool == (common.Address{}) {
		return common.Address{}, errors.Wrapf(domain.ErrPoolNotFound, "token %s", token.Hex())
	}
	return pool, nil
}
