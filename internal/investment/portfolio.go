package investment

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/lpinvest/internal/domain"
)

// maxConcurrentValuations bounds parallel reads against the chain.
const maxConcurrentValuations = 8

// Portfolio values the positions of account in the pools of tokens concurrently.
// Tokens without a pool or with an empty one are skipped; the result keeps the order of tokens.
func (m *Manager) Portfolio(ctx context.Context, account common.Address, tokens []common.Address) ([]domain.Investment, error) {
	results := make([]*domain.Investment, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentValuations)
	for i, token := range tokens {
		g.Go(func() error {
			inv, err := m.Describe(gctx, account, token)
			if err != nil {
				if errors.Is(err, domain.ErrPoolNotFound) || errors.Is(err, domain.ErrPoolEmpty) {
					m.l.Debug("no position to value, skipping", zap.String("token", token.Hex()), zap.Error(err))
					return nil
				}
				return errors.Wrapf(err, "failed to value %s", token.Hex())
			}
			results[i] = inv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	portfolio := make([]domain.Investment, 0, len(tokens))
	for _, inv := range results {
		if inv != nil {
			portfolio = append(portfolio, *inv)
		}
	}
	return portfolio, nil
}
