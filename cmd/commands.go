package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/lpinvest/internal/app"
	"github.com/vadiminshakov/lpinvest/internal/domain"
	"github.com/vadiminshakov/lpinvest/internal/events"
	"github.com/vadiminshakov/lpinvest/internal/web"
)

const usage = `usage: lpinvest [flags] <command>

commands:
  add <token> <amount> [period]   deposit amount of token into its pool
  remove <token> <fraction>       withdraw fraction (basis points, 10000 = all) of the pool shares
  get <token>                     value of the position in token units
  portfolio                       values of all configured tokens
  serve                           run the web server
  setup [path]                    run the configuration wizard`

func run(ctx context.Context, l *zap.Logger, a *app.App, args []string, out io.Writer) error {
	switch args[0] {
	case "add":
		return runAdd(ctx, a, args[1:], out)
	case "remove":
		return runRemove(ctx, a, args[1:], out)
	case "get":
		return runGet(ctx, a, args[1:], out)
	case "portfolio":
		return runPortfolio(ctx, a, out)
	case "serve":
		return runServe(ctx, l, a)
	default:
		return errors.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func runAdd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: add <token> <amount> [period]")
	}
	token, err := a.Config.Token(args[0])
	if err != nil {
		return err
	}
	amount, err := domain.ParseAmount(args[1], token.Decimals)
	if err != nil {
		return err
	}
	var period uint64
	if len(args) == 3 {
		if period, err = parsePeriod(args[2]); err != nil {
			return err
		}
	}

	invested, err := a.Manager.AddInvestment(ctx, a.Caller, domain.InvestmentRequest{
		Account: a.Config.Account,
		Token:   token.Address,
		Amount:  amount,
		Period:  period,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "deposited %s %s, invested value %s %s\n",
		domain.FormatAmount(amount, token.Decimals), token.Symbol,
		domain.FormatAmount(invested, token.Decimals), token.Symbol)
	return nil
}

func runRemove(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) != 2 {
		return errors.New("usage: remove <token> <fraction>")
	}
	token, err := a.Config.Token(args[0])
	if err != nil {
		return err
	}
	fraction, err := parseFraction(args[1])
	if err != nil {
		return err
	}

	err = a.Manager.RemoveInvestment(ctx, a.Caller, domain.WithdrawalRequest{
		Account:  a.Config.Account,
		Token:    token.Address,
		Fraction: fraction,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "withdrew %s%% of %s pool shares\n", strconv.FormatFloat(float64(fraction)/100, 'f', -1, 64), token.Symbol)
	return nil
}

func runGet(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: get <token>")
	}
	token, err := a.Config.Token(args[0])
	if err != nil {
		return err
	}

	value, periodEnd, err := a.Manager.GetInvestment(ctx, a.Config.Account, token.Address)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s (period end %d)\n", domain.FormatAmount(value, token.Decimals), token.Symbol, periodEnd)
	return nil
}

func runPortfolio(ctx context.Context, a *app.App, out io.Writer) error {
	investments, err := a.Manager.Portfolio(ctx, a.Config.Account, a.Config.TokenAddresses())
	if err != nil {
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TOKEN", "POOL", "SHARES", "VALUE")
	for _, inv := range investments {
		token, err := a.Config.Token(inv.Token.Hex())
		if err != nil {
			return err
		}
		t.Row(token.Symbol, inv.Pool.Hex(), inv.Shares.Dec(), domain.FormatAmount(inv.TokenValue, token.Decimals))
	}

	_, err = fmt.Fprintln(out, t.Render())
	return err
}

func runServe(ctx context.Context, l *zap.Logger, a *app.App) error {
	server := web.NewServer(l, a.Config.WebAddr, a.Manager, a.Journal)
	server.Live = a.Publisher.Broadcaster()
	server.Metrics = a.Metrics.Handler()
	server.Decimals = a.Config.Decimals()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(a.Config.TLSDomains) > 0 {
			return server.StartWithAutoTLS(ctx, a.Config.TLSDomains, a.Config.CertCacheDir)
		}
		return server.Start(ctx)
	})
	g.Go(func() error {
		logEvents(ctx, l, a.Publisher.Broadcaster())
		return nil
	})

	return g.Wait()
}

// logEvents writes published events to the log until ctx is done.
func logEvents(ctx context.Context, l *zap.Logger, b *events.Broadcaster) {
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			l.Info("investment event",
				zap.Uint64("index", rec.Index),
				zap.String("kind", string(rec.Event.Kind)),
				zap.String("account", rec.Event.Account().Hex()))
		}
	}
}

func parseFraction(raw string) (uint16, error) {
	v, err := strconv.ParseUint(raw, 10, 16)
	if err != nil || v > domain.MaxFraction {
		return 0, errors.Wrapf(domain.ErrInvalidFraction, "fraction %q", raw)
	}
	return uint16(v), nil
}

func parsePeriod(raw string) (uint64, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid period %q", raw)
	}
	return v, nil
}
