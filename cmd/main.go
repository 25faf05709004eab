// Command lpinvest deposits idle tokens of a custodial account into token/native liquidity pools,
// withdraws them and reports position values.
//
// Usage:
//
//	lpinvest setup [path]
//	lpinvest --config config.yaml add <token> <amount> [period]
//	lpinvest --config config.yaml remove <token> <fraction-bps>
//	lpinvest --config config.yaml get <token>
//	lpinvest --config config.yaml portfolio
//	lpinvest --config config.yaml serve
//
// Required environment variables for the evm network:
//
//	LPINVEST_PRIVATE_KEY (or the variable named by private_key_env)
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/lpinvest/config"
	"github.com/vadiminshakov/lpinvest/internal/app"
	"github.com/vadiminshakov/lpinvest/internal/setup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		path := setup.DefaultConfigFile
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		if err := setup.RunTUI(path); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg, args, err := config.Get(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if len(args) == 0 {
		log.Fatal(usage)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.Close()

	if err := run(ctx, logger, a, args, os.Stdout); err != nil {
		logger.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		a.Close()
		logger.Sync()
		os.Exit(1)
	}
}
