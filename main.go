package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/olahammed103/Digital-receipt-invoice/internal/config"
	"github.com/olahammed103/Digital-receipt-invoice/internal/export"
	"github.com/olahammed103/Digital-receipt-invoice/internal/sales"
)

// cli commands / args available
var cli struct {
	Config config.Config `embed:""`

	Serve  serveCmd  `cmd:"" default:"1" help:"Run the HTTP API (default)."`
	Export exportCmd `cmd:"" help:"Write the whole ledger to a CSV or XLSX file."`
}

// app holds what every command needs once the config is parsed.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	storage  sales.Storage
	location *time.Location
}

func newApp(cfg *config.Config) (*app, error) {
	logger, err := cfg.Logger()
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	storage, err := sales.OpenStorage(cfg.DSN, logger)
	if err != nil {
		return nil, err
	}
	if err := storage.Init(context.Background()); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	return &app{cfg: cfg, logger: logger, storage: storage, location: loc}, nil
}

func (a *app) exporter() *export.Exporter {
	return export.NewExporter(a.storage, a.cfg.Business(), a.logger,
		export.WithLocation(a.location),
		export.WithCanvas(a.cfg.Canvas()),
	)
}

func (a *app) close() {
	if err := a.storage.Close(); err != nil {
		a.logger.Warn("failed to close storage", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := kong.Parse(&cli,
		kong.Name("ledger"),
		kong.Description("Digital receipt and invoice ledger."),
		kong.UsageOnError(),
	)

	a, err := newApp(&cli.Config)
	ctx.FatalIfErrorf(err)

	err = ctx.Run(a)
	a.close()
	ctx.FatalIfErrorf(err)
}
