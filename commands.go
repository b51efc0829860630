package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/olahammed103/Digital-receipt-invoice/api"
	"github.com/olahammed103/Digital-receipt-invoice/internal/export"
	"github.com/olahammed103/Digital-receipt-invoice/internal/sales"
)

const shutdownTimeout = 5 * time.Second

type serveCmd struct {
	Addr string `help:"HTTP listen address." default:":8081" env:"LEDGER_ADDR"`
}

func (s *serveCmd) Run(a *app) error {
	var opts []sales.Option
	if p := a.cfg.Publisher(a.logger); p != nil {
		defer p.Close()
		opts = append(opts, sales.WithNotifier(p))
		a.logger.Info("publishing transaction events",
			zap.Strings("brokers", a.cfg.KafkaBrokers),
			zap.String("topic", a.cfg.KafkaTopic))
	}

	if !a.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Deps{
		Sales:    sales.NewService(a.storage, a.logger, opts...),
		Reports:  sales.NewReportService(a.storage, a.logger, sales.WithLocation(a.location)),
		Exporter: a.exporter(),
		Logger:   a.logger,
	})

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	a.logger.Info("server listening", zap.String("addr", s.Addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("error trying to start server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type exportCmd struct {
	Format string `help:"Table format." default:"csv" enum:"csv,xlsx,excel"`
	Out    string `help:"Output file. Defaults to transactions.<format> in the working directory."`
}

func (e *exportCmd) Run(a *app) error {
	format, err := export.ParseFormat(e.Format)
	if err != nil {
		return err
	}
	out := e.Out
	if out == "" {
		out = format.Filename()
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := a.exporter().Table(context.Background(), format, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	a.logger.Info("ledger exported", zap.String("format", string(format)), zap.String("path", out))
	return nil
}
