package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tutorgrid/internal/adapter/httpapi"
	"tutorgrid/internal/infra/config"
	"tutorgrid/internal/infra/logger"
	"tutorgrid/internal/infra/tracer"
)

const shutdownTimeout = 10 * time.Second

// app holds the process-wide ambient stack.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func(context.Context) error
}

func bootstrap(ctx context.Context, service string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := logger.New(cfg.Logger, service)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer, service)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: log,
		closers: []func(context.Context) error{
			shutdownTracer,
			func(context.Context) error { return closeLog() },
		},
	}, nil
}

// onClose registers fn to run at shutdown, before previously registered ones.
func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append([]func(context.Context) error{fn}, a.closers...)
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for _, fn := range a.closers {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("cleanup failed", "error", err)
	}
}

// serve runs srv until ctx is done, then shuts it down. In-flight requests
// keep their contexts through the shutdown grace period.
func (a *app) serve(ctx context.Context, srv *httpapi.Server) error {
	if err := srv.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	<-ctx.Done()
	a.logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(stopCtx)
}
