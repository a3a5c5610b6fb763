package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/devloop/internal/config"
	"github.com/conneroisu/devloop/internal/logging"
	"github.com/conneroisu/devloop/internal/monitoring"
	"github.com/conneroisu/devloop/internal/notify"
)

// services bundles the ambient services every long-running command shares.
type services struct {
	cfg      *config.Config
	logger   *logging.DevLogger
	notifier notify.Notifier
	metrics  *monitoring.Metrics
}

func newServices(cmd *cobra.Command) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	out := cmd.OutOrStdout()
	return &services{
		cfg:      cfg,
		logger:   logger,
		notifier: notify.NewTerminal(out, !isTerminal(out)),
		metrics:  monitoring.NewMetrics(),
	}, nil
}

func newLogger(cfg *config.Config, out io.Writer) (*logging.DevLogger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: out,
	}), nil
}

// serveMetrics exposes the Prometheus registry when an address is configured.
func (r *services) serveMetrics(ctx context.Context) {
	if r.cfg.Metrics.Addr == "" {
		return
	}
	go func() {
		if err := r.metrics.Serve(ctx, r.cfg.Metrics.Addr, r.logger); err != nil {
			r.logger.Warn(ctx, err, "Metrics endpoint stopped", "addr", r.cfg.Metrics.Addr)
		}
	}()
}

// interruptContext is cancelled on SIGINT or SIGTERM.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
