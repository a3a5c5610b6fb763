// Package supervisor runs the build, serve, reload and watch cycle until the
// process is interrupted.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/devloop/internal/build"
	"github.com/conneroisu/devloop/internal/errors"
	"github.com/conneroisu/devloop/internal/logging"
	"github.com/conneroisu/devloop/internal/monitoring"
	"github.com/conneroisu/devloop/internal/notify"
	"github.com/conneroisu/devloop/internal/server"
	"github.com/conneroisu/devloop/internal/watcher"
)

// DefaultPage is the document the browser is pointed at after each build.
const DefaultPage = "index.html"

// shutdownTimeout bounds how long teardown waits for in-flight requests.
const shutdownTimeout = 5 * time.Second

// Builder produces the directory to serve.
type Builder interface {
	Execute(ctx context.Context) (*build.Artifact, error)
}

// Handle is a running file server.
type Handle interface {
	Port() int
	Root() string
	URL(path string) string
	Shutdown(ctx context.Context) error
}

// Binder starts a file server for a directory.
type Binder interface {
	Bind(root string) (Handle, error)
}

// Watcher blocks until a change under roots.
type Watcher interface {
	WaitForChange(ctx context.Context, roots ...string) error
}

// Browser is the remote page reloader.
type Browser interface {
	Connect(ctx context.Context) bool
	Connected() bool
	Navigate(ctx context.Context, url string) bool
	Close()
}

// PortRange binds a *server.Server on [Start, End).
type PortRange struct {
	Server *server.Server
	Start  int
	End    int
}

// Bind implements Binder.
func (p PortRange) Bind(root string) (Handle, error) {
	h, _, err := p.Server.Start(root, p.Start, p.End)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Options tune the cycle.
type Options struct {
	WatchRoots         []string
	SettleDelay        time.Duration
	ReconnectEachCycle bool
	Page               string
}

// Stats counts what the supervisor has done so far.
type Stats struct {
	Cycles        int
	BuildsOK      int
	BuildsFailed  int
	Serves        int
	ServeFailures int
	Reloads       int
}

// Supervisor owns at most one server handle and one browser session.
type Supervisor struct {
	builder Builder
	binder  Binder
	watcher Watcher
	browser Browser
	opts    Options

	logger   logging.Logger
	notifier notify.Notifier
	metrics  *monitoring.Metrics

	handle Handle

	mu    sync.Mutex
	stats Stats
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the supervisor logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithNotifier sets where cycle outcomes are reported.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Supervisor) { s.notifier = n }
}

// WithMetrics counts cycles in Prometheus.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// New creates a supervisor. browser may be nil to disable reloading.
func New(builder Builder, binder Binder, watcher Watcher, browser Browser, opts Options, options ...Option) *Supervisor {
	if opts.Page == "" {
		opts.Page = DefaultPage
	}
	s := &Supervisor{
		builder:  builder,
		binder:   binder,
		watcher:  watcher,
		browser:  browser,
		opts:     opts,
		logger:   logging.NewNopLogger(),
		notifier: notify.Discard{},
	}
	for _, o := range options {
		o(s)
	}
	s.logger = s.logger.WithComponent("supervisor")
	return s
}

// Run connects the browser once and then repeats build, serve, reload and
// watch until ctx is cancelled. Cancellation is a normal exit and returns
// nil after the browser is closed and the server released. Failed build
// steps and an exhausted port range are reported and the loop carries on;
// a non-nil error means the loop could not continue, for example because a
// watch root is missing.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.teardown()

	if s.browser != nil {
		s.browser.Connect(ctx)
	}

	for {
		if err := s.cycle(ctx); err != nil {
			if ctx.Err() != nil || errors.IsInterrupt(err) {
				s.logger.Info(context.Background(), "Interrupted, shutting down")
				return nil
			}
			return err
		}
	}
}

// Stats returns a copy of the counters.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Supervisor) count(fn func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.stats)
}

func (s *Supervisor) cycle(ctx context.Context) error {
	logger := s.logger.With("cycle", uuid.NewString())
	s.count(func(st *Stats) { st.Cycles++ })
	s.metrics.CycleStarted()

	s.release(ctx)

	artifact, err := s.builder.Execute(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		if !errors.IsRecoverable(err) {
			return fmt.Errorf("build: %w", err)
		}
		s.count(func(st *Stats) { st.BuildsFailed++ })
		logger.Error(ctx, err, "Build failed", "kind", errors.Classify(err))
		s.notifier.Error(FailureNotice(err))
	} else {
		s.count(func(st *Stats) { st.BuildsOK++ })
		logger.Info(ctx, "Build succeeded", "duration", artifact.Duration)
		if err := s.serve(ctx, logger, artifact); err != nil {
			return err
		}
	}

	if err := s.watcher.WaitForChange(ctx, s.opts.WatchRoots...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("watch: %w", err)
	}
	if lc, ok := s.watcher.(interface{ LastChange() watcher.ChangeEvent }); ok {
		change := lc.LastChange()
		logger.Debug(ctx, "Rebuild triggered", "path", change.Path, "op", change.Type.String())
	}
	s.notifier.Info("Change detected, rebuilding")
	return nil
}

// serve binds the artifact and points the browser at it. An exhausted port
// range is reported like a build failure; other bind errors are returned.
func (s *Supervisor) serve(ctx context.Context, logger logging.Logger, artifact *build.Artifact) error {
	h, err := s.binder.Bind(artifact.Dir)
	if err != nil {
		if !errors.IsRecoverable(err) {
			return fmt.Errorf("serve: %w", err)
		}
		s.count(func(st *Stats) { st.ServeFailures++ })
		logger.Error(ctx, err, "Could not serve build output", "kind", errors.Classify(err))
		s.notifier.Error(FailureNotice(err))
		return nil
	}
	s.handle = h
	s.count(func(st *Stats) { st.Serves++ })

	url := h.URL(s.opts.Page)
	logger.Debug(ctx, "Server handle acquired", "root", h.Root(), "port", h.Port())
	s.notifier.Success(fmt.Sprintf("Serving %s", url))

	if err := sleep(ctx, s.opts.SettleDelay); err != nil {
		return err
	}

	if s.browser == nil {
		return nil
	}
	connected := s.browser.Connected()
	if !connected && s.opts.ReconnectEachCycle {
		connected = s.browser.Connect(ctx)
	}
	if connected && s.browser.Navigate(ctx, url) {
		s.count(func(st *Stats) { st.Reloads++ })
	}
	return ctx.Err()
}

// FailureNotice renders a build or bind failure for the developer.
func FailureNotice(err error) string {
	if be, ok := errors.AsBuildError(err); ok {
		if be.ExitCode < 0 {
			return fmt.Sprintf("build failed at %s: %v", be.Stage, be.Cause)
		}
		return fmt.Sprintf("build failed at %s (exit %d)", be.Stage, be.ExitCode)
	}
	if pr, ok := errors.AsPortRangeError(err); ok {
		return fmt.Sprintf("no free port in %d-%d", pr.Start, pr.End-1)
	}
	return err.Error()
}

// release shuts down the previous cycle's server, if any.
func (s *Supervisor) release(ctx context.Context) {
	if s.handle == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.handle.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, err, "Server shutdown incomplete", "port", s.handle.Port())
	}
	s.handle = nil
}

func (s *Supervisor) teardown() {
	if s.browser != nil {
		s.browser.Close()
	}
	s.release(context.Background())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
