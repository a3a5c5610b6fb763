// Package browser drives a remote WebDriver session so the page under
// development reloads after every successful build.
package browser

import (
	"context"
	"sync"

	"github.com/tebeka/selenium"

	"github.com/conneroisu/devloop/internal/errors"
	"github.com/conneroisu/devloop/internal/logging"
	"github.com/conneroisu/devloop/internal/monitoring"
	"github.com/conneroisu/devloop/internal/notify"
	"github.com/conneroisu/devloop/internal/validation"
)

// Driver is the subset of a WebDriver session devloop uses.
type Driver interface {
	Get(url string) error
	Quit() error
}

// Dialer opens a new remote session.
type Dialer func(ctx context.Context) (Driver, error)

// SeleniumDialer dials a Selenium Grid hub for the named browser.
func SeleniumDialer(hubURL, browserName string) Dialer {
	return func(ctx context.Context) (Driver, error) {
		caps := selenium.Capabilities{"browserName": browserName}
		return selenium.NewRemote(caps, hubURL)
	}
}

// Session holds at most one remote driver. Failures never propagate: the
// session becomes absent and the developer is told.
type Session struct {
	dial     Dialer
	logger   logging.Logger
	notifier notify.Notifier
	metrics  *monitoring.Metrics

	mu     sync.Mutex
	driver Driver
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithNotifier sets where connection and reload problems are reported.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithMetrics records reloads and connection state in Prometheus.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// NewSession creates an absent session that dials with dial.
func NewSession(dial Dialer, opts ...Option) *Session {
	s := &Session{
		dial:     dial,
		logger:   logging.NewNopLogger(),
		notifier: notify.Discard{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("browser")
	return s
}

// Connected reports whether a driver is held.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver != nil
}

// Connect dials a session if none is held and reports whether one is held
// afterwards.
func (s *Session) Connect(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.driver != nil {
		return true
	}
	if err := s.connectLocked(ctx); err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.logger.Warn(ctx, err, "Browser session unavailable")
		s.notifier.Warn("Could not connect to Selenium Grid")
		return false
	}
	s.notifier.Info("Connected to browser")
	return true
}

// Navigate loads url in the held session. A failure triggers one reconnect
// and one retry; if that fails too the session is dropped. It does nothing
// when no session is held.
func (s *Session) Navigate(ctx context.Context, url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.driver == nil {
		return false
	}
	if err := validation.ValidateURL(url); err != nil {
		s.logger.Warn(ctx, err, "Refusing to navigate", "url", url)
		return false
	}

	err := s.getLocked(ctx, url)
	if err == nil {
		s.reloaded(ctx, url)
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	s.logger.Warn(ctx, err, "Navigate failed, reconnecting", "url", url)

	s.quitLocked(ctx)
	if err = s.connectLocked(ctx); err == nil {
		err = s.getLocked(ctx, url)
	}
	if err == nil {
		s.reloaded(ctx, url)
		return true
	}
	if ctx.Err() != nil {
		return false
	}

	s.quitLocked(ctx)
	s.metrics.Reload(false)
	s.logger.Warn(ctx, err, "Dropping browser session", "url", url)
	s.notifier.Warn("Could not reload URL")
	return false
}

// Close quits the held session, ignoring errors. Safe to call repeatedly.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quitLocked(context.Background())
}

func (s *Session) reloaded(ctx context.Context, url string) {
	s.metrics.Reload(true)
	s.logger.Info(ctx, "Browser reloaded", "url", url)
}

func (s *Session) connectLocked(ctx context.Context) error {
	var driver Driver
	err := roundTrip(ctx, func() error {
		d, err := s.dial(ctx)
		if err != nil {
			return err
		}
		driver = d
		return nil
	}, func() {
		// the dial finished after ctx was done
		if driver != nil {
			_ = driver.Quit()
		}
	})
	if err != nil {
		return errors.NewBrowserError("connect", "", err)
	}
	s.driver = driver
	s.metrics.BrowserConnected(true)
	return nil
}

func (s *Session) getLocked(ctx context.Context, url string) error {
	driver := s.driver
	if err := roundTrip(ctx, func() error { return driver.Get(url) }, nil); err != nil {
		return errors.NewBrowserError("navigate", url, err)
	}
	return nil
}

func (s *Session) quitLocked(ctx context.Context) {
	if s.driver == nil {
		return
	}
	if err := s.driver.Quit(); err != nil {
		s.logger.Debug(ctx, "Ignoring quit error", "error", err)
	}
	s.driver = nil
	s.metrics.BrowserConnected(false)
}

// roundTrip runs fn on its own goroutine so a cancelled ctx unblocks the
// caller at once. abandoned runs once fn completes if the caller gave up.
func roundTrip(ctx context.Context, fn func() error, abandoned func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		mu       sync.Mutex
		finished bool
		gaveUp   bool
		result   error
	)
	done := make(chan struct{})

	go func() {
		err := fn()
		mu.Lock()
		defer mu.Unlock()
		if gaveUp {
			if abandoned != nil {
				abandoned()
			}
		} else {
			finished = true
			result = err
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	if finished {
		return result
	}
	gaveUp = true
	return ctx.Err()
}
