package supervisor

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/devloop/internal/build"
	"github.com/conneroisu/devloop/internal/errors"
	"github.com/conneroisu/devloop/internal/notify"
)

type fakeBuilder struct {
	mu      sync.Mutex
	calls   int
	results []error // per call; missing entries succeed
	block   bool
	onCall  func(n int)
}

func (b *fakeBuilder) Execute(ctx context.Context) (*build.Artifact, error) {
	b.mu.Lock()
	n := b.calls
	b.calls++
	block := b.block
	hook := b.onCall
	var err error
	if n < len(b.results) {
		err = b.results[n]
	}
	b.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &build.Artifact{Dir: fmt.Sprintf("/dist/%d", n)}, nil
}

func (b *fakeBuilder) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type fakeHandle struct {
	binder *fakeBinder
	port   int
	root   string
	mu     sync.Mutex
	downs  int
}

func (h *fakeHandle) Port() int { return h.port }

func (h *fakeHandle) Root() string { return h.root }

func (h *fakeHandle) URL(path string) string {
	return fmt.Sprintf("http://localhost:%d/%s", h.port, path)
}

func (h *fakeHandle) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.downs == 0 {
		h.binder.mu.Lock()
		h.binder.live--
		h.binder.mu.Unlock()
	}
	h.downs++
	return nil
}

func (h *fakeHandle) shutdowns() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.downs
}

type fakeBinder struct {
	mu      sync.Mutex
	roots   []string
	handles []*fakeHandle
	live    int
	maxLive int
	err     error
}

func (b *fakeBinder) Bind(root string) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roots = append(b.roots, root)
	if b.err != nil {
		return nil, b.err
	}
	h := &fakeHandle{binder: b, port: 3000 + len(b.handles), root: root}
	b.handles = append(b.handles, h)
	b.live++
	if b.live > b.maxLive {
		b.maxLive = b.live
	}
	return h, nil
}

// fakeWatcher returns nil for the first `changes` waits and then cancels the
// run, blocking until the context is done.
type fakeWatcher struct {
	mu      sync.Mutex
	calls   int
	changes int
	cancel  context.CancelFunc
	err     error
	roots   [][]string
}

func (w *fakeWatcher) WaitForChange(ctx context.Context, roots ...string) error {
	w.mu.Lock()
	w.calls++
	n := w.calls
	w.roots = append(w.roots, roots)
	w.mu.Unlock()

	if w.err != nil {
		return w.err
	}
	if n <= w.changes {
		return nil
	}
	w.cancel()
	<-ctx.Done()
	return ctx.Err()
}

type fakeBrowser struct {
	mu          sync.Mutex
	connected   bool
	connectOK   []bool // per Connect call; missing entries succeed
	connects    int
	navigations []string
	closes      int
}

func (b *fakeBrowser) Connect(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok := true
	if b.connects < len(b.connectOK) {
		ok = b.connectOK[b.connects]
	}
	b.connects++
	b.connected = ok
	return ok
}

func (b *fakeBrowser) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return false
	}
	b.navigations = append(b.navigations, url)
	return true
}

func (b *fakeBrowser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	b.connected = false
}

type harness struct {
	builder *fakeBuilder
	binder  *fakeBinder
	watcher *fakeWatcher
	browser *fakeBrowser
	ctx     context.Context
}

func newHarness(changes int) *harness {
	ctx, cancel := context.WithCancel(context.Background())
	return &harness{
		builder: &fakeBuilder{},
		binder:  &fakeBinder{},
		watcher: &fakeWatcher{changes: changes, cancel: cancel},
		browser: &fakeBrowser{},
		ctx:     ctx,
	}
}

func (h *harness) run(t *testing.T, opts Options) error {
	t.Helper()
	if opts.WatchRoots == nil {
		opts.WatchRoots = []string{"/p/crates", "/p/static"}
	}
	s := New(h.builder, h.binder, h.watcher, h.browser, opts)

	result := make(chan error, 1)
	go func() { result <- s.Run(h.ctx) }()

	select {
	case err := <-result:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRunCyclesUntilInterrupted(t *testing.T) {
	h := newHarness(2)

	err := h.run(t, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, h.builder.count())
	assert.Equal(t, []string{"/dist/0", "/dist/1", "/dist/2"}, h.binder.roots)
	assert.Equal(t, 1, h.binder.maxLive, "at most one server at a time")
	assert.Zero(t, h.binder.live, "every server released")
	for _, handle := range h.binder.handles {
		assert.Equal(t, 1, handle.shutdowns())
	}

	assert.Equal(t, 1, h.browser.connects, "connect once at start")
	assert.Equal(t, []string{
		"http://localhost:3000/index.html",
		"http://localhost:3001/index.html",
		"http://localhost:3002/index.html",
	}, h.browser.navigations)
	assert.Equal(t, 1, h.browser.closes)

	for _, roots := range h.watcher.roots {
		assert.Equal(t, []string{"/p/crates", "/p/static"}, roots)
	}
}

func TestPreviousServerReleasedBeforeBuild(t *testing.T) {
	h := newHarness(1)
	h.builder.onCall = func(n int) {
		if n == 1 {
			h.binder.mu.Lock()
			live := h.binder.live
			h.binder.mu.Unlock()
			assert.Zero(t, live, "server must be shut down before rebuilding")
		}
	}

	require.NoError(t, h.run(t, Options{}))
}

func TestBuildFailureSkipsServeAndReload(t *testing.T) {
	h := newHarness(1)
	h.builder.results = []error{errors.NewBuildError("compile", 101, nil)}

	var notices bytes.Buffer
	s := New(h.builder, h.binder, h.watcher, h.browser, Options{WatchRoots: []string{"/p/crates"}},
		WithNotifier(notify.NewTerminal(&notices, true)))
	require.NoError(t, s.Run(h.ctx))

	assert.Contains(t, notices.String(), "build failed at compile (exit 101)")
	assert.Equal(t, []string{"/dist/1"}, h.binder.roots, "first cycle must not serve")
	assert.Len(t, h.browser.navigations, 1)
	assert.Equal(t, 2, h.watcher.calls, "watch runs after a failed build")

	stats := s.Stats()
	assert.Equal(t, 2, stats.Cycles)
	assert.Equal(t, 1, stats.BuildsFailed)
	assert.Equal(t, 1, stats.BuildsOK)
	assert.Equal(t, 1, stats.Serves)
	assert.Equal(t, 1, stats.Reloads)
}

func TestNoPortAvailableTreatedLikeBuildFailure(t *testing.T) {
	h := newHarness(1)
	h.binder.err = &errors.PortRangeError{Host: "localhost", Start: 3000, End: 3016}

	var notices bytes.Buffer
	s := New(h.builder, h.binder, h.watcher, h.browser, Options{WatchRoots: []string{"/p/static"}},
		WithNotifier(notify.NewTerminal(&notices, true)))
	require.NoError(t, s.Run(h.ctx))

	assert.Contains(t, notices.String(), "no free port in 3000-3015")
	assert.Empty(t, h.browser.navigations)
	assert.Equal(t, 2, h.watcher.calls)
	assert.Equal(t, 2, s.Stats().ServeFailures)
}

func TestAbsentBrowserIsNotReconnectedByDefault(t *testing.T) {
	h := newHarness(2)
	h.browser.connectOK = []bool{false}

	require.NoError(t, h.run(t, Options{}))

	assert.Equal(t, 1, h.browser.connects)
	assert.Empty(t, h.browser.navigations)
	assert.Len(t, h.binder.roots, 3, "serving continues without a browser")
}

func TestReconnectEachCycle(t *testing.T) {
	h := newHarness(2)
	h.browser.connectOK = []bool{false, false, true}

	require.NoError(t, h.run(t, Options{ReconnectEachCycle: true}))

	assert.Equal(t, 3, h.browser.connects, "initial attempt plus one per cycle until connected")
	assert.Len(t, h.browser.navigations, 2)
}

func TestNilBrowser(t *testing.T) {
	h := newHarness(1)
	s := New(h.builder, h.binder, h.watcher, nil, Options{WatchRoots: []string{"/p"}})

	require.NoError(t, s.Run(h.ctx))
	assert.Equal(t, 2, s.Stats().Serves)
	assert.Zero(t, s.Stats().Reloads)
}

func TestInterruptDuringBuild(t *testing.T) {
	h := newHarness(0)
	h.builder.block = true
	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx

	time.AfterFunc(50*time.Millisecond, cancel)
	require.NoError(t, h.run(t, Options{}))

	assert.Empty(t, h.binder.roots)
	assert.Zero(t, h.watcher.calls)
	assert.Equal(t, 1, h.browser.closes)
}

func TestInterruptDuringSettleDelay(t *testing.T) {
	h := newHarness(0)
	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx

	time.AfterFunc(50*time.Millisecond, cancel)
	start := time.Now()
	require.NoError(t, h.run(t, Options{SettleDelay: time.Hour}))

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Empty(t, h.browser.navigations)
	require.Len(t, h.binder.handles, 1)
	assert.Equal(t, 1, h.binder.handles[0].shutdowns(), "server released on interrupt")
	assert.Equal(t, 1, h.browser.closes)
}

func TestSettleDelayPrecedesNavigate(t *testing.T) {
	h := newHarness(0)
	var boundAt time.Time
	h.builder.onCall = func(int) { boundAt = time.Now() }

	require.NoError(t, h.run(t, Options{SettleDelay: 100 * time.Millisecond}))
	assert.GreaterOrEqual(t, time.Since(boundAt), 100*time.Millisecond)
	assert.Len(t, h.browser.navigations, 1)
}

func TestWatchErrorIsFatal(t *testing.T) {
	h := newHarness(0)
	h.watcher.err = stderrors.New("watcher: root /p/crates not found")

	err := h.run(t, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	assert.Equal(t, 1, h.browser.closes, "teardown still runs")
	require.Len(t, h.binder.handles, 1)
	assert.Equal(t, 1, h.binder.handles[0].shutdowns())
}

func TestUnclassifiedFailuresAreFatal(t *testing.T) {
	t.Run("build", func(t *testing.T) {
		h := newHarness(1)
		h.builder.results = []error{stderrors.New("layout: crates dir missing")}

		err := h.run(t, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "crates dir missing")
		assert.Zero(t, h.watcher.calls, "no watch after a fatal build error")
		assert.Equal(t, 1, h.browser.closes)
	})

	t.Run("bind", func(t *testing.T) {
		h := newHarness(1)
		h.binder.err = stderrors.New("listen: permission denied")

		err := h.run(t, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
		assert.Empty(t, h.browser.navigations)
		assert.Equal(t, 1, h.browser.closes)
	})
}

func TestFailureNotice(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"exit code", errors.NewBuildError("bindgen:frontend", 2, nil), "build failed at bindgen:frontend (exit 2)"},
		{"could not run", errors.NewBuildError("compile", -1, stderrors.New("cargo not found")), "build failed at compile: cargo not found"},
		{"port range", fmt.Errorf("bind: %w", &errors.PortRangeError{Host: "localhost", Start: 4000, End: 4004}), "no free port in 4000-4003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FailureNotice(tt.err))
		})
	}
}

func TestCustomPage(t *testing.T) {
	h := newHarness(0)
	require.NoError(t, h.run(t, Options{Page: "app.html"}))
	assert.Equal(t, []string{"http://localhost:3000/app.html"}, h.browser.navigations)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), 0))
	assert.NoError(t, sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleep(ctx, 0), context.Canceled)
}
