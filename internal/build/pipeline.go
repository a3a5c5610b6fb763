// Package build runs the frontend build: native compilation, binding
// generation, bundling, stylesheet compilation and static asset merging.
package build

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/devloop/internal/errors"
	"github.com/conneroisu/devloop/internal/logging"
	"github.com/conneroisu/devloop/internal/monitoring"
	"github.com/conneroisu/devloop/internal/notify"
)

// stageNotices announce each stage to the developer as it starts.
var stageNotices = map[string]string{
	"fetch":   "Fetching node packages",
	"compile": "Building with Cargo",
	"bindgen": "Generating bindings",
	"bundle":  "Bundling frontend",
	"styles":  "Generating styles",
	"assets":  "Copying static assets",
}

// Artifact is the output of a successful pipeline execution.
type Artifact struct {
	Dir      string
	Duration time.Duration
}

// Pipeline executes the build DAG for one project layout.
type Pipeline struct {
	layout   Layout
	runner   Runner
	envFile  string
	logger   logging.Logger
	notifier notify.Notifier
	metrics  *BuildMetrics
	exporter *monitoring.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithNotifier announces stages as they start.
func WithNotifier(n notify.Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithEnvFile passes the variables of a .env file to every step. The file
// is re-read on every execution and may be absent.
func WithEnvFile(path string) Option {
	return func(p *Pipeline) { p.envFile = path }
}

// WithExporter records step timings in Prometheus.
func WithExporter(m *monitoring.Metrics) Option {
	return func(p *Pipeline) { p.exporter = m }
}

// NewPipeline creates a pipeline. A nil runner uses NewExecRunner.
func NewPipeline(layout Layout, runner Runner, opts ...Option) *Pipeline {
	if runner == nil {
		runner = NewExecRunner()
	}
	p := &Pipeline{
		layout:   layout,
		runner:   runner,
		logger:   logging.NewNopLogger(),
		notifier: notify.Discard{},
		metrics:  NewBuildMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("build")
	return p
}

// Metrics returns the pipeline's build counters.
func (p *Pipeline) Metrics() *BuildMetrics {
	return p.metrics
}

// Execute runs every step in dependency order. A failing step yields a
// *errors.BuildError; concurrently running siblings are waited for first.
// Cancelling ctx kills running steps and returns ctx.Err().
func (p *Pipeline) Execute(ctx context.Context) (*Artifact, error) {
	start := time.Now()
	err := p.execute(ctx)
	duration := time.Since(start)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result := BuildResult{Duration: duration, Error: err}
	if be, ok := errors.AsBuildError(err); ok {
		result.Stage = be.Stage
	}
	p.metrics.RecordBuild(result)
	p.exporter.BuildFinished(err == nil)

	if err != nil {
		return nil, err
	}
	p.logger.Info(ctx, "Build finished", "duration", duration, "dist", p.layout.DistDir())
	return &Artifact{Dir: p.layout.DistDir(), Duration: duration}, nil
}

func (p *Pipeline) execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env, err := p.loadEnv()
	if err != nil {
		p.logger.Warn(ctx, err, "Ignoring env file", "path", p.envFile)
	}

	if err := p.local(ctx, "setup", func() error { return prepareBuildDir(p.layout) }); err != nil {
		return err
	}

	// fetch runs alongside compile and bindgen; both branches are always
	// joined so no process outlives this call. A failed fetch keeps bindgen
	// from starting.
	var fetchErr, nativeErr error
	var fetchFailed atomic.Bool
	var g errgroup.Group
	g.Go(func() error {
		fetchErr = p.run(ctx, p.layout.fetchStep(), env)
		if fetchErr != nil {
			fetchFailed.Store(true)
		}
		return fetchErr
	})
	g.Go(func() error {
		nativeErr = p.native(ctx, env, &fetchFailed)
		return nativeErr
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if nativeErr != nil {
		return nativeErr
	}
	if fetchErr != nil {
		return fetchErr
	}

	if err := p.local(ctx, "prepare", func() error { return resetDir(p.layout.DistDir()) }); err != nil {
		return err
	}
	if err := p.run(ctx, p.layout.bundleStep(), env); err != nil {
		return err
	}
	if err := p.run(ctx, p.layout.stylesStep(), env); err != nil {
		return err
	}
	return p.local(ctx, "assets", func() error {
		return copyTree(p.layout.StaticDir, p.layout.DistDir())
	})
}

// native compiles every package and then generates bindings for each,
// unless the sibling fetch has already failed.
func (p *Pipeline) native(ctx context.Context, env []string, fetchFailed *atomic.Bool) error {
	if err := p.run(ctx, p.layout.compileStep(), env); err != nil {
		return err
	}
	if fetchFailed.Load() {
		return nil
	}

	p.notifier.Info(stageNotices["bindgen"])
	errs := make([]error, len(p.layout.Packages))
	var g errgroup.Group
	for i, pkg := range p.layout.Packages {
		g.Go(func() error {
			errs[i] = p.run(ctx, p.layout.bindgenStep(pkg), env)
			return errs[i]
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// run executes an external step and maps its outcome onto a BuildError.
func (p *Pipeline) run(ctx context.Context, step Step, env []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	step.Env = append(append([]string(nil), step.Env...), env...)

	if msg, ok := stageNotices[step.Stage]; ok {
		p.notifier.Info(msg)
	}
	p.logger.Info(ctx, "Running build step", "stage", step.Stage, "command", step.String())
	start := time.Now()
	code, err := p.runner.Run(ctx, step)
	duration := time.Since(start)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	var failure error
	switch {
	case err != nil:
		failure = errors.NewBuildError(step.Stage, -1, err)
	case code != 0:
		failure = errors.NewBuildError(step.Stage, code, nil)
	}
	p.exporter.ObserveStep(step.Stage, duration, failure != nil)

	if failure != nil {
		p.logger.Error(ctx, failure, "Build step failed", "stage", step.Stage, "duration", duration)
		return failure
	}
	p.logger.Debug(ctx, "Build step finished", "stage", step.Stage, "duration", duration)
	return nil
}

// local runs an in-process filesystem step.
func (p *Pipeline) local(ctx context.Context, stage string, fn func() error) error {
	if msg, ok := stageNotices[stage]; ok {
		p.notifier.Info(msg)
	}
	start := time.Now()
	err := fn()
	duration := time.Since(start)
	p.exporter.ObserveStep(stage, duration, err != nil)

	if err != nil {
		failure := errors.NewBuildError(stage, -1, err)
		p.logger.Error(ctx, failure, "Build step failed", "stage", stage)
		return failure
	}
	return nil
}

// loadEnv reads the optional .env file into sorted KEY=VALUE pairs.
func (p *Pipeline) loadEnv() ([]string, error) {
	if p.envFile == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(p.envFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", p.envFile, err)
	}

	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env, nil
}
