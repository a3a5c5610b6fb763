// Package monitoring exports devloop cycle, build, server and browser
// counters as Prometheus metrics.
//
// Every method on *Metrics is safe to call on a nil receiver so components
// can be constructed without metrics in tests.
package monitoring

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conneroisu/devloop/internal/logging"
)

const namespace = "devloop"

// Metrics owns a private Prometheus registry and the devloop collectors.
type Metrics struct {
	registry *prometheus.Registry

	cycles           prometheus.Counter
	builds           *prometheus.CounterVec
	buildFailures    *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	serverStarts     prometheus.Counter
	portExhausted    prometheus.Counter
	boundPort        prometheus.Gauge
	reloads          *prometheus.CounterVec
	browserConnected prometheus.Gauge
	watchTriggers    prometheus.Counter

	health *HealthMonitor
}

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Watch cycles started",
		}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "builds_total",
			Help: "Pipeline executions by result",
		}, []string{"result"}),
		buildFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "build_failures_total",
			Help: "Failed build steps by stage",
		}, []string{"stage"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "build_step_duration_seconds",
			Help:    "Duration of each build step",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		serverStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "server_starts_total",
			Help: "File servers bound",
		}),
		portExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "server_port_exhausted_total",
			Help: "Cycles where no port in the bind range was free",
		}),
		boundPort: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "server_bound_port",
			Help: "Port of the live file server, 0 when none is bound",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "browser_reloads_total",
			Help: "Browser navigations by result",
		}, []string{"result"}),
		browserConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "browser_connected",
			Help: "1 while a WebDriver session is held",
		}),
		watchTriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "watch_triggers_total",
			Help: "File changes that ended a watch phase",
		}),
	}

	m.registry.MustRegister(
		m.cycles, m.builds, m.buildFailures, m.stepDuration,
		m.serverStarts, m.portExhausted, m.boundPort,
		m.reloads, m.browserConnected, m.watchTriggers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// CycleStarted counts a new watch cycle.
func (m *Metrics) CycleStarted() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}

// ObserveStep records one build step's duration and outcome.
func (m *Metrics) ObserveStep(stage string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(stage).Observe(d.Seconds())
	if failed {
		m.buildFailures.WithLabelValues(stage).Inc()
	}
}

// BuildFinished records a whole pipeline execution.
func (m *Metrics) BuildFinished(ok bool) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(result(ok)).Inc()
}

// ServerBound records a successful bind.
func (m *Metrics) ServerBound(port int) {
	if m == nil {
		return
	}
	m.serverStarts.Inc()
	m.boundPort.Set(float64(port))
}

// ServerReleased records that no server is bound anymore.
func (m *Metrics) ServerReleased() {
	if m == nil {
		return
	}
	m.boundPort.Set(0)
}

// PortExhausted records a cycle that found the bind range full.
func (m *Metrics) PortExhausted() {
	if m == nil {
		return
	}
	m.portExhausted.Inc()
}

// Reload records a navigate attempt.
func (m *Metrics) Reload(ok bool) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(result(ok)).Inc()
}

// BrowserConnected sets the session gauge.
func (m *Metrics) BrowserConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.browserConnected.Set(1)
	} else {
		m.browserConnected.Set(0)
	}
}

// WatchTriggered counts a watch phase ended by a file change.
func (m *Metrics) WatchTriggered() {
	if m == nil {
		return
	}
	m.watchTriggers.Inc()
}

// Handler returns the /metrics handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AttachHealth makes Serve expose h on /healthz.
func (m *Metrics) AttachHealth(h *HealthMonitor) {
	if m == nil {
		return
	}
	m.health = h
}

// Serve exposes /metrics, and /healthz when attached, on addr until ctx is
// cancelled. It returns after the listener is closed.
func (m *Metrics) Serve(ctx context.Context, addr string, logger logging.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if m.health != nil {
		mux.Handle("/healthz", m.health.HTTPHandler())
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger.Info(ctx, "Metrics endpoint listening", "addr", ln.Addr().String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
