package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/devloop/internal/browser"
	"github.com/conneroisu/devloop/internal/build"
	"github.com/conneroisu/devloop/internal/config"
	"github.com/conneroisu/devloop/internal/monitoring"
	"github.com/conneroisu/devloop/internal/server"
	"github.com/conneroisu/devloop/internal/supervisor"
	"github.com/conneroisu/devloop/internal/watcher"
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Build, serve, reload and watch until interrupted",
	Long: `Run the development loop.

Each cycle releases the previous server, runs the build pipeline, serves the
output on the first free port of the configured range with cross-origin
isolation headers, points the browser at the new server and waits for a
change under crates/ or static/. A failed build is reported and the loop
keeps watching. Ctrl+C closes the browser session and the server.

Examples:
  devloop dev                            # Use .devloop.yml and defaults
  devloop dev --no-browser               # Serve and rebuild without Selenium
  devloop dev --hub http://grid:4444/wd/hub --reconnect
  devloop dev --metrics-addr :9090       # Expose Prometheus metrics`,
	RunE: runDev,
}

func init() {
	rootCmd.AddCommand(devCmd)

	flags := devCmd.Flags()
	flags.Int("port-start", config.DefaultPortStart, "first port to try")
	flags.Int("port-end", config.DefaultPortEnd, "port range end (exclusive)")
	flags.Duration("settle-delay", config.DefaultSettleDelay, "pause between serving and reloading the browser")
	flags.Bool("no-browser", false, "do not drive a browser")
	flags.String("hub", "", "WebDriver hub URL")
	flags.Bool("reconnect", false, "retry the browser connection every cycle")
	flags.String("metrics-addr", "", "address for the Prometheus /metrics endpoint")

	_ = viper.BindPFlag("server.port_start", flags.Lookup("port-start"))
	_ = viper.BindPFlag("server.port_end", flags.Lookup("port-end"))
	_ = viper.BindPFlag("server.settle_delay", flags.Lookup("settle-delay"))
	_ = viper.BindPFlag("browser.hub_url", flags.Lookup("hub"))
	_ = viper.BindPFlag("browser.reconnect_each_cycle", flags.Lookup("reconnect"))
	_ = viper.BindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
}

func runDev(cmd *cobra.Command, args []string) error {
	if noBrowser, _ := cmd.Flags().GetBool("no-browser"); noBrowser {
		viper.Set("browser.enabled", false)
	}

	rt, err := newServices(cmd)
	if err != nil {
		return err
	}
	cfg := rt.cfg

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	pipeline := build.NewPipeline(build.LayoutFromConfig(cfg), nil,
		build.WithLogger(rt.logger),
		build.WithNotifier(rt.notifier),
		build.WithEnvFile(cfg.EnvFilePath()),
		build.WithExporter(rt.metrics),
	)
	srv := server.New(cfg.Server.Host,
		server.WithLogger(rt.logger),
		server.WithMetrics(rt.metrics),
	)
	fw := watcher.NewFileWatcher(
		watcher.WithLogger(rt.logger),
		watcher.WithMetrics(rt.metrics),
	)

	health := monitoring.NewHealthMonitor(rt.logger)
	health.RegisterCheck("build", true, buildHealth(pipeline))

	var session supervisor.Browser
	if cfg.Browser.Enabled {
		s := browser.NewSession(browser.SeleniumDialer(cfg.Browser.HubURL, cfg.Browser.Name),
			browser.WithLogger(rt.logger),
			browser.WithNotifier(rt.notifier),
			browser.WithMetrics(rt.metrics),
		)
		health.RegisterCheck("browser", false, browserHealth(s))
		session = s
	}

	rt.metrics.AttachHealth(health)
	rt.serveMetrics(ctx)

	sup := supervisor.New(pipeline,
		supervisor.PortRange{Server: srv, Start: cfg.Server.PortStart, End: cfg.Server.PortEnd},
		fw, session,
		supervisor.Options{
			WatchRoots:         cfg.WatchRoots(),
			SettleDelay:        cfg.Server.SettleDelay,
			ReconnectEachCycle: cfg.Browser.ReconnectEachCycle,
		},
		supervisor.WithLogger(rt.logger),
		supervisor.WithNotifier(rt.notifier),
		supervisor.WithMetrics(rt.metrics),
	)

	runErr := sup.Run(ctx)

	stats := sup.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "%d cycles, %d builds ok, %d failed, %d reloads\n",
		stats.Cycles, stats.BuildsOK, stats.BuildsFailed, stats.Reloads)
	return runErr
}

func buildHealth(p *build.Pipeline) monitoring.CheckFunc {
	return func(context.Context) (monitoring.HealthStatus, string) {
		snap := p.Metrics().GetSnapshot()
		switch {
		case snap.TotalBuilds == 0:
			return monitoring.HealthStatusUnknown, "no build finished yet"
		case !snap.LastSucceeded:
			return monitoring.HealthStatusUnhealthy, fmt.Sprintf("last build failed at %s", snap.LastFailedStage)
		default:
			return monitoring.HealthStatusHealthy, fmt.Sprintf("%.0f%% of %d builds succeeded", p.Metrics().GetSuccessRate(), snap.TotalBuilds)
		}
	}
}

func browserHealth(s *browser.Session) monitoring.CheckFunc {
	return func(context.Context) (monitoring.HealthStatus, string) {
		if s.Connected() {
			return monitoring.HealthStatusHealthy, "WebDriver session held"
		}
		return monitoring.HealthStatusUnhealthy, "no WebDriver session"
	}
}
