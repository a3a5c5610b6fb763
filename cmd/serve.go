package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/devloop/internal/server"
	"github.com/conneroisu/devloop/internal/supervisor"
)

var serveDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the last build output without rebuilding",
	Long: `Serve an existing build output directory with cross-origin isolation
headers on the first free port of the configured range until interrupted.

Examples:
  devloop serve                       # Serve build/dist/<profile>
  devloop serve --dir ./public        # Serve another directory`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveDir, "dir", "d", "", "directory to serve (default is the build output)")
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newServices(cmd)
	if err != nil {
		return err
	}

	root := serveDir
	if root == "" {
		root = rt.cfg.DistPath()
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("nothing to serve at %s, run devloop build first", root)
	}

	ctx, stop := interruptContext(cmd.Context())
	defer stop()
	rt.serveMetrics(ctx)

	srv := server.New(rt.cfg.Server.Host,
		server.WithLogger(rt.logger),
		server.WithMetrics(rt.metrics),
	)
	handle, _, err := srv.Start(root, rt.cfg.Server.PortStart, rt.cfg.Server.PortEnd)
	if err != nil {
		return err
	}
	rt.notifier.Success(fmt.Sprintf("Serving %s", handle.URL(supervisor.DefaultPage)))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return handle.Shutdown(shutdownCtx)
}
