package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/devloop/internal/build"
	"github.com/conneroisu/devloop/internal/supervisor"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the build pipeline once",
	Long: `Run the build pipeline a single time and exit.

The pipeline fetches node packages while Cargo compiles the crates,
generates WebAssembly bindings, bundles the frontend, compiles the
stylesheet and copies static assets into build/dist/<profile>.

Examples:
  devloop build                     # Debug build
  DEVLOOP_BUILD_PROFILE=release devloop build`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	rt, err := newServices(cmd)
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	pipeline := build.NewPipeline(build.LayoutFromConfig(rt.cfg), nil,
		build.WithLogger(rt.logger),
		build.WithNotifier(rt.notifier),
		build.WithEnvFile(rt.cfg.EnvFilePath()),
	)

	op := rt.logger.StartOperation("build")
	artifact, err := pipeline.Execute(ctx)
	op.End(ctx)
	if err != nil {
		rt.notifier.Error(supervisor.FailureNotice(err))
		return err
	}
	rt.notifier.Success(fmt.Sprintf("Built %s in %s", artifact.Dir, artifact.Duration.Round(time.Millisecond)))
	return nil
}
