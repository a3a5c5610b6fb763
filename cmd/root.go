// Package cmd provides the devloop command-line interface.
//
// Configuration System:
//
//	Values are resolved from, in order of precedence:
//	1. Command-line flags (--config, --port-start, etc.)
//	2. DEVLOOP_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (DEVLOOP_SERVER_PORT_START, etc.)
//	4. Configuration file (.devloop.yml)
//	5. Built-in defaults
//
// Environment Variables:
//
//	DEVLOOP_CONFIG_FILE: Path to custom configuration file
//	DEVLOOP_SERVER_HOST: Override the host the file server binds
//	DEVLOOP_BROWSER_HUB_URL: Override the WebDriver hub
//	And every other key following the DEVLOOP_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "devloop",
	Short: "Live-reload development loop for Rust/WebAssembly frontends",
	Long: `devloop rebuilds a Rust/WebAssembly frontend whenever its sources change,
serves the result with cross-origin isolation headers and reloads a browser
driven through Selenium Grid.

Quick Start:
  devloop dev                     Build, serve, reload and watch until Ctrl+C
  devloop build                   Run the build pipeline once
  devloop serve                   Serve the last build output
  devloop config show             Print the resolved configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .devloop.yml, can also use DEVLOOP_CONFIG_FILE env var)")
	flags.String("root", ".", "project root containing crates/, static/ and package.json")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("project.root", flags.Lookup("root"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

// initConfig wires viper to the config file and DEVLOOP_ environment.
//
// Config file priority (highest to lowest):
//  1. --config flag
//  2. DEVLOOP_CONFIG_FILE environment variable
//  3. .devloop.yml in the current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("DEVLOOP_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".devloop")
	}

	viper.SetEnvPrefix("DEVLOOP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// a missing file falls back to defaults
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
