// Package config provides configuration management for devloop using Viper
// for loading from files, environment variables, and command-line flags.
//
// Every path in the configuration is relative to project.root unless it is
// absolute. Environment overrides use the DEVLOOP_ prefix with dots replaced
// by underscores (DEVLOOP_SERVER_PORT_START=4000).
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved devloop configuration.
type Config struct {
	Project ProjectConfig `mapstructure:"project" yaml:"project" json:"project"`
	Build   BuildConfig   `mapstructure:"build" yaml:"build" json:"build"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser" json:"browser"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Log     LogConfig     `mapstructure:"log" yaml:"log" json:"log"`
}

type ProjectConfig struct {
	Root      string `mapstructure:"root" yaml:"root" json:"root"`
	BuildDir  string `mapstructure:"build_dir" yaml:"build_dir" json:"build_dir"`
	CratesDir string `mapstructure:"crates_dir" yaml:"crates_dir" json:"crates_dir"`
	StaticDir string `mapstructure:"static_dir" yaml:"static_dir" json:"static_dir"`
	EnvFile   string `mapstructure:"env_file" yaml:"env_file" json:"env_file"`
}

type BuildConfig struct {
	Packages    []string `mapstructure:"packages" yaml:"packages" json:"packages"`
	Profile     string   `mapstructure:"profile" yaml:"profile" json:"profile"`
	LinkedFiles []string `mapstructure:"linked_files" yaml:"linked_files" json:"linked_files"`
	Styles      string   `mapstructure:"styles" yaml:"styles" json:"styles"`
}

type ServerConfig struct {
	Host        string        `mapstructure:"host" yaml:"host" json:"host"`
	PortStart   int           `mapstructure:"port_start" yaml:"port_start" json:"port_start"`
	PortEnd     int           `mapstructure:"port_end" yaml:"port_end" json:"port_end"`
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay" json:"settle_delay"`
}

type BrowserConfig struct {
	Enabled            bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	HubURL             string `mapstructure:"hub_url" yaml:"hub_url" json:"hub_url"`
	Name               string `mapstructure:"name" yaml:"name" json:"name"`
	ReconnectEachCycle bool   `mapstructure:"reconnect_each_cycle" yaml:"reconnect_each_cycle" json:"reconnect_each_cycle"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Defaults mirror the layout of a cargo + rspack frontend workspace.
const (
	DefaultPortStart   = 3000
	DefaultPortEnd     = 3016
	DefaultSettleDelay = 500 * time.Millisecond
	DefaultHubURL      = "http://127.0.0.1:4444/wd/hub"
)

// SetDefaults registers every default value on the global viper instance.
func SetDefaults() {
	viper.SetDefault("project.root", ".")
	viper.SetDefault("project.build_dir", "build")
	viper.SetDefault("project.crates_dir", "crates")
	viper.SetDefault("project.static_dir", "static")
	viper.SetDefault("project.env_file", ".env")

	viper.SetDefault("build.packages", []string{"frontend"})
	viper.SetDefault("build.profile", "debug")
	viper.SetDefault("build.linked_files", []string{"package.json", "package-lock.json", "rspack.config.js"})
	viper.SetDefault("build.styles", "styles.scss")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port_start", DefaultPortStart)
	viper.SetDefault("server.port_end", DefaultPortEnd)
	viper.SetDefault("server.settle_delay", DefaultSettleDelay)

	viper.SetDefault("browser.enabled", true)
	viper.SetDefault("browser.hub_url", DefaultHubURL)
	viper.SetDefault("browser.name", "chrome")
	viper.SetDefault("browser.reconnect_each_cycle", false)

	viper.SetDefault("metrics.addr", "")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// Load resolves the configuration from the global viper instance, applying
// defaults for unset keys, and validates the result.
func Load() (*Config, error) {
	SetDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	root, err := filepath.Abs(config.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	config.Project.Root = root

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// resolve makes p absolute against the project root.
func (c *Config) resolve(p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Project.Root, p)
}

// BuildPath returns the absolute build directory.
func (c *Config) BuildPath() string { return c.resolve(c.Project.BuildDir) }

// CratesPath returns the absolute crates (native sources) directory.
func (c *Config) CratesPath() string { return c.resolve(c.Project.CratesDir) }

// StaticPath returns the absolute static assets directory.
func (c *Config) StaticPath() string { return c.resolve(c.Project.StaticDir) }

// StylesPath returns the absolute path of the stylesheet entry point.
func (c *Config) StylesPath() string { return c.resolve(c.Build.Styles) }

// EnvFilePath returns the absolute path of the optional .env file.
func (c *Config) EnvFilePath() string { return c.resolve(c.Project.EnvFile) }

// DistPath returns the directory the build output is served from.
func (c *Config) DistPath() string {
	return filepath.Join(c.BuildPath(), "dist", c.Build.Profile)
}

// WatchRoots returns the directory trees whose changes trigger a rebuild.
func (c *Config) WatchRoots() []string {
	return []string{c.CratesPath(), c.StaticPath()}
}
