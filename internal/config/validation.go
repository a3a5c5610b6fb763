package config

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/conneroisu/devloop/internal/errors"
	"github.com/conneroisu/devloop/internal/logging"
	"github.com/conneroisu/devloop/internal/validation"
)

// ValidationResult holds every problem found in a configuration.
type ValidationResult struct {
	Errors []*errors.ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// Err joins all errors into one, or returns nil.
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	errs := make([]error, len(vr.Errors))
	for i, e := range vr.Errors {
		errs[i] = e
	}
	return stderrors.Join(errs...)
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder
	for _, err := range vr.Errors {
		builder.WriteString(fmt.Sprintf("  • %s\n", err.Error()))
	}
	return builder.String()
}

func (vr *ValidationResult) add(field string, value interface{}, format string, args ...interface{}) {
	vr.Errors = append(vr.Errors, errors.NewValidationError(field, value, fmt.Sprintf(format, args...)))
}

// Validate checks every field and returns all problems joined together.
func Validate(cfg *Config) error {
	return ValidateAll(cfg).Err()
}

// ValidateAll checks every field and reports all problems.
func ValidateAll(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateProject(&cfg.Project, result)
	validateBuild(&cfg.Build, result)
	validateServer(&cfg.Server, result)
	validateBrowser(&cfg.Browser, result)
	validateLog(&cfg.Log, result)

	return result
}

func validateProject(p *ProjectConfig, result *ValidationResult) {
	paths := []struct {
		field string
		value string
	}{
		{"project.build_dir", p.BuildDir},
		{"project.crates_dir", p.CratesDir},
		{"project.static_dir", p.StaticDir},
	}
	for _, path := range paths {
		if err := validation.ValidateRelativePath(path.value); err != nil {
			result.add(path.field, path.value, "%v", err)
		}
	}
	if p.EnvFile != "" {
		if err := validation.ValidateRelativePath(p.EnvFile); err != nil {
			result.add("project.env_file", p.EnvFile, "%v", err)
		}
	}
}

func validateBuild(b *BuildConfig, result *ValidationResult) {
	if len(b.Packages) == 0 {
		result.add("build.packages", b.Packages, "at least one package is required")
	}
	for _, pkg := range b.Packages {
		if err := validation.ValidateName(pkg); err != nil {
			result.add("build.packages", pkg, "%v", err)
		}
	}
	if err := validation.ValidateName(b.Profile); err != nil {
		result.add("build.profile", b.Profile, "%v", err)
	}
	for _, f := range b.LinkedFiles {
		if err := validation.ValidateName(f); err != nil {
			result.add("build.linked_files", f, "%v", err)
		}
	}
	if err := validation.ValidateRelativePath(b.Styles); err != nil {
		result.add("build.styles", b.Styles, "%v", err)
	}
}

func validateServer(s *ServerConfig, result *ValidationResult) {
	if s.Host == "" {
		result.add("server.host", s.Host, "must not be empty")
	} else if err := validation.ValidateArgument(s.Host); err != nil {
		result.add("server.host", s.Host, "%v", err)
	}
	if s.PortStart < 1 || s.PortStart > 65535 {
		result.add("server.port_start", s.PortStart, "must be in range 1-65535")
	}
	if s.PortEnd < 2 || s.PortEnd > 65536 {
		result.add("server.port_end", s.PortEnd, "must be in range 2-65536")
	}
	if s.PortEnd <= s.PortStart {
		result.add("server.port_end", s.PortEnd, "must be greater than port_start %d", s.PortStart)
	}
	if s.SettleDelay < 0 {
		result.add("server.settle_delay", s.SettleDelay, "must not be negative")
	}
}

func validateBrowser(b *BrowserConfig, result *ValidationResult) {
	if !b.Enabled {
		return
	}
	if err := validation.ValidateURL(b.HubURL); err != nil {
		result.add("browser.hub_url", b.HubURL, "%v", err)
	}
	if err := validation.ValidateName(b.Name); err != nil {
		result.add("browser.name", b.Name, "%v", err)
	}
}

func validateLog(l *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(l.Level); err != nil {
		result.add("log.level", l.Level, "%v", err)
	}
	if l.Format != "text" && l.Format != "json" {
		result.add("log.format", l.Format, "must be text or json")
	}
}
