// Package errors defines the typed failures that flow between the devloop
// components and the supervisor.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeBuild   ErrorType = "build"
	ErrorTypeServer  ErrorType = "server"
	ErrorTypeBrowser ErrorType = "browser"
	ErrorTypeConfig  ErrorType = "config"
)

// ErrNoPortAvailable is returned when every port in the bind range is taken.
var ErrNoPortAvailable = errors.New("no port available")

// BuildError reports a build step that exited non-zero or could not start.
type BuildError struct {
	Stage    string
	ExitCode int
	Cause    error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.ExitCode < 0 && e.Cause != nil {
		return fmt.Sprintf("build step %s could not run: %v", e.Stage, e.Cause)
	}
	return fmt.Sprintf("build step %s terminated with %d", e.Stage, e.ExitCode)
}

// Unwrap returns the underlying cause error.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is matches another BuildError for the same stage and exit code.
func (e *BuildError) Is(target error) bool {
	var t *BuildError
	if errors.As(target, &t) {
		return e.Stage == t.Stage && e.ExitCode == t.ExitCode
	}
	return false
}

// PortRangeError reports that no port in [Start, End) could be bound.
type PortRangeError struct {
	Host  string
	Start int
	End   int
}

// Error implements the error interface.
func (e *PortRangeError) Error() string {
	return fmt.Sprintf("%v on %s in range %d-%d", ErrNoPortAvailable, e.Host, e.Start, e.End-1)
}

// Unwrap makes errors.Is(err, ErrNoPortAvailable) hold.
func (e *PortRangeError) Unwrap() error {
	return ErrNoPortAvailable
}

// BrowserError reports a failed WebDriver operation.
type BrowserError struct {
	Op    string // "connect" or "navigate"
	URL   string
	Cause error
}

// Error implements the error interface.
func (e *BrowserError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("browser %s %s: %v", e.Op, e.URL, e.Cause)
	}
	return fmt.Sprintf("browser %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *BrowserError) Unwrap() error {
	return e.Cause
}

// ValidationError describes an invalid configuration or input value.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// NewBuildError creates a build error for a stage.
func NewBuildError(stage string, exitCode int, cause error) *BuildError {
	return &BuildError{Stage: stage, ExitCode: exitCode, Cause: cause}
}

// NewBrowserError creates a browser error.
func NewBrowserError(op, url string, cause error) *BrowserError {
	return &BrowserError{Op: op, URL: url, Cause: cause}
}

// NewValidationError creates a validation error.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}
