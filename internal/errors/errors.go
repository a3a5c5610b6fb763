package errors

import (
	"context"
	"errors"
)

// AsBuildError reports whether err wraps a *BuildError and returns it.
func AsBuildError(err error) (*BuildError, bool) {
	var be *BuildError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// AsBrowserError reports whether err wraps a *BrowserError and returns it.
func AsBrowserError(err error) (*BrowserError, bool) {
	var be *BrowserError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// AsPortRangeError reports whether err wraps a *PortRangeError and returns it.
func AsPortRangeError(err error) (*PortRangeError, bool) {
	var pr *PortRangeError
	if errors.As(err, &pr) {
		return pr, true
	}
	return nil, false
}

// IsNoPortAvailable reports whether err signals an exhausted bind range.
func IsNoPortAvailable(err error) bool {
	return errors.Is(err, ErrNoPortAvailable)
}

// IsInterrupt reports whether err is the result of cancelling the root context.
func IsInterrupt(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Classify maps an error onto its category. Interrupts and unknown errors
// return the empty type.
func Classify(err error) ErrorType {
	if err == nil || IsInterrupt(err) {
		return ""
	}
	if _, ok := AsBuildError(err); ok {
		return ErrorTypeBuild
	}
	if IsNoPortAvailable(err) {
		return ErrorTypeServer
	}
	if _, ok := AsBrowserError(err); ok {
		return ErrorTypeBrowser
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ErrorTypeConfig
	}
	return ""
}

// IsRecoverable reports whether the supervisor may continue with the next
// cycle after err. Interrupts are never recoverable.
func IsRecoverable(err error) bool {
	switch Classify(err) {
	case ErrorTypeBuild, ErrorTypeServer, ErrorTypeBrowser:
		return true
	default:
		return false
	}
}
