package document

import (
	"errors"
	"fmt"
)

// Severity classifies how serious a load error is.
//
// Warning: the document loaded with degraded fidelity.
// Error: the document failed but the system continues.
// Critical: an unexpected fault (panic, corruption) in the load path.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ErrorCode is the category of a load error. Callers branch on the
// code, never on message text.
type ErrorCode int

const (
	// ErrEncoding indicates content could not be decoded as text.
	ErrEncoding ErrorCode = iota

	// ErrPermission indicates the source could not be read due to
	// filesystem permissions.
	ErrPermission

	// ErrCorrupted indicates the source exists but its content is
	// unreadable or structurally broken.
	ErrCorrupted

	// ErrUnsupportedFormat indicates no registered loader supports the
	// source.
	ErrUnsupportedFormat

	// ErrTimeout indicates a load exceeded its deadline.
	ErrTimeout

	// ErrNotFound indicates the source (or the referenced operation)
	// does not exist.
	ErrNotFound
)

func (c ErrorCode) String() string {
	switch c {
	case ErrEncoding:
		return "encoding"
	case ErrPermission:
		return "permission"
	case ErrCorrupted:
		return "corrupted"
	case ErrUnsupportedFormat:
		return "unsupported_format"
	case ErrTimeout:
		return "timeout"
	case ErrNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// LoadError is the structured error produced by loaders and the load
// pipeline. Every instance carries a remediation suggestion for the
// caller to surface. Load errors are never auto-retried by the core.
type LoadError struct {
	Code       ErrorCode
	Severity   Severity
	Message    string
	Source     string
	Suggestion string
	Err        error // wrapped cause, may be nil
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("[%s] %s: %s (source: %s)", e.Severity, e.Code, e.Message, e.Source)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is matches two load errors by code, so errors.Is works against the
// constructors' zero-cause values.
func (e *LoadError) Is(target error) bool {
	var le *LoadError
	if !errors.As(target, &le) {
		return false
	}
	return e.Code == le.Code
}

// AsLoadError extracts a *LoadError from an error chain.
func AsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// CodeOf returns the error code of err, or ErrCorrupted when err is not
// a LoadError (an unclassified failure in the load path).
func CodeOf(err error) ErrorCode {
	if le, ok := AsLoadError(err); ok {
		return le.Code
	}
	return ErrCorrupted
}

// IsTimeout reports whether err is a timeout load error.
func IsTimeout(err error) bool {
	return CodeOf(err) == ErrTimeout
}

// IsNotFound reports whether err is a not-found load error.
func IsNotFound(err error) bool {
	if le, ok := AsLoadError(err); ok {
		return le.Code == ErrNotFound
	}
	return false
}

// NewEncodingError reports undecodable text content. Warning severity:
// callers may keep the raw bytes.
func NewEncodingError(source, message string, cause error) *LoadError {
	return &LoadError{
		Code:       ErrEncoding,
		Severity:   SeverityWarning,
		Message:    message,
		Source:     source,
		Suggestion: "verify the file encoding or convert it to UTF-8",
		Err:        cause,
	}
}

// NewPermissionError reports a filesystem permission failure.
func NewPermissionError(source string, cause error) *LoadError {
	return &LoadError{
		Code:       ErrPermission,
		Severity:   SeverityError,
		Message:    "permission denied",
		Source:     source,
		Suggestion: "check read permissions on the file and its parent directories",
		Err:        cause,
	}
}

// NewCorruptedError reports unreadable or structurally broken content.
func NewCorruptedError(source, message string, cause error) *LoadError {
	return &LoadError{
		Code:       ErrCorrupted,
		Severity:   SeverityError,
		Message:    message,
		Source:     source,
		Suggestion: "the file may be damaged; restore it from a backup or re-export it",
		Err:        cause,
	}
}

// NewUnsupportedFormatError reports a source no loader supports.
func NewUnsupportedFormatError(source string) *LoadError {
	return &LoadError{
		Code:       ErrUnsupportedFormat,
		Severity:   SeverityError,
		Message:    fmt.Sprintf("no loader registered for %q", source),
		Source:     source,
		Suggestion: "register a loader for this format or convert the file to a supported one",
	}
}

// NewTimeoutError reports a load that exceeded its deadline.
func NewTimeoutError(source string, cause error) *LoadError {
	return &LoadError{
		Code:       ErrTimeout,
		Severity:   SeverityError,
		Message:    "load exceeded deadline",
		Source:     source,
		Suggestion: "increase the operation deadline or check for slow storage",
		Err:        cause,
	}
}

// NewNotFoundError reports a missing source or unknown identifier.
func NewNotFoundError(source string, cause error) *LoadError {
	return &LoadError{
		Code:       ErrNotFound,
		Severity:   SeverityError,
		Message:    "not found",
		Source:     source,
		Suggestion: "verify the path exists and has not been moved or deleted",
		Err:        cause,
	}
}

// NewCriticalError wraps an unexpected fault (typically a recovered
// panic) at the worker boundary.
func NewCriticalError(source, message string, cause error) *LoadError {
	return &LoadError{
		Code:       ErrCorrupted,
		Severity:   SeverityCritical,
		Message:    message,
		Source:     source,
		Suggestion: "report this failure; the load path hit an unexpected fault",
		Err:        cause,
	}
}
