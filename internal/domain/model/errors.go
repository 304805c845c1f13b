package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the core reports to its callers.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindNotBound
	KindIntegrity
	KindConflict
	KindUpstream
	KindTimeout
	KindConfig
	KindUnauthorized
)

var kindNames = map[ErrorKind]string{
	KindUnknown:      "unknown",
	KindValidation:   "validation",
	KindNotBound:     "not_bound",
	KindIntegrity:    "integrity",
	KindConflict:     "conflict",
	KindUpstream:     "upstream",
	KindTimeout:      "timeout",
	KindConfig:       "config",
	KindUnauthorized: "unauthorized",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Machine-readable codes returned to API clients.
const (
	CodeInvalidKeyFormat      = "INVALID_KEY_FORMAT"
	CodeKeyNotSet             = "PTERO_KEY_NOT_SET"
	CodeKeyNeedsRebind        = "PTERO_KEY_NEEDS_REBIND"
	CodeUpstreamFailed        = "UPSTREAM_FAILED"
	CodeUpstreamTimeout       = "UPSTREAM_TIMEOUT"
	CodeRollbackFailed        = "ROLLBACK_FAILED"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeNotifierNotConfigured = "NOTIFIER_NOT_CONFIGURED"
	CodeConfigInvalid         = "CONFIG_INVALID"
)

// Error is the structured error type used across the domain. Upstream errors
// carry the remote status code and body for diagnostics.
type Error struct {
	Kind       ErrorKind
	Code       string
	Message    string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// ValidationError reports malformed caller input.
func ValidationError(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotBoundError reports that an operator has no credential on file.
func NotBoundError(ownerID string) *Error {
	return &Error{
		Kind:    KindNotBound,
		Code:    CodeKeyNotSet,
		Message: fmt.Sprintf("no control panel key bound for operator %q", ownerID),
	}
}

// IntegrityError reports a credential that failed authentication on decrypt,
// which usually means the master key was rotated.
func IntegrityError(ownerID string, err error) *Error {
	return &Error{
		Kind:    KindIntegrity,
		Code:    CodeKeyNeedsRebind,
		Message: fmt.Sprintf("stored key for operator %q cannot be decrypted, rebind required", ownerID),
		Err:     err,
	}
}

// ConflictError reports a maintenance transition rejected because the state
// is already in the target mode.
func ConflictError(reason, message string) *Error {
	return &Error{Kind: KindConflict, Code: reason, Message: message}
}

// UpstreamError reports a failed remote call.
func UpstreamError(message string, statusCode int, body string, err error) *Error {
	return &Error{
		Kind:       KindUpstream,
		Code:       CodeUpstreamFailed,
		Message:    message,
		StatusCode: statusCode,
		Body:       body,
		Err:        err,
	}
}

// TimeoutError reports a bounded call that exceeded its deadline.
func TimeoutError(message string, err error) *Error {
	return &Error{Kind: KindTimeout, Code: CodeUpstreamTimeout, Message: message, Err: err}
}

// ConfigError reports missing or invalid process configuration.
func ConfigError(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Code: CodeConfigInvalid, Message: fmt.Sprintf(format, args...)}
}

// UnauthorizedError reports a missing or rejected identity token.
func UnauthorizedError(message string, err error) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: message, Err: err}
}
