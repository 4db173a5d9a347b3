// Package ogerr defines the stable, machine-readable error kinds the
// driver reports to callers, built on github.com/cockroachdb/errors so
// that wrapping, hints, and errors.Is/As chains work the way the rest of
// the pack's services build errors.
package ogerr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind is a stable, machine-readable classification of a driver failure.
type Kind string

const (
	ConnectionFailed    Kind = "connection_failed"
	AuthenticationFailed Kind = "authentication_failed"
	Timeout             Kind = "timeout"
	Canceled            Kind = "canceled"
	ServerError         Kind = "server_error"
	ProtocolViolation   Kind = "protocol_violation"
	OperationInProgress Kind = "operation_in_progress"
	Broken              Kind = "broken"
	ConfigurationInvalid Kind = "configuration_invalid"
)

// Error is the concrete error type returned across package boundaries.
// It always carries a Kind so callers can classify failures without
// string matching.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Kind() Kind    { return e.kind }

// New builds a Kind-tagged error from a message.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, err: errors.NewWithDepth(1, msg)}
}

// Newf builds a Kind-tagged error from a format string.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{kind: kind, err: errors.NewWithDepthf(1, format, args...)}
}

// Wrap attaches a Kind to an existing error, preserving its chain.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: errors.WrapWithDepth(1, err, msg)}
}

// Wrapf attaches a Kind to an existing error with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: errors.WrapWithDepthf(1, err, format, args...)}
}

// WithHint attaches a user-facing remediation hint, e.g. "set
// SslMode=VerifyFull or TrustServerCertificate=true".
func WithHint(err error, hint string) error {
	return errors.WithHint(err, hint)
}

// GetKind returns the Kind carried by err, walking the wrap chain, and
// false if err (or any cause in its chain) does not carry one.
func GetKind(err error) (Kind, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.kind, true
	}
	return "", false
}

// Is reports whether err is classified as kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := GetKind(err)
	return ok && k == kind
}

// ServerFields carries the parsed contents of a backend ErrorResponse or
// NoticeResponse (the field-tagged bag described by the protocol).
type ServerFields struct {
	Severity   string
	SQLState   string
	Message    string
	Detail     string
	Hint       string
	Position   string
	Where      string
	Schema     string
	Table      string
	Column     string
	DataType   string
	Constraint string
	File       string
	Line       string
	Routine    string
}

// ServerErr wraps a ServerFields bag as a ServerError-kind error. Detail
// is only rendered into the message when includeDetail is true, matching
// the IncludeErrorDetail connection-string option.
type ServerErr struct {
	Fields        ServerFields
	IncludeDetail bool
}

func (e *ServerErr) Error() string {
	if e.IncludeDetail && e.Fields.Detail != "" {
		return fmt.Sprintf("%s: %s (SQLSTATE %s): %s", e.Fields.Severity, e.Fields.Message, e.Fields.SQLState, e.Fields.Detail)
	}
	return fmt.Sprintf("%s: %s (SQLSTATE %s)", e.Fields.Severity, e.Fields.Message, e.Fields.SQLState)
}

// AsDriverError classifies a ServerErr into the standard Kind-tagged
// wrapper so callers can use ogerr.Is uniformly.
func (e *ServerErr) AsDriverError() error {
	return &Error{kind: ServerError, err: errors.WithStack(e)}
}

// Retryable reports whether the server-reported sqlstate class is one a
// pool-level retrying-open strategy may retry: class 08 (connection
// exception) and 57 (operator intervention) are transient by convention.
func (f ServerFields) Retryable() bool {
	if len(f.SQLState) < 2 {
		return false
	}
	class := f.SQLState[:2]
	return class == "08" || class == "57"
}
