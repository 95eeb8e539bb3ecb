package neoql

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the compile-time failure taxonomy.
var (
	// ErrMalformedDirective is returned when a schema directive has a missing
	// or badly shaped argument. It is fatal to schema construction.
	ErrMalformedDirective = errors.New("neoql: malformed directive")

	// ErrUnsupportedSelection is returned when a query references a field or
	// shape that cannot be translated.
	ErrUnsupportedSelection = errors.New("neoql: unsupported selection")

	// ErrAuthorizationDenied is returned when a validate-mode authorization
	// rule fails. No statement is emitted.
	ErrAuthorizationDenied = errors.New("neoql: authorization denied")

	// ErrInvalidArgument is returned for malformed field arguments such as
	// negative page sizes, unknown sort directions or bad cursors.
	ErrInvalidArgument = errors.New("neoql: invalid argument")
)

// MalformedDirectiveError reports a directive that could not be parsed into
// an annotation.
type MalformedDirectiveError struct {
	Directive string // Directive name without '@'
	Type      string // Type the directive is attached to
	Field     string // Field the directive is attached to, if any
	Message   string
	Cause     error
}

// Error returns the error string.
func (e *MalformedDirectiveError) Error() string {
	var b strings.Builder
	b.WriteString("neoql: malformed directive @")
	b.WriteString(e.Directive)
	if e.Type != "" {
		b.WriteString(" on ")
		b.WriteString(e.Type)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Is reports whether the target error matches ErrMalformedDirective.
func (e *MalformedDirectiveError) Is(err error) bool {
	return err == ErrMalformedDirective
}

// Unwrap returns the underlying error.
func (e *MalformedDirectiveError) Unwrap() error {
	return e.Cause
}

// NewMalformedDirectiveError returns a new MalformedDirectiveError.
func NewMalformedDirectiveError(directive, msg string) *MalformedDirectiveError {
	return &MalformedDirectiveError{Directive: directive, Message: msg}
}

// At returns a copy of the error located on the given type and field.
func (e *MalformedDirectiveError) At(typ, field string) *MalformedDirectiveError {
	c := *e
	c.Type, c.Field = typ, field
	return &c
}

// IsMalformedDirective returns true if the error is a MalformedDirectiveError.
func IsMalformedDirective(err error) bool {
	if err == nil {
		return false
	}
	var e *MalformedDirectiveError
	return errors.As(err, &e) || errors.Is(err, ErrMalformedDirective)
}

// UnsupportedSelectionError reports a selection the compiler cannot translate.
type UnsupportedSelectionError struct {
	Path    string // Response path of the selection, e.g. "movies.actors"
	Message string
}

// Error returns the error string.
func (e *UnsupportedSelectionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("neoql: unsupported selection %q: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("neoql: unsupported selection: %s", e.Message)
}

// Is reports whether the target error matches ErrUnsupportedSelection.
func (e *UnsupportedSelectionError) Is(err error) bool {
	return err == ErrUnsupportedSelection
}

// NewUnsupportedSelectionError returns a new UnsupportedSelectionError.
func NewUnsupportedSelectionError(path, format string, args ...any) *UnsupportedSelectionError {
	return &UnsupportedSelectionError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// IsUnsupportedSelection returns true if the error is an UnsupportedSelectionError.
func IsUnsupportedSelection(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedSelectionError
	return errors.As(err, &e) || errors.Is(err, ErrUnsupportedSelection)
}

// AuthorizationDeniedError reports a failed validate-mode authorization rule.
type AuthorizationDeniedError struct {
	Type      string // Type or "Type.field" the rule is attached to
	Operation string // READ, CREATE, UPDATE, DELETE, AGGREGATE
	Reason    string
}

// Error returns the error string.
func (e *AuthorizationDeniedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("neoql: authorization denied %s on %s: %s", e.Operation, e.Type, e.Reason)
	}
	return fmt.Sprintf("neoql: authorization denied %s on %s", e.Operation, e.Type)
}

// Is reports whether the target error matches ErrAuthorizationDenied.
func (e *AuthorizationDeniedError) Is(err error) bool {
	return err == ErrAuthorizationDenied
}

// NewAuthorizationDeniedError returns a new AuthorizationDeniedError.
func NewAuthorizationDeniedError(typ, op, reason string) *AuthorizationDeniedError {
	return &AuthorizationDeniedError{Type: typ, Operation: op, Reason: reason}
}

// IsAuthorizationDenied returns true if the error is an AuthorizationDeniedError.
func IsAuthorizationDenied(err error) bool {
	if err == nil {
		return false
	}
	var e *AuthorizationDeniedError
	return errors.As(err, &e) || errors.Is(err, ErrAuthorizationDenied)
}

// InvalidArgumentError reports a malformed field argument.
type InvalidArgumentError struct {
	Path     string // Response path of the field
	Argument string // Argument name
	Message  string
	Cause    error
}

// Error returns the error string.
func (e *InvalidArgumentError) Error() string {
	var b strings.Builder
	b.WriteString("neoql: invalid argument")
	if e.Argument != "" {
		fmt.Fprintf(&b, " %q", e.Argument)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " on %q", e.Path)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Is reports whether the target error matches ErrInvalidArgument.
func (e *InvalidArgumentError) Is(err error) bool {
	return err == ErrInvalidArgument
}

// Unwrap returns the underlying error.
func (e *InvalidArgumentError) Unwrap() error {
	return e.Cause
}

// NewInvalidArgumentError returns a new InvalidArgumentError.
func NewInvalidArgumentError(path, arg, format string, args ...any) *InvalidArgumentError {
	return &InvalidArgumentError{Path: path, Argument: arg, Message: fmt.Sprintf(format, args...)}
}

// IsInvalidArgument returns true if the error is an InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidArgumentError
	return errors.As(err, &e) || errors.Is(err, ErrInvalidArgument)
}

// Code returns the stable extension code for a compile-time error, or an
// empty string for errors outside the taxonomy.
func Code(err error) string {
	switch {
	case IsMalformedDirective(err):
		return "MALFORMED_DIRECTIVE"
	case IsUnsupportedSelection(err):
		return "UNSUPPORTED_SELECTION"
	case IsAuthorizationDenied(err):
		return "FORBIDDEN"
	case IsInvalidArgument(err):
		return "INVALID_ARGUMENT"
	default:
		return ""
	}
}
