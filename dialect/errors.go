package dialect

import (
	"errors"
	"strings"
)

// Neo4j status codes the rest of the module special-cases.
const (
	CodeDeadlockDetected       = "Neo.TransientError.Transaction.DeadlockDetected"
	CodeLockClientStopped      = "Neo.TransientError.Transaction.LockClientStopped"
	CodeServiceUnavailable     = "Neo.TransientError.General.DatabaseUnavailable"
	CodeConstraintValidation   = "Neo.ClientError.Schema.ConstraintValidationFailed"
	CodeProcedureCallFailed    = "Neo.ClientError.Procedure.ProcedureCallFailed"
	CodeSyntaxError            = "Neo.ClientError.Statement.SyntaxError"
	CodeParameterMissing       = "Neo.ClientError.Statement.ParameterMissing"
	CodeForbidden              = "Neo.ClientError.Security.Forbidden"
	CodeTransactionNotFound    = "Neo.ClientError.Transaction.TransactionNotFound"
	CodeTransactionTerminated  = "Neo.ClientError.Transaction.Terminated"
	CodeStatementResultInvalid = "Neo.ClientError.Statement.ArgumentError"

	transientPrefix = "Neo.TransientError."
)

// ForbiddenMarker is the message raised by compiled validate-mode
// authorization assertions.
const ForbiddenMarker = "neoql/FORBIDDEN"

// Error is a driver or execution failure identified by a status code,
// independent of its message. Cause records the error that was being
// handled when this one was raised.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error returns the error string.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("dialect: ")
	b.WriteString(e.Code)
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

// StatusCode returns the status code of the error.
func (e *Error) StatusCode() string {
	return e.Code
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError returns a new Error with the given code and message.
func NewError(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap returns a new Error with the given code that records cause as the
// error it arose from.
func Wrap(cause error, code, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// statusCoder is implemented by errors that expose a status code.
// Implemented by *Error and driver errors adapted to this package.
type statusCoder interface {
	StatusCode() string
}

// causer is implemented by errors that expose their cause directly.
type causer interface {
	Cause() error
}

// maxChainDepth bounds the cause-chain walk. Chains are acyclic and a few
// hops deep; the bound only guards against hand-built cycles.
const maxChainDepth = 64

// HasCode reports whether err, or any error in its cause chain, carries the
// given status code. An error without a cause only matches its own code.
func HasCode(err error, code string) bool {
	return findCode(err, func(c string) bool { return c == code })
}

// HasCodePrefix reports whether err, or any error in its cause chain,
// carries a status code with the given prefix.
func HasCodePrefix(err error, prefix string) bool {
	return findCode(err, func(c string) bool { return strings.HasPrefix(c, prefix) })
}

func findCode(err error, match func(string) bool) bool {
	for i := 0; err != nil && i < maxChainDepth; i++ {
		if e, ok := err.(statusCoder); ok && match(e.StatusCode()) {
			return true
		}
		err = next(err)
	}
	return false
}

// next returns the error err was caused by.
func next(err error) error {
	if c, ok := err.(causer); ok {
		return c.Cause()
	}
	return errors.Unwrap(err)
}

// IsTransient reports whether the failure is a transient database condition
// that may succeed on retry.
func IsTransient(err error) bool {
	return HasCodePrefix(err, transientPrefix)
}

// IsConstraintError reports whether the failure is a schema constraint
// violation, e.g. a duplicate value in a unique property.
func IsConstraintError(err error) bool {
	return HasCode(err, CodeConstraintValidation)
}

// IsForbidden reports whether the failure was raised by a compiled
// authorization assertion or by the database security layer.
func IsForbidden(err error) bool {
	if HasCode(err, CodeForbidden) {
		return true
	}
	for i := 0; err != nil && i < maxChainDepth; i++ {
		if e, ok := err.(statusCoder); ok && e.StatusCode() == CodeProcedureCallFailed &&
			strings.Contains(err.Error(), ForbiddenMarker) {
			return true
		}
		err = next(err)
	}
	return false
}
