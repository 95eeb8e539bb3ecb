package gqlgen

import (
	"context"
	"errors"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/syssam/neoql"
	"github.com/syssam/neoql/dialect"
	"github.com/syssam/neoql/engine"
)

// Extension codes of failures outside the compile-time taxonomy.
const (
	CodeTransient = "TRANSIENT"
	CodeConflict  = "CONSTRAINT_VIOLATION"
	CodeInternal  = "INTERNAL"
)

// ErrorPresenter presents neoql failures with a stable extensions.code.
// Driver failures are not described to the client beyond their code.
func ErrorPresenter(ctx context.Context, err error) *gqlerror.Error {
	gerr := graphql.DefaultErrorPresenter(ctx, err)
	code, retryable := classify(err)
	if code == "" {
		return gerr
	}
	if code == CodeInternal || code == CodeTransient {
		gerr.Message = "statement execution failed"
	}
	if gerr.Extensions == nil {
		gerr.Extensions = make(map[string]any)
	}
	gerr.Extensions["code"] = code
	if retryable {
		gerr.Extensions["retryable"] = true
	}
	var ee *engine.Error
	if errors.As(err, &ee) {
		gerr.Extensions["requestId"] = ee.RequestID
	}
	return gerr
}

// classify returns the extension code of err and whether a retry may
// succeed.
func classify(err error) (string, bool) {
	if code := neoql.Code(err); code != "" {
		return code, false
	}
	var ee *engine.Error
	if !errors.As(err, &ee) {
		return "", false
	}
	switch {
	case dialect.IsTransient(err):
		return CodeTransient, true
	case dialect.IsConstraintError(err):
		return CodeConflict, false
	default:
		return CodeInternal, false
	}
}
