package dialect

import "context"

// Cypher is the query language emitted by the compiler.
const Cypher = "cypher"

// Record is one result row keyed by column name.
type Record map[string]any

// Executor runs a statement with its parameters and returns the result rows.
// Implementations report driver failures as *Error.
type Executor interface {
	Run(ctx context.Context, query string, params map[string]any) ([]Record, error)
}

// ExecutorFunc is an adapter which allows the use of ordinary functions
// as executors.
type ExecutorFunc func(ctx context.Context, query string, params map[string]any) ([]Record, error)

// Run returns f(ctx, query, params).
func (f ExecutorFunc) Run(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	return f(ctx, query, params)
}
