// Package dialect defines the boundary between the compiler and the graph
// database driver.
//
// The compiler never talks to the database itself. It produces a statement
// text plus a parameter map, and whatever executes it is consumed through the
// Executor interface:
//
//	type Executor interface {
//	    Run(ctx context.Context, query string, params map[string]any) ([]Record, error)
//	}
//
// Driver adapters (Bolt sessions, HTTP endpoints, in-memory fakes) implement
// Executor. Failures are reported as *Error values carrying a stable status
// code and, optionally, the error that caused them:
//
//	err := &dialect.Error{
//	    Code:  "Neo.TransientError.Transaction.DeadlockDetected",
//	    Cause: netErr,
//	}
//
// Callers special-case codes with HasCode, which walks the cause chain:
//
//	if dialect.HasCode(err, dialect.CodeDeadlockDetected) {
//	    // retry the transaction
//	}
//
// # Statistics
//
// StatsExecutor wraps an Executor with counters and slow-query detection:
//
//	exec := dialect.NewStatsExecutor(bolt,
//	    dialect.WithSlowThreshold(200*time.Millisecond),
//	    dialect.WithSlowQueryLog(slog.Default()),
//	)
//
// # Sub-packages
//
//   - dialect/cypher: Cypher expression and clause builder used by the compiler
package dialect
