// Package engine runs GraphQL operations against a graph database: it
// compiles each operation with the current schema version and executes the
// resulting statement through a dialect.Executor.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/neoql"
	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/compiler"
	"github.com/syssam/neoql/dialect"
	"github.com/syssam/neoql/dialect/cypher"
	"github.com/syssam/neoql/metrics"
	"github.com/syssam/neoql/schema"
)

// DataColumn is the column compiled statements return the response in.
const DataColumn = "data"

// ErrNoData is returned when a statement yields no response row.
var ErrNoData = errors.New("engine: statement returned no data")

// Engine compiles and executes operations. It is safe for concurrent use.
type Engine struct {
	store   *schema.Store
	exec    *dialect.StatsExecutor
	log     *slog.Logger
	metrics *metrics.Collector
	slow    time.Duration
	cur     atomic.Pointer[compiled]
}

// compiled pairs a schema version with its compiler.
type compiled struct {
	schema   *schema.Schema
	compiler *compiler.Compiler
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics sets the collector compilations and executions are recorded
// on.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = c
	}
}

// WithSlowThreshold sets the duration above which executions are logged as
// slow. Default is 100ms.
func WithSlowThreshold(d time.Duration) Option {
	return func(e *Engine) {
		e.slow = d
	}
}

// New returns an engine reading schemas from store and running statements
// on exec.
func New(store *schema.Store, exec dialect.Executor, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("engine: nil schema store")
	}
	if exec == nil {
		return nil, errors.New("engine: nil executor")
	}
	e := &Engine{store: store, log: slog.Default(), slow: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(e)
	}
	e.exec = dialect.NewStatsExecutor(exec,
		dialect.WithSlowThreshold(e.slow),
		dialect.WithSlowQueryLog(e.log),
	)
	return e, nil
}

// Request is one GraphQL operation.
type Request struct {
	// ID identifies the request in logs. A random id is used if empty.
	ID            string
	Query         string
	OperationName string
	Variables     map[string]any
	// Claims of the caller. Nil falls back to the claims of the context.
	Claims authorization.Claims
}

// Result is the outcome of an executed operation.
type Result struct {
	RequestID string
	Data      map[string]any
	Statement *cypher.Statement
}

// Error is a failed execution of a compiled statement. It matches
// neoql.ErrAuthorizationDenied when the statement was stopped by an
// authorization assertion.
type Error struct {
	RequestID string
	Err       error
}

// Error returns the error string.
func (e *Error) Error() string {
	return fmt.Sprintf("engine: request %s: %v", e.RequestID, e.Err)
}

// Unwrap returns the execution failure.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is neoql.ErrAuthorizationDenied and the
// failure was a forbidden assertion.
func (e *Error) Is(target error) bool {
	return target == neoql.ErrAuthorizationDenied && dialect.IsForbidden(e.Err)
}

// Compile compiles r against the current schema without running it.
func (e *Engine) Compile(ctx context.Context, r *Request) (*cypher.Statement, error) {
	id := requestID(r)
	return e.compile(ctx, id, r)
}

// Execute compiles r and runs the statement.
func (e *Engine) Execute(ctx context.Context, r *Request) (*Result, error) {
	id := requestID(r)
	stmt, err := e.compile(ctx, id, r)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := e.exec.Run(ctx, stmt.Text, stmt.Params)
	e.metrics.ObserveExec(time.Since(start), err)
	if err != nil {
		e.log.WarnContext(ctx, "statement failed",
			"request_id", id,
			"code", metrics.StatusCode(err),
			"transient", dialect.IsTransient(err),
			"error", err,
		)
		return nil, &Error{RequestID: id, Err: err}
	}
	data, err := extract(rows)
	if err != nil {
		return nil, &Error{RequestID: id, Err: err}
	}
	return &Result{RequestID: id, Data: data, Statement: stmt}, nil
}

// Stats returns the execution statistics collected so far.
func (e *Engine) Stats() dialect.StatsSnapshot {
	return e.exec.RunStats().Stats()
}

func (e *Engine) compile(ctx context.Context, id string, r *Request) (*cypher.Statement, error) {
	claims := r.Claims
	if claims == nil {
		claims = authorization.FromContext(ctx)
	}
	req, err := compiler.NewRequest(r.Query, r.OperationName, r.Variables, claims)
	if err != nil {
		e.log.WarnContext(ctx, "invalid request", "request_id", id, "error", err)
		return nil, err
	}
	c, err := e.compiler()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	stmt, err := c.Compile(req)
	e.metrics.ObserveCompile(string(req.Operation.Operation), time.Since(start), err)
	if err != nil {
		e.log.WarnContext(ctx, "compile failed",
			"request_id", id,
			"operation", r.OperationName,
			"code", neoql.Code(err),
			"error", err,
		)
		return nil, err
	}
	e.log.DebugContext(ctx, "compiled request",
		"request_id", id,
		"operation", r.OperationName,
		"duration", time.Since(start),
	)
	return stmt, nil
}

// compiler returns the compiler of the current schema version, building it
// on first use after a swap.
func (e *Engine) compiler() (*compiler.Compiler, error) {
	s := e.store.Load()
	if cur := e.cur.Load(); cur != nil && cur.schema == s {
		return cur.compiler, nil
	}
	c, err := compiler.New(s, compiler.WithLogger(e.log))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.cur.Store(&compiled{schema: s, compiler: c})
	return c, nil
}

func requestID(r *Request) string {
	if r.ID != "" {
		return r.ID
	}
	return uuid.NewString()
}

// extract returns the response map of the first row.
func extract(rows []dialect.Record) (map[string]any, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	switch data := rows[0][DataColumn].(type) {
	case map[string]any:
		return data, nil
	case dialect.Record:
		return data, nil
	case nil:
		return nil, ErrNoData
	default:
		return nil, fmt.Errorf("engine: unexpected %s column of type %T", DataColumn, data)
	}
}
