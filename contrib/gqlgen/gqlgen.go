// Package gqlgen serves neoql operations from a gqlgen server.
//
// Register the Extension on the handler and call Resolve from the root
// resolvers that the engine answers:
//
//	srv := handler.New(generated.NewExecutableSchema(cfg))
//	srv.Use(gqlgen.Extension{Engine: e})
//	srv.SetErrorPresenter(gqlgen.ErrorPresenter)
//
//	func (r *queryResolver) Movies(ctx context.Context, where *MovieWhere) ([]*Movie, error) {
//		return gqlgen.ResolveAs[[]*Movie](ctx)
//	}
//
// The operation is compiled and executed once, on the first root field
// that resolves; other root fields read their value from the same result.
package gqlgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/gqlgen/graphql"

	"github.com/syssam/neoql/engine"
)

// ErrNoOperation is returned by Resolve when the context carries no
// operation intercepted by the Extension.
var ErrNoOperation = errors.New("gqlgen: no neoql operation in context")

// Executor runs an operation. *engine.Engine implements it.
type Executor interface {
	Execute(ctx context.Context, r *engine.Request) (*engine.Result, error)
}

// Extension is a gqlgen handler extension that attaches the operation to
// the context for Resolve.
type Extension struct {
	Engine Executor
}

var _ interface {
	graphql.HandlerExtension
	graphql.OperationInterceptor
} = Extension{}

// ExtensionName returns the name of the extension.
func (Extension) ExtensionName() string {
	return "NeoQL"
}

// Validate checks the extension is configured.
func (x Extension) Validate(graphql.ExecutableSchema) error {
	if x.Engine == nil {
		return errors.New("gqlgen: nil engine")
	}
	return nil
}

// InterceptOperation attaches a lazily executed operation to the context.
func (x Extension) InterceptOperation(ctx context.Context, next graphql.OperationHandler) graphql.ResponseHandler {
	oc := graphql.GetOperationContext(ctx)
	op := &operation{
		exec: x.Engine,
		req: &engine.Request{
			Query:         oc.RawQuery,
			OperationName: oc.OperationName,
			Variables:     oc.Variables,
		},
	}
	return next(context.WithValue(ctx, operationKey{}, op))
}

type operationKey struct{}

// operation executes a request at most once.
type operation struct {
	exec Executor
	req  *engine.Request
	once sync.Once
	res  *engine.Result
	err  error
}

func (op *operation) result(ctx context.Context) (*engine.Result, error) {
	op.once.Do(func() {
		op.res, op.err = op.exec.Execute(ctx, op.req)
	})
	return op.res, op.err
}

// Resolve returns the value of the resolving root field, keyed by its
// response name.
func Resolve(ctx context.Context) (any, error) {
	op, ok := ctx.Value(operationKey{}).(*operation)
	if !ok {
		return nil, ErrNoOperation
	}
	res, err := op.result(ctx)
	if err != nil {
		return nil, err
	}
	fc := graphql.GetFieldContext(ctx)
	if fc == nil {
		return nil, ErrNoOperation
	}
	return res.Data[fc.Field.Alias], nil
}

// ResolveAs is like Resolve but decodes the value into T through its JSON
// form, the shape gqlgen models are generated for.
func ResolveAs[T any](ctx context.Context) (T, error) {
	var out T
	v, err := Resolve(ctx)
	if err != nil || v == nil {
		return out, err
	}
	if err := decode(v, &out); err != nil {
		return out, fmt.Errorf("gqlgen: decode %T: %w", out, err)
	}
	return out, nil
}

func decode(v, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
