// Package neoql holds the feature switches and the error taxonomy shared by
// the packages that compile GraphQL operations into Cypher.
//
// A typical deployment loads a schema, keeps it in a store and serves
// operations through an engine:
//
//	s, err := schema.Load("schema.graphql", schema.WithFeatures(cfg.Features))
//	if err != nil {
//		return err
//	}
//	e, err := engine.New(schema.NewStore(s), executor)
//	if err != nil {
//		return err
//	}
//	res, err := e.Execute(ctx, &engine.Request{Query: `{ movies { title } }`})
//
// Errors raised while compiling are one of MalformedDirectiveError,
// UnsupportedSelectionError, AuthorizationDeniedError or
// InvalidArgumentError; Code maps them to stable extension codes.
package neoql
