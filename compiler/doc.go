// Package compiler translates GraphQL operations into single Cypher
// statements.
//
// Each root field of an operation compiles into its own subquery, and the
// statement returns one row holding the response data:
//
//	CALL {
//	    MATCH (this0:Movie)
//	    WHERE this0.title = $param0
//	    RETURN collect(this0 { .title }) AS var1
//	}
//	RETURN { movies: var1 } AS data
//
// Authorization rules of the schema are resolved against the caller's
// claims while compiling. Filter rules narrow the match; validate rules
// either fail the compilation or are checked by the statement through
// apoc.util.validatePredicate.
//
// A Compiler is bound to one schema version. Callers that reload schemas
// build a new Compiler per version, see schema.Store.
package compiler
