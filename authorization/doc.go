// Package authorization evaluates @authorization rules for the compiler.
//
// A rule is attached to a type or field, guards a set of operations and is
// enforced in one of two modes:
//
//   - filter: the rule predicate is ANDed into the match, so nodes the caller
//     may not see are never returned
//   - validate: the request is rejected when the predicate does not hold
//
// Rules are written as directive arguments:
//
//	type Post @node @authorization(
//	    filter: [{ where: { node: { author: { eq: "$jwt.sub" } } } }]
//	    validate: [{ operations: [CREATE], where: { jwt: { roles: { includes: "admin" } } } }]
//	) {
//	    title: String!
//	    author: String!
//	}
//
// # Claims
//
// The caller's identity is a Claims map, usually the payload of a verified
// bearer token. Claim references ("$jwt.sub", or the keys of a jwt object)
// are resolved with a dotted-path lookup. Claims travel with the request
// context:
//
//	ctx = authorization.NewContext(ctx, claims)
//
// # Evaluation
//
// Before anything is emitted, Resolve substitutes the claims into each rule
// and folds what can be decided at compile time. Resolution is three-valued,
// so a missing claim can never make a rule pass: a rule that is still
// undecided after resolution counts as false. Only predicates over stored
// node data survive into the statement.
//
// Multiple rules for the same operation are combined with AND.
package authorization
