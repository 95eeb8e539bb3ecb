// Package schema builds the annotated schema model the compiler reads.
//
// A schema is written in GraphQL SDL. Object types marked @node are stored
// in the graph; their fields are properties unless a directive says
// otherwise:
//
//	type Movie @node @limit(default: 10, max: 100) {
//	    title: String!
//	    released: Int @alias(property: "year")
//	    actors: [Actor!]! @relationship(type: "ACTED_IN", direction: IN)
//	    rating: Float @cypher(statement: "MATCH (this)<-[r:RATED]-() RETURN avg(r.stars) AS s", columnName: "s")
//	}
//
// New turns a parsed document into a Schema and derives the root fields of
// every node type: movies, moviesConnection and moviesAggregate on Query,
// createMovies, updateMovies and deleteMovies on Mutation.
//
// A Schema is immutable once built. Store publishes new versions atomically
// and Watch rebuilds it when its SDL file changes.
package schema
