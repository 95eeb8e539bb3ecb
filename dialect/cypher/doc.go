// Package cypher provides a small builder for Cypher statements.
//
// Expressions and clauses are plain values assembled into a tree and rendered
// once by Build. Variables and parameters carry no names until they render:
// the first node variable to appear becomes this0, the next variable of any
// kind this1 or var1, and parameters are numbered separately as $param0,
// $param1, and so on.
//
//	movie := cypher.NewNode()
//	title := cypher.NewParam("The Matrix")
//	stmt, err := cypher.Build(
//	    &cypher.Match{
//	        Pattern: cypher.Node(movie, "Movie"),
//	        Where:   cypher.Eq(movie.Prop("title"), title),
//	    },
//	    &cypher.Return{Items: []cypher.Item{cypher.Pass(movie)}},
//	)
//
// renders
//
//	MATCH (this0:Movie)
//	WHERE this0.title = $param0
//	RETURN this0
//
// with Params {"param0": "The Matrix"}. A parameter that is built but never
// rendered does not appear in Params.
package cypher
