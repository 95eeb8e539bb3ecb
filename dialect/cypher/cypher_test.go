package cypher_test

import (
	"testing"

	"github.com/syssam/neoql/dialect/cypher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMatchReturn(t *testing.T) {
	movie := cypher.NewNode()
	stmt, err := cypher.Build(
		&cypher.Match{
			Pattern: cypher.Node(movie, "Movie"),
			Where:   cypher.Eq(movie.Prop("title"), cypher.NewParam("The Matrix")),
		},
		&cypher.Return{Items: []cypher.Item{cypher.Pass(movie)}},
	)
	require.NoError(t, err)
	assert.Equal(t, "MATCH (this0:Movie)\nWHERE this0.title = $param0\nRETURN this0", stmt.Text)
	assert.Equal(t, map[string]any{"param0": "The Matrix"}, stmt.Params)
}

func TestNamingFollowsRenderOrder(t *testing.T) {
	movie, actor, list := cypher.NewNode(), cypher.NewNode(), cypher.NewVariable()
	// actor is built first but rendered after movie.
	_ = actor
	stmt, err := cypher.Build(
		&cypher.Match{Pattern: cypher.Node(movie, "Movie").Related("ACTED_IN", cypher.In, actor, "Actor")},
		&cypher.Return{Items: []cypher.Item{cypher.As(cypher.Collect(actor), list)}},
	)
	require.NoError(t, err)
	assert.Equal(t, "MATCH (this0:Movie)<-[:ACTED_IN]-(this1:Actor)\nRETURN collect(this1) AS var2", stmt.Text)
}

func TestUnrenderedParamsAreDropped(t *testing.T) {
	n := cypher.NewNode()
	unused := cypher.NewParam(42)
	_ = unused
	stmt, err := cypher.Build(
		&cypher.Match{Pattern: cypher.Node(n, "Movie")},
		&cypher.Return{Items: []cypher.Item{cypher.As(cypher.Count(n), cypher.NewVariable())}},
	)
	require.NoError(t, err)
	assert.Empty(t, stmt.Params)
	assert.NotNil(t, stmt.Params)
}

func TestNamedParams(t *testing.T) {
	n := cypher.NewNode()
	t.Run("Shared", func(t *testing.T) {
		stmt, err := cypher.Build(
			&cypher.Match{Pattern: cypher.Node(n), Where: cypher.And(
				cypher.Eq(n.Prop("a"), cypher.NamedParam("jwt", map[string]any{"sub": "u1"})),
				cypher.Eq(n.Prop("b"), cypher.NamedParam("jwt", map[string]any{"sub": "u1"})),
				cypher.Eq(n.Prop("c"), cypher.NewParam(1)),
			)},
		)
		require.NoError(t, err)
		assert.Equal(t, "MATCH (this0)\nWHERE this0.a = $jwt AND this0.b = $jwt AND this0.c = $param0", stmt.Text)
		assert.Len(t, stmt.Params, 2)
	})
	t.Run("Conflict", func(t *testing.T) {
		_, err := cypher.Build(
			&cypher.Match{Pattern: cypher.Node(n), Where: cypher.And(
				cypher.Eq(n.Prop("a"), cypher.NamedParam("x", 1)),
				cypher.Eq(n.Prop("b"), cypher.NamedParam("x", 2)),
			)},
		)
		require.Error(t, err)
	})
	t.Run("GeneratedSkipsTaken", func(t *testing.T) {
		stmt, err := cypher.Build(
			&cypher.Match{Pattern: cypher.Node(n), Where: cypher.And(
				cypher.Eq(n.Prop("a"), cypher.NamedParam("param0", "x")),
				cypher.Eq(n.Prop("b"), cypher.NewParam("y")),
			)},
		)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"param0": "x", "param1": "y"}, stmt.Params)
	})
}

func TestLogicalParentheses(t *testing.T) {
	n := cypher.NamedVariable("n")
	a := cypher.Eq(n.Prop("a"), cypher.Lit(1))
	b := cypher.Eq(n.Prop("b"), cypher.Lit(2))
	c := cypher.Eq(n.Prop("c"), cypher.Lit(3))
	tests := []struct {
		name string
		expr cypher.Expr
		want string
	}{
		{"flatten", cypher.And(a, cypher.And(b, c)), "n.a = 1 AND n.b = 2 AND n.c = 3"},
		{"nested or", cypher.And(a, cypher.Or(b, c)), "n.a = 1 AND (n.b = 2 OR n.c = 3)"},
		{"nested and", cypher.Or(a, cypher.And(b, c)), "n.a = 1 OR (n.b = 2 AND n.c = 3)"},
		{"not", cypher.Not(cypher.Or(a, b)), "NOT (n.a = 1 OR n.b = 2)"},
		{"single", cypher.And(nil, a, nil), "n.a = 1"},
		{"is null", cypher.IsNull(n.Prop("a")), "n.a IS NULL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := cypher.Build(&cypher.With{Star: true, Where: tt.expr})
			require.NoError(t, err)
			assert.Equal(t, "WITH *\nWHERE "+tt.want, stmt.Text)
		})
	}
	assert.Nil(t, cypher.And())
	assert.Nil(t, cypher.Or(nil, nil))
}

func TestLiterals(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{true, "true"},
		{7, "7"},
		{int64(-3), "-3"},
		{1.5, "1.5"},
		{`say "hi"\n`, `"say \"hi\"\\n"`},
		{"line\nbreak", `"line\nbreak"`},
		{[]any{0, "a"}, `[0, "a"]`},
		{map[string]any{"b": 1, "a": 2}, "{ a: 2, b: 1 }"},
	}
	for _, tt := range tests {
		stmt, err := cypher.Build(&cypher.Return{Items: []cypher.Item{{Expr: cypher.Lit(tt.in)}}})
		require.NoError(t, err)
		assert.Equal(t, "RETURN "+tt.want, stmt.Text)
	}
	_, err := cypher.Build(&cypher.Return{Items: []cypher.Item{{Expr: cypher.Lit(struct{}{})}}})
	require.Error(t, err)
}

func TestEscaping(t *testing.T) {
	n := cypher.NewNode()
	stmt, err := cypher.Build(
		&cypher.Match{Pattern: cypher.Node(n, "My Label").Related("HAS`TICK", cypher.Out, nil)},
		&cypher.Return{Items: []cypher.Item{{Expr: n.Prop("first-name")}}},
	)
	require.NoError(t, err)
	assert.Equal(t, "MATCH (this0:`My Label`)-[:`HAS``TICK`]->()\nRETURN this0.`first-name`", stmt.Text)
}

func TestProjectionAndMap(t *testing.T) {
	movie, actors := cypher.NewNode(), cypher.NewVariable()
	stmt, err := cypher.Build(&cypher.Return{Items: []cypher.Item{
		{Expr: cypher.Project(movie).Prop("title").Set("actors", actors)},
		{Expr: cypher.NewMap()},
		{Expr: cypher.Project(movie)},
		{Expr: cypher.NewMap().Set("a", cypher.Lit(1)).Set("a", cypher.Lit(2)).Set("b", cypher.Null)},
	}})
	require.NoError(t, err)
	assert.Equal(t, "RETURN this0 { .title, actors: var1 }, {}, {}, { a: 2, b: null }", stmt.Text)
}

func TestCallIndentsBody(t *testing.T) {
	movie, actor, list := cypher.NewNode(), cypher.NewNode(), cypher.NewVariable()
	stmt, err := cypher.Build(
		&cypher.Match{Pattern: cypher.Node(movie, "Movie")},
		&cypher.Call{
			Import: []*cypher.Variable{movie},
			Body: []cypher.Clause{
				&cypher.Match{Pattern: cypher.Node(movie).Related("ACTED_IN", cypher.In, actor, "Actor")},
				&cypher.Return{Items: []cypher.Item{cypher.As(cypher.Collect(cypher.Project(actor).Prop("name")), list)}},
			},
		},
		&cypher.Return{Items: []cypher.Item{{Expr: cypher.Project(movie).Prop("title").Set("actors", list)}}},
	)
	require.NoError(t, err)
	want := "MATCH (this0:Movie)\n" +
		"CALL {\n" +
		"    WITH this0\n" +
		"    MATCH (this0)<-[:ACTED_IN]-(this1:Actor)\n" +
		"    RETURN collect(this1 { .name }) AS var2\n" +
		"}\n" +
		"RETURN this0 { .title, actors: var2 }"
	assert.Equal(t, want, stmt.Text)
}

func TestWithPaging(t *testing.T) {
	n := cypher.NewNode()
	stmt, err := cypher.Build(&cypher.With{
		Items:   []cypher.Item{cypher.Pass(n)},
		OrderBy: []cypher.Order{{Expr: n.Prop("title"), Desc: true}, {Expr: n.Prop("id")}},
		Skip:    cypher.NewParam(int64(10)),
		Limit:   cypher.Lit(5),
	})
	require.NoError(t, err)
	assert.Equal(t, "WITH this0\nORDER BY this0.title DESC, this0.id ASC\nSKIP $param0\nLIMIT 5", stmt.Text)
}

func TestWriteClauses(t *testing.T) {
	row, post := cypher.NewVariable(), cypher.NewNode()
	stmt, err := cypher.Build(
		&cypher.Unwind{List: cypher.NewParam([]any{map[string]any{"title": "x"}}), As: row},
		&cypher.Create{Pattern: cypher.Node(post, "Post")},
		&cypher.Set{Items: []cypher.SetItem{{Target: post, Merge: true, Value: row}}},
		&cypher.Set{Items: []cypher.SetItem{{Target: post.Prop("n"), Value: cypher.Plus(post.Prop("n"), cypher.Lit(1))}}},
		&cypher.Delete{Detach: true, Exprs: []cypher.Expr{post}},
	)
	require.NoError(t, err)
	assert.Equal(t, "UNWIND $param0 AS var0\nCREATE (this1:Post)\nSET this1 += var0\nSET this1.n = this1.n + 1\nDETACH DELETE this1", stmt.Text)
}

func TestSubqueryExpressions(t *testing.T) {
	n, m := cypher.NewNode(), cypher.NewNode()
	stmt, err := cypher.Build(&cypher.Return{Items: []cypher.Item{
		{Expr: cypher.Exists(&cypher.Match{Pattern: cypher.Node(n).Related("KNOWS", cypher.Undirected, m), Where: cypher.Eq(m.Prop("a"), cypher.Lit(1))})},
		{Expr: cypher.CountOf(cypher.RawClause("(this0)--()"))},
	}})
	require.NoError(t, err)
	assert.Equal(t, "RETURN EXISTS { MATCH (this0)-[:KNOWS]-(this1)\nWHERE this1.a = 1 }, COUNT { (this0)--() }", stmt.Text)
}

func TestComprehension(t *testing.T) {
	list, i := cypher.NewVariable(), cypher.NewVariable()
	stmt, err := cypher.Build(&cypher.Return{Items: []cypher.Item{{Expr: &cypher.Comprehension{
		Var:  i,
		List: cypher.Fn("range", cypher.Lit(0), cypher.Minus(cypher.Size(list), cypher.Lit(1))),
		Map:  cypher.NewMap().Set("node", cypher.Index(list, i)),
	}}}})
	require.NoError(t, err)
	assert.Equal(t, "RETURN [var0 IN range(0, size(var1) - 1) | { node: var1[var0] }]", stmt.Text)
}

func TestBuildIsDeterministic(t *testing.T) {
	build := func() *cypher.Statement {
		n := cypher.NewNode()
		stmt, err := cypher.Build(
			&cypher.Match{Pattern: cypher.Node(n, "A"), Where: cypher.Or(
				cypher.Eq(n.Prop("x"), cypher.NewParam("a")),
				cypher.InList(n.Prop("y"), cypher.NewParam([]any{"b", "c"})),
			)},
			&cypher.Return{Items: []cypher.Item{cypher.As(cypher.FnDistinct("count", n), cypher.NewVariable())}},
		)
		require.NoError(t, err)
		return stmt
	}
	a, b := build(), build()
	assert.Equal(t, a, b)
	assert.Equal(t, "MATCH (this0:A)\nWHERE this0.x = $param0 OR this0.y IN $param1\nRETURN count(DISTINCT this0) AS var1", a.Text)
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "OUT", cypher.Out.String())
	assert.Equal(t, "IN", cypher.In.String())
	assert.Equal(t, "UNDIRECTED", cypher.Undirected.String())
}

func TestMentions(t *testing.T) {
	tests := []struct {
		text, name string
		want       bool
	}{
		{"RETURN 1 AS x", "x", true},
		{"RETURN 1 AS xy", "x", false},
		{"RETURN 1 AS yx", "x", false},
		{"RETURN $x AS y", "x", false},
		{"RETURN x, xy", "xy", true},
		{"RETURN xy, x", "x", true},
		{"MATCH (n) WHERE n.id = $id RETURN n", "$id", true},
		{"MATCH (n) WHERE n.id = $identity RETURN n", "$id", false},
		{"RETURN $jwt.sub AS s", "$jwt", true},
		{"RETURN 1 AS x", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cypher.Mentions(tt.text, tt.name))
		})
	}
}

func TestReduce(t *testing.T) {
	n, acc, v := cypher.NewNode(), cypher.NewVariable(), cypher.NewVariable()
	shortest := &cypher.Reduce{
		Acc:  acc,
		Init: cypher.Null,
		Var:  v,
		List: cypher.Collect(n.Prop("title")),
		Expr: cypher.Case(cypher.Or(cypher.IsNull(acc), cypher.Lt(cypher.Size(v), cypher.Size(acc))), v, acc),
	}
	stmt, err := cypher.Build(
		&cypher.Match{Pattern: cypher.Node(n, "Movie")},
		&cypher.Return{Items: []cypher.Item{{Expr: shortest}}},
	)
	require.NoError(t, err)
	assert.Equal(t, "MATCH (this0:Movie)\nRETURN reduce(var1 = null, var2 IN collect(this0.title) | CASE WHEN var1 IS NULL OR size(var2) < size(var1) THEN var2 ELSE var1 END)", stmt.Text)
}

func TestSplice(t *testing.T) {
	stmt, err := cypher.Build(
		&cypher.Call{Body: []cypher.Clause{
			cypher.Splice("MATCH (m:Movie)\nWHERE m.year > $year\nRETURN m", cypher.NamedParam("year", int64(1999))),
		}},
	)
	require.NoError(t, err)
	assert.Equal(t, "CALL {\n    MATCH (m:Movie)\n    WHERE m.year > $year\n    RETURN m\n}", stmt.Text)
	assert.Equal(t, map[string]any{"year": int64(1999)}, stmt.Params)
}
