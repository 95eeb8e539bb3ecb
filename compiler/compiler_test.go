package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/neoql"
	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/compiler"
	"github.com/syssam/neoql/dialect/cypher"
	"github.com/syssam/neoql/schema"
)

const sdl = `
type Movie @node @limit(default: 2, max: 100) {
	title: String!
	released: Int @alias(property: "year")
	actors: [Actor!]! @relationship(type: "ACTED_IN", direction: IN)
	rating: Float @cypher(statement: "MATCH (this)<-[r:RATED]-() RETURN avg(r.stars) AS s", columnName: "s") @sortable(byValue: true)
	score: Float @cypher(statement: "MATCH (this)<-[r:RATED]-() RETURN sum(r.stars) AS s", columnName: "s") @sortable
	similar(first: Int = 3): [Movie!]! @cypher(statement: "MATCH (this)-[:LIKE]->(m:Movie) RETURN m LIMIT $first", columnName: "m")
}

type Actor @node @authorization(filter: [{ where: { node: { owner: { eq: "$jwt.sub" } } } }]) {
	name: String!
	owner: String
	movies: [Movie!]! @relationship(type: "ACTED_IN", direction: OUT)
}

type Genre @node {
	name: String
}

type Post @node @authorization(validate: [{ operations: [CREATE, DELETE], where: { jwt: { roles: { includes: "admin" } } } }]) {
	title: String
}

type Stats {
	total: Int
}

type Query {
	stats: Stats @cypher(statement: "MATCH (m:Movie) RETURN { total: count(m) } AS s", columnName: "s")
}
`

var admin = authorization.Claims{"sub": "u1", "roles": []any{"admin"}}

func load(t *testing.T, opts ...schema.Option) *schema.Schema {
	t.Helper()
	s, err := schema.Parse("schema.graphql", sdl, opts...)
	require.NoError(t, err)
	return s
}

func compile(t *testing.T, s *schema.Schema, query string, vars map[string]any, claims authorization.Claims) (*cypher.Statement, error) {
	t.Helper()
	c, err := compiler.New(s)
	require.NoError(t, err)
	r, err := compiler.NewRequest(query, "", vars, claims)
	require.NoError(t, err)
	return c.Compile(r)
}

func TestCompileRead(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		claims authorization.Claims
		text   string
		params map[string]any
	}{
		{
			name:  "default limit",
			query: `{ movies { title } }`,
			text: `CALL {
    MATCH (this0:Movie)
    WITH this0
    LIMIT $param0
    RETURN collect(this0 { .title }) AS var1
}
RETURN { movies: var1 } AS data`,
			params: map[string]any{"param0": int64(2)},
		},
		{
			name:  "limit clamped to max",
			query: `{ movies(limit: 500) { title } }`,
			text: `CALL {
    MATCH (this0:Movie)
    WITH this0
    LIMIT $param0
    RETURN collect(this0 { .title }) AS var1
}
RETURN { movies: var1 } AS data`,
			params: map[string]any{"param0": int64(100)},
		},
		{
			name:  "unbounded type",
			query: `{ genres { name } }`,
			text: `CALL {
    MATCH (this0:Genre)
    RETURN collect(this0 { .name }) AS var1
}
RETURN { genres: var1 } AS data`,
			params: map[string]any{},
		},
		{
			name:  "where sort and offset",
			query: `{ movies(where: { title: { eq: "Matrix" } }, sort: [{ released: DESC }], offset: 1, limit: 5) { title released } }`,
			text: `CALL {
    MATCH (this0:Movie)
    WHERE this0.title = $param0
    WITH this0
    ORDER BY this0.year DESC
    SKIP $param1
    LIMIT $param2
    RETURN collect(this0 { .title, released: this0.year }) AS var1
}
RETURN { movies: var1 } AS data`,
			params: map[string]any{"param0": "Matrix", "param1": int64(1), "param2": int64(5)},
		},
		{
			name:  "typename",
			query: `{ __typename movies { __typename title } }`,
			text: `CALL {
    MATCH (this0:Movie)
    WITH this0
    LIMIT $param0
    RETURN collect(this0 { __typename: "Movie", .title }) AS var1
}
RETURN { __typename: "Query", movies: var1 } AS data`,
			params: map[string]any{"param0": int64(2)},
		},
		{
			name:  "nested relationship filtered for anonymous callers",
			query: `{ movies { title actors { name } } }`,
			text: `CALL {
    MATCH (this0:Movie)
    WITH this0
    LIMIT $param0
    CALL {
        WITH this0
        MATCH (this0)<-[:ACTED_IN]-(this1:Actor)
        WHERE false
        RETURN collect(this1 { .name }) AS var2
    }
    RETURN collect(this0 { .title, actors: var2 }) AS var3
}
RETURN { movies: var3 } AS data`,
			params: map[string]any{"param0": int64(2)},
		},
		{
			name:   "nested relationship filtered by claim",
			query:  `{ movies { title actors { name } } }`,
			claims: admin,
			text: `CALL {
    MATCH (this0:Movie)
    WITH this0
    LIMIT $param0
    CALL {
        WITH this0
        MATCH (this0)<-[:ACTED_IN]-(this1:Actor)
        WHERE this1.owner = $param1
        RETURN collect(this1 { .name }) AS var2
    }
    RETURN collect(this0 { .title, actors: var2 }) AS var3
}
RETURN { movies: var3 } AS data`,
			params: map[string]any{"param0": int64(2), "param1": "u1"},
		},
		{
			name:   "relationship quantifier",
			query:  `{ movies(where: { actors: { some: { name: { eq: "Keanu" } } } }) { title } }`,
			claims: admin,
			text: `CALL {
    MATCH (this0:Movie)
    WHERE EXISTS { MATCH (this0)<-[:ACTED_IN]-(this1:Actor)
    WHERE this1.owner = $param0 AND this1.name = $param1 }
    WITH this0
    LIMIT $param2
    RETURN collect(this0 { .title }) AS var2
}
RETURN { movies: var2 } AS data`,
			params: map[string]any{"param0": "u1", "param1": "Keanu", "param2": int64(2)},
		},
		{
			name:  "sort by inlined statement",
			query: `{ movies(sort: [{ rating: ASC }]) { title } }`,
			text: `CALL {
    MATCH (this0:Movie)
    WITH this0
    ORDER BY head(COLLECT { WITH this0 AS this MATCH (this)<-[r:RATED]-() RETURN avg(r.stars) AS s }) ASC
    LIMIT $param0
    RETURN collect(this0 { .title }) AS var1
}
RETURN { movies: var1 } AS data`,
			params: map[string]any{"param0": int64(2)},
		},
		{
			name:  "sort by materialized statement",
			query: `{ movies(sort: [{ score: DESC }]) { title score } }`,
			text: `CALL {
    MATCH (this0:Movie)
    CALL {
        WITH this0
        CALL {
            WITH this0
            WITH this0 AS this
            MATCH (this)<-[r:RATED]-() RETURN sum(r.stars) AS s
        }
        WITH s AS var1
        RETURN head(collect(var1)) AS var2
    }
    WITH this0, var2
    ORDER BY var2 DESC
    LIMIT $param0
    RETURN collect(this0 { .title, score: var2 }) AS var3
}
RETURN { movies: var3 } AS data`,
			params: map[string]any{"param0": int64(2)},
		},
		{
			name:  "root custom field",
			query: `{ stats { total } }`,
			text: `CALL {
    CALL {
        MATCH (m:Movie) RETURN { total: count(m) } AS s
    }
    WITH s AS this0
    RETURN head(collect(this0 { .total })) AS var1
}
RETURN { stats: var1 } AS data`,
			params: map[string]any{},
		},
	}
	s := load(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := compile(t, s, tt.query, nil, tt.claims)
			require.NoError(t, err)
			assert.Equal(t, tt.text, stmt.Text)
			assert.Equal(t, tt.params, stmt.Params)
		})
	}
}

func TestCompilePaginationPolicy(t *testing.T) {
	s := load(t, schema.WithFeatures(neoql.Features{Pagination: neoql.PaginationPolicy{DefaultLimit: 10, MaxLimit: 50}}))
	tests := []struct {
		query string
		want  int64
	}{
		{`{ genres { name } }`, 10},
		{`{ genres(limit: 20) { name } }`, 20},
		{`{ genres(limit: 80) { name } }`, 50},
		{`{ movies { title } }`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			stmt, err := compile(t, s, tt.query, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"param0": tt.want}, stmt.Params)
		})
	}
}

func TestCompileCount(t *testing.T) {
	s := load(t)
	t.Run("TotalCountIsNotCollected", func(t *testing.T) {
		for _, root := range []string{"movies", "genres"} {
			stmt, err := compile(t, s, `{ `+root+`Connection { totalCount } }`, nil, nil)
			require.NoError(t, err)
			assert.Contains(t, stmt.Text, "RETURN { totalCount: count(this0) } AS var1")
			assert.NotContains(t, stmt.Text, "collect")
			assert.NotContains(t, stmt.Text, "LIMIT")
			assert.Empty(t, stmt.Params)
		}
	})
	t.Run("Aggregate", func(t *testing.T) {
		stmt, err := compile(t, s, `{ moviesAggregate { count } }`, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, `CALL {
    MATCH (this0:Movie)
    RETURN { count: count(DISTINCT this0) } AS var1
}
RETURN { moviesAggregate: var1 } AS data`, stmt.Text)
		assert.Empty(t, stmt.Params)

		stmt, err = compile(t, s, `{ moviesAggregate(where: { title: { eq: "some-title" } }) { count } }`, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, `CALL {
    MATCH (this0:Movie)
    WHERE this0.title = $param0
    RETURN { count: count(DISTINCT this0) } AS var1
}
RETURN { moviesAggregate: var1 } AS data`, stmt.Text)
		assert.Equal(t, map[string]any{"param0": "some-title"}, stmt.Params)
	})
	t.Run("ConnectionAggregate", func(t *testing.T) {
		stmt, err := compile(t, s, `{ moviesConnection { aggregate { count { nodes } } } }`, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, `CALL {
    MATCH (this0:Movie)
    RETURN { aggregate: { count: { nodes: count(DISTINCT this0) } } } AS var1
}
RETURN { moviesConnection: var1 } AS data`, stmt.Text)
		assert.Empty(t, stmt.Params)
	})
}

func TestCompileMutation(t *testing.T) {
	s := load(t)
	const create = `mutation { createPosts(input: [{ title: "x" }]) { posts { title } } }`
	t.Run("CreateAllowed", func(t *testing.T) {
		stmt, err := compile(t, s, create, nil, admin)
		require.NoError(t, err)
		assert.Equal(t, `CALL {
    UNWIND $param0 AS var0
    CREATE (this1:Post)
    SET this1 += var0
    RETURN { posts: collect(this1 { .title }) } AS var2
}
RETURN { createPosts: var2 } AS data`, stmt.Text)
		assert.Equal(t, map[string]any{"param0": []any{map[string]any{"title": "x"}}}, stmt.Params)
	})
	t.Run("CreateDenied", func(t *testing.T) {
		for _, claims := range []authorization.Claims{nil, {"sub": "u2", "roles": []any{"user"}}} {
			stmt, err := compile(t, s, create, nil, claims)
			require.Error(t, err)
			assert.Nil(t, stmt)
			assert.True(t, neoql.IsAuthorizationDenied(err))
		}
	})
	t.Run("Delete", func(t *testing.T) {
		stmt, err := compile(t, s, `mutation { deletePosts(where: { title: { eq: "x" } }) { nodesDeleted relationshipsDeleted } }`, nil, admin)
		require.NoError(t, err)
		assert.Equal(t, `CALL {
    MATCH (this0:Post)
    WHERE this0.title = $param0
    OPTIONAL MATCH (this0)-[var1]-()
    WITH collect(DISTINCT this0) AS var2, collect(DISTINCT var1) AS var3
    CALL {
        WITH var2
        UNWIND var2 AS var4
        DETACH DELETE var4
    }
    RETURN { nodesDeleted: size(var2), relationshipsDeleted: size(var3) } AS var5
}
RETURN { deletePosts: var5 } AS data`, stmt.Text)
		assert.Equal(t, map[string]any{"param0": "x"}, stmt.Params)
	})
	t.Run("Update", func(t *testing.T) {
		stmt, err := compile(t, s, `mutation { updateMovies(where: { title: { eq: "x" } }, update: { released: { add: 1 } }) { info { nodesUpdated } } }`, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, `CALL {
    MATCH (this0:Movie)
    WHERE this0.title = $param0
    SET this0.year = this0.year + $param1
    RETURN { info: { nodesUpdated: count(this0) } } AS var1
}
RETURN { updateMovies: var1 } AS data`, stmt.Text)
		assert.Equal(t, map[string]any{"param0": "x", "param1": int64(1)}, stmt.Params)
	})
}

func TestCompileFragments(t *testing.T) {
	s := load(t)
	const query = `query Q($skip: Boolean!) { movies { ...M released @skip(if: $skip) } }
fragment M on Movie { title }`
	tests := []struct {
		skip bool
		proj string
	}{
		{true, "this0 { .title }"},
		{false, "this0 { .title, released: this0.year }"},
	}
	for _, tt := range tests {
		stmt, err := compile(t, s, query, map[string]any{"skip": tt.skip}, nil)
		require.NoError(t, err)
		assert.Contains(t, stmt.Text, "RETURN collect("+tt.proj+") AS var1")
	}
}

func TestCompileDeterministic(t *testing.T) {
	s := load(t)
	const query = `{ movies(where: { title: { eq: "a" } }, sort: [{ score: ASC }]) { title score actors(limit: 1) { name } } }`
	first, err := compile(t, s, query, nil, admin)
	require.NoError(t, err)
	for range 5 {
		again, err := compile(t, s, query, nil, admin)
		require.NoError(t, err)
		assert.Equal(t, first.Text, again.Text)
		assert.Equal(t, first.Params, again.Params)
	}
}

func TestCompileErrors(t *testing.T) {
	s := load(t)
	tests := []struct {
		name  string
		query string
		check func(error) bool
	}{
		{"unknown root", `{ nope { x } }`, neoql.IsUnsupportedSelection},
		{"unknown field", `{ movies { nope } }`, neoql.IsUnsupportedSelection},
		{"subscription", `subscription { movies { title } }`, neoql.IsUnsupportedSelection},
		{"negative limit", `{ movies(limit: -1) { title } }`, neoql.IsInvalidArgument},
		{"negative offset", `{ movies(offset: -3) { title } }`, neoql.IsInvalidArgument},
		{"malformed cursor", `{ moviesConnection(after: "zzz") { edges { cursor } } }`, neoql.IsInvalidArgument},
		{"sort by relationship", `{ movies(sort: [{ actors: ASC }]) { title } }`, neoql.IsInvalidArgument},
		{"sort direction", `{ movies(sort: [{ title: UP }]) { title } }`, neoql.IsInvalidArgument},
		{"case insensitive disabled", `{ movies(where: { title: { caseInsensitive: { eq: "x" } } }) { title } }`, neoql.IsInvalidArgument},
		{"nested create", `mutation { createMovies(input: [{ title: "x", actors: [] }]) { info { nodesCreated } } }`, neoql.IsUnsupportedSelection},
		{"delete denied", `mutation { deletePosts { nodesDeleted } }`, neoql.IsAuthorizationDenied},
		{"scalar with selection", `{ movies { title { x } } }`, neoql.IsUnsupportedSelection},
		{"edges counted on root", `{ moviesAggregate { count { edges } } }`, neoql.IsUnsupportedSelection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := compile(t, s, tt.query, nil, nil)
			require.Error(t, err)
			assert.Nil(t, stmt)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}
}

func TestCompileCaseInsensitive(t *testing.T) {
	s := load(t, schema.WithFeatures(neoql.Features{CaseInsensitive: true}))
	stmt, err := compile(t, s, `{ genres(where: { name: { caseInsensitive: { eq: "Drama" } } }) { name } }`, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, `CALL {
    MATCH (this0:Genre)
    WHERE toLower(this0.name) = toLower($param0)
    RETURN collect(this0 { .name }) AS var1
}
RETURN { genres: var1 } AS data`, stmt.Text)
	assert.Equal(t, map[string]any{"param0": "Drama"}, stmt.Params)
}

func TestCursor(t *testing.T) {
	for _, n := range []int{0, 1, 42} {
		c := compiler.EncodeCursor(n)
		got, err := compiler.DecodeCursor(c)
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
	assert.Equal(t, "YXJyYXljb25uZWN0aW9uOjA=", compiler.EncodeCursor(0))
	for _, bad := range []string{"zzz", "Zm9vOjE=", "YXJyYXljb25uZWN0aW9uOng="} {
		_, err := compiler.DecodeCursor(bad)
		assert.ErrorIs(t, err, compiler.ErrMalformedCursor, bad)
	}
}

func TestNew(t *testing.T) {
	_, err := compiler.New(nil)
	require.Error(t, err)
	_, err = compiler.New(load(t), compiler.WithLogger(nil))
	require.Error(t, err)

	_, err = compiler.NewRequest(`{ movies { title } }`, "Missing", nil, nil)
	require.Error(t, err)
	_, err = compiler.NewRequest(`{ movies {`, "", nil, nil)
	require.Error(t, err)
}
