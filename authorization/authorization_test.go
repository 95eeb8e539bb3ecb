package authorization_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/neoql"
	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/querylanguage"
)

type obj = querylanguage.Object

func kv(k string, v any) querylanguage.KeyValue { return querylanguage.KeyValue{Key: k, Value: v} }

func TestClaimsLookup(t *testing.T) {
	claims := authorization.Claims{
		"sub": "u1",
		"org": map[string]any{"id": "o1", "tier": map[string]any{"name": "gold"}},
	}
	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"sub", "u1", true},
		{"org.id", "o1", true},
		{"org.tier.name", "gold", true},
		{"org.missing", nil, false},
		{"sub.deeper", nil, false},
		{"missing", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v, ok := claims.Lookup(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, v)
		})
	}
	var none authorization.Claims
	_, ok := none.Lookup("sub")
	assert.False(t, ok)
	assert.False(t, none.Authenticated())
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, authorization.FromContext(ctx))
	claims := authorization.Claims{"sub": "u1"}
	assert.Equal(t, claims, authorization.FromContext(authorization.NewContext(ctx, claims)))
}

func TestResolve(t *testing.T) {
	claims := authorization.Claims{"sub": "u1", "roles": []any{"editor"}, "level": float64(3)}
	tests := []struct {
		name string
		p    querylanguage.P
		want string
	}{
		{
			name: "claim substituted into node comparison",
			p:    querylanguage.EQ(querylanguage.F("author"), querylanguage.C("sub")),
			want: `author == "u1"`,
		},
		{
			name: "static true",
			p:    querylanguage.Call(querylanguage.FuncIncludes, querylanguage.C("roles"), &querylanguage.Value{V: "editor"}),
			want: `true`,
		},
		{
			name: "static false",
			p:    querylanguage.Call(querylanguage.FuncIncludes, querylanguage.C("roles"), &querylanguage.Value{V: "admin"}),
			want: `false`,
		},
		{
			name: "numbers compare across types",
			p:    querylanguage.GTE(querylanguage.C("level"), &querylanguage.Value{V: int64(3)}),
			want: `true`,
		},
		{
			name: "missing claim is unknown",
			p:    querylanguage.EQ(querylanguage.F("author"), querylanguage.C("org")),
			want: `unknown`,
		},
		{
			name: "not unknown stays unknown",
			p:    querylanguage.Not(querylanguage.EQ(querylanguage.F("author"), querylanguage.C("org"))),
			want: `unknown`,
		},
		{
			name: "false and unknown",
			p:    querylanguage.And(querylanguage.EQ(querylanguage.F("x"), &querylanguage.Value{V: int64(1)}), querylanguage.EQ(querylanguage.C("sub"), &querylanguage.Value{V: "u2"}), querylanguage.EQ(querylanguage.F("a"), querylanguage.C("org"))),
			want: `false`,
		},
		{
			name: "true or unknown",
			p:    querylanguage.Or(querylanguage.EQ(querylanguage.F("a"), querylanguage.C("org")), querylanguage.EQ(querylanguage.C("sub"), &querylanguage.Value{V: "u1"})),
			want: `true`,
		},
		{
			name: "residual keeps unknown",
			p:    querylanguage.Or(querylanguage.EQ(querylanguage.F("public"), &querylanguage.Value{V: true}), querylanguage.EQ(querylanguage.F("a"), querylanguage.C("org"))),
			want: `public == true || unknown`,
		},
		{
			name: "edge with false inner",
			p:    querylanguage.HasEdgeWith("owner", querylanguage.EQ(querylanguage.C("sub"), &querylanguage.Value{V: "x"})),
			want: `false`,
		},
		{
			name: "edge with true inner",
			p:    querylanguage.HasEdgeWith("owner", querylanguage.EQ(querylanguage.C("sub"), &querylanguage.Value{V: "u1"})),
			want: `has_edge(owner)`,
		},
		{
			name: "edge keeps node predicate",
			p:    querylanguage.HasEdgeWith("owner", querylanguage.EQ(querylanguage.F("id"), querylanguage.C("sub"))),
			want: `has_edge(owner, id == "u1")`,
		},
		{
			name: "nil is true",
			p:    nil,
			want: `true`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, authorization.Resolve(tt.p, claims, nil).String())
		})
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	p := querylanguage.Call(querylanguage.FuncEqualFold, querylanguage.C("sub"), &querylanguage.Value{V: "myuserid"})
	assert.Equal(t, querylanguage.True, authorization.Resolve(p, authorization.Claims{"sub": "MyUserId"}, nil))
	assert.Equal(t, querylanguage.False, authorization.Resolve(p, authorization.Claims{"sub": "otheruser"}, nil))

	in := querylanguage.Call(querylanguage.FuncInFold, querylanguage.C("sub"), &querylanguage.ListExpr{X: []querylanguage.Expr{&querylanguage.Value{V: "MYUSERID"}}})
	assert.Equal(t, querylanguage.True, authorization.Resolve(in, authorization.Claims{"sub": "myUserId"}, nil))
}

func TestResolveInput(t *testing.T) {
	p := querylanguage.EQ(querylanguage.F("author"), querylanguage.C("sub"))
	claims := authorization.Claims{"sub": "u1"}
	assert.Equal(t, querylanguage.True, authorization.Resolve(p, claims, map[string]any{"author": "u1"}))
	assert.Equal(t, querylanguage.False, authorization.Resolve(p, claims, map[string]any{"author": "u2"}))
	assert.Equal(t, querylanguage.False, authorization.Resolve(p, claims, map[string]any{}))
}

func TestParseRules(t *testing.T) {
	args := obj{
		kv("filter", []any{obj{kv("where", obj{kv("node", obj{kv("author", obj{kv("eq", "$jwt.sub")})})})}}),
		kv("validate", obj{
			kv("operations", []any{"CREATE", "UPDATE"}),
			kv("when", []any{"AFTER"}),
			kv("requireAuthentication", false),
			kv("where", obj{kv("OR", []any{
				obj{kv("jwt", obj{kv("roles", obj{kv("includes", "admin")})})},
				obj{kv("NOT", obj{kv("node", obj{kv("locked", obj{kv("eq", true)})})})},
			})}),
		}),
	}
	rules, err := authorization.ParseRules(args, false)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	filter := rules[0]
	assert.Equal(t, authorization.Filter, filter.Mode)
	assert.Equal(t, authorization.Operations, filter.Operations)
	assert.True(t, filter.RequireAuthentication)
	assert.Equal(t, `author == $jwt.sub`, filter.Where.String())

	validate := rules[1]
	assert.Equal(t, authorization.Validate, validate.Mode)
	assert.Equal(t, []authorization.Operation{authorization.Create, authorization.Update}, validate.Operations)
	assert.Equal(t, authorization.After, validate.When)
	assert.False(t, validate.RequireAuthentication)
	assert.Equal(t, `includes($jwt.roles, "admin") || !(locked == true)`, validate.Where.String())
	assert.True(t, validate.Applies(authorization.Create, authorization.After))
	assert.False(t, validate.Applies(authorization.Create, authorization.Before))
	assert.False(t, validate.Applies(authorization.Read, authorization.After))
}

func TestParseRulesErrors(t *testing.T) {
	tests := []struct {
		name string
		args obj
	}{
		{"unknown argument", obj{kv("deny", []any{})}},
		{"rule not an object", obj{kv("filter", []any{"x"})}},
		{"unknown operation", obj{kv("filter", []any{obj{kv("operations", []any{"READ", "WRITE"})}})}},
		{"when on filter", obj{kv("filter", []any{obj{kv("when", []any{"BEFORE"})}})}},
		{"unknown where key", obj{kv("filter", []any{obj{kv("where", obj{kv("user", obj{})})}})}},
		{"case insensitive disabled", obj{kv("filter", []any{obj{kv("where", obj{kv("node", obj{kv("a", obj{kv("caseInsensitive", obj{kv("eq", "x")})})})})}})}},
		{"bad requireAuthentication", obj{kv("validate", []any{obj{kv("requireAuthentication", "yes")}})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authorization.ParseRules(tt.args, false)
			require.Error(t, err)
			var re *authorization.RuleError
			assert.ErrorAs(t, err, &re)
		})
	}
}

func TestAuthorizerFilter(t *testing.T) {
	rules, err := authorization.ParseRules(obj{
		kv("filter", []any{
			obj{kv("where", obj{kv("node", obj{kv("author", obj{kv("eq", "$jwt.sub")})})})},
			obj{kv("operations", []any{"READ"}), kv("where", obj{kv("node", obj{kv("published", obj{kv("eq", true)})})})},
			obj{kv("operations", []any{"DELETE"}), kv("where", obj{kv("jwt", obj{kv("roles", obj{kv("includes", "admin")})})})},
		}),
	}, false)
	require.NoError(t, err)

	a := authorization.New(authorization.Claims{"sub": "u1", "roles": []string{"editor"}})
	assert.Equal(t, `author == "u1" && published == true`, a.Filter(rules, authorization.Read).String())
	assert.Equal(t, `author == "u1"`, a.Filter(rules, authorization.Update).String())
	assert.Equal(t, querylanguage.False, a.Filter(rules, authorization.Delete))

	anon := authorization.New(nil)
	assert.Equal(t, querylanguage.False, anon.Filter(rules, authorization.Read))
	assert.Nil(t, anon.Filter(nil, authorization.Read))
}

func TestAuthorizerValidate(t *testing.T) {
	rules, err := authorization.ParseRules(obj{
		kv("validate", []any{
			obj{kv("operations", []any{"CREATE"}), kv("where", obj{kv("jwt", obj{kv("roles", obj{kv("includes", "admin")})})})},
			obj{kv("operations", []any{"UPDATE"}), kv("where", obj{kv("node", obj{kv("author", obj{kv("eq", "$jwt.sub")})})})},
		}),
	}, false)
	require.NoError(t, err)

	t.Run("Admin", func(t *testing.T) {
		a := authorization.New(authorization.Claims{"sub": "u1", "roles": []any{"admin"}})
		p, err := a.Validate("Post", rules, authorization.Create, authorization.After, map[string]any{"title": "x"})
		require.NoError(t, err)
		assert.Nil(t, p)
	})
	t.Run("MissingRole", func(t *testing.T) {
		a := authorization.New(authorization.Claims{"sub": "u1"})
		_, err := a.Validate("Post", rules, authorization.Create, authorization.After, map[string]any{})
		require.Error(t, err)
		assert.True(t, neoql.IsAuthorizationDenied(err))
	})
	t.Run("Unauthenticated", func(t *testing.T) {
		_, err := authorization.New(nil).Validate("Post", rules, authorization.Create, authorization.After, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "authentication required")
	})
	t.Run("Residual", func(t *testing.T) {
		a := authorization.New(authorization.Claims{"sub": "u1"})
		p, err := a.Validate("Post", rules, authorization.Update, authorization.Before, nil)
		require.NoError(t, err)
		assert.Equal(t, `author == "u1"`, p.String())
	})
	t.Run("OtherOperation", func(t *testing.T) {
		p, err := authorization.New(nil).Validate("Post", rules, authorization.Read, authorization.Before, nil)
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}
