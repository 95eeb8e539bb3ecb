package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sdl = `
type Genre @node {
	name: String
}

type Note @node @authorization(filter: [{ where: { node: { owner: { eq: "$jwt.sub" } } } }]) {
	owner: String
}
`

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheck(t *testing.T) {
	schema := write(t, t.TempDir(), "schema.graphql", `type Genre @node { name: String }`)
	out, err := run(t, "check", "--schema", schema)
	require.NoError(t, err)
	assert.Equal(t, `query	genres	list
query	genresAggregate	aggregate
query	genresConnection	connection
mutation	createGenres	create
mutation	deleteGenres	delete
mutation	updateGenres	update
`, out)
}

func TestCheckInvalidSchema(t *testing.T) {
	schema := write(t, t.TempDir(), "schema.graphql", `type Genre @node @limit(default: 10, max: 5) { name: String }`)
	_, err := run(t, "check", "--schema", schema)
	require.Error(t, err)
}

func TestCompile(t *testing.T) {
	dir := t.TempDir()
	schema := write(t, dir, "schema.graphql", sdl)
	out, err := run(t, "compile", "--schema", schema, "--query", `{ genres { name } }`)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"text": "CALL {\n    MATCH (this0:Genre)\n    RETURN collect(this0 { .name }) AS var1\n}\nRETURN { genres: var1 } AS data",
		"params": {}
	}`, out)
}

func TestCompileWithConfigAndClaims(t *testing.T) {
	dir := t.TempDir()
	schema := write(t, dir, "schema.graphql", sdl)
	cfg := write(t, dir, "neoql.yaml", "schema: "+schema+"\nfeatures:\n  pagination:\n    defaultLimit: 5\n")
	query := write(t, dir, "query.graphql", `query Notes { notes { owner } }`)

	out, err := run(t, "compile", "--config", cfg, "--query", "@"+query, "--claims", `{"sub": "u1"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"text": "CALL {\n    MATCH (this0:Note)\n    WHERE this0.owner = $param0\n    WITH this0\n    LIMIT $param1\n    RETURN collect(this0 { .owner }) AS var1\n}\nRETURN { notes: var1 } AS data",
		"params": {"param0": "u1", "param1": 5}
	}`, out)
}

func TestCompileErrors(t *testing.T) {
	dir := t.TempDir()
	schema := write(t, dir, "schema.graphql", sdl)
	tests := []struct {
		name string
		args []string
	}{
		{"no schema", []string{"compile", "--query", `{ genres { name } }`}},
		{"no query", []string{"compile", "--schema", schema}},
		{"bad variables", []string{"compile", "--schema", schema, "--query", `{ genres { name } }`, "--variables", `{`}},
		{"unknown field", []string{"compile", "--schema", schema, "--query", `{ shows { name } }`}},
		{"missing query file", []string{"compile", "--schema", schema, "--query", "@" + filepath.Join(dir, "missing")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
