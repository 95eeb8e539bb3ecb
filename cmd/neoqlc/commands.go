package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/compiler"
)

var errNoSchema = errors.New("no schema: set --schema or the schema key of the config")

func newCheckCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate a schema and list its root fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, s, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range slices.Sorted(maps.Keys(s.Query)) {
				fmt.Fprintf(out, "query\t%s\t%s\n", name, s.Query[name].Kind)
			}
			for _, name := range slices.Sorted(maps.Keys(s.Mutation)) {
				fmt.Fprintf(out, "mutation\t%s\t%s\n", name, s.Mutation[name].Kind)
			}
			return nil
		},
	}
}

type compileFlags struct {
	query     string
	operation string
	variables string
	claims    string
}

func newCompileCommand(opts *options) *cobra.Command {
	f := &compileFlags{}
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile an operation and print the statement as JSON",
		Long: `Compile an operation and print {"text": ..., "params": ...}.

Values of --query, --variables and --claims starting with @ are read from
the named file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, s, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			query, err := read(f.query)
			if err != nil {
				return err
			}
			var (
				vars   map[string]any
				claims authorization.Claims
			)
			if err := decode(f.variables, &vars); err != nil {
				return fmt.Errorf("variables: %w", err)
			}
			if err := decode(f.claims, &claims); err != nil {
				return fmt.Errorf("claims: %w", err)
			}
			c, err := compiler.New(s, compiler.WithLogger(log))
			if err != nil {
				return err
			}
			r, err := compiler.NewRequest(query, f.operation, vars, claims)
			if err != nil {
				return err
			}
			stmt, err := c.Compile(r)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"text": stmt.Text, "params": stmt.Params})
		},
	}
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "GraphQL document")
	cmd.Flags().StringVarP(&f.operation, "operation", "o", "", "operation name")
	cmd.Flags().StringVar(&f.variables, "variables", "", "variables as a JSON object")
	cmd.Flags().StringVar(&f.claims, "claims", "", "caller claims as a JSON object")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

// read returns s, or the contents of the file s names after a leading @.
func read(s string) (string, error) {
	path, ok := strings.CutPrefix(s, "@")
	if !ok {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decode(s string, v any) error {
	s, err := read(s)
	if err != nil || s == "" {
		return err
	}
	return json.Unmarshal([]byte(s), v)
}
