package cypher

import "strings"

// Statement is a rendered Cypher statement with the parameters it references.
// Every parameter in Params occurs in Text and every $name in Text that was
// produced by a Param has an entry in Params.
type Statement struct {
	Text   string
	Params map[string]any
}

// Build renders the clauses, one per line, into a Statement. It fails if
// two parameters with the same fixed name are bound to different values or
// a literal cannot be rendered.
func Build(clauses ...Clause) (*Statement, error) {
	env := newEnv()
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c == nil {
			continue
		}
		parts = append(parts, c.Cypher(env))
	}
	if env.err != nil {
		return nil, env.err
	}
	return &Statement{Text: strings.Join(parts, "\n"), Params: env.values}, nil
}

// String returns the statement text.
func (s *Statement) String() string { return s.Text }
