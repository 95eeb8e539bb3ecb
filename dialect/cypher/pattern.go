package cypher

import "strings"

// Direction of a relationship pattern, seen from its left node.
type Direction int

// Relationship directions.
const (
	Out Direction = iota
	In
	Undirected
)

// String returns the direction name used in schema directives.
func (d Direction) String() string {
	switch d {
	case In:
		return "IN"
	case Undirected:
		return "UNDIRECTED"
	default:
		return "OUT"
	}
}

// Pattern is a path pattern starting at a node.
type Pattern struct {
	start nodePat
	steps []step
}

type nodePat struct {
	v      *Variable
	labels []string
}

type step struct {
	typ string
	rv  *Variable
	dir Direction
	to  nodePat
}

// Node starts a pattern at (v:labels). A nil v renders an anonymous node.
func Node(v *Variable, labels ...string) *Pattern {
	return &Pattern{start: nodePat{v: v, labels: labels}}
}

// Related extends the pattern with a relationship of the given type and
// direction to (v:labels).
func (p *Pattern) Related(typ string, dir Direction, v *Variable, labels ...string) *Pattern {
	p.steps = append(p.steps, step{typ: typ, dir: dir, to: nodePat{v: v, labels: labels}})
	return p
}

// RelatedAs is like Related and also binds the relationship to rv.
func (p *Pattern) RelatedAs(rv *Variable, typ string, dir Direction, v *Variable, labels ...string) *Pattern {
	p.steps = append(p.steps, step{typ: typ, rv: rv, dir: dir, to: nodePat{v: v, labels: labels}})
	return p
}

// Cypher implements Expr.
func (p *Pattern) Cypher(env *Env) string {
	var b strings.Builder
	p.start.write(env, &b)
	for _, s := range p.steps {
		var rel strings.Builder
		if s.rv != nil {
			rel.WriteString(s.rv.Cypher(env))
		}
		if s.typ != "" {
			rel.WriteByte(':')
			rel.WriteString(escapeName(s.typ))
		}
		inner := ""
		if rel.Len() > 0 {
			inner = "[" + rel.String() + "]"
		}
		switch s.dir {
		case In:
			b.WriteString("<-" + inner + "-")
		case Out:
			b.WriteString("-" + inner + "->")
		default:
			b.WriteString("-" + inner + "-")
		}
		s.to.write(env, &b)
	}
	return b.String()
}

func (n nodePat) write(env *Env, b *strings.Builder) {
	b.WriteByte('(')
	if n.v != nil {
		b.WriteString(n.v.Cypher(env))
	}
	for _, l := range n.labels {
		b.WriteByte(':')
		b.WriteString(escapeName(l))
	}
	b.WriteByte(')')
}
