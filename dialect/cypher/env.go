package cypher

import (
	"fmt"
	"reflect"
	"strconv"
)

// Env assigns names to variables and parameters while a statement renders.
// Names are handed out in the order they are first rendered, so the same
// clause tree always renders to the same text. An Env belongs to exactly one
// render and is never shared.
type Env struct {
	vars      map[*Variable]string
	params    map[*Param]string
	values    map[string]any
	nextVar   int
	nextParam int
	err       error
}

func newEnv() *Env {
	return &Env{
		vars:   make(map[*Variable]string),
		params: make(map[*Param]string),
		values: make(map[string]any),
	}
}

// varName returns the name of v, allocating a fresh one on first use.
func (e *Env) varName(v *Variable) string {
	if v.name != "" {
		return v.name
	}
	if n, ok := e.vars[v]; ok {
		return n
	}
	n := v.prefix + strconv.Itoa(e.nextVar)
	e.nextVar++
	e.vars[v] = n
	return n
}

// paramName returns the name of p and records its value.
func (e *Env) paramName(p *Param) string {
	if n, ok := e.params[p]; ok {
		return n
	}
	n := p.name
	if n == "" {
		for {
			n = "param" + strconv.Itoa(e.nextParam)
			e.nextParam++
			if _, taken := e.values[n]; !taken {
				break
			}
		}
	} else if prev, ok := e.values[n]; ok && !reflect.DeepEqual(prev, p.value) {
		e.fail(fmt.Errorf("cypher: parameter %q bound to conflicting values", n))
	}
	e.params[p] = n
	e.values[n] = p.value
	return n
}

func (e *Env) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
