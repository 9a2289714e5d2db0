package planner

import (
	"github.com/wbrown/janus-odata/odata"
)

// Expr is a compiled expression evaluated against an Env
type Expr func(env *Env) (interface{}, error)

// Env is the evaluation environment of compiled expressions: the bound
// parameter values, the current row ($it) and any lambda range variables.
type Env struct {
	Params []interface{}
	It     odata.Entity

	name   string
	value  odata.Entity
	parent *Env
}

// NewEnv creates an environment over the given parameter values
func NewEnv(params []interface{}) *Env {
	return &Env{Params: params}
}

// Row returns a copy of env positioned on row
func (e *Env) Row(row odata.Entity) *Env {
	return &Env{Params: e.Params, It: row}
}

// with binds a lambda range variable in a child scope
func (e *Env) with(name string, value odata.Entity) *Env {
	return &Env{Params: e.Params, It: e.It, name: name, value: value, parent: e}
}

// lookup resolves a lambda range variable
func (e *Env) lookup(name string) (odata.Entity, bool) {
	for env := e; env != nil; env = env.parent {
		if env.name == name && env.parent != nil {
			return env.value, true
		}
	}
	return nil, false
}

// Truthy reports whether a filter result selects the row. Null and
// non-boolean results do not.
func Truthy(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}
