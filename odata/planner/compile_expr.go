package planner

import (
	"fmt"
	"math"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/query"
)

// exprCompiler compiles expression nodes into closures. scope is the entity
// type $it ranges over; vars tracks lambda variables in scope.
type exprCompiler struct {
	c     *compilation
	scope *odata.EntityType
	open  bool // rows may carry aliases introduced by $apply
	vars  map[string]*odata.EntityType
}

func (x *exprCompiler) withVar(name string, t *odata.EntityType) *exprCompiler {
	vars := make(map[string]*odata.EntityType, len(x.vars)+1)
	for k, v := range x.vars {
		vars[k] = v
	}
	vars[name] = t
	return &exprCompiler{c: x.c, scope: x.scope, open: x.open, vars: vars}
}

func (x *exprCompiler) compile(n query.Node) (Expr, error) {
	if n == nil {
		return nil, nil
	}

	switch node := n.(type) {
	case *query.Constant:
		slot, err := x.c.slot(query.Position{Kind: query.LiteralConstant, Owner: node})
		if err != nil {
			return nil, err
		}
		return func(env *Env) (interface{}, error) {
			return env.Params[slot], nil
		}, nil

	case *query.PropertyAccess:
		src, err := x.entitySource(node.Source, node.Property.DeclaringType)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", node.Property.Name, err)
		}
		name := node.Property.Name
		return func(env *Env) (interface{}, error) {
			ent, err := src(env)
			if err != nil || ent == nil {
				return nil, err
			}
			return ent[name], nil
		}, nil

	case *query.OpenPropertyAccess:
		if !x.open {
			if !x.c.options.AllowOpenProperties {
				return nil, fmt.Errorf("dynamic property %s: open properties are disabled", node.Name)
			}
			if node.Source == nil && x.scope != nil && !x.scope.Open {
				return nil, fmt.Errorf("dynamic property %s on closed type %s", node.Name, x.scope.QualifiedName())
			}
		}
		src, err := x.entitySource(node.Source, nil)
		if err != nil {
			return nil, err
		}
		name := node.Name
		return func(env *Env) (interface{}, error) {
			ent, err := src(env)
			if err != nil || ent == nil {
				return nil, err
			}
			return ent[name], nil
		}, nil

	case *query.SingleNavigation, *query.CollectionNavigation, *query.RangeVariable:
		// Entity-valued nodes evaluate to the entity or collection itself
		return x.entityValued(n)

	case *query.Count:
		src, err := x.collection(node.Source)
		if err != nil {
			return nil, err
		}
		return func(env *Env) (interface{}, error) {
			items, err := src(env)
			if err != nil {
				return nil, err
			}
			return int64(len(items)), nil
		}, nil

	case *query.Lambda:
		return x.lambda(node)

	case *query.BinaryOperator:
		return x.binary(node)

	case *query.UnaryOperator:
		operand, err := x.compile(node.Operand)
		if err != nil {
			return nil, err
		}
		if node.Operator == query.OpNot {
			return func(env *Env) (interface{}, error) {
				v, err := operand(env)
				if err != nil || v == nil {
					return nil, err
				}
				b, ok := v.(bool)
				if !ok {
					return nil, fmt.Errorf("not: expected boolean, got %T", v)
				}
				return !b, nil
			}, nil
		}
		return func(env *Env) (interface{}, error) {
			v, err := operand(env)
			if err != nil || v == nil {
				return nil, err
			}
			return negate(v)
		}, nil

	case *query.Convert:
		src, err := x.compile(node.Source)
		if err != nil {
			return nil, err
		}
		target := node.TypeRef
		return func(env *Env) (interface{}, error) {
			v, err := src(env)
			if err != nil || v == nil {
				return nil, err
			}
			return cast(v, target), nil
		}, nil

	case *query.FunctionCall:
		return x.function(node)
	}

	return nil, fmt.Errorf("unsupported expression %s", n.Kind())
}

// entitySource compiles the source of a member access. A nil source is $it.
func (x *exprCompiler) entitySource(src query.Node, declaring *odata.EntityType) (func(*Env) (odata.Entity, error), error) {
	if src == nil {
		if declaring != nil && x.scope != nil && !x.open && declaring.ID != x.scope.ID {
			return nil, fmt.Errorf("declared on %s, not %s", declaring.QualifiedName(), x.scope.QualifiedName())
		}
		return func(env *Env) (odata.Entity, error) {
			return env.It, nil
		}, nil
	}
	if t := src.Type(); t.Collection || t.Kind != odata.KindEntity {
		return nil, fmt.Errorf("source %s is not a single entity", src.Kind())
	}
	expr, err := x.entityValued(src)
	if err != nil {
		return nil, err
	}
	return func(env *Env) (odata.Entity, error) {
		v, err := expr(env)
		if err != nil || v == nil {
			return nil, err
		}
		ent, _ := v.(odata.Entity)
		return ent, nil
	}, nil
}

// entityValued compiles navigation and range variable nodes
func (x *exprCompiler) entityValued(n query.Node) (Expr, error) {
	switch node := n.(type) {
	case *query.RangeVariable:
		if node.Name == query.ItVariable {
			return func(env *Env) (interface{}, error) {
				return env.It, nil
			}, nil
		}
		if _, ok := x.vars[node.Name]; !ok {
			return nil, fmt.Errorf("range variable %s is not in scope", node.Name)
		}
		name := node.Name
		return func(env *Env) (interface{}, error) {
			ent, ok := env.lookup(name)
			if !ok {
				return nil, fmt.Errorf("range variable %s is not bound", name)
			}
			return ent, nil
		}, nil

	case *query.SingleNavigation, *query.CollectionNavigation:
		var nav *odata.NavigationProperty
		var source query.Node
		if s, ok := node.(*query.SingleNavigation); ok {
			nav, source = s.Navigation, s.Source
		} else {
			c := node.(*query.CollectionNavigation)
			nav, source = c.Navigation, c.Source
		}
		src, err := x.entitySource(source, nav.DeclaringType)
		if err != nil {
			return nil, fmt.Errorf("navigation %s: %w", nav.Name, err)
		}
		name := nav.Name
		return func(env *Env) (interface{}, error) {
			ent, err := src(env)
			if err != nil || ent == nil {
				return nil, err
			}
			return ent[name], nil
		}, nil
	}
	return nil, fmt.Errorf("%s is not entity valued", n.Kind())
}

// collection compiles a collection-valued source
func (x *exprCompiler) collection(src query.Node) (func(*Env) ([]odata.Entity, error), error) {
	if src == nil || !src.Type().Collection {
		return nil, fmt.Errorf("expected a collection source")
	}
	expr, err := x.entityValued(src)
	if err != nil {
		return nil, err
	}
	return func(env *Env) ([]odata.Entity, error) {
		v, err := expr(env)
		if err != nil || v == nil {
			return nil, err
		}
		items, ok := v.([]odata.Entity)
		if !ok {
			return nil, fmt.Errorf("expected a collection, got %T", v)
		}
		return items, nil
	}, nil
}

func (x *exprCompiler) lambda(node *query.Lambda) (Expr, error) {
	items, err := x.collection(node.Source)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.Quantifier, err)
	}
	all := node.Quantifier == query.LambdaAll

	if node.Body == nil {
		return func(env *Env) (interface{}, error) {
			list, err := items(env)
			if err != nil {
				return nil, err
			}
			return all || len(list) > 0, nil
		}, nil
	}

	body, err := x.withVar(node.Variable, node.Source.Type().Entity).compile(node.Body)
	if err != nil {
		return nil, err
	}
	variable := node.Variable
	return func(env *Env) (interface{}, error) {
		list, err := items(env)
		if err != nil {
			return nil, err
		}
		for _, item := range list {
			v, err := body(env.with(variable, item))
			if err != nil {
				return nil, err
			}
			if Truthy(v) != all {
				return !all, nil
			}
		}
		return all, nil
	}, nil
}

func (x *exprCompiler) binary(node *query.BinaryOperator) (Expr, error) {
	left, err := x.compile(node.Left)
	if err != nil {
		return nil, err
	}
	right, err := x.compile(node.Right)
	if err != nil {
		return nil, err
	}
	op := node.Operator

	switch {
	case op == query.OpAnd:
		return func(env *Env) (interface{}, error) {
			l, err := left(env)
			if err != nil || !Truthy(l) {
				return false, err
			}
			r, err := right(env)
			return Truthy(r), err
		}, nil

	case op == query.OpOr:
		return func(env *Env) (interface{}, error) {
			l, err := left(env)
			if err != nil {
				return nil, err
			}
			if Truthy(l) {
				return true, nil
			}
			r, err := right(env)
			return Truthy(r), err
		}, nil

	case op == query.OpHas:
		return nil, fmt.Errorf("operator has is not supported")

	case op.IsComparison():
		return func(env *Env) (interface{}, error) {
			l, err := left(env)
			if err != nil {
				return nil, err
			}
			r, err := right(env)
			if err != nil {
				return nil, err
			}
			return compare(op, l, r), nil
		}, nil
	}

	return func(env *Env) (interface{}, error) {
		l, err := left(env)
		if err != nil {
			return nil, err
		}
		r, err := right(env)
		if err != nil {
			return nil, err
		}
		return arithmetic(op, l, r)
	}, nil
}

// compare applies a comparison operator. Null equals only null and orders
// against nothing.
func compare(op query.BinaryOperatorKind, l, r interface{}) bool {
	switch op {
	case query.OpEqual:
		return odata.ValuesEqual(l, r)
	case query.OpNotEqual:
		return !odata.ValuesEqual(l, r)
	}
	if l == nil || r == nil {
		return false
	}
	c := odata.CompareValues(l, r)
	switch op {
	case query.OpGreaterThan:
		return c > 0
	case query.OpGreaterThanOrEqual:
		return c >= 0
	case query.OpLessThan:
		return c < 0
	case query.OpLessThanOrEqual:
		return c <= 0
	}
	return false
}

// arithmetic applies add, sub, mul, div or mod. Integer operands stay
// integral; anything else is computed in float64. Null propagates.
func arithmetic(op query.BinaryOperatorKind, l, r interface{}) (interface{}, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	if a, ok := odata.AsInt64(l); ok {
		if b, ok := odata.AsInt64(r); ok {
			switch op {
			case query.OpAdd:
				return a + b, nil
			case query.OpSubtract:
				return a - b, nil
			case query.OpMultiply:
				return a * b, nil
			case query.OpDivide, query.OpModulo:
				if b == 0 {
					return nil, fmt.Errorf("integer division by zero")
				}
				if op == query.OpDivide {
					return a / b, nil
				}
				return a % b, nil
			}
		}
	}

	a, ok := odata.AsFloat64(l)
	if !ok {
		return nil, fmt.Errorf("%s: operand %v is not numeric", op, l)
	}
	b, ok := odata.AsFloat64(r)
	if !ok {
		return nil, fmt.Errorf("%s: operand %v is not numeric", op, r)
	}
	switch op {
	case query.OpAdd:
		return a + b, nil
	case query.OpSubtract:
		return a - b, nil
	case query.OpMultiply:
		return a * b, nil
	case query.OpDivide:
		return a / b, nil
	case query.OpModulo:
		return math.Mod(a, b), nil
	}
	return nil, fmt.Errorf("unsupported operator %s", op)
}

func negate(v interface{}) (interface{}, error) {
	switch n := v.(type) {
	case float32:
		return -n, nil
	case float64:
		return -n, nil
	}
	if i, ok := odata.AsInt64(v); ok {
		return -i, nil
	}
	return nil, fmt.Errorf("cannot negate %T", v)
}

// cast converts v to target; a value that cannot be converted casts to null
func cast(v interface{}, target odata.TypeRef) interface{} {
	if target.Kind == odata.KindString {
		if s, ok := v.(string); ok {
			return s
		}
		return odata.FormatLiteral(v)
	}
	out, err := odata.Coerce(v, target)
	if err != nil {
		return nil
	}
	return out
}
