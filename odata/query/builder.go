package query

import (
	"github.com/wbrown/janus-odata/odata"
)

// Helper constructors for building ASTs programmatically. The parser that
// produces ASTs from request URLs lives outside this module; these helpers
// let callers and tests build the same trees directly.

// NewRequest returns a request addressing set with no options
func NewRequest(set *odata.EntitySet) *Request {
	return &Request{EntitySet: set}
}

// Const creates a constant declared with the natural type of v
func Const(v interface{}) *Constant {
	return &Constant{Value: v, TypeRef: odata.TypeOf(v)}
}

// TypedConst creates a constant with an explicit declared type
func TypedConst(v interface{}, t odata.TypeRef) *Constant {
	return &Constant{Value: v, TypeRef: t}
}

// Null creates the null literal
func Null() *Constant {
	return &Constant{Value: nil, TypeRef: odata.Untyped}
}

// It references the implicit range variable of type t
func It(t *odata.EntityType) *RangeVariable {
	return &RangeVariable{Name: ItVariable, TypeRef: odata.EntityRef(t)}
}

// Var references a lambda range variable over entities of type t
func Var(name string, t *odata.EntityType) *RangeVariable {
	return &RangeVariable{Name: name, TypeRef: odata.EntityRef(t)}
}

// Prop reads p from the implicit range variable
func Prop(p *odata.Property) *PropertyAccess {
	return &PropertyAccess{Property: p}
}

// PropOf reads p from source
func PropOf(source Node, p *odata.Property) *PropertyAccess {
	return &PropertyAccess{Property: p, Source: source}
}

// Nav follows n from the implicit range variable
func Nav(n *odata.NavigationProperty) Node {
	return NavOf(nil, n)
}

// NavOf follows n from source, picking the collection or single node kind
func NavOf(source Node, n *odata.NavigationProperty) Node {
	if n.Collection {
		return &CollectionNavigation{Navigation: n, Source: source}
	}
	return &SingleNavigation{Navigation: n, Source: source}
}

// Open reads the dynamic property name from the implicit range variable
func Open(name string) *OpenPropertyAccess {
	return &OpenPropertyAccess{Name: name}
}

// Binary applies op to left and right, deriving the declared result type
func Binary(op BinaryOperatorKind, left, right Node) *BinaryOperator {
	t := odata.Boolean
	if !op.IsLogical() && !op.IsComparison() {
		t = promote(left.Type(), right.Type())
	}
	return &BinaryOperator{Operator: op, Left: left, Right: right, TypeRef: t}
}

func Eq(l, r Node) *BinaryOperator  { return Binary(OpEqual, l, r) }
func Ne(l, r Node) *BinaryOperator  { return Binary(OpNotEqual, l, r) }
func Gt(l, r Node) *BinaryOperator  { return Binary(OpGreaterThan, l, r) }
func Ge(l, r Node) *BinaryOperator  { return Binary(OpGreaterThanOrEqual, l, r) }
func Lt(l, r Node) *BinaryOperator  { return Binary(OpLessThan, l, r) }
func Le(l, r Node) *BinaryOperator  { return Binary(OpLessThanOrEqual, l, r) }
func Add(l, r Node) *BinaryOperator { return Binary(OpAdd, l, r) }
func Sub(l, r Node) *BinaryOperator { return Binary(OpSubtract, l, r) }
func Mul(l, r Node) *BinaryOperator { return Binary(OpMultiply, l, r) }

// And joins the operands left-deep with "and"
func And(first Node, rest ...Node) Node {
	n := first
	for _, r := range rest {
		n = Binary(OpAnd, n, r)
	}
	return n
}

// Or joins the operands left-deep with "or"
func Or(first Node, rest ...Node) Node {
	n := first
	for _, r := range rest {
		n = Binary(OpOr, n, r)
	}
	return n
}

// Not negates a boolean operand
func Not(n Node) *UnaryOperator {
	return &UnaryOperator{Operator: OpNot, Operand: n, TypeRef: odata.Boolean}
}

// Negate arithmetically negates an operand
func Negate(n Node) *UnaryOperator {
	return &UnaryOperator{Operator: OpNegate, Operand: n, TypeRef: n.Type()}
}

// Cast converts n to t
func Cast(n Node, t odata.TypeRef) *Convert {
	return &Convert{Source: n, TypeRef: t}
}

// Call invokes a built-in function
func Call(name string, args ...Node) *FunctionCall {
	return &FunctionCall{Name: name, Args: args, TypeRef: FunctionType(name, args)}
}

// Any tests whether some element of source satisfies body
func Any(source Node, variable string, body Node) *Lambda {
	return &Lambda{Quantifier: LambdaAny, Variable: variable, Source: source, Body: body}
}

// All tests whether every element of source satisfies body
func All(source Node, variable string, body Node) *Lambda {
	return &Lambda{Quantifier: LambdaAll, Variable: variable, Source: source, Body: body}
}

// CountOf counts the elements of source
func CountOf(source Node) *Count {
	return &Count{Source: source}
}

// Asc orders ascending by n
func Asc(n Node) *OrderBy {
	return &OrderBy{Expression: n, Direction: Ascending}
}

// Desc orders descending by n
func Desc(n Node) *OrderBy {
	return &OrderBy{Expression: n, Direction: Descending}
}

// Chain links order-by items into a ThenBy chain in argument order
func Chain(items ...*OrderBy) *OrderBy {
	if len(items) == 0 {
		return nil
	}
	for i := 0; i < len(items)-1; i++ {
		items[i].ThenBy = items[i+1]
	}
	return items[0]
}

// Int64 returns a pointer to n, for Skip and Top
func Int64(n int64) *int64 {
	return &n
}

// Select builds path select items for props
func Select(props ...*odata.Property) []SelectItem {
	items := make([]SelectItem, len(props))
	for i, p := range props {
		items[i] = &PathSelectItem{Property: p}
	}
	return items
}

// Items wraps select items into a SelectExpand tree
func Items(items ...SelectItem) *SelectExpand {
	return &SelectExpand{Items: items}
}

// Expand builds an expand item with no nested options
func Expand(n *odata.NavigationProperty) *ExpandItem {
	return &ExpandItem{Navigation: n}
}

// GroupBy groups by the given properties of the current row type
func GroupBy(props []*odata.Property, nested ...Transformation) *GroupByTransformation {
	g := &GroupByTransformation{Transformations: nested}
	for _, p := range props {
		g.Properties = append(g.Properties, GroupingProperty{Property: p})
	}
	return g
}

// Aggregate builds an aggregate transformation
func Aggregate(exprs ...AggregateExpression) *AggregateTransformation {
	return &AggregateTransformation{Expressions: exprs}
}

// AggregateOf builds "expr with method as alias", deriving the result type
func AggregateOf(expr Node, method AggregateMethod, alias string) AggregateExpression {
	return AggregateExpression{
		Expression: expr,
		Method:     method,
		Alias:      alias,
		TypeRef:    AggregateType(method, expr),
	}
}

// Compute builds a compute transformation
func Compute(exprs ...ComputeExpression) *ComputeTransformation {
	return &ComputeTransformation{Expressions: exprs}
}

// ComputeOf builds "expr as alias"
func ComputeOf(expr Node, alias string) ComputeExpression {
	return ComputeExpression{Expression: expr, Alias: alias, TypeRef: expr.Type()}
}

// AggregateType returns the declared type of an aggregate result
func AggregateType(method AggregateMethod, expr Node) odata.TypeRef {
	switch method {
	case AggregateCount, AggregateCountDistinct:
		return odata.Int64
	case AggregateAverage:
		return odata.Double
	case AggregateSum:
		if expr != nil && expr.Type().Kind.IsIntegral() {
			return odata.Int64
		}
		return odata.Double
	default:
		if expr != nil {
			return expr.Type().AsNullable()
		}
		return odata.Untyped
	}
}

// FunctionType returns the declared result type of a built-in function.
// Unknown functions are untyped; the compiler rejects them.
func FunctionType(name string, args []Node) odata.TypeRef {
	switch name {
	case "contains", "startswith", "endswith":
		return odata.Boolean
	case "length", "indexof", "year", "month", "day", "hour", "minute", "second":
		return odata.Int32
	case "tolower", "toupper", "trim", "substring", "concat":
		return odata.String
	case "round", "floor", "ceiling":
		if len(args) > 0 && args[0].Type().Kind == odata.KindSingle {
			return odata.Single
		}
		return odata.Double
	default:
		return odata.Untyped
	}
}

// promote returns the wider of two numeric operand types
func promote(a, b odata.TypeRef) odata.TypeRef {
	rank := func(k odata.Kind) int {
		switch k {
		case odata.KindByte:
			return 1
		case odata.KindInt16:
			return 2
		case odata.KindInt32:
			return 3
		case odata.KindInt64:
			return 4
		case odata.KindSingle:
			return 5
		case odata.KindDouble:
			return 6
		}
		return 0
	}
	ra, rb := rank(a.Kind), rank(b.Kind)
	t := a
	if rb > ra {
		t = b
	}
	if ra == 0 && rb == 0 {
		return odata.Untyped
	}
	return odata.TypeRef{Kind: t.Kind, Nullable: a.Nullable || b.Nullable}
}
