package query

import (
	"github.com/wbrown/janus-odata/odata"
)

// NodeKind identifies an AST node variant.
//
// The set is closed: the hasher and comparer switch exhaustively over these
// kinds, so adding a variant here means adding it there as well.
type NodeKind uint8

const (
	KindBinaryOperator NodeKind = iota + 1
	KindUnaryOperator
	KindConvert
	KindConstant
	KindPropertyAccess
	KindCollectionNavigation
	KindSingleNavigation
	KindFunctionCall
	KindLambda
	KindCount
	KindRangeVariable
	KindOpenPropertyAccess
)

var nodeKindNames = [...]string{
	KindBinaryOperator:       "BinaryOperator",
	KindUnaryOperator:        "UnaryOperator",
	KindConvert:              "Convert",
	KindConstant:             "Constant",
	KindPropertyAccess:       "PropertyAccess",
	KindCollectionNavigation: "CollectionNavigation",
	KindSingleNavigation:     "SingleNavigation",
	KindFunctionCall:         "FunctionCall",
	KindLambda:               "Lambda",
	KindCount:                "Count",
	KindRangeVariable:        "RangeVariable",
	KindOpenPropertyAccess:   "OpenPropertyAccess",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) && nodeKindNames[k] != "" {
		return nodeKindNames[k]
	}
	return "Unknown"
}

// Node is an expression node of a query AST.
//
// This is a sealed interface - only types in this package implement it.
type Node interface {
	Kind() NodeKind
	// Type is the declared result type of the node
	Type() odata.TypeRef
	node()
}

// BinaryOperatorKind is the operator of a BinaryOperator node
type BinaryOperatorKind uint8

const (
	OpOr BinaryOperatorKind = iota + 1
	OpAnd
	OpEqual
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpHas
)

var binaryOperatorNames = [...]string{
	OpOr:                 "or",
	OpAnd:                "and",
	OpEqual:              "eq",
	OpNotEqual:           "ne",
	OpGreaterThan:        "gt",
	OpGreaterThanOrEqual: "ge",
	OpLessThan:           "lt",
	OpLessThanOrEqual:    "le",
	OpAdd:                "add",
	OpSubtract:           "sub",
	OpMultiply:           "mul",
	OpDivide:             "div",
	OpModulo:             "mod",
	OpHas:                "has",
}

func (op BinaryOperatorKind) String() string {
	if int(op) < len(binaryOperatorNames) && binaryOperatorNames[op] != "" {
		return binaryOperatorNames[op]
	}
	return "?"
}

// IsLogical reports whether op is and/or
func (op BinaryOperatorKind) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// IsComparison reports whether op produces a boolean from two operands
func (op BinaryOperatorKind) IsComparison() bool {
	return op >= OpEqual && op <= OpLessThanOrEqual || op == OpHas
}

// UnaryOperatorKind is the operator of a UnaryOperator node
type UnaryOperatorKind uint8

const (
	OpNot UnaryOperatorKind = iota + 1
	OpNegate
)

func (op UnaryOperatorKind) String() string {
	switch op {
	case OpNot:
		return "not"
	case OpNegate:
		return "-"
	default:
		return "?"
	}
}

// LambdaKind distinguishes any() from all()
type LambdaKind uint8

const (
	LambdaAny LambdaKind = iota + 1
	LambdaAll
)

func (k LambdaKind) String() string {
	if k == LambdaAll {
		return "all"
	}
	return "any"
}

// BinaryOperator applies an operator to two operands
type BinaryOperator struct {
	Operator BinaryOperatorKind
	Left     Node
	Right    Node
	TypeRef  odata.TypeRef
}

func (*BinaryOperator) Kind() NodeKind        { return KindBinaryOperator }
func (n *BinaryOperator) Type() odata.TypeRef { return n.TypeRef }
func (*BinaryOperator) node()                 {}

// UnaryOperator applies not or negation to an operand
type UnaryOperator struct {
	Operator UnaryOperatorKind
	Operand  Node
	TypeRef  odata.TypeRef
}

func (*UnaryOperator) Kind() NodeKind        { return KindUnaryOperator }
func (n *UnaryOperator) Type() odata.TypeRef { return n.TypeRef }
func (*UnaryOperator) node()                 {}

// Convert casts its source to TypeRef
type Convert struct {
	Source  Node
	TypeRef odata.TypeRef
}

func (*Convert) Kind() NodeKind        { return KindConvert }
func (n *Convert) Type() odata.TypeRef { return n.TypeRef }
func (*Convert) node()                 {}

// Constant is a literal value. Its value is the only part of an expression
// that may differ between two requests sharing a compiled plan.
type Constant struct {
	Value   interface{}
	TypeRef odata.TypeRef
}

func (*Constant) Kind() NodeKind        { return KindConstant }
func (n *Constant) Type() odata.TypeRef { return n.TypeRef }
func (*Constant) node()                 {}

// PropertyAccess reads a structural property. A nil Source means the
// implicit $it range variable.
type PropertyAccess struct {
	Property *odata.Property
	Source   Node
}

func (*PropertyAccess) Kind() NodeKind        { return KindPropertyAccess }
func (n *PropertyAccess) Type() odata.TypeRef { return n.Property.Type }
func (*PropertyAccess) node()                 {}

// CollectionNavigation follows a collection-valued navigation property
type CollectionNavigation struct {
	Navigation *odata.NavigationProperty
	Source     Node
}

func (*CollectionNavigation) Kind() NodeKind        { return KindCollectionNavigation }
func (n *CollectionNavigation) Type() odata.TypeRef { return n.Navigation.Type() }
func (*CollectionNavigation) node()                 {}

// SingleNavigation follows a single-valued navigation property
type SingleNavigation struct {
	Navigation *odata.NavigationProperty
	Source     Node
}

func (*SingleNavigation) Kind() NodeKind        { return KindSingleNavigation }
func (n *SingleNavigation) Type() odata.TypeRef { return n.Navigation.Type() }
func (*SingleNavigation) node()                 {}

// FunctionCall invokes a built-in function
type FunctionCall struct {
	Name    string
	Args    []Node
	TypeRef odata.TypeRef
}

func (*FunctionCall) Kind() NodeKind        { return KindFunctionCall }
func (n *FunctionCall) Type() odata.TypeRef { return n.TypeRef }
func (*FunctionCall) node()                 {}

// Lambda is an any()/all() test over a collection
type Lambda struct {
	Quantifier LambdaKind
	Variable   string // Range variable bound inside Body
	Source     Node   // Collection being tested
	Body       Node   // nil for the argument-less any()
}

func (*Lambda) Kind() NodeKind      { return KindLambda }
func (*Lambda) Type() odata.TypeRef { return odata.Boolean }
func (*Lambda) node()               {}

// Count is $count over a collection
type Count struct {
	Source Node
}

func (*Count) Kind() NodeKind      { return KindCount }
func (*Count) Type() odata.TypeRef { return odata.Int64 }
func (*Count) node()               {}

// RangeVariable references $it or a lambda variable
type RangeVariable struct {
	Name    string
	TypeRef odata.TypeRef
}

func (*RangeVariable) Kind() NodeKind        { return KindRangeVariable }
func (n *RangeVariable) Type() odata.TypeRef { return n.TypeRef }
func (*RangeVariable) node()                 {}

// OpenPropertyAccess reads a dynamic property of an open entity type
type OpenPropertyAccess struct {
	Name   string
	Source Node
}

func (*OpenPropertyAccess) Kind() NodeKind      { return KindOpenPropertyAccess }
func (*OpenPropertyAccess) Type() odata.TypeRef { return odata.Untyped }
func (*OpenPropertyAccess) node()               {}

// ItVariable is the name of the implicit range variable
const ItVariable = "$it"
