package uricompare

import (
	"fmt"

	"github.com/wbrown/janus-odata/odata/query"
)

// UnknownNodeError reports an AST element whose concrete type the hasher or
// comparer does not know. It means the parser and this package have drifted
// apart, so it is raised as a panic rather than treated as a mismatch.
type UnknownNodeError struct {
	Node interface{}
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("uricompare: unknown AST element %T", e.Node)
}

// BindingError reports a parameter whose value cannot be coerced to the
// declared type of the slot it binds to. The request shapes matched, but the
// cached plan cannot be reused with this value.
type BindingError struct {
	Slot  Slot
	Value interface{}
	Err   error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("uricompare: cannot bind %v to slot %s (%s): %v", e.Value, e.Slot.Name, e.Slot.Type, e.Err)
}

func (e *BindingError) Unwrap() error {
	return e.Err
}

// nodeKind returns the kind of n after checking that its concrete type is
// one of the known variants
func nodeKind(n query.Node) query.NodeKind {
	switch n.(type) {
	case *query.BinaryOperator:
		return query.KindBinaryOperator
	case *query.UnaryOperator:
		return query.KindUnaryOperator
	case *query.Convert:
		return query.KindConvert
	case *query.Constant:
		return query.KindConstant
	case *query.PropertyAccess:
		return query.KindPropertyAccess
	case *query.CollectionNavigation:
		return query.KindCollectionNavigation
	case *query.SingleNavigation:
		return query.KindSingleNavigation
	case *query.FunctionCall:
		return query.KindFunctionCall
	case *query.Lambda:
		return query.KindLambda
	case *query.Count:
		return query.KindCount
	case *query.RangeVariable:
		return query.KindRangeVariable
	case *query.OpenPropertyAccess:
		return query.KindOpenPropertyAccess
	}
	panic(&UnknownNodeError{Node: n})
}

func transformKind(t query.Transformation) query.TransformationKind {
	switch t.(type) {
	case *query.FilterTransformation:
		return query.TransformFilter
	case *query.GroupByTransformation:
		return query.TransformGroupBy
	case *query.AggregateTransformation:
		return query.TransformAggregate
	case *query.ComputeTransformation:
		return query.TransformCompute
	}
	panic(&UnknownNodeError{Node: t})
}

func itemKind(item query.SelectItem) query.SelectItemKind {
	switch item.(type) {
	case *query.PathSelectItem:
		return query.SelectPath
	case *query.ExpandItem:
		return query.SelectExpansion
	}
	panic(&UnknownNodeError{Node: item})
}
