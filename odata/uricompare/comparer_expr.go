package uricompare

import (
	"github.com/wbrown/janus-odata/odata/query"
)

// node compares two expressions. Identity attributes must be equal; only
// Constant values may differ, and each Constant captures one parameter.
func (c *comparer) node(ref, cand query.Node) bool {
	if ref == nil || cand == nil {
		return ref == nil && cand == nil
	}
	if nodeKind(ref) != nodeKind(cand) {
		return false
	}

	switch r := ref.(type) {
	case *query.BinaryOperator:
		cd := cand.(*query.BinaryOperator)
		return r.Operator == cd.Operator &&
			r.TypeRef == cd.TypeRef &&
			c.node(r.Left, cd.Left) &&
			c.node(r.Right, cd.Right)

	case *query.UnaryOperator:
		cd := cand.(*query.UnaryOperator)
		return r.Operator == cd.Operator &&
			r.TypeRef == cd.TypeRef &&
			c.node(r.Operand, cd.Operand)

	case *query.Convert:
		cd := cand.(*query.Convert)
		return r.TypeRef == cd.TypeRef && c.node(r.Source, cd.Source)

	case *query.Constant:
		cd := cand.(*query.Constant)
		if r.TypeRef != cd.TypeRef {
			return false
		}
		c.params.add(query.Position{Kind: query.LiteralConstant, Owner: r}, cd.Value, r.TypeRef)
		return true

	case *query.PropertyAccess:
		cd := cand.(*query.PropertyAccess)
		return sameProperty(r.Property, cd.Property) && c.node(r.Source, cd.Source)

	case *query.CollectionNavigation:
		cd := cand.(*query.CollectionNavigation)
		return sameNavigation(r.Navigation, cd.Navigation) && c.node(r.Source, cd.Source)

	case *query.SingleNavigation:
		cd := cand.(*query.SingleNavigation)
		return sameNavigation(r.Navigation, cd.Navigation) && c.node(r.Source, cd.Source)

	case *query.FunctionCall:
		cd := cand.(*query.FunctionCall)
		if r.Name != cd.Name || r.TypeRef != cd.TypeRef || len(r.Args) != len(cd.Args) {
			return false
		}
		for i := range r.Args {
			if !c.node(r.Args[i], cd.Args[i]) {
				return false
			}
		}
		return true

	case *query.Lambda:
		cd := cand.(*query.Lambda)
		return r.Quantifier == cd.Quantifier &&
			r.Variable == cd.Variable &&
			c.node(r.Source, cd.Source) &&
			c.node(r.Body, cd.Body)

	case *query.Count:
		cd := cand.(*query.Count)
		return c.node(r.Source, cd.Source)

	case *query.RangeVariable:
		cd := cand.(*query.RangeVariable)
		return r.Name == cd.Name && r.TypeRef == cd.TypeRef

	case *query.OpenPropertyAccess:
		cd := cand.(*query.OpenPropertyAccess)
		return r.Name == cd.Name && c.node(r.Source, cd.Source)
	}

	// nodeKind has already rejected every other type
	panic(&UnknownNodeError{Node: ref})
}

// orderBy compares two order-by chains item by item; both must end together
func (c *comparer) orderBy(ref, cand *query.OrderBy) bool {
	for ref != nil && cand != nil {
		if ref.Direction != cand.Direction || !c.node(ref.Expression, cand.Expression) {
			return false
		}
		ref, cand = ref.ThenBy, cand.ThenBy
	}
	return ref == nil && cand == nil
}
