package uricompare

import (
	"github.com/wbrown/janus-odata/odata/query"
)

// apply compares two transformation pipelines step by step in order
func (c *comparer) apply(ref, cand []query.Transformation) bool {
	if len(ref) != len(cand) {
		return false
	}
	for i := range ref {
		if transformKind(ref[i]) != transformKind(cand[i]) {
			return false
		}

		switch r := ref[i].(type) {
		case *query.FilterTransformation:
			cd := cand[i].(*query.FilterTransformation)
			if !c.node(r.Expression, cd.Expression) {
				return false
			}

		case *query.GroupByTransformation:
			cd := cand[i].(*query.GroupByTransformation)
			if len(r.Properties) != len(cd.Properties) {
				return false
			}
			for j, g := range r.Properties {
				if !sameNavigation(g.Navigation, cd.Properties[j].Navigation) ||
					!sameProperty(g.Property, cd.Properties[j].Property) {
					return false
				}
			}
			if !c.apply(r.Transformations, cd.Transformations) {
				return false
			}

		case *query.AggregateTransformation:
			cd := cand[i].(*query.AggregateTransformation)
			if len(r.Expressions) != len(cd.Expressions) {
				return false
			}
			for j, e := range r.Expressions {
				o := cd.Expressions[j]
				if e.Alias != o.Alias || e.Method != o.Method || e.TypeRef != o.TypeRef {
					return false
				}
				if !c.node(e.Expression, o.Expression) {
					return false
				}
			}

		case *query.ComputeTransformation:
			cd := cand[i].(*query.ComputeTransformation)
			if len(r.Expressions) != len(cd.Expressions) {
				return false
			}
			for j, e := range r.Expressions {
				o := cd.Expressions[j]
				if e.Alias != o.Alias || e.TypeRef != o.TypeRef {
					return false
				}
				if !c.node(e.Expression, o.Expression) {
					return false
				}
			}
		}
	}
	return true
}

// selectExpand compares two select/expand trees item by item in order
func (c *comparer) selectExpand(ref, cand *query.SelectExpand) bool {
	if ref == nil || cand == nil {
		return ref == nil && cand == nil
	}
	if len(ref.Items) != len(cand.Items) {
		return false
	}
	for i := range ref.Items {
		if itemKind(ref.Items[i]) != itemKind(cand.Items[i]) {
			return false
		}

		switch r := ref.Items[i].(type) {
		case *query.PathSelectItem:
			cd := cand.Items[i].(*query.PathSelectItem)
			if !sameProperty(r.Property, cd.Property) {
				return false
			}

		case *query.ExpandItem:
			if !c.expand(r, cand.Items[i].(*query.ExpandItem)) {
				return false
			}
		}
	}
	return true
}

func (c *comparer) expand(ref, cand *query.ExpandItem) bool {
	if !sameNavigation(ref.Navigation, cand.Navigation) || ref.Count != cand.Count {
		return false
	}
	if !c.node(ref.Filter, cand.Filter) {
		return false
	}
	if !c.orderBy(ref.OrderBy, cand.OrderBy) {
		return false
	}
	if !c.scalar(query.Position{Kind: query.LiteralSkip, Owner: ref}, ref.Skip, cand.Skip) {
		return false
	}
	if !c.scalar(query.Position{Kind: query.LiteralTop, Owner: ref}, ref.Top, cand.Top) {
		return false
	}
	return c.selectExpand(ref.SelectExpand, cand.SelectExpand)
}
