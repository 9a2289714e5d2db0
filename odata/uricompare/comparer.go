package uricompare

import (
	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/query"
)

// comparer walks a reference and a candidate AST in lockstep. It is created
// per call and owns the parameter accumulator for that call only.
type comparer struct {
	params *Parameters
}

// Compare reports whether cand has the same structure as ref, ignoring
// literal values. On success it returns the candidate's literals in
// traversal order, keyed by the matching positions of ref. On a mismatch it
// returns nil and false.
//
// Compare panics with *UnknownNodeError when either AST contains an element
// type this package does not know.
func Compare(ref, cand *query.Request) (*Parameters, bool) {
	c := &comparer{params: &Parameters{}}
	if !c.request(ref, cand) {
		return nil, false
	}
	return c.params, true
}

// Equivalent compares ref and cand and binds the captured literals to the
// slots registered for ref. The bool reports structural equivalence; a
// non-nil error is a *BindingError raised after the shapes matched.
func Equivalent(ref, cand *query.Request, slots []Slot) ([]Binding, bool, error) {
	params, ok := Compare(ref, cand)
	if !ok {
		return nil, false, nil
	}
	bindings, err := params.Bind(slots)
	if err != nil {
		return nil, true, err
	}
	return bindings, true, nil
}

func (c *comparer) request(ref, cand *query.Request) bool {
	if ref == nil || cand == nil {
		return ref == cand
	}

	// Target collection
	if !sameEntitySet(ref.EntitySet, cand.EntitySet) {
		return false
	}

	// Navigation path
	if len(ref.Path) != len(cand.Path) {
		return false
	}
	for i := range ref.Path {
		if !sameNavigation(ref.Path[i].Navigation, cand.Path[i].Navigation) {
			return false
		}
		if !c.node(ref.Path[i].Filter, cand.Path[i].Filter) {
			return false
		}
	}

	// Apply pipeline
	if !c.apply(ref.Apply, cand.Apply) {
		return false
	}

	// Filter
	if !c.node(ref.Filter, cand.Filter) {
		return false
	}

	// Select/expand
	if !c.selectExpand(ref.SelectExpand, cand.SelectExpand) {
		return false
	}

	// Order-by
	if !c.orderBy(ref.OrderBy, cand.OrderBy) {
		return false
	}

	// Paging
	if !c.scalar(query.Position{Kind: query.LiteralSkip, Owner: ref}, ref.Skip, cand.Skip) {
		return false
	}
	if !c.scalar(query.Position{Kind: query.LiteralTop, Owner: ref}, ref.Top, cand.Top) {
		return false
	}
	if !c.skipToken(ref, cand) {
		return false
	}

	// Request metadata
	return ref.Count == cand.Count && sameMetadata(ref.Metadata, cand.Metadata)
}

// scalar matches a skip or top value: both absent, or both present with the
// candidate's value captured as a parameter
func (c *comparer) scalar(key SlotKey, ref, cand *int64) bool {
	if ref == nil || cand == nil {
		return ref == nil && cand == nil
	}
	c.params.add(key, *cand, odata.Int64)
	return true
}

// skipToken matches continuation tokens pair by pair. A pair whose value is
// null on both sides matches without a parameter; null on one side only is
// a mismatch.
func (c *comparer) skipToken(ref, cand *query.Request) bool {
	if ref.SkipToken == nil || cand.SkipToken == nil {
		return ref.SkipToken == nil && cand.SkipToken == nil
	}
	if len(ref.SkipToken) != len(cand.SkipToken) {
		return false
	}
	for i, r := range ref.SkipToken {
		cd := cand.SkipToken[i]
		if !sameProperty(r.Property, cd.Property) {
			return false
		}
		if r.Value == nil || cd.Value == nil {
			if r.Value != nil || cd.Value != nil {
				return false
			}
			continue
		}
		key := query.Position{Kind: query.LiteralSkipToken, Owner: ref, Index: i}
		c.params.add(key, cd.Value, propertyType(r.Property))
	}
	return true
}

func sameMetadata(a, b query.Metadata) bool {
	return a.Level == b.Level &&
		a.Streaming == b.Streaming &&
		a.NavigationNextLink == b.NavigationNextLink &&
		query.NormalizeCharset(a.Charset) == query.NormalizeCharset(b.Charset)
}

func sameEntitySet(a, b *odata.EntitySet) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func sameNavigation(a, b *odata.NavigationProperty) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func sameProperty(a, b *odata.Property) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func propertyType(p *odata.Property) odata.TypeRef {
	if p == nil {
		return odata.Untyped
	}
	return p.Type
}
