package uricompare

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/query"
)

func TestHashIgnoresLiteralValues(t *testing.T) {
	s := newSchema()

	assert.Equal(t, Hash(s.filterByID(1)), Hash(s.filterByID(99)))
	assert.Equal(t, Hash(s.rich(1)), Hash(s.rich(7)))
	assert.Equal(t, Hash(s.aggregated(1, "Total")), Hash(s.aggregated(2, "Total")))
	assert.Equal(t,
		HashNode(query.Eq(query.Prop(s.custName), query.Const("a"))),
		HashNode(query.Eq(query.Prop(s.custName), query.Const("b"))))
}

func TestHashDistinguishesShapes(t *testing.T) {
	s := newSchema()

	ne := query.NewRequest(s.customers)
	ne.Filter = query.Ne(query.Prop(s.custID), query.Const(5))
	byName := query.NewRequest(s.customers)
	byName.Filter = query.Eq(query.Prop(s.custName), query.Const("A"))
	withTop := s.filterByID(5)
	withTop.Top = query.Int64(1)
	withSkip := s.filterByID(5)
	withSkip.Skip = query.Int64(1)

	digests := map[string]uint64{
		"eq":        Hash(s.filterByID(5)),
		"ne":        Hash(ne),
		"by name":   Hash(byName),
		"with top":  Hash(withTop),
		"with skip": Hash(withSkip),
		"empty":     Hash(query.NewRequest(s.customers)),
		"orders":    Hash(query.NewRequest(s.orders)),
	}

	seen := make(map[uint64]string)
	for name, h := range digests {
		if other, dup := seen[h]; dup {
			t.Errorf("%s and %s share digest %x", name, other, h)
		}
		seen[h] = name
	}
}

func TestHashConsistentWithCompare(t *testing.T) {
	s := newSchema()

	// Pairs built independently; whenever Compare accepts a pair the
	// digests must agree.
	build := []func(int) *query.Request{
		func(v int) *query.Request { return s.filterByID(v) },
		func(v int) *query.Request { return s.rich(v) },
		func(v int) *query.Request { return s.aggregated(float64(v), "Total") },
		func(v int) *query.Request {
			req := query.NewRequest(s.customers)
			req.Filter = query.Eq(query.Prop(s.custName), query.Const("n"+string(rune('a'+v%26))))
			req.Metadata.Charset = "utf8"
			return req
		},
	}

	var candidates []*query.Request
	for _, b := range build {
		for v := 1; v <= 3; v++ {
			candidates = append(candidates, b(v))
		}
	}

	for _, a := range candidates {
		for _, b := range candidates {
			if _, ok := Compare(a, b); ok {
				assert.Equal(t, Hash(a), Hash(b), "%s vs %s", a, b)
			}
		}
	}
}

func TestHashConstantDeclaredType(t *testing.T) {
	int32Const := query.TypedConst(1, odata.Int32)
	int64Const := query.TypedConst(1, odata.Int64)
	assert.NotEqual(t, HashNode(int32Const), HashNode(int64Const))
	assert.Equal(t, HashNode(int32Const), HashNode(query.TypedConst(2, odata.Int32)))
}

func TestHashNil(t *testing.T) {
	assert.Equal(t, Hash(nil), Hash(nil))
	assert.Equal(t, HashNode(nil), HashNode(nil))
}

func TestHashMissingIdentities(t *testing.T) {
	s := newSchema()

	// Every identity pointer left nil
	malformed := func(id int) *query.Request {
		req := query.NewRequest(s.customers)
		req.Apply = []query.Transformation{
			&query.GroupByTransformation{Properties: []query.GroupingProperty{{}}},
		}
		req.Filter = query.Eq(&query.PropertyAccess{}, query.Const(id))
		req.SelectExpand = query.Items(&query.PathSelectItem{}, &query.ExpandItem{})
		req.SkipToken = []query.SkipTokenPair{{Value: id}}
		return req
	}

	a, b := malformed(1), malformed(2)
	assert.NotPanics(t, func() { Hash(a) })
	assert.Equal(t, Hash(a), Hash(b))

	params, ok := Compare(a, b)
	assert.True(t, ok)
	assert.Equal(t, []interface{}{2, 2}, params.Values())

	withProperty := malformed(1)
	withProperty.Filter = query.Eq(query.Prop(s.custID), query.Const(1))
	_, ok = Compare(a, withProperty)
	assert.False(t, ok)
	assert.NotEqual(t, Hash(a), Hash(withProperty))
}
