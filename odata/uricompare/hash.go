package uricompare

import (
	"math/bits"

	"github.com/cespare/xxhash/v2"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/query"
)

// Tags mixed into the digest ahead of each element so that different
// element kinds with equal payloads land in different buckets.
const (
	tagNil uint64 = 0x9e3779b97f4a7c15 + iota
	tagRequest
	tagSegment
	tagApply
	tagSelectExpand
	tagOrderBy
	tagConstant // fixed contribution of every literal, whatever its value
	tagSkip
	tagTop
	tagSkipToken
	tagSkipTokenNull
	tagMetadata
	tagNode
)

// hasher folds values into a running digest. Only identity attributes are
// mixed in; literal values never are, so two requests the comparer accepts
// always share a digest.
type hasher struct {
	h uint64
}

func (h *hasher) mix(v uint64) {
	h.h = bits.RotateLeft64(h.h, 5) ^ v
}

func (h *hasher) mixBool(b bool) {
	if b {
		h.mix(1)
	} else {
		h.mix(0)
	}
}

func (h *hasher) mixString(s string) {
	h.mix(xxhash.Sum64String(s))
}

func (h *hasher) mixID(id odata.ID) {
	h.mix(uint64(id))
}

func (h *hasher) mixType(t odata.TypeRef) {
	v := uint64(t.Kind)
	if t.Collection {
		v |= 1 << 8
	}
	if t.Nullable {
		v |= 1 << 9
	}
	if t.Entity != nil {
		v |= uint64(t.Entity.ID) << 16
	}
	h.mix(v)
}

// Hash returns the structural digest of req
func Hash(req *query.Request) uint64 {
	var h hasher
	h.request(req)
	return h.h
}

// HashNode returns the structural digest of a single expression
func HashNode(n query.Node) uint64 {
	var h hasher
	h.node(n)
	return h.h
}

func (h *hasher) request(req *query.Request) {
	if req == nil {
		h.mix(tagNil)
		return
	}
	h.mix(tagRequest)
	if req.EntitySet != nil {
		h.mixID(req.EntitySet.ID)
	}

	// Path: length, first and last navigation, and every segment filter
	h.mix(tagSegment)
	h.mix(uint64(len(req.Path)))
	if n := len(req.Path); n > 0 {
		h.navigation(req.Path[0].Navigation)
		h.navigation(req.Path[n-1].Navigation)
	}
	for _, seg := range req.Path {
		h.node(seg.Filter)
	}

	h.apply(req.Apply)
	h.node(req.Filter)
	h.selectExpand(req.SelectExpand)
	h.orderBy(req.OrderBy)

	if req.Skip != nil {
		h.mix(tagSkip)
	}
	if req.Top != nil {
		h.mix(tagTop)
	}
	if req.SkipToken != nil {
		h.mix(tagSkipToken)
		for _, pair := range req.SkipToken {
			h.property(pair.Property)
			if pair.Value == nil {
				h.mix(tagSkipTokenNull)
			}
		}
	}

	h.mix(tagMetadata)
	h.mixBool(req.Count)
	h.mix(uint64(req.Metadata.Level))
	h.mixBool(req.Metadata.Streaming)
	h.mixBool(req.Metadata.NavigationNextLink)
	h.mixString(query.NormalizeCharset(req.Metadata.Charset))
}

// navigation and property mix an identity, or tagNil when it is missing,
// matching sameNavigation and sameProperty
func (h *hasher) navigation(n *odata.NavigationProperty) {
	if n == nil {
		h.mix(tagNil)
		return
	}
	h.mixID(n.ID)
}

func (h *hasher) property(p *odata.Property) {
	if p == nil {
		h.mix(tagNil)
		return
	}
	h.mixID(p.ID)
}

func (h *hasher) apply(steps []query.Transformation) {
	h.mix(tagApply)
	h.mix(uint64(len(steps)))
	for _, step := range steps {
		h.mix(uint64(transformKind(step)))
		switch t := step.(type) {
		case *query.FilterTransformation:
			h.node(t.Expression)
		case *query.GroupByTransformation:
			h.mix(uint64(len(t.Properties)))
			for _, g := range t.Properties {
				h.navigation(g.Navigation)
				h.property(g.Property)
			}
			h.apply(t.Transformations)
		case *query.AggregateTransformation:
			h.mix(uint64(len(t.Expressions)))
			for _, e := range t.Expressions {
				h.mix(uint64(e.Method))
				h.mixString(e.Alias)
				h.mixType(e.TypeRef)
				h.node(e.Expression)
			}
		case *query.ComputeTransformation:
			h.mix(uint64(len(t.Expressions)))
			for _, e := range t.Expressions {
				h.mixString(e.Alias)
				h.mixType(e.TypeRef)
				h.node(e.Expression)
			}
		}
	}
}

func (h *hasher) selectExpand(se *query.SelectExpand) {
	if se == nil {
		h.mix(tagNil)
		return
	}
	h.mix(tagSelectExpand)
	h.mix(uint64(len(se.Items)))
	for _, item := range se.Items {
		h.mix(uint64(itemKind(item)))
		switch it := item.(type) {
		case *query.PathSelectItem:
			h.property(it.Property)
		case *query.ExpandItem:
			h.navigation(it.Navigation)
			h.mixBool(it.Count)
			h.node(it.Filter)
			h.orderBy(it.OrderBy)
			h.mixBool(it.Skip != nil)
			h.mixBool(it.Top != nil)
			h.selectExpand(it.SelectExpand)
		}
	}
}

func (h *hasher) orderBy(o *query.OrderBy) {
	h.mix(tagOrderBy)
	for ; o != nil; o = o.ThenBy {
		h.mix(uint64(o.Direction))
		h.node(o.Expression)
	}
}

func (h *hasher) node(n query.Node) {
	if n == nil {
		h.mix(tagNil)
		return
	}
	h.mix(tagNode + uint64(nodeKind(n)))

	switch node := n.(type) {
	case *query.BinaryOperator:
		h.mix(uint64(node.Operator))
		h.mixType(node.TypeRef)
		h.node(node.Left)
		h.node(node.Right)
	case *query.UnaryOperator:
		h.mix(uint64(node.Operator))
		h.mixType(node.TypeRef)
		h.node(node.Operand)
	case *query.Convert:
		h.mixType(node.TypeRef)
		h.node(node.Source)
	case *query.Constant:
		h.mix(tagConstant)
		h.mixType(node.TypeRef)
	case *query.PropertyAccess:
		h.property(node.Property)
		h.node(node.Source)
	case *query.CollectionNavigation:
		h.navigation(node.Navigation)
		h.node(node.Source)
	case *query.SingleNavigation:
		h.navigation(node.Navigation)
		h.node(node.Source)
	case *query.FunctionCall:
		h.mixString(node.Name)
		h.mixType(node.TypeRef)
		h.mix(uint64(len(node.Args)))
		for _, arg := range node.Args {
			h.node(arg)
		}
	case *query.Lambda:
		h.mix(uint64(node.Quantifier))
		h.mixString(node.Variable)
		h.node(node.Source)
		h.node(node.Body)
	case *query.Count:
		h.node(node.Source)
	case *query.RangeVariable:
		h.mixString(node.Name)
		h.mixType(node.TypeRef)
	case *query.OpenPropertyAccess:
		h.mixString(node.Name)
		h.node(node.Source)
	}
}
