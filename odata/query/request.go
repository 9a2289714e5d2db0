package query

import (
	"github.com/wbrown/janus-odata/odata"
)

// Request is the parsed form of a single query request: the root entity set
// plus every query option that shapes the compiled plan.
//
// A Request is built once per incoming call and is read-only afterwards.
// Absent options are nil (or empty for Apply); Skip, Top and SkipToken are
// the only options whose values may differ between requests sharing a plan.
type Request struct {
	EntitySet    *odata.EntitySet
	Path         []Segment
	Filter       Node
	Apply        []Transformation
	SelectExpand *SelectExpand
	OrderBy      *OrderBy
	Skip         *int64
	Top          *int64
	SkipToken    []SkipTokenPair // nil when absent
	Count        bool            // $count=true
	Metadata     Metadata
}

// Segment is one navigation step of the resource path. A nil Navigation
// addresses the root entity set itself; Filter then typically holds the key
// predicate, e.g. Customers(1) becomes {nil, Id eq 1}.
type Segment struct {
	Navigation *odata.NavigationProperty
	Filter     Node
}

// Direction is the sort direction of an order-by item
type Direction uint8

const (
	Ascending Direction = iota + 1
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// OrderBy is one item of a $orderby chain
type OrderBy struct {
	Expression Node
	Direction  Direction
	ThenBy     *OrderBy
}

// Len returns the number of items in the chain
func (o *OrderBy) Len() int {
	n := 0
	for ; o != nil; o = o.ThenBy {
		n++
	}
	return n
}

// SkipTokenPair is one (property, value) pair of a continuation token
type SkipTokenPair struct {
	Property *odata.Property
	Value    interface{}
}

// MetadataLevel is the odata.metadata level negotiated for the response
type MetadataLevel uint8

const (
	MetadataMinimal MetadataLevel = iota
	MetadataNone
	MetadataFull
)

func (l MetadataLevel) String() string {
	switch l {
	case MetadataNone:
		return "none"
	case MetadataFull:
		return "full"
	default:
		return "minimal"
	}
}

// Metadata carries request properties that change the compiled plan
// without being part of the query options.
type Metadata struct {
	Level              MetadataLevel
	Streaming          bool
	Charset            string // canonical name, see NormalizeCharset
	NavigationNextLink bool
}

// SelectExpand is a $select/$expand tree
type SelectExpand struct {
	Items []SelectItem
}

// SelectItemKind distinguishes select items
type SelectItemKind uint8

const (
	SelectPath SelectItemKind = iota + 1
	SelectExpansion
)

// SelectItem is an item of a SelectExpand.
//
// This is a sealed interface - only types in this package implement it.
type SelectItem interface {
	ItemKind() SelectItemKind
	selectItem()
}

// PathSelectItem selects a structural property
type PathSelectItem struct {
	Property *odata.Property
}

func (*PathSelectItem) ItemKind() SelectItemKind { return SelectPath }
func (*PathSelectItem) selectItem()              {}

// ExpandItem expands a navigation property with its own nested options
type ExpandItem struct {
	Navigation   *odata.NavigationProperty
	Filter       Node
	OrderBy      *OrderBy
	Skip         *int64
	Top          *int64
	Count        bool
	SelectExpand *SelectExpand
}

func (*ExpandItem) ItemKind() SelectItemKind { return SelectExpansion }
func (*ExpandItem) selectItem()              {}

// TransformationKind identifies an $apply step
type TransformationKind uint8

const (
	TransformFilter TransformationKind = iota + 1
	TransformGroupBy
	TransformAggregate
	TransformCompute
)

func (k TransformationKind) String() string {
	switch k {
	case TransformFilter:
		return "filter"
	case TransformGroupBy:
		return "groupby"
	case TransformAggregate:
		return "aggregate"
	case TransformCompute:
		return "compute"
	default:
		return "?"
	}
}

// Transformation is one step of an $apply pipeline.
//
// This is a sealed interface - only types in this package implement it.
type Transformation interface {
	TransformKind() TransformationKind
	transformation()
}

// FilterTransformation is filter(expr) inside $apply
type FilterTransformation struct {
	Expression Node
}

func (*FilterTransformation) TransformKind() TransformationKind { return TransformFilter }
func (*FilterTransformation) transformation()                   {}

// GroupingProperty is a grouping key, optionally reached through a single
// navigation property, e.g. Customer/Country.
type GroupingProperty struct {
	Navigation *odata.NavigationProperty
	Property   *odata.Property
}

// Name returns the output column name of the grouping property
func (g GroupingProperty) Name() string {
	if g.Navigation != nil {
		return g.Navigation.Name + "/" + g.Property.Name
	}
	return g.Property.Name
}

// GroupByTransformation is groupby((props), aggregate(...)/compute(...))
type GroupByTransformation struct {
	Properties      []GroupingProperty
	Transformations []Transformation
}

func (*GroupByTransformation) TransformKind() TransformationKind { return TransformGroupBy }
func (*GroupByTransformation) transformation()                   {}

// AggregateMethod is the "with" method of an aggregate expression
type AggregateMethod uint8

const (
	AggregateSum AggregateMethod = iota + 1
	AggregateMin
	AggregateMax
	AggregateAverage
	AggregateCountDistinct
	AggregateCount // $count as alias, Expression is nil
)

func (m AggregateMethod) String() string {
	switch m {
	case AggregateSum:
		return "sum"
	case AggregateMin:
		return "min"
	case AggregateMax:
		return "max"
	case AggregateAverage:
		return "average"
	case AggregateCountDistinct:
		return "countdistinct"
	case AggregateCount:
		return "count"
	default:
		return "?"
	}
}

// AggregateExpression is "Expression with Method as Alias"
type AggregateExpression struct {
	Expression Node
	Method     AggregateMethod
	Alias      string
	TypeRef    odata.TypeRef
}

// AggregateTransformation is aggregate(...)
type AggregateTransformation struct {
	Expressions []AggregateExpression
}

func (*AggregateTransformation) TransformKind() TransformationKind { return TransformAggregate }
func (*AggregateTransformation) transformation()                   {}

// ComputeExpression is "Expression as Alias"
type ComputeExpression struct {
	Expression Node
	Alias      string
	TypeRef    odata.TypeRef
}

// ComputeTransformation is compute(...)
type ComputeTransformation struct {
	Expressions []ComputeExpression
}

func (*ComputeTransformation) TransformKind() TransformationKind { return TransformCompute }
func (*ComputeTransformation) transformation()                   {}

// ResultType returns the entity type of the rows addressed by the request's
// resource path, before any $apply reshaping.
func (r *Request) ResultType() *odata.EntityType {
	t := r.EntitySet.Type
	for _, seg := range r.Path {
		if seg.Navigation != nil {
			t = seg.Navigation.Target
		}
	}
	return t
}
