package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/query"
	"github.com/wbrown/janus-odata/odata/uricompare"
)

// noSlot marks an absent skip or top
const noSlot = -1

// Plan is a compiled request. Everything a request may vary without
// changing its structure is read from parameter slots at execution time,
// so one Plan serves every request equivalent to Request.
type Plan struct {
	ID      uuid.UUID
	Request *query.Request // Reference AST the slots point into
	Digest  uint64
	Slots   []uricompare.Slot
	Text    string // Query text with @pN placeholders

	EntitySet  *odata.EntitySet
	ResultType *odata.EntityType
	Path       []PathStep
	Filter     Expr
	Apply      []ApplyStep
	SkipToken  []TokenKey
	OrderBy    []SortKey
	Count      bool
	Skip       int // Slot index, noSlot when absent
	Top        int
	Projection *Projection
	Metadata   query.Metadata

	CompiledAt  time.Time
	CompileTime time.Duration
}

// PathStep is one resource path segment
type PathStep struct {
	Navigation *odata.NavigationProperty // nil for the entity set itself
	Filter     Expr
}

// ApplyStep is one compiled $apply transformation
type ApplyStep struct {
	Kind       query.TransformationKind
	Filter     Expr
	GroupKeys  []GroupKey
	Nested     []ApplyStep
	Aggregates []AggregateStep
	Computes   []ComputeStep
}

// GroupKey is a compiled grouping property
type GroupKey struct {
	Name       string
	Navigation *odata.NavigationProperty
	Property   *odata.Property
}

// AggregateStep computes one aggregate alias
type AggregateStep struct {
	Alias  string
	Method query.AggregateMethod
	Expr   Expr // nil for $count
	Type   odata.TypeRef
}

// ComputeStep adds one computed alias to each row
type ComputeStep struct {
	Alias string
	Expr  Expr
}

// SortKey is one compiled order-by item
type SortKey struct {
	Expr       Expr
	Descending bool
}

// TokenKey is one compiled skip token pair. Slot is noSlot for a null value.
type TokenKey struct {
	Property   *odata.Property
	Slot       int
	Descending bool
}

// Projection is a compiled select/expand tree
type Projection struct {
	Type       *odata.EntityType
	Properties []*odata.Property // nil selects every structural property
	Expands    []ExpandStep
}

// ExpandStep is a compiled expand item
type ExpandStep struct {
	Navigation *odata.NavigationProperty
	Filter     Expr
	OrderBy    []SortKey
	Skip       int
	Top        int
	Count      bool
	Projection *Projection
}

// HasSlot reports whether a skip or top slot index is present
func HasSlot(slot int) bool {
	return slot != noSlot
}

// Params arranges bindings by slot index for an Env
func (p *Plan) Params(bindings []uricompare.Binding) ([]interface{}, error) {
	if len(bindings) != len(p.Slots) {
		return nil, fmt.Errorf("plan %s expects %d bindings, got %d", p.ID, len(p.Slots), len(bindings))
	}
	params := make([]interface{}, len(p.Slots))
	for _, b := range bindings {
		if b.Slot.Index < 0 || b.Slot.Index >= len(params) {
			return nil, fmt.Errorf("binding %s out of range", b.Slot.Name)
		}
		params[b.Slot.Index] = b.Value
	}
	return params, nil
}

// String returns a human-readable representation of the plan
func (p *Plan) String() string {
	var sb strings.Builder
	sb.WriteString("Plan " + p.ID.String() + ":\n")
	sb.WriteString(fmt.Sprintf("  Digest: %016x\n", p.Digest))
	sb.WriteString("  Text: " + p.Text + "\n")
	if len(p.Slots) > 0 {
		sb.WriteString("  Slots:\n")
		for _, s := range p.Slots {
			sb.WriteString(fmt.Sprintf("    @%s %s (%s)\n", s.Name, s.Type, s.Key.Kind))
		}
	}
	sb.WriteString(fmt.Sprintf("  Stages: path=%d filter=%v apply=%d orderby=%d skiptoken=%d count=%v skip=%v top=%v\n",
		len(p.Path), p.Filter != nil, len(p.Apply), len(p.OrderBy), len(p.SkipToken),
		p.Count, HasSlot(p.Skip), HasSlot(p.Top)))
	return sb.String()
}
