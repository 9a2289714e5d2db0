// Package planner compiles query ASTs into reusable plans and caches them.
//
// File organization:
//   - compiler.go: Compiler and the Compile entry point
//   - compile_expr.go: expression nodes to closures
//   - functions.go: built-in and registered functions
//   - plan.go: compiled plan types
//   - env.go: evaluation environment
//   - cache.go: PlanCache, keyed by structural digest
//
// Start with Compile() in compiler.go to understand the compilation flow.
package planner

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/query"
	"github.com/wbrown/janus-odata/odata/uricompare"
)

// Compiler turns requests into plans
type Compiler struct {
	options PlannerOptions
}

// NewCompiler creates a new plan compiler
func NewCompiler(options PlannerOptions) *Compiler {
	return &Compiler{options: options}
}

// Options returns the compiler options
func (c *Compiler) Options() PlannerOptions {
	return c.options
}

// compilation is the state of one Compile call
type compilation struct {
	options PlannerOptions
	slots   map[query.Position]int
}

func (c *compilation) slot(pos query.Position) (int, error) {
	idx, ok := c.slots[pos]
	if !ok {
		return noSlot, fmt.Errorf("no slot registered for %s literal", pos.Kind)
	}
	return idx, nil
}

func (c *compilation) optionalSlot(pos query.Position, present bool) (int, error) {
	if !present {
		return noSlot, nil
	}
	return c.slot(pos)
}

// Compile builds a plan for req. Besides the plan it returns the bindings of
// req's own literals so the plan can run immediately. A literal that does not
// fit its declared type fails with a *uricompare.BindingError.
func (c *Compiler) Compile(req *query.Request) (*Plan, []uricompare.Binding, error) {
	start := time.Now()
	if req == nil || req.EntitySet == nil {
		return nil, nil, fmt.Errorf("request has no entity set")
	}

	slots := uricompare.RegisterSlots(req)
	comp := &compilation{
		options: c.options,
		slots:   make(map[query.Position]int, len(slots)),
	}
	for _, s := range slots {
		comp.slots[s.Key] = s.Index
	}

	plan := &Plan{
		ID:        uuid.New(),
		Request:   req,
		Digest:    uricompare.Hash(req),
		Slots:     slots,
		EntitySet: req.EntitySet,
		Count:     req.Count,
		Metadata:  req.Metadata,
	}
	plan.Text = req.Format(func(pos query.Position, _ interface{}) string {
		if idx, ok := comp.slots[pos]; ok {
			return "@" + slots[idx].Name
		}
		return "null"
	})

	// Resource path
	scope := req.EntitySet.Type
	for i, seg := range req.Path {
		if seg.Navigation != nil {
			if seg.Navigation.DeclaringType.ID != scope.ID {
				return nil, nil, fmt.Errorf("path segment %d: %s is not a navigation of %s",
					i, seg.Navigation.Name, scope.QualifiedName())
			}
			scope = seg.Navigation.Target
		}
		filter, err := comp.expr(scope, false, seg.Filter)
		if err != nil {
			return nil, nil, fmt.Errorf("path segment %d: %w", i, err)
		}
		plan.Path = append(plan.Path, PathStep{Navigation: seg.Navigation, Filter: filter})
	}
	plan.ResultType = scope

	var err error
	if plan.Filter, err = comp.expr(scope, false, req.Filter); err != nil {
		return nil, nil, fmt.Errorf("$filter: %w", err)
	}
	if plan.Apply, err = comp.apply(scope, req.Apply); err != nil {
		return nil, nil, fmt.Errorf("$apply: %w", err)
	}

	// After $apply rows carry aliases rather than the declared properties
	reshaped := len(req.Apply) > 0
	if plan.OrderBy, err = comp.orderBy(scope, reshaped, req.OrderBy); err != nil {
		return nil, nil, fmt.Errorf("$orderby: %w", err)
	}
	if plan.Skip, err = comp.optionalSlot(query.Position{Kind: query.LiteralSkip, Owner: req}, req.Skip != nil); err != nil {
		return nil, nil, err
	}
	if plan.Top, err = comp.optionalSlot(query.Position{Kind: query.LiteralTop, Owner: req}, req.Top != nil); err != nil {
		return nil, nil, err
	}
	if plan.SkipToken, err = comp.skipToken(req); err != nil {
		return nil, nil, fmt.Errorf("$skiptoken: %w", err)
	}
	if req.SelectExpand != nil && reshaped {
		return nil, nil, fmt.Errorf("$select and $expand cannot follow $apply")
	}
	if plan.Projection, err = comp.projection(scope, req.SelectExpand, 0); err != nil {
		return nil, nil, err
	}

	// Bind through the slots like a cache hit would, so a fresh plan sees the
	// same coerced values as a reused one
	params, _ := uricompare.Compare(req, req)
	bindings, err := params.Bind(slots)
	if err != nil {
		return nil, nil, err
	}

	plan.CompiledAt = time.Now()
	plan.CompileTime = time.Since(start)
	return plan, bindings, nil
}

func (c *compilation) expr(scope *odata.EntityType, open bool, n query.Node) (Expr, error) {
	x := &exprCompiler{c: c, scope: scope, open: open}
	return x.compile(n)
}

func (c *compilation) apply(scope *odata.EntityType, steps []query.Transformation) ([]ApplyStep, error) {
	var out []ApplyStep
	// Filters and computes before the first groupby still see declared
	// properties; afterwards only aliases and grouping keys remain.
	open := false
	for i, t := range steps {
		step := ApplyStep{Kind: t.TransformKind()}
		switch tr := t.(type) {
		case *query.FilterTransformation:
			expr, err := c.expr(scope, open, tr.Expression)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			step.Filter = expr

		case *query.GroupByTransformation:
			if open {
				return nil, fmt.Errorf("step %d: groupby must precede other reshaping steps", i)
			}
			for _, g := range tr.Properties {
				owner := scope
				if g.Navigation != nil {
					if g.Navigation.Collection {
						return nil, fmt.Errorf("step %d: cannot group by collection navigation %s", i, g.Navigation.Name)
					}
					owner = g.Navigation.Target
				}
				if g.Property.DeclaringType.ID != owner.ID {
					return nil, fmt.Errorf("step %d: %s is not a property of %s", i, g.Property.Name, owner.QualifiedName())
				}
				step.GroupKeys = append(step.GroupKeys, GroupKey{
					Name:       g.Name(),
					Navigation: g.Navigation,
					Property:   g.Property,
				})
			}
			for _, nested := range tr.Transformations {
				if nested.TransformKind() == query.TransformGroupBy {
					return nil, fmt.Errorf("step %d: nested groupby is not supported", i)
				}
			}
			nested, err := c.apply(scope, tr.Transformations)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			step.Nested = nested
			open = true

		case *query.AggregateTransformation:
			for _, e := range tr.Expressions {
				agg := AggregateStep{Alias: e.Alias, Method: e.Method, Type: e.TypeRef}
				if e.Method != query.AggregateCount {
					expr, err := c.expr(scope, open, e.Expression)
					if err != nil {
						return nil, fmt.Errorf("step %d: %s: %w", i, e.Alias, err)
					}
					if expr == nil {
						return nil, fmt.Errorf("step %d: %s has no expression", i, e.Alias)
					}
					agg.Expr = expr
				}
				step.Aggregates = append(step.Aggregates, agg)
			}
			open = true

		case *query.ComputeTransformation:
			for _, e := range tr.Expressions {
				expr, err := c.expr(scope, open, e.Expression)
				if err != nil {
					return nil, fmt.Errorf("step %d: %s: %w", i, e.Alias, err)
				}
				step.Computes = append(step.Computes, ComputeStep{Alias: e.Alias, Expr: expr})
			}

		default:
			return nil, fmt.Errorf("step %d: unsupported transformation %T", i, t)
		}
		out = append(out, step)
	}
	return out, nil
}

func (c *compilation) orderBy(scope *odata.EntityType, open bool, o *query.OrderBy) ([]SortKey, error) {
	var keys []SortKey
	for ; o != nil; o = o.ThenBy {
		expr, err := c.expr(scope, open, o.Expression)
		if err != nil {
			return nil, err
		}
		keys = append(keys, SortKey{Expr: expr, Descending: o.Direction == query.Descending})
	}
	return keys, nil
}

// skipToken compiles the continuation token. Each key takes the direction of
// the order-by item reading the same property.
func (c *compilation) skipToken(req *query.Request) ([]TokenKey, error) {
	if req.SkipToken == nil {
		return nil, nil
	}
	directions := make(map[odata.ID]bool)
	for o := req.OrderBy; o != nil; o = o.ThenBy {
		if p, ok := o.Expression.(*query.PropertyAccess); ok && p.Source == nil {
			directions[p.Property.ID] = o.Direction == query.Descending
		}
	}

	keys := make([]TokenKey, len(req.SkipToken))
	for i, pair := range req.SkipToken {
		slot, err := c.optionalSlot(query.Position{Kind: query.LiteralSkipToken, Owner: req, Index: i}, pair.Value != nil)
		if err != nil {
			return nil, err
		}
		keys[i] = TokenKey{Property: pair.Property, Slot: slot, Descending: directions[pair.Property.ID]}
	}
	return keys, nil
}

func (c *compilation) projection(t *odata.EntityType, se *query.SelectExpand, depth int) (*Projection, error) {
	p := &Projection{Type: t}
	if se == nil {
		return p, nil
	}
	if limit := c.options.MaxExpandDepth; limit > 0 && depth > limit {
		return nil, fmt.Errorf("$expand nested deeper than %d levels", limit)
	}

	for _, item := range se.Items {
		switch it := item.(type) {
		case *query.PathSelectItem:
			if it.Property.DeclaringType.ID != t.ID {
				return nil, fmt.Errorf("$select: %s is not a property of %s", it.Property.Name, t.QualifiedName())
			}
			p.Properties = append(p.Properties, it.Property)

		case *query.ExpandItem:
			nav := it.Navigation
			if nav.DeclaringType.ID != t.ID {
				return nil, fmt.Errorf("$expand: %s is not a navigation of %s", nav.Name, t.QualifiedName())
			}
			step := ExpandStep{Navigation: nav, Count: it.Count}
			var err error
			if step.Filter, err = c.expr(nav.Target, false, it.Filter); err != nil {
				return nil, fmt.Errorf("$expand %s $filter: %w", nav.Name, err)
			}
			if step.OrderBy, err = c.orderBy(nav.Target, false, it.OrderBy); err != nil {
				return nil, fmt.Errorf("$expand %s $orderby: %w", nav.Name, err)
			}
			if step.Skip, err = c.optionalSlot(query.Position{Kind: query.LiteralSkip, Owner: it}, it.Skip != nil); err != nil {
				return nil, err
			}
			if step.Top, err = c.optionalSlot(query.Position{Kind: query.LiteralTop, Owner: it}, it.Top != nil); err != nil {
				return nil, err
			}
			if !nav.Collection && (it.Filter != nil || it.OrderBy != nil || it.Skip != nil || it.Top != nil || it.Count) {
				return nil, fmt.Errorf("$expand %s: options require a collection navigation", nav.Name)
			}
			if step.Projection, err = c.projection(nav.Target, it.SelectExpand, depth+1); err != nil {
				return nil, err
			}
			p.Expands = append(p.Expands, step)
		}
	}
	return p, nil
}
