// Package executor runs compiled plans against an entity source.
//
// File organization:
//   - executor.go: Source, Executor and the stage pipeline
//   - apply.go: $apply transformations and aggregates
//   - project.go: $select/$expand projection
//   - query_executor.go: cache lookup, bind, compile and insert around Execute
//   - context.go: annotation points
//   - worker_pool.go: parallel request execution
//   - table_formatter.go: markdown rendering of results
package executor

import (
	"context"
	"fmt"
	"sort"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/planner"
	"github.com/wbrown/janus-odata/odata/uricompare"
)

// Source provides the entities of an entity set.
// Implementations must not hand out rows they mutate later; the executor
// treats scanned rows as read-only.
type Source interface {
	Scan(ctx context.Context, set *odata.EntitySet) ([]odata.Entity, error)
}

// MemorySource serves entity sets from memory, keyed by set name
type MemorySource map[string][]odata.Entity

// Scan implements Source
func (m MemorySource) Scan(ctx context.Context, set *odata.EntitySet) ([]odata.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, ok := m[set.Name]
	if !ok {
		return nil, fmt.Errorf("unknown entity set %s", set.Name)
	}
	return rows, nil
}

// Result is the outcome of one request
type Result struct {
	Rows     []odata.Entity
	Count    *int64 // Set when the request asked for $count=true
	Plan     *planner.Plan
	CacheHit bool
}

// Executor runs plans against a Source
type Executor struct {
	source  Source
	options ExecutorOptions
}

// NewExecutor creates a new executor
func NewExecutor(source Source, options ExecutorOptions) *Executor {
	return &Executor{source: source, options: options}
}

// Execute runs plan with the given bindings
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan, bindings []uricompare.Binding) (*Result, error) {
	return e.ExecuteWithContext(ctx, &BaseContext{}, plan, bindings)
}

// ExecuteWithContext runs plan, reporting every stage to actx
func (e *Executor) ExecuteWithContext(ctx context.Context, actx Context, plan *planner.Plan, bindings []uricompare.Binding) (*Result, error) {
	params, err := plan.Params(bindings)
	if err != nil {
		return nil, err
	}
	env := planner.NewEnv(params)
	result := &Result{Plan: plan}

	rows, err := e.source.Scan(ctx, plan.EntitySet)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", plan.EntitySet.Name, err)
	}
	if e.options.MaxRows > 0 && len(rows) > e.options.MaxRows {
		return nil, fmt.Errorf("scan %s: %d rows exceed the limit of %d", plan.EntitySet.Name, len(rows), e.options.MaxRows)
	}

	stages := []struct {
		name string
		skip bool
		run  func([]odata.Entity) ([]odata.Entity, error)
	}{
		{"path", len(plan.Path) == 0, func(in []odata.Entity) ([]odata.Entity, error) { return walkPath(env, plan.Path, in) }},
		{"filter", plan.Filter == nil, func(in []odata.Entity) ([]odata.Entity, error) { return filterRows(env, plan.Filter, in) }},
		{"apply", len(plan.Apply) == 0, func(in []odata.Entity) ([]odata.Entity, error) { return applySteps(env, plan.Apply, in) }},
		{"skiptoken", len(plan.SkipToken) == 0, func(in []odata.Entity) ([]odata.Entity, error) {
			return afterToken(env, plan.SkipToken, in)
		}},
		{"orderby", len(plan.OrderBy) == 0, func(in []odata.Entity) ([]odata.Entity, error) { return sortRows(env, plan.OrderBy, in) }},
		{"count", !plan.Count, func(in []odata.Entity) ([]odata.Entity, error) {
			n := int64(len(in))
			result.Count = &n
			return in, nil
		}},
		{"page", !planner.HasSlot(plan.Skip) && !planner.HasSlot(plan.Top), func(in []odata.Entity) ([]odata.Entity, error) {
			return page(env, plan.Skip, plan.Top, in)
		}},
		{"project", len(plan.Apply) > 0, func(in []odata.Entity) ([]odata.Entity, error) {
			return newProjector(plan).rows(env, plan.Projection, in, true)
		}},
	}

	for _, stage := range stages {
		if stage.skip {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		in := rows
		rows, err = actx.ExecuteStage(stage.name, in, func() ([]odata.Entity, error) {
			return stage.run(in)
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", stage.name, err)
		}
	}

	result.Rows = rows
	return result, nil
}

// walkPath follows the resource path. A segment without navigation filters
// the current rows; a navigation replaces them with the related entities.
func walkPath(env *planner.Env, path []planner.PathStep, rows []odata.Entity) ([]odata.Entity, error) {
	for i, step := range path {
		if step.Navigation != nil {
			var next []odata.Entity
			for _, row := range rows {
				switch related := row[step.Navigation.Name].(type) {
				case []odata.Entity:
					next = append(next, related...)
				case odata.Entity:
					if related != nil {
						next = append(next, related)
					}
				}
			}
			rows = next
		}
		if step.Filter != nil {
			var err error
			if rows, err = filterRows(env, step.Filter, rows); err != nil {
				return nil, fmt.Errorf("segment %d: %w", i, err)
			}
		}
	}
	return rows, nil
}

// filterRows keeps the rows for which pred is true
func filterRows(env *planner.Env, pred planner.Expr, rows []odata.Entity) ([]odata.Entity, error) {
	out := make([]odata.Entity, 0, len(rows))
	for _, row := range rows {
		v, err := pred(env.Row(row))
		if err != nil {
			return nil, err
		}
		if planner.Truthy(v) {
			out = append(out, row)
		}
	}
	return out, nil
}

// afterToken keeps the rows ordered strictly after the continuation token
func afterToken(env *planner.Env, keys []planner.TokenKey, rows []odata.Entity) ([]odata.Entity, error) {
	token := make([]interface{}, len(keys))
	for i, k := range keys {
		if planner.HasSlot(k.Slot) {
			token[i] = env.Params[k.Slot]
		}
	}

	out := make([]odata.Entity, 0, len(rows))
	for _, row := range rows {
		cmp := 0
		for i, k := range keys {
			cmp = odata.CompareValues(row[k.Property.Name], token[i])
			if k.Descending {
				cmp = -cmp
			}
			if cmp != 0 {
				break
			}
		}
		if cmp > 0 {
			out = append(out, row)
		}
	}
	return out, nil
}

// sortRows orders rows by keys; ties keep their input order
func sortRows(env *planner.Env, keys []planner.SortKey, rows []odata.Entity) ([]odata.Entity, error) {
	type keyed struct {
		row  odata.Entity
		vals []interface{}
	}
	items := make([]keyed, len(rows))
	for i, row := range rows {
		rowEnv := env.Row(row)
		vals := make([]interface{}, len(keys))
		for j, k := range keys {
			v, err := k.Expr(rowEnv)
			if err != nil {
				return nil, err
			}
			vals[j] = v
		}
		items[i] = keyed{row: row, vals: vals}
	}

	sort.SliceStable(items, func(a, b int) bool {
		for j, k := range keys {
			c := odata.CompareValues(items[a].vals[j], items[b].vals[j])
			if c == 0 {
				continue
			}
			if k.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	out := make([]odata.Entity, len(items))
	for i, it := range items {
		out[i] = it.row
	}
	return out, nil
}

// page applies $skip and $top
func page(env *planner.Env, skipSlot, topSlot int, rows []odata.Entity) ([]odata.Entity, error) {
	skip, err := pageValue(env, skipSlot, "$skip", 0)
	if err != nil {
		return nil, err
	}
	top, err := pageValue(env, topSlot, "$top", int64(len(rows)))
	if err != nil {
		return nil, err
	}
	if skip >= int64(len(rows)) {
		return []odata.Entity{}, nil
	}
	rows = rows[skip:]
	if top < int64(len(rows)) {
		rows = rows[:top]
	}
	return rows, nil
}

func pageValue(env *planner.Env, slot int, name string, absent int64) (int64, error) {
	if !planner.HasSlot(slot) {
		return absent, nil
	}
	n, ok := odata.AsInt64(env.Params[slot])
	if !ok {
		return 0, fmt.Errorf("%s must be an integer, got %T", name, env.Params[slot])
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", name, n)
	}
	return n, nil
}
