package executor

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/planner"
	"github.com/wbrown/janus-odata/odata/query"
)

// applySteps runs an $apply pipeline. Compute and groupby produce new rows,
// so source entities are never modified.
func applySteps(env *planner.Env, steps []planner.ApplyStep, rows []odata.Entity) ([]odata.Entity, error) {
	var err error
	for i, step := range steps {
		switch step.Kind {
		case query.TransformFilter:
			rows, err = filterRows(env, step.Filter, rows)
		case query.TransformCompute:
			rows, err = compute(env, step.Computes, rows)
		case query.TransformGroupBy:
			rows, err = groupBy(env, step, rows)
		case query.TransformAggregate:
			var row odata.Entity
			row, err = aggregate(env, step.Aggregates, rows)
			rows = []odata.Entity{row}
		default:
			err = fmt.Errorf("unsupported transformation %s", step.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Kind, err)
		}
	}
	return rows, nil
}

func compute(env *planner.Env, computes []planner.ComputeStep, rows []odata.Entity) ([]odata.Entity, error) {
	out := make([]odata.Entity, len(rows))
	for i, row := range rows {
		next := make(odata.Entity, len(row)+len(computes))
		for k, v := range row {
			next[k] = v
		}
		rowEnv := env.Row(row)
		for _, c := range computes {
			v, err := c.Expr(rowEnv)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", c.Alias, err)
			}
			next[c.Alias] = v
		}
		out[i] = next
	}
	return out, nil
}

// groupKeyValue reads a grouping property, following a single navigation
func groupKeyValue(row odata.Entity, key planner.GroupKey) interface{} {
	if key.Navigation != nil {
		related, _ := row[key.Navigation.Name].(odata.Entity)
		if related == nil {
			return nil
		}
		return related[key.Property.Name]
	}
	return row[key.Property.Name]
}

// groupBy partitions rows by the grouping keys, in order of first
// appearance, and runs the nested steps per group. Without an aggregate
// among the nested steps each group yields just its key row.
func groupBy(env *planner.Env, step planner.ApplyStep, rows []odata.Entity) ([]odata.Entity, error) {
	type group struct {
		key  odata.Entity
		rows []odata.Entity
	}
	var groups []*group
	index := make(map[string]*group)

	for _, row := range rows {
		key := make(odata.Entity, len(step.GroupKeys))
		var sig strings.Builder
		for _, k := range step.GroupKeys {
			v := groupKeyValue(row, k)
			key[k.Name] = v
			sig.WriteString(odata.FormatLiteral(v))
			sig.WriteByte(0)
		}
		g, ok := index[sig.String()]
		if !ok {
			g = &group{key: key}
			index[sig.String()] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, row)
	}

	reduces := false
	for _, nested := range step.Nested {
		if nested.Kind == query.TransformAggregate {
			reduces = true
		}
	}

	out := make([]odata.Entity, 0, len(groups))
	for _, g := range groups {
		if !reduces {
			out = append(out, g.key)
			continue
		}
		reduced, err := applySteps(env, step.Nested, g.rows)
		if err != nil {
			return nil, err
		}
		for _, r := range reduced {
			merged := make(odata.Entity, len(r)+len(g.key))
			for k, v := range g.key {
				merged[k] = v
			}
			for k, v := range r {
				merged[k] = v
			}
			out = append(out, merged)
		}
	}
	return out, nil
}

// aggregate reduces rows to a single row of aliases. Null inputs are ignored;
// an aggregate over no values is null except for counts.
func aggregate(env *planner.Env, aggs []planner.AggregateStep, rows []odata.Entity) (odata.Entity, error) {
	out := make(odata.Entity, len(aggs))
	for _, agg := range aggs {
		if agg.Method == query.AggregateCount {
			out[agg.Alias] = int64(len(rows))
			continue
		}

		var values []interface{}
		for _, row := range rows {
			v, err := agg.Expr(env.Row(row))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", agg.Alias, err)
			}
			if v != nil {
				values = append(values, v)
			}
		}

		v, err := reduce(agg, values)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", agg.Alias, err)
		}
		out[agg.Alias] = v
	}
	return out, nil
}

func reduce(agg planner.AggregateStep, values []interface{}) (interface{}, error) {
	switch agg.Method {
	case query.AggregateCountDistinct:
		seen := make(map[string]bool, len(values))
		for _, v := range values {
			seen[odata.FormatLiteral(v)] = true
		}
		return int64(len(seen)), nil

	case query.AggregateMin, query.AggregateMax:
		var best interface{}
		for _, v := range values {
			c := odata.CompareValues(v, best)
			if best == nil || (agg.Method == query.AggregateMin && c < 0) || (agg.Method == query.AggregateMax && c > 0) {
				best = v
			}
		}
		return best, nil
	}

	if len(values) == 0 {
		return nil, nil
	}

	switch agg.Method {
	case query.AggregateSum:
		if agg.Type.Kind.IsIntegral() {
			var sum int64
			for _, v := range values {
				n, ok := odata.AsInt64(v)
				if !ok {
					return nil, fmt.Errorf("sum: expected integer, got %T", v)
				}
				sum += n
			}
			return sum, nil
		}
		sum, err := floatSum(values)
		if err != nil {
			return nil, err
		}
		return sum, nil

	case query.AggregateAverage:
		sum, err := floatSum(values)
		if err != nil {
			return nil, err
		}
		return sum / float64(len(values)), nil
	}
	return nil, fmt.Errorf("unsupported aggregate method %s", agg.Method)
}

func floatSum(values []interface{}) (float64, error) {
	var sum float64
	for _, v := range values {
		f, ok := odata.AsFloat64(v)
		if !ok {
			return 0, fmt.Errorf("expected number, got %T", v)
		}
		sum += f
	}
	return sum, nil
}
