package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-odata/odata/demo"
	"github.com/wbrown/janus-odata/odata/planner"
	"github.com/wbrown/janus-odata/odata/query"
)

// newTestExecutor returns a query executor over the demo dataset with a
// fresh plan cache
func newTestExecutor(t *testing.T) (*QueryExecutor, *demo.Schema) {
	t.Helper()
	opts := planner.DefaultPlannerOptions()
	opts.Cache = planner.NewPlanCache(100, 0)
	return NewQueryExecutor(MemorySource(demo.Dataset()), opts, DefaultExecutorOptions()), demo.NewSchema()
}

func namedRequest(t *testing.T, s *demo.Schema, name string, args demo.Args) *query.Request {
	t.Helper()
	q, ok := demo.Lookup(name)
	require.True(t, ok, "unknown query %s", name)
	return q.Request(s, args)
}

func runNamed(t *testing.T, qe *QueryExecutor, s *demo.Schema, name string, args demo.Args) *Result {
	t.Helper()
	result, err := qe.Query(context.Background(), namedRequest(t, s, name, args))
	require.NoError(t, err)
	return result
}

func ids(result *Result) []int32 {
	out := make([]int32, len(result.Rows))
	for i, row := range result.Rows {
		out[i], _ = row["Id"].(int32)
	}
	return out
}
