package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/annotations"
	"github.com/wbrown/janus-odata/odata/demo"
	"github.com/wbrown/janus-odata/odata/metrics"
	"github.com/wbrown/janus-odata/odata/planner"
	"github.com/wbrown/janus-odata/odata/query"
	"github.com/wbrown/janus-odata/odata/uricompare"
)

func eventNames(events []annotations.Event) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}

func TestQueryExecutorCacheFlow(t *testing.T) {
	qe, s := newTestExecutor(t)
	ctx := context.Background()

	first, err := qe.Query(ctx, namedRequest(t, s, "customer-by-id", demo.Args{"id": 1}))
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := qe.Query(ctx, namedRequest(t, s, "customer-by-id", demo.Args{"id": 2}))
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Same(t, first.Plan, second.Plan)
	assert.Equal(t, []int32{2}, ids(second))

	stats := qe.Cache().Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Inserts)
	assert.Equal(t, 1, stats.Size)
}

func TestQueryExecutorWorkload(t *testing.T) {
	qe, s := newTestExecutor(t)
	ctx := context.Background()

	failures := 0
	for _, inv := range demo.Workload() {
		_, err := qe.Query(ctx, namedRequest(t, s, inv.Query, inv.Args))
		if err != nil {
			var bindErr *uricompare.BindingError
			require.ErrorAs(t, err, &bindErr, "%s %v", inv.Query, inv.Args)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	stats := qe.Cache().Stats()
	assert.Equal(t, int64(11), stats.Hits)
	assert.Equal(t, int64(11), stats.Misses, "ten new shapes plus one binding failure")
	assert.Equal(t, int64(1), stats.BindingFailures)
	assert.Equal(t, int64(10), stats.Inserts)
	assert.Equal(t, len(demo.Queries()), stats.Size)
}

func TestQueryExecutorBindingFailure(t *testing.T) {
	qe, s := newTestExecutor(t)
	ctx := context.Background()

	var handled int64
	qe.SetHandler(func(annotations.Event) { atomic.AddInt64(&handled, 1) })

	resident, err := qe.Query(ctx, namedRequest(t, s, "customer-by-id", demo.Args{"id": 3}))
	require.NoError(t, err)

	collector := annotations.NewCollector(func(annotations.Event) {})
	actx := NewAnnotatedContext(collector)
	res, err := qe.QueryWithContext(ctx, actx, namedRequest(t, s, "customer-by-id", demo.Args{"id": int64(1) << 40}))
	var bindErr *uricompare.BindingError
	require.ErrorAs(t, err, &bindErr)
	assert.Nil(t, res)
	assert.Equal(t, "p0", bindErr.Slot.Name)

	names := eventNames(collector.Events())
	assert.Equal(t, []string{
		annotations.QueryInvoked,
		annotations.ErrorQueryBinding,
		annotations.QueryComplete,
	}, names)

	binding := collector.Named(annotations.ErrorQueryBinding)[0]
	assert.Equal(t, "p0", binding.Data["slot"])
	assert.Equal(t, resident.Plan.ID.String(), binding.Data["plan.id"])
	assert.Equal(t, false, collector.Named(annotations.QueryComplete)[0].Data["success"])

	// The resident plan still serves the shape
	again, err := qe.Query(ctx, namedRequest(t, s, "customer-by-id", demo.Args{"id": 4}))
	require.NoError(t, err)
	assert.True(t, again.CacheHit)
	assert.Same(t, resident.Plan, again.Plan)
	assert.Equal(t, 1, qe.Cache().Stats().Size)
	assert.Positive(t, atomic.LoadInt64(&handled))
}

func TestQueryExecutorColdAndWarmAgree(t *testing.T) {
	s := demo.NewSchema()
	ref := demo.Dataset()["Customers"][0]["Ref"].(uuid.UUID)

	tests := []struct {
		name  string
		build func() *query.Request
		want  []int32
	}{
		{
			name: "guid literal",
			build: func() *query.Request {
				req := query.NewRequest(s.Customers)
				req.Filter = query.Eq(query.Prop(s.CustomerRef), query.TypedConst(ref.String(), odata.Guid))
				return req
			},
			want: []int32{1},
		},
		{
			name: "datetimeoffset literal",
			build: func() *query.Request {
				req := query.NewRequest(s.Customers)
				req.Filter = query.Ge(query.Prop(s.CustomerSince), query.TypedConst("2022-06-01T00:00:00Z", odata.DateTimeOffset))
				req.OrderBy = query.Asc(query.Prop(s.CustomerID))
				return req
			},
			want: []int32{1, 2, 3, 4, 5, 6, 7},
		},
		{
			name: "widened integer literal",
			build: func() *query.Request {
				req := query.NewRequest(s.Customers)
				req.Filter = query.Eq(query.Prop(s.CustomerID), query.TypedConst(int64(12), odata.Int32))
				return req
			},
			want: []int32{12},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qe, _ := newTestExecutor(t)
			ctx := context.Background()

			cold, err := qe.Query(ctx, tt.build())
			require.NoError(t, err)
			assert.False(t, cold.CacheHit)

			warm, err := qe.Query(ctx, tt.build())
			require.NoError(t, err)
			assert.True(t, warm.CacheHit)

			assert.Equal(t, tt.want, ids(cold))
			assert.Equal(t, ids(cold), ids(warm))
		})
	}
}

func TestQueryExecutorBindingFailureColdAndWarm(t *testing.T) {
	qe, s := newTestExecutor(t)
	ctx := context.Background()

	byID := func(v interface{}) *query.Request {
		req := query.NewRequest(s.Customers)
		req.Filter = query.Eq(query.Prop(s.CustomerID), query.TypedConst(v, odata.Int32))
		return req
	}
	failures := testutil.ToFloat64(metrics.BindingFailures)

	// Nothing resident: the fresh compile rejects the literal
	_, coldErr := qe.Query(ctx, byID(int64(1)<<40))
	var cold *uricompare.BindingError
	require.ErrorAs(t, coldErr, &cold)
	assert.Equal(t, 0, qe.Cache().Stats().Size)

	_, err := qe.Query(ctx, byID(1))
	require.NoError(t, err)

	// A resident plan matches but cannot take the literal
	_, warmErr := qe.Query(ctx, byID(int64(1)<<40))
	var warm *uricompare.BindingError
	require.ErrorAs(t, warmErr, &warm)

	assert.Equal(t, cold.Slot.Name, warm.Slot.Name)
	assert.Equal(t, cold.Value, warm.Value)

	stats := qe.Cache().Stats()
	assert.Equal(t, int64(1), stats.BindingFailures)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, failures+2, testutil.ToFloat64(metrics.BindingFailures))
}

func TestQueryExecutorEvents(t *testing.T) {
	qe, s := newTestExecutor(t)
	ctx := context.Background()

	collector := annotations.NewCollector(func(annotations.Event) {})
	_, err := qe.QueryWithContext(ctx, NewAnnotatedContext(collector), namedRequest(t, s, "big-orders", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{
		annotations.QueryInvoked,
		annotations.PlanCacheMiss,
		annotations.PlanCompiled,
		annotations.PlanCacheInserted,
		annotations.StageComplete, // filter
		annotations.StageComplete, // orderby
		annotations.StageComplete, // count
		annotations.StageComplete, // page
		annotations.StageComplete, // project
		annotations.QueryComplete,
	}, eventNames(collector.Events()))

	stages := collector.Named(annotations.StageComplete)
	assert.Equal(t, "filter", stages[0].Data["stage"])
	assert.Equal(t, 100, stages[0].Data["input.size"])

	collector.Reset()
	_, err = qe.QueryWithContext(ctx, NewAnnotatedContext(collector), namedRequest(t, s, "big-orders", demo.Args{"min": 100.0}))
	require.NoError(t, err)
	hit := collector.Named(annotations.PlanCacheHit)
	require.Len(t, hit, 1)
	assert.Equal(t, 2, hit[0].Data["slots.count"])

	complete := collector.Named(annotations.QueryComplete)[0]
	assert.Equal(t, true, complete.Data["cache.hit"])
	assert.Equal(t, 5, complete.Data["rows.count"])
}

func TestQueryExecutorErrorEvents(t *testing.T) {
	qe, s := newTestExecutor(t)

	collector := annotations.NewCollector(func(annotations.Event) {})
	req := query.NewRequest(s.Customers)
	req.Filter = query.Call("soundex", query.Prop(s.CustomerName))

	_, err := qe.QueryWithContext(context.Background(), NewAnnotatedContext(collector), req)
	require.Error(t, err)
	assert.Len(t, collector.Named(annotations.ErrorQueryInternal), 1)
	complete := collector.Named(annotations.QueryComplete)[0]
	assert.Equal(t, false, complete.Data["success"])

	_, err = qe.Query(context.Background(), &query.Request{})
	assert.Error(t, err)
}

func TestQueryExecutorWithoutCache(t *testing.T) {
	qe := NewQueryExecutor(MemorySource(demo.Dataset()), planner.DefaultPlannerOptions(), DefaultExecutorOptions())
	s := demo.NewSchema()

	for i := 0; i < 2; i++ {
		res, err := qe.Query(context.Background(), namedRequest(t, s, "customer-by-id", nil))
		require.NoError(t, err)
		assert.False(t, res.CacheHit)
	}
	assert.Nil(t, qe.Cache())
}

func TestQueryAll(t *testing.T) {
	qe, s := newTestExecutor(t)

	var reqs []*query.Request
	for _, inv := range demo.Workload() {
		if _, ok := inv.Args["id"].(int64); ok {
			continue // out of range for Edm.Int32
		}
		reqs = append(reqs, namedRequest(t, s, inv.Query, inv.Args))
	}

	results, err := qe.QueryAll(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, len(reqs))
	for _, r := range results {
		assert.NotNil(t, r)
	}
	assert.Equal(t, []int32{2}, ids(results[1]))
	assert.Equal(t, []int32{25}, ids(results[len(results)-1]))

	failing := append(reqs[:1:1], namedRequest(t, s, "customer-by-id", demo.Args{"id": int64(1) << 40}))
	_, err = qe.QueryAll(context.Background(), failing)
	var bindErr *uricompare.BindingError
	assert.ErrorAs(t, err, &bindErr)
}

func TestWorkerPool(t *testing.T) {
	pool := NewWorkerPool(4)

	var sum int64
	err := pool.ExecuteParallel(context.Background(), 100, func(ctx context.Context, i int) error {
		atomic.AddInt64(&sum, int64(i))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4950), sum)

	boom := errors.New("boom")
	err = pool.ExecuteParallel(context.Background(), 50, func(ctx context.Context, i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "index 3")

	assert.NoError(t, pool.ExecuteParallel(context.Background(), 0, nil))
}
