package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/wbrown/janus-odata/odata/annotations"
	"github.com/wbrown/janus-odata/odata/metrics"
	"github.com/wbrown/janus-odata/odata/planner"
	"github.com/wbrown/janus-odata/odata/query"
	"github.com/wbrown/janus-odata/odata/uricompare"
)

// QueryExecutor serves requests through the plan cache:
//
//	hash -> lookup -> bind -> execute            (hit)
//	hash -> lookup -> compile -> insert -> execute (miss)
//
// When a resident plan matches structurally but the request's literals
// cannot be bound to its slots, the request is recompiled without touching
// the resident plan. A literal that does not fit its declared type fails the
// recompile too, so the caller gets the same *uricompare.BindingError with a
// cold or a warm cache.
type QueryExecutor struct {
	executor *Executor
	compiler *planner.Compiler
	cache    *planner.PlanCache
	options  ExecutorOptions
	handler  annotations.Handler
}

// NewQueryExecutor creates a query executor over source. The plan cache is
// taken from plannerOpts.Cache; without one every request compiles.
func NewQueryExecutor(source Source, plannerOpts planner.PlannerOptions, options ExecutorOptions) *QueryExecutor {
	return &QueryExecutor{
		executor: NewExecutor(source, options),
		compiler: planner.NewCompiler(plannerOpts),
		cache:    plannerOpts.Cache,
		options:  options,
	}
}

// SetHandler installs an annotation handler for subsequent requests
func (q *QueryExecutor) SetHandler(handler annotations.Handler) {
	q.handler = handler
}

// Cache returns the plan cache, which may be nil
func (q *QueryExecutor) Cache() *planner.PlanCache {
	return q.cache
}

// Query serves req
func (q *QueryExecutor) Query(ctx context.Context, req *query.Request) (*Result, error) {
	return q.QueryWithContext(ctx, NewContext(q.handler), req)
}

// QueryWithContext serves req, reporting to actx
func (q *QueryExecutor) QueryWithContext(ctx context.Context, actx Context, req *query.Request) (result *Result, err error) {
	hit := false
	defer func() {
		rows := 0
		if result != nil {
			rows = len(result.Rows)
		}
		var bindErr *uricompare.BindingError
		if err != nil && !errors.As(err, &bindErr) {
			actx.QueryError(err)
		}
		actx.QueryComplete(rows, hit, err)
	}()

	plan, bindings, hit, err := q.PrepareWithContext(actx, req)
	if err != nil {
		return nil, err
	}
	result, err = q.executor.ExecuteWithContext(ctx, actx, plan, bindings)
	if err != nil {
		return nil, err
	}
	result.CacheHit = hit
	return result, nil
}

// Prepare returns the plan serving req and the bindings to run it with,
// compiling and caching a plan when no resident one applies
func (q *QueryExecutor) Prepare(req *query.Request) (*planner.Plan, []uricompare.Binding, bool, error) {
	return q.PrepareWithContext(NewContext(q.handler), req)
}

// PrepareWithContext is Prepare reporting to actx
func (q *QueryExecutor) PrepareWithContext(actx Context, req *query.Request) (*planner.Plan, []uricompare.Binding, bool, error) {
	if req == nil || req.EntitySet == nil {
		return nil, nil, false, fmt.Errorf("request has no entity set")
	}

	digest := uricompare.Hash(req)
	actx.QueryBegin(req.String(), digest)

	plan, bindings, hit, err := q.cache.LookupDigest(digest, req)
	if hit {
		metrics.ObserveLookup(metrics.ResultHit)
		actx.CacheHit(plan, bindings)
		return plan, bindings, true, nil
	}

	insert := q.cache != nil
	reported := false
	if err != nil {
		var bindErr *uricompare.BindingError
		if !errors.As(err, &bindErr) {
			return nil, nil, false, fmt.Errorf("plan cache lookup: %w", err)
		}
		metrics.ObserveLookup(metrics.ResultBindingFailure)
		actx.BindingFailed(plan, bindErr)
		insert = false
		reported = true
	} else {
		metrics.ObserveLookup(metrics.ResultMiss)
		actx.CacheMiss(digest)
	}

	plan, bindings, err = q.compiler.Compile(req)
	if err != nil {
		var bindErr *uricompare.BindingError
		if errors.As(err, &bindErr) {
			// Same error whether or not a resident plan matched
			if !reported {
				metrics.ObserveBindingFailure()
				actx.BindingFailed(nil, bindErr)
			}
			return nil, nil, false, err
		}
		return nil, nil, false, fmt.Errorf("compile: %w", err)
	}
	metrics.ObserveCompile(plan.CompileTime)
	actx.PlanCompiled(plan)

	if insert {
		q.cache.Insert(plan)
		metrics.ObserveInsert()
		actx.PlanInserted(plan, q.cache.Stats().Size)
	}
	return plan, bindings, false, nil
}

// QueryAll serves reqs in parallel. Results are in request order; the first
// failure cancels the remaining requests.
func (q *QueryExecutor) QueryAll(ctx context.Context, reqs []*query.Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	pool := NewWorkerPool(q.options.Workers)
	err := pool.ExecuteParallel(ctx, len(reqs), func(ctx context.Context, i int) error {
		res, err := q.Query(ctx, reqs[i])
		if err != nil {
			return err
		}
		results[i] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
