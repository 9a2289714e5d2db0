package executor

import (
	"time"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/annotations"
	"github.com/wbrown/janus-odata/odata/planner"
	"github.com/wbrown/janus-odata/odata/uricompare"
)

// Context provides clean annotation points for request handling.
type Context interface {
	// Query lifecycle
	QueryBegin(text string, digest uint64)
	QueryComplete(rows int, cacheHit bool, err error)
	QueryError(err error)

	// Plan cache and compilation
	CacheHit(plan *planner.Plan, bindings []uricompare.Binding)
	CacheMiss(digest uint64)
	BindingFailed(plan *planner.Plan, err *uricompare.BindingError)
	PlanCompiled(plan *planner.Plan)
	PlanInserted(plan *planner.Plan, cacheSize int)

	// Execution stages
	ExecuteStage(name string, rows []odata.Entity, fn func() ([]odata.Entity, error)) ([]odata.Entity, error)

	// Get underlying collector
	Collector() *annotations.Collector
}

// BaseContext provides a no-op implementation with zero overhead.
type BaseContext struct{}

// NewContext creates an appropriate context based on whether annotations are needed.
func NewContext(handler annotations.Handler) Context {
	if handler == nil {
		return &BaseContext{}
	}
	return &AnnotatedContext{
		collector: annotations.NewCollector(handler),
	}
}

// BaseContext implementations - all are simple pass-throughs

func (c *BaseContext) QueryBegin(text string, digest uint64) {}

func (c *BaseContext) QueryComplete(rows int, cacheHit bool, err error) {}

func (c *BaseContext) QueryError(err error) {}

func (c *BaseContext) CacheHit(plan *planner.Plan, bindings []uricompare.Binding) {}

func (c *BaseContext) CacheMiss(digest uint64) {}

func (c *BaseContext) BindingFailed(plan *planner.Plan, err *uricompare.BindingError) {}

func (c *BaseContext) PlanCompiled(plan *planner.Plan) {}

func (c *BaseContext) PlanInserted(plan *planner.Plan, cacheSize int) {}

func (c *BaseContext) ExecuteStage(name string, rows []odata.Entity, fn func() ([]odata.Entity, error)) ([]odata.Entity, error) {
	return fn()
}

func (c *BaseContext) Collector() *annotations.Collector {
	return nil
}

// AnnotatedContext provides full annotation tracking
type AnnotatedContext struct {
	BaseContext
	collector  *annotations.Collector
	queryStart time.Time
}

// NewAnnotatedContext wraps an existing collector
func NewAnnotatedContext(collector *annotations.Collector) *AnnotatedContext {
	return &AnnotatedContext{collector: collector}
}

func (c *AnnotatedContext) QueryBegin(text string, digest uint64) {
	c.queryStart = time.Now()
	c.collector.Add(annotations.Event{
		Name:  annotations.QueryInvoked,
		Start: c.queryStart,
		Data: map[string]interface{}{
			"query":  text,
			"digest": digest,
		},
	})
}

func (c *AnnotatedContext) QueryComplete(rows int, cacheHit bool, err error) {
	data := map[string]interface{}{
		"rows.count": rows,
		"cache.hit":  cacheHit,
		"success":    err == nil,
	}

	if err != nil {
		data["error"] = err.Error()
	}

	c.collector.AddTiming(annotations.QueryComplete, c.queryStart, data)
}

func (c *AnnotatedContext) QueryError(err error) {
	c.collector.AddTiming(annotations.ErrorQueryInternal, c.queryStart, map[string]interface{}{
		"error": err.Error(),
	})
}

func (c *AnnotatedContext) CacheHit(plan *planner.Plan, bindings []uricompare.Binding) {
	c.collector.AddTiming(annotations.PlanCacheHit, c.queryStart, map[string]interface{}{
		"plan.id":     plan.ID.String(),
		"digest":      plan.Digest,
		"slots.count": len(bindings),
	})
}

func (c *AnnotatedContext) CacheMiss(digest uint64) {
	c.collector.AddTiming(annotations.PlanCacheMiss, c.queryStart, map[string]interface{}{
		"digest": digest,
	})
}

func (c *AnnotatedContext) BindingFailed(plan *planner.Plan, err *uricompare.BindingError) {
	data := map[string]interface{}{
		"slot":  err.Slot.Name,
		"value": err.Value,
		"error": err.Err.Error(),
	}
	if plan != nil {
		data["plan.id"] = plan.ID.String()
	}
	c.collector.AddTiming(annotations.ErrorQueryBinding, c.queryStart, data)
}

func (c *AnnotatedContext) PlanCompiled(plan *planner.Plan) {
	c.collector.Add(annotations.Event{
		Name:    annotations.PlanCompiled,
		Start:   plan.CompiledAt.Add(-plan.CompileTime),
		End:     plan.CompiledAt,
		Latency: plan.CompileTime,
		Data: map[string]interface{}{
			"plan.id":     plan.ID.String(),
			"plan.text":   plan.Text,
			"slots.count": len(plan.Slots),
		},
	})
}

func (c *AnnotatedContext) PlanInserted(plan *planner.Plan, cacheSize int) {
	c.collector.Add(annotations.Event{
		Name:  annotations.PlanCacheInserted,
		Start: time.Now(),
		Data: map[string]interface{}{
			"plan.id":    plan.ID.String(),
			"cache.size": cacheSize,
		},
	})
}

func (c *AnnotatedContext) ExecuteStage(name string, rows []odata.Entity, fn func() ([]odata.Entity, error)) ([]odata.Entity, error) {
	start := time.Now()
	result, err := fn()

	data := map[string]interface{}{
		"stage":       name,
		"input.size":  len(rows),
		"output.size": len(result),
		"success":     err == nil,
	}
	if err != nil {
		data["error"] = err.Error()
	}

	c.collector.AddTiming(annotations.StageComplete, start, data)
	return result, err
}

func (c *AnnotatedContext) Collector() *annotations.Collector {
	return c.collector
}
