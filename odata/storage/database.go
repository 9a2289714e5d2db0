package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/annotations"
	"github.com/wbrown/janus-odata/odata/executor"
	"github.com/wbrown/janus-odata/odata/planner"
	"github.com/wbrown/janus-odata/odata/query"
	"github.com/wbrown/janus-odata/odata/uricompare"
)

// Options configures a Database
type Options struct {
	InMemory  bool          // Keep everything in memory; the path is ignored
	CacheSize int           // Resident plans (0 = default)
	CacheTTL  time.Duration // Plan lifetime (0 = default)
	Planner   planner.PlannerOptions
	Executor  executor.ExecutorOptions
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		CacheSize: 1000,
		CacheTTL:  5 * time.Minute,
		Planner:   planner.DefaultPlannerOptions(),
		Executor:  executor.DefaultExecutorOptions(),
	}
}

// Database serves requests over a model whose entities live in a Store.
// Every request goes through a shared plan cache.
type Database struct {
	model     *odata.Model
	store     Store
	planCache *planner.PlanCache
	queries   *executor.QueryExecutor
}

// Open opens a database for model at path
func Open(path string, model *odata.Model, opts Options) (*Database, error) {
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	if err := CheckSetIDs(model); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	if opts.InMemory {
		path = ""
	} else if path == "" {
		return nil, fmt.Errorf("a path is required unless the database is in memory")
	}

	store, err := NewBadgerStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	return newDatabase(model, store, opts), nil
}

func newDatabase(model *odata.Model, store Store, opts Options) *Database {
	d := &Database{
		model:     model,
		store:     store,
		planCache: planner.NewPlanCache(opts.CacheSize, opts.CacheTTL),
	}
	plannerOpts := opts.Planner
	plannerOpts.Cache = d.planCache
	d.queries = executor.NewQueryExecutor(d, plannerOpts, opts.Executor)
	return d
}

// Model returns the model the database serves
func (d *Database) Model() *odata.Model {
	return d.model
}

func (d *Database) entitySet(name string) (*odata.EntitySet, error) {
	set, ok := d.model.EntitySet(name)
	if !ok {
		return nil, fmt.Errorf("unknown entity set %s", name)
	}
	return set, nil
}

// Put stores entities in the named entity set
func (d *Database) Put(setName string, entities ...odata.Entity) error {
	set, err := d.entitySet(setName)
	if err != nil {
		return err
	}
	return d.store.Put(set, entities)
}

// Load stores every entity set of data, keyed by set name
func (d *Database) Load(data map[string][]odata.Entity) error {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := d.Put(name, data[name]...); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// Get returns the entity of the named set with the given key, or nil
func (d *Database) Get(setName string, key interface{}) (odata.Entity, error) {
	set, err := d.entitySet(setName)
	if err != nil {
		return nil, err
	}
	return d.store.Get(set, key)
}

// Delete removes the entity of the named set with the given key
func (d *Database) Delete(setName string, key interface{}) error {
	set, err := d.entitySet(setName)
	if err != nil {
		return err
	}
	return d.store.Delete(set, key)
}

// Count returns the number of entities in the named set
func (d *Database) Count(setName string) (int64, error) {
	set, err := d.entitySet(setName)
	if err != nil {
		return 0, err
	}
	return d.store.Count(set)
}

// Scan implements executor.Source. Rows come back in key order.
func (d *Database) Scan(ctx context.Context, set *odata.EntitySet) ([]odata.Entity, error) {
	if _, ok := d.model.EntitySet(set.Name); !ok {
		return nil, fmt.Errorf("unknown entity set %s", set.Name)
	}
	it, err := d.store.Scan(set)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var rows []odata.Entity
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := it.Entity()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", set.Name, err)
		}
		rows = append(rows, e)
	}
	return rows, nil
}

// Query serves req through the plan cache
func (d *Database) Query(ctx context.Context, req *query.Request) (*executor.Result, error) {
	return d.queries.Query(ctx, req)
}

// Prepare returns the plan that would serve req and its bindings
func (d *Database) Prepare(req *query.Request) (*planner.Plan, []uricompare.Binding, bool, error) {
	return d.queries.Prepare(req)
}

// QueryExecutor returns the query executor, for callers that need
// annotation contexts or parallel execution
func (d *Database) QueryExecutor() *executor.QueryExecutor {
	return d.queries
}

// SetHandler installs an annotation handler for subsequent requests
func (d *Database) SetHandler(handler annotations.Handler) {
	d.queries.SetHandler(handler)
}

// PlanCache returns the plan cache
func (d *Database) PlanCache() *planner.PlanCache {
	return d.planCache
}

// CacheStats returns plan cache statistics
func (d *Database) CacheStats() planner.CacheStats {
	return d.planCache.Stats()
}

// Close closes the database
func (d *Database) Close() error {
	return d.store.Close()
}
