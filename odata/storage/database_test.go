package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/annotations"
	"github.com/wbrown/janus-odata/odata/demo"
)

func openDemo(t *testing.T, path string, opts Options) (*Database, *demo.Schema) {
	t.Helper()
	s := demo.NewSchema()
	db, err := Open(path, s.Model, opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, s
}

func inMemory() Options {
	opts := DefaultOptions()
	opts.InMemory = true
	return opts
}

func TestDatabaseQuery(t *testing.T) {
	db, s := openDemo(t, "", inMemory())
	require.NoError(t, db.Load(demo.Dataset()))

	count, err := db.Count("Orders")
	require.NoError(t, err)
	assert.Equal(t, int64(100), count)

	q, _ := demo.Lookup("big-orders")
	ctx := context.Background()

	res, err := db.Query(ctx, q.Request(s, demo.Args{"min": 250.0, "top": 10}))
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	require.NotNil(t, res.Count)
	assert.Equal(t, int64(28), *res.Count)
	require.Len(t, res.Rows, 10)
	assert.Equal(t, int32(1096), res.Rows[0]["Id"])
	assert.Equal(t, 418.0, res.Rows[0]["Amount"])

	// Same shape, new literals
	res, err = db.Query(ctx, q.Request(s, demo.Args{"min": 500.0, "top": 3}))
	require.NoError(t, err)
	assert.True(t, res.CacheHit)
	assert.Empty(t, res.Rows)
	assert.Equal(t, int64(0), *res.Count)

	stats := db.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestDatabaseMatchesMemory(t *testing.T) {
	db, s := openDemo(t, "", inMemory())
	data := demo.Dataset()
	require.NoError(t, db.Load(data))

	ctx := context.Background()
	for _, q := range demo.Queries() {
		t.Run(q.Name, func(t *testing.T) {
			rows, err := db.Scan(ctx, q.Request(s, nil).EntitySet)
			require.NoError(t, err)
			assert.Equal(t, data[q.Request(s, nil).EntitySet.Name], rows)

			stored, err := db.Query(ctx, q.Request(s, nil))
			require.NoError(t, err)
			assert.NotNil(t, stored.Plan)
		})
	}
}

func TestDatabasePersistence(t *testing.T) {
	dir := t.TempDir()
	s := demo.NewSchema()

	db, err := Open(dir, s.Model, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, db.Put("Customers", demo.Dataset()["Customers"]...))
	require.NoError(t, db.Close())

	db, err = Open(dir, s.Model, DefaultOptions())
	require.NoError(t, err)
	defer db.Close()

	c, err := db.Get("Customers", 7)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Customer 07", c["Name"])
	assert.Nil(t, c["City"])

	q, _ := demo.Lookup("customer-by-id")
	res, err := db.Query(context.Background(), q.Request(s, demo.Args{"id": 12}))
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Customer 12", res.Rows[0]["Name"])
}

func TestDatabaseAnnotations(t *testing.T) {
	db, s := openDemo(t, "", inMemory())
	require.NoError(t, db.Load(demo.Dataset()))

	seen := make(map[string]int)
	db.SetHandler(func(e annotations.Event) { seen[e.Name]++ })

	q, _ := demo.Lookup("customer-by-id")
	for _, id := range []interface{}{1, 2} {
		_, err := db.Query(context.Background(), q.Request(s, demo.Args{"id": id}))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, seen[annotations.PlanCacheMiss])
	assert.Equal(t, 1, seen[annotations.PlanCacheHit])
	assert.Equal(t, 1, seen[annotations.PlanCacheInserted])
	assert.Equal(t, 2, seen[annotations.QueryComplete])
}

func TestDatabaseErrors(t *testing.T) {
	s := demo.NewSchema()
	_, err := Open("", s.Model, DefaultOptions())
	assert.Error(t, err, "a path is required")

	db, _ := openDemo(t, "", inMemory())
	assert.Error(t, db.Put("Invoices", odata.Entity{"Id": 1}))
	_, err = db.Get("Invoices", 1)
	assert.Error(t, err)

	other := odata.NewModel("Other")
	typ := other.AddEntityType("Thing", false)
	typ.AddKey("Id", odata.Int32)
	set := other.AddEntitySet("Things", typ)
	_, err = db.Scan(context.Background(), set)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, db.Load(demo.Dataset()))
	_, err = db.Scan(ctx, s.Customers)
	assert.ErrorIs(t, err, context.Canceled)
}
