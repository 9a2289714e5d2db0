package annotations

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	var seen []string
	c := NewCollector(func(e Event) { seen = append(seen, e.Name) })
	require.True(t, c.Enabled())

	c.AddTiming(QueryInvoked, time.Now(), map[string]interface{}{"query": "Customers"})
	c.Add(Event{Name: PlanCacheMiss})
	c.Add(Event{Name: PlanCacheMiss})

	assert.Equal(t, []string{QueryInvoked, PlanCacheMiss, PlanCacheMiss}, seen)
	assert.Len(t, c.Events(), 3)
	assert.Len(t, c.Named(PlanCacheMiss), 2)
	assert.GreaterOrEqual(t, c.Events()[0].Latency, time.Duration(0))

	c.Reset()
	assert.Empty(t, c.Events())
}

func TestCollectorDisabled(t *testing.T) {
	c := NewCollector(nil)
	assert.False(t, c.Enabled())
	c.Add(Event{Name: QueryInvoked})
	assert.Empty(t, c.Events())

	var nilCollector *Collector
	assert.False(t, nilCollector.Enabled())
	nilCollector.AddTiming(QueryInvoked, time.Now(), nil)
	assert.Empty(t, nilCollector.Events())
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector(func(Event) {})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Add(Event{Name: StageComplete})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, c.Events(), 1000)
}

func TestFormat(t *testing.T) {
	var buf bytes.Buffer
	f := NewPlainFormatter(&buf)

	tests := []struct {
		event Event
		want  string
	}{
		{
			Event{Name: QueryInvoked, Latency: 5 * time.Microsecond, Data: map[string]interface{}{"query": "Customers?$top=1"}},
			"[5µs] Query: Customers?$top=1",
		},
		{
			Event{Name: PlanCacheHit, Latency: 2 * time.Millisecond, Data: map[string]interface{}{
				"plan.id": "0b9e2f4c-1111-2222-3333-444455556666", "slots.count": 2,
			}},
			"[2.0ms] cache hit plan 0b9e2f4c, 2 slots rebound",
		},
		{
			Event{Name: PlanCacheMiss, Data: map[string]interface{}{"digest": uint64(255)}},
			"[0µs] cache miss digest 00000000000000ff",
		},
		{
			Event{Name: StageComplete, Data: map[string]interface{}{"stage": "filter", "input.size": 10, "output.size": 3}},
			"[0µs] Stage(filter) on 10 rows → 3 rows",
		},
		{
			Event{Name: QueryComplete, Data: map[string]interface{}{"success": true, "rows.count": 3, "cache.hit": true}},
			"[0µs] === Query done with 3 rows (cached plan)",
		},
		{
			Event{Name: QueryComplete, Data: map[string]interface{}{"success": false, "error": errors.New("boom")}},
			"[0µs] ✗ Query failed: boom",
		},
		{
			Event{Name: ErrorQueryBinding, Data: map[string]interface{}{
				"value": 7, "slot": "p0", "plan.id": "abc", "error": "out of range",
			}},
			"[0µs] ⚠️ cannot bind 7 to @p0 of plan abc: out of range",
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, f.Format(tt.event))
	}

	f.Handle(Event{Name: PlanCacheMiss, Data: map[string]interface{}{"digest": uint64(1)}})
	assert.Contains(t, buf.String(), "cache miss")
}

func TestTruncateQuery(t *testing.T) {
	long := "Customers?$filter=" + string(bytes.Repeat([]byte("a"), 200))
	out := truncateQuery(long)
	assert.Len(t, out, 100)
	assert.True(t, len(out) < len(long))
	assert.Equal(t, "a b", truncateQuery("a   b"))
}
