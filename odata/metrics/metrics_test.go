package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookups.WithLabelValues(ResultHit))
	failures := testutil.ToFloat64(BindingFailures)

	ObserveLookup(ResultHit)
	ObserveLookup(ResultBindingFailure)

	assert.Equal(t, hits+1, testutil.ToFloat64(CacheLookups.WithLabelValues(ResultHit)))
	assert.Equal(t, failures+1, testutil.ToFloat64(BindingFailures))

	// Failures found while compiling count without a lookup
	misses := testutil.ToFloat64(CacheLookups.WithLabelValues(ResultMiss))
	ObserveBindingFailure()
	assert.Equal(t, failures+2, testutil.ToFloat64(BindingFailures))
	assert.Equal(t, misses, testutil.ToFloat64(CacheLookups.WithLabelValues(ResultMiss)))
}

func TestObserveInsertAndCompile(t *testing.T) {
	inserts := testutil.ToFloat64(CacheInserts)
	ObserveInsert()
	assert.Equal(t, inserts+1, testutil.ToFloat64(CacheInserts))

	ObserveCompile(3 * time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(CompileSeconds))
}

func TestHandler(t *testing.T) {
	ObserveLookup(ResultMiss)

	mux := http.DefaultServeMux
	HandleHTTP()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `plancache_lookups_total{result="miss"}`)
	assert.Contains(t, rec.Body.String(), "plan_compile_seconds")
}
