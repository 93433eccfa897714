package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreIsolated(t *testing.T) {
	a := NewCollector("flowpertoire")
	b := NewCollector("flowpertoire")

	a.CacheHit()
	a.CacheHit()
	b.CacheMiss()

	assert.Equal(t, 2.0, testutil.ToFloat64(a.CacheHits))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.CacheMisses))
}

func TestRecordings(t *testing.T) {
	c := NewCollector("flowpertoire")

	c.RecordHTTP("GET", "/api/v1/trees", "200", 5*time.Millisecond)
	c.RecordHTTP("GET", "/api/v1/trees", "200", 7*time.Millisecond)
	c.RecordRepoOperation("load", time.Millisecond, nil)
	c.RecordRepoOperation("save", time.Millisecond, errors.New("throttled"))
	c.RecordProjection(true, 6, time.Millisecond)
	c.RecordMissingRecord("skill")
	c.EventPublished("skill.added")
	c.SessionOpened()
	c.SessionOpened()
	c.SessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/api/v1/trees", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RepoOperations.WithLabelValues("load", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RepoOperations.WithLabelValues("save", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.MissingRecords.WithLabelValues("skill")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.EventsPublished.WithLabelValues("skill.added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActiveSessions))
	assert.Equal(t, 1, testutil.CollectAndCount(c.ProjectionDuration))
}

func TestHandlerServesRegistry(t *testing.T) {
	c := NewCollector("flowpertoire")
	c.RecordMissingRecord("group")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `flowpertoire_missing_records_total{kind="group"} 1`)
}
