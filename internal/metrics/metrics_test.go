package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/schema-api/internal/sync"
)

func TestObserveBatch(t *testing.T) {
	t.Parallel()

	m := New()

	m.ObserveBatch("ok", []*sync.Operation{
		{Type: "posts", ID: "p1", Kind: sync.KindCreate},
		{Type: "posts", ID: "p2", Kind: sync.KindCreate},
		{Type: "comments", ID: "c1", Kind: sync.KindDelete},
	}, 20*time.Millisecond)
	m.ObserveBatch("forbidden", nil, time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.syncBatches.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.syncBatches.WithLabelValues("forbidden")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.syncOperations.WithLabelValues("posts", "C")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.syncOperations.WithLabelValues("comments", "D")), 0)
}

func TestHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveRequest(http.MethodGet, "/{type}", http.StatusOK, time.Millisecond)
	m.Published(3)
	m.SubscriberDelta(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `schema_api_http_requests_total{code="200",method="GET",route="/{type}"} 1`)
	assert.Contains(t, string(body), "schema_api_broadcast_messages_total 3")
	assert.Contains(t, string(body), "schema_api_broadcast_subscribers 1")
	assert.Contains(t, string(body), "go_goroutines")
}
