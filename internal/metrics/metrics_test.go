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
)

func TestObserveGroup(t *testing.T) {
	before := testutil.ToFloat64(Orders.WithLabelValues("dropped"))
	flights := testutil.ToFloat64(Flights)
	ObserveGroup(2, 5, 1, 0, 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(Orders.WithLabelValues("dropped")))
	assert.Equal(t, flights+2, testutil.ToFloat64(Flights))
}

func TestObservePathCache(t *testing.T) {
	hits := testutil.ToFloat64(PathCache.WithLabelValues("hit"))
	ObservePathCache(3, 1)
	assert.Equal(t, hits+3, testutil.ToFloat64(PathCache.WithLabelValues("hit")))
}

func TestInstrumentUsesPattern(t *testing.T) {
	RegisterDefault()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/plans/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := Instrument(mux)
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "GET /v1/plans/{id}", "404"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/plans/abc", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "GET /v1/plans/{id}", "404")))

	ObservePathSearch(12, false, true)
	srv := httptest.NewServer(Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `dronenav_path_expansions_count{result="capped"}`)
}
