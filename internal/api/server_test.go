// 本文件用于 API 接口测试

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pool-watch/internal/alert"
	"pool-watch/internal/metrics"
	"pool-watch/internal/watch"
)

type fakeStatus struct {
	st watch.ManagerStatus
}

func (f fakeStatus) Status() watch.ManagerStatus { return f.st }

type fakeSwitch struct {
	enabled bool
	err     error
}

func (f *fakeSwitch) Maintenance() bool { return f.enabled }

func (f *fakeSwitch) SetMaintenance(enabled bool) error {
	if f.err != nil {
		return f.err
	}
	f.enabled = enabled
	return nil
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(newHandler(Deps{}), http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	st := watch.ManagerStatus{
		Pipeline: watch.Status{Lines: 10, Parsed: 9, Stats: alert.Stats{Sent: 2, Suppressed: 1}},
		Decisions: []alert.Decision{
			{ID: "id-1", Category: alert.CategoryFailover, Status: alert.StatusSent},
		},
	}
	h := newHandler(Deps{Status: fakeStatus{st: st}})

	rec := serve(h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 9, got["pipeline"].(map[string]any)["parsed"])
	assert.EqualValues(t, 2, got["stats"].(map[string]any)["sent"])
	decisions := got["decisions"].([]any)
	require.Len(t, decisions, 1)
	assert.Equal(t, "failover", decisions[0].(map[string]any)["category"])
	assert.NotContains(t, got, "system")

	rec = serve(h, http.MethodPost, "/api/status", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusNotReady(t *testing.T) {
	rec := serve(newHandler(Deps{}), http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMaintenanceToggle(t *testing.T) {
	sw := &fakeSwitch{}
	h := newHandler(Deps{Maintenance: sw})

	rec := serve(h, http.MethodPost, "/api/maintenance", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sw.enabled)

	rec = serve(h, http.MethodGet, "/api/maintenance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"enabled":true}`, rec.Body.String())

	rec = serve(h, http.MethodPost, "/api/maintenance", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sw.err = errors.New("disk full")
	rec = serve(h, http.MethodPost, "/api/maintenance", `{"enabled":false}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, sw.enabled)
}

func TestMetricsRoute(t *testing.T) {
	c := metrics.NewCollector()
	c.IncLine()
	h := newHandler(Deps{Metrics: c.Handler()})

	rec := serve(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "pool_watch_lines_read_total 1")

	rec = serve(newHandler(Deps{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWithCORSPreflight(t *testing.T) {
	rec := serve(newHandler(Deps{}), http.MethodOptions, "/api/maintenance", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
