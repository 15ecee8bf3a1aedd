package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/guardian/internal/audit"
	"github.com/danielpatrickdp/guardian/internal/enforce"
	"github.com/danielpatrickdp/guardian/internal/manifest"
	"github.com/danielpatrickdp/guardian/internal/ratelimit"
	"github.com/danielpatrickdp/guardian/internal/retry"
	"github.com/danielpatrickdp/guardian/internal/rollout"
	"github.com/danielpatrickdp/guardian/internal/slo"
	"github.com/danielpatrickdp/guardian/internal/supervisor"
	"github.com/danielpatrickdp/guardian/internal/telemetry"
	"github.com/danielpatrickdp/guardian/internal/threshold"
)

type noopController struct{}

func (noopController) Throttle(ctx context.Context, target string) error  { return nil }
func (noopController) Degrade(ctx context.Context, target string) error   { return nil }
func (noopController) Terminate(ctx context.Context, target string) error { return nil }

type staticReader struct {
	snap telemetry.Snapshot
	err  error
}

func (r *staticReader) ReadWindow(ctx context.Context) (telemetry.Snapshot, error) {
	return r.snap, r.err
}

func testServer(t *testing.T) (*Server, *audit.Store) {
	t.Helper()

	store, err := audit.NewStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	killWindow := ratelimit.NewKillWindow(ratelimit.DefaultConfig())
	enforcer := enforce.NewEnforcer(noopController{}, killWindow, store,
		retry.DefaultPolicy(), enforce.DefaultConfig())
	sup := supervisor.New(threshold.DefaultConfig(), supervisor.DefaultConfig(), enforcer, store)

	gate, err := rollout.NewGate(rollout.DefaultConfig(), slo.DefaultThresholds(),
		&staticReader{}, store, sup.CurrentState, manifest.Manifest{Hash: "sha256:abc"})
	require.NoError(t, err)

	return New(DefaultConfig(), sup, gate, killWindow, store), store
}

func getStatus(t *testing.T, router http.Handler) statusResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestStatusReportsBothLoops(t *testing.T) {
	srv, store := testServer(t)
	router := srv.Router()

	require.NoError(t, store.RecordAction(audit.ActionEntry{
		Kind: "kill", Target: "indexer", Outcome: "applied", Reason: "sustained emergency",
	}))

	resp := getStatus(t, router)
	assert.Equal(t, "normal", resp.GuardianState)
	assert.Equal(t, "off", resp.CanaryStage)
	assert.Equal(t, 0, resp.KillWindowCount)
	require.Len(t, resp.RecentActions, 1)
	assert.Equal(t, "kill", resp.RecentActions[0].Kind)
	assert.Equal(t, "applied", resp.RecentActions[0].Outcome)
}

func TestRolloutControlRoundTrip(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.Router()

	body := bytes.NewBufferString(`{"rationale": "ship the candidate"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rollout/enable", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var d decisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "enabled", d.Kind)
	assert.Equal(t, "canary_5", d.To)

	resp := getStatus(t, router)
	assert.Equal(t, "canary_5", resp.CanaryStage)
	assert.Equal(t, "ship the candidate", resp.LastDecision.Rationale)
}

func TestRollbackTriggerIsIdempotent(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.Router()

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rollout/rollback", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var d decisionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
		assert.Equal(t, "rolled_back", d.Kind)
		assert.Equal(t, "rolled_back", d.To)
	}
}

func TestControlRejectsMalformedBody(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rollout/enable",
		bytes.NewBufferString(`{"rationale": 42`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpointServesPrometheus(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "guardian_state")
}

func TestCooldownUntilOmittedWhenUnset(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "cooldown_until")
}
