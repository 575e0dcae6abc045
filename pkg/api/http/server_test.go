package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aescanero/dagoml/internal/application/orchestrator"
	"github.com/aescanero/dagoml/internal/application/workers"
	eventsmemory "github.com/aescanero/dagoml/pkg/adapters/events/memory"
	metrics "github.com/aescanero/dagoml/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/dagoml/pkg/adapters/storage/memory"
	"github.com/aescanero/dagoml/pkg/domain"
	"github.com/aescanero/dagoml/pkg/graph"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	server  *Server
	manager *orchestrator.Manager
	pool    *workers.Pool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	pool := workers.NewPool(2, time.Second, collector, logger, time.Hour)
	require.NoError(t, pool.Start())
	store := storagememory.NewStore()
	manager := orchestrator.NewManager(pool, store, store, eventsmemory.NewEventBus(), collector,
		orchestrator.NewValidator(0), logger, time.Minute)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
		_ = pool.Shutdown(ctx)
	})

	server := NewServer(&Config{
		Port:     0,
		Runs:     manager,
		Health:   pool.Health(),
		Gatherer: reg,
		Logger:   logger,
	})
	return &testEnv{server: server, manager: manager, pool: pool}
}

func (e *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func constant(v float64) graph.Task {
	return graph.Task{Name: "constant", Func: func(context.Context, []any) (any, error) { return v, nil }}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status     string                `json:"status"`
		ActiveRuns int                   `json:"active_runs"`
		Workers    *workers.HealthStatus `json:"workers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 0, body.ActiveRuns)
	require.NotNil(t, body.Workers)
	assert.Equal(t, 2, body.Workers.TotalWorkers)
}

func TestHealthUnhealthyAfterPoolShutdown(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.pool.Shutdown(context.Background()))

	rec := env.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy")
}

func TestRunsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.manager.Get(context.Background(), graph.Single("a", constant(1)), "a")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs  []*domain.RunState `json:"runs"`
		Total int                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	runID := list.Runs[0].RunID
	assert.Equal(t, domain.RunStatusCompleted, list.Runs[0].Status)

	rec = env.do(t, http.MethodGet, "/api/v1/runs/"+runID)
	require.Equal(t, http.StatusOK, rec.Code)
	var run domain.RunState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, []string{"a"}, run.Targets)
	assert.Equal(t, 1, run.Executed)

	rec = env.do(t, http.MethodGet, "/api/v1/runs/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var errBody ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "NOT_FOUND", errBody.Error.Code)

	// finished runs cannot be cancelled, unknown ones do not exist
	rec = env.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/cancel")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/runs/nope/cancel")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelActiveRun(t *testing.T) {
	env := newTestEnv(t)
	block := graph.Task{Name: "block", Func: func(ctx context.Context, _ []any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	errCh := make(chan error, 1)
	go func() {
		_, err := env.manager.Get(context.Background(), graph.Single("slow", block), "slow")
		errCh <- err
	}()

	var runID string
	require.Eventually(t, func() bool {
		runs, _ := env.manager.ListRuns(context.Background())
		if len(runs) == 1 && runs[0].Status == domain.RunStatusRunning {
			runID = runs[0].RunID
			return true
		}
		return false
	}, time.Second, 5*time.Millisecond)

	rec := env.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/cancel")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run was not cancelled")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.manager.Get(context.Background(), graph.Single("a", constant(2)), "a")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "dagoml_runs_submitted_total 1"))
	assert.Contains(t, string(body), `dagoml_tasks_executed_total{status="success",task="constant"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodOptions, "/api/v1/runs")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
