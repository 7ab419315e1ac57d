package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/copyleftdev/scrytest/internal/actions"
	"github.com/copyleftdev/scrytest/internal/config"
	"github.com/copyleftdev/scrytest/internal/metrics"
	"github.com/copyleftdev/scrytest/internal/runner"
	"github.com/copyleftdev/scrytest/internal/tasks"
	"github.com/copyleftdev/scrytest/internal/tasks/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv       *httptest.Server
	exec      *mocks.MockSuiteExecutor
	manager   *tasks.Manager
	collector *metrics.Collector
}

func newFixture(t *testing.T, apiKey string) *fixture {
	t.Helper()
	cfg := &config.Config{Security: config.SecurityConfig{AllowedOrigins: []string{"*"}, ApiKey: apiKey}}
	reg, err := actions.NewDefaultRegistry(false)
	require.NoError(t, err)

	f := &fixture{exec: mocks.NewMockSuiteExecutor(), collector: metrics.NewCollector()}
	f.manager = tasks.NewManager(f.exec, nil)
	f.srv = httptest.NewServer(NewRouter(cfg, f.manager, f.collector, reg, nil))
	t.Cleanup(func() {
		f.srv.Close()
		_ = f.manager.Shutdown(context.Background())
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, header map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "secret")
	resp, body := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, "")
	f.collector.Update(metrics.ResultRecords("login", "Chromium", "shop", true, time.Unix(1700000000, 0)))

	resp, body := f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `test_result{browser="Chromium",name="login",suite="shop"} 1`)
	assert.Contains(t, string(body), "test_last_run_timestamp")
	assert.NotContains(t, string(body), "go_goroutines")
}

func TestSubmitAndGetRun(t *testing.T) {
	f := newFixture(t, "")
	f.exec.SetResults([]runner.TestResult{{TestName: "login", Browser: "Chromium", Passed: true}}, nil)

	resp, body := f.do(t, http.MethodPost, "/api/v1/runs", `{"tests":"login","browsers":"chromium"}`, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var submitted SubmitRunResponse
	require.NoError(t, json.Unmarshal(body, &submitted))
	require.NotEmpty(t, submitted.RunID)
	assert.Equal(t, "/api/v1/runs/"+submitted.RunID, resp.Header.Get("Location"))

	var task tasks.Task
	require.Eventually(t, func() bool {
		resp, body := f.do(t, http.MethodGet, "/api/v1/runs/"+submitted.RunID, "", nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		require.NoError(t, json.Unmarshal(body, &task))
		return task.Status.Finished()
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, tasks.StatusCompleted, task.Status)
	assert.Equal(t, tasks.TriggerAPI, task.Trigger)
	require.NotNil(t, task.Result)
	assert.True(t, task.Result.Success)
	assert.Equal(t, []tasks.Request{{Tests: "login", Browsers: "chromium"}}, f.exec.Requests())

	resp, body = f.do(t, http.MethodGet, "/api/v1/results", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), submitted.RunID)

	resp, body = f.do(t, http.MethodGet, "/api/v1/runs", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), submitted.RunID)
}

func TestSubmitRun_EmptyBody(t *testing.T) {
	f := newFixture(t, "")
	resp, _ := f.do(t, http.MethodPost, "/api/v1/runs", "", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestSubmitRun_BadBody(t *testing.T) {
	f := newFixture(t, "")
	resp, body := f.do(t, http.MethodPost, "/api/v1/runs", `{"tests":`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "Invalid request body")
}

func TestGetRun_Errors(t *testing.T) {
	f := newFixture(t, "")

	resp, _ := f.do(t, http.MethodGet, "/api/v1/runs/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/runs/5f0c3a52-8a8c-4b61-9f0e-2e0b8f9b9a11", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/results", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListActions(t *testing.T) {
	f := newFixture(t, "")
	resp, body := f.do(t, http.MethodGet, "/api/v1/actions", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []ActionInfo
	require.NoError(t, json.Unmarshal(body, &list))
	require.NotEmpty(t, list)

	byName := make(map[string]ActionInfo)
	for _, a := range list {
		byName[a.Name] = a
	}
	assert.Equal(t, "navigation", byName["goto"].Provider)
	assert.True(t, byName["assert_url"].Retryable)
	assert.False(t, byName["click"].Retryable)
}

func TestAPIKeyAuth(t *testing.T) {
	f := newFixture(t, "secret")

	resp, _ := f.do(t, http.MethodGet, "/api/v1/runs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/runs", "", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/runs", "", map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/runs", "", map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewServer_NilLogger(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{Port: 0}}
	reg, err := actions.NewDefaultRegistry(false)
	require.NoError(t, err)
	tm := tasks.NewManager(mocks.NewMockSuiteExecutor(), nil)
	defer func() { _ = tm.Shutdown(context.Background()) }()

	var srv *Server
	require.NotPanics(t, func() {
		srv = NewServer(cfg, tm, metrics.NewCollector(), reg, nil)
	})
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
