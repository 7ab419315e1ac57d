package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/copyleftdev/scrytest/internal/runner"
	"github.com/copyleftdev/scrytest/internal/tasks"
	"github.com/copyleftdev/scrytest/internal/tasks/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFinished(t *testing.T, m *tasks.Manager, id uuid.UUID) *tasks.Task {
	t.Helper()
	var task *tasks.Task
	require.Eventually(t, func() bool {
		var err error
		task, err = m.Get(id)
		require.NoError(t, err)
		return task.Status.Finished()
	}, 2*time.Second, 10*time.Millisecond)
	return task
}

func TestManager_SubmitTask(t *testing.T) {
	exec := mocks.NewMockSuiteExecutor()
	exec.SetResults([]runner.TestResult{
		{TestName: "login", Browser: "Chromium", Passed: true, Duration: 1500 * time.Millisecond, History: []string{"https://a.example"}},
		{TestName: "login", Browser: "Firefox", Err: errors.New("step 2 (click): boom")},
	}, nil)

	manager := tasks.NewManager(exec, nil)
	defer manager.Shutdown(context.Background())

	submitted, err := manager.Submit(tasks.Request{Tests: "login", Browsers: "all"}, tasks.TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusPending, submitted.Status)

	task := waitFinished(t, manager, submitted.ID)
	assert.Equal(t, tasks.StatusCompleted, task.Status)
	require.NotNil(t, task.Result)
	assert.False(t, task.Result.Success)
	assert.Equal(t, 2, task.Result.Total)
	assert.Equal(t, 1, task.Result.Passed)
	assert.Equal(t, 1, task.Result.Failed)
	assert.Equal(t, int64(1500), task.Result.Tests[0].DurationMS)
	assert.Equal(t, "step 2 (click): boom", task.Result.Tests[1].Error)

	assert.Equal(t, []tasks.Request{{Tests: "login", Browsers: "all"}}, exec.Requests())

	latest, ok := manager.Latest()
	require.True(t, ok)
	assert.Equal(t, submitted.ID, latest.ID)
}

func TestManager_ExecutorError(t *testing.T) {
	exec := mocks.NewMockSuiteExecutor()
	exec.SetResults(nil, errors.New("unknown test(s): nope"))

	manager := tasks.NewManager(exec, nil)
	defer manager.Shutdown(context.Background())

	submitted, err := manager.Submit(tasks.Request{Tests: "nope"}, tasks.TriggerAPI)
	require.NoError(t, err)

	task := waitFinished(t, manager, submitted.ID)
	assert.Equal(t, tasks.StatusFailed, task.Status)
	assert.Equal(t, "unknown test(s): nope", task.Result.Error)
	assert.False(t, task.Result.Success)
}

func TestManager_GetUnknown(t *testing.T) {
	manager := tasks.NewManager(mocks.NewMockSuiteExecutor(), nil)
	defer manager.Shutdown(context.Background())

	_, err := manager.Get(uuid.New())
	assert.ErrorIs(t, err, tasks.ErrTaskNotFound)

	_, ok := manager.Latest()
	assert.False(t, ok)
}

func TestManager_RunsInSubmissionOrder(t *testing.T) {
	exec := mocks.NewMockSuiteExecutor()
	manager := tasks.NewManager(exec, nil)
	defer manager.Shutdown(context.Background())

	var ids []uuid.UUID
	for _, name := range []string{"a", "b", "c"} {
		task, err := manager.Submit(tasks.Request{Tests: name}, tasks.TriggerAPI)
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}
	waitFinished(t, manager, ids[2])

	var got []string
	for _, req := range exec.Requests() {
		got = append(got, req.Tests)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)

	list := manager.List()
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
}

func TestManager_Callback(t *testing.T) {
	received := make(chan tasks.Task, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var task tasks.Task
		if err := json.NewDecoder(r.Body).Decode(&task); err == nil {
			received <- task
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	exec := mocks.NewMockSuiteExecutor()
	exec.SetResults([]runner.TestResult{{TestName: "home", Browser: "Chromium", Passed: true}}, nil)
	manager := tasks.NewManager(exec, nil)
	defer manager.Shutdown(context.Background())

	submitted, err := manager.Submit(tasks.Request{CallbackURL: srv.URL}, tasks.TriggerAPI)
	require.NoError(t, err)

	select {
	case task := <-received:
		assert.Equal(t, submitted.ID, task.ID)
		assert.Equal(t, tasks.StatusCompleted, task.Status)
		require.NotNil(t, task.Result)
		assert.True(t, task.Result.Success)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not received")
	}
}

func TestManager_ShutdownCancelsRunning(t *testing.T) {
	exec := mocks.NewMockSuiteExecutor()
	exec.Block = make(chan struct{})
	manager := tasks.NewManager(exec, nil)

	running, err := manager.Submit(tasks.Request{}, tasks.TriggerAPI)
	require.NoError(t, err)
	queued, err := manager.Submit(tasks.Request{}, tasks.TriggerAPI)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(exec.Requests()) == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, manager.Shutdown(ctx))

	task, err := manager.Get(running.ID)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusCancelled, task.Status)

	task, err = manager.Get(queued.ID)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusCancelled, task.Status)

	_, err = manager.Submit(tasks.Request{}, tasks.TriggerAPI)
	assert.ErrorIs(t, err, tasks.ErrShuttingDown)
}

func TestManager_Schedule(t *testing.T) {
	exec := mocks.NewMockSuiteExecutor()
	manager := tasks.NewManager(exec, nil)
	defer manager.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		manager.Schedule(ctx, 20*time.Millisecond, tasks.Request{Tests: "all"})
		close(done)
	}()

	require.Eventually(t, func() bool { return len(exec.Requests()) >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	for _, task := range manager.List() {
		assert.Equal(t, tasks.TriggerSchedule, task.Trigger)
	}
}

func TestManager_ScheduleDisabled(t *testing.T) {
	exec := mocks.NewMockSuiteExecutor()
	manager := tasks.NewManager(exec, nil)
	defer manager.Shutdown(context.Background())

	manager.Schedule(context.Background(), 0, tasks.Request{})
	assert.Empty(t, manager.List())
}
