package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	callbackTimeout = 10 * time.Second
	defaultMaxTasks = 100
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrShuttingDown = errors.New("task manager is shutting down")
)

// Manager queues suite runs and keeps their outcomes. Runs execute one at a
// time in submission order; they share browsers and the metrics file.
type Manager struct {
	executor SuiteExecutor
	logger   *zap.Logger
	client   *http.Client
	maxTasks int

	mu     sync.RWMutex
	tasks  map[uuid.UUID]*Task
	order  []uuid.UUID
	latest uuid.UUID
	closed bool

	queue  chan *Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a task manager and starts its worker.
func NewManager(executor SuiteExecutor, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		executor: executor,
		logger:   logger,
		client:   &http.Client{Timeout: callbackTimeout},
		maxTasks: defaultMaxTasks,
		tasks:    make(map[uuid.UUID]*Task),
		queue:    make(chan *Task, defaultMaxTasks),
		ctx:      ctx,
		cancel:   cancel,
	}
	m.wg.Add(1)
	go m.worker()
	return m
}

// Submit queues a run and returns a snapshot of it.
func (m *Manager) Submit(req Request, trigger Trigger) (*Task, error) {
	task := NewTask(req, trigger)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrShuttingDown
	}
	select {
	case m.queue <- task:
	default:
		return nil, fmt.Errorf("task queue is full (%d pending)", cap(m.queue))
	}
	m.tasks[task.ID] = task
	m.order = append(m.order, task.ID)
	m.evictLocked()

	m.logger.Info("Task submitted", zap.String("task_id", task.ID.String()), zap.String("trigger", string(trigger)))
	return task.clone(), nil
}

// Get returns a snapshot of the task with id.
func (m *Manager) Get(id uuid.UUID) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return task.clone(), nil
}

// Latest returns the most recently finished task.
func (m *Manager) Latest() (*Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[m.latest]
	if !ok {
		return nil, false
	}
	return task.clone(), true
}

// List returns snapshots of the retained tasks, newest first.
func (m *Manager) List() []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Task, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.tasks[m.order[i]].clone())
	}
	return out
}

// Schedule submits a run immediately and then every interval until ctx is
// done. A tick is skipped while the previous scheduled run is unfinished.
func (m *Manager) Schedule(ctx context.Context, interval time.Duration, req Request) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last uuid.UUID
	submit := func() {
		if last != uuid.Nil {
			if t, err := m.Get(last); err == nil && !t.Status.Finished() {
				m.logger.Warn("Previous scheduled run still in progress, skipping tick", zap.String("task_id", last.String()))
				return
			}
		}
		task, err := m.Submit(req, TriggerSchedule)
		if err != nil {
			m.logger.Error("Failed to submit scheduled run", zap.Error(err))
			return
		}
		last = task.ID
	}

	submit()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			submit()
		}
	}
}

// Finished reports whether s is terminal.
func (s TaskStatus) Finished() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case task := <-m.queue:
			m.executeTask(task)
		}
	}
}

func (m *Manager) executeTask(task *Task) {
	logger := m.logger.With(zap.String("task_id", task.ID.String()))

	m.updateTaskStatus(task, StatusRunning)
	logger.Info("Task started")

	results, err := m.executor.Execute(m.ctx, task.Request)
	result := NewTaskResult(results, err)

	m.mu.Lock()
	task.Result = result
	switch {
	case m.ctx.Err() != nil:
		task.UpdateStatus(StatusCancelled)
	case err != nil:
		task.UpdateStatus(StatusFailed)
	default:
		task.UpdateStatus(StatusCompleted)
	}
	m.latest = task.ID
	snapshot := task.clone()
	m.mu.Unlock()

	if err != nil {
		logger.Error("Task failed", zap.Error(err))
	} else {
		logger.Info("Task finished",
			zap.Int("total", result.Total),
			zap.Int("passed", result.Passed),
			zap.Int("failed", result.Failed),
		)
	}

	if snapshot.Request.CallbackURL != "" {
		m.notifyCallback(snapshot, logger)
	}
}

func (m *Manager) updateTaskStatus(task *Task, status TaskStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.UpdateStatus(status)
}

// evictLocked drops the oldest finished tasks beyond maxTasks.
func (m *Manager) evictLocked() {
	for i := 0; len(m.order) > m.maxTasks && i < len(m.order); {
		id := m.order[i]
		if !m.tasks[id].Status.Finished() || id == m.latest {
			i++
			continue
		}
		delete(m.tasks, id)
		m.order = append(m.order[:i], m.order[i+1:]...)
	}
}

// notifyCallback posts the finished task to its callback URL.
func (m *Manager) notifyCallback(task *Task, logger *zap.Logger) {
	body, err := json.Marshal(task)
	if err != nil {
		logger.Error("Error marshaling task for callback", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.Request.CallbackURL, bytes.NewReader(body))
	if err != nil {
		logger.Error("Error creating callback request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		logger.Warn("Error sending callback", zap.String("url", task.Request.CallbackURL), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		logger.Info("Callback notification sent", zap.String("status", resp.Status))
	} else {
		logger.Warn("Callback notification rejected", zap.String("status", resp.Status))
	}
}

// Shutdown stops accepting tasks, cancels the running one and waits for
// the worker. Queued tasks are marked cancelled.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("task manager shutdown: %w", ctx.Err())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, task := range m.tasks {
		if task.Status == StatusPending {
			task.UpdateStatus(StatusCancelled)
		}
	}
	m.logger.Info("Task manager shut down")
	return err
}
