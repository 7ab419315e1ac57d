package tasks

import (
	"time"

	"github.com/copyleftdev/scrytest/internal/runner"
	"github.com/google/uuid"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// Trigger records what started a task.
type Trigger string

const (
	TriggerAPI      Trigger = "api"
	TriggerSchedule Trigger = "schedule"
)

// Request selects what a task runs. Empty fields mean the executor's
// defaults.
type Request struct {
	Tests       string `json:"tests,omitempty"`    // comma separated names or "all"
	Browsers    string `json:"browsers,omitempty"` // comma separated variants or "all"
	CallbackURL string `json:"callback_url,omitempty"`
}

// Task is one suite run owned by the Manager.
type Task struct {
	ID        uuid.UUID    `json:"id"`
	Status    TaskStatus   `json:"status"`
	Trigger   Trigger      `json:"trigger"`
	Request   Request      `json:"request"`
	Result    *TaskResult  `json:"result,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type TaskResult struct {
	Success bool         `json:"success"`
	Total   int          `json:"total"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Tests   []TestReport `json:"tests"`
	Error   string       `json:"error,omitempty"`
}

// TestReport is the JSON form of runner.TestResult.
type TestReport struct {
	Name       string   `json:"name"`
	Browser    string   `json:"browser"`
	Passed     bool     `json:"passed"`
	Timestamp  int64    `json:"timestamp"`
	DurationMS int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
	History    []string `json:"url_history,omitempty"`
	Screenshot string   `json:"screenshot,omitempty"`
}

func NewTask(req Request, trigger Trigger) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        uuid.New(),
		Status:    StatusPending,
		Trigger:   trigger,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateStatus must be called with the manager lock held.
func (t *Task) UpdateStatus(status TaskStatus) {
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
}

// clone returns a copy that shares nothing mutable with t.
func (t *Task) clone() *Task {
	c := *t
	if t.Result != nil {
		r := *t.Result
		r.Tests = append([]TestReport(nil), t.Result.Tests...)
		c.Result = &r
	}
	return &c
}

// NewTaskResult summarizes runner results. err is a run level failure such
// as a suite that no longer loads.
func NewTaskResult(results []runner.TestResult, err error) *TaskResult {
	res := &TaskResult{
		Total: len(results),
		Tests: make([]TestReport, 0, len(results)),
	}
	for _, r := range results {
		report := TestReport{
			Name:       r.TestName,
			Browser:    r.Browser,
			Passed:     r.Passed,
			Timestamp:  r.Timestamp,
			DurationMS: r.Duration.Milliseconds(),
			History:    r.History,
			Screenshot: r.Screenshot,
		}
		if r.Err != nil {
			report.Error = r.Err.Error()
		}
		if r.Passed {
			res.Passed++
		}
		res.Tests = append(res.Tests, report)
	}
	res.Failed = res.Total - res.Passed
	if err != nil {
		res.Error = err.Error()
	}
	res.Success = err == nil && res.Failed == 0
	return res
}
