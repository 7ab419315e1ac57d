package mocks

import (
	"context"
	"sync"

	"github.com/copyleftdev/scrytest/internal/runner"
	"github.com/copyleftdev/scrytest/internal/tasks"
)

// MockSuiteExecutor implements the tasks.SuiteExecutor interface for testing
type MockSuiteExecutor struct {
	mu       sync.Mutex
	requests []tasks.Request
	results  []runner.TestResult
	err      error

	// Block, when set, holds every Execute until it is closed or the
	// context ends.
	Block chan struct{}
}

var _ tasks.SuiteExecutor = (*MockSuiteExecutor)(nil)

// NewMockSuiteExecutor creates a new mock executor
func NewMockSuiteExecutor() *MockSuiteExecutor {
	return &MockSuiteExecutor{}
}

// Execute implements the SuiteExecutor interface
func (m *MockSuiteExecutor) Execute(ctx context.Context, req tasks.Request) ([]runner.TestResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]runner.TestResult(nil), m.results...), m.err
}

// SetResults sets what every Execute returns
func (m *MockSuiteExecutor) SetResults(results []runner.TestResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = results
	m.err = err
}

// Requests returns the requests seen so far
func (m *MockSuiteExecutor) Requests() []tasks.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tasks.Request(nil), m.requests...)
}
