// Package mocks provides mock implementations of interfaces for testing.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/apkforge/apkforge/pkg/pipeline"
	"github.com/apkforge/apkforge/pkg/types"
)

//go:generate mockgen -destination=mock_pipeline.go -package=mocks github.com/apkforge/apkforge/pkg/pipeline ToolRunner,IconPreparer

// MockBuilder is a mock implementation of the engine's Builder for testing
type MockBuilder struct {
	mu        sync.Mutex
	buildFunc func(ctx context.Context, req pipeline.Request) *types.BuildResult
	requests  []pipeline.Request
	delay     time.Duration
	running   int
	peak      int
}

// NewMockBuilder creates a mock builder whose builds succeed
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{}
}

// Build records the request and returns the configured result
func (m *MockBuilder) Build(ctx context.Context, req pipeline.Request) *types.BuildResult {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.running++
	if m.running > m.peak {
		m.peak = m.running
	}
	fn, delay := m.buildFunc, m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running--
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	if fn != nil {
		return fn(ctx, req)
	}
	return &types.BuildResult{
		ID:        "bld_mock",
		Project:   req.Project.Name,
		Mode:      req.Options.Mode,
		Success:   true,
		StartedAt: time.Now(),
	}
}

// SetBuildFunc replaces the default successful build
func (m *MockBuilder) SetBuildFunc(fn func(ctx context.Context, req pipeline.Request) *types.BuildResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildFunc = fn
}

// SetDelay makes every build take at least d
func (m *MockBuilder) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// GetBuildCallCount returns the number of times Build was called
func (m *MockBuilder) GetBuildCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// GetRequests returns the requests seen so far
func (m *MockBuilder) GetRequests() []pipeline.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pipeline.Request(nil), m.requests...)
}

// GetPeakConcurrency returns the highest number of builds seen running at once
func (m *MockBuilder) GetPeakConcurrency() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// MockHistory is a mock implementation of the build history store
type MockHistory struct {
	mu          sync.Mutex
	results     []*types.BuildResult
	recordError error
}

// NewMockHistory creates an empty mock history
func NewMockHistory() *MockHistory {
	return &MockHistory{}
}

// Record stores a result
func (m *MockHistory) Record(result *types.BuildResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordError != nil {
		return m.recordError
	}
	m.results = append(m.results, result)
	return nil
}

// SetRecordError sets the error to return from Record
func (m *MockHistory) SetRecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordError = err
}

// GetResults returns the recorded results
func (m *MockHistory) GetResults() []*types.BuildResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.BuildResult(nil), m.results...)
}

// MockNotifier is a mock implementation of the build notifier
type MockNotifier struct {
	mu       sync.Mutex
	starts   []string
	success  []string
	failures map[string]types.Stage
}

// NewMockNotifier creates a mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{failures: make(map[string]types.Stage)}
}

// NotifyBuildStart records a start notification
func (m *MockNotifier) NotifyBuildStart(project string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts = append(m.starts, project)
}

// NotifyBuildSuccess records a success notification
func (m *MockNotifier) NotifyBuildSuccess(project string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success = append(m.success, project)
}

// NotifyBuildFailure records a failure notification
func (m *MockNotifier) NotifyBuildFailure(project string, stage types.Stage, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[project] = stage
}

// GetStarts returns the projects announced as started
func (m *MockNotifier) GetStarts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.starts...)
}

// GetSuccesses returns the projects announced as succeeded
func (m *MockNotifier) GetSuccesses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.success...)
}

// GetFailures returns the failing stage per project
func (m *MockNotifier) GetFailures() map[string]types.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]types.Stage, len(m.failures))
	for k, v := range m.failures {
		out[k] = v
	}
	return out
}
