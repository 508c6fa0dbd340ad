// Package engine runs many builds concurrently and keeps track of how they
// went. Each build runs on its own goroutine; the serialization of
// memory-hungry tools is left to the pipeline's shared heavy lock.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/apkforge/apkforge/pkg/logger"
	"github.com/apkforge/apkforge/pkg/pipeline"
	"github.com/apkforge/apkforge/pkg/types"
)

// DefaultParallel is the number of builds BuildAll runs at once when no
// limit is configured
const DefaultParallel = 2

// Dependencies are the collaborators of an Engine. Only Builder is required.
type Dependencies struct {
	Builder  Builder
	History  History
	Notifier Notifier
}

// ProjectState tracks the builds of one project
type ProjectState struct {
	Project      string
	Status       types.BuildStatus
	LastResult   *types.BuildResult
	BuildCount   int
	FailureCount int
}

// Engine schedules builds
type Engine struct {
	builder  Builder
	history  History
	notifier Notifier
	logger   logger.Logger
	parallel int

	mu     sync.RWMutex
	states map[string]*ProjectState
}

// New creates an engine running at most parallel builds at once
func New(log logger.Logger, deps Dependencies, parallel int) *Engine {
	if deps.Builder == nil {
		panic("Builder dependency is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	if parallel <= 0 {
		parallel = DefaultParallel
	}

	return &Engine{
		builder:  deps.Builder,
		history:  deps.History,
		notifier: deps.Notifier,
		logger:   log,
		parallel: parallel,
		states:   make(map[string]*ProjectState),
	}
}

// BuildAll runs every request and returns their results in request order.
// A failed build never stops the others.
func (e *Engine) BuildAll(ctx context.Context, reqs []pipeline.Request) []*types.BuildResult {
	results := make([]*types.BuildResult, len(reqs))

	group, groupCtx := NewSafeGroup(ctx, e.logger)
	group.SetLimit(e.parallel)

	for i, req := range reqs {
		group.Go(req.Project.Name, func() error {
			results[i] = e.Build(groupCtx, req)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		e.logger.Error("Build group failed", logger.WithError(err))
	}

	for i, r := range results {
		if r == nil {
			// Only a panic outside Build can leave a hole.
			results[i] = failedResult(reqs[i], fmt.Errorf("build of %s did not complete", reqs[i].Project.Name))
		}
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	e.logger.Info("Builds finished",
		logger.WithField("total", len(results)),
		logger.WithField("succeeded", succeeded))
	return results
}

// Build runs one request, records its result and sends notifications
func (e *Engine) Build(ctx context.Context, req pipeline.Request) *types.BuildResult {
	project := req.Project.Name

	if err := ctx.Err(); err != nil {
		result := failedResult(req, err)
		e.finish(result)
		return result
	}

	e.begin(project)
	if e.notifier != nil {
		e.notifier.NotifyBuildStart(project)
	}

	result := e.safeBuild(ctx, req)
	e.finish(result)

	if e.history != nil {
		if err := e.history.Record(result); err != nil {
			e.logger.Warn("Failed to record build",
				logger.WithField("project", project),
				logger.WithField("build_id", result.ID),
				logger.WithError(err))
		}
	}

	if e.notifier != nil {
		if result.Success {
			e.notifier.NotifyBuildSuccess(project, result.Duration)
		} else {
			e.notifier.NotifyBuildFailure(project, result.FailedStage, result.Err)
		}
	}
	return result
}

func (e *Engine) safeBuild(ctx context.Context, req pipeline.Request) (result *types.BuildResult) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := &PanicError{Label: req.Project.Name, Value: r}
			e.logger.Error("Build panicked",
				logger.WithField("project", req.Project.Name),
				logger.WithError(err))
			result = failedResult(req, err)
			result.StartedAt = started
			result.Duration = time.Since(started)
		}
	}()

	result = e.builder.Build(ctx, req)
	if result == nil {
		result = failedResult(req, fmt.Errorf("builder returned no result for %s", req.Project.Name))
	}
	return result
}

func (e *Engine) begin(project string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateLocked(project)
	st.Status = types.BuildStatusBuilding
	st.BuildCount++
}

func (e *Engine) finish(result *types.BuildResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateLocked(result.Project)
	st.Status = result.Status()
	st.LastResult = result
	if !result.Success {
		st.FailureCount++
	}
}

func (e *Engine) stateLocked(project string) *ProjectState {
	st, ok := e.states[project]
	if !ok {
		st = &ProjectState{Project: project, Status: types.BuildStatusIdle}
		e.states[project] = st
	}
	return st
}

// Status returns a snapshot of a project's state
func (e *Engine) Status(project string) (ProjectState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st, ok := e.states[project]
	if !ok {
		return ProjectState{}, false
	}
	return *st, true
}

// States returns snapshots of every project seen so far, sorted by name
func (e *Engine) States() []ProjectState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]ProjectState, 0, len(e.states))
	for _, st := range e.states {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Project < out[j].Project })
	return out
}

func failedResult(req pipeline.Request, err error) *types.BuildResult {
	mode := req.Options.Mode
	if mode == "" {
		mode = types.BuildModeNormal
	}
	return &types.BuildResult{
		Project:   req.Project.Name,
		Mode:      mode,
		StartedAt: time.Now(),
		ErrorText: err.Error(),
		Err:       err,
	}
}
