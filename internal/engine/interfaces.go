package engine

import (
	"context"
	"time"

	"github.com/apkforge/apkforge/pkg/pipeline"
	"github.com/apkforge/apkforge/pkg/types"
)

// Builder runs one build to completion.
// KEEP: the pipeline and the test double both implement it.
type Builder interface {
	Build(ctx context.Context, req pipeline.Request) *types.BuildResult
}

// History records finished builds.
// KEEP: the bbolt store and the test double both implement it.
type History interface {
	Record(result *types.BuildResult) error
}

// Notifier tells the developer about build progress.
// KEEP: desktop notifications and the test double both implement it.
type Notifier interface {
	NotifyBuildStart(project string)
	NotifyBuildSuccess(project string, duration time.Duration)
	NotifyBuildFailure(project string, stage types.Stage, err error)
}
