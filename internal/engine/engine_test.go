package engine_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/apkforge/apkforge/internal/engine"
	"github.com/apkforge/apkforge/pkg/mocks"
	"github.com/apkforge/apkforge/pkg/pipeline"
	"github.com/apkforge/apkforge/pkg/types"
)

func requests(names ...string) []pipeline.Request {
	reqs := make([]pipeline.Request, 0, len(names))
	for _, n := range names {
		reqs = append(reqs, pipeline.Request{
			Project: &types.Project{Name: n, MainClass: "com.example." + n + ".Screen1"},
			Options: pipeline.Options{Mode: types.BuildModeNormal},
		})
	}
	return reqs
}

func failIn(stage types.Stage, projects ...string) func(context.Context, pipeline.Request) *types.BuildResult {
	failing := map[string]bool{}
	for _, p := range projects {
		failing[p] = true
	}
	return func(_ context.Context, req pipeline.Request) *types.BuildResult {
		r := &types.BuildResult{
			ID:        "bld_" + req.Project.Name,
			Project:   req.Project.Name,
			Mode:      req.Options.Mode,
			Success:   !failing[req.Project.Name],
			StartedAt: time.Now(),
			Duration:  time.Millisecond,
		}
		if !r.Success {
			r.FailedStage = stage
			r.Err = errors.New("compiling Screen1")
			r.ErrorText = r.Err.Error()
		}
		return r
	}
}

var _ = Describe("Engine", func() {
	var (
		builder  *mocks.MockBuilder
		history  *mocks.MockHistory
		notifier *mocks.MockNotifier
		eng      *engine.Engine
		ctx      context.Context
	)

	BeforeEach(func() {
		builder = mocks.NewMockBuilder()
		history = mocks.NewMockHistory()
		notifier = mocks.NewMockNotifier()
		eng = engine.New(nil, engine.Dependencies{
			Builder:  builder,
			History:  history,
			Notifier: notifier,
		}, 2)
		ctx = context.Background()
	})

	It("requires a builder", func() {
		Expect(func() { engine.New(nil, engine.Dependencies{}, 1) }).To(Panic())
	})

	Describe("BuildAll", func() {
		It("returns one result per request in request order", func() {
			builder.SetBuildFunc(failIn(types.StageCompile))

			results := eng.BuildAll(ctx, requests("HelloPurr", "PaintPot", "MoleMash"))

			Expect(results).To(HaveLen(3))
			Expect(results[0].Project).To(Equal("HelloPurr"))
			Expect(results[1].Project).To(Equal("PaintPot"))
			Expect(results[2].Project).To(Equal("MoleMash"))
			Expect(builder.GetBuildCallCount()).To(Equal(3))
		})

		It("never runs more builds at once than the parallel limit", func() {
			builder.SetDelay(50 * time.Millisecond)

			results := eng.BuildAll(ctx, requests("a", "b", "c", "d", "e", "f"))

			Expect(results).To(HaveLen(6))
			Expect(builder.GetPeakConcurrency()).To(Equal(2))
		})

		It("runs builds concurrently", func() {
			builder.SetDelay(100 * time.Millisecond)

			started := time.Now()
			eng.BuildAll(ctx, requests("a", "b"))

			Expect(time.Since(started)).To(BeNumerically("<", 190*time.Millisecond))
		})

		It("keeps building when one project fails", func() {
			builder.SetBuildFunc(failIn(types.StageCompile, "PaintPot"))

			results := eng.BuildAll(ctx, requests("HelloPurr", "PaintPot", "MoleMash"))

			Expect(results[0].Success).To(BeTrue())
			Expect(results[1].Success).To(BeFalse())
			Expect(results[1].FailedStage).To(Equal(types.StageCompile))
			Expect(results[2].Success).To(BeTrue())
		})

		It("turns a panicking build into a failed result", func() {
			fallback := failIn(types.StageCompile)
			builder.SetBuildFunc(func(ctx context.Context, req pipeline.Request) *types.BuildResult {
				if req.Project.Name == "Broken" {
					panic("nil component table")
				}
				return fallback(ctx, req)
			})

			results := eng.BuildAll(ctx, requests("HelloPurr", "Broken"))

			Expect(results[0].Success).To(BeTrue())
			Expect(results[1].Success).To(BeFalse())
			Expect(results[1].Project).To(Equal("Broken"))
			Expect(results[1].Err).To(MatchError(engine.ErrPanic))
			Expect(results[1].ErrorText).To(ContainSubstring("nil component table"))
		})

		It("does not start builds once the context is canceled", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()

			results := eng.BuildAll(canceled, requests("HelloPurr", "PaintPot"))

			Expect(builder.GetBuildCallCount()).To(BeZero())
			for _, r := range results {
				Expect(r.Success).To(BeFalse())
				Expect(r.Err).To(MatchError(context.Canceled))
			}
		})
	})

	Describe("Build", func() {
		It("records every result in the history", func() {
			builder.SetBuildFunc(failIn(types.StageSign, "PaintPot"))

			eng.BuildAll(ctx, requests("HelloPurr", "PaintPot"))

			Expect(history.GetResults()).To(HaveLen(2))
		})

		It("survives a history that cannot record", func() {
			history.SetRecordError(errors.New("database is locked"))

			result := eng.Build(ctx, requests("HelloPurr")[0])

			Expect(result.Success).To(BeTrue())
		})

		It("notifies start and outcome", func() {
			builder.SetBuildFunc(failIn(types.StagePackage, "PaintPot"))

			eng.BuildAll(ctx, requests("HelloPurr", "PaintPot"))

			Expect(notifier.GetStarts()).To(ConsistOf("HelloPurr", "PaintPot"))
			Expect(notifier.GetSuccesses()).To(ConsistOf("HelloPurr"))
			Expect(notifier.GetFailures()).To(Equal(map[string]types.Stage{"PaintPot": types.StagePackage}))
		})

		It("works without history and notifier", func() {
			bare := engine.New(nil, engine.Dependencies{Builder: builder}, 1)

			Expect(bare.Build(ctx, requests("HelloPurr")[0]).Success).To(BeTrue())
		})

		It("treats a missing result as a failure", func() {
			builder.SetBuildFunc(func(context.Context, pipeline.Request) *types.BuildResult { return nil })

			result := eng.Build(ctx, requests("HelloPurr")[0])

			Expect(result.Success).To(BeFalse())
			Expect(result.ErrorText).To(ContainSubstring("no result"))
		})
	})

	Describe("project state", func() {
		It("is unknown before the first build", func() {
			_, ok := eng.Status("HelloPurr")
			Expect(ok).To(BeFalse())
		})

		It("shows building while a build runs", func() {
			release := make(chan struct{})
			builder.SetBuildFunc(func(ctx context.Context, req pipeline.Request) *types.BuildResult {
				<-release
				return failIn(types.StageCompile)(ctx, req)
			})

			done := make(chan struct{})
			go func() {
				defer close(done)
				eng.Build(ctx, requests("HelloPurr")[0])
			}()

			Eventually(func() types.BuildStatus {
				st, _ := eng.Status("HelloPurr")
				return st.Status
			}).Should(Equal(types.BuildStatusBuilding))

			close(release)
			Eventually(done).Should(BeClosed())

			st, _ := eng.Status("HelloPurr")
			Expect(st.Status).To(Equal(types.BuildStatusSucceeded))
		})

		It("counts builds and failures", func() {
			builder.SetBuildFunc(failIn(types.StageCompile, "PaintPot"))

			eng.BuildAll(ctx, requests("PaintPot", "HelloPurr"))
			eng.BuildAll(ctx, requests("PaintPot"))

			states := eng.States()
			Expect(states).To(HaveLen(2))
			Expect(states[0].Project).To(Equal("HelloPurr"))
			Expect(states[0].BuildCount).To(Equal(1))
			Expect(states[0].FailureCount).To(BeZero())

			Expect(states[1].Project).To(Equal("PaintPot"))
			Expect(states[1].Status).To(Equal(types.BuildStatusFailed))
			Expect(states[1].BuildCount).To(Equal(2))
			Expect(states[1].FailureCount).To(Equal(2))
			Expect(states[1].LastResult.FailedStage).To(Equal(types.StageCompile))
		})
	})
})

var _ = Describe("SafeGroup", func() {
	It("labels recovered panics", func() {
		group, _ := engine.NewSafeGroup(context.Background(), nil)
		group.Go("HelloPurr", func() error { panic("boom") })

		err := group.Wait()

		var panicErr *engine.PanicError
		Expect(errors.As(err, &panicErr)).To(BeTrue())
		Expect(panicErr.Label).To(Equal("HelloPurr"))
		Expect(panicErr.Value).To(Equal("boom"))
		Expect(err).To(MatchError(engine.ErrPanic))
	})

	It("cancels its context on the first error", func() {
		group, ctx := engine.NewSafeGroup(context.Background(), nil)
		group.Go("failing", func() error { return errors.New("failed") })
		group.Go("waiting", func() error {
			<-ctx.Done()
			return nil
		})

		Expect(group.Wait()).To(MatchError("failed"))
	})
})
