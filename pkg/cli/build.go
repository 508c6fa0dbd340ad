package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/apkforge/apkforge/internal/engine"
	"github.com/apkforge/apkforge/pkg/config"
	"github.com/apkforge/apkforge/pkg/logger"
	"github.com/apkforge/apkforge/pkg/pipeline"
	"github.com/apkforge/apkforge/pkg/process"
	"github.com/apkforge/apkforge/pkg/types"
	"github.com/apkforge/apkforge/pkg/validation"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	var repl bool

	cmd := &cobra.Command{
		Use:   "build <project-file>...",
		Short: "Build one or more projects",
		Long: `Build signed Android packages for the given project descriptors.

Projects are built concurrently, at most --parallel at a time. The command
fails if any build fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := types.BuildModeNormal
			if repl {
				mode = types.BuildModeREPL
			}
			return c.runBuild(cmd.Context(), args, mode)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&repl, "repl", false, "build the live-development companion")
	flags.String("keystore", "", "keystore used to sign the packages")
	flags.Int("ram", pipeline.DefaultChildProcessRAMMB, "memory ceiling of the java child processes in MB")
	flags.Int("parallel", config.DefaultParallel, "maximum number of concurrent builds")

	_ = c.viper.BindPFlag("keystore", flags.Lookup("keystore"))
	_ = c.viper.BindPFlag("child_process_ram_mb", flags.Lookup("ram"))
	_ = c.viper.BindPFlag("parallel", flags.Lookup("parallel"))

	return cmd
}

func (c *CLI) runBuild(ctx context.Context, paths []string, mode types.BuildMode) error {
	projects, err := c.loadProjects(paths)
	if err != nil {
		return err
	}
	if err := c.validate(projects); err != nil {
		return err
	}

	factory, pm := c.newFactory()
	defer pm.Stop()

	eng, err := c.newEngine(factory)
	if err != nil {
		return err
	}
	ctx = pm.Start(ctx)

	reqs := make([]pipeline.Request, len(projects))
	for i, p := range projects {
		reqs[i] = c.request(factory, p, mode)
	}

	c.printInfo(fmt.Sprintf("Building %d project(s)", len(reqs)))
	results := eng.BuildAll(ctx, reqs)
	return c.report(results)
}

func (c *CLI) loadProjects(paths []string) ([]*types.Project, error) {
	manager := config.NewManager()
	projects := make([]*types.Project, 0, len(paths))
	for _, path := range paths {
		p, err := manager.LoadProject(path)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// validate logs every warning and fails if any error was found
func (c *CLI) validate(projects []*types.Project) error {
	validator := validation.NewProjectValidator()

	result := validator.ValidateMultiple(projects)
	result.Merge(validator.ValidateToolConfig(c.tool))

	for _, w := range result.Filter(validation.ValidationLevelWarning) {
		c.logger.Warn(w.Message,
			logger.WithField("project", w.Project),
			logger.WithField("field", w.Field))
	}
	if result.Valid {
		return nil
	}

	errs := result.Filter(validation.ValidationLevelError)
	for _, e := range errs {
		c.printFailure(e.Error())
	}
	return fmt.Errorf("%w: %d error(s)", ErrInvalidProject, len(errs))
}

// newFactory creates the shared build collaborators. They are released by
// the returned manager's Stop, which also runs on termination signals.
func (c *CLI) newFactory() (*engine.DependencyFactory, *process.Manager) {
	factory := engine.NewDependencyFactory(c.tool, c.logger)
	pm := process.NewManager(c.logger)
	pm.RegisterShutdownHandler(func() {
		if err := factory.Close(); err != nil {
			c.logger.Warn("Cleanup failed", logger.WithError(err))
		}
	})
	return factory, pm
}

func (c *CLI) newEngine(factory *engine.DependencyFactory) (*engine.Engine, error) {
	deps, err := factory.CreateWithOverrides(engine.Dependencies{Builder: c.builder})
	if err != nil {
		return nil, err
	}
	return engine.New(c.logger, deps, c.tool.Parallel), nil
}

func (c *CLI) request(factory *engine.DependencyFactory, p *types.Project, mode types.BuildMode) pipeline.Request {
	return pipeline.Request{
		Project:        p,
		ComponentTypes: p.Components,
		Options:        factory.Options(mode),
		Streams: pipeline.Streams{
			Out:  c.output,
			Err:  c.errorOut,
			User: c.output,
		},
	}
}

// report prints one line per result and fails if any build failed
func (c *CLI) report(results []*types.BuildResult) error {
	failed := 0
	for _, r := range results {
		if r.Success {
			c.printSuccess(fmt.Sprintf("%s: %s (%s)", r.Project, r.PackagePath, r.Duration.Round(time.Millisecond)))
			continue
		}
		failed++
		reason := r.ErrorText
		if r.FailedStage != "" {
			reason = fmt.Sprintf("%s stage: %s", r.FailedStage, r.ErrorText)
		}
		c.printFailure(fmt.Sprintf("%s: %s", r.Project, reason))
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrBuildFailed, failed, len(results))
	}
	return nil
}
