package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/apkforge/apkforge/internal/watch"
	"github.com/apkforge/apkforge/pkg/config"
	"github.com/apkforge/apkforge/pkg/logger"
	"github.com/apkforge/apkforge/pkg/types"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	var settle time.Duration

	cmd := &cobra.Command{
		Use:   "watch <project-file>",
		Short: "Rebuild the live-development companion on every change",
		Long: `Build the project in REPL mode, then watch its sources and assets and
rebuild after every change. The project descriptor is read again before
each rebuild. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), args[0], settle)
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", watch.DefaultSettlingDelay, "quiet period before a burst of changes triggers a rebuild")
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, path string, settle time.Duration) error {
	projects, err := c.loadProjects([]string{path})
	if err != nil {
		return err
	}
	if err := c.validate(projects); err != nil {
		return err
	}
	project := projects[0]

	factory, pm := c.newFactory()
	defer pm.Stop()

	eng, err := c.newEngine(factory)
	if err != nil {
		return err
	}

	watcher, err := watch.New(c.logger, settle)
	if err != nil {
		return err
	}
	defer watcher.Close()

	ctx = pm.Start(ctx)

	build := func(ctx context.Context, p *types.Project) {
		_ = c.report([]*types.BuildResult{eng.Build(ctx, c.request(factory, p, types.BuildModeREPL))})
	}

	build(ctx, project)
	if err := watcher.WatchProject(project); err != nil {
		return err
	}
	c.printInfo(fmt.Sprintf("Watching %s, press Ctrl-C to stop", project.Name))

	manager := config.NewManager()
	err = watcher.Run(ctx, func(ctx context.Context, changed []string) {
		c.logger.Info("Change detected",
			logger.WithField("project", project.Name),
			logger.WithField("files", len(changed)))

		reloaded, err := manager.LoadProject(path)
		if err != nil {
			c.logger.Warn("Keeping the previous project descriptor", logger.WithError(err))
		} else {
			project = reloaded
			if err := watcher.WatchProject(project); err != nil {
				c.logger.Warn("Failed to watch project", logger.WithError(err))
			}
		}
		build(ctx, project)
	})

	if errors.Is(err, context.Canceled) {
		c.printInfo("Stopped watching")
		return nil
	}
	return err
}
