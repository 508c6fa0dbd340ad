package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/apkforge/apkforge/internal/engine"
	"github.com/apkforge/apkforge/pkg/logger"
	"github.com/apkforge/apkforge/pkg/types"
)

func (c *CLI) newHistoryCmd() *cobra.Command {
	var limit int
	var clearHistory bool

	cmd := &cobra.Command{
		Use:   "history [project]",
		Short: "Show recorded build results",
		Long: `Show the recorded builds of one project, newest first. Without a project,
show the latest build of every project.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project := ""
			if len(args) > 0 {
				project = args[0]
			}
			if clearHistory {
				return c.runHistoryClear(project)
			}
			return c.runHistory(project, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of builds to show")
	cmd.Flags().BoolVar(&clearHistory, "clear", false, "delete the recorded builds instead of showing them")
	return cmd
}

func (c *CLI) runHistory(project string, limit int) error {
	factory := engine.NewDependencyFactory(c.tool, c.logger)
	defer factory.Close()

	store, err := factory.History()
	if err != nil {
		return err
	}

	var results []*types.BuildResult
	if project != "" {
		results, err = store.History(project, limit)
		if err != nil {
			return err
		}
	} else {
		projects, err := store.Projects()
		if err != nil {
			return err
		}
		for _, name := range projects {
			latest, err := store.Latest(name)
			if err != nil {
				c.logger.Warn("Skipping project", logger.WithField("project", name), logger.WithError(err))
				continue
			}
			results = append(results, latest)
		}
	}

	if len(results) == 0 {
		c.printInfo("No builds recorded")
		return nil
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tSTATUS\tMODE\tSTARTED\tDURATION\tDETAIL")
	for _, r := range results {
		status := string(r.Status())
		if r.Success {
			status = color.GreenString(status)
		} else {
			status = color.RedString(status)
		}

		detail := r.PackagePath
		if !r.Success {
			detail = string(r.FailedStage)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Project,
			status,
			r.Mode,
			r.StartedAt.Local().Format(time.DateTime),
			r.Duration.Round(time.Millisecond),
			detail)
	}
	return w.Flush()
}

func (c *CLI) runHistoryClear(project string) error {
	factory := engine.NewDependencyFactory(c.tool, c.logger)
	defer factory.Close()

	store, err := factory.History()
	if err != nil {
		return err
	}
	if err := store.Clear(project); err != nil {
		return err
	}

	if project == "" {
		c.printSuccess("Cleared all recorded builds")
	} else {
		c.printSuccess(fmt.Sprintf("Cleared recorded builds of %s", project))
	}
	return nil
}
