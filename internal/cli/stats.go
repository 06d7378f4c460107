package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jrsteele09/go-task-client/tasks"
	"github.com/spf13/cobra"
)

func newStatsCommand(o *options) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show task counts by status",
		Long: `Show task counts by status.

By default the counts come from the backend. With --local they are computed
from the task list instead; an overdue task is then counted only as overdue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := o.requestContext(cmd)
			defer cancel()

			if _, err := o.app.EnsureSession(ctx); err != nil {
				return err
			}

			var stats tasks.Stats
			if local {
				if err := o.app.Tasks.FetchAll(ctx); err != nil {
					return err
				}
				stats = o.app.Tasks.Stats()
			} else {
				fetched, err := o.app.Tasks.FetchStats(ctx)
				if err != nil {
					return err
				}
				stats = *fetched
			}

			if o.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			return printStats(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "compute counts from the task list")
	return cmd
}

func printStats(w io.Writer, s tasks.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Completed:\t%d\n", s.Completed)
	fmt.Fprintf(tw, "Pending:\t%d\n", s.Pending)
	fmt.Fprintf(tw, "In progress:\t%d\n", s.InProgress)
	fmt.Fprintf(tw, "Overdue:\t%d\n", s.Overdue)
	return tw.Flush()
}
