package cli

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

func newVersionCommand(o *options) *cobra.Command {
	var banner bool

	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print the taskctl version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{noAppAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			if o.jsonOutput {
				return writeJSON(w, map[string]string{"version": Version})
			}
			if banner {
				fig := figure.NewFigure(o.cfg.GetAppName(), "cybermedium", true)
				fmt.Fprint(w, fig.String())
				fmt.Fprintln(w)
			}
			_, err := fmt.Fprintf(w, "%s %s\n", o.cfg.GetAppName(), Version)
			return err
		},
	}
	cmd.Flags().BoolVar(&banner, "banner", false, "print the name as a banner")
	return cmd
}
