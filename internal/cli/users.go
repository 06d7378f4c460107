package cli

import (
	"github.com/jrsteele09/go-task-client/users"
	"github.com/spf13/cobra"
)

func newUsersCommand(o *options) *cobra.Command {
	var assignable bool

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users (superusers only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := o.requestContext(cmd)
			defer cancel()

			if _, err := o.app.EnsureSession(ctx); err != nil {
				return err
			}
			list, err := o.app.Session.FetchUsers(ctx)
			if err != nil {
				return err
			}
			if assignable {
				list = o.app.Session.AssignableUsers()
			}
			if list == nil {
				list = []users.User{}
			}

			if o.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			return printUsers(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().BoolVar(&assignable, "assignable", false, "only users tasks can be assigned to")
	return cmd
}
