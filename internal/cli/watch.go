package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jrsteele09/go-task-client/internal/errors"
	"github.com/jrsteele09/go-task-client/internal/tui"
	"github.com/jrsteele09/go-task-client/push"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newWatchCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live task list, kept current by the update channel",
		Long: `Live task list, kept current by the update channel.

Keys:
  j/k, up/down  move
  f             cycle status filter
  o             toggle overdue only
  r             refetch
  d             delete selected task
  q, esc        quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			sessionCtx, cancel := o.requestContext(cmd)
			me, err := o.app.EnsureSession(sessionCtx)
			if err == nil && me.IsSuperuser {
				if _, usersErr := o.app.Session.FetchUsers(sessionCtx); usersErr != nil {
					log.Debug().Err(usersErr).Msg("users directory unavailable")
				}
			}
			cancel()
			if err != nil {
				return err
			}

			listener, states := tui.StateRelay()
			reconciler := o.app.NewReconciler(push.WithStateListener(listener))
			defer reconciler.Close()

			model := tui.New(tui.Config{
				Tasks:    o.app.Tasks,
				Channel:  reconciler,
				States:   states,
				Identity: me,
				Users:    o.app.Session.Users(),
				Timeout:  o.app.Config().GetHTTPTimeout(),
			})
			program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			return nil
		},
	}
}
