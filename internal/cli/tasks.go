package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-task-client/internal/errors"
	"github.com/jrsteele09/go-task-client/internal/utils"
	"github.com/jrsteele09/go-task-client/tasks"
	"github.com/jrsteele09/go-task-client/users"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newTasksCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "List and edit tasks",
	}
	cmd.AddCommand(
		newTasksListCommand(o),
		newTasksCreateCommand(o),
		newTasksUpdateCommand(o),
		newTasksDeleteCommand(o),
	)
	return cmd
}

func newTasksListCommand(o *options) *cobra.Command {
	var status string
	var overdue bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := o.requestContext(cmd)
			defer cancel()

			if _, err := o.app.EnsureSession(ctx); err != nil {
				return err
			}
			if err := o.app.Tasks.FetchAll(ctx); err != nil {
				return err
			}

			list := o.app.Tasks.Tasks()
			if status != "" {
				st, err := tasks.ParseStatus(status)
				if err != nil {
					return fmt.Errorf("%w: %v", errors.ErrValidation, err)
				}
				list = tasks.ByStatus(list, st)
			}
			if overdue {
				list = tasks.Overdue(list, tasks.NowTimeFunc())
			}

			if o.jsonOutput {
				if list == nil {
					list = []tasks.Task{}
				}
				return writeJSON(cmd.OutOrStdout(), list)
			}
			return printTasks(cmd.OutOrStdout(), list, o.directory(ctx))
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only tasks with this status (todo, in-progress, done)")
	cmd.Flags().BoolVar(&overdue, "overdue", false, "only tasks past their due date and not done")
	return cmd
}

type draftFlags struct {
	title       string
	description string
	status      string
	due         string
	assign      string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "task title")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "task description")
	cmd.Flags().StringVarP(&f.status, "status", "s", "", "todo, in-progress or done")
	cmd.Flags().StringVar(&f.due, "due", "", "due date, YYYY-MM-DD (\"none\" clears it)")
	cmd.Flags().StringVar(&f.assign, "assign", "", "assignee user ID or username (superusers)")
}

// apply copies the flags the user set onto draft.
func (f *draftFlags) apply(ctx context.Context, o *options, cmd *cobra.Command, draft *tasks.Draft) error {
	changed := cmd.Flags().Changed
	if changed("title") {
		draft.Title = f.title
	}
	if changed("description") {
		draft.Description = f.description
	}
	if changed("status") {
		st, err := tasks.ParseStatus(f.status)
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrValidation, err)
		}
		draft.Status = st
	}
	if changed("due") {
		switch strings.ToLower(strings.TrimSpace(f.due)) {
		case "", "none":
			draft.DueDate = nil
		default:
			d, err := tasks.ParseDate(f.due)
			if err != nil {
				return fmt.Errorf("%w: due date: %v", errors.ErrValidation, err)
			}
			draft.DueDate = utils.Ptr(d)
		}
	}
	if changed("assign") {
		id, err := o.resolveUser(ctx, f.assign)
		if err != nil {
			return err
		}
		draft.AssignedUserID = utils.Ptr(id)
	}
	return nil
}

func newTasksCreateCommand(o *options) *cobra.Command {
	var f draftFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := o.requestContext(cmd)
			defer cancel()

			me, err := o.app.EnsureSession(ctx)
			if err != nil {
				return err
			}

			draft := tasks.Draft{Status: tasks.StatusTodo}
			if err := f.apply(ctx, o, cmd, &draft); err != nil {
				return err
			}
			if err := draft.Validate(me.IsSuperuser); err != nil {
				return fmt.Errorf("%w: %v", errors.ErrValidation, err)
			}

			created, err := o.app.Tasks.Create(ctx, draft)
			if err != nil {
				return err
			}
			if o.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), created)
			}
			return printTask(cmd.OutOrStdout(), created)
		},
	}
	f.register(cmd)
	return cmd
}

func newTasksUpdateCommand(o *options) *cobra.Command {
	var f draftFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a task",
		Long:  `Change fields of a task. Only the flags given are changed; the rest keep their current values.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.requestContext(cmd)
			defer cancel()

			if _, err := o.app.EnsureSession(ctx); err != nil {
				return err
			}
			if err := o.app.Tasks.FetchAll(ctx); err != nil {
				return err
			}

			id := tasks.ID(args[0])
			current, ok := tasks.Find(o.app.Tasks.Tasks(), id)
			if !ok {
				return errors.Wrapf(errors.ErrNotFound, "task %s", id)
			}

			draft := tasks.DraftOf(current)
			if err := f.apply(ctx, o, cmd, &draft); err != nil {
				return err
			}
			if err := draft.Validate(false); err != nil {
				return fmt.Errorf("%w: %v", errors.ErrValidation, err)
			}

			updated, err := o.app.Tasks.Update(ctx, id, draft)
			if err != nil {
				return err
			}
			if o.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), updated)
			}
			return printTask(cmd.OutOrStdout(), updated)
		},
	}
	f.register(cmd)
	return cmd
}

func newTasksDeleteCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.requestContext(cmd)
			defer cancel()

			if _, err := o.app.EnsureSession(ctx); err != nil {
				return err
			}
			id := tasks.ID(args[0])
			if err := o.app.Tasks.Remove(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", id)
			return nil
		},
	}
}

// resolveUser accepts a numeric user ID or a username. Usernames need the
// users directory, which only superusers can load.
func (o *options) resolveUser(ctx context.Context, ref string) (int64, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}
	list, err := o.app.Session.FetchUsers(ctx)
	if err != nil {
		return 0, err
	}
	for _, u := range list {
		if u.Username == ref {
			return u.ID, nil
		}
	}
	return 0, errors.Wrapf(errors.ErrNotFound, "user %q", ref)
}

// directory loads the users directory for superusers, for assignee names.
// Failures only cost the names.
func (o *options) directory(ctx context.Context) users.Directory {
	if !o.app.Session.Snapshot().Elevated() {
		return nil
	}
	if _, err := o.app.Session.FetchUsers(ctx); err != nil {
		log.Debug().Err(err).Msg("users directory unavailable")
		return nil
	}
	return o.app.Session.Users()
}
