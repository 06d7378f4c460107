// Package cli is the taskctl command tree.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-task-client/internal/app"
	"github.com/jrsteele09/go-task-client/internal/config"
	"github.com/jrsteele09/go-task-client/internal/errors"
	"github.com/jrsteele09/go-task-client/internal/logging"
	"github.com/spf13/cobra"
)

// noAppAnnotation marks commands that run without opening the session store.
const noAppAnnotation = "taskctl/no-app"

type options struct {
	configPath string
	overrides  config.Profile
	jsonOutput bool

	cfg config.Config
	app *app.App
}

// NewRootCommand builds the command tree. Each call returns an independent tree.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *options) {
	o := &options{}

	root := &cobra.Command{
		Use:   "taskctl",
		Short: "Command-line client for the task manager",
		Long: `taskctl signs in to the task manager backend and manages tasks from the terminal.

Environment Variables:
  TASKS_API_URL       REST base URL (default: http://localhost:8000/api)
  TASKS_WS_URL        Live update channel URL (default: ws://localhost:8000/ws/tasks/)
  TASKS_STORE_PATH    Session database file
  TASKS_HTTP_TIMEOUT  Per-request timeout, e.g. 10s
  TASKS_CONFIG        YAML profile path
  LOG_LEVEL           debug, info, warn, error`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return o.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "YAML profile (overrides TASKS_CONFIG)")
	flags.StringVar(&o.overrides.APIURL, "api-url", "", "REST base URL (overrides TASKS_API_URL)")
	flags.StringVar(&o.overrides.WSURL, "ws-url", "", "live update channel URL (overrides TASKS_WS_URL)")
	flags.StringVar(&o.overrides.StorePath, "store", "", "session database file (overrides TASKS_STORE_PATH)")
	flags.DurationVar(&o.overrides.HTTPTimeout, "timeout", 0, "per-request timeout (overrides TASKS_HTTP_TIMEOUT)")
	flags.StringVar(&o.overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flags.BoolVar(&o.jsonOutput, "json", false, "output JSON instead of human-readable text")

	root.AddCommand(
		newLoginCommand(o),
		newLogoutCommand(o),
		newRegisterCommand(o),
		newWhoamiCommand(o),
		newTasksCommand(o),
		newStatsCommand(o),
		newUsersCommand(o),
		newWatchCommand(o),
		newVersionCommand(o),
	)
	return root, o
}

// Execute runs taskctl with the process arguments.
func Execute(ctx context.Context) error {
	root, o := newRootCommand()
	err := root.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	if closeErr := o.teardown(); err == nil {
		err = closeErr
	}
	return Describe(err)
}

// Describe rewrites the errors a user can act on into instructions.
func Describe(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.ErrUnauthenticated), errors.Is(err, errors.ErrInvalidRefreshToken):
		return fmt.Errorf("not signed in (run `taskctl login`): %w", err)
	case errors.Is(err, errors.ErrInvalidCredentials):
		return fmt.Errorf("invalid username or password: %w", err)
	case errors.Is(err, errors.ErrNotPermitted):
		return fmt.Errorf("this needs a superuser account: %w", err)
	default:
		return err
	}
}

func (o *options) setup(cmd *cobra.Command) error {
	path := o.configPath
	if path == "" {
		path = config.DefaultProfilePath()
	}
	cfg, err := config.Load(path, o.overrides)
	if err != nil {
		return err
	}
	logging.Init(cfg.GetLogLevel(), cmd.ErrOrStderr())
	o.cfg = cfg

	if cmd.Annotations[noAppAnnotation] != "" {
		return nil
	}
	o.app, err = app.New(cfg)
	return err
}

func (o *options) teardown() error {
	if o.app == nil {
		return nil
	}
	err := o.app.Close()
	o.app = nil
	return err
}

// requestContext bounds one backend round trip.
func (o *options) requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout := 30 * time.Second
	if o.app != nil {
		timeout = o.app.Config().GetHTTPTimeout()
	}
	return context.WithTimeout(cmd.Context(), timeout)
}
