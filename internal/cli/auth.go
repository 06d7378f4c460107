package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jrsteele09/go-task-client/internal/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCommand(o *options) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and store the session",
		Long: `Sign in with a username and password. The token pair is stored so later
commands run without signing in again. Without --password the password is
prompted for on the terminal, or read from the first line of stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			if password == "" {
				var err error
				if password, err = readPassword(cmd); err != nil {
					return err
				}
			}

			ctx, cancel := o.requestContext(cmd)
			defer cancel()
			if err := o.app.Session.SignIn(ctx, username, password); err != nil {
				return err
			}

			snap := o.app.Session.Snapshot()
			if o.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), snap.Identity)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", snap.Identity)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted for when omitted)")
	return cmd
}

func newLogoutCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.app.Session.SignOut(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newRegisterCommand(o *options) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account",
		Long:  `Create an account on the backend. Registering does not sign in; run login afterwards.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = readPassword(cmd); err != nil {
					return err
				}
			}

			ctx, cancel := o.requestContext(cmd)
			defer cancel()
			msg, err := o.app.Session.Register(ctx, args[0], password)
			if err != nil {
				return err
			}
			if o.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"message": msg})
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted for when omitted)")
	return cmd
}

func newWhoamiCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user, as the backend sees it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := o.requestContext(cmd)
			defer cancel()
			me, err := o.app.EnsureSession(ctx)
			if err != nil {
				return err
			}
			if o.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), me)
			}
			role := "user"
			if me.IsSuperuser {
				role = "superuser"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d, %s)\n", me.Username, me.ID, role)
			return nil
		},
	}
}

// readPassword prompts without echo on a terminal and otherwise reads one line.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("%w: empty password", errors.ErrValidation)
	}
	return password, nil
}
