package app

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-task-client/api"
	"github.com/jrsteele09/go-task-client/internal/config"
	"github.com/jrsteele09/go-task-client/push"
	"github.com/jrsteele09/go-task-client/sessions"
	"github.com/jrsteele09/go-task-client/storage"
	"github.com/jrsteele09/go-task-client/storage/sqlitekv"
	"github.com/jrsteele09/go-task-client/tasks"
	"github.com/jrsteele09/go-task-client/users"
	"github.com/rs/zerolog/log"
)

// App owns the process-wide state: one session, one task store and the
// backend client they share. Views receive it explicitly.
type App struct {
	config  config.Config
	kv      storage.Repo
	API     *api.Client
	Session *sessions.Store
	Tasks   *tasks.Store
}

// New opens the durable session store named by the configuration and restores
// any persisted session.
func New(cfg config.Config) (*App, error) {
	kv, err := sqlitekv.Open(cfg.GetStorePath())
	if err != nil {
		return nil, fmt.Errorf("[App New] failed to open session store: %w", err)
	}
	client := api.New(cfg.GetAPIURL(), api.WithTimeout(cfg.GetHTTPTimeout()))

	a, err := Assemble(cfg, kv, client)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	return a, nil
}

// Assemble wires an App from already constructed parts.
func Assemble(cfg config.Config, kv storage.Repo, client *api.Client) (*App, error) {
	session := sessions.NewStore(client, kv)
	if err := session.Restore(); err != nil {
		return nil, fmt.Errorf("[App Assemble] failed to restore session: %w", err)
	}
	client.SetTokenSource(session)

	log.Debug().
		Str("api", cfg.GetAPIURL()).
		Str("ws", cfg.GetWSURL()).
		Bool("authenticated", session.Snapshot().Authenticated()).
		Msg("app ready")

	return &App{
		config:  cfg,
		kv:      kv,
		API:     client,
		Session: session,
		Tasks:   tasks.NewStore(client),
	}, nil
}

func (a *App) Config() config.Config {
	return a.config
}

// EnsureSession confirms the stored session with the backend, refreshing the
// access token if needed. It is what a view does when it mounts.
func (a *App) EnsureSession(ctx context.Context) (*users.User, error) {
	return a.Session.RefreshIdentity(ctx)
}

// NewReconciler returns an unopened push channel feeding the task store.
func (a *App) NewReconciler(opts ...push.Option) *push.Reconciler {
	return push.New(a.config.GetWSURL(), a.Tasks, opts...)
}

func (a *App) Close() error {
	if err := a.kv.Close(); err != nil {
		return fmt.Errorf("[App Close] failed to close session store: %w", err)
	}
	return nil
}
