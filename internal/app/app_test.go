package app_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-task-client/internal/app"
	"github.com/jrsteele09/go-task-client/internal/config"
	"github.com/jrsteele09/go-task-client/internal/errors"
	"github.com/jrsteele09/go-task-client/push"
	"github.com/jrsteele09/go-task-client/token/jwt"
	"github.com/jrsteele09/go-task-client/users"
	"github.com/stretchr/testify/require"
)

var alice = users.User{ID: 1, Username: "alice"}

type backend struct {
	mu    sync.Mutex
	auths []string
}

func newBackend(t *testing.T) (*backend, string) {
	t.Helper()

	access, err := jwt.Sign(alice, "access", time.Hour, []byte("k"))
	require.NoError(t, err)
	refresh, err := jwt.Sign(alice, "refresh", 24*time.Hour, []byte("k"))
	require.NoError(t, err)

	b := &backend{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"access":%q,"refresh":%q}`, access, refresh)
	})
	mux.HandleFunc("GET /api/profile/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":1,"username":"alice"}`)
	})
	mux.HandleFunc("GET /api/tasks/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.auths = append(b.auths, r.Header.Get("Authorization"))
		b.mu.Unlock()
		fmt.Fprint(w, `[{"id":1,"title":"write report","status":"TODO"}]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv.URL
}

func loadConfig(t *testing.T, baseURL, storePath string) config.Config {
	t.Helper()
	cfg, err := config.Load("", config.Profile{
		APIURL:    baseURL + "/api",
		WSURL:     "ws" + baseURL[len("http"):] + "/ws/tasks/",
		StorePath: storePath,
	})
	require.NoError(t, err)
	return cfg
}

func TestApp_SessionSurvivesRestart(t *testing.T) {
	b, url := newBackend(t)
	storePath := filepath.Join(t.TempDir(), "taskctl", "session.db")
	cfg := loadConfig(t, url, storePath)
	ctx := context.Background()

	a, err := app.New(cfg)
	require.NoError(t, err)
	require.False(t, a.Session.Snapshot().Authenticated())
	require.NoError(t, a.Session.SignIn(ctx, "alice", "secret"))
	token := a.Session.Snapshot().Credentials.AccessToken
	require.NoError(t, a.Close())

	a, err = app.New(cfg)
	require.NoError(t, err)
	defer a.Close()

	snap := a.Session.Snapshot()
	require.True(t, snap.Authenticated())
	require.Equal(t, "alice", snap.Identity.Username)

	me, err := a.EnsureSession(ctx)
	require.NoError(t, err)
	require.Equal(t, alice, *me)

	require.NoError(t, a.Tasks.FetchAll(ctx))
	require.Equal(t, 1, a.Tasks.Len())

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Equal(t, []string{"Bearer " + token}, b.auths)
}

func TestApp_SignedOutRequestsCarryNoToken(t *testing.T) {
	b, url := newBackend(t)
	a, err := app.New(loadConfig(t, url, filepath.Join(t.TempDir(), "session.db")))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.EnsureSession(context.Background())
	require.ErrorIs(t, err, errors.ErrUnauthenticated)

	require.NoError(t, a.Tasks.FetchAll(context.Background()))
	b.mu.Lock()
	defer b.mu.Unlock()
	require.Equal(t, []string{""}, b.auths)
}

func TestApp_NewReconciler(t *testing.T) {
	_, url := newBackend(t)
	a, err := app.New(loadConfig(t, url, filepath.Join(t.TempDir(), "session.db")))
	require.NoError(t, err)
	defer a.Close()

	r := a.NewReconciler()
	state, _ := r.State()
	require.Equal(t, push.StateDisconnected, state)

	// The test backend has no websocket endpoint.
	require.ErrorIs(t, r.Open(context.Background()), errors.ErrBackend)
	require.NoError(t, r.Close())
}
