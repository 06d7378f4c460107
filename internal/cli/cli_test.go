package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-task-client/internal/errors"
	"github.com/jrsteele09/go-task-client/token/jwt"
	"github.com/jrsteele09/go-task-client/users"
	"github.com/stretchr/testify/require"
)

var signingKey = []byte("cli-test-key")

type backendTask struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Status       string  `json:"status"`
	DueDate      *string `json:"due_date"`
	User         string  `json:"user,omitempty"`
	AssignedUser *int64  `json:"assigned_user,omitempty"`
}

// taskBackend is a small in-memory stand-in for the REST API.
type taskBackend struct {
	mu     sync.Mutex
	users  map[string]users.User
	tasks  []backendTask
	nextID int64
}

func newTaskBackend(t *testing.T) (*taskBackend, string) {
	t.Helper()
	b := &taskBackend{
		users: map[string]users.User{
			"alice": {ID: 1, Username: "alice"},
			"root":  {ID: 2, Username: "root", IsSuperuser: true},
		},
		nextID: 1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login/", b.login)
	mux.HandleFunc("GET /api/profile/", b.authed(func(w http.ResponseWriter, _ *http.Request, u users.User) {
		_ = json.NewEncoder(w).Encode(u)
	}))
	mux.HandleFunc("GET /api/users_list/", b.authed(func(w http.ResponseWriter, _ *http.Request, u users.User) {
		if !u.IsSuperuser {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		list := make([]users.User, 0, len(b.users))
		for _, name := range []string{"alice", "root"} {
			list = append(list, b.users[name])
		}
		_ = json.NewEncoder(w).Encode(list)
	}))
	mux.HandleFunc("GET /api/tasks/", b.authed(func(w http.ResponseWriter, _ *http.Request, _ users.User) {
		b.mu.Lock()
		defer b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(b.tasks)
	}))
	mux.HandleFunc("POST /api/tasks/", b.authed(func(w http.ResponseWriter, r *http.Request, u users.User) {
		var in backendTask
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Title == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"title":["This field may not be blank."]}`)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		in.ID = b.nextID
		in.User = u.Username
		b.nextID++
		b.tasks = append(b.tasks, in)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	}))
	mux.HandleFunc("PUT /api/tasks/{id}/", b.authed(func(w http.ResponseWriter, r *http.Request, _ users.User) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		var in backendTask
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		for i := range b.tasks {
			if b.tasks[i].ID == id {
				in.ID, in.User = id, b.tasks[i].User
				b.tasks[i] = in
				_ = json.NewEncoder(w).Encode(in)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	mux.HandleFunc("DELETE /api/tasks/{id}/", b.authed(func(w http.ResponseWriter, r *http.Request, _ users.User) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		b.mu.Lock()
		defer b.mu.Unlock()
		for i := range b.tasks {
			if b.tasks[i].ID == id {
				b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	mux.HandleFunc("GET /api/task-stats/", b.authed(func(w http.ResponseWriter, _ *http.Request, _ users.User) {
		fmt.Fprint(w, `{"completed_tasks":7,"pending_tasks":3,"in_progress_tasks":2,"overdue_tasks":1}`)
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv.URL
}

func (b *taskBackend) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	b.mu.Lock()
	u, ok := b.users[in.Username]
	b.mu.Unlock()
	if !ok || in.Password != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"detail":"No active account found with the given credentials"}`)
		return
	}
	access, _ := jwt.Sign(u, "access", time.Hour, signingKey)
	refresh, _ := jwt.Sign(u, "refresh", 24*time.Hour, signingKey)
	_ = json.NewEncoder(w).Encode(map[string]string{"access": access, "refresh": refresh})
}

func (b *taskBackend) authed(next func(http.ResponseWriter, *http.Request, users.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		claims, err := jwt.Decode(raw)
		if !ok || err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"detail":"Authentication credentials were not provided."}`)
			return
		}
		next(w, r, *claims.Identity())
	}
}

type cliEnv struct {
	baseURL string
	store   string
	profile string
}

func newCLIEnv(t *testing.T) (*taskBackend, cliEnv) {
	t.Helper()
	for _, v := range []string{"TASKS_API_URL", "TASKS_WS_URL", "TASKS_STORE_PATH", "TASKS_HTTP_TIMEOUT", "TASKS_CONFIG", "LOG_LEVEL", "APP_NAME"} {
		t.Setenv(v, "")
	}
	b, url := newTaskBackend(t)
	dir := t.TempDir()
	return b, cliEnv{
		baseURL: url + "/api",
		store:   filepath.Join(dir, "session.db"),
		profile: filepath.Join(dir, "missing.yaml"),
	}
}

func (e cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root, o := newRootCommand()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.profile, "--api-url", e.baseURL, "--store", e.store}, args...))

	err := root.ExecuteContext(context.Background())
	require.NoError(t, o.teardown())
	return out.String(), Describe(err)
}

func TestCLI_LoginWhoamiLogout(t *testing.T) {
	_, env := newCLIEnv(t)

	out, err := env.run(t, "", "login", "alice", "-p", "secret")
	require.NoError(t, err)
	require.Equal(t, "Signed in as alice\n", out)

	out, err = env.run(t, "", "whoami")
	require.NoError(t, err)
	require.Equal(t, "alice (id 1, user)\n", out)

	out, err = env.run(t, "", "logout")
	require.NoError(t, err)
	require.Equal(t, "Signed out\n", out)

	_, err = env.run(t, "", "whoami")
	require.ErrorIs(t, err, errors.ErrUnauthenticated)
	require.Contains(t, err.Error(), "taskctl login")
}

func TestCLI_LoginReadsPasswordFromStdin(t *testing.T) {
	_, env := newCLIEnv(t)

	_, err := env.run(t, "secret\n", "login", "alice")
	require.NoError(t, err)

	_, err = env.run(t, "", "login", "alice")
	require.ErrorIs(t, err, errors.ErrValidation)
}

func TestCLI_LoginBadPassword(t *testing.T) {
	_, env := newCLIEnv(t)

	_, err := env.run(t, "", "login", "alice", "-p", "wrong")
	require.ErrorIs(t, err, errors.ErrInvalidCredentials)
	require.Contains(t, err.Error(), "invalid username or password")
}

func TestCLI_TaskLifecycle(t *testing.T) {
	b, env := newCLIEnv(t)
	_, err := env.run(t, "", "login", "alice", "-p", "secret")
	require.NoError(t, err)

	out, err := env.run(t, "", "tasks", "create", "--title", "write report", "--due", "2026-06-01")
	require.NoError(t, err)
	require.Contains(t, out, "write report")
	require.Contains(t, out, "2026-06-01")

	_, err = env.run(t, "", "tasks", "create", "--title", "review PR", "--status", "in-progress")
	require.NoError(t, err)

	out, err = env.run(t, "", "--json", "tasks", "list", "--status", "in-progress")
	require.NoError(t, err)
	var listed []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	require.Equal(t, "review PR", listed[0]["title"])

	out, err = env.run(t, "", "tasks", "update", "1", "--status", "done", "--due", "none")
	require.NoError(t, err)
	require.Contains(t, out, "DONE")

	b.mu.Lock()
	require.Equal(t, "write report", b.tasks[0].Title)
	require.Equal(t, "DONE", b.tasks[0].Status)
	require.Nil(t, b.tasks[0].DueDate)
	b.mu.Unlock()

	out, err = env.run(t, "", "tasks", "delete", "2")
	require.NoError(t, err)
	require.Equal(t, "Deleted task 2\n", out)

	out, err = env.run(t, "", "tasks", "list")
	require.NoError(t, err)
	require.Contains(t, out, "write report")
	require.NotContains(t, out, "review PR")
}

func TestCLI_TaskValidation(t *testing.T) {
	_, env := newCLIEnv(t)
	_, err := env.run(t, "", "login", "alice", "-p", "secret")
	require.NoError(t, err)

	_, err = env.run(t, "", "tasks", "create")
	require.ErrorIs(t, err, errors.ErrValidation)

	_, err = env.run(t, "", "tasks", "create", "--title", "x", "--status", "someday")
	require.ErrorIs(t, err, errors.ErrValidation)

	_, err = env.run(t, "", "tasks", "create", "--title", "x", "--due", "01/06/2026")
	require.ErrorIs(t, err, errors.ErrValidation)

	_, err = env.run(t, "", "tasks", "update", "99", "--title", "x")
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCLI_SuperuserAssignsByUsername(t *testing.T) {
	b, env := newCLIEnv(t)
	_, err := env.run(t, "", "login", "root", "-p", "secret")
	require.NoError(t, err)

	_, err = env.run(t, "", "tasks", "create", "--title", "unassigned")
	require.ErrorIs(t, err, errors.ErrValidation)

	_, err = env.run(t, "", "tasks", "create", "--title", "for alice", "--assign", "alice")
	require.NoError(t, err)

	b.mu.Lock()
	require.NotNil(t, b.tasks[0].AssignedUser)
	require.Equal(t, int64(1), *b.tasks[0].AssignedUser)
	b.mu.Unlock()

	out, err := env.run(t, "", "tasks", "list")
	require.NoError(t, err)
	require.Contains(t, out, "alice")
}

func TestCLI_Users(t *testing.T) {
	_, env := newCLIEnv(t)

	_, err := env.run(t, "", "login", "alice", "-p", "secret")
	require.NoError(t, err)
	_, err = env.run(t, "", "users")
	require.ErrorIs(t, err, errors.ErrNotPermitted)

	_, err = env.run(t, "", "login", "root", "-p", "secret")
	require.NoError(t, err)
	out, err := env.run(t, "", "users")
	require.NoError(t, err)
	require.Contains(t, out, "alice")
	require.Contains(t, out, "root")

	out, err = env.run(t, "", "--json", "users", "--assignable")
	require.NoError(t, err)
	var list []users.User
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Equal(t, []users.User{{ID: 1, Username: "alice"}}, list)
}

func TestCLI_Stats(t *testing.T) {
	_, env := newCLIEnv(t)
	_, err := env.run(t, "", "login", "alice", "-p", "secret")
	require.NoError(t, err)

	out, err := env.run(t, "", "stats")
	require.NoError(t, err)
	require.Contains(t, out, "Completed:")
	require.Contains(t, out, "7")

	out, err = env.run(t, "", "--json", "stats", "--local")
	require.NoError(t, err)
	require.JSONEq(t, `{"completed_tasks":0,"pending_tasks":0,"in_progress_tasks":0,"overdue_tasks":0}`, out)
}

func TestCLI_Version(t *testing.T) {
	_, env := newCLIEnv(t)
	out, err := env.run(t, "", "version")
	require.NoError(t, err)
	require.Equal(t, "taskctl dev\n", out)
}
