package taskrepofake

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/jrsteele09/go-task-client/internal/errors"
	"github.com/jrsteele09/go-task-client/tasks"
)

var _ tasks.Repo = (*FakeTaskRepo)(nil)

// FakeTaskRepo is an in-memory backend. It assigns numeric IDs, stamps times
// from tasks.NowTimeFunc and rejects blank titles the way the server does.
type FakeTaskRepo struct {
	tasks  []tasks.Task
	nextID int
	fail   map[string]error
	lock   sync.Mutex
}

func NewFakeTaskRepo(seed ...tasks.Task) *FakeTaskRepo {
	r := &FakeTaskRepo{nextID: 1, fail: make(map[string]error)}
	for _, t := range seed {
		r.tasks = append(r.tasks, t)
		if n, err := strconv.Atoi(string(t.ID)); err == nil && n >= r.nextID {
			r.nextID = n + 1
		}
	}
	return r
}

// FailWith makes the named operation ("list", "create", "update", "delete",
// "stats") return err until cleared with a nil err.
func (r *FakeTaskRepo) FailWith(op string, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err == nil {
		delete(r.fail, op)
		return
	}
	r.fail[op] = err
}

// Put stores t as if another session had written it.
func (r *FakeTaskRepo) Put(t tasks.Task) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for i := range r.tasks {
		if r.tasks[i].ID == t.ID {
			r.tasks[i] = t
			return
		}
	}
	r.tasks = append(r.tasks, t)
}

func (r *FakeTaskRepo) ListTasks(_ context.Context) ([]tasks.Task, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.fail["list"]; err != nil {
		return nil, err
	}
	out := make([]tasks.Task, len(r.tasks))
	copy(out, r.tasks)
	return out, nil
}

func (r *FakeTaskRepo) CreateTask(_ context.Context, draft tasks.Draft) (*tasks.Task, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.fail["create"]; err != nil {
		return nil, err
	}
	if err := validate(draft); err != nil {
		return nil, err
	}

	now := tasks.NowTimeFunc()
	t := apply(tasks.Task{
		ID:        tasks.ID(strconv.Itoa(r.nextID)),
		CreatedAt: now,
	}, draft)
	t.UpdatedAt = now
	r.nextID++
	r.tasks = append(r.tasks, t)
	return &t, nil
}

func (r *FakeTaskRepo) UpdateTask(_ context.Context, id tasks.ID, patch tasks.Draft) (*tasks.Task, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.fail["update"]; err != nil {
		return nil, err
	}
	if err := validate(patch); err != nil {
		return nil, err
	}
	for i := range r.tasks {
		if r.tasks[i].ID == id {
			t := apply(r.tasks[i], patch)
			t.UpdatedAt = tasks.NowTimeFunc()
			r.tasks[i] = t
			return &t, nil
		}
	}
	return nil, errors.NewAPIError(http.StatusNotFound, []byte(`{"detail":"Not found."}`))
}

func (r *FakeTaskRepo) DeleteTask(_ context.Context, id tasks.ID) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.fail["delete"]; err != nil {
		return err
	}
	for i := range r.tasks {
		if r.tasks[i].ID == id {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
			return nil
		}
	}
	return errors.NewAPIError(http.StatusNotFound, []byte(`{"detail":"Not found."}`))
}

func (r *FakeTaskRepo) TaskStats(_ context.Context) (*tasks.Stats, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.fail["stats"]; err != nil {
		return nil, err
	}
	stats := tasks.ComputeStats(r.tasks, tasks.NowTimeFunc())
	return &stats, nil
}

func validate(d tasks.Draft) error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.NewAPIError(http.StatusBadRequest, []byte(`{"title":["This field may not be blank."]}`))
	}
	return nil
}

func apply(t tasks.Task, d tasks.Draft) tasks.Task {
	t.Title = d.Title
	t.Description = d.Description
	t.Status = d.Status
	if t.Status == "" {
		t.Status = tasks.StatusTodo
	}
	t.DueDate = d.DueDate
	t.AssignedUserID = d.AssignedUserID
	return t
}
