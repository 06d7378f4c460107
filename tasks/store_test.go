package tasks_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-task-client/internal/errors"
	"github.com/jrsteele09/go-task-client/tasks"
	taskrepofake "github.com/jrsteele09/go-task-client/tasks/repofake"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 20, 9, 30, 0, 0, time.UTC)

func useFixedNow(t *testing.T) {
	t.Helper()
	tasks.NowTimeFunc = func() time.Time { return fixedNow }
	t.Cleanup(func() { tasks.NowTimeFunc = time.Now })
}

func seedTasks() []tasks.Task {
	return []tasks.Task{
		{ID: "1", Title: "write report", Status: tasks.StatusTodo},
		{ID: "2", Title: "review PR", Status: tasks.StatusInProgress},
		{ID: "3", Title: "ship release", Status: tasks.StatusDone},
	}
}

func loadedStore(t *testing.T) (*tasks.Store, *taskrepofake.FakeTaskRepo) {
	t.Helper()
	repo := taskrepofake.NewFakeTaskRepo(seedTasks()...)
	store := tasks.NewStore(repo)
	require.NoError(t, store.FetchAll(context.Background()))
	require.Equal(t, 3, store.Len())
	return store, repo
}

func ids(list []tasks.Task) []tasks.ID {
	out := make([]tasks.ID, 0, len(list))
	for _, t := range list {
		out = append(out, t.ID)
	}
	return out
}

func TestStore_FetchAll(t *testing.T) {
	t.Run("replaces collection", func(t *testing.T) {
		store, repo := loadedStore(t)
		store.ApplyExternalInsert(tasks.Task{ID: "99", Title: "stale"})

		repo.Put(tasks.Task{ID: "4", Title: "new elsewhere"})
		require.NoError(t, store.FetchAll(context.Background()))
		require.Equal(t, []tasks.ID{"1", "2", "3", "4"}, ids(store.Tasks()))
		require.NoError(t, store.Err())
		require.False(t, store.Loading())
	})

	t.Run("network failure leaves collection untouched", func(t *testing.T) {
		store, repo := loadedStore(t)
		before := store.Tasks()

		repo.FailWith("list", errors.Wrapf(errors.ErrBackend, "cannot connect to backend"))
		err := store.FetchAll(context.Background())
		require.ErrorIs(t, err, errors.ErrBackend)
		require.Equal(t, before, store.Tasks())
		require.ErrorIs(t, store.Err(), errors.ErrBackend)
		require.False(t, store.Loading())
	})
}

func TestStore_Create(t *testing.T) {
	useFixedNow(t)

	t.Run("appends server task", func(t *testing.T) {
		store, _ := loadedStore(t)
		created, err := store.Create(context.Background(), tasks.Draft{Title: "plan sprint", Status: tasks.StatusTodo})
		require.NoError(t, err)
		require.Equal(t, tasks.ID("4"), created.ID)
		require.Equal(t, fixedNow, created.CreatedAt)
		require.Equal(t, []tasks.ID{"1", "2", "3", "4"}, ids(store.Tasks()))
	})

	t.Run("server rejects blank title", func(t *testing.T) {
		store, _ := loadedStore(t)
		_, err := store.Create(context.Background(), tasks.Draft{Title: ""})
		require.ErrorIs(t, err, errors.ErrValidation)
		require.Equal(t, 3, store.Len())

		var apiErr *errors.APIError
		require.True(t, errors.As(store.Err(), &apiErr))
		require.Equal(t, "title: This field may not be blank.", apiErr.Message)
	})
}

func TestStore_Update(t *testing.T) {
	t.Run("replaces in place", func(t *testing.T) {
		store, _ := loadedStore(t)
		_, err := store.Update(context.Background(), "2", tasks.Draft{Title: "review PR", Status: tasks.StatusDone})
		require.NoError(t, err)

		list := store.Tasks()
		require.Equal(t, []tasks.ID{"1", "2", "3"}, ids(list))
		require.Equal(t, tasks.StatusDone, list[1].Status)
	})

	t.Run("failure does not mutate", func(t *testing.T) {
		store, repo := loadedStore(t)
		before := store.Tasks()
		repo.FailWith("update", errors.NewAPIError(500, []byte(`{"detail":"boom"}`)))

		_, err := store.Update(context.Background(), "2", tasks.Draft{Title: "x"})
		require.ErrorIs(t, err, errors.ErrBackend)
		require.Equal(t, before, store.Tasks())
		require.Error(t, store.Err())
	})

	t.Run("error cleared by next operation", func(t *testing.T) {
		store, repo := loadedStore(t)
		repo.FailWith("update", errors.ErrBackend)
		_, err := store.Update(context.Background(), "1", tasks.Draft{Title: "x"})
		require.Error(t, err)
		require.Error(t, store.Err())

		repo.FailWith("update", nil)
		_, err = store.Update(context.Background(), "1", tasks.Draft{Title: "x"})
		require.NoError(t, err)
		require.NoError(t, store.Err())
	})
}

func TestStore_Remove(t *testing.T) {
	store, repo := loadedStore(t)
	require.NoError(t, store.Remove(context.Background(), "2"))
	require.Equal(t, []tasks.ID{"1", "3"}, ids(store.Tasks()))

	repo.FailWith("delete", errors.ErrBackend)
	require.Error(t, store.Remove(context.Background(), "1"))
	require.Equal(t, []tasks.ID{"1", "3"}, ids(store.Tasks()))
	require.ErrorIs(t, store.Err(), errors.ErrBackend)
}

func TestStore_ExternalPrimitives(t *testing.T) {
	t.Run("insert does not dedup", func(t *testing.T) {
		store, _ := loadedStore(t)
		store.ApplyExternalInsert(tasks.Task{ID: "3", Title: "again"})
		require.Equal(t, []tasks.ID{"1", "2", "3", "3"}, ids(store.Tasks()))

		store.Compact()
		list := store.Tasks()
		require.Equal(t, []tasks.ID{"1", "2", "3"}, ids(list))
		require.Equal(t, "again", list[2].Title)
	})

	t.Run("replace of unknown id is a no-op", func(t *testing.T) {
		store, _ := loadedStore(t)
		before := store.Tasks()
		store.ApplyExternalReplace(tasks.Task{ID: "77", Title: "ghost"})
		require.Equal(t, before, store.Tasks())
	})

	t.Run("remove of unknown id is a no-op", func(t *testing.T) {
		store, _ := loadedStore(t)
		before := store.Tasks()
		store.ApplyExternalRemove("42")
		require.Equal(t, before, store.Tasks())
		require.NoError(t, store.Err())
	})

	t.Run("replace keeps position", func(t *testing.T) {
		store, _ := loadedStore(t)
		store.ApplyExternalReplace(tasks.Task{ID: "1", Title: "renamed", Status: tasks.StatusDone})
		list := store.Tasks()
		require.Equal(t, []tasks.ID{"1", "2", "3"}, ids(list))
		require.Equal(t, "renamed", list[0].Title)
	})
}

func TestStore_LastAppliedWins(t *testing.T) {
	older := tasks.Task{ID: "2", Title: "review PR", Status: tasks.StatusTodo}

	t.Run("local update then older push", func(t *testing.T) {
		store, _ := loadedStore(t)
		_, err := store.Update(context.Background(), "2", tasks.Draft{Title: "review PR", Status: tasks.StatusDone})
		require.NoError(t, err)
		store.ApplyExternalReplace(older)

		got, ok := tasks.Find(store.Tasks(), "2")
		require.True(t, ok)
		require.Equal(t, tasks.StatusTodo, got.Status)
	})

	t.Run("older push then local update", func(t *testing.T) {
		store, _ := loadedStore(t)
		store.ApplyExternalReplace(older)
		_, err := store.Update(context.Background(), "2", tasks.Draft{Title: "review PR", Status: tasks.StatusDone})
		require.NoError(t, err)

		got, ok := tasks.Find(store.Tasks(), "2")
		require.True(t, ok)
		require.Equal(t, tasks.StatusDone, got.Status)
	})
}

func TestStore_ReplaceAndRemoveNeverDuplicate(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	store, _ := loadedStore(t)
	next := 100

	for i := 0; i < 500; i++ {
		switch rng.Intn(3) {
		case 0:
			store.ApplyExternalInsert(tasks.Task{ID: tasks.ID(fmt.Sprint(next))})
			next++
		case 1:
			id := tasks.ID(fmt.Sprint(rng.Intn(next)))
			store.ApplyExternalReplace(tasks.Task{ID: id, Title: fmt.Sprint(i)})
		case 2:
			store.ApplyExternalRemove(tasks.ID(fmt.Sprint(rng.Intn(next))))
		}

		seen := make(map[tasks.ID]bool)
		for _, task := range store.Tasks() {
			require.False(t, seen[task.ID], "duplicate id %s after step %d", task.ID, i)
			seen[task.ID] = true
		}
	}
}

func TestStore_ConcurrentMutations(t *testing.T) {
	store := tasks.NewStore(taskrepofake.NewFakeTaskRepo())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := tasks.ID(fmt.Sprintf("%d-%d", g, i))
				store.ApplyExternalInsert(tasks.Task{ID: id})
				store.ApplyExternalReplace(tasks.Task{ID: id, Title: "updated"})
				if i%2 == 0 {
					store.ApplyExternalRemove(id)
				}
			}
		}(g)
	}
	wg.Wait()

	require.Equal(t, 8*25, store.Len())
	for _, task := range store.Tasks() {
		require.Equal(t, "updated", task.Title)
	}
}

func TestStore_Subscribe(t *testing.T) {
	store, _ := loadedStore(t)
	ch, cancel := store.Subscribe()

	store.ApplyExternalInsert(tasks.Task{ID: "10"})
	store.ApplyExternalInsert(tasks.Task{ID: "11"})

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a change signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}

	cancel()
	store.ApplyExternalRemove("10")
	select {
	case <-ch:
		t.Fatal("unsubscribed channel should not be signalled")
	default:
	}
}

func TestStore_FetchStats(t *testing.T) {
	useFixedNow(t)
	store, repo := loadedStore(t)

	stats, err := store.FetchStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, tasks.Stats{Completed: 1, Pending: 1, InProgress: 1}, *stats)
	require.Equal(t, *stats, store.Stats())

	repo.FailWith("stats", errors.ErrBackend)
	_, err = store.FetchStats(context.Background())
	require.ErrorIs(t, err, errors.ErrBackend)
	require.Equal(t, 3, store.Len())
}
