package tasks_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-task-client/tasks"
	"github.com/stretchr/testify/require"
)

func datePtr(y int, m time.Month, d int) *tasks.Date {
	date := tasks.NewDate(y, m, d)
	return &date
}

func TestViews(t *testing.T) {
	now := time.Date(2026, 5, 20, 23, 59, 0, 0, time.UTC)
	list := []tasks.Task{
		{ID: "1", Status: tasks.StatusTodo, DueDate: datePtr(2026, 5, 19)},
		{ID: "2", Status: tasks.StatusDone, DueDate: datePtr(2026, 5, 1)},
		{ID: "3", Status: tasks.StatusInProgress, DueDate: datePtr(2026, 5, 20)},
		{ID: "4", Status: tasks.StatusInProgress},
		{ID: "5", Status: tasks.StatusOverdue},
		{ID: "6", Status: tasks.StatusTodo, DueDate: datePtr(2026, 6, 1)},
	}
	snapshot := append([]tasks.Task(nil), list...)

	t.Run("by status", func(t *testing.T) {
		require.Equal(t, []tasks.ID{"3", "4"}, ids(tasks.ByStatus(list, tasks.StatusInProgress)))
		require.Empty(t, tasks.ByStatus(list, "NOPE"))
	})

	t.Run("overdue excludes done and due today", func(t *testing.T) {
		require.Equal(t, []tasks.ID{"1", "5"}, ids(tasks.Overdue(list, now)))
	})

	t.Run("stats buckets are disjoint", func(t *testing.T) {
		stats := tasks.ComputeStats(list, now)
		require.Equal(t, tasks.Stats{Completed: 1, Pending: 1, InProgress: 2, Overdue: 2}, stats)
		require.Equal(t, len(list), stats.Total())
	})

	t.Run("find", func(t *testing.T) {
		got, ok := tasks.Find(list, "4")
		require.True(t, ok)
		require.Equal(t, tasks.StatusInProgress, got.Status)
		_, ok = tasks.Find(list, "404")
		require.False(t, ok)
	})

	require.Equal(t, snapshot, list, "views must not mutate their input")
}
