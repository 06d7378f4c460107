package tasks

import "context"

// Repo is the backend's task collection. Create and Update return the task as
// the server stored it, with server-assigned ID and timestamps.
type Repo interface {
	ListTasks(ctx context.Context) ([]Task, error)
	CreateTask(ctx context.Context, draft Draft) (*Task, error)
	UpdateTask(ctx context.Context, id ID, patch Draft) (*Task, error)
	DeleteTask(ctx context.Context, id ID) error
	TaskStats(ctx context.Context) (*Stats, error)
}
