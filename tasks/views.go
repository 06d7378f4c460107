package tasks

import "time"

// The functions below are read-only views over a snapshot from Store.Tasks.

// ByStatus returns the tasks whose status is st, in collection order.
func ByStatus(list []Task, st Status) []Task {
	out := make([]Task, 0)
	for _, t := range list {
		if t.Status == st {
			out = append(out, t)
		}
	}
	return out
}

// Overdue returns the tasks due before today that are not done.
func Overdue(list []Task, now time.Time) []Task {
	out := make([]Task, 0)
	for _, t := range list {
		if t.Status == StatusOverdue || t.IsOverdue(now) {
			out = append(out, t)
		}
	}
	return out
}

// Find returns the first task with id.
func Find(list []Task, id ID) (Task, bool) {
	for _, t := range list {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Stats are the aggregate counts shown by the statistics view.
type Stats struct {
	Completed  int `json:"completed_tasks"`
	Pending    int `json:"pending_tasks"`
	InProgress int `json:"in_progress_tasks"`
	Overdue    int `json:"overdue_tasks"`
}

func (s Stats) Total() int {
	return s.Completed + s.Pending + s.InProgress + s.Overdue
}

// ComputeStats buckets list locally. Buckets are disjoint: an overdue task is
// counted as overdue only, not also as pending or in progress.
func ComputeStats(list []Task, now time.Time) Stats {
	var s Stats
	for _, t := range list {
		switch {
		case t.Status == StatusDone:
			s.Completed++
		case t.Status == StatusOverdue || t.IsOverdue(now):
			s.Overdue++
		case t.Status == StatusInProgress:
			s.InProgress++
		default:
			s.Pending++
		}
	}
	return s
}
