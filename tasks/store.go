package tasks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Store is the in-memory task collection for one session. It is mutated by
// three sources: a full refetch, the results of CRUD calls, and push messages.
//
// Every mutation runs its read-modify-write under mu, so mutations from
// different goroutines never interleave. Network calls run outside the lock;
// whichever mutation is applied last wins.
type Store struct {
	repo Repo

	mu      sync.RWMutex
	tasks   []Task
	err     error
	loading int

	subMu       sync.Mutex
	subscribers map[int]chan struct{}
	nextSub     int
}

func NewStore(repo Repo) *Store {
	return &Store{
		repo:        repo,
		subscribers: make(map[int]chan struct{}),
	}
}

// FetchAll replaces the collection with the server's listing. On failure the
// collection is left as it was.
func (s *Store) FetchAll(ctx context.Context) error {
	s.begin()
	list, err := s.repo.ListTasks(ctx)
	if err != nil {
		s.fail("fetch", err)
		return err
	}

	s.mu.Lock()
	s.tasks = slices.Clone(list)
	s.loading--
	s.mu.Unlock()

	log.Debug().Int("count", len(list)).Msg("tasks fetched")
	s.notify()
	return nil
}

// Create sends draft to the backend and appends the stored task.
func (s *Store) Create(ctx context.Context, draft Draft) (*Task, error) {
	s.begin()
	created, err := s.repo.CreateTask(ctx, draft)
	if err != nil {
		s.fail("create", err)
		return nil, err
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, *created)
	s.loading--
	s.mu.Unlock()

	log.Debug().Stringer("id", created.ID).Msg("task created")
	s.notify()
	return created, nil
}

// Update sends patch for id and replaces the local entry with the server's
// version. A task that is no longer held locally is not re-added.
func (s *Store) Update(ctx context.Context, id ID, patch Draft) (*Task, error) {
	s.begin()
	updated, err := s.repo.UpdateTask(ctx, id, patch)
	if err != nil {
		s.fail("update", err)
		return nil, err
	}

	s.mu.Lock()
	s.replace(*updated)
	s.loading--
	s.mu.Unlock()

	log.Debug().Stringer("id", id).Msg("task updated")
	s.notify()
	return updated, nil
}

// Remove deletes id on the backend and filters it out locally.
func (s *Store) Remove(ctx context.Context, id ID) error {
	s.begin()
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		s.fail("remove", err)
		return err
	}

	s.mu.Lock()
	s.remove(id)
	s.loading--
	s.mu.Unlock()

	log.Debug().Stringer("id", id).Msg("task removed")
	s.notify()
	return nil
}

// FetchStats reads the server-side aggregate counts. It does not touch the collection.
func (s *Store) FetchStats(ctx context.Context) (*Stats, error) {
	s.begin()
	stats, err := s.repo.TaskStats(ctx)
	if err != nil {
		s.fail("stats", err)
		return nil, err
	}

	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
	return stats, nil
}

// ApplyExternalInsert appends t. Duplicate IDs are not collapsed.
func (s *Store) ApplyExternalInsert(t Task) {
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	s.notify()
}

// ApplyExternalReplace swaps in t for the entry with the same ID, if any.
func (s *Store) ApplyExternalReplace(t Task) {
	s.mu.Lock()
	changed := s.replace(t)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// ApplyExternalRemove drops every entry with id. Unknown IDs are a no-op.
func (s *Store) ApplyExternalRemove(id ID) {
	s.mu.Lock()
	changed := s.remove(id)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Tasks returns a copy of the collection in its current order.
func (s *Store) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks)
}

// Len is the number of entries, duplicates included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Err is the failure of the most recent operation, or nil.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Loading reports whether a network operation is outstanding.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Subscribe returns a channel that receives a signal after each mutation.
// Signals coalesce: a slow reader sees one pending signal, not a backlog.
// Call the returned function to unsubscribe.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) begin() {
	s.mu.Lock()
	s.err = nil
	s.loading++
	s.mu.Unlock()
	s.notify()
}

func (s *Store) fail(op string, err error) {
	s.mu.Lock()
	s.err = err
	s.loading--
	s.mu.Unlock()

	log.Debug().Err(err).Str("op", op).Msg("task operation failed")
	s.notify()
}

// replace must be called with mu held.
func (s *Store) replace(t Task) bool {
	i := slices.IndexFunc(s.tasks, func(existing Task) bool { return existing.ID == t.ID })
	if i < 0 {
		return false
	}
	s.tasks[i] = t
	return true
}

// remove must be called with mu held.
func (s *Store) remove(id ID) bool {
	before := len(s.tasks)
	s.tasks = slices.DeleteFunc(s.tasks, func(t Task) bool { return t.ID == id })
	return len(s.tasks) != before
}

// Compact collapses entries that share an ID, keeping the last one applied at
// the position of the first.
func (s *Store) Compact() {
	s.mu.Lock()
	latest := make(map[ID]Task, len(s.tasks))
	for _, t := range s.tasks {
		latest[t.ID] = t
	}
	changed := len(latest) != len(s.tasks)
	if changed {
		out := make([]Task, 0, len(latest))
		for _, t := range s.tasks {
			if last, ok := latest[t.ID]; ok {
				out = append(out, last)
				delete(latest, t.ID)
			}
		}
		s.tasks = out
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Stats computes the aggregate counts over the current collection.
func (s *Store) Stats() Stats {
	return ComputeStats(s.Tasks(), NowTimeFunc())
}

// Overdue returns the overdue entries of the current collection.
func (s *Store) Overdue() []Task {
	return Overdue(s.Tasks(), NowTimeFunc())
}
