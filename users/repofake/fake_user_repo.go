package fakeuserrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/go-task-client/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users map[int64]users.User
	err   error
	calls int
	lock  sync.RWMutex
}

func NewFakeUserRepo(list ...users.User) *FakeUserRepo {
	ur := &FakeUserRepo{users: make(map[int64]users.User)}
	for _, u := range list {
		ur.users[u.ID] = u
	}
	return ur
}

// FailWith makes subsequent ListUsers calls return err.
func (ur *FakeUserRepo) FailWith(err error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.err = err
}

// Add stores u, replacing any user with the same ID.
func (ur *FakeUserRepo) Add(u users.User) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.users[u.ID] = u
}

func (ur *FakeUserRepo) Calls() int {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.calls
}

func (ur *FakeUserRepo) ListUsers(_ context.Context) ([]users.User, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	ur.calls++
	if ur.err != nil {
		return nil, ur.err
	}
	list := make([]users.User, 0, len(ur.users))
	for _, u := range ur.users {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list, nil
}
