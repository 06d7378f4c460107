package kvrepofake

import (
	"sync"

	"github.com/jrsteele09/go-task-client/storage"
)

var _ storage.Repo = (*FakeKVRepo)(nil)

type FakeKVRepo struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewFakeKVRepo() *FakeKVRepo {
	return &FakeKVRepo{values: make(map[string]string)}
}

func (r *FakeKVRepo) Get(key string) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (r *FakeKVRepo) Set(key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.values[key] = value
	return nil
}

func (r *FakeKVRepo) Delete(keys ...string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, k := range keys {
		delete(r.values, k)
	}
	return nil
}

// Len reports how many keys are stored.
func (r *FakeKVRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.values)
}

func (r *FakeKVRepo) Close() error {
	return nil
}
