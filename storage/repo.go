package storage

import "errors"

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// Repo is a small durable string key-value store. The session persists its
// tokens and identity through it so a restart can resume without signing in.
type Repo interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(keys ...string) error
	Close() error
}
