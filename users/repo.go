package users

import "context"

// Repo is the backend's user listing.
type Repo interface {
	ListUsers(ctx context.Context) ([]User, error)
}
