package sessions

import (
	"context"

	"github.com/jrsteele09/go-task-client/users"
)

// AuthRepo is the backend's authentication surface.
type AuthRepo interface {
	users.Repo
	Login(ctx context.Context, username, password string) (*Credentials, error)
	Register(ctx context.Context, username, password string) (string, error)
	Profile(ctx context.Context, accessToken string) (*users.User, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
}
