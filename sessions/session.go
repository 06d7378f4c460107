package sessions

import (
	"github.com/jrsteele09/go-task-client/users"
)

// Credentials is the token pair returned by a successful login.
type Credentials struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// Session is a point-in-time copy of the session state. Identity is only
// meaningful while Credentials is set; the store never holds one without the other.
type Session struct {
	Credentials *Credentials
	Identity    *users.User
}

// Authenticated reports whether the session holds credentials.
func (s Session) Authenticated() bool {
	return s.Credentials != nil
}

// Elevated reports whether the signed-in identity is a superuser.
func (s Session) Elevated() bool {
	return s.Identity != nil && s.Identity.IsSuperuser
}

// Keys under which the session is persisted. They are written and cleared together.
const (
	AccessTokenKey  = "access"
	RefreshTokenKey = "refresh"
	IdentityKey     = "user"
)
