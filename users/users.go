package users

import (
	"sort"
	"strconv"
)

// User is the backend's view of an account. The signed-in identity uses the same shape.
type User struct {
	ID          int64  `json:"id"`                     // Backend-assigned user ID
	Username    string `json:"username"`               // Unique username
	IsSuperuser bool   `json:"is_superuser,omitempty"` // Elevated privilege: cross-user assignment and visibility
}

func (u *User) String() string {
	if u == nil {
		return "<anonymous>"
	}
	if u.Username != "" {
		return u.Username
	}
	return "#" + strconv.FormatInt(u.ID, 10)
}

// Directory is the users list keyed by ID.
type Directory map[int64]User

// NewDirectory indexes a users list by ID. Later duplicates win.
func NewDirectory(list []User) Directory {
	d := make(Directory, len(list))
	for _, u := range list {
		d[u.ID] = u
	}
	return d
}

// Assignable returns the users a superuser can assign tasks to: everyone who is
// not a superuser, ordered by username.
func (d Directory) Assignable() []User {
	out := make([]User, 0, len(d))
	for _, u := range d {
		if !u.IsSuperuser {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Username < out[j].Username
	})
	return out
}

// Lookup returns the username for id, or the numeric form if unknown.
func (d Directory) Lookup(id int64) string {
	if u, ok := d[id]; ok {
		return u.Username
	}
	return "#" + strconv.FormatInt(id, 10)
}
