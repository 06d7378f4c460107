package fakesessionrepo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-task-client/internal/errors"
	"github.com/jrsteele09/go-task-client/sessions"
	"github.com/jrsteele09/go-task-client/token/jwt"
	"github.com/jrsteele09/go-task-client/users"
	fakeuserrepo "github.com/jrsteele09/go-task-client/users/repofake"
)

var _ sessions.AuthRepo = (*FakeAuthRepo)(nil)

// SigningKey is the HS256 key the fake backend signs its tokens with.
var SigningKey = []byte("fake-backend-signing-key")

type account struct {
	user     users.User
	password string
}

// FakeAuthRepo is an in-memory backend that issues real JWTs, so the session
// store can decode them exactly as it would the server's.
type FakeAuthRepo struct {
	*fakeuserrepo.FakeUserRepo

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// ProfileHook, when set, runs at the start of every Profile call outside
	// the repo lock. Tests use it to hold a request in flight.
	ProfileHook func(ctx context.Context)

	accounts      map[string]*account
	refreshTokens map[string]int64
	rejected      map[string]bool
	profileErr    error
	nextID        int64
	profileCalls  int
	refreshCalls  int
	lock          sync.RWMutex
}

func NewFakeAuthRepo() *FakeAuthRepo {
	return &FakeAuthRepo{
		FakeUserRepo:  fakeuserrepo.NewFakeUserRepo(),
		AccessTTL:     5 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]int64),
		rejected:      make(map[string]bool),
		nextID:        1,
	}
}

// AddUser creates an account that can sign in with password.
func (ar *FakeAuthRepo) AddUser(username, password string, superuser bool) users.User {
	ar.lock.Lock()
	defer ar.lock.Unlock()
	return ar.addLocked(username, password, superuser)
}

func (ar *FakeAuthRepo) addLocked(username, password string, superuser bool) users.User {
	u := users.User{ID: ar.nextID, Username: username, IsSuperuser: superuser}
	ar.nextID++
	ar.accounts[username] = &account{user: u, password: password}
	ar.FakeUserRepo.Add(u)
	return u
}

// RejectAccessToken makes Profile answer 401 for token regardless of its expiry.
func (ar *FakeAuthRepo) RejectAccessToken(token string) {
	ar.lock.Lock()
	defer ar.lock.Unlock()
	ar.rejected[token] = true
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (ar *FakeAuthRepo) RevokeRefreshTokens() {
	ar.lock.Lock()
	defer ar.lock.Unlock()
	ar.refreshTokens = make(map[string]int64)
}

// FailProfileWith makes Profile return err for tokens it would otherwise accept.
func (ar *FakeAuthRepo) FailProfileWith(err error) {
	ar.lock.Lock()
	defer ar.lock.Unlock()
	ar.profileErr = err
}

func (ar *FakeAuthRepo) ProfileCalls() int {
	ar.lock.RLock()
	defer ar.lock.RUnlock()
	return ar.profileCalls
}

func (ar *FakeAuthRepo) RefreshCalls() int {
	ar.lock.RLock()
	defer ar.lock.RUnlock()
	return ar.refreshCalls
}

func (ar *FakeAuthRepo) Login(_ context.Context, username, password string) (*sessions.Credentials, error) {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	acc, ok := ar.accounts[username]
	if !ok || acc.password != password {
		return nil, errors.NewAPIError(401, []byte(`{"detail":"No active account found with the given credentials"}`)).
			WithKind(errors.ErrInvalidCredentials)
	}

	access, err := jwt.Sign(acc.user, "access", ar.AccessTTL, SigningKey)
	if err != nil {
		return nil, err
	}
	refresh, err := jwt.Sign(acc.user, "refresh", ar.RefreshTTL, SigningKey)
	if err != nil {
		return nil, err
	}
	ar.refreshTokens[refresh] = acc.user.ID
	return &sessions.Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

func (ar *FakeAuthRepo) Register(_ context.Context, username, password string) (string, error) {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if strings.TrimSpace(username) == "" || password == "" {
		return "", errors.NewAPIError(400, []byte(`{"error":"Please provide both username and password"}`))
	}
	if _, exists := ar.accounts[username]; exists {
		return "", errors.NewAPIError(400, []byte(`{"error":"Username already exists"}`))
	}
	ar.addLocked(username, password, false)
	return "User created successfully", nil
}

func (ar *FakeAuthRepo) Profile(ctx context.Context, accessToken string) (*users.User, error) {
	if hook := ar.profileHook(); hook != nil {
		hook(ctx)
	}

	ar.lock.Lock()
	defer ar.lock.Unlock()
	ar.profileCalls++

	if ar.rejected[accessToken] || jwt.IsExpired(accessToken, jwt.NowTimeFunc()) {
		return nil, errors.NewAPIError(401, []byte(`{"detail":"Given token not valid for any token type","code":"token_not_valid"}`))
	}
	if ar.profileErr != nil {
		return nil, ar.profileErr
	}
	claims, err := jwt.Decode(accessToken)
	if err != nil {
		return nil, errors.NewAPIError(401, []byte(`{"detail":"Given token not valid for any token type"}`))
	}
	for _, acc := range ar.accounts {
		if acc.user.ID == claims.UserID {
			u := acc.user
			return &u, nil
		}
	}
	return nil, errors.NewAPIError(404, []byte(`{"detail":"Not found."}`))
}

func (ar *FakeAuthRepo) RefreshAccessToken(_ context.Context, refreshToken string) (string, error) {
	ar.lock.Lock()
	defer ar.lock.Unlock()
	ar.refreshCalls++

	userID, ok := ar.refreshTokens[refreshToken]
	if !ok || jwt.IsExpired(refreshToken, jwt.NowTimeFunc()) {
		return "", errors.NewAPIError(401, []byte(`{"detail":"Token is invalid or expired","code":"token_not_valid"}`))
	}
	for _, acc := range ar.accounts {
		if acc.user.ID == userID {
			return jwt.Sign(acc.user, "access", ar.AccessTTL, SigningKey)
		}
	}
	return "", errors.NewAPIError(401, []byte(`{"detail":"User not found","code":"user_not_found"}`))
}

func (ar *FakeAuthRepo) profileHook() func(context.Context) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()
	return ar.ProfileHook
}
