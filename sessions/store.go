package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-task-client/internal/errors"
	"github.com/jrsteele09/go-task-client/storage"
	"github.com/jrsteele09/go-task-client/token/jwt"
	"github.com/jrsteele09/go-task-client/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Store owns the session: the credential pair, the identity derived from it and,
// for superusers, the users directory. Every change to credentials or identity
// is mirrored to kv inside the same critical section, so memory and storage
// never disagree about whether a session exists.
//
// generation increases on every sign-in, restore and sign-out. Calls that span
// network round trips capture it at the start and drop their result if it has
// moved, so a sign-out always wins over an in-flight refresh.
type Store struct {
	repo AuthRepo
	kv   storage.Repo

	mu         sync.RWMutex
	session    Session
	directory  users.Directory
	generation uint64
	err        error
	loading    int

	refreshGroup singleflight.Group
}

var _ oauth2.TokenSource = (*Store)(nil)

func NewStore(repo AuthRepo, kv storage.Repo) *Store {
	return &Store{
		repo: repo,
		kv:   kv,
	}
}

// Restore loads a persisted session. A missing session is not an error.
// Expired tokens are restored as-is; RefreshIdentity decides what to do with them.
func (s *Store) Restore() error {
	access, err := s.kv.Get(AccessTokenKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "restoring access token")
	}

	refresh, err := s.kv.Get(RefreshTokenKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return errors.Wrapf(err, "restoring refresh token")
	}

	var identity *users.User
	if raw, err := s.kv.Get(IdentityKey); err == nil {
		var u users.User
		if jsonErr := json.Unmarshal([]byte(raw), &u); jsonErr == nil {
			identity = &u
		} else {
			log.Warn().Err(jsonErr).Msg("discarding unreadable persisted identity")
		}
	}
	if identity == nil {
		if claims, err := jwt.Decode(access); err == nil {
			identity = claims.Identity()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.session = Session{
		Credentials: &Credentials{AccessToken: access, RefreshToken: refresh},
		Identity:    identity,
	}
	s.directory = nil
	log.Debug().Stringer("identity", identity).Msg("session restored")
	return nil
}

// SignIn exchanges username and password for a token pair. Identity is decoded
// from the access token, with no profile round trip. On failure the stored
// session is left exactly as it was.
func (s *Store) SignIn(ctx context.Context, username, password string) error {
	s.begin()
	creds, err := s.repo.Login(ctx, username, password)
	if err != nil {
		return s.fail(err)
	}

	claims, err := jwt.Decode(creds.AccessToken)
	if err != nil {
		return s.fail(fmt.Errorf("%w: %w", errors.ErrInvalidToken, err))
	}
	identity := claims.Identity()
	if identity.Username == "" {
		identity.Username = username
	}

	s.mu.Lock()
	s.generation++
	s.session = Session{
		Credentials: &Credentials{AccessToken: creds.AccessToken, RefreshToken: creds.RefreshToken},
		Identity:    identity,
	}
	s.directory = nil
	s.persistLocked()
	s.loading--
	s.mu.Unlock()

	log.Info().Str("username", identity.Username).Msg("signed in")
	return nil
}

// RefreshIdentity replaces the decoded identity with the backend's profile.
//
// Without credentials, or with an expired access token, the session is signed
// out and ErrUnauthenticated returned. A 401 from the profile endpoint triggers
// exactly one token refresh and, if that succeeds, one retry. A failed refresh,
// or a retry rejected with 401, signs the session out. Other failures leave the session untouched.
func (s *Store) RefreshIdentity(ctx context.Context) (*users.User, error) {
	s.begin()

	s.mu.RLock()
	gen := s.generation
	var creds Credentials
	held := s.session.Credentials != nil
	if held {
		creds = *s.session.Credentials
	}
	s.mu.RUnlock()

	if !held || jwt.IsExpired(creds.AccessToken, NowTimeFunc()) {
		s.signOutIf(gen)
		return nil, s.fail(errors.ErrUnauthenticated)
	}

	profile, err := s.repo.Profile(ctx, creds.AccessToken)
	if errors.Is(err, errors.ErrUnauthorized) {
		log.Debug().Msg("access token rejected, refreshing")

		access, refreshErr := s.refreshAccessToken(ctx, creds.RefreshToken)
		if refreshErr != nil {
			s.signOutIf(gen)
			return nil, s.fail(fmt.Errorf("%w: %w", errors.ErrInvalidRefreshToken, refreshErr))
		}
		if !s.commitAccessToken(gen, access) {
			return nil, s.fail(errors.ErrUnauthenticated)
		}
		profile, err = s.repo.Profile(ctx, access)
		if errors.Is(err, errors.ErrUnauthorized) {
			s.signOutIf(gen)
		}
	}
	if err != nil {
		return nil, s.fail(err)
	}

	if !s.commitIdentity(gen, profile) {
		return nil, s.fail(errors.ErrUnauthenticated)
	}
	s.done()

	identity := *profile
	return &identity, nil
}

// SignOut clears credentials, identity and the users directory, in memory and
// in storage. Memory is always cleared; the returned error only reports a
// storage failure.
func (s *Store) SignOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signOutLocked()
}

// Register creates an account. It does not sign in.
func (s *Store) Register(ctx context.Context, username, password string) (string, error) {
	s.begin()
	msg, err := s.repo.Register(ctx, username, password)
	if err != nil {
		return "", s.fail(err)
	}
	s.done()
	log.Info().Str("username", username).Msg("registered")
	return msg, nil
}

// FetchUsers loads the users directory. Only superusers may list users; for
// anyone else it fails with ErrNotPermitted without a network call.
func (s *Store) FetchUsers(ctx context.Context) ([]users.User, error) {
	s.mu.RLock()
	gen := s.generation
	elevated := s.session.Elevated()
	s.mu.RUnlock()

	if !elevated {
		s.mu.Lock()
		s.err = errors.ErrNotPermitted
		s.mu.Unlock()
		return nil, errors.ErrNotPermitted
	}

	s.begin()
	list, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	if s.generation == gen {
		s.directory = users.NewDirectory(list)
	}
	s.loading--
	s.mu.Unlock()
	return list, nil
}

// Users returns a copy of the users directory.
func (s *Store) Users() users.Directory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(users.Directory, len(s.directory))
	for id, u := range s.directory {
		out[id] = u
	}
	return out
}

// AssignableUsers lists the users a superuser can assign tasks to.
func (s *Store) AssignableUsers() []users.User {
	return s.Users().Assignable()
}

// Snapshot returns a copy of the session.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out Session
	if s.session.Credentials != nil {
		c := *s.session.Credentials
		out.Credentials = &c
	}
	if s.session.Identity != nil {
		u := *s.session.Identity
		out.Identity = &u
	}
	return out
}

// Token implements oauth2.TokenSource over the current credentials, so the REST
// client can attach the bearer header without knowing about the session.
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	creds := s.session.Credentials
	s.mu.RUnlock()

	if creds == nil {
		return nil, errors.ErrUnauthenticated
	}
	tok := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
	}
	if exp, ok := jwt.Expiry(creds.AccessToken); ok {
		tok.Expiry = exp
	}
	return tok, nil
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

// refreshAccessToken collapses concurrent refreshes of the same refresh token
// into one backend call.
func (s *Store) refreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	v, err, shared := s.refreshGroup.Do(refreshToken, func() (interface{}, error) {
		return s.repo.RefreshAccessToken(ctx, refreshToken)
	})
	if err != nil {
		return "", err
	}
	log.Debug().Bool("shared", shared).Msg("access token refreshed")
	return v.(string), nil
}

func (s *Store) commitAccessToken(gen uint64, access string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.session.Credentials == nil {
		return false
	}
	s.session.Credentials = &Credentials{
		AccessToken:  access,
		RefreshToken: s.session.Credentials.RefreshToken,
	}
	s.persistLocked()
	return true
}

func (s *Store) commitIdentity(gen uint64, profile *users.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.session.Credentials == nil {
		return false
	}
	identity := *profile
	s.session.Identity = &identity
	s.persistLocked()
	return true
}

func (s *Store) signOutIf(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}
	_ = s.signOutLocked()
}

func (s *Store) signOutLocked() error {
	wasSignedIn := s.session.Credentials != nil
	s.generation++
	s.session = Session{}
	s.directory = nil

	if err := s.kv.Delete(AccessTokenKey, RefreshTokenKey, IdentityKey); err != nil {
		log.Error().Err(err).Msg("failed to clear persisted session")
		return errors.Wrapf(err, "clearing persisted session")
	}
	if wasSignedIn {
		log.Info().Msg("signed out")
	}
	return nil
}

// persistLocked mirrors the session into kv. Storage failures are logged, not
// returned: the in-memory session stays authoritative for this process.
func (s *Store) persistLocked() {
	creds := s.session.Credentials
	if creds == nil {
		return
	}
	if err := s.kv.Set(AccessTokenKey, creds.AccessToken); err != nil {
		log.Warn().Err(err).Msg("failed to persist access token")
	}
	if err := s.kv.Set(RefreshTokenKey, creds.RefreshToken); err != nil {
		log.Warn().Err(err).Msg("failed to persist refresh token")
	}
	if s.session.Identity != nil {
		raw, err := json.Marshal(s.session.Identity)
		if err == nil {
			err = s.kv.Set(IdentityKey, string(raw))
		}
		if err != nil {
			log.Warn().Err(err).Msg("failed to persist identity")
		}
	}
}

func (s *Store) begin() {
	s.mu.Lock()
	s.err = nil
	s.loading++
	s.mu.Unlock()
}

func (s *Store) done() {
	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.err = err
	s.loading--
	s.mu.Unlock()
	log.Debug().Err(err).Msg("session operation failed")
	return err
}
