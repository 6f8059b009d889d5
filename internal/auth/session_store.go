package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"invasivewatch/dashboard/internal/kvstore"
)

const (
	SessionLifetime = 24 * time.Hour
	// ExtendAfter is how long a session must have been in use before
	// activity re-issues it.
	ExtendAfter   = 30 * time.Minute
	CheckInterval = 5 * time.Minute
)

var (
	ErrStorageUnavailable = errors.New("session storage unavailable")
	ErrNoSession          = errors.New("no session")
	ErrSessionExpired     = errors.New("session expired")
)

const (
	keyUser      = "session.user"
	keyIssuedAt  = "session.issued_at"
	keyExpiresAt = "session.expires_at"
)

type SessionStoreConfig struct {
	// Namespace prefixes every key so several clients can share one medium.
	Namespace string
	Activity  *ActivityLog
	Logger    *slog.Logger
}

// SessionStore holds the single session of one client context. Operations
// are serialized so a Touch cannot re-write keys a concurrent Clear removed.
type SessionStore struct {
	medium   kvstore.Store
	prefix   string
	activity *ActivityLog
	log      *slog.Logger
	nowFunc  func() time.Time

	mu sync.Mutex
}

// NewSessionStore accepts a nil medium; such a store never persists and
// always restores to ErrNoSession.
func NewSessionStore(medium kvstore.Store, cfg SessionStoreConfig) *SessionStore {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := ""
	if cfg.Namespace != "" {
		prefix = cfg.Namespace + ":"
	}
	return &SessionStore{
		medium:   medium,
		prefix:   prefix,
		activity: cfg.Activity,
		log:      logger,
		nowFunc:  time.Now,
	}
}

// Save starts a new session for user. The returned session is valid even when
// the error is ErrStorageUnavailable; it just will not survive a restart.
func (s *SessionStore) Save(user User) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	sess := Session{
		User:      user,
		IssuedAt:  now,
		ExpiresAt: now.Add(SessionLifetime),
	}
	if err := s.write(sess); err != nil {
		s.log.Warn("session not persisted", "user_id", user.ID, "error", err)
		return sess, err
	}
	s.record(ActivityEntry{UserID: user.ID, Email: user.Email, Action: ActionLogin, At: now})
	return sess, nil
}

func (s *SessionStore) Restore() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreLocked()
}

func (s *SessionStore) restoreLocked() (Session, error) {
	if s.medium == nil {
		return Session{}, ErrNoSession
	}
	sess, err := s.read()
	if err != nil {
		_ = s.removeKeys()
		return Session{}, err
	}
	if sess.Expired(s.nowFunc()) {
		_ = s.removeKeys()
		return Session{}, ErrSessionExpired
	}
	return sess, nil
}

// Clear removes every session key. Clearing an empty store is not an error.
func (s *SessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var user User
	if s.medium != nil {
		if sess, err := s.read(); err == nil {
			user = sess.User
		}
	}
	if err := s.removeKeys(); err != nil {
		return err
	}
	s.record(ActivityEntry{UserID: user.ID, Email: user.Email, Action: ActionLogout, At: s.nowFunc()})
	return nil
}

// Touch records user activity. Once ExtendAfter has elapsed since the session
// was issued, it is re-issued with a fresh 24h lifetime.
func (s *SessionStore) Touch() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.restoreLocked()
	if err != nil {
		return Session{}, err
	}
	now := s.nowFunc()
	if now.Sub(sess.IssuedAt) < ExtendAfter {
		return sess, nil
	}
	sess.IssuedAt = now
	sess.ExpiresAt = now.Add(SessionLifetime)
	if err := s.write(sess); err != nil {
		return sess, err
	}
	return sess, nil
}

// Check is the periodic expiry check. An expired session is cleared and
// logged as a forced logout.
func (s *SessionStore) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.medium == nil {
		return ErrNoSession
	}
	sess, err := s.read()
	if err != nil {
		return err
	}
	now := s.nowFunc()
	if !sess.Expired(now) {
		return nil
	}
	if err := s.removeKeys(); err != nil {
		s.log.Warn("clear expired session", "user_id", sess.User.ID, "error", err)
	}
	s.record(ActivityEntry{UserID: sess.User.ID, Email: sess.User.Email, Action: ActionExpired, At: now})
	return ErrSessionExpired
}

func (s *SessionStore) write(sess Session) error {
	if s.medium == nil {
		return ErrStorageUnavailable
	}
	userJSON, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("%w: encode user: %v", ErrStorageUnavailable, err)
	}
	fields := []struct{ key, value string }{
		{keyUser, string(userJSON)},
		{keyIssuedAt, sess.IssuedAt.UTC().Format(time.RFC3339Nano)},
		{keyExpiresAt, sess.ExpiresAt.UTC().Format(time.RFC3339Nano)},
	}
	for _, f := range fields {
		if err := s.medium.Set(s.prefix+f.key, f.value); err != nil {
			return fmt.Errorf("%w: write %s: %v", ErrStorageUnavailable, f.key, err)
		}
	}
	for _, f := range fields {
		got, ok, err := s.medium.Get(s.prefix + f.key)
		if err != nil || !ok || got != f.value {
			_ = s.removeKeys()
			return fmt.Errorf("%w: read-back mismatch for %s", ErrStorageUnavailable, f.key)
		}
	}
	return nil
}

func (s *SessionStore) read() (Session, error) {
	rawUser, ok, err := s.medium.Get(s.prefix + keyUser)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if !ok {
		return Session{}, ErrNoSession
	}
	rawIssued, _, err := s.medium.Get(s.prefix + keyIssuedAt)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	rawExpires, _, err := s.medium.Get(s.prefix + keyExpiresAt)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(rawUser), &sess.User); err != nil {
		return Session{}, fmt.Errorf("%w: decode user: %v", ErrNoSession, err)
	}
	if sess.User.ID == "" || !sess.User.Role.Valid() {
		return Session{}, fmt.Errorf("%w: malformed user", ErrNoSession)
	}
	if sess.IssuedAt, err = time.Parse(time.RFC3339Nano, rawIssued); err != nil {
		return Session{}, fmt.Errorf("%w: decode issued_at: %v", ErrNoSession, err)
	}
	if sess.ExpiresAt, err = time.Parse(time.RFC3339Nano, rawExpires); err != nil {
		return Session{}, fmt.Errorf("%w: decode expires_at: %v", ErrNoSession, err)
	}
	return sess, nil
}

func (s *SessionStore) removeKeys() error {
	if s.medium == nil {
		return nil
	}
	var firstErr error
	for _, k := range []string{keyUser, keyIssuedAt, keyExpiresAt} {
		if err := s.medium.Remove(s.prefix + k); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: remove %s: %v", ErrStorageUnavailable, k, err)
		}
	}
	return firstErr
}

func (s *SessionStore) record(e ActivityEntry) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Append(e); err != nil {
		s.log.Warn("append activity log", "action", e.Action, "error", err)
	}
}
