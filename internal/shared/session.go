package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// userField is the hash field holding the signed-in user id. Regular values
// never start with an underscore.
const userField = "_uid"

// SessionManager keeps sessions in Redis hashes under session:<id>. The
// cookie carries the id plus an HMAC so forged ids never reach Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session holds per-request session data. Changes are buffered until
// SessionManager.Commit.
type Session struct {
	ID        string
	values    map[string]string
	userID    string
	previous  string
	stored    bool
	dirty     bool
	destroyed bool
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load returns the session named by the request cookie. A missing, forged or
// expired cookie yields a fresh unsaved session.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		return sm.fresh(), nil
	}
	id, ok := sm.verify(cookie.Value)
	if !ok {
		return sm.fresh(), nil
	}

	fields, err := sm.client.HGetAll(ctx, sm.key(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return sm.fresh(), nil
	}

	sess := &Session{ID: id, values: make(map[string]string, len(fields)), stored: true}
	for k, v := range fields {
		if k == userField {
			sess.userID = v
			continue
		}
		sess.values[k] = v
	}
	return sess, nil
}

// Commit writes pending changes to Redis and sets or clears the cookie.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}

	var stale []string
	if sess.previous != "" {
		stale = append(stale, sm.key(sess.previous))
	}
	if sess.destroyed {
		stale = append(stale, sm.key(sess.ID))
	}
	if len(stale) > 0 {
		if err := sm.client.Del(ctx, stale...).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		sess.previous = ""
	}

	if sess.destroyed {
		http.SetCookie(w, sm.cookie("", -1))
		return nil
	}
	if !sess.dirty {
		return nil
	}

	fields := make(map[string]any, len(sess.values)+1)
	for k, v := range sess.values {
		fields[k] = v
	}
	fields[userField] = sess.userID

	key := sm.key(sess.ID)
	_, err := sm.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, sm.ttl)
		return nil
	})
	if err != nil {
		return err
	}
	sess.dirty = false
	sess.stored = true

	http.SetCookie(w, sm.cookie(sm.sign(sess.ID), int(sm.ttl.Seconds())))
	return nil
}

// Renew moves the session to a fresh id, e.g. after sign-in. The old key is
// removed on commit.
func (sm *SessionManager) Renew(sess *Session) {
	if sess == nil {
		return
	}
	if sess.stored {
		sess.previous = sess.ID
	}
	sess.ID = uuid.NewString()
	sess.stored = false
	sess.dirty = true
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess != nil {
		sess.destroyed = true
	}
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Ping checks the redis connection backing the sessions.
func (sm *SessionManager) Ping(ctx context.Context) error {
	return sm.client.Ping(ctx).Err()
}

func (sm *SessionManager) fresh() *Session {
	return &Session{ID: uuid.NewString(), values: make(map[string]string)}
}

func (sm *SessionManager) key(id string) string {
	return "session:" + id
}

func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (sm *SessionManager) mac(id string) []byte {
	h := hmac.New(sha256.New, sm.secret)
	_, _ = h.Write([]byte(id))
	return h.Sum(nil)
}

func (sm *SessionManager) sign(id string) string {
	return id + "." + base64.RawURLEncoding.EncodeToString(sm.mac(id))
}

func (sm *SessionManager) verify(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	return id, hmac.Equal(got, sm.mac(id))
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// SetUser associates the session with a user ID.
func (s *Session) SetUser(id string) {
	s.userID = id
	s.dirty = true
}

// User returns the current user ID.
func (s *Session) User() string {
	return s.userID
}
