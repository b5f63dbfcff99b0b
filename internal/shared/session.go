package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager orchestrates cookie based sessions backed by Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

// Session holds per-request session data.
type Session struct {
	ID        string
	userID    int64
	issuedAt  time.Time
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionPayload struct {
	UserID   int64     `json:"user_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Load returns the session referenced by the request cookie, or a fresh
// anonymous session.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return sm.newSession(), nil
	}

	payload, err := sm.client.Get(ctx, sm.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sm.newSession(), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionStoreUnavailable, err)
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	return &Session{
		ID:       cookie.Value,
		userID:   stored.UserID,
		issuedAt: stored.IssuedAt,
	}, nil
}

// Commit persists the session and writes cookie headers as needed. Anonymous
// sessions that were never touched are not stored.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		pipe := sm.client.TxPipeline()
		pipe.Del(ctx, sm.redisKey(sess.ID))
		if sess.userID != 0 {
			pipe.SRem(ctx, sm.userKey(sess.userID), sess.ID)
		}
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}

	if !sess.dirty || sess.userID == 0 {
		return nil
	}

	data, err := json.Marshal(sessionPayload{UserID: sess.userID, IssuedAt: sess.issuedAt})
	if err != nil {
		return err
	}
	pipe := sm.client.TxPipeline()
	pipe.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl)
	pipe.SAdd(ctx, sm.userKey(sess.userID), sess.ID)
	pipe.Expire(ctx, sm.userKey(sess.userID), sm.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	sess.dirty = false
	sess.isNew = false

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(sm.ttl),
	})
	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// RevokeUser deletes every stored session of the user.
func (sm *SessionManager) RevokeUser(ctx context.Context, userID int64) error {
	ids, err := sm.client.SMembers(ctx, sm.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrSessionStoreUnavailable, err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sm.redisKey(id))
	}
	keys = append(keys, sm.userKey(userID))
	return sm.client.Del(ctx, keys...).Err()
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// SetUser associates the session with a user. A new session id is issued so
// a pre-login id can never be promoted to an authenticated one.
func (s *Session) SetUser(id int64) {
	s.ID = uuid.NewString()
	s.userID = id
	s.issuedAt = time.Now().UTC()
	s.dirty = true
}

// UserID returns the authenticated user id, zero for anonymous sessions.
func (s *Session) UserID() int64 {
	if s == nil {
		return 0
	}
	return s.userID
}

// User returns the authenticated user id as a string, empty when anonymous.
func (s *Session) User() string {
	if s == nil || s.userID == 0 {
		return ""
	}
	return strconv.FormatInt(s.userID, 10)
}

// IsNew reports whether the session has not been persisted yet.
func (s *Session) IsNew() bool { return s.isNew }

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:    uuid.NewString(),
		isNew: true,
	}
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}

func (sm *SessionManager) userKey(userID int64) string {
	return "session_user:" + strconv.FormatInt(userID, 10)
}
