package middleware

import (
	"context"
	"encoding/json"
	"time"

	"impact-lending-backend/internal/auth"

	"github.com/redis/go-redis/v9"
)

// SessionRedisPrefix is the Redis key prefix for token sessions, keyed by the token's jti.
const SessionRedisPrefix = "session:"

type sessionRecord struct {
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionStore tracks issued bearer tokens in Redis so they can be revoked before expiry.
// A nil store (no Redis) accepts every valid token.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	if rdb == nil {
		return nil
	}
	return &SessionStore{rdb: rdb}
}

// Save records the session until the token expires.
func (s *SessionStore) Save(ctx context.Context, id *auth.Identity) error {
	if s == nil || id == nil || id.SessionID == "" {
		return nil
	}
	ttl := time.Until(id.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(sessionRecord{UserID: id.UserID, Role: id.Role, Email: id.Email, CreatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, SessionRedisPrefix+id.SessionID, b, ttl).Err()
}

// Active reports whether the session still exists.
func (s *SessionStore) Active(ctx context.Context, sessionID string) (bool, error) {
	if s == nil {
		return true, nil
	}
	n, err := s.rdb.Exists(ctx, SessionRedisPrefix+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Revoke deletes the session; the token is rejected from then on.
func (s *SessionStore) Revoke(ctx context.Context, sessionID string) error {
	if s == nil || sessionID == "" {
		return nil
	}
	return s.rdb.Del(ctx, SessionRedisPrefix+sessionID).Err()
}
