package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"impact-lending-backend/internal/pkg/apperrors"
	"impact-lending-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	IdempotencyHeader       = "Idempotency-Key"
	idempotencyReplayHeader = "Idempotent-Replayed"
	idempotencyPrefix       = "idem:"
	maxIdempotencyKeyLen    = 128
	// How long the in-progress marker lives if the handler never finishes.
	provisionalLockTTL = 90 * time.Second
)

type idempEntry struct {
	InProgress bool      `json:"in_progress"`
	Code       int       `json:"code"`
	Body       []byte    `json:"body"`
	BodySHA256 string    `json:"body_sha256"`
	CreatedAt  time.Time `json:"created_at"`
}

// Idempotency replays the stored response of a POST that carries a previously seen Idempotency-Key.
// The key is scoped to method, route and caller. 5xx outcomes are not stored so the client may retry.
// Requests without the header, or with no Redis configured, pass through.
func Idempotency(rdb *redis.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil || c.Method() != fiber.MethodPost {
			return c.Next()
		}
		reqKey := strings.TrimSpace(c.Get(IdempotencyHeader))
		if reqKey == "" {
			return c.Next()
		}
		if len(reqKey) > maxIdempotencyKeyLen {
			return response.Fail(c, apperrors.ValidationFailed("Idempotency-Key is too long"))
		}

		userID := ""
		if id := GetIdentity(c); id != nil {
			userID = id.UserID
		}
		key := idempotencyPrefix + hashParts(c.Method(), c.Route().Path, userID, reqKey)
		bodyHash := hashParts(string(c.Body()))

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		ok, err := provisionalSet(ctx, rdb, key, idempEntry{InProgress: true, BodySHA256: bodyHash, CreatedAt: time.Now().UTC()})
		if err != nil {
			log.Error().Err(err).Str("trace_id", GetTraceID(c)).Msg("idempotency store unavailable")
			return response.Error(c, "Idempotency store unavailable", fiber.StatusServiceUnavailable)
		}
		if !ok {
			cur, err := loadEntry(ctx, rdb, key)
			if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("idempotency entry load failed")
			}
			if cur.BodySHA256 != "" && cur.BodySHA256 != bodyHash {
				return response.Fail(c, apperrors.Conflict("Idempotency-Key reused with a different request body"))
			}
			if !cur.InProgress && cur.Code != 0 && len(cur.Body) > 0 {
				c.Set(idempotencyReplayHeader, "true")
				c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
				return c.Status(cur.Code).Send(cur.Body)
			}
			return response.Fail(c, apperrors.Conflict("Request with this Idempotency-Key is already in progress"))
		}

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = rdb.Del(context.Background(), key).Err()
				return herr
			}
		}

		code := c.Response().StatusCode()
		if code >= 500 {
			_ = rdb.Del(context.Background(), key).Err()
			return nil
		}
		final := idempEntry{
			Code:       code,
			Body:       append([]byte(nil), c.Response().Body()...),
			BodySHA256: bodyHash,
			CreatedAt:  time.Now().UTC(),
		}
		if err := saveFinal(context.Background(), rdb, key, final, ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("idempotency entry save failed")
		}
		return nil
	}
}

func hashParts(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

func provisionalSet(ctx context.Context, rdb *redis.Client, key string, e idempEntry) (bool, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	return rdb.SetNX(ctx, key, b, provisionalLockTTL).Result()
}

func loadEntry(ctx context.Context, rdb *redis.Client, key string) (idempEntry, error) {
	var e idempEntry
	b, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return e, err
	}
	err = json.Unmarshal(b, &e)
	return e, err
}

func saveFinal(ctx context.Context, rdb *redis.Client, key string, e idempEntry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, ttl).Err()
}
