package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	attemptPrefix = "validation:attempt:"

	AttemptPending   = "pending"
	AttemptFailed    = "failed"
	AttemptCompleted = "completed"
)

// Attempt is the stored state of one validation attempt.
type Attempt struct {
	Status    string    `json:"status"`
	TxHash    string    `json:"txHash,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AttemptStore keeps validation attempts in Redis. A pending entry expires after PendingTTL so a
// crashed worker cannot block the milestone forever; finished entries are kept for DoneTTL.
type AttemptStore struct {
	Rdb        *redis.Client
	PendingTTL time.Duration
	DoneTTL    time.Duration
}

func NewAttemptStore(rdb *redis.Client, ledgerTimeout time.Duration) *AttemptStore {
	return &AttemptStore{Rdb: rdb, PendingTTL: 2*ledgerTimeout + 30*time.Second, DoneTTL: 24 * time.Hour}
}

func (s *AttemptStore) Begin(ctx context.Context, key string) (bool, error) {
	b, err := json.Marshal(Attempt{Status: AttemptPending, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return false, err
	}
	ok, err := s.Rdb.SetNX(ctx, attemptPrefix+key, b, s.PendingTTL).Result()
	if err != nil || ok {
		return ok, err
	}
	cur, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if cur != nil && cur.Status == AttemptPending {
		return false, nil
	}
	// Finished attempts may be retried; the milestone claim decides whether the retry can proceed.
	return true, s.Rdb.Set(ctx, attemptPrefix+key, b, s.PendingTTL).Err()
}

func (s *AttemptStore) Fail(ctx context.Context, key, reason string) error {
	return s.put(ctx, key, Attempt{Status: AttemptFailed, Reason: reason, UpdatedAt: time.Now().UTC()})
}

func (s *AttemptStore) Complete(ctx context.Context, key, txHash string) error {
	return s.put(ctx, key, Attempt{Status: AttemptCompleted, TxHash: txHash, UpdatedAt: time.Now().UTC()})
}

// Get returns the attempt or nil when none is stored.
func (s *AttemptStore) Get(ctx context.Context, key string) (*Attempt, error) {
	b, err := s.Rdb.Get(ctx, attemptPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var a Attempt
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AttemptStore) put(ctx context.Context, key string, a Attempt) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.Rdb.Set(ctx, attemptPrefix+key, b, s.DoneTTL).Err()
}
