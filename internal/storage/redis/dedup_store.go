package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"solana-autotrader/internal/dedup"
)

// DedupKeyPrefix namespaces the per-user sorted sets.
// Format: autotrader:dedup:{userID}
const DedupKeyPrefix = "autotrader:dedup"

// DedupStore persists dedup records as one sorted set per user:
// member is the address hash, score the insertion time in ms.
type DedupStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDedupStore creates a store. ttl bounds how long an idle user's set
// survives; it should match the cache TTL.
func NewDedupStore(client *redis.Client, ttl time.Duration) *DedupStore {
	if ttl <= 0 {
		ttl = dedup.DefaultTTL
	}
	return &DedupStore{client: client, ttl: ttl}
}

// Compile-time interface check.
var _ dedup.Persister = (*DedupStore)(nil)

func (s *DedupStore) key(userID string) string {
	return fmt.Sprintf("%s:%s", DedupKeyPrefix, userID)
}

// Load returns records inserted at or after notBeforeMs and drops older ones.
func (s *DedupStore) Load(ctx context.Context, userID string, notBeforeMs int64) (map[string]int64, error) {
	key := s.key(userID)

	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(notBeforeMs, 10)).Err(); err != nil {
		return nil, fmt.Errorf("trim expired records: %w", err)
	}

	members, err := s.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(notBeforeMs, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	out := make(map[string]int64, len(members))
	for _, m := range members {
		hash, ok := m.Member.(string)
		if !ok {
			continue
		}
		out[hash] = int64(m.Score)
	}
	return out, nil
}

// Save records one hash and refreshes the set expiry.
func (s *DedupStore) Save(ctx context.Context, userID, hash string, tsMs int64) error {
	key := s.key(userID)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(tsMs), Member: hash})
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// Remove deletes evicted hashes.
func (s *DedupStore) Remove(ctx context.Context, userID string, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	members := make([]interface{}, len(hashes))
	for i, h := range hashes {
		members[i] = h
	}
	if err := s.client.ZRem(ctx, s.key(userID), members...).Err(); err != nil {
		return fmt.Errorf("remove records: %w", err)
	}
	return nil
}

// Clear deletes all of a user's records.
func (s *DedupStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}
