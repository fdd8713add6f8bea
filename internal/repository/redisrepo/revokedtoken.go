// Package redisrepo keeps revoked tokens in redis.
//
// Every revoked jti is a separate key (so lookup is a single EXISTS) and its
// expiration time is tracked in a sorted set, which is what the sweep walks.
// Keys carry no TTL: a record goes away only by sweep.
package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/models"
)

const (
	// Index is outside of jti namespace, so no jti may collide with it
	defaultJTIPrefix   = "netcraft:revoked:jti:"
	defaultExpiryIndex = "netcraft:revoked-index:expires_at"
)

// Revoke atomically: index first, so failed ZADD leaves nothing behind.
//
// KEYS[1] = jti key
// KEYS[2] = expiry index
// ARGV[1] = jti
// ARGV[2] = expires_at score (unix micro)
// ARGV[3] = record
//
// Returns 1 when created, 0 when jti already revoked
var revokeLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
redis.call('SET', KEYS[1], ARGV[3])
return 1
`)

type RevokedTokenRepo struct {
	client redis.UniversalClient
	prefix string
	index  string
}

func NewRevokedTokenRepo(client redis.UniversalClient) *RevokedTokenRepo {
	return &RevokedTokenRepo{client: client, prefix: defaultJTIPrefix, index: defaultExpiryIndex}
}

type revokedRecord struct {
	TokenType string    `json:"token_type"`
	UserID    string    `json:"user_id"`
	RevokedAt time.Time `json:"revoked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r *RevokedTokenRepo) key(jti string) string {
	return r.prefix + jti
}

func (r *RevokedTokenRepo) Create(ctx context.Context, t models.RevokedToken) error {
	value, err := json.Marshal(revokedRecord{
		TokenType: t.TokenType,
		UserID:    t.UserID.String(),
		RevokedAt: t.RevokedAt,
		ExpiresAt: t.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	created, err := revokeLua.Run(ctx, r.client,
		[]string{r.key(t.JTI), r.index},
		t.JTI, strconv.FormatInt(t.ExpiresAt.UnixMicro(), 10), value,
	).Int()
	switch {
	case err != nil:
		return fmt.Errorf("redis error: %w", err)
	case created == 0:
		return fmt.Errorf("repo error: %w", apperrors.ErrTokenAlreadyRevoked)
	}

	return nil
}

func (r *RevokedTokenRepo) Exists(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n > 0, nil
}

func (r *RevokedTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	index := r.index

	// Exclusive upper bound: record expiring exactly at 'before' is kept
	jtis, err := r.client.ZRangeByScore(ctx, index, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	if len(jtis) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(jtis))
	members := make([]any, 0, len(jtis))
	for _, jti := range jtis {
		keys = append(keys, r.key(jti))
		members = append(members, jti)
	}

	var removed *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		removed = pipe.ZRem(ctx, index, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}

	return removed.Val(), nil
}
