package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/metflix/server/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	defaultOtpPrefix = "otp"

	fieldCodeHash  = "code_hash"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
)

// consumeScript deletes KEYS[1] only while its code hash equals ARGV[1]
var consumeScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "code_hash") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisOtpRepo struct {
	client *redis.Client
	prefix string
}

// NewRedisOtpRepo creates an OtpRepo that relies on Redis key expiry
func NewRedisOtpRepo(client *redis.Client, keyPrefix string) OtpRepo {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultOtpPrefix
	}
	return &redisOtpRepo{client: client, prefix: prefix}
}

func (r *redisOtpRepo) key(email string) string {
	return r.prefix + ":" + email
}

// Save replaces the hash for the email and sets its TTL in one transaction
func (r *redisOtpRepo) Save(ctx context.Context, rec model.OtpRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	key := r.key(rec.Email)

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldCodeHash:  rec.CodeHash,
		fieldCreatedAt: strconv.FormatInt(rec.CreatedAt.Unix(), 10),
		fieldExpiresAt: strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10),
	})
	pipe.PExpire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store otp: %w", err)
	}
	return nil
}

// Get returns the live record; an expired key is simply absent
func (r *redisOtpRepo) Get(ctx context.Context, email string) (model.OtpRecord, error) {
	values, err := r.client.HGetAll(ctx, r.key(email)).Result()
	if err != nil {
		return model.OtpRecord{}, fmt.Errorf("redis hgetall otp: %w", err)
	}
	hash := values[fieldCodeHash]
	if hash == "" {
		return model.OtpRecord{}, ErrOtpNotFound
	}

	createdAt, err := strconv.ParseInt(values[fieldCreatedAt], 10, 64)
	if err != nil {
		return model.OtpRecord{}, fmt.Errorf("parse created_at: %w", err)
	}
	expiresAt, err := strconv.ParseInt(values[fieldExpiresAt], 10, 64)
	if err != nil {
		return model.OtpRecord{}, fmt.Errorf("parse expires_at: %w", err)
	}

	return model.OtpRecord{
		Email:     email,
		CodeHash:  hash,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
		ExpiresAt: time.UnixMilli(expiresAt).UTC(),
	}, nil
}

// Delete removes the record, enforcing single use
func (r *redisOtpRepo) Delete(ctx context.Context, email string) error {
	if err := r.client.Del(ctx, r.key(email)).Err(); err != nil {
		return fmt.Errorf("redis delete otp: %w", err)
	}
	return nil
}

// Consume deletes the record atomically if it still holds codeHash
func (r *redisOtpRepo) Consume(ctx context.Context, email, codeHash string) (bool, error) {
	n, err := consumeScript.Run(ctx, r.client, []string{r.key(email)}, codeHash).Int()
	if err != nil {
		return false, fmt.Errorf("redis consume otp: %w", err)
	}
	return n == 1, nil
}
