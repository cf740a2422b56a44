package token

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the credential in one Redis hash. A single HSET writes every
// field, so readers never observe a half-updated pair.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

// NewRedisStore returns a store using the hash at key.
func NewRedisStore(client redis.Cmdable, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Load reads the hash.
func (s *RedisStore) Load(ctx context.Context) (Credential, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return Credential{}, fmt.Errorf("failed to read credential from redis: %w", err)
	}
	if fields["refresh_token"] == "" {
		return Credential{}, ErrNotFound
	}

	cred := Credential{
		AccessToken:  fields["access_token"],
		RefreshToken: fields["refresh_token"],
		UserID:       fields["user_id"],
	}
	if raw := fields["expires_at"]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			cred.ExpiresAt = t
		}
	}
	return cred, nil
}

// Save overwrites the hash.
func (s *RedisStore) Save(ctx context.Context, cred Credential) error {
	expires := ""
	if !cred.ExpiresAt.IsZero() {
		expires = cred.ExpiresAt.UTC().Format(time.RFC3339)
	}

	err := s.client.HSet(ctx, s.key, map[string]interface{}{
		"access_token":  cred.AccessToken,
		"refresh_token": cred.RefreshToken,
		"user_id":       cred.UserID,
		"expires_at":    expires,
		"updated_at":    time.Now().UTC().Format(time.RFC3339),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to write credential to redis: %w", err)
	}
	return nil
}
