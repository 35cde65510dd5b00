package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "refresh_token:"

// SessionKey returns the store key holding the refresh-token hash of subject.
func SessionKey(subject string) string {
	return sessionKeyPrefix + subject
}

// SessionRepository stores at most one refresh-token hash per subject.
// Save overwrites any previous hash.
type SessionRepository interface {
	Save(ctx context.Context, subject, tokenHash string, ttl time.Duration) error
	Get(ctx context.Context, subject string) (string, error)
	Delete(ctx context.Context, subject string) error
}

type sessionRepository struct {
	client redis.Cmdable
}

// NewSessionRepository returns a Redis-backed implementation.
func NewSessionRepository(client redis.Cmdable) SessionRepository {
	return &sessionRepository{client: client}
}

func (r *sessionRepository) Save(ctx context.Context, subject, tokenHash string, ttl time.Duration) error {
	return r.client.Set(ctx, SessionKey(subject), tokenHash, ttl).Err()
}

func (r *sessionRepository) Get(ctx context.Context, subject string) (string, error) {
	hash, err := r.client.Get(ctx, SessionKey(subject)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// Delete removes the hash; deleting an absent key is not an error.
func (r *sessionRepository) Delete(ctx context.Context, subject string) error {
	return r.client.Del(ctx, SessionKey(subject)).Err()
}
