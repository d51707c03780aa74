package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ervin210/oauth-app-marketplace/internal/models"
)

// SessionRepository defines the interface for session storage.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// KeyValueStore is the subset of the Redis wrapper sessions need.
type KeyValueStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
}

type sessionRepo struct {
	store KeyValueStore
}

// NewSessionRepository creates a Redis-backed session repository.
func NewSessionRepository(store KeyValueStore) SessionRepository {
	return &sessionRepo{store: store}
}

func sessionKey(id string) string {
	return "session:" + id
}

// Create stores a session until its expiry.
func (r *sessionRepo) Create(ctx context.Context, session *models.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return r.store.Set(ctx, sessionKey(session.ID), data, ttl)
}

// Get returns the session or nil when it does not exist or has expired.
func (r *sessionRepo) Get(ctx context.Context, id string) (*models.Session, error) {
	raw, err := r.store.Get(ctx, sessionKey(id))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if session.Expired(time.Now()) {
		return nil, nil
	}
	return &session, nil
}

// Delete removes a session.
func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, sessionKey(id))
}

// Compile-time check to ensure sessionRepo implements SessionRepository.
var _ SessionRepository = (*sessionRepo)(nil)
