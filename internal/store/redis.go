// This file implements a Redis-backed session store.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
	"github.com/redis/go-redis/v9"
)

const redisBackend = "redis"

// RedisSessionStore keeps sessions as JSON values, one key per user.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore connects to Redis and verifies the connection.
func NewRedisSessionStore(opts ...Option) (*RedisSessionStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, ErrDSNNotSet
	}

	opt, err := redis.ParseURL(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	slog.Debug("Redis session store connected", "ttl", cfg.SessionTTL)

	return &RedisSessionStore{client: client, ttl: cfg.SessionTTL}, nil
}

func (r *RedisSessionStore) sessionKey(userID string) string {
	return fmt.Sprintf("complaintdesk:session:%s", userID)
}

// GetSession loads a session, or nil if absent.
func (r *RedisSessionStore) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisSessionStore GetSession failed", "error", err, "userID", userID)
		return nil, persistErr(redisBackend, "get session", err)
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		slog.Error("RedisSessionStore session JSON unmarshal failed", "error", err, "userID", userID)
		return nil, nil
	}
	return &sess, nil
}

// SaveSession writes the session and refreshes its TTL.
func (r *RedisSessionStore) SaveSession(ctx context.Context, sess models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.sessionKey(sess.UserID), data, r.ttl).Err(); err != nil {
		slog.Error("RedisSessionStore SaveSession failed", "error", err, "userID", sess.UserID)
		return persistErr(redisBackend, "save session", err)
	}
	return nil
}

// DeleteSession removes a session.
func (r *RedisSessionStore) DeleteSession(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.sessionKey(userID)).Err(); err != nil {
		slog.Error("RedisSessionStore DeleteSession failed", "error", err, "userID", userID)
		return persistErr(redisBackend, "delete session", err)
	}
	return nil
}

// Ping verifies the Redis connection is alive.
func (r *RedisSessionStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisSessionStore) Close() error {
	return r.client.Close()
}
