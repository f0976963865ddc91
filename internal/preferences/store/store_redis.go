package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"veritas/internal/preferences/models"
	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
)

const (
	preferencesKeyPrefix = "preferences:"

	fieldProtection    = "protection_active"
	fieldNotifications = "notifications_enabled"
	fieldUpdatedAt     = "updated_at"
)

// RedisStore keeps each user's preferences in one hash so every instance
// serving the user reads the same toggle.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed store. A zero ttl keeps keys forever.
func NewRedis(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(userID id.UserID) string {
	return preferencesKeyPrefix + userID.String()
}

func (s *RedisStore) Get(ctx context.Context, userID id.UserID) (*models.Preferences, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	if len(fields) == 0 {
		return nil, sentinel.ErrNotFound
	}

	prefs := models.Default(userID)
	if v, ok := fields[fieldProtection]; ok {
		if prefs.ProtectionActive, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", fieldProtection, err)
		}
	}
	if v, ok := fields[fieldNotifications]; ok {
		if prefs.NotificationsEnabled, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", fieldNotifications, err)
		}
	}
	if v, ok := fields[fieldUpdatedAt]; ok {
		nanos, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", fieldUpdatedAt, err)
		}
		prefs.UpdatedAt = time.Unix(0, nanos).UTC()
	}
	return prefs, nil
}

func (s *RedisStore) Save(ctx context.Context, prefs *models.Preferences) error {
	if prefs == nil || prefs.UserID.IsNil() {
		return fmt.Errorf("preferences require a user: %w", sentinel.ErrInvalidInput)
	}
	key := s.key(prefs.UserID)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldProtection, strconv.FormatBool(prefs.ProtectionActive),
			fieldNotifications, strconv.FormatBool(prefs.NotificationsEnabled),
			fieldUpdatedAt, strconv.FormatInt(prefs.UpdatedAt.UnixNano(), 10),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
