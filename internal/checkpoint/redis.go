// Package checkpoint stores study cursors in Redis.
package checkpoint

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lawnchairsociety/questsim/internal/study"
)

// Key patterns.
func cursorKey(studyID string) string { return "questsim:study:" + studyID + ":checkpoint" }

// RedisStore keeps one hash per study.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore connects using a redis:// URL. Checkpoints expire ttl after
// their last save; zero keeps them forever.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) LoadCursor(ctx context.Context, studyID string) (study.Checkpoint, bool, error) {
	fields, err := s.rdb.HGetAll(ctx, cursorKey(studyID)).Result()
	if err == redis.Nil || (err == nil && len(fields) == 0) {
		return study.Checkpoint{}, false, nil
	}
	if err != nil {
		return study.Checkpoint{}, false, fmt.Errorf("get checkpoint: %w", err)
	}

	cp, err := decode(studyID, fields)
	if err != nil {
		return study.Checkpoint{}, false, fmt.Errorf("decode checkpoint %s: %w", studyID, err)
	}
	return cp, true, nil
}

func (s *RedisStore) SaveCursor(ctx context.Context, cp study.Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	key := cursorKey(cp.StudyID)

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, encode(cp))
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *RedisStore) ClearCursor(ctx context.Context, studyID string) error {
	if err := s.rdb.Del(ctx, cursorKey(studyID)).Err(); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

func encode(cp study.Checkpoint) map[string]any {
	return map[string]any{
		"cursor":      strconv.FormatUint(cp.Cursor, 10),
		"total":       strconv.FormatUint(cp.Total, 10),
		"fingerprint": cp.Fingerprint,
		"completed":   strconv.FormatBool(cp.Completed),
		"updated_at":  strconv.FormatInt(cp.UpdatedAt.UnixMilli(), 10),
	}
}

func decode(studyID string, fields map[string]string) (study.Checkpoint, error) {
	cp := study.Checkpoint{StudyID: studyID, Fingerprint: fields["fingerprint"]}

	var err error
	if cp.Cursor, err = strconv.ParseUint(fields["cursor"], 10, 64); err != nil {
		return cp, fmt.Errorf("cursor: %w", err)
	}
	if cp.Total, err = strconv.ParseUint(fields["total"], 10, 64); err != nil {
		return cp, fmt.Errorf("total: %w", err)
	}
	if v, ok := fields["completed"]; ok {
		if cp.Completed, err = strconv.ParseBool(v); err != nil {
			return cp, fmt.Errorf("completed: %w", err)
		}
	}
	if v, ok := fields["updated_at"]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cp, fmt.Errorf("updated_at: %w", err)
		}
		cp.UpdatedAt = time.UnixMilli(ms)
	}
	return cp, nil
}
