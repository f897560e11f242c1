package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"drivematch/internal/session/models"
	id "drivematch/pkg/domain"
	"drivematch/pkg/platform/sentinel"
)

const snapshotKeyPrefix = "drivematch:session:"

// Redis stores snapshots as JSON strings that expire after the TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func snapshotKey(sessionID id.SessionID) string {
	return snapshotKeyPrefix + sessionID.String()
}

func (s *Redis) Save(ctx context.Context, snap *models.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, snapshotKey(snap.SessionID), payload, s.ttl).Err(); err != nil {
		return errors.Join(fmt.Errorf("save snapshot: %w", err), sentinel.ErrUnavailable)
	}
	return nil
}

func (s *Redis) Load(ctx context.Context, sessionID id.SessionID) (*models.Snapshot, error) {
	payload, err := s.client.Get(ctx, snapshotKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(fmt.Errorf("load snapshot: %w", err), sentinel.ErrUnavailable)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *Redis) Delete(ctx context.Context, sessionID id.SessionID) error {
	if err := s.client.Del(ctx, snapshotKey(sessionID)).Err(); err != nil {
		return errors.Join(fmt.Errorf("delete snapshot: %w", err), sentinel.ErrUnavailable)
	}
	return nil
}
