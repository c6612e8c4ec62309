package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AlertTTL bounds how long a low-stock snapshot is served.
const AlertTTL = 24 * time.Hour

// AlertStore persists low-stock snapshots.
type AlertStore interface {
	Save(ctx context.Context, snapshot AlertSnapshot) error
	Load(ctx context.Context, orgID int64) (AlertSnapshot, bool, error)
}

// RedisAlertStore keeps one JSON snapshot per organization.
type RedisAlertStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisAlertStore builds a store; ttl <= 0 falls back to AlertTTL.
func NewRedisAlertStore(client *redis.Client, ttl time.Duration) *RedisAlertStore {
	if ttl <= 0 {
		ttl = AlertTTL
	}
	return &RedisAlertStore{client: client, ttl: ttl}
}

func alertKey(orgID int64) string {
	return fmt.Sprintf("lowstock:%d", orgID)
}

// Save overwrites the organization snapshot.
func (s *RedisAlertStore) Save(ctx context.Context, snapshot AlertSnapshot) error {
	if s == nil || s.client == nil {
		return nil
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, alertKey(snapshot.OrganizationID), payload, s.ttl).Err()
}

// Load returns the stored snapshot, ok=false when none exists.
func (s *RedisAlertStore) Load(ctx context.Context, orgID int64) (AlertSnapshot, bool, error) {
	if s == nil || s.client == nil {
		return AlertSnapshot{}, false, nil
	}
	raw, err := s.client.Get(ctx, alertKey(orgID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return AlertSnapshot{}, false, nil
		}
		return AlertSnapshot{}, false, err
	}
	var snapshot AlertSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return AlertSnapshot{}, false, err
	}
	return snapshot, true, nil
}
