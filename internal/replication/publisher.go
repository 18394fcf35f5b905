// Package replication carries encounter snapshots between the authoritative
// rules process and its read replicas over Redis.
package replication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/encounter"
)

// ErrNoSnapshot is returned by Latest when nothing has been published for an encounter.
var ErrNoSnapshot = errors.New("no snapshot published")

// DefaultPrefix namespaces every key and channel.
const DefaultPrefix = "tactics:encounter"

// SnapshotKey returns the key holding the latest snapshot of encounterID.
func SnapshotKey(prefix, encounterID string) string {
	return fmt.Sprintf("%s:%s:snapshot", prefix, encounterID)
}

// Channel returns the pub/sub channel snapshots of encounterID are published on.
func Channel(prefix, encounterID string) string {
	return fmt.Sprintf("%s:%s", prefix, encounterID)
}

// Publisher writes encounter snapshots to Redis.
type Publisher struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewPublisher returns a Publisher. An empty prefix selects DefaultPrefix; a zero
// ttl keeps snapshots until the encounter is removed.
//
// Precondition: client and logger must not be nil.
func NewPublisher(client redis.UniversalClient, prefix string, ttl time.Duration, logger *zap.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Publisher{client: client, prefix: prefix, ttl: ttl, logger: logger.Named("replication")}
}

// Publish stores s as the latest snapshot of its encounter and announces it to
// subscribers.
//
// Postcondition: the key is written before the message is published.
func (p *Publisher) Publish(ctx context.Context, s encounter.Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Set(ctx, SnapshotKey(p.prefix, s.EncounterID), string(payload), p.ttl)
	pipe.Publish(ctx, Channel(p.prefix, s.EncounterID), string(payload))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish snapshot of %s: %w", s.EncounterID, err)
	}
	p.logger.Debug("snapshot published",
		zap.String("encounter", s.EncounterID), zap.Uint64("sequence", s.Sequence))
	return nil
}

// Latest returns the most recently published snapshot of encounterID.
//
// Postcondition: ErrNoSnapshot when the key does not exist.
func (p *Publisher) Latest(ctx context.Context, encounterID string) (encounter.Snapshot, error) {
	return latest(ctx, p.client, p.prefix, encounterID)
}

// Remove deletes the stored snapshot of encounterID.
func (p *Publisher) Remove(ctx context.Context, encounterID string) error {
	if err := p.client.Del(ctx, SnapshotKey(p.prefix, encounterID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot of %s: %w", encounterID, err)
	}
	return nil
}

func latest(ctx context.Context, client redis.UniversalClient, prefix, encounterID string) (encounter.Snapshot, error) {
	var s encounter.Snapshot
	raw, err := client.Get(ctx, SnapshotKey(prefix, encounterID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return s, fmt.Errorf("encounter %s: %w", encounterID, ErrNoSnapshot)
		}
		return s, fmt.Errorf("failed to get snapshot of %s: %w", encounterID, err)
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("failed to unmarshal snapshot of %s: %w", encounterID, err)
	}
	return s, nil
}
