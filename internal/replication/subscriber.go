package replication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/encounter"
)

// Subscriber feeds a Replica from the snapshots published for its encounter.
type Subscriber struct {
	client  redis.UniversalClient
	prefix  string
	replica *Replica
	logger  *zap.Logger
}

// NewSubscriber returns a Subscriber. An empty prefix selects DefaultPrefix.
//
// Precondition: client, replica and logger must not be nil.
func NewSubscriber(client redis.UniversalClient, prefix string, replica *Replica, logger *zap.Logger) *Subscriber {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Subscriber{
		client:  client,
		prefix:  prefix,
		replica: replica,
		logger:  logger.Named("subscriber").With(zap.String("encounter", replica.EncounterID())),
	}
}

// Prime applies the stored snapshot, if any.
//
// Postcondition: returns nil when nothing has been published yet.
func (s *Subscriber) Prime(ctx context.Context) error {
	snap, err := latest(ctx, s.client, s.prefix, s.replica.EncounterID())
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return nil
		}
		return err
	}
	s.replica.Apply(snap)
	return nil
}

// Run subscribes to the encounter channel, primes the replica from the stored
// snapshot and applies every published snapshot until ctx is cancelled.
//
// Postcondition: returns nil on cancellation.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, Channel(s.prefix, s.replica.EncounterID()))
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribing to %s: %w", s.replica.EncounterID(), err)
	}
	// Subscribed first so nothing published between the read and the subscribe is lost.
	if err := s.Prime(ctx); err != nil {
		return err
	}

	s.logger.Info("replica subscribed")
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("replica unsubscribed")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("subscription to %s closed", s.replica.EncounterID())
			}
			if err := s.Deliver([]byte(msg.Payload)); err != nil {
				s.logger.Warn("dropping undecodable snapshot", zap.Error(err))
			}
		}
	}
}

// Deliver decodes one published payload and applies it.
func (s *Subscriber) Deliver(payload []byte) error {
	var snap encounter.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	s.replica.Apply(snap)
	return nil
}
