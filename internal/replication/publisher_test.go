package replication_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/encounter"
	"github.com/cory-johannsen/tactics/internal/replication"
)

func sampleSnapshot(seq uint64) encounter.Snapshot {
	return encounter.Snapshot{
		EncounterID:     "enc-1",
		Sequence:        seq,
		Mode:            encounter.ModeEncounter,
		State:           "turn_in_progress",
		Roster:          []string{"hero", "goblin"},
		RosterActive:    1,
		ActiveCharacter: "goblin",
		Initiative: []encounter.InitiativeEntry{
			{CharacterID: "goblin", Score: 18},
			{CharacterID: "hero", Score: 12},
		},
		Commands: map[string][]encounter.CommandEntry{},
		Attributes: map[string]map[attribute.Name]float64{
			"hero": {attribute.HitPoints: 20},
		},
	}
}

type PublisherTestSuite struct {
	suite.Suite
	client    *redis.Client
	mock      redismock.ClientMock
	publisher *replication.Publisher
}

func (s *PublisherTestSuite) SetupTest() {
	s.client, s.mock = redismock.NewClientMock()
	s.publisher = replication.NewPublisher(s.client, "", time.Hour, zap.NewNop())
}

func (s *PublisherTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

func TestPublisherTestSuite(t *testing.T) {
	suite.Run(t, new(PublisherTestSuite))
}

func (s *PublisherTestSuite) TestKeys() {
	s.Equal("tactics:encounter:enc-1:snapshot", replication.SnapshotKey(replication.DefaultPrefix, "enc-1"))
	s.Equal("tactics:encounter:enc-1", replication.Channel(replication.DefaultPrefix, "enc-1"))
}

func (s *PublisherTestSuite) TestPublish() {
	ctx := context.Background()
	snap := sampleSnapshot(4)
	payload, err := json.Marshal(snap)
	s.Require().NoError(err)

	s.mock.ExpectSet("tactics:encounter:enc-1:snapshot", string(payload), time.Hour).SetVal("OK")
	s.mock.ExpectPublish("tactics:encounter:enc-1", string(payload)).SetVal(1)

	s.NoError(s.publisher.Publish(ctx, snap))
}

func (s *PublisherTestSuite) TestPublish_RedisError() {
	ctx := context.Background()
	snap := sampleSnapshot(4)
	payload, err := json.Marshal(snap)
	s.Require().NoError(err)

	s.mock.ExpectSet("tactics:encounter:enc-1:snapshot", string(payload), time.Hour).SetErr(errors.New("redis error"))

	err = s.publisher.Publish(ctx, snap)
	s.Error(err)
	s.Contains(err.Error(), "enc-1")
}

func (s *PublisherTestSuite) TestLatest() {
	ctx := context.Background()
	snap := sampleSnapshot(7)
	payload, err := json.Marshal(snap)
	s.Require().NoError(err)

	s.mock.ExpectGet("tactics:encounter:enc-1:snapshot").SetVal(string(payload))

	got, err := s.publisher.Latest(ctx, "enc-1")
	s.Require().NoError(err)
	s.Equal(snap, got)
}

func (s *PublisherTestSuite) TestLatest_NotPublished() {
	s.mock.ExpectGet("tactics:encounter:enc-2:snapshot").RedisNil()

	_, err := s.publisher.Latest(context.Background(), "enc-2")
	s.ErrorIs(err, replication.ErrNoSnapshot)
}

func (s *PublisherTestSuite) TestLatest_Corrupt() {
	s.mock.ExpectGet("tactics:encounter:enc-1:snapshot").SetVal("{not json")

	_, err := s.publisher.Latest(context.Background(), "enc-1")
	s.Error(err)
	s.NotErrorIs(err, replication.ErrNoSnapshot)
}

func (s *PublisherTestSuite) TestRemove() {
	s.mock.ExpectDel("tactics:encounter:enc-1:snapshot").SetVal(1)
	s.NoError(s.publisher.Remove(context.Background(), "enc-1"))
}
