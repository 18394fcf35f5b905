package replication_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/replication"
	"github.com/cory-johannsen/tactics/internal/testutil"
)

func TestSubscriber_Prime(t *testing.T) {
	client, mock := redismock.NewClientMock()
	r := newReplica()
	sub := replication.NewSubscriber(client, "", r, zap.NewNop())

	payload, err := json.Marshal(sampleSnapshot(3))
	require.NoError(t, err)
	mock.ExpectGet("tactics:encounter:enc-1:snapshot").SetVal(string(payload))
	require.NoError(t, sub.Prime(context.Background()))
	assert.Equal(t, uint64(3), r.Sequence())

	mock.ExpectGet("tactics:encounter:enc-1:snapshot").RedisNil()
	assert.NoError(t, sub.Prime(context.Background()))

	mock.ExpectGet("tactics:encounter:enc-1:snapshot").SetErr(errors.New("connection refused"))
	assert.Error(t, sub.Prime(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriber_Deliver(t *testing.T) {
	client, _ := redismock.NewClientMock()
	r := newReplica()
	sub := replication.NewSubscriber(client, "", r, zap.NewNop())

	payload, err := json.Marshal(sampleSnapshot(2))
	require.NoError(t, err)
	require.NoError(t, sub.Deliver(payload))
	assert.Equal(t, "goblin", r.ActiveCharacter())

	assert.Error(t, sub.Deliver([]byte("not json")))
	assert.Equal(t, uint64(2), r.Sequence())
}

func TestSubscriber_RunMirrorsPublisher(t *testing.T) {
	rc := testutil.NewRedisContainer(t)
	logger := zaptest.NewLogger(t)
	pub := replication.NewPublisher(rc.Client, "test", time.Minute, logger)
	replica := replication.NewReplica("enc-1", contract.New(true, logger), logger)
	sub := replication.NewSubscriber(rc.Client, "test", replica, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pub.Publish(ctx, sampleSnapshot(1)))

	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	// Primed from the stored snapshot.
	require.Eventually(t, func() bool { return replica.Sequence() == 1 }, 5*time.Second, 20*time.Millisecond)

	next := sampleSnapshot(2)
	next.ActiveCharacter = "hero"
	next.RosterActive = 0
	require.Eventually(t, func() bool {
		_ = pub.Publish(ctx, next)
		return replica.Sequence() == 2
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, "hero", replica.ActiveCharacter())

	latest, err := pub.Latest(ctx, "enc-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest.Sequence)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
