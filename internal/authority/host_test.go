package authority_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/authority"
	mockauthority "github.com/cory-johannsen/tactics/internal/authority/mock"
	"github.com/cory-johannsen/tactics/internal/config"
	"github.com/cory-johannsen/tactics/internal/content"
	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/encounter"
	"github.com/cory-johannsen/tactics/internal/scenario"
	"github.com/cory-johannsen/tactics/internal/storage/postgres"
)

const contentRoot = "../../content"

const skirmish = `
id: skirmish
rounds: 3
participants:
  - template: fighter
    id: valeros
    initiative: 25
    actions:
      - ability: strike
        target: gob
  - template: goblin_warrior
    id: gob
    initiative: 5
`

// recorder captures every snapshot handed to the mocks.
type recorder struct {
	mu    sync.Mutex
	saved []encounter.Snapshot
	sent  []encounter.Snapshot
}

func (r *recorder) save(_ context.Context, s encounter.Snapshot) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, s)
	return true, nil
}

func (r *recorder) publish(_ context.Context, s encounter.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, s)
	return nil
}

func (r *recorder) lastSent(t *testing.T) encounter.Snapshot {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent)
	return r.sent[len(r.sent)-1]
}

func (r *recorder) lastSaved(t *testing.T) encounter.Snapshot {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.saved)
	return r.saved[len(r.saved)-1]
}

type harness struct {
	engine    *encounter.Engine
	bundle    *content.Bundle
	publisher *mockauthority.MockPublisher
	store     *mockauthority.MockStore
	ticks     *authority.TickManager
	host      *authority.Host
	rec       *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	roller := dice.NewRoller(dice.SeededSource(3), zap.NewNop())
	enforcer := contract.New(false, nil)
	bundle, err := content.Load(config.ContentConfig{
		AbilitiesDir:  filepath.Join(contentRoot, "abilities"),
		ConditionsDir: filepath.Join(contentRoot, "conditions"),
		CharactersDir: filepath.Join(contentRoot, "characters"),
		AIDir:         filepath.Join(contentRoot, "ai"),
		ScriptsDir:    filepath.Join(contentRoot, "scripts"),
	}, roller, enforcer, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(bundle.Close)

	engine := encounter.NewEngine(encounter.DefaultSettings(), roller, enforcer, zap.NewNop())
	t.Cleanup(engine.Close)

	h := &harness{
		engine:    engine,
		bundle:    bundle,
		publisher: mockauthority.NewMockPublisher(ctrl),
		store:     mockauthority.NewMockStore(ctrl),
		ticks:     authority.NewTickManager(time.Hour),
		rec:       &recorder{},
	}
	h.host = authority.NewHost(engine, bundle, h.publisher, h.store, h.ticks, zap.NewNop())
	h.store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(h.rec.save).AnyTimes()
	h.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(h.rec.publish).AnyTimes()
	return h
}

func (h *harness) expectNothingStored(id string) {
	h.store.EXPECT().Load(gomock.Any(), id).Return(encounter.Snapshot{}, postgres.ErrEncounterNotFound)
}

func parse(t *testing.T, doc string) *scenario.Scenario {
	t.Helper()
	s, err := scenario.Parse([]byte(doc))
	require.NoError(t, err)
	return s
}

func TestHost_OpenPublishesAndStores(t *testing.T) {
	h := newHarness(t)
	h.expectNothingStored("skirmish")

	require.NoError(t, h.host.Open(context.Background(), parse(t, skirmish)))

	assert.Equal(t, []string{"skirmish"}, h.host.IDs())
	assert.Equal(t, []string{"skirmish"}, h.ticks.IDs())
	snap := h.rec.lastSent(t)
	assert.Equal(t, encounter.ModeEncounter, snap.Mode)
	assert.Equal(t, []string{"valeros", "gob"}, snap.Roster)
	assert.Equal(t, []encounter.InitiativeEntry{
		{CharacterID: "valeros", Score: 25},
		{CharacterID: "gob", Score: 5},
	}, snap.Initiative)
	assert.Equal(t, snap, h.rec.lastSaved(t))
}

func TestHost_OpenTwiceFails(t *testing.T) {
	h := newHarness(t)
	h.expectNothingStored("skirmish")
	s := parse(t, skirmish)
	require.NoError(t, h.host.Open(context.Background(), s))
	assert.ErrorIs(t, h.host.Open(context.Background(), s), encounter.ErrExists)
}

func TestHost_OpenFailsWhenStoreFails(t *testing.T) {
	h := newHarness(t)
	h.store.EXPECT().Load(gomock.Any(), "skirmish").Return(encounter.Snapshot{}, errors.New("connection refused"))

	err := h.host.Open(context.Background(), parse(t, skirmish))
	assert.ErrorContains(t, err, "connection refused")
	assert.Empty(t, h.host.IDs())
	assert.Empty(t, h.engine.IDs())
}

func TestHost_StepPlaysTurnsUntilFinished(t *testing.T) {
	h := newHarness(t)
	h.expectNothingStored("skirmish")
	require.NoError(t, h.host.Open(context.Background(), parse(t, skirmish)))

	var played []authority.TurnPlayed
	var results []authority.Result
	h.host.Events.TurnPlayed.Subscribe(func(tp authority.TurnPlayed) { played = append(played, tp) })
	h.host.Events.Finished.Subscribe(func(r authority.Result) { results = append(results, r) })

	for i := 0; i < 20 && len(results) == 0; i++ {
		_, err := h.host.Step(context.Background(), "skirmish")
		require.NoError(t, err)
	}

	require.Len(t, results, 1)
	require.NotEmpty(t, played)
	assert.Equal(t, "valeros", played[0].Report.Character.ID())
	assert.Equal(t, 0, played[0].Round)
	r := results[0]
	assert.Equal(t, "skirmish", r.EncounterID)
	assert.True(t, r.Decided || r.Rounds == 3)
	assert.LessOrEqual(t, r.Rounds, 3)

	assert.Empty(t, h.host.IDs())
	assert.Empty(t, h.ticks.IDs())
	assert.Empty(t, h.engine.IDs())
	_, ok := h.bundle.Directory.Get("valeros")
	assert.False(t, ok)

	_, err := h.host.Step(context.Background(), "skirmish")
	assert.ErrorIs(t, err, authority.ErrNotHosted)
}

func TestHost_TickPlaysATurn(t *testing.T) {
	h := newHarness(t)
	h.expectNothingStored("skirmish")
	require.NoError(t, h.host.Open(context.Background(), parse(t, skirmish)))

	var played []authority.TurnPlayed
	h.host.Events.TurnPlayed.Subscribe(func(tp authority.TurnPlayed) { played = append(played, tp) })
	h.ticks.Tick()

	require.Len(t, played, 1)
	assert.Equal(t, "valeros", played[0].Report.Character.ID())
}

func TestHost_ResumesStoredEncounter(t *testing.T) {
	h := newHarness(t)
	h.expectNothingStored("skirmish")
	s := parse(t, skirmish)
	require.NoError(t, h.host.Open(context.Background(), s))

	gob, ok := h.bundle.Directory.Get("gob")
	require.True(t, ok)
	gob.Attributes().ApplyDamage(2, attribute.EffectContext{SourceCharacter: "valeros"})
	require.NoError(t, h.host.Close(context.Background()))
	assert.Empty(t, h.host.IDs())

	stored := h.rec.lastSaved(t)
	assert.Equal(t, 4.0, stored.Attributes["gob"][attribute.HitPoints])

	h.store.EXPECT().Load(gomock.Any(), "skirmish").Return(stored, nil)
	require.NoError(t, h.host.Open(context.Background(), s))

	gob, ok = h.bundle.Directory.Get("gob")
	require.True(t, ok)
	assert.Equal(t, 4.0, gob.Attributes().Get(attribute.HitPoints))
	snap := h.rec.lastSent(t)
	assert.Greater(t, snap.Sequence, stored.Sequence)
	assert.Equal(t, stored.Initiative, snap.Initiative)
	assert.Equal(t, "idle", snap.State)
}

func TestHost_Queue(t *testing.T) {
	h := newHarness(t)
	h.expectNothingStored("skirmish")
	require.NoError(t, h.host.Open(context.Background(), parse(t, skirmish)))
	ctx := context.Background()

	require.NoError(t, h.host.Queue(ctx, "skirmish", "valeros", "raise_shield", ""))
	snap := h.rec.lastSent(t)
	require.Len(t, snap.Commands["valeros"], 1)
	assert.Equal(t, "raise_shield", snap.Commands["valeros"][0].AbilityID)

	assert.ErrorIs(t, h.host.Queue(ctx, "skirmish", "nobody", "strike", "gob"), authority.ErrUnknownCharacter)
	assert.Error(t, h.host.Queue(ctx, "skirmish", "valeros", "fireball", "gob"))
	assert.ErrorIs(t, h.host.Queue(ctx, "elsewhere", "valeros", "strike", "gob"), authority.ErrNotHosted)
}

func TestHost_ExplorationModeDoesNotTick(t *testing.T) {
	h := newHarness(t)
	h.expectNothingStored("skirmish")
	s := parse(t, skirmish)
	s.Mode = encounter.ModeExploration
	require.NoError(t, h.host.Open(context.Background(), s))

	assert.Empty(t, h.ticks.IDs())
	assert.Empty(t, h.rec.lastSent(t).Initiative)
	_, err := h.host.Step(context.Background(), "skirmish")
	assert.ErrorIs(t, err, authority.ErrNotInEncounterMode)

	require.NoError(t, h.host.SetMode("skirmish", encounter.ModeEncounter))
	assert.Equal(t, []string{"skirmish"}, h.ticks.IDs())
	snap := h.rec.lastSent(t)
	assert.Equal(t, encounter.ModeEncounter, snap.Mode)
	assert.Equal(t, []encounter.InitiativeEntry{
		{CharacterID: "valeros", Score: 25},
		{CharacterID: "gob", Score: 5},
	}, snap.Initiative)

	require.NoError(t, h.host.SetMode("skirmish", encounter.ModeExploration))
	assert.Empty(t, h.ticks.IDs())
	assert.Empty(t, h.rec.lastSent(t).Initiative)
}

func TestHost_Abandon(t *testing.T) {
	h := newHarness(t)
	h.expectNothingStored("skirmish")
	require.NoError(t, h.host.Open(context.Background(), parse(t, skirmish)))

	h.publisher.EXPECT().Remove(gomock.Any(), "skirmish").Return(nil)
	h.store.EXPECT().Delete(gomock.Any(), "skirmish").Return(postgres.ErrEncounterNotFound)
	require.NoError(t, h.host.Abandon(context.Background(), "skirmish"))

	assert.Empty(t, h.host.IDs())
	assert.Empty(t, h.ticks.IDs())
	assert.Empty(t, h.engine.IDs())
	assert.ErrorIs(t, h.host.Abandon(context.Background(), "skirmish"), authority.ErrNotHosted)
}

func TestHost_SyncErrorsAreReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	roller := dice.NewRoller(dice.SeededSource(3), zap.NewNop())
	bundle, err := content.Load(config.ContentConfig{
		AbilitiesDir:  filepath.Join(contentRoot, "abilities"),
		CharactersDir: filepath.Join(contentRoot, "characters"),
	}, roller, contract.New(false, nil), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(bundle.Close)
	engine := encounter.NewEngine(encounter.DefaultSettings(), roller, contract.New(false, nil), zap.NewNop())
	t.Cleanup(engine.Close)

	publisher := mockauthority.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("redis down")).AnyTimes()
	host := authority.NewHost(engine, bundle, publisher, nil, nil, zap.NewNop())

	err = host.Open(context.Background(), parse(t, skirmish))
	assert.ErrorContains(t, err, "redis down")
	assert.Empty(t, host.IDs())
	assert.Empty(t, engine.IDs())
}
