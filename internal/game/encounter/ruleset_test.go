package encounter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/character"
	"github.com/cory-johannsen/tactics/internal/game/command"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/encounter"
)

// fixedRoller returns the queued totals in order, then 10.
type fixedRoller struct{ totals []int }

func (r *fixedRoller) Roll(expr dice.Expression) dice.Result {
	v := 10
	if len(r.totals) > 0 {
		v, r.totals = r.totals[0], r.totals[1:]
	}
	return dice.Result{Expression: expr.String(), Rolled: []int{v}, Kept: []int{v}}
}

type fixture struct {
	dir  *character.Directory
	deps character.Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	abilities := ability.NewRegistry()
	abilities.Register(&ability.Ability{ID: "stride", Label: "Stride", ActionCost: 1})
	abilities.Register(&ability.Ability{ID: "power_attack", Label: "Power Attack", ActionCost: 2})
	abilities.Register(&ability.Ability{
		ID: "strike", Label: "Strike", ActionCost: 1,
		Effects: []ability.Effect{{
			Attribute: attribute.TmpDamageIncoming, Op: attribute.OpAdditive, Magnitude: 8, Target: ability.TargetPayload,
		}},
	})
	dir := character.NewDirectory()
	return &fixture{
		dir: dir,
		deps: character.Deps{
			Abilities:  abilities,
			Conditions: condition.NewRegistry(),
			Roller:     dice.NewRoller(dice.SeededSource(7), zap.NewNop()),
			Resolver:   dir.Resolve,
			Contract:   contract.New(false, nil),
			Logger:     zap.NewNop(),
		},
	}
}

func (f *fixture) character(t *testing.T, name string, perception float64) *character.Character {
	t.Helper()
	c, err := character.NewWithID(name, &character.Template{
		ID:           name,
		Name:         name,
		Kind:         character.KindPlayer,
		Level:        1,
		MaxHitPoints: 20,
		Speed:        25,
		Perception:   perception,
		Abilities:    []string{"stride", "power_attack", "strike"},
	}, f.deps)
	require.NoError(t, err)
	f.dir.Add(c)
	return c
}

func newRuleSet(roller encounter.Roller) *encounter.RuleSet {
	if roller == nil {
		roller = &fixedRoller{}
	}
	return encounter.NewRuleSet("enc-1", encounter.DefaultSettings(), roller, contract.New(false, nil), zap.NewNop())
}

func newCommand(t *testing.T, c *character.Character, abilityID string) *command.Command {
	t.Helper()
	cmd, ok := c.NewCommand(abilityID, nil)
	require.True(t, ok)
	return cmd
}

func TestRuleSet_TurnLifecycle(t *testing.T) {
	f := newFixture(t)
	a := f.character(t, "alice", 0)
	rs := newRuleSet(nil)
	require.NoError(t, rs.AddCharacter(a))

	var started, ended []string
	rs.Events.TurnStarted.Subscribe(func(turn encounter.Turn) { started = append(started, turn.Character.ID()) })
	rs.Events.TurnEnded.Subscribe(func(turn encounter.Turn) { ended = append(ended, turn.Character.ID()) })

	assert.Equal(t, encounter.StateIdle, rs.State())
	assert.Nil(t, rs.ActiveCharacter())

	require.NoError(t, rs.StartTurnForCharacter(a))
	assert.Equal(t, encounter.StateTurnInProgress, rs.State())
	assert.Equal(t, a, rs.ActiveCharacter())
	assert.Equal(t, 3.0, a.Attributes().Get(attribute.EncActionPoints))
	assert.Equal(t, 1.0, a.Attributes().Get(attribute.EncReactionPoints))

	require.NoError(t, rs.EndTurnForCharacter(a))
	assert.Equal(t, encounter.StateIdle, rs.State())
	assert.Equal(t, 0.0, a.Attributes().Get(attribute.EncActionPoints))
	assert.Equal(t, []string{"alice"}, started)
	assert.Equal(t, []string{"alice"}, ended)
}

func TestRuleSet_ContractViolations(t *testing.T) {
	f := newFixture(t)
	a, b := f.character(t, "alice", 0), f.character(t, "bob", 0)
	outsider := f.character(t, "mallory", 0)

	core, logs := observer.New(zapcore.ErrorLevel)
	rs := encounter.NewRuleSet("enc-1", encounter.DefaultSettings(), &fixedRoller{},
		contract.New(false, zap.New(core)), zap.NewNop())
	require.NoError(t, rs.AddCharacter(a))
	require.NoError(t, rs.AddCharacter(b))

	require.NoError(t, rs.StartTurnForCharacter(a))
	assert.ErrorIs(t, rs.EndTurnForCharacter(b), encounter.ErrNotActiveCharacter)
	assert.ErrorIs(t, rs.StartTurnForCharacter(b), encounter.ErrTurnInProgress)
	assert.ErrorIs(t, rs.SetCharacterInitiative(outsider, 10), encounter.ErrNotParticipant)
	assert.ErrorIs(t, rs.QueueCommandForCharacter(outsider, newCommand(t, outsider, "stride")), encounter.ErrNotParticipant)
	_, err := rs.ExecuteNextQueuedCommandForCharacter(outsider)
	assert.ErrorIs(t, err, encounter.ErrNotParticipant)
	assert.Equal(t, a, rs.ActiveCharacter())
	assert.Equal(t, 5, logs.FilterMessage("contract violation").Len())
}

func TestRuleSet_StrictContractsPanic(t *testing.T) {
	f := newFixture(t)
	a, b := f.character(t, "alice", 0), f.character(t, "bob", 0)
	rs := encounter.NewRuleSet("enc-1", encounter.DefaultSettings(), &fixedRoller{}, contract.New(true, nil), zap.NewNop())
	require.NoError(t, rs.AddCharacter(a))
	require.NoError(t, rs.AddCharacter(b))
	require.NoError(t, rs.StartTurnForCharacter(a))

	assert.Panics(t, func() { _ = rs.EndTurnForCharacter(b) })
}

func TestRuleSet_Initiative(t *testing.T) {
	f := newFixture(t)
	a, b, c := f.character(t, "alice", 5), f.character(t, "bob", 2), f.character(t, "carol", 0)
	rs := newRuleSet(&fixedRoller{totals: []int{10, 15, 3}})
	for _, p := range []*character.Character{a, b, c} {
		require.NoError(t, rs.AddCharacter(p))
	}

	rs.RollInitiativeForAll()
	for _, p := range []*character.Character{a, b, c} {
		assert.True(t, rs.IsInitiativeSetForCharacter(p))
	}
	score, ok := rs.InitiativeOf(a)
	require.True(t, ok)
	assert.Equal(t, 15, score)

	order := rs.CharactersInInitiativeOrder()
	require.Len(t, order, 3)
	assert.Equal(t, []string{"bob", "alice", "carol"}, []string{order[0].ID(), order[1].ID(), order[2].ID()})

	assert.Equal(t, b, rs.NextCharacterByInitiative())
	assert.Equal(t, a, rs.NextCharacterByInitiative())
	assert.Equal(t, c, rs.NextCharacterByInitiative())
	assert.Equal(t, b, rs.NextCharacterByInitiative())

	rs.ClearInitiativeForCharacter(b)
	assert.False(t, rs.IsInitiativeSetForCharacter(b))
	rs.ClearInitiativeForAllCharacters()
	assert.Empty(t, rs.CharactersInInitiativeOrder())
	assert.False(t, rs.HavePlayableCharacters())
	assert.Nil(t, rs.NextCharacterByInitiative())
}

func TestRuleSet_NextSkipsUnconscious(t *testing.T) {
	f := newFixture(t)
	a, b := f.character(t, "alice", 0), f.character(t, "bob", 0)
	rs := newRuleSet(nil)
	require.NoError(t, rs.AddCharacter(a))
	require.NoError(t, rs.AddCharacter(b))
	require.NoError(t, rs.SetCharacterInitiative(a, 20))
	require.NoError(t, rs.SetCharacterInitiative(b, 10))

	a.Attributes().ApplyDamage(50, attribute.EffectContext{})
	assert.Equal(t, b, rs.NextCharacterByInitiative())
	assert.Equal(t, b, rs.NextCharacterByInitiative())

	b.Attributes().ApplyDamage(50, attribute.EffectContext{})
	assert.False(t, rs.HavePlayableCharacters())
}

func TestRuleSet_AttemptToExecuteOrQueueCommand(t *testing.T) {
	f := newFixture(t)
	a, b := f.character(t, "alice", 0), f.character(t, "bob", 0)
	outsider := f.character(t, "mallory", 0)
	rs := newRuleSet(nil)
	require.NoError(t, rs.AddCharacter(a))
	require.NoError(t, rs.AddCharacter(b))

	var queued []*command.Command
	rs.Events.CommandQueued.Subscribe(func(c *command.Command) { queued = append(queued, c) })

	// Not the active character: queued.
	bStride := newCommand(t, b, "stride")
	assert.Equal(t, command.Queued, rs.AttemptToExecuteOrQueueCommand(b, bStride))
	assert.True(t, rs.DoesCharacterHaveNextCommandQueued(b))

	require.NoError(t, rs.StartTurnForCharacter(a))
	// Active with an empty queue: executed immediately.
	assert.Equal(t, command.ExecutedImmediately, rs.AttemptToExecuteOrQueueCommand(a, newCommand(t, a, "power_attack")))
	assert.Equal(t, 1.0, a.Attributes().Get(attribute.EncActionPoints))
	assert.False(t, rs.DoesCharacterHaveNextCommandQueued(a))

	// Active but blocked by cost: queued for later.
	blocked := newCommand(t, a, "power_attack")
	assert.Equal(t, command.Queued, rs.AttemptToExecuteOrQueueCommand(a, blocked))
	assert.Same(t, blocked, rs.PeekNextQueuedCommandForCharacter(a))

	// Active with something already queued: queued behind it.
	assert.Equal(t, command.Queued, rs.AttemptToExecuteOrQueueCommand(a, newCommand(t, a, "stride")))

	assert.Equal(t, command.Refused, rs.AttemptToExecuteOrQueueCommand(outsider, newCommand(t, outsider, "stride")))
	assert.Equal(t, command.Refused, rs.AttemptToExecuteOrQueueCommand(a, blocked))
	assert.Len(t, queued, 3)
}

func TestRuleSet_ExecuteNextQueuedCommandKeepsBlocked(t *testing.T) {
	f := newFixture(t)
	a := f.character(t, "alice", 0)
	rs := newRuleSet(nil)
	require.NoError(t, rs.AddCharacter(a))
	require.NoError(t, rs.StartTurnForCharacter(a))

	first, second := newCommand(t, a, "power_attack"), newCommand(t, a, "power_attack")
	require.NoError(t, rs.QueueCommandForCharacter(a, first))
	require.NoError(t, rs.QueueCommandForCharacter(a, second))

	result, err := rs.ExecuteNextQueuedCommandForCharacter(a)
	require.NoError(t, err)
	assert.Equal(t, command.ExecuteActivated, result)
	assert.Same(t, first, rs.PeekNextQueuedCommandForCharacter(a))

	result, err = rs.ExecuteNextQueuedCommandForCharacter(a)
	require.NoError(t, err)
	assert.Equal(t, command.ExecuteBlocked, result)
	assert.Same(t, first, rs.PeekNextQueuedCommandForCharacter(a))
	assert.Equal(t, 1, a.CommandQueue().Count())

	assert.Same(t, first, rs.PopNextCommandQueuedForCharacter(a))
	assert.Nil(t, rs.PopNextCommandQueuedForCharacter(a))
	result, err = rs.ExecuteNextQueuedCommandForCharacter(a)
	require.NoError(t, err)
	assert.Equal(t, command.ExecuteNone, result)
}

func TestRuleSet_CancelQueuedCommandsForAllCharacters(t *testing.T) {
	f := newFixture(t)
	a, b := f.character(t, "alice", 0), f.character(t, "bob", 0)
	rs := newRuleSet(nil)
	require.NoError(t, rs.AddCharacter(a))
	require.NoError(t, rs.AddCharacter(b))
	require.NoError(t, rs.QueueCommandForCharacter(a, newCommand(t, a, "stride")))
	require.NoError(t, rs.QueueCommandForCharacter(b, newCommand(t, b, "stride")))

	rs.CancelQueuedCommandsForAllCharacters()
	assert.True(t, a.CommandQueue().IsEmpty())
	assert.True(t, b.CommandQueue().IsEmpty())
}

func TestRuleSet_RemoveActiveCharacterEndsTurn(t *testing.T) {
	f := newFixture(t)
	a, b := f.character(t, "alice", 0), f.character(t, "bob", 0)
	rs := newRuleSet(nil)
	require.NoError(t, rs.AddCharacter(a))
	require.NoError(t, rs.AddCharacter(b))
	require.NoError(t, rs.SetCharacterInitiative(a, 12))
	require.NoError(t, rs.StartTurnForCharacter(a))
	require.NoError(t, rs.QueueCommandForCharacter(a, newCommand(t, a, "stride")))

	var ended int
	rs.Events.TurnEnded.Subscribe(func(encounter.Turn) { ended++ })
	require.NoError(t, rs.RemoveCharacter(a))

	assert.Equal(t, 1, ended)
	assert.Equal(t, encounter.StateIdle, rs.State())
	assert.True(t, a.CommandQueue().IsEmpty())
	assert.False(t, rs.IsInitiativeSetForCharacter(a))
	_, ok := rs.Participant("alice")
	assert.False(t, ok)
	assert.Len(t, rs.Participants(), 1)
	assert.ErrorIs(t, rs.RemoveCharacter(a), encounter.ErrNotParticipant)
}

func TestRuleSet_AddCharacterRespectsCapacity(t *testing.T) {
	f := newFixture(t)
	settings := encounter.DefaultSettings()
	settings.RosterCapacity = 1
	rs := encounter.NewRuleSet("small", settings, &fixedRoller{}, contract.New(false, nil), zap.NewNop())

	a := f.character(t, "alice", 0)
	require.NoError(t, rs.AddCharacter(a))
	require.NoError(t, rs.AddCharacter(a))
	assert.Error(t, rs.AddCharacter(f.character(t, "bob", 0)))
	assert.Len(t, rs.Participants(), 1)
}

func TestRuleSet_PayloadCommandDamagesTarget(t *testing.T) {
	f := newFixture(t)
	a, b := f.character(t, "alice", 0), f.character(t, "bob", 0)
	rs := newRuleSet(nil)
	require.NoError(t, rs.AddCharacter(a))
	require.NoError(t, rs.AddCharacter(b))
	require.NoError(t, rs.StartTurnForCharacter(a))

	strike, ok := a.NewCommand("strike", &ability.Payload{TargetID: b.ID()})
	require.True(t, ok)
	assert.Equal(t, command.ExecutedImmediately, rs.AttemptToExecuteOrQueueCommand(a, strike))
	assert.Equal(t, 12.0, b.Attributes().Get(attribute.HitPoints))
}

func TestRuleSet_SnapshotAndRestore(t *testing.T) {
	f := newFixture(t)
	a, b := f.character(t, "alice", 0), f.character(t, "bob", 0)
	rs := newRuleSet(nil)
	require.NoError(t, rs.AddCharacter(a))
	require.NoError(t, rs.AddCharacter(b))
	require.NoError(t, rs.SetCharacterInitiative(a, 8))
	require.NoError(t, rs.SetCharacterInitiative(b, 14))
	require.NoError(t, rs.StartTurnForCharacter(b))
	strike, _ := b.NewCommand("strike", &ability.Payload{TargetID: a.ID()})
	require.NoError(t, rs.QueueCommandForCharacter(b, strike))
	a.Attributes().ApplyDamage(5, attribute.EffectContext{})

	snap := rs.Snapshot()
	assert.Equal(t, uint64(1), snap.Sequence)
	assert.Equal(t, "turn_in_progress", snap.State)
	assert.Equal(t, []string{"alice", "bob"}, snap.Roster)
	assert.Equal(t, 1, snap.RosterActive)
	assert.Equal(t, "bob", snap.ActiveCharacter)
	assert.Equal(t, []encounter.InitiativeEntry{{CharacterID: "bob", Score: 14}, {CharacterID: "alice", Score: 8}}, snap.Initiative)
	require.Len(t, snap.Commands["bob"], 1)
	assert.Equal(t, "strike", snap.Commands["bob"][0].AbilityID)
	assert.Equal(t, "alice", snap.Commands["bob"][0].TargetID)
	assert.Equal(t, 15.0, snap.Attributes["alice"][attribute.HitPoints])
	assert.NotContains(t, snap.Attributes["alice"], attribute.TmpDamageIncoming)
	assert.Equal(t, uint64(2), rs.Snapshot().Sequence)

	// Restore onto fresh characters.
	g := newFixture(t)
	a2, b2 := g.character(t, "alice", 0), g.character(t, "bob", 0)
	restored := newRuleSet(nil)
	require.NoError(t, restored.Restore(snap, func(id string) (encounter.Participant, bool) {
		c, ok := g.dir.Get(id)
		return c, ok
	}))
	assert.Equal(t, b2, restored.ActiveCharacter())
	assert.Equal(t, 15.0, a2.Attributes().Get(attribute.HitPoints))
	score, _ := restored.InitiativeOf(b2)
	assert.Equal(t, 14, score)
	assert.Equal(t, a2, restored.NextCharacterByInitiative())
	assert.Equal(t, uint64(2), restored.Snapshot().Sequence)

	assert.Error(t, restored.Restore(snap, func(string) (encounter.Participant, bool) { return nil, false }))
	assert.Error(t, newRuleSet(nil).Restore(snap, func(string) (encounter.Participant, bool) { return nil, false }))
}
