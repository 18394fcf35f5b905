package ability_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/game/dice"
)

type fixedRoller struct{ total int }

func (f fixedRoller) Roll(expr dice.Expression) dice.Result {
	return dice.Result{Expression: expr.String(), Kept: []int{f.total}}
}

type stubHooks struct {
	allow     bool
	activated []string
}

func (s *stubHooks) CanActivate(abilityID, characterID string) bool { return s.allow }

func (s *stubHooks) OnActivate(abilityID, characterID, targetID string) {
	s.activated = append(s.activated, abilityID+":"+characterID+"->"+targetID)
}

type nopOwner struct{}

func (nopOwner) HandleDamage(attribute.DamageEvent)               {}
func (nopOwner) HandleHitPointsChanged(attribute.HitPointsChange) {}
func (nopOwner) HandleMoveSpeedChanged(attribute.SpeedChange)     {}

func newStore(t *testing.T, id string, hp float64) *attribute.Store {
	s := attribute.NewStore(id, contract.New(false, nil), zap.NewNop())
	s.Bind(nopOwner{})
	require.NoError(t, s.Set(attribute.MaxHitPoints, hp))
	require.NoError(t, s.Set(attribute.HitPoints, hp))
	return s
}

func strike() *ability.Ability {
	d := dice.MustParse("1d8")
	return &ability.Ability{
		ID:         "strike",
		Label:      "Strike",
		ActionCost: 1,
		Tags:       attribute.Tags{"attack"},
		Effects: []ability.Effect{{
			Attribute: attribute.TmpDamageIncoming,
			Op:        attribute.OpAdditive,
			Magnitude: 2,
			Dice:      &d,
			Target:    ability.TargetPayload,
		}},
	}
}

func TestComponent_GrantFindRevoke(t *testing.T) {
	c := ability.NewComponent(newStore(t, "hero", 10), fixedRoller{}, zap.NewNop())
	h := c.Grant(strike(), 1)

	spec, ok := c.FindSpec(h)
	require.True(t, ok)
	assert.Equal(t, "strike", spec.Ability.ID)
	got, ok := c.HandleFor("strike")
	assert.True(t, ok)
	assert.Equal(t, h, got)

	gen := c.Generation()
	assert.True(t, c.Revoke(h))
	assert.False(t, c.Revoke(h))
	assert.Greater(t, c.Generation(), gen)
	_, ok = c.FindSpec(h)
	assert.False(t, ok)
	assert.Empty(t, c.Specs())
}

func TestComponent_ActivationSpendsActionsAndDamagesTarget(t *testing.T) {
	hero := newStore(t, "hero", 10)
	ogre := newStore(t, "ogre", 30)
	require.NoError(t, hero.Set(attribute.EncActionPoints, 3))
	hooks := &stubHooks{allow: true}

	c := ability.NewComponent(hero, fixedRoller{total: 5}, zap.NewNop(),
		ability.WithHooks(hooks),
		ability.WithResolver(func(id string) (*attribute.Store, bool) {
			if id == "ogre" {
				return ogre, true
			}
			return nil, false
		}),
	)
	h := c.Grant(strike(), 1)

	require.True(t, c.TryActivateWithPayload(h, &ability.Payload{TargetID: "ogre"}))

	assert.Equal(t, 2.0, hero.Get(attribute.EncActionPoints))
	assert.Equal(t, 23.0, ogre.Get(attribute.HitPoints))
	assert.Equal(t, []string{"strike:hero->ogre"}, hooks.activated)
}

func TestComponent_BlockedWithoutActionPoints(t *testing.T) {
	hero := newStore(t, "hero", 10)
	c := ability.NewComponent(hero, fixedRoller{}, zap.NewNop())
	h := c.Grant(strike(), 1)

	assert.False(t, c.TryActivate(h))
	assert.Equal(t, 0.0, hero.Get(attribute.EncActionPoints))
}

func TestComponent_BlockedByScript(t *testing.T) {
	hero := newStore(t, "hero", 10)
	require.NoError(t, hero.Set(attribute.EncActionPoints, 3))
	hooks := &stubHooks{allow: false}
	c := ability.NewComponent(hero, fixedRoller{}, zap.NewNop(), ability.WithHooks(hooks))
	h := c.Grant(strike(), 1)

	assert.False(t, c.TryActivate(h))
	assert.Equal(t, 3.0, hero.Get(attribute.EncActionPoints))
	assert.Empty(t, hooks.activated)
}

func TestComponent_UnresolvedTargetSkipsEffect(t *testing.T) {
	hero := newStore(t, "hero", 10)
	require.NoError(t, hero.Set(attribute.EncActionPoints, 1))
	c := ability.NewComponent(hero, fixedRoller{total: 5}, zap.NewNop())
	h := c.Grant(strike(), 1)

	assert.True(t, c.TryActivate(h))
	assert.Equal(t, 10.0, hero.Get(attribute.HitPoints))
	assert.Equal(t, 0.0, hero.Get(attribute.EncActionPoints))
}

func TestComponent_UnknownHandle(t *testing.T) {
	c := ability.NewComponent(newStore(t, "hero", 10), fixedRoller{}, zap.NewNop())
	assert.False(t, c.TryActivate(ability.NewHandle()))
}

func TestHandle_ParseRoundTrip(t *testing.T) {
	h := ability.NewHandle()
	got, err := ability.ParseHandle(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.False(t, h.IsZero())
	assert.True(t, ability.Handle{}.IsZero())
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "heal.yaml"), []byte(`
id: heal
label: Heal
action_cost: 2
tags: [healing]
effects:
  - attribute: hit_points
    op: add
    dice: 1d8
    target: payload
`), 0o644))

	reg, err := ability.LoadDirectory(dir)
	require.NoError(t, err)
	a, ok := reg.Get("heal")
	require.True(t, ok)
	assert.Equal(t, 2, a.ActionCost)
	require.Len(t, a.Effects, 1)
	assert.Equal(t, ability.TargetPayload, a.Effects[0].Target)
	assert.Equal(t, "1d8", a.Effects[0].Dice.String())
	assert.Equal(t, []string{"heal"}, reg.IDs())
}

func TestDefinition_BuildRejects(t *testing.T) {
	tests := map[string]ability.Definition{
		"missing id": {},
		"negative":   {ID: "x", ActionCost: -1},
		"attribute":  {ID: "x", Effects: []ability.EffectDefinition{{Attribute: "luck"}}},
		"op":         {ID: "x", Effects: []ability.EffectDefinition{{Attribute: "hit_points", Op: "divide"}}},
		"target":     {ID: "x", Effects: []ability.EffectDefinition{{Attribute: "hit_points", Target: "everyone"}}},
		"dice":       {ID: "x", Effects: []ability.EffectDefinition{{Attribute: "hit_points", Dice: "3x"}}},
	}
	for name, def := range tests {
		_, err := def.Build()
		assert.Error(t, err, name)
	}
}
