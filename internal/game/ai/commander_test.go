package ai_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/ai"
	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/character"
	"github.com/cory-johannsen/tactics/internal/game/command"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/encounter"
	"github.com/cory-johannsen/tactics/internal/scripting"
)

func skirmish(t *testing.T) (*encounter.RuleSet, *character.Character, *character.Character) {
	t.Helper()
	abilities := ability.NewRegistry()
	abilities.Register(&ability.Ability{ID: "stride", Label: "Stride", ActionCost: 1})
	abilities.Register(&ability.Ability{ID: "raise_shield", Label: "Raise a Shield", ActionCost: 1})
	abilities.Register(&ability.Ability{
		ID: "strike", Label: "Strike", ActionCost: 1,
		Effects: []ability.Effect{{
			Attribute: attribute.TmpDamageIncoming, Op: attribute.OpAdditive, Magnitude: 5, Target: ability.TargetPayload,
		}},
	})
	dir := character.NewDirectory()
	deps := character.Deps{
		Abilities:  abilities,
		Conditions: condition.NewRegistry(),
		Roller:     dice.NewRoller(dice.SeededSource(3), zap.NewNop()),
		Resolver:   dir.Resolve,
		Contract:   contract.New(false, nil),
		Logger:     zap.NewNop(),
	}
	goblin, err := character.NewWithID("goblin-1", &character.Template{
		ID: "goblin", Name: "Goblin Warrior", Kind: character.KindNPC, MaxHitPoints: 6,
		Abilities: []string{"stride", "strike", "raise_shield"}, AIDomain: "goblin_skirmisher",
	}, deps)
	require.NoError(t, err)
	hero, err := character.NewWithID("hero-1", &character.Template{
		ID: "fighter", Name: "Valeros", Kind: character.KindPlayer, MaxHitPoints: 20,
		Abilities: []string{"stride", "strike"},
	}, deps)
	require.NoError(t, err)
	dir.Add(goblin)
	dir.Add(hero)

	rs := encounter.NewRuleSet("enc", encounter.DefaultSettings(), dice.NewRoller(dice.SeededSource(3), zap.NewNop()),
		contract.New(false, nil), zap.NewNop())
	require.NoError(t, rs.AddCharacter(goblin))
	require.NoError(t, rs.AddCharacter(hero))
	require.NoError(t, rs.SetCharacterInitiative(goblin, 20))
	require.NoError(t, rs.SetCharacterInitiative(hero, 10))
	return rs, goblin, hero
}

func TestBuildWorldState(t *testing.T) {
	rs, goblin, hero := skirmish(t)
	goblin.StartTurn(3, 1)

	ws := ai.BuildWorldState(rs, goblin)
	require.NotNil(t, ws.Self)
	assert.Equal(t, "goblin-1", ws.Self.ID)
	assert.Equal(t, "Goblin Warrior", ws.Self.Name)
	assert.Equal(t, "npc", ws.Self.Kind)
	assert.Equal(t, 20, ws.Self.Initiative)
	assert.Equal(t, 3.0, ws.ActionPoints)
	assert.Equal(t, "enc", ws.EncounterID)
	require.Len(t, ws.Combatants, 2)
	assert.Equal(t, hero.ID(), ws.Combatants[1].ID)
	assert.Equal(t, 20.0, ws.Combatants[1].MaxHP)
	assert.Equal(t, hero.ID(), ws.NearestEnemy().ID)
}

func TestCommander_DrivesNPCTurn(t *testing.T) {
	rs, goblin, hero := skirmish(t)

	host := scripting.NewHost(scripting.Callbacks{}, 0, zap.NewNop())
	t.Cleanup(host.Close)
	require.NoError(t, host.LoadString(`
function has_enemy(self_id, encounter_id)
  return encounter_id == "enc"
end
`))
	reg := ai.NewRegistry()
	require.NoError(t, reg.Register(goblinDomain(), host))
	cmdr := ai.NewCommander(reg, zap.NewNop())

	assert.True(t, cmdr.Controls(goblin))
	assert.False(t, cmdr.Controls(hero))

	runner := encounter.NewRunner(rs, cmdr, cmdr.Controls, zap.NewNop())
	report, err := runner.PlayTurn()
	require.NoError(t, err)
	assert.Equal(t, goblin, report.Character)
	require.Len(t, report.Commands, 2)
	assert.Equal(t, "stride", report.Commands[0].Command.Ability().ID)
	assert.Equal(t, "strike", report.Commands[1].Command.Ability().ID)
	for _, r := range report.Commands {
		assert.Equal(t, command.ExecuteActivated, r.Result)
	}
	assert.Equal(t, 15.0, hero.Attributes().Get(attribute.HitPoints))

	// The hero is not planned for.
	report, err = runner.PlayTurn()
	require.NoError(t, err)
	assert.Equal(t, hero, report.Character)
	assert.Empty(t, report.Commands)
}

func TestCommander_DropsUngrantedAbilities(t *testing.T) {
	rs, _, hero := skirmish(t)
	reg := ai.NewRegistry()
	domain := goblinDomain()
	domain.ID = "hero_domain"
	require.NoError(t, reg.Register(domain, &mockScriptCaller{}))
	cmdr := ai.NewCommander(reg, zap.NewNop())

	// The hero has no raise_shield and no planning domain.
	assert.Empty(t, cmdr.Plan(rs, hero))
}
