package ai

import (
	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/character"
	"github.com/cory-johannsen/tactics/internal/game/encounter"
)

// describer is implemented by participants that carry a display name and kind.
type describer interface {
	Name() string
	Kind() character.Kind
}

// BuildWorldState constructs a WorldState snapshot of rs for self.
//
// Precondition: rs and self must not be nil.
// Postcondition: ws.Self.ID == self.ID(); every participant is represented, those
// with initiative first in initiative order.
func BuildWorldState(rs *encounter.RuleSet, self encounter.Participant) *WorldState {
	ws := &WorldState{
		EncounterID:  rs.ID(),
		ActionPoints: self.Attributes().Get(attribute.EncActionPoints),
	}
	seen := make(map[string]bool)
	add := func(p encounter.Participant) {
		if seen[p.ID()] {
			return
		}
		seen[p.ID()] = true
		c := combatantState(rs, p)
		if p.ID() == self.ID() {
			ws.Self = c
		}
		ws.Combatants = append(ws.Combatants, c)
	}
	for _, p := range rs.CharactersInInitiativeOrder() {
		add(p)
	}
	for _, p := range rs.Participants() {
		add(p)
	}
	if ws.Self == nil {
		ws.Self = combatantState(rs, self)
	}
	return ws
}

func combatantState(rs *encounter.RuleSet, p encounter.Participant) *CombatantState {
	s := p.Attributes()
	c := &CombatantState{
		ID:       p.ID(),
		Name:     p.ID(),
		Kind:     string(character.KindNPC),
		HP:       s.Get(attribute.HitPoints),
		MaxHP:    s.Get(attribute.MaxHitPoints),
		AC:       s.Get(attribute.ArmorClass),
		Playable: p.IsPlayable(),
	}
	if d, ok := p.(describer); ok {
		c.Name = d.Name()
		c.Kind = string(d.Kind())
	}
	c.Initiative, _ = rs.InitiativeOf(p)
	return c
}
