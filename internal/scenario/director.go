package scenario

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/ai"
	"github.com/cory-johannsen/tactics/internal/game/character"
	"github.com/cory-johannsen/tactics/internal/game/command"
	"github.com/cory-johannsen/tactics/internal/game/encounter"
)

// Director plans every turn of a scenario: scripted actions for characters that
// have them, the AI commander for the rest.
type Director struct {
	ai      *ai.Commander
	actions map[string][]Action
	logger  *zap.Logger
}

// NewDirector returns a Director. commander may be nil when no AI is loaded.
//
// Precondition: cast and logger must not be nil.
func NewDirector(cast *Cast, commander *ai.Commander, logger *zap.Logger) *Director {
	return &Director{ai: commander, actions: cast.Actions, logger: logger.Named("director")}
}

// Controls reports whether the Director plans p's turns.
func (d *Director) Controls(p encounter.Participant) bool {
	if _, ok := d.actions[p.ID()]; ok {
		return true
	}
	return d.ai != nil && d.ai.Controls(p)
}

// Plan implements encounter.Planner.
func (d *Director) Plan(rs *encounter.RuleSet, p encounter.Participant) []*command.Command {
	actions, ok := d.actions[p.ID()]
	if !ok {
		if d.ai == nil {
			return nil
		}
		return d.ai.Plan(rs, p)
	}
	c, ok := p.(*character.Character)
	if !ok {
		return nil
	}
	var out []*command.Command
	for _, a := range actions {
		var payload *ability.Payload
		if a.Target != "" {
			target, ok := rs.Participant(a.Target)
			if !ok || !target.IsPlayable() {
				d.logger.Debug("scripted target unavailable", zap.String("character", p.ID()), zap.String("target", a.Target))
				continue
			}
			payload = &ability.Payload{TargetID: a.Target}
		}
		cmd, ok := c.NewCommand(a.Ability, payload)
		if !ok {
			d.logger.Warn("scripted ability not granted", zap.String("character", p.ID()), zap.String("ability", a.Ability))
			continue
		}
		out = append(out, cmd)
	}
	return out
}

// Outcome reports whether the encounter is decided: it is once at most one kind
// of character is still playable. winner is that kind, or "" when nobody is.
func Outcome(rs *encounter.RuleSet) (winner character.Kind, decided bool) {
	standing := make(map[character.Kind]bool)
	for _, p := range rs.Participants() {
		c, ok := p.(*character.Character)
		if !ok || !c.IsPlayable() {
			continue
		}
		standing[c.Kind()] = true
	}
	switch len(standing) {
	case 0:
		return "", true
	case 1:
		for k := range standing {
			return k, true
		}
	}
	return "", false
}
