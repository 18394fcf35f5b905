package ai

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/character"
	"github.com/cory-johannsen/tactics/internal/game/command"
	"github.com/cory-johannsen/tactics/internal/game/encounter"
)

// commandSource is implemented by participants that can build their own commands.
type commandSource interface {
	NewCommand(abilityID string, payload *ability.Payload) (*command.Command, bool)
}

// domainHolder is implemented by participants driven by a planning domain.
type domainHolder interface {
	AIDomain() string
}

// Commander turns HTN plans into commands for the encounter runner.
type Commander struct {
	registry *Registry
	logger   *zap.Logger
}

// NewCommander returns a Commander planning with the domains in registry.
//
// Precondition: registry and logger must not be nil.
func NewCommander(registry *Registry, logger *zap.Logger) *Commander {
	return &Commander{registry: registry, logger: logger.Named("ai")}
}

// Controls reports whether p is an npc with a registered planning domain.
func (c *Commander) Controls(p encounter.Participant) bool {
	d, ok := p.(describer)
	if !ok || d.Kind() != character.KindNPC {
		return false
	}
	h, ok := p.(domainHolder)
	if !ok {
		return false
	}
	_, ok = c.registry.PlannerFor(h.AIDomain())
	return ok
}

// Plan implements encounter.Planner. Actions naming abilities p lacks are dropped.
func (c *Commander) Plan(rs *encounter.RuleSet, p encounter.Participant) []*command.Command {
	h, ok := p.(domainHolder)
	if !ok {
		return nil
	}
	planner, ok := c.registry.PlannerFor(h.AIDomain())
	if !ok {
		c.logger.Warn("no planner for domain", zap.String("character", p.ID()), zap.String("domain", h.AIDomain()))
		return nil
	}
	src, ok := p.(commandSource)
	if !ok {
		return nil
	}

	actions, err := planner.Plan(BuildWorldState(rs, p))
	if err != nil {
		c.logger.Error("planning failed", zap.String("character", p.ID()), zap.Error(err))
		return nil
	}
	var out []*command.Command
	for _, a := range actions {
		var payload *ability.Payload
		if a.Target != "" {
			payload = &ability.Payload{TargetID: a.Target}
		}
		cmd, ok := src.NewCommand(a.Ability, payload)
		if !ok {
			c.logger.Warn("planned ability not granted", zap.String("character", p.ID()), zap.String("ability", a.Ability))
			continue
		}
		out = append(out, cmd)
	}
	c.logger.Debug("planned turn", zap.String("character", p.ID()), zap.Int("commands", len(out)))
	return out
}
