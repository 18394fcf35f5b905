// Package character assembles the attribute store, abilities, command queue and
// conditions of one combatant and reacts to what happens to it.
package character

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/command"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/contract"
)

// Kind distinguishes player characters from non-player characters.
type Kind string

const (
	KindPlayer Kind = "player"
	KindNPC    Kind = "npc"
)

// Character is one combatant.
//
// Character is not safe for concurrent use; it is driven from the simulation thread.
type Character struct {
	id         string
	name       string
	kind       Kind
	level      int
	templateID string
	aiDomain   string

	store      *attribute.Store
	abilities  *ability.Component
	queue      *command.Queue
	conditions *condition.Set
	condDefs   *condition.Registry
	logger     *zap.Logger
}

// Deps are the shared collaborators a Character is built with.
type Deps struct {
	Abilities  *ability.Registry
	Conditions *condition.Registry
	Roller     ability.Roller
	// Hooks and Resolver are optional.
	Hooks    ability.Hooks
	Resolver ability.Resolver
	Contract contract.Enforcer
	Logger   *zap.Logger
}

// New builds a Character from tmpl with a fresh ID.
//
// Precondition: deps.Abilities, deps.Conditions, deps.Roller and deps.Logger are non-nil.
// Postcondition: every ability the template names is granted; unknown abilities are an error.
func New(tmpl *Template, deps Deps) (*Character, error) {
	return NewWithID(uuid.NewString(), tmpl, deps)
}

// NewWithID is New with a caller-chosen ID.
func NewWithID(id string, tmpl *Template, deps Deps) (*Character, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger.Named("character").With(zap.String("character", id), zap.String("name", tmpl.Name))
	c := &Character{
		id:         id,
		name:       tmpl.Name,
		kind:       tmpl.Kind,
		level:      tmpl.Level,
		templateID: tmpl.ID,
		aiDomain:   tmpl.AIDomain,
		conditions: condition.NewSet(),
		condDefs:   deps.Conditions,
		logger:     logger,
	}
	c.store = attribute.NewStore(id, deps.Contract, deps.Logger)
	c.store.Bind(c)
	if err := tmpl.apply(c.store); err != nil {
		return nil, fmt.Errorf("character %q: %w", tmpl.ID, err)
	}

	var opts []ability.Option
	if deps.Hooks != nil {
		opts = append(opts, ability.WithHooks(deps.Hooks))
	}
	if deps.Resolver != nil {
		opts = append(opts, ability.WithResolver(deps.Resolver))
	}
	c.abilities = ability.NewComponent(c.store, deps.Roller, deps.Logger, opts...)
	for _, abilityID := range tmpl.Abilities {
		a, ok := deps.Abilities.Get(abilityID)
		if !ok {
			return nil, fmt.Errorf("character %q: unknown ability %q", tmpl.ID, abilityID)
		}
		c.abilities.Grant(a, tmpl.Level)
	}
	c.queue = command.NewQueue(id, deps.Contract, deps.Logger)
	return c, nil
}

// ID implements roster.Character and command.Character.
func (c *Character) ID() string { return c.id }

// Name returns the display name.
func (c *Character) Name() string { return c.name }

// Kind returns player or npc.
func (c *Character) Kind() Kind { return c.kind }

// Level returns the character level.
func (c *Character) Level() int { return c.level }

// TemplateID returns the ID of the template the character was built from.
func (c *Character) TemplateID() string { return c.templateID }

// AIDomain returns the planning domain that drives the character, or "".
func (c *Character) AIDomain() string { return c.aiDomain }

// Attributes returns the attribute store.
func (c *Character) Attributes() *attribute.Store { return c.store }

// Abilities returns the ability component.
func (c *Character) Abilities() *ability.Component { return c.abilities }

// AbilitySystem implements command.Character.
func (c *Character) AbilitySystem() ability.System { return c.abilities }

// CommandQueue implements command.Character.
func (c *Character) CommandQueue() *command.Queue { return c.queue }

// Conditions returns the active conditions.
func (c *Character) Conditions() *condition.Set { return c.conditions }

// IsPlayable reports whether the character can take a turn.
func (c *Character) IsPlayable() bool {
	return !c.conditions.Incapacitated()
}

// IsDead reports whether the dead condition is active.
func (c *Character) IsDead() bool { return c.conditions.Has(condition.Dead) }

// NewCommand returns a command for this character to activate the ability with abilityID.
//
// Postcondition: false when the ability is not granted.
func (c *Character) NewCommand(abilityID string, payload *ability.Payload) (*command.Command, bool) {
	h, ok := c.abilities.HandleFor(abilityID)
	if !ok {
		return nil, false
	}
	return command.New(c, h, payload, c.logger), true
}

// ApplyCondition applies the registered condition id.
func (c *Character) ApplyCondition(id string, stacks, turns int) error {
	def, ok := c.condDefs.Get(id)
	if !ok {
		return fmt.Errorf("unknown condition %q", id)
	}
	c.conditions.Apply(def, stacks, turns)
	c.logger.Debug("condition applied", zap.String("condition", id), zap.Int("stacks", c.conditions.Stacks(id)))
	return nil
}

// HandleDamage implements attribute.Owner.
func (c *Character) HandleDamage(e attribute.DamageEvent) {
	c.logger.Info("damaged",
		zap.Float64("amount", e.Amount),
		zap.String("source", e.SourceCharacter),
		zap.Bool("critical", e.Hit.Critical),
		zap.Float64("hit_points", c.store.Get(attribute.HitPoints)),
	)
}

// HandleHitPointsChanged implements attribute.Owner. A character at 0 hit points
// falls unconscious; healing above 0 wakes it.
func (c *Character) HandleHitPointsChanged(change attribute.HitPointsChange) {
	hp := c.store.Get(attribute.HitPoints)
	switch {
	case hp <= 0 && !c.conditions.Has(condition.Unconscious):
		if err := c.ApplyCondition(condition.Unconscious, 1, 0); err != nil {
			c.logger.Error("applying unconscious", zap.Error(err))
			return
		}
		c.logger.Info("fell unconscious")
	case hp > 0 && c.conditions.Has(condition.Unconscious) && !c.IsDead():
		c.conditions.Remove(condition.Unconscious)
		c.logger.Info("regained consciousness", zap.Float64("hit_points", hp))
	}
}

// HandleMoveSpeedChanged implements attribute.Owner.
func (c *Character) HandleMoveSpeedChanged(change attribute.SpeedChange) {
	c.logger.Debug("speed changed", zap.Float64("delta", change.Delta), zap.Float64("speed", c.store.Get(attribute.Speed)))
}

// StartTurn grants the per-turn resource pool, less any condition penalties.
func (c *Character) StartTurn(actionPoints, reactionPoints int) {
	actions := max(actionPoints-c.conditions.ActionPenalty(), 0)
	c.overrideResource(attribute.EncActionPoints, float64(actions))
	c.overrideResource(attribute.EncReactionPoints, float64(reactionPoints))
	c.logger.Debug("turn started", zap.Int("action_points", actions), zap.Int("reaction_points", reactionPoints))
}

// EndTurn spends any unused actions and counts down turn-limited conditions.
func (c *Character) EndTurn() {
	c.overrideResource(attribute.EncActionPoints, 0)
	if expired := c.conditions.EndTurn(); len(expired) > 0 {
		c.logger.Debug("conditions expired", zap.Strings("conditions", expired))
	}
}

func (c *Character) overrideResource(name attribute.Name, v float64) {
	mod := attribute.Modification{Attribute: name, Op: attribute.OpOverride, Magnitude: v}
	if err := c.store.Execute(mod); err != nil {
		c.logger.Error("turn resource update failed", zap.String("attribute", string(name)), zap.Error(err))
	}
}
