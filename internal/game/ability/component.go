package ability

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/dice"
)

// Roller evaluates dice expressions for effect magnitudes.
type Roller interface {
	Roll(expr dice.Expression) dice.Result
}

// Hooks are the scripted activation checks and reactions for abilities.
type Hooks interface {
	CanActivate(abilityID, characterID string) bool
	OnActivate(abilityID, characterID, targetID string)
}

// Resolver returns the attribute store of a character by ID.
type Resolver func(characterID string) (*attribute.Store, bool)

// Component is the System of one character: it holds the granted specs and runs
// activations against the character's attribute store.
//
// Component is not safe for concurrent use.
type Component struct {
	owner      *attribute.Store
	roller     Roller
	hooks      Hooks
	resolve    Resolver
	specs      map[Handle]*Spec
	order      []Handle
	generation uint64
	logger     *zap.Logger
}

// Option configures a Component.
type Option func(*Component)

// WithHooks installs scripted activation hooks.
func WithHooks(h Hooks) Option { return func(c *Component) { c.hooks = h } }

// WithResolver installs the lookup used for payload-targeted effects.
func WithResolver(r Resolver) Option { return func(c *Component) { c.resolve = r } }

// NewComponent returns a Component acting on owner.
//
// Precondition: owner, roller and logger are non-nil.
func NewComponent(owner *attribute.Store, roller Roller, logger *zap.Logger, opts ...Option) *Component {
	c := &Component{
		owner:  owner,
		roller: roller,
		specs:  make(map[Handle]*Spec),
		logger: logger.Named("abilities").With(zap.String("character", owner.OwnerID())),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Grant adds a at level and returns its handle.
func (c *Component) Grant(a *Ability, level int) Handle {
	h := NewHandle()
	c.specs[h] = &Spec{Handle: h, Ability: a, Level: level}
	c.order = append(c.order, h)
	c.logger.Debug("ability granted", zap.String("ability", a.ID), zap.Stringer("handle", h))
	return h
}

// Revoke removes the spec behind h and advances the generation.
func (c *Component) Revoke(h Handle) bool {
	if _, ok := c.specs[h]; !ok {
		return false
	}
	delete(c.specs, h)
	for i, o := range c.order {
		if o == h {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.generation++
	c.logger.Debug("ability revoked", zap.Stringer("handle", h))
	return true
}

// Specs returns the granted specs in grant order.
func (c *Component) Specs() []*Spec {
	out := make([]*Spec, 0, len(c.order))
	for _, h := range c.order {
		out = append(out, c.specs[h])
	}
	return out
}

// HandleFor returns the handle of the first granted spec for abilityID.
func (c *Component) HandleFor(abilityID string) (Handle, bool) {
	for _, h := range c.order {
		if c.specs[h].Ability.ID == abilityID {
			return h, true
		}
	}
	return Handle{}, false
}

// FindSpec implements System.
func (c *Component) FindSpec(h Handle) (*Spec, bool) {
	s, ok := c.specs[h]
	return s, ok
}

// Generation implements System.
func (c *Component) Generation() uint64 { return c.generation }

// TryActivate implements System.
func (c *Component) TryActivate(h Handle) bool {
	return c.TryActivateWithPayload(h, nil)
}

// TryActivateWithPayload activates the ability behind h.
//
// Postcondition: returns false without side effects when the spec is missing, the
// owner lacks the action points, or a can_activate hook vetoes. Otherwise the action
// cost is spent, every effect is executed in order and the on_activate hook runs.
func (c *Component) TryActivateWithPayload(h Handle, payload *Payload) bool {
	spec, ok := c.specs[h]
	if !ok {
		c.logger.Warn("no ability matches handle", zap.Stringer("handle", h))
		return false
	}
	a := spec.Ability
	ownerID := c.owner.OwnerID()

	if c.owner.Get(attribute.EncActionPoints) < float64(a.ActionCost) {
		c.logger.Debug("activation blocked: insufficient action points",
			zap.String("ability", a.ID),
			zap.Int("cost", a.ActionCost),
			zap.Float64("available", c.owner.Get(attribute.EncActionPoints)),
		)
		return false
	}
	if c.hooks != nil && !c.hooks.CanActivate(a.ID, ownerID) {
		c.logger.Debug("activation blocked by script", zap.String("ability", a.ID))
		return false
	}

	if a.ActionCost > 0 {
		_ = c.owner.Execute(attribute.Modification{
			Attribute: attribute.EncActionPoints,
			Op:        attribute.OpAdditive,
			Magnitude: -float64(a.ActionCost),
		})
	}

	targetID := ""
	if payload != nil {
		targetID = payload.TargetID
	}
	ctx := attribute.EffectContext{SourceCharacter: ownerID, SourceTags: a.Tags}
	for _, e := range a.Effects {
		c.apply(a, e, targetID, ctx)
	}
	if c.hooks != nil {
		c.hooks.OnActivate(a.ID, ownerID, targetID)
	}
	c.logger.Debug("ability activated", zap.String("ability", a.ID), zap.String("target", targetID))
	return true
}

func (c *Component) apply(a *Ability, e Effect, targetID string, ctx attribute.EffectContext) {
	store := c.owner
	if e.Target == TargetPayload {
		var ok bool
		if targetID == "" || c.resolve == nil {
			ok = false
		} else {
			store, ok = c.resolve(targetID)
		}
		if !ok {
			c.logger.Warn("effect target unresolved; skipping",
				zap.String("ability", a.ID),
				zap.String("target", targetID),
				zap.String("attribute", string(e.Attribute)),
			)
			return
		}
	}

	magnitude := e.Magnitude
	if e.Dice != nil {
		magnitude += float64(c.roller.Roll(*e.Dice).Total())
	}
	if err := store.Execute(attribute.Modification{
		Attribute: e.Attribute,
		Op:        e.Op,
		Magnitude: magnitude,
		Context:   ctx,
	}); err != nil {
		c.logger.Error("effect failed", zap.String("ability", a.ID), zap.Error(err))
	}
}
