package attribute

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/game/event"
)

// nearlyEqualTolerance matches the tolerance used when comparing old and new maxima.
const nearlyEqualTolerance = 1e-8

// Tags is gameplay tag metadata carried by an effect.
type Tags []string

// HitInfo describes where and how a hit landed.
type HitInfo struct {
	Location string
	Critical bool
}

// EffectContext carries the metadata of the effect that caused a modification.
type EffectContext struct {
	// SourceCharacter is the ID of the character that instigated the effect; empty if none.
	SourceCharacter string
	// SourceActor is the ID of the effect causer (a weapon, a hazard); defaults to SourceCharacter.
	SourceActor string
	SourceTags  Tags
	Tags        Tags
	Hit         HitInfo
}

// DamageEvent is the transient record of damage landing on a character.
type DamageEvent struct {
	Target          string
	Amount          float64
	Hit             HitInfo
	Tags            Tags
	SourceTags      Tags
	SourceCharacter string
	SourceActor     string
}

// HitPointsChange reports a hit point delta.
type HitPointsChange struct {
	Delta float64
	Tags  Tags
}

// SpeedChange reports a movement speed delta.
type SpeedChange struct {
	Delta float64
	Tags  Tags
}

// Change reports a raw value change of any attribute, local or replicated.
type Change struct {
	Name Name
	Old  float64
	New  float64
}

// Owner is the character that owns a Store. It runs game-specific reactions such as
// falling unconscious at 0 HP; the store never decides those consequences itself.
type Owner interface {
	HandleDamage(DamageEvent)
	HandleHitPointsChanged(HitPointsChange)
	HandleMoveSpeedChanged(SpeedChange)
}

// Events are the notifications a Store exposes to collaborators.
type Events struct {
	HitPointsChanged event.Bus[HitPointsChange]
	DamageApplied    event.Bus[DamageEvent]
	MoveSpeedChanged event.Bus[SpeedChange]
	Changed          event.Bus[Change]
}

// Store holds one character's attributes.
//
// Invariant: for every paired attribute, 0 <= current <= max after every write.
// Store is not safe for concurrent use; it is mutated on the simulation thread.
type Store struct {
	Events Events

	ownerID  string
	values   map[Name]float64
	owner    Owner
	bound    bool
	contract contract.Enforcer
	logger   *zap.Logger
}

// NewStore creates a Store for the character ownerID, initialized with neutral defaults.
//
// Precondition: logger must be non-nil.
// Postcondition: HitPoints == MaxHitPoints == 1; ability scores are 10; the store is unbound.
func NewStore(ownerID string, enforcer contract.Enforcer, logger *zap.Logger) *Store {
	s := &Store{
		ownerID:  ownerID,
		values:   make(map[Name]float64, len(all)),
		contract: enforcer,
		logger:   logger.Named("attributes").With(zap.String("character", ownerID)),
	}
	for _, n := range all {
		s.values[n] = 0
	}
	s.values[HitPoints] = 1
	s.values[MaxHitPoints] = 1
	s.values[Speed] = 1
	s.values[MaxSpeed] = 1
	s.values[ArmorClass] = 10
	s.values[ClassDifficultyClass] = 10
	for score := range abilityModifiers {
		s.values[score] = 10
	}
	return s
}

// Bind attaches the owning character. Until bound, maximum changes do not rescale
// the paired current value and no owner callbacks fire.
//
// Precondition: owner must be non-nil.
func (s *Store) Bind(owner Owner) {
	s.owner = owner
	s.bound = owner != nil
}

// OwnerID returns the ID of the character this store belongs to.
func (s *Store) OwnerID() string { return s.ownerID }

// Get returns the current value of n; unknown names read as 0.
func (s *Store) Get(n Name) float64 { return s.values[n] }

// Set writes v to n the way an effect with an override modifier would: a write to a
// paired maximum rescales its current value first, a write to a paired current value
// is clamped.
//
// Postcondition: returns an error for names outside the attribute set.
func (s *Store) Set(n Name, v float64) error {
	if !Valid(n) {
		return fmt.Errorf("unknown attribute %q", n)
	}
	if cur, ok := currentOf[n]; ok {
		s.SetMax(cur, v)
		return nil
	}
	s.write(n, s.clampToMax(n, v))
	return nil
}

// PreAttributeChange runs before the ability system writes newValue to n.
func (s *Store) PreAttributeChange(n Name, newValue float64) {
	if cur, ok := currentOf[n]; ok {
		s.SetMax(cur, newValue)
	}
}

// SetMax changes the maximum paired with attr and rescales attr to keep its
// current/max ratio. If the old maximum is not positive, attr becomes newMax.
//
// Precondition: attr has a paired maximum (HitPoints or Speed).
// Postcondition: no-op when newMax is nearly equal to the old maximum. When the store
// is unbound the maximum is written without rescaling. attr is within [0, max].
func (s *Store) SetMax(attr Name, newMax float64) {
	maxName, ok := maxOf[attr]
	if !s.contract.Check(ok, "SetMax requires an attribute with a paired maximum",
		zap.String("attribute", string(attr))) {
		return
	}

	oldMax := s.values[maxName]
	if math.Abs(oldMax-newMax) <= nearlyEqualTolerance {
		return
	}
	s.write(maxName, newMax)

	cur := s.values[attr]
	if s.bound {
		if oldMax > 0 {
			cur = cur * newMax / oldMax
		} else {
			cur = newMax
		}
	}
	s.write(attr, clamp(cur, 0, newMax))

	s.logger.Debug("maximum changed",
		zap.String("attribute", string(attr)),
		zap.Float64("old_max", oldMax),
		zap.Float64("new_max", newMax),
		zap.Float64("current", s.values[attr]),
	)
}

// ApplyDamage consumes amount of incoming damage.
//
// Precondition: amount >= 0.
// Postcondition: HitPoints == clamp(old - amount, 0, MaxHitPoints); TmpDamageIncoming == 0.
// For positive amounts the owner receives HandleDamage then HandleHitPointsChanged(-amount),
// and DamageApplied then HitPointsChanged are emitted. The reported delta is the raw
// amount, not the clamped change.
func (s *Store) ApplyDamage(amount float64, ctx EffectContext) {
	if !s.contract.Check(amount >= 0, "ApplyDamage requires a non-negative amount",
		zap.Float64("amount", amount)) {
		return
	}
	s.write(TmpDamageIncoming, 0)
	if amount <= 0 {
		return
	}

	oldHP := s.values[HitPoints]
	s.write(HitPoints, clamp(oldHP-amount, 0, s.values[MaxHitPoints]))

	s.logger.Debug("damage applied",
		zap.Float64("old_hit_points", oldHP),
		zap.Float64("damage", amount),
		zap.Float64("new_hit_points", s.values[HitPoints]),
	)

	sourceActor := ctx.SourceActor
	if sourceActor == "" {
		sourceActor = ctx.SourceCharacter
	}
	dmg := DamageEvent{
		Target:          s.ownerID,
		Amount:          amount,
		Hit:             ctx.Hit,
		Tags:            ctx.Tags,
		SourceTags:      ctx.SourceTags,
		SourceCharacter: ctx.SourceCharacter,
		SourceActor:     sourceActor,
	}
	hp := HitPointsChange{Delta: -amount, Tags: ctx.SourceTags}

	if s.owner != nil {
		s.owner.HandleDamage(dmg)
		s.owner.HandleHitPointsChanged(hp)
	}
	s.Events.DamageApplied.Emit(dmg)
	s.Events.HitPointsChanged.Emit(hp)
}

// ApplyRawHitPointChange handles a non-damage write to hit points (healing, direct
// modifiers): the value is re-clamped and delta is reported as-is.
//
// Postcondition: 0 <= HitPoints <= MaxHitPoints.
func (s *Store) ApplyRawHitPointChange(delta float64, tags Tags) {
	s.write(HitPoints, clamp(s.values[HitPoints], 0, s.values[MaxHitPoints]))

	change := HitPointsChange{Delta: delta, Tags: tags}
	if s.owner != nil {
		s.owner.HandleHitPointsChanged(change)
	}
	s.Events.HitPointsChanged.Emit(change)
}

// ApplySpeedChange reports a movement speed change.
func (s *Store) ApplySpeedChange(delta float64, tags Tags) {
	change := SpeedChange{Delta: delta, Tags: tags}
	if s.owner != nil {
		s.owner.HandleMoveSpeedChanged(change)
	}
	s.Events.MoveSpeedChanged.Emit(change)
}

// ApplyReplicated stores a value received from the authoritative server and emits
// Changed. It is the single replication path for every attribute.
func (s *Store) ApplyReplicated(n Name, value float64) {
	if !Replicated(n) {
		s.logger.Warn("ignoring replicated value for non-replicated attribute",
			zap.String("attribute", string(n)))
		return
	}
	s.write(n, value)
}

// RecalculateAbilityModifiers derives every ability modifier from its score.
func (s *Store) RecalculateAbilityModifiers() {
	for score, mod := range abilityModifiers {
		s.write(mod, AbilityModifier(s.values[score]))
	}
}

// Snapshot returns a copy of every replicated attribute value.
func (s *Store) Snapshot() map[Name]float64 {
	out := make(map[Name]float64, len(s.values))
	for n, v := range s.values {
		if Replicated(n) {
			out[n] = v
		}
	}
	return out
}

// Restore loads values previously taken with Snapshot, typically from storage.
// Unknown names are skipped; maxima are restored before their current values.
func (s *Store) Restore(values map[Name]float64) {
	for n, v := range values {
		if _, isMax := currentOf[n]; isMax && Valid(n) {
			s.write(n, v)
		}
	}
	for n, v := range values {
		if _, isMax := currentOf[n]; !isMax && Replicated(n) {
			s.write(n, s.clampToMax(n, v))
		}
	}
}

// AbilityModifier returns floor((score - 10) / 2).
func AbilityModifier(score float64) float64 {
	return math.Floor((score - 10) / 2)
}

func (s *Store) clampToMax(n Name, v float64) float64 {
	if m, ok := maxOf[n]; ok {
		return clamp(v, 0, s.values[m])
	}
	return v
}

func (s *Store) write(n Name, v float64) {
	old := s.values[n]
	s.values[n] = v
	if old != v {
		s.Events.Changed.Emit(Change{Name: n, Old: old, New: v})
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Max(lo, math.Min(v, hi))
}
