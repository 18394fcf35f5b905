package attribute

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// ModOp is how a Modification combines with the current value.
type ModOp int

const (
	// OpAdditive adds Magnitude to the current value.
	OpAdditive ModOp = iota
	// OpMultiplicative multiplies the current value by Magnitude.
	OpMultiplicative
	// OpOverride replaces the current value with Magnitude.
	OpOverride
)

// String returns the YAML spelling of op.
func (op ModOp) String() string {
	switch op {
	case OpAdditive:
		return "add"
	case OpMultiplicative:
		return "multiply"
	case OpOverride:
		return "override"
	default:
		return fmt.Sprintf("ModOp(%d)", int(op))
	}
}

// ParseModOp parses the YAML spelling of a ModOp.
func ParseModOp(s string) (ModOp, error) {
	switch s {
	case "add", "":
		return OpAdditive, nil
	case "multiply":
		return OpMultiplicative, nil
	case "override":
		return OpOverride, nil
	default:
		return 0, fmt.Errorf("unknown modifier op %q", s)
	}
}

// Modification is one attribute write produced by an executing effect.
type Modification struct {
	Attribute Name
	Op        ModOp
	Magnitude float64
	Context   EffectContext
}

// Execute applies mod and then runs the post-change handling for the written
// attribute. It is the single entry point through which effects mutate a Store;
// every call handles exactly one changed attribute.
//
// Postcondition: returns an error for unknown attributes; the store is unchanged.
func (s *Store) Execute(mod Modification) error {
	if !Valid(mod.Attribute) {
		return fmt.Errorf("executing modification: unknown attribute %q", mod.Attribute)
	}

	old := s.values[mod.Attribute]
	var next float64
	switch mod.Op {
	case OpAdditive:
		next = old + mod.Magnitude
	case OpMultiplicative:
		next = old * mod.Magnitude
	case OpOverride:
		next = mod.Magnitude
	default:
		return fmt.Errorf("executing modification on %q: unknown op %d", mod.Attribute, mod.Op)
	}

	s.PreAttributeChange(mod.Attribute, next)
	if _, isMax := currentOf[mod.Attribute]; !isMax {
		s.write(mod.Attribute, s.clampToMax(mod.Attribute, next))
	}

	var delta float64
	if mod.Op == OpAdditive {
		delta = mod.Magnitude
	}

	s.logger.Debug("modification executed",
		zap.String("attribute", string(mod.Attribute)),
		zap.Stringer("op", mod.Op),
		zap.Float64("magnitude", mod.Magnitude),
		zap.Float64("old", old),
		zap.Float64("new", next),
	)

	switch mod.Attribute {
	case TmpDamageIncoming:
		s.ApplyDamage(math.Max(0, s.values[TmpDamageIncoming]), mod.Context)
	case HitPoints:
		s.ApplyRawHitPointChange(delta, mod.Context.SourceTags)
	case Speed:
		s.ApplySpeedChange(delta, mod.Context.SourceTags)
	}
	return nil
}
