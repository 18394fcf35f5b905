// Package ability is the activation boundary between commands and the rules that
// decide whether an ability may run right now.
package ability

//go:generate mockgen -destination=mock/mock_system.go -package=mockability -source=system.go

import "github.com/google/uuid"

// Handle identifies one granted ability on one character.
type Handle uuid.UUID

// NewHandle returns a fresh random Handle.
func NewHandle() Handle { return Handle(uuid.New()) }

// ParseHandle parses the string form of a Handle.
func ParseHandle(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	return Handle(id), err
}

func (h Handle) String() string { return uuid.UUID(h).String() }

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return uuid.UUID(h) == uuid.Nil }

// Payload carries the target chosen when a command was issued.
type Payload struct {
	TargetID string `json:"target_id,omitempty"`
}

// Spec is a granted ability: the handle, the ability and the level it was granted at.
type Spec struct {
	Handle  Handle
	Ability *Ability
	Level   int
}

// System activates granted abilities for one character.
type System interface {
	// TryActivate attempts to run the ability behind h now. False means the
	// activation was refused, for example when the owner lacks the action points.
	TryActivate(h Handle) bool
	// FindSpec resolves h to the granted ability.
	FindSpec(h Handle) (*Spec, bool)
	// Generation changes every time a spec is revoked, so holders of a resolved
	// Spec know when to look it up again.
	Generation() uint64
}

// PayloadActivator is implemented by systems that accept a target payload.
type PayloadActivator interface {
	TryActivateWithPayload(h Handle, payload *Payload) bool
}
