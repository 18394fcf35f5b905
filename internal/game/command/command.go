// Package command models queued ability invocations and the per-character queue
// that holds them until the character's turn.
package command

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/ability"
)

// ExecuteResult is the outcome of trying to run a command now.
type ExecuteResult int

const (
	// ExecuteNone means there was nothing to execute.
	ExecuteNone ExecuteResult = iota
	// ExecuteActivated means the ability ran.
	ExecuteActivated
	// ExecuteBlocked means the ability framework refused to run it at this time.
	ExecuteBlocked
)

func (r ExecuteResult) String() string {
	switch r {
	case ExecuteNone:
		return "none"
	case ExecuteActivated:
		return "activated"
	case ExecuteBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("ExecuteResult(%d)", int(r))
	}
}

// ExecuteOrQueueResult is the outcome of handing a command to the active rule set.
type ExecuteOrQueueResult int

const (
	ExecuteOrQueueNone ExecuteOrQueueResult = iota
	// ExecutedImmediately means the command ran without being queued.
	ExecutedImmediately
	// Queued means the command was placed in the character's queue.
	Queued
	// Refused means the rule set would neither run nor queue the command.
	Refused
)

func (r ExecuteOrQueueResult) String() string {
	switch r {
	case ExecuteOrQueueNone:
		return "none"
	case ExecutedImmediately:
		return "executed_immediately"
	case Queued:
		return "queued"
	case Refused:
		return "refused"
	default:
		return fmt.Sprintf("ExecuteOrQueueResult(%d)", int(r))
	}
}

// Character is the view of a character a command needs.
type Character interface {
	ID() string
	// AbilitySystem may return nil for characters without abilities.
	AbilitySystem() ability.System
	// CommandQueue may return nil for characters that cannot queue commands.
	CommandQueue() *Queue
}

// Command is one pending invocation of an ability by a character.
type Command struct {
	id      uuid.UUID
	target  Character
	handle  ability.Handle
	payload *ability.Payload
	logger  *zap.Logger

	cached    *ability.Spec
	cachedGen uint64
}

// New returns a Command for target to activate the ability behind h.
//
// Precondition: target and logger are non-nil; payload may be nil.
func New(target Character, h ability.Handle, payload *ability.Payload, logger *zap.Logger) *Command {
	return NewWithID(uuid.New(), target, h, payload, logger)
}

// NewWithID is New with a known ID, used when rebuilding commands from a replicated snapshot.
func NewWithID(id uuid.UUID, target Character, h ability.Handle, payload *ability.Payload, logger *zap.Logger) *Command {
	return &Command{
		id:      id,
		target:  target,
		handle:  h,
		payload: payload,
		logger:  logger.Named("command").With(zap.String("character", target.ID())),
	}
}

// ID returns the command's unique ID.
func (c *Command) ID() uuid.UUID { return c.id }

// Target returns the character that will perform the command.
func (c *Command) Target() Character { return c.target }

// Handle returns the ability handle the command activates.
func (c *Command) Handle() ability.Handle { return c.handle }

// Payload returns the command's payload, or nil.
func (c *Command) Payload() *ability.Payload { return c.payload }

// Spec resolves the command's ability spec, reusing the cached result until the
// ability system reports a new generation.
//
// Postcondition: (nil, false) when the character has no ability system or the
// handle no longer resolves.
func (c *Command) Spec() (*ability.Spec, bool) {
	sys := c.target.AbilitySystem()
	if sys == nil {
		c.logger.Error("character has no ability system", zap.Stringer("command", c.id))
		return nil, false
	}
	gen := sys.Generation()
	if c.cached != nil && c.cachedGen == gen {
		return c.cached, true
	}
	spec, ok := sys.FindSpec(c.handle)
	if !ok {
		c.cached = nil
		c.logger.Warn("no ability matches handle", zap.Stringer("handle", c.handle))
		return nil, false
	}
	c.cached, c.cachedGen = spec, gen
	return spec, true
}

// Ability returns the resolved ability, or nil.
func (c *Command) Ability() *ability.Ability {
	spec, ok := c.Spec()
	if !ok || spec.Ability == nil {
		return nil
	}
	return spec.Ability
}

// Label returns the ability label, or "" when the ability does not resolve.
func (c *Command) Label() string {
	if a := c.Ability(); a != nil {
		return a.Label
	}
	return ""
}

// Description returns the ability description, or "".
func (c *Command) Description() string {
	if a := c.Ability(); a != nil {
		return a.Description
	}
	return ""
}

// AttemptExecuteImmediately asks the ability system to activate the command now.
//
// Postcondition: ExecuteActivated when activation succeeded, ExecuteBlocked otherwise.
func (c *Command) AttemptExecuteImmediately() ExecuteResult {
	sys := c.target.AbilitySystem()
	if sys == nil {
		c.logger.Error("character has no ability system", zap.Stringer("command", c.id))
		return ExecuteBlocked
	}

	var activated bool
	if pa, ok := sys.(ability.PayloadActivator); ok && c.payload != nil {
		activated = pa.TryActivateWithPayload(c.handle, c.payload)
	} else {
		activated = sys.TryActivate(c.handle)
	}

	result := ExecuteBlocked
	if activated {
		result = ExecuteActivated
	}
	c.logger.Debug("execute immediately", zap.Stringer("command", c), zap.Stringer("result", result))
	return result
}

// Cancel removes the command from its character's queue.
func (c *Command) Cancel() {
	q := c.target.CommandQueue()
	if q == nil {
		c.logger.Error("character has no command queue; unable to cancel command", zap.Stringer("command", c))
		return
	}
	if q.Remove(c) {
		c.logger.Debug("command cancelled", zap.Stringer("command", c))
	}
}

// String identifies the command in logs as label[ability.id].
func (c *Command) String() string {
	if c == nil {
		return "<nil>"
	}
	abilityID := "null"
	label := ""
	if c.cached != nil && c.cached.Ability != nil {
		abilityID = c.cached.Ability.ID
		label = c.cached.Ability.Label
	}
	return fmt.Sprintf("%s[%s.%s]", label, abilityID, c.id)
}
