// Package encounter runs turn-based tactical encounters: who takes part, in
// what order they act, whose turn it is and what their queued commands do.
package encounter

import (
	"errors"
	"time"

	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/command"
	"github.com/cory-johannsen/tactics/internal/game/event"
	"github.com/cory-johannsen/tactics/internal/game/initiative"
)

var (
	// ErrNotParticipant is returned for a character that is not on the encounter roster.
	ErrNotParticipant = errors.New("character is not an encounter participant")
	// ErrNotActiveCharacter is returned when ending the turn of a character whose turn it is not.
	ErrNotActiveCharacter = errors.New("character is not the active character")
	// ErrTurnInProgress is returned when starting a turn while another is in progress.
	ErrTurnInProgress = errors.New("a turn is already in progress")
	// ErrNotFound is returned by Engine lookups for unknown encounters.
	ErrNotFound = errors.New("encounter not found")
	// ErrExists is returned when registering an encounter ID twice.
	ErrExists = errors.New("encounter already exists")
)

// State is the turn state of a RuleSet.
type State int

const (
	// StateIdle means no character is taking a turn.
	StateIdle State = iota
	// StateTurnInProgress means exactly one character is taking a turn.
	StateTurnInProgress
)

func (s State) String() string {
	if s == StateTurnInProgress {
		return "turn_in_progress"
	}
	return "idle"
}

// Participant is a character taking part in an encounter.
type Participant interface {
	initiative.Character
	command.Character
	// StartTurn grants the per-turn action and reaction pools.
	StartTurn(actionPoints, reactionPoints int)
	// EndTurn closes the character's turn.
	EndTurn()
	Attributes() *attribute.Store
}

// Settings tune a RuleSet.
type Settings struct {
	ActionPointsPerTurn   int
	ReactionPointsPerTurn int
	// RosterCapacity is clamped to roster.MaxCapacity.
	RosterCapacity int
	TieBreak       initiative.TieBreak
	// TurnTimeout ends an overrunning turn when positive. Only the Engine honours it.
	TurnTimeout time.Duration
}

// DefaultSettings are the standard PF2 turn economy: three actions and one reaction.
func DefaultSettings() Settings {
	return Settings{
		ActionPointsPerTurn:   3,
		ReactionPointsPerTurn: 1,
		RosterCapacity:        32,
		TieBreak:              initiative.TieBreakInsertion,
	}
}

// Turn identifies one turn of one participant.
type Turn struct {
	EncounterID string
	Character   Participant
}

// Events are the RuleSet notifications.
type Events struct {
	TurnStarted event.Bus[Turn]
	TurnEnded   event.Bus[Turn]
	// CommandQueued carries every command accepted for later execution.
	CommandQueued event.Bus[*command.Command]
}
