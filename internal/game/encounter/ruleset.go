package encounter

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/command"
	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/initiative"
	"github.com/cory-johannsen/tactics/internal/game/roster"
)

// Roller rolls dice for initiative checks.
type Roller interface {
	Roll(expr dice.Expression) dice.Result
}

// RuleSet is the encounter mode-of-play rule set: a roster of participants, their
// initiative order and the character whose turn is in progress.
//
// RuleSet is not safe for concurrent use; the Engine serialises access to it.
type RuleSet struct {
	Events Events

	id         string
	settings   Settings
	roster     *roster.Queue
	initiative *initiative.Queue
	active     Participant
	sequence   uint64
	roller     Roller
	contract   contract.Enforcer
	logger     *zap.Logger
}

// NewRuleSet returns an idle encounter with no participants.
//
// Precondition: roller and logger are non-nil.
func NewRuleSet(id string, settings Settings, roller Roller, enforcer contract.Enforcer, logger *zap.Logger) *RuleSet {
	logger = logger.Named("encounter").With(zap.String("encounter", id))
	rs := &RuleSet{
		id:       id,
		settings: settings,
		roller:   roller,
		contract: enforcer,
		logger:   logger,
	}
	rs.roster = roster.NewQueue(id, settings.RosterCapacity, enforcer, logger)
	rs.initiative = initiative.NewQueue(settings.TieBreak, func(c initiative.Character) bool {
		return rs.roster.Contains(c)
	}, enforcer, logger)
	return rs
}

// ID returns the encounter ID.
func (rs *RuleSet) ID() string { return rs.id }

// Settings returns the settings the rule set was built with.
func (rs *RuleSet) Settings() Settings { return rs.settings }

// Roster exposes the participant roster for observers.
func (rs *RuleSet) Roster() *roster.Queue { return rs.roster }

// State reports whether a turn is in progress.
func (rs *RuleSet) State() State {
	if rs.active != nil {
		return StateTurnInProgress
	}
	return StateIdle
}

// Participants returns the participants in roster order.
func (rs *RuleSet) Participants() []Participant {
	chars := rs.roster.Characters()
	out := make([]Participant, 0, len(chars))
	for _, c := range chars {
		out = append(out, c.(Participant))
	}
	return out
}

// Participant returns the participant with id.
func (rs *RuleSet) Participant(id string) (Participant, bool) {
	for _, c := range rs.roster.Characters() {
		if c.ID() == id {
			return c.(Participant), true
		}
	}
	return nil, false
}

// AddCharacter puts p on the roster. Adding a participant twice is a no-op.
//
// Postcondition: roster.ErrCapacityExceeded when the roster is full.
func (rs *RuleSet) AddCharacter(p Participant) error {
	added, err := rs.roster.Add(p)
	if err != nil {
		return fmt.Errorf("adding %s to encounter %s: %w", p.ID(), rs.id, err)
	}
	if added {
		rs.logger.Info("character joined encounter", zap.String("character", p.ID()))
	}
	return nil
}

// RemoveCharacter takes p out of the encounter, cancelling its queued commands and
// forgetting its initiative. Removing the active character ends its turn.
//
// Precondition: p is a participant.
func (rs *RuleSet) RemoveCharacter(p Participant) error {
	if err := rs.requireParticipant(p, "remove character"); err != nil {
		return err
	}
	if rs.active == p {
		rs.finishTurn(p)
	}
	if q := p.CommandQueue(); q != nil {
		q.Clear()
	}
	rs.initiative.ClearInitiative(p)
	rs.roster.Remove(p)
	rs.logger.Info("character left encounter", zap.String("character", p.ID()))
	return nil
}

// HavePlayableCharacters reports whether any character with initiative can still act.
func (rs *RuleSet) HavePlayableCharacters() bool {
	return rs.initiative.HavePlayableCharacters()
}

// SetCharacterInitiative assigns p's initiative score.
//
// Precondition: p is a participant.
func (rs *RuleSet) SetCharacterInitiative(p Participant, score int) error {
	if err := rs.requireParticipant(p, "set initiative"); err != nil {
		return err
	}
	rs.initiative.SetInitiative(p, score)
	return nil
}

// RollInitiative rolls a perception check (1d20 + perception modifier) for p and
// uses the total as its initiative score.
//
// Precondition: p is a participant.
func (rs *RuleSet) RollInitiative(p Participant) (int, error) {
	if err := rs.requireParticipant(p, "roll initiative"); err != nil {
		return 0, err
	}
	roll := rs.roller.Roll(dice.D20)
	score := roll.Total() + int(p.Attributes().Get(attribute.PerceptionModifier))
	rs.initiative.SetInitiative(p, score)
	rs.logger.Info("initiative rolled",
		zap.String("character", p.ID()),
		zap.Stringer("roll", roll),
		zap.Int("initiative", score),
	)
	return score, nil
}

// RollInitiativeForAll rolls initiative for every participant without a score.
func (rs *RuleSet) RollInitiativeForAll() {
	for _, p := range rs.Participants() {
		if !rs.initiative.IsInitiativeSet(p) {
			_, _ = rs.RollInitiative(p)
		}
	}
}

// IsInitiativeSetForCharacter reports whether p has an initiative score.
func (rs *RuleSet) IsInitiativeSetForCharacter(p Participant) bool {
	return rs.initiative.IsInitiativeSet(p)
}

// InitiativeOf returns p's initiative score.
func (rs *RuleSet) InitiativeOf(p Participant) (int, bool) {
	return rs.initiative.Score(p)
}

// ClearInitiativeForCharacter forgets p's initiative score.
func (rs *RuleSet) ClearInitiativeForCharacter(p Participant) {
	rs.initiative.ClearInitiative(p)
}

// ClearInitiativeForAllCharacters forgets every initiative score.
func (rs *RuleSet) ClearInitiativeForAllCharacters() {
	rs.initiative.ClearAll()
}

// NextCharacterByInitiative advances to the next playable participant in
// initiative order, wrapping to the top after the last.
//
// Postcondition: nil when no participant with initiative can act.
func (rs *RuleSet) NextCharacterByInitiative() Participant {
	c := rs.initiative.Next()
	if c == nil {
		return nil
	}
	return c.(Participant)
}

// CharactersInInitiativeOrder returns the participants with a score, highest first.
func (rs *RuleSet) CharactersInInitiativeOrder() []Participant {
	ordered := rs.initiative.Ordered()
	out := make([]Participant, len(ordered))
	for i, c := range ordered {
		out[i] = c.(Participant)
	}
	return out
}

// ActiveCharacter returns the participant whose turn is in progress, or nil when idle.
func (rs *RuleSet) ActiveCharacter() Participant { return rs.active }

// StartTurnForCharacter makes p the active character and grants its per-turn
// action and reaction points.
//
// Precondition: the rule set is idle and p is a participant.
// Postcondition: state is TurnInProgress and TurnStarted has been emitted.
func (rs *RuleSet) StartTurnForCharacter(p Participant) error {
	if err := rs.requireParticipant(p, "start turn"); err != nil {
		return err
	}
	if !rs.contract.Check(rs.active == nil, "cannot start a turn while another is in progress",
		zap.String("character", p.ID()), zap.String("active", idOf(rs.active))) {
		return ErrTurnInProgress
	}
	rs.active = p
	rs.roster.SetActiveCharacter(p)
	p.StartTurn(rs.settings.ActionPointsPerTurn, rs.settings.ReactionPointsPerTurn)
	rs.logger.Info("turn started", zap.String("character", p.ID()))
	rs.Events.TurnStarted.Emit(Turn{EncounterID: rs.id, Character: p})
	return nil
}

// EndTurnForCharacter ends p's turn.
//
// Precondition: p is the active character.
// Postcondition: state is Idle and TurnEnded has been emitted.
func (rs *RuleSet) EndTurnForCharacter(p Participant) error {
	if !rs.contract.Check(p != nil && rs.active == p, "cannot end the turn of a character that is not active",
		zap.String("character", idOf(p)), zap.String("active", idOf(rs.active))) {
		return ErrNotActiveCharacter
	}
	rs.finishTurn(p)
	return nil
}

func (rs *RuleSet) finishTurn(p Participant) {
	rs.active = nil
	p.EndTurn()
	rs.logger.Info("turn ended", zap.String("character", p.ID()))
	rs.Events.TurnEnded.Emit(Turn{EncounterID: rs.id, Character: p})
}

// QueueCommandForCharacter queues cmd on p's command queue. Valid in any state.
//
// Precondition: p is a participant with a command queue; cmd is not already queued.
func (rs *RuleSet) QueueCommandForCharacter(p Participant, cmd *command.Command) error {
	q, err := rs.queueOf(p, "queue command")
	if err != nil {
		return err
	}
	if err := q.Enqueue(cmd); err != nil {
		return err
	}
	rs.logger.Debug("command queued", zap.String("character", p.ID()), zap.Stringer("command", cmd))
	rs.Events.CommandQueued.Emit(cmd)
	return nil
}

// ExecuteNextQueuedCommandForCharacter attempts p's next queued command. A
// blocked command keeps its place for the next attempt.
func (rs *RuleSet) ExecuteNextQueuedCommandForCharacter(p Participant) (command.ExecuteResult, error) {
	q, err := rs.queueOf(p, "execute next command")
	if err != nil {
		return command.ExecuteNone, err
	}
	result := q.PopAndExecuteNext()
	rs.logger.Debug("executed next command", zap.String("character", p.ID()), zap.Stringer("result", result))
	return result, nil
}

// DoesCharacterHaveNextCommandQueued reports whether p has a queued command.
func (rs *RuleSet) DoesCharacterHaveNextCommandQueued(p Participant) bool {
	q, err := rs.queueOf(p, "check queued commands")
	return err == nil && !q.IsEmpty()
}

// PeekNextQueuedCommandForCharacter returns p's next command without removing it.
//
// Postcondition: nil when nothing is queued.
func (rs *RuleSet) PeekNextQueuedCommandForCharacter(p Participant) *command.Command {
	q, err := rs.queueOf(p, "peek next command")
	if err != nil {
		return nil
	}
	return q.PeekNext()
}

// PopNextCommandQueuedForCharacter removes and returns p's next command without executing it.
func (rs *RuleSet) PopNextCommandQueuedForCharacter(p Participant) *command.Command {
	q, err := rs.queueOf(p, "pop next command")
	if err != nil {
		return nil
	}
	return q.PopNext()
}

// CancelQueuedCommandsForAllCharacters clears every participant's command queue.
func (rs *RuleSet) CancelQueuedCommandsForAllCharacters() {
	for _, p := range rs.Participants() {
		if q := p.CommandQueue(); q != nil {
			q.Clear()
		}
	}
	rs.logger.Info("cancelled all queued commands")
}

// AttemptToExecuteOrQueueCommand runs cmd now when p is the active character and
// has nothing queued ahead of it; otherwise, or when activation is blocked, cmd
// is queued for later.
//
// Postcondition: Refused when p is not a participant or cmd cannot be queued.
func (rs *RuleSet) AttemptToExecuteOrQueueCommand(p Participant, cmd *command.Command) command.ExecuteOrQueueResult {
	if p == nil || !rs.roster.Contains(p) {
		rs.logger.Warn("refusing command for a character outside the encounter",
			zap.String("character", idOf(p)), zap.Stringer("command", cmd))
		return command.Refused
	}
	q := p.CommandQueue()
	if q == nil {
		rs.logger.Warn("character has no command queue", zap.String("character", p.ID()))
		return command.Refused
	}

	result := command.Queued
	if rs.active == p && q.IsEmpty() {
		if cmd.AttemptExecuteImmediately() == command.ExecuteActivated {
			result = command.ExecutedImmediately
		}
	}
	if result == command.Queued {
		if err := rs.QueueCommandForCharacter(p, cmd); err != nil {
			result = command.Refused
		}
	}
	rs.logger.Debug("execute or queue", zap.String("character", p.ID()),
		zap.Stringer("command", cmd), zap.Stringer("result", result))
	return result
}

func (rs *RuleSet) requireParticipant(p Participant, op string) error {
	if !rs.contract.Check(p != nil && rs.roster.Contains(p), "character is not an encounter participant",
		zap.String("operation", op), zap.String("character", idOf(p))) {
		return ErrNotParticipant
	}
	return nil
}

func (rs *RuleSet) queueOf(p Participant, op string) (*command.Queue, error) {
	if err := rs.requireParticipant(p, op); err != nil {
		return nil, err
	}
	q := p.CommandQueue()
	if !rs.contract.Check(q != nil, "character has no command queue",
		zap.String("operation", op), zap.String("character", p.ID())) {
		return nil, ErrNotParticipant
	}
	return q, nil
}

func idOf(p Participant) string {
	if p == nil {
		return ""
	}
	return p.ID()
}
