package encounter

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/command"
)

// ErrNoPlayableCharacters is returned by PlayTurn when nobody with initiative can act.
var ErrNoPlayableCharacters = errors.New("no playable characters")

// Planner chooses commands for participants that are not driven by a player.
type Planner interface {
	// Plan returns the commands p should attempt this turn, in execution order.
	Plan(rs *RuleSet, p Participant) []*command.Command
}

// Controlled reports whether a participant is driven by a Planner.
type Controlled func(p Participant) bool

// CommandResult is the outcome of one executed command.
type CommandResult struct {
	Command *command.Command
	Result  command.ExecuteResult
}

// TurnReport summarises one played turn.
type TurnReport struct {
	Character Participant
	Commands  []CommandResult
}

// Runner plays turns of a RuleSet in initiative order.
type Runner struct {
	rs         *RuleSet
	planner    Planner
	controlled Controlled
	logger     *zap.Logger
}

// NewRunner returns a Runner over rs. planner may be nil; when set it plans for
// every participant controlled reports true for (every participant when nil).
func NewRunner(rs *RuleSet, planner Planner, controlled Controlled, logger *zap.Logger) *Runner {
	if controlled == nil {
		controlled = func(Participant) bool { return true }
	}
	return &Runner{
		rs:         rs,
		planner:    planner,
		controlled: controlled,
		logger:     logger.Named("runner").With(zap.String("encounter", rs.ID())),
	}
}

// PlayTurn starts the turn of the next character by initiative, executes its
// queued commands until none remain or one is blocked, and ends the turn.
//
// Precondition: the rule set is idle.
func (r *Runner) PlayTurn() (TurnReport, error) {
	if !r.rs.HavePlayableCharacters() {
		return TurnReport{}, ErrNoPlayableCharacters
	}
	p := r.rs.NextCharacterByInitiative()
	if p == nil {
		return TurnReport{}, ErrNoPlayableCharacters
	}
	if err := r.rs.StartTurnForCharacter(p); err != nil {
		return TurnReport{}, fmt.Errorf("starting turn for %s: %w", p.ID(), err)
	}

	report := TurnReport{Character: p}
	if r.planner != nil && r.controlled(p) && !r.rs.DoesCharacterHaveNextCommandQueued(p) {
		planned := r.planner.Plan(r.rs, p)
		// The queue executes newest first; queue the plan back to front.
		for i := len(planned) - 1; i >= 0; i-- {
			if err := r.rs.QueueCommandForCharacter(p, planned[i]); err != nil {
				r.logger.Warn("dropping planned command", zap.Stringer("command", planned[i]), zap.Error(err))
			}
		}
	}

	for r.rs.DoesCharacterHaveNextCommandQueued(p) {
		next := r.rs.PeekNextQueuedCommandForCharacter(p)
		result, err := r.rs.ExecuteNextQueuedCommandForCharacter(p)
		if err != nil {
			return report, err
		}
		report.Commands = append(report.Commands, CommandResult{Command: next, Result: result})
		if result == command.ExecuteBlocked {
			break
		}
	}

	if r.rs.ActiveCharacter() == p {
		if err := r.rs.EndTurnForCharacter(p); err != nil {
			return report, fmt.Errorf("ending turn for %s: %w", p.ID(), err)
		}
	}
	r.logger.Debug("turn played", zap.String("character", p.ID()), zap.Int("commands", len(report.Commands)))
	return report, nil
}

// PlayRound plays one turn for every participant currently in initiative order.
// It stops early when nobody can act.
func (r *Runner) PlayRound() ([]TurnReport, error) {
	n := len(r.rs.CharactersInInitiativeOrder())
	reports := make([]TurnReport, 0, n)
	for i := 0; i < n; i++ {
		report, err := r.PlayTurn()
		if errors.Is(err, ErrNoPlayableCharacters) {
			break
		}
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
