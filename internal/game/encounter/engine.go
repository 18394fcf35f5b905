package encounter

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/game/event"
)

// Mode is the mode of play an encounter is in.
type Mode string

const (
	ModeExploration Mode = "exploration"
	ModeEncounter   Mode = "encounter"
	ModeDowntime    Mode = "downtime"
)

// ParseMode parses a mode of play name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeExploration, ModeEncounter, ModeDowntime:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode of play %q", s)
	}
}

// ModeChange reports an encounter switching mode of play.
type ModeChange struct {
	EncounterID string
	From        Mode
	To          Mode
}

// EngineEvents are the Engine notifications. Handlers run after the Engine has
// released its locks and may call back into it.
type EngineEvents struct {
	ModeChanged event.Bus[ModeChange]
	// Ended carries the ID of an encounter removed from the Engine.
	Ended event.Bus[string]
	// TurnTimedOut carries the turn ended by the turn timer.
	TurnTimedOut event.Bus[Turn]
}

type slot struct {
	mu    sync.Mutex
	rs    *RuleSet
	mode  Mode
	timer *TurnTimer
}

// Engine owns every running encounter, keyed by encounter ID.
//
// Engine is safe for concurrent use. Each RuleSet is serialised through Do.
type Engine struct {
	Events EngineEvents

	mu         sync.RWMutex
	encounters map[string]*slot
	closed     bool

	settings Settings
	roller   Roller
	contract contract.Enforcer
	logger   *zap.Logger
}

// NewEngine returns an Engine whose encounters use settings.
//
// Precondition: roller and logger are non-nil.
func NewEngine(settings Settings, roller Roller, enforcer contract.Enforcer, logger *zap.Logger) *Engine {
	return &Engine{
		encounters: make(map[string]*slot),
		settings:   settings,
		roller:     roller,
		contract:   enforcer,
		logger:     logger.Named("engine"),
	}
}

// Create registers an empty encounter in exploration mode.
//
// Postcondition: ErrExists when id is taken.
func (e *Engine) Create(id string) (*RuleSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("creating encounter %s: engine closed", id)
	}
	if _, ok := e.encounters[id]; ok {
		return nil, fmt.Errorf("creating encounter %s: %w", id, ErrExists)
	}
	rs := NewRuleSet(id, e.settings, e.roller, e.contract, e.logger)
	s := &slot{rs: rs, mode: ModeExploration}
	if e.settings.TurnTimeout > 0 {
		e.armTurnTimer(s)
	}
	e.encounters[id] = s
	e.logger.Info("encounter created", zap.String("encounter", id))
	return rs, nil
}

// Start registers an encounter for participants, rolls their initiative and
// switches it into encounter mode.
func (e *Engine) Start(id string, participants []Participant) (*RuleSet, error) {
	rs, err := e.Create(id)
	if err != nil {
		return nil, err
	}
	err = e.Do(id, func(rs *RuleSet) error {
		for _, p := range participants {
			if err := rs.AddCharacter(p); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		err = e.SetMode(id, ModeEncounter)
	}
	if err != nil {
		e.End(id)
		return nil, err
	}
	return rs, nil
}

// Get returns the rule set for id. Callers that mutate it while a turn timer may
// be running must go through Do instead.
func (e *Engine) Get(id string) (*RuleSet, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.encounters[id]
	if !ok {
		return nil, false
	}
	return s.rs, true
}

// Do runs fn with exclusive access to the rule set for id.
//
// Postcondition: ErrNotFound when id is unknown; otherwise fn's error.
func (e *Engine) Do(id string, fn func(rs *RuleSet) error) error {
	s, ok := e.slot(id)
	if !ok {
		return fmt.Errorf("encounter %s: %w", id, ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.rs)
}

// Mode returns the mode of play of id.
func (e *Engine) Mode(id string) (Mode, error) {
	s, ok := e.slot(id)
	if !ok {
		return "", fmt.Errorf("encounter %s: %w", id, ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode, nil
}

// SetMode switches id to mode. Entering encounter mode rolls initiative for every
// participant that has none. Leaving it ends the turn in progress, cancels every
// queued command and forgets initiative.
//
// Postcondition: ModeChanged is emitted when the mode changed.
func (e *Engine) SetMode(id string, mode Mode) error {
	s, ok := e.slot(id)
	if !ok {
		return fmt.Errorf("encounter %s: %w", id, ErrNotFound)
	}
	s.mu.Lock()
	from := s.mode
	if from == mode {
		s.mu.Unlock()
		return nil
	}
	switch {
	case mode == ModeEncounter:
		s.rs.RollInitiativeForAll()
	case from == ModeEncounter:
		if p := s.rs.ActiveCharacter(); p != nil {
			_ = s.rs.EndTurnForCharacter(p)
		}
		s.rs.CancelQueuedCommandsForAllCharacters()
		s.rs.ClearInitiativeForAllCharacters()
	}
	s.mode = mode
	s.mu.Unlock()

	e.logger.Info("mode of play changed", zap.String("encounter", id),
		zap.String("from", string(from)), zap.String("to", string(mode)))
	e.Events.ModeChanged.Emit(ModeChange{EncounterID: id, From: from, To: mode})
	return nil
}

// Snapshot captures id's state including its mode of play.
func (e *Engine) Snapshot(id string) (Snapshot, error) {
	s, ok := e.slot(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("encounter %s: %w", id, ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.rs.Snapshot()
	snap.Mode = s.mode
	return snap, nil
}

// End removes id, cancelling its queued commands. Unknown IDs are ignored.
func (e *Engine) End(id string) {
	e.mu.Lock()
	s, ok := e.encounters[id]
	delete(e.encounters, id)
	e.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.rs.CancelQueuedCommandsForAllCharacters()
	s.mu.Unlock()
	e.logger.Info("encounter ended", zap.String("encounter", id))
	e.Events.Ended.Emit(id)
}

// IDs returns the registered encounter IDs in sorted order.
func (e *Engine) IDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.encounters))
	for id := range e.encounters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Ready reports whether the Engine accepts new encounters.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close ends every encounter and refuses new ones.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	for _, id := range e.IDs() {
		e.End(id)
	}
}

func (e *Engine) slot(id string) (*slot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.encounters[id]
	return s, ok
}

// armTurnTimer ends any turn that outlives the configured timeout. The turn
// callbacks run while the slot is locked by whoever started or ended the turn.
func (e *Engine) armTurnTimer(s *slot) {
	timeout := e.settings.TurnTimeout
	s.rs.Events.TurnStarted.Subscribe(func(t Turn) {
		fire := func() { e.timeoutTurn(s, t) }
		if s.timer == nil {
			s.timer = NewTurnTimer(timeout, fire)
			return
		}
		s.timer.Reset(timeout, fire)
	})
	s.rs.Events.TurnEnded.Subscribe(func(Turn) {
		if s.timer != nil {
			s.timer.Stop()
		}
	})
}

func (e *Engine) timeoutTurn(s *slot, t Turn) {
	s.mu.Lock()
	ended := s.rs.ActiveCharacter() == t.Character && s.rs.EndTurnForCharacter(t.Character) == nil
	s.mu.Unlock()
	if ended {
		e.logger.Warn("turn timed out", zap.String("encounter", t.EncounterID), zap.String("character", t.Character.ID()))
		e.Events.TurnTimedOut.Emit(t)
	}
}
