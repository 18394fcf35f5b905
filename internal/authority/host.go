// Package authority hosts the encounters a rules process owns: it plays their
// turns on a tick, persists each resulting snapshot and replicates it.
package authority

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/content"
	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/character"
	"github.com/cory-johannsen/tactics/internal/game/encounter"
	"github.com/cory-johannsen/tactics/internal/game/event"
	"github.com/cory-johannsen/tactics/internal/scenario"
	"github.com/cory-johannsen/tactics/internal/storage/postgres"
)

var (
	// ErrNotHosted is returned for an encounter this Host does not own.
	ErrNotHosted = errors.New("encounter not hosted")
	// ErrNotInEncounterMode is returned when stepping an encounter in exploration mode.
	ErrNotInEncounterMode = errors.New("encounter is not in encounter mode")
	// ErrUnknownCharacter is returned when queueing for a character not in the encounter.
	ErrUnknownCharacter = errors.New("unknown character")
)

const syncTimeout = 5 * time.Second

// TurnPlayed reports one turn played by Step.
type TurnPlayed struct {
	EncounterID string
	// Round is the zero-based round the turn belongs to.
	Round  int
	Report encounter.TurnReport
}

// Result is the outcome of a finished encounter.
type Result struct {
	EncounterID string
	// Winner is the kind of character left standing; empty when nobody is.
	Winner  character.Kind
	Decided bool
	Rounds  int
}

// HostEvents are the Host notifications. Handlers run without Host or Engine
// locks held.
type HostEvents struct {
	TurnPlayed event.Bus[TurnPlayed]
	Finished   event.Bus[Result]
}

type game struct {
	scenario *scenario.Scenario
	cast     *scenario.Cast
	director *scenario.Director
	runner   *encounter.Runner

	// Round bookkeeping; only touched inside Engine.Do.
	round     int
	turns     int
	roundSize int
}

// Host owns the hosted encounters of an Engine.
//
// Host is safe for concurrent use.
type Host struct {
	Events HostEvents

	engine    *encounter.Engine
	content   *content.Bundle
	publisher Publisher
	store     Store
	ticks     *TickManager
	logger    *zap.Logger

	mu    sync.Mutex
	games map[string]*game
}

// NewHost returns a Host. publisher, store and ticks may each be nil: without
// a TickManager turns are only played through Step.
//
// Precondition: engine, bundle and logger must not be nil.
func NewHost(engine *encounter.Engine, bundle *content.Bundle, publisher Publisher, store Store, ticks *TickManager, logger *zap.Logger) *Host {
	h := &Host{
		engine:    engine,
		content:   bundle,
		publisher: publisher,
		store:     store,
		ticks:     ticks,
		logger:    logger.Named("authority"),
		games:     make(map[string]*game),
	}
	engine.Events.TurnTimedOut.Subscribe(func(t encounter.Turn) {
		h.syncDetached(t.EncounterID)
	})
	engine.Events.ModeChanged.Subscribe(func(c encounter.ModeChange) {
		h.syncDetached(c.EncounterID)
	})
	return h
}

// Open spawns the cast of s and starts hosting it under s.ID. When a snapshot of
// s.ID is stored, the encounter resumes from it: a turn interrupted by the
// restart is ended and the round count starts over.
//
// Postcondition: the first snapshot has been published and stored.
func (h *Host) Open(ctx context.Context, s *scenario.Scenario) error {
	h.mu.Lock()
	_, dup := h.games[s.ID]
	h.mu.Unlock()
	if dup {
		return fmt.Errorf("hosting %s: %w", s.ID, encounter.ErrExists)
	}

	stored, resume, err := h.stored(ctx, s.ID)
	if err != nil {
		return err
	}
	cast, err := s.Spawn(h.content)
	if err != nil {
		return err
	}
	rs, err := h.engine.Create(s.ID)
	if err != nil {
		h.forget(cast)
		return err
	}

	mode := s.Mode
	if resume && stored.Mode != "" {
		mode = stored.Mode
	}
	if mode == "" {
		mode = encounter.ModeEncounter
	}
	director := scenario.NewDirector(cast, h.content.Commander(), h.logger)
	g := &game{
		scenario: s,
		cast:     cast,
		director: director,
		runner:   encounter.NewRunner(rs, director, director.Controls, h.logger),
	}

	err = h.engine.Do(s.ID, func(rs *encounter.RuleSet) error {
		if resume {
			if err := rs.Restore(stored, h.resolve); err != nil {
				return err
			}
			if p := rs.ActiveCharacter(); p != nil {
				if err := rs.EndTurnForCharacter(p); err != nil {
					return err
				}
			}
		}
		if err := cast.Join(rs); err != nil {
			return err
		}
		if mode == encounter.ModeEncounter {
			return cast.ApplyInitiative(rs)
		}
		return nil
	})
	if err == nil {
		err = h.engine.SetMode(s.ID, mode)
	}
	if err != nil {
		h.engine.End(s.ID)
		h.forget(cast)
		return fmt.Errorf("hosting %s: %w", s.ID, err)
	}
	h.mu.Lock()
	h.games[s.ID] = g
	h.mu.Unlock()

	h.logger.Info("encounter hosted",
		zap.String("encounter", s.ID),
		zap.String("mode", string(mode)),
		zap.Bool("resumed", resume),
		zap.Strings("cast", cast.IDs()),
	)
	if err := h.sync(ctx, s.ID); err != nil {
		h.drop(s.ID)
		return fmt.Errorf("hosting %s: %w", s.ID, err)
	}
	if h.ticks != nil && mode == encounter.ModeEncounter {
		h.ticks.RegisterTick(s.ID, func() { h.tick(s.ID) })
	}
	return nil
}

func (h *Host) stored(ctx context.Context, id string) (encounter.Snapshot, bool, error) {
	if h.store == nil {
		return encounter.Snapshot{}, false, nil
	}
	snap, err := h.store.Load(ctx, id)
	switch {
	case err == nil:
		return snap, true, nil
	case errors.Is(err, postgres.ErrEncounterNotFound):
		return encounter.Snapshot{}, false, nil
	default:
		return encounter.Snapshot{}, false, fmt.Errorf("loading stored encounter %s: %w", id, err)
	}
}

func (h *Host) resolve(id string) (encounter.Participant, bool) {
	c, ok := h.content.Directory.Get(id)
	if !ok {
		return nil, false
	}
	return c, true
}

func (h *Host) tick(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	if _, err := h.Step(ctx, id); err != nil {
		h.logger.Error("tick failed", zap.String("encounter", id), zap.Error(err))
	}
}

// Step plays the next turn of id, publishes and stores the resulting snapshot,
// and finishes the encounter once it is decided or its rounds are played.
//
// Postcondition: ErrNotHosted for an unknown id, ErrNotInEncounterMode outside
// encounter mode.
func (h *Host) Step(ctx context.Context, id string) (encounter.TurnReport, error) {
	g, ok := h.game(id)
	if !ok {
		return encounter.TurnReport{}, fmt.Errorf("encounter %s: %w", id, ErrNotHosted)
	}
	mode, err := h.engine.Mode(id)
	if err != nil {
		return encounter.TurnReport{}, err
	}
	if mode != encounter.ModeEncounter {
		return encounter.TurnReport{}, fmt.Errorf("encounter %s: %w", id, ErrNotInEncounterMode)
	}

	var (
		report encounter.TurnReport
		played bool
		round  int
		result Result
		done   bool
	)
	err = h.engine.Do(id, func(rs *encounter.RuleSet) error {
		if g.turns == 0 {
			g.roundSize = len(rs.CharactersInInitiativeOrder())
		}
		round = g.round
		var err error
		report, err = g.runner.PlayTurn()
		switch {
		case errors.Is(err, encounter.ErrNoPlayableCharacters):
		case err != nil:
			return err
		default:
			played = true
			g.turns++
			if g.turns >= g.roundSize {
				g.round++
				g.turns = 0
			}
		}
		result.EncounterID = id
		result.Winner, result.Decided = scenario.Outcome(rs)
		result.Rounds = g.round
		limit := g.scenario.Rounds
		done = !played || result.Decided || (limit > 0 && g.round >= limit)
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("playing turn of %s: %w", id, err)
	}

	if played {
		h.logger.Debug("turn played", zap.String("encounter", id), zap.Int("round", round),
			zap.String("character", report.Character.ID()), zap.Int("commands", len(report.Commands)))
		h.Events.TurnPlayed.Emit(TurnPlayed{EncounterID: id, Round: round, Report: report})
	}
	syncErr := h.sync(ctx, id)
	if done {
		h.finish(id, result)
	}
	return report, syncErr
}

// Queue adds a command for characterID to activate abilityID against targetID
// (empty for untargeted abilities). It runs on that character's next turn.
func (h *Host) Queue(ctx context.Context, id, characterID, abilityID, targetID string) error {
	if _, ok := h.game(id); !ok {
		return fmt.Errorf("encounter %s: %w", id, ErrNotHosted)
	}
	err := h.engine.Do(id, func(rs *encounter.RuleSet) error {
		p, ok := rs.Participant(characterID)
		if !ok {
			return fmt.Errorf("%q: %w", characterID, ErrUnknownCharacter)
		}
		c, ok := p.(*character.Character)
		if !ok {
			return fmt.Errorf("%q: %w", characterID, ErrUnknownCharacter)
		}
		cmd, ok := c.NewCommand(abilityID, payloadFor(targetID))
		if !ok {
			return fmt.Errorf("%s does not have ability %q", characterID, abilityID)
		}
		return rs.QueueCommandForCharacter(c, cmd)
	})
	if err != nil {
		return fmt.Errorf("queueing %s for %s: %w", abilityID, characterID, err)
	}
	return h.sync(ctx, id)
}

// SetMode switches a hosted encounter's mode of play. Only encounter mode ticks.
func (h *Host) SetMode(id string, mode encounter.Mode) error {
	g, ok := h.game(id)
	if !ok {
		return fmt.Errorf("encounter %s: %w", id, ErrNotHosted)
	}
	if err := h.engine.Do(id, func(rs *encounter.RuleSet) error {
		g.turns = 0
		if mode == encounter.ModeEncounter {
			return g.cast.ApplyInitiative(rs)
		}
		return nil
	}); err != nil {
		return err
	}
	if err := h.engine.SetMode(id, mode); err != nil {
		return err
	}
	if h.ticks == nil {
		return nil
	}
	if mode == encounter.ModeEncounter {
		h.ticks.RegisterTick(id, func() { h.tick(id) })
	} else {
		h.ticks.Unregister(id)
	}
	return nil
}

func payloadFor(targetID string) *ability.Payload {
	if targetID == "" {
		return nil
	}
	return &ability.Payload{TargetID: targetID}
}

// Abandon stops hosting id without a result and removes its published and stored
// snapshots.
func (h *Host) Abandon(ctx context.Context, id string) error {
	if _, ok := h.game(id); !ok {
		return fmt.Errorf("encounter %s: %w", id, ErrNotHosted)
	}
	h.drop(id)
	var errs []error
	if h.publisher != nil {
		if err := h.publisher.Remove(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	if h.store != nil {
		if err := h.store.Delete(ctx, id); err != nil && !errors.Is(err, postgres.ErrEncounterNotFound) {
			errs = append(errs, err)
		}
	}
	h.logger.Info("encounter abandoned", zap.String("encounter", id))
	return errors.Join(errs...)
}

// IDs returns the hosted encounter IDs, sorted.
func (h *Host) IDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.games))
	for id := range h.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stores a final snapshot of every hosted encounter and stops hosting it.
// Stored encounters resume on the next Open.
func (h *Host) Close(ctx context.Context) error {
	var errs []error
	for _, id := range h.IDs() {
		if h.ticks != nil {
			h.ticks.Unregister(id)
		}
		if err := h.sync(ctx, id); err != nil {
			errs = append(errs, err)
		}
		h.drop(id)
	}
	return errors.Join(errs...)
}

func (h *Host) game(id string) (*game, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.games[id]
	return g, ok
}

func (h *Host) finish(id string, result Result) {
	h.drop(id)
	h.logger.Info("encounter finished",
		zap.String("encounter", id),
		zap.String("winner", string(result.Winner)),
		zap.Bool("decided", result.Decided),
		zap.Int("rounds", result.Rounds),
	)
	h.Events.Finished.Emit(result)
}

// drop stops ticking id, ends it in the Engine and releases its characters.
func (h *Host) drop(id string) {
	if h.ticks != nil {
		h.ticks.Unregister(id)
	}
	h.mu.Lock()
	g, ok := h.games[id]
	delete(h.games, id)
	h.mu.Unlock()
	h.engine.End(id)
	if ok {
		h.forget(g.cast)
	}
}

func (h *Host) forget(cast *scenario.Cast) {
	for _, id := range cast.IDs() {
		h.content.Directory.Remove(id)
	}
}

// sync publishes and stores the current snapshot of id.
func (h *Host) sync(ctx context.Context, id string) error {
	snap, err := h.engine.Snapshot(id)
	if err != nil {
		return err
	}
	var errs []error
	if h.store != nil {
		written, err := h.store.Save(ctx, snap)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("storing snapshot %d of %s: %w", snap.Sequence, id, err))
		case !written:
			h.logger.Debug("stored snapshot is newer", zap.String("encounter", id), zap.Uint64("sequence", snap.Sequence))
		}
	}
	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, snap); err != nil {
			errs = append(errs, fmt.Errorf("publishing snapshot %d of %s: %w", snap.Sequence, id, err))
		}
	}
	return errors.Join(errs...)
}

// syncDetached syncs a hosted encounter from an Engine event handler.
func (h *Host) syncDetached(id string) {
	if _, ok := h.game(id); !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	if err := h.sync(ctx, id); err != nil {
		h.logger.Error("snapshot sync failed", zap.String("encounter", id), zap.Error(err))
	}
}
