// Package initiative orders encounter participants by initiative score and walks
// that order turn by turn.
package initiative

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/game/roster"
)

// Character is an encounter participant.
type Character interface {
	roster.Character
	// IsPlayable is false for characters that cannot take a turn (unconscious, dead).
	IsPlayable() bool
}

// TieBreak orders characters with equal scores.
type TieBreak int

const (
	// TieBreakInsertion keeps the order in which scores were first set.
	TieBreakInsertion TieBreak = iota
	// TieBreakIdentifier orders by character ID.
	TieBreakIdentifier
)

// ParseTieBreak parses "insertion" or "identifier".
func ParseTieBreak(s string) (TieBreak, error) {
	switch s {
	case "", "insertion":
		return TieBreakInsertion, nil
	case "identifier":
		return TieBreakIdentifier, nil
	default:
		return 0, fmt.Errorf("unknown initiative tie break %q", s)
	}
}

func (t TieBreak) String() string {
	if t == TieBreakIdentifier {
		return "identifier"
	}
	return "insertion"
}

type entry struct {
	c     Character
	score int
	seq   uint64
}

// Queue maps characters to initiative scores.
//
// Queue is not safe for concurrent use.
type Queue struct {
	entries  map[Character]*entry
	seq      uint64
	policy   TieBreak
	member   func(Character) bool
	cursor   *entry
	contract contract.Enforcer
	logger   *zap.Logger
}

// NewQueue returns an empty Queue. member reports roster membership; scores may
// only be set for members. A nil member admits every character.
func NewQueue(policy TieBreak, member func(Character) bool, enforcer contract.Enforcer, logger *zap.Logger) *Queue {
	if member == nil {
		member = func(Character) bool { return true }
	}
	return &Queue{
		entries:  make(map[Character]*entry),
		policy:   policy,
		member:   member,
		contract: enforcer,
		logger:   logger.Named("initiative"),
	}
}

// Policy returns the tie-break policy.
func (q *Queue) Policy() TieBreak { return q.policy }

// SetInitiative assigns or overwrites the score of c. Overwriting keeps the
// character's original insertion position for tie-breaking.
//
// Precondition: c is a roster member.
func (q *Queue) SetInitiative(c Character, score int) bool {
	if !q.contract.Check(c != nil && q.member(c), "initiative set for a character outside the roster") {
		return false
	}
	if e, ok := q.entries[c]; ok {
		e.score = score
	} else {
		q.seq++
		q.entries[c] = &entry{c: c, score: score, seq: q.seq}
	}
	q.logger.Debug("initiative set", zap.String("character", c.ID()), zap.Int("score", score))
	return true
}

// ClearInitiative forgets the score of c.
func (q *Queue) ClearInitiative(c Character) {
	delete(q.entries, c)
}

// ClearAll forgets every score and resets the turn cursor.
func (q *Queue) ClearAll() {
	q.entries = make(map[Character]*entry)
	q.cursor = nil
}

// IsInitiativeSet reports whether c has a score.
func (q *Queue) IsInitiativeSet(c Character) bool {
	_, ok := q.entries[c]
	return ok
}

// Score returns the score of c.
func (q *Queue) Score(c Character) (int, bool) {
	if e, ok := q.entries[c]; ok {
		return e.score, true
	}
	return 0, false
}

// Ordered returns every character with a score, highest first.
func (q *Queue) Ordered() []Character {
	sorted := q.sorted()
	out := make([]Character, len(sorted))
	for i, e := range sorted {
		out[i] = e.c
	}
	return out
}

// HavePlayableCharacters reports whether any character with a score can act.
func (q *Queue) HavePlayableCharacters() bool {
	for c := range q.entries {
		if c.IsPlayable() {
			return true
		}
	}
	return false
}

// Next advances to the next playable character in order, wrapping after the last.
// The position survives the previous character leaving the queue.
//
// Postcondition: nil when no character with a score is playable.
func (q *Queue) Next() Character {
	sorted := q.sorted()
	if len(sorted) == 0 {
		return nil
	}
	start := 0
	if q.cursor != nil {
		start = sort.Search(len(sorted), func(i int) bool { return q.less(q.cursor, sorted[i]) })
	}
	for i := 0; i < len(sorted); i++ {
		e := sorted[(start+i)%len(sorted)]
		if e.c.IsPlayable() {
			q.cursor = &entry{c: e.c, score: e.score, seq: e.seq}
			return e.c
		}
		q.logger.Debug("skipping unplayable character", zap.String("character", e.c.ID()))
	}
	return nil
}

// Seek places the cursor on c so that Next returns the character after it.
//
// Postcondition: false, with the cursor unchanged, when c has no score.
func (q *Queue) Seek(c Character) bool {
	e, ok := q.entries[c]
	if !ok {
		return false
	}
	q.cursor = &entry{c: e.c, score: e.score, seq: e.seq}
	return true
}

// Reset moves the cursor back before the first character.
func (q *Queue) Reset() { q.cursor = nil }

func (q *Queue) sorted() []*entry {
	out := make([]*entry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return q.less(out[i], out[j]) })
	return out
}

// less orders a before b: higher score first, then by the tie-break policy.
func (q *Queue) less(a, b *entry) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if q.policy == TieBreakIdentifier {
		if a.c.ID() != b.c.ID() {
			return a.c.ID() < b.c.ID()
		}
	}
	return a.seq < b.seq
}
