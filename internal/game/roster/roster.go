// Package roster is an ordered set of characters with a movable active cursor,
// used for turn order and for the characters a player controls.
package roster

import (
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/game/event"
	"github.com/cory-johannsen/tactics/internal/game/replica"
)

// MaxCapacity is the largest roster the active cursor can address.
const MaxCapacity = 256

// ErrCapacityExceeded is returned by Add on a full roster.
var ErrCapacityExceeded = errors.New("roster capacity exceeded")

// Character is a roster member.
type Character interface {
	ID() string
}

// Removal reports a character leaving the roster and the index it held.
type Removal struct {
	Character Character
	Index     int
}

// Events are the roster notifications. ActiveChanged carries nil when the roster is empty.
type Events struct {
	Added         event.Bus[Character]
	Removed       event.Bus[Removal]
	Changed       event.Bus[[]Character]
	ActiveChanged event.Bus[Character]
}

// Queue is a roster with an active cursor.
//
// Invariant: active < Count() whenever Count() > 0.
// Queue is not safe for concurrent use.
type Queue struct {
	Events Events

	name       string
	capacity   int
	characters []Character
	active     uint8
	contract   contract.Enforcer
	logger     *zap.Logger
}

// NewQueue returns an empty roster holding at most capacity characters.
//
// Precondition: 0 < capacity <= MaxCapacity; other values select MaxCapacity.
func NewQueue(name string, capacity int, enforcer contract.Enforcer, logger *zap.Logger) *Queue {
	if capacity <= 0 || capacity > MaxCapacity {
		capacity = MaxCapacity
	}
	return &Queue{
		name:     name,
		capacity: capacity,
		contract: enforcer,
		logger:   logger.Named("roster").With(zap.String("queue", name)),
	}
}

// Add appends c if it is not already present.
//
// Precondition: Count() < capacity unless c is already present.
// Postcondition: when c was appended, Added then Changed are emitted and true is returned.
func (q *Queue) Add(c Character) (bool, error) {
	if !q.contract.Check(c != nil, "cannot add a nil character to a roster") {
		return false, nil
	}
	if replica.IndexOf(q.characters, c) >= 0 {
		return false, nil
	}
	if !q.contract.Check(len(q.characters) < q.capacity, "roster is full",
		zap.Int("capacity", q.capacity), zap.String("character", c.ID())) {
		return false, ErrCapacityExceeded
	}
	q.characters = append(q.characters, c)
	q.logger.Debug("character added", zap.String("character", c.ID()))
	q.Events.Added.Emit(c)
	q.emitChanged()
	return true, nil
}

// Remove drops every entry equal to c and reports whether any was present.
//
// Postcondition: if the removed index was at or before the active index, the active
// index moves back by one (not below zero) and ActiveChanged is emitted, then Removed,
// then Changed.
func (q *Queue) Remove(c Character) bool {
	idx := replica.IndexOf(q.characters, c)
	if idx < 0 {
		return false
	}
	kept := q.characters[:0:0]
	for _, existing := range q.characters {
		if existing != c {
			kept = append(kept, existing)
		}
	}
	q.characters = kept
	q.handleRemoved(c, idx)
	q.emitChanged()
	return true
}

// Clear removes every character: one Removed per former entry with its original
// index, then one Changed.
func (q *Queue) Clear() {
	old := q.characters
	q.characters = nil
	for i, c := range old {
		q.handleRemoved(c, i)
	}
	q.emitChanged()
}

// Count returns the number of characters.
func (q *Queue) Count() int { return len(q.characters) }

// Capacity returns the maximum number of characters.
func (q *Queue) Capacity() int { return q.capacity }

// Contains reports whether c is on the roster.
func (q *Queue) Contains(c Character) bool { return replica.IndexOf(q.characters, c) >= 0 }

// Characters returns the roster in order.
func (q *Queue) Characters() []Character {
	return append([]Character(nil), q.characters...)
}

// ActiveIndex returns the cursor position; meaningless when the roster is empty.
func (q *Queue) ActiveIndex() int { return int(q.active) }

// ActiveCharacter returns the character under the cursor, or nil when empty.
func (q *Queue) ActiveCharacter() Character {
	if len(q.characters) == 0 {
		return nil
	}
	return q.characters[q.active]
}

// NextCharacter advances the cursor, wrapping from the last entry to the first.
//
// Postcondition: returns the new active character, or nil when empty.
func (q *Queue) NextCharacter() Character {
	if n := len(q.characters); n != 0 {
		next := int(q.active) + 1
		if next >= n {
			next = 0
		}
		q.setActive(next)
	}
	return q.ActiveCharacter()
}

// PreviousCharacter rewinds the cursor, wrapping from the first entry to the last.
func (q *Queue) PreviousCharacter() Character {
	if n := len(q.characters); n != 0 {
		prev := int(q.active) - 1
		if prev < 0 {
			prev = n - 1
		}
		q.setActive(prev)
	}
	return q.ActiveCharacter()
}

// SetActiveCharacter moves the cursor to c.
//
// Postcondition: false when c is not on the roster; ActiveChanged is emitted only
// when the active character changes.
func (q *Queue) SetActiveCharacter(c Character) bool {
	idx := replica.IndexOf(q.characters, c)
	if idx < 0 {
		return false
	}
	q.setActive(idx)
	return true
}

// ApplySnapshot replaces the roster and cursor with a replicated snapshot.
// activeIndex addresses characters as sent, nil entries included; the cursor lands
// on that character once nil entries are dropped, or on the first entry when it is
// nil or out of range. Removed (with each character's previous index) precede
// Added; Changed follows only if membership changed. ActiveChanged follows when
// the cursor or the character under it changed.
//
// Precondition: the snapshot holds at most Capacity() characters; extra entries are dropped.
func (q *Queue) ApplySnapshot(characters []Character, activeIndex int) {
	old := q.characters
	oldActive := q.ActiveCharacter()
	oldIndex := q.active

	var target Character
	if activeIndex >= 0 && activeIndex < len(characters) {
		target = characters[activeIndex]
	}
	cur := replica.Compact(characters, validCharacter)
	if !q.contract.Check(len(cur) <= q.capacity, "replicated roster exceeds capacity",
		zap.Int("capacity", q.capacity), zap.Int("count", len(cur))) {
		cur = cur[:q.capacity]
	}
	q.characters = cur

	d := replica.Diff(old, q.characters, validCharacter)
	for _, c := range d.Removed {
		q.logger.Debug("character removed", zap.String("character", c.ID()))
		q.Events.Removed.Emit(Removal{Character: c, Index: replica.IndexOf(old, c)})
	}
	for _, c := range d.Added {
		q.logger.Debug("character added", zap.String("character", c.ID()))
		q.Events.Added.Emit(c)
	}
	if !d.Empty() {
		q.emitChanged()
	}

	idx := 0
	if validCharacter(target) {
		if i := replica.IndexOf(q.characters, target); i >= 0 {
			idx = i
		}
	}
	q.active = uint8(idx)
	if q.active != oldIndex || q.ActiveCharacter() != oldActive {
		q.Events.ActiveChanged.Emit(q.ActiveCharacter())
	}
}

func (q *Queue) setActive(idx int) {
	old := q.ActiveCharacter()
	q.active = uint8(idx)
	if cur := q.ActiveCharacter(); cur != old {
		q.logger.Debug("active character changed", zap.Int("index", idx))
		q.Events.ActiveChanged.Emit(cur)
	}
}

// handleRemoved keeps the cursor in bounds after c left from index idx.
func (q *Queue) handleRemoved(c Character, idx int) {
	if int(q.active) >= idx {
		if q.active != 0 {
			q.active--
		}
		q.Events.ActiveChanged.Emit(q.ActiveCharacter())
	}
	q.logger.Debug("character removed", zap.String("character", c.ID()), zap.Int("index", idx))
	q.Events.Removed.Emit(Removal{Character: c, Index: idx})
}

func (q *Queue) emitChanged() {
	q.Events.Changed.Emit(q.Characters())
}

func validCharacter(c Character) bool { return c != nil }
