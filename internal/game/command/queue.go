package command

import (
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/game/event"
	"github.com/cory-johannsen/tactics/internal/game/replica"
)

// ErrDuplicateCommand is returned when a command is enqueued twice.
var ErrDuplicateCommand = errors.New("command already queued")

// QueueEvents are the lifecycle notifications of a Queue. For one mutation,
// removals fire before additions and Changed fires last.
type QueueEvents struct {
	Added   event.Bus[*Command]
	Removed event.Bus[*Command]
	// Changed carries the full queue contents after the mutation.
	Changed event.Bus[[]*Command]
}

// Queue holds the pending commands of one character.
//
// The next command is the most recently enqueued one: peek and pop work on the
// tail. Queue is not safe for concurrent use.
type Queue struct {
	Events QueueEvents

	owner    string
	commands []*Command
	contract contract.Enforcer
	logger   *zap.Logger
}

// NewQueue returns an empty Queue for the character ownerID.
//
// Precondition: logger is non-nil.
func NewQueue(ownerID string, enforcer contract.Enforcer, logger *zap.Logger) *Queue {
	return &Queue{
		owner:    ownerID,
		contract: enforcer,
		logger:   logger.Named("command_queue").With(zap.String("queue", ownerID)),
	}
}

// Owner returns the ID of the character the queue belongs to.
func (q *Queue) Owner() string { return q.owner }

// Enqueue appends c.
//
// Precondition: c is not already queued.
// Postcondition: on success Added then Changed are emitted; on a duplicate the
// queue is unchanged and ErrDuplicateCommand is returned.
func (q *Queue) Enqueue(c *Command) error {
	if !q.contract.Check(replica.IndexOf(q.commands, c) < 0,
		"the same command can only exist in the queue once",
		zap.String("queue", q.owner), zap.Stringer("command", c)) {
		return ErrDuplicateCommand
	}
	q.commands = append(q.commands, c)
	q.publish(replica.Delta[*Command]{Added: []*Command{c}})
	return nil
}

// PeekNext returns the next command without removing it, or nil when empty.
func (q *Queue) PeekNext() *Command {
	if len(q.commands) == 0 {
		return nil
	}
	return q.commands[len(q.commands)-1]
}

// PopNext removes and returns the next command, or nil when empty.
//
// Postcondition: when a command is returned, Removed then Changed are emitted.
func (q *Queue) PopNext() *Command {
	c := q.PeekNext()
	if c == nil {
		return nil
	}
	q.commands = q.commands[:len(q.commands)-1]
	q.logger.Debug("popping command", zap.Stringer("command", c))
	q.publish(replica.Delta[*Command]{Removed: []*Command{c}})
	return c
}

// DropNext removes the next command without returning it.
func (q *Queue) DropNext() {
	q.PopNext()
}

// PopAndExecuteNext attempts the next command. A blocked command keeps its place;
// any other outcome removes it.
func (q *Queue) PopAndExecuteNext() ExecuteResult {
	next := q.PeekNext()
	if next == nil {
		q.logger.Debug("no commands queued")
		return ExecuteNone
	}

	result := next.AttemptExecuteImmediately()
	if result == ExecuteBlocked {
		q.logger.Debug("next command blocked; keeping its place", zap.Stringer("command", next))
		return result
	}
	// Activation may have mutated the queue (e.g. the ability cancelled commands);
	// drop the executed command wherever it now sits.
	if q.PeekNext() == next {
		q.DropNext()
	} else {
		q.Remove(next)
	}
	return result
}

// Remove drops c if queued and reports whether it was.
func (q *Queue) Remove(c *Command) bool {
	kept := q.commands[:0:0]
	for _, existing := range q.commands {
		if existing != c {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(q.commands) {
		return false
	}
	q.commands = kept
	q.publish(replica.Delta[*Command]{Removed: []*Command{c}})
	return true
}

// Clear empties the queue and emits one Changed; no per-command Removed events fire.
func (q *Queue) Clear() {
	q.commands = nil
	q.emitChanged()
}

// Count returns the number of queued commands.
func (q *Queue) Count() int { return len(q.commands) }

// IsEmpty reports whether Count is zero.
func (q *Queue) IsEmpty() bool { return len(q.commands) == 0 }

// Contains reports whether c is queued.
func (q *Queue) Contains(c *Command) bool { return replica.IndexOf(q.commands, c) >= 0 }

// Commands returns the queued commands oldest first.
func (q *Queue) Commands() []*Command {
	return append([]*Command(nil), q.commands...)
}

// ApplySnapshot replaces the contents with a replicated snapshot, oldest first, and
// emits the notifications a local mutation producing the same change would have.
// Nil entries are dropped.
//
// Postcondition: Removed for each dropped command, then Added for each new one,
// then one Changed.
func (q *Queue) ApplySnapshot(commands []*Command) {
	old := q.commands
	q.commands = replica.Compact(commands, validCommand)
	q.publish(replica.Diff(old, q.commands, validCommand))
}

func (q *Queue) publish(d replica.Delta[*Command]) {
	for _, c := range d.Removed {
		q.logger.Debug("command removed", zap.Stringer("command", c))
		q.Events.Removed.Emit(c)
	}
	for _, c := range d.Added {
		q.logger.Debug("command added", zap.Stringer("command", c))
		q.Events.Added.Emit(c)
	}
	q.emitChanged()
}

func (q *Queue) emitChanged() {
	q.logger.Debug("command queue changed", zap.Int("count", len(q.commands)))
	q.Events.Changed.Emit(q.Commands())
}

func validCommand(c *Command) bool { return c != nil }
