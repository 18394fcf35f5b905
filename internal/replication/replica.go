package replication

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/command"
	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/game/encounter"
	"github.com/cory-johannsen/tactics/internal/game/event"
	"github.com/cory-johannsen/tactics/internal/game/roster"
)

// Proxy stands in for a remote character on a replica. It has no ability system;
// its commands carry the descriptions published by the authority.
type Proxy struct {
	id    string
	queue *command.Queue
}

// ID returns the character ID.
func (p *Proxy) ID() string { return p.id }

// AbilitySystem returns nil: replicas never activate abilities.
func (p *Proxy) AbilitySystem() ability.System { return nil }

// CommandQueue returns the shadow command queue.
func (p *Proxy) CommandQueue() *command.Queue { return p.queue }

// ReplicaEvents are the Replica notifications, emitted on the goroutine applying snapshots.
type ReplicaEvents struct {
	// Applied carries each snapshot after the shadow state reflects it.
	Applied event.Bus[encounter.Snapshot]
	// Stale carries snapshots dropped for arriving out of order.
	Stale event.Bus[encounter.Snapshot]
}

// Replica mirrors one encounter from published snapshots. Roster and command
// queue changes surface through the shadow queues' own events, exactly as a
// local mutation producing the same change would.
//
// Subscribe to events before snapshots start arriving. The shadow roster and
// queues belong to the goroutine applying snapshots; the other accessors are safe
// for concurrent use, including from event handlers.
type Replica struct {
	Events ReplicaEvents

	encounterID string
	contract    contract.Enforcer
	logger      *zap.Logger

	applyMu  sync.Mutex
	applied  bool
	roster   *roster.Queue
	commands map[uuid.UUID]*command.Command

	mu         sync.RWMutex
	sequence   uint64
	proxies    map[string]*Proxy
	entries    map[*command.Command]encounter.CommandEntry
	initiative []encounter.InitiativeEntry
	attributes map[string]map[attribute.Name]float64
	active     string
	state      string
	mode       encounter.Mode
}

// NewReplica returns an empty replica of encounterID.
//
// Precondition: logger must not be nil.
func NewReplica(encounterID string, enforcer contract.Enforcer, logger *zap.Logger) *Replica {
	logger = logger.Named("replica").With(zap.String("encounter", encounterID))
	return &Replica{
		encounterID: encounterID,
		contract:    enforcer,
		logger:      logger,
		roster:      roster.NewQueue(encounterID, roster.MaxCapacity, enforcer, logger),
		proxies:     make(map[string]*Proxy),
		commands:    make(map[uuid.UUID]*command.Command),
		entries:     make(map[*command.Command]encounter.CommandEntry),
		attributes:  make(map[string]map[attribute.Name]float64),
	}
}

// EncounterID returns the mirrored encounter's ID.
func (r *Replica) EncounterID() string { return r.encounterID }

// Roster returns the shadow turn-order roster. Subscribe to its events before
// snapshots start arriving.
func (r *Replica) Roster() *roster.Queue { return r.roster }

// Apply brings the replica up to s.
//
// Precondition: s belongs to the mirrored encounter.
// Postcondition: returns false and leaves the replica unchanged when s is not newer
// than the last applied snapshot. Roster members, commands and the active
// character that cannot be resolved are dropped.
func (r *Replica) Apply(s encounter.Snapshot) bool {
	if !r.contract.Check(s.EncounterID == r.encounterID, "snapshot applied to the wrong replica",
		zap.String("snapshot", s.EncounterID)) {
		return false
	}
	r.applyMu.Lock()
	defer r.applyMu.Unlock()
	if r.applied && s.Sequence <= r.sequence {
		r.logger.Debug("stale snapshot dropped",
			zap.Uint64("sequence", s.Sequence), zap.Uint64("current", r.sequence))
		r.Events.Stale.Emit(s)
		return false
	}
	r.applied = true

	members := make([]roster.Character, len(s.Roster))
	for i, id := range s.Roster {
		if p := r.proxy(id); p != nil {
			members[i] = p
		}
	}
	r.roster.ApplySnapshot(members, s.RosterActive)

	live := make(map[string]bool, len(s.Roster))
	for _, c := range r.roster.Characters() {
		live[c.ID()] = true
	}
	r.mu.RLock()
	proxies := make([]*Proxy, 0, len(r.proxies))
	for _, p := range r.proxies {
		proxies = append(proxies, p)
	}
	r.mu.RUnlock()
	sort.Slice(proxies, func(i, j int) bool { return proxies[i].id < proxies[j].id })
	for _, p := range proxies {
		if live[p.id] {
			r.applyCommands(p, s.Commands[p.id])
			continue
		}
		r.applyCommands(p, nil)
		r.mu.Lock()
		delete(r.proxies, p.id)
		r.mu.Unlock()
	}

	initiative := make([]encounter.InitiativeEntry, 0, len(s.Initiative))
	for _, e := range s.Initiative {
		if live[e.CharacterID] {
			initiative = append(initiative, e)
		}
	}
	attributes := make(map[string]map[attribute.Name]float64, len(s.Attributes))
	for id, values := range s.Attributes {
		if live[id] {
			attributes[id] = values
		}
	}
	r.mu.Lock()
	r.sequence = s.Sequence
	r.initiative = initiative
	r.attributes = attributes
	r.active = ""
	if live[s.ActiveCharacter] {
		r.active = s.ActiveCharacter
	}
	r.state = s.State
	r.mode = s.Mode
	r.mu.Unlock()

	r.logger.Debug("snapshot applied", zap.Uint64("sequence", s.Sequence), zap.Int("roster", len(live)))
	r.Events.Applied.Emit(s)
	return true
}

// proxy returns the proxy for id, creating it on first sight. Empty IDs do not resolve.
func (r *Replica) proxy(id string) *Proxy {
	if id == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.proxies[id]; ok {
		return p
	}
	p := &Proxy{id: id, queue: command.NewQueue(id, r.contract, r.logger)}
	r.proxies[id] = p
	return p
}

// applyCommands reconciles p's shadow queue with entries, reusing the command
// object for every ID seen before.
func (r *Replica) applyCommands(p *Proxy, entries []encounter.CommandEntry) {
	cmds := make([]*command.Command, len(entries))
	keep := make(map[uuid.UUID]bool, len(entries))
	for i, e := range entries {
		id, err := uuid.Parse(e.ID)
		if err != nil {
			r.logger.Warn("unresolvable command", zap.String("character", p.id), zap.String("command", e.ID))
			continue
		}
		c, ok := r.commands[id]
		if !ok || c.Target() != command.Character(p) {
			h, err := ability.ParseHandle(e.Handle)
			if err != nil {
				r.logger.Warn("unresolvable ability handle", zap.String("character", p.id), zap.String("handle", e.Handle))
				continue
			}
			c = command.NewWithID(id, p, h, payloadFor(e), r.logger)
			r.commands[id] = c
		}
		r.mu.Lock()
		r.entries[c] = e
		r.mu.Unlock()
		keep[id] = true
		cmds[i] = c
	}
	for _, c := range p.queue.Commands() {
		if !keep[c.ID()] {
			delete(r.commands, c.ID())
			r.mu.Lock()
			delete(r.entries, c)
			r.mu.Unlock()
		}
	}
	p.queue.ApplySnapshot(cmds)
}

func payloadFor(e encounter.CommandEntry) *ability.Payload {
	if e.TargetID == "" {
		return nil
	}
	return &ability.Payload{TargetID: e.TargetID}
}

// Sequence returns the sequence of the last applied snapshot.
func (r *Replica) Sequence() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sequence
}

// State returns the mirrored rule set state name.
func (r *Replica) State() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Mode returns the mirrored mode of play.
func (r *Replica) Mode() encounter.Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// ActiveCharacter returns the ID of the character whose turn it is, or "".
func (r *Replica) ActiveCharacter() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Initiative returns the mirrored initiative order.
func (r *Replica) Initiative() []encounter.InitiativeEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]encounter.InitiativeEntry(nil), r.initiative...)
}

// Attribute returns a mirrored attribute value of characterID.
func (r *Replica) Attribute(characterID string, name attribute.Name) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.attributes[characterID][name]
	return v, ok
}

// Character returns the proxy for characterID while it is in the roster.
func (r *Replica) Character(characterID string) (*Proxy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.proxies[characterID]
	return p, ok
}

// Describe returns the published description of a shadow command.
func (r *Replica) Describe(c *command.Command) (encounter.CommandEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[c]
	return e, ok
}
