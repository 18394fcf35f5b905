package encounter

import (
	"fmt"

	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/command"
)

// Snapshot is the replicated and persisted state of one encounter.
type Snapshot struct {
	EncounterID string `json:"encounter_id"`
	// Sequence increases with every snapshot taken of the encounter.
	Sequence        uint64                                `json:"sequence"`
	Mode            Mode                                  `json:"mode,omitempty"`
	State           string                                `json:"state"`
	Roster          []string                              `json:"roster"`
	RosterActive    int                                   `json:"roster_active"`
	ActiveCharacter string                                `json:"active_character,omitempty"`
	Initiative      []InitiativeEntry                     `json:"initiative"`
	Commands        map[string][]CommandEntry             `json:"commands"`
	Attributes      map[string]map[attribute.Name]float64 `json:"attributes"`
}

// InitiativeEntry is one participant's initiative score.
type InitiativeEntry struct {
	CharacterID string `json:"character_id"`
	Score       int    `json:"score"`
}

// CommandEntry describes one queued command, oldest first within its queue.
type CommandEntry struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	AbilityID string `json:"ability_id,omitempty"`
	Label     string `json:"label,omitempty"`
	TargetID  string `json:"target_id,omitempty"`
}

// NewCommandEntry describes c.
func NewCommandEntry(c *command.Command) CommandEntry {
	e := CommandEntry{ID: c.ID().String(), Handle: c.Handle().String()}
	if a := c.Ability(); a != nil {
		e.AbilityID = a.ID
		e.Label = a.Label
	}
	if p := c.Payload(); p != nil {
		e.TargetID = p.TargetID
	}
	return e
}

// Snapshot captures the rule set's current state.
func (rs *RuleSet) Snapshot() Snapshot {
	rs.sequence++
	s := Snapshot{
		EncounterID:     rs.id,
		Sequence:        rs.sequence,
		State:           rs.State().String(),
		Roster:          []string{},
		RosterActive:    rs.roster.ActiveIndex(),
		ActiveCharacter: idOf(rs.active),
		Initiative:      []InitiativeEntry{},
		Commands:        map[string][]CommandEntry{},
		Attributes:      map[string]map[attribute.Name]float64{},
	}
	for _, p := range rs.Participants() {
		s.Roster = append(s.Roster, p.ID())
		s.Attributes[p.ID()] = p.Attributes().Snapshot()
		if q := p.CommandQueue(); q != nil && !q.IsEmpty() {
			for _, c := range q.Commands() {
				s.Commands[p.ID()] = append(s.Commands[p.ID()], NewCommandEntry(c))
			}
		}
	}
	for _, p := range rs.CharactersInInitiativeOrder() {
		score, _ := rs.initiative.Score(p)
		s.Initiative = append(s.Initiative, InitiativeEntry{CharacterID: p.ID(), Score: score})
	}
	return s
}

// Restore rebuilds an empty rule set from a stored snapshot. resolve maps
// character IDs to participants. Queued commands are not restored: ability
// handles do not survive a restart.
//
// Precondition: the rule set has no participants.
func (rs *RuleSet) Restore(s Snapshot, resolve func(id string) (Participant, bool)) error {
	if !rs.contract.Check(rs.roster.Count() == 0, "restore requires an empty encounter") {
		return fmt.Errorf("restoring encounter %s: encounter is not empty", rs.id)
	}
	byID := make(map[string]Participant, len(s.Roster))
	for _, id := range s.Roster {
		p, ok := resolve(id)
		if !ok {
			return fmt.Errorf("restoring encounter %s: unknown character %q", rs.id, id)
		}
		if err := rs.AddCharacter(p); err != nil {
			return err
		}
		if values, ok := s.Attributes[id]; ok {
			p.Attributes().Restore(values)
		}
		byID[id] = p
	}
	for _, e := range s.Initiative {
		p, ok := byID[e.CharacterID]
		if !ok {
			return fmt.Errorf("restoring encounter %s: initiative for %q: %w", rs.id, e.CharacterID, ErrNotParticipant)
		}
		rs.initiative.SetInitiative(p, e.Score)
	}
	if s.ActiveCharacter != "" {
		p, ok := byID[s.ActiveCharacter]
		if !ok {
			return fmt.Errorf("restoring encounter %s: active %q: %w", rs.id, s.ActiveCharacter, ErrNotParticipant)
		}
		rs.active = p
		rs.roster.SetActiveCharacter(p)
		rs.initiative.Seek(p)
	}
	rs.sequence = s.Sequence
	return nil
}
