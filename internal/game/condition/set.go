package condition

import "sort"

// Active is one applied condition.
type Active struct {
	Def    *Definition
	Stacks int
	// TurnsRemaining counts the bearer's turn ends left; -1 for conditions that do not expire.
	TurnsRemaining int
}

// Set is the conditions on one character. It is not safe for concurrent use.
type Set struct {
	active map[string]*Active
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{active: make(map[string]*Active)}
}

// Apply adds def or, if already present, raises its stacks (capped at MaxStacks)
// and extends its duration to the longer of the two.
//
// Precondition: def is non-nil; turns is ignored for conditions that do not expire.
// Postcondition: Has(def.ID).
func (s *Set) Apply(def *Definition, stacks, turns int) {
	if def.Duration != DurationTurns {
		turns = -1
	}
	if def.MaxStacks == 0 || stacks < 1 {
		stacks = 1
	}
	a, ok := s.active[def.ID]
	if !ok {
		a = &Active{Def: def, TurnsRemaining: turns}
		s.active[def.ID] = a
	} else if turns > a.TurnsRemaining {
		a.TurnsRemaining = turns
	}
	if def.MaxStacks == 0 {
		a.Stacks = 1
		return
	}
	a.Stacks = min(a.Stacks+stacks, def.MaxStacks)
}

// Remove drops id; it reports whether id was present.
func (s *Set) Remove(id string) bool {
	_, ok := s.active[id]
	delete(s.active, id)
	return ok
}

// Has reports whether id is active.
func (s *Set) Has(id string) bool {
	_, ok := s.active[id]
	return ok
}

// Stacks returns the stack count of id, or 0.
func (s *Set) Stacks(id string) int {
	if a, ok := s.active[id]; ok {
		return a.Stacks
	}
	return 0
}

// EndTurn counts down turn-limited conditions and returns the IDs that expired, sorted.
func (s *Set) EndTurn() []string {
	var expired []string
	for id, a := range s.active {
		if a.TurnsRemaining < 0 {
			continue
		}
		a.TurnsRemaining--
		if a.TurnsRemaining <= 0 {
			expired = append(expired, id)
			delete(s.active, id)
		}
	}
	sort.Strings(expired)
	return expired
}

// Incapacitated reports whether any active condition is incapacitating.
func (s *Set) Incapacitated() bool {
	for _, a := range s.active {
		if a.Def.Incapacitating {
			return true
		}
	}
	return false
}

// ActionPenalty returns the action points withheld at turn start.
//
// Postcondition: result >= 0.
func (s *Set) ActionPenalty() int {
	total := 0
	for _, a := range s.active {
		total += max(a.Def.ActionPenalty, 0) * a.Stacks
	}
	return total
}

// ArmorClassPenalty returns the armor class lost to active conditions.
func (s *Set) ArmorClassPenalty() int {
	total := 0
	for _, a := range s.active {
		total += max(a.Def.ArmorClassPenalty, 0) * a.Stacks
	}
	return total
}

// IDs returns the active condition IDs, sorted.
func (s *Set) IDs() []string {
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
