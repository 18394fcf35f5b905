package ai

// CombatantState captures a participant's encounter-relevant state at planning time.
//
// Kind is either "player" or "npc".
type CombatantState struct {
	ID         string
	Name       string
	Kind       string
	HP         float64
	MaxHP      float64
	AC         float64
	Initiative int
	Playable   bool
}

// HPPercent returns current HP as a percentage of MaxHP; 0 if MaxHP == 0.
func (c *CombatantState) HPPercent() float64 {
	if c.MaxHP <= 0 {
		return 0
	}
	return c.HP / c.MaxHP * 100
}

// WorldState is the snapshot passed to the HTN planner for one participant.
//
// Invariant: Self must not be nil and also appears in Combatants.
type WorldState struct {
	EncounterID string
	Self        *CombatantState
	// ActionPoints is what Self has left to spend this turn.
	ActionPoints float64
	// Combatants are every participant, in initiative order when initiative is set.
	Combatants []*CombatantState
}

// Enemies returns all playable combatants of the opposite kind from Self.
//
// Postcondition: returned slice contains no unplayable combatants and no same-kind combatants.
func (ws *WorldState) Enemies() []*CombatantState {
	var out []*CombatantState
	for _, c := range ws.Combatants {
		if c.Playable && c.ID != ws.Self.ID && c.Kind != ws.Self.Kind {
			out = append(out, c)
		}
	}
	return out
}

// HasLivingEnemies returns true when at least one playable enemy exists.
func (ws *WorldState) HasLivingEnemies() bool {
	return len(ws.Enemies()) > 0
}

// NearestEnemy returns the first playable enemy in Combatants order, or nil.
func (ws *WorldState) NearestEnemy() *CombatantState {
	enemies := ws.Enemies()
	if len(enemies) == 0 {
		return nil
	}
	return enemies[0]
}

// WeakestEnemy returns the playable enemy with the lowest HP percentage, or nil.
//
// Postcondition: ties broken by order in Combatants.
func (ws *WorldState) WeakestEnemy() *CombatantState {
	enemies := ws.Enemies()
	if len(enemies) == 0 {
		return nil
	}
	weakest := enemies[0]
	for _, e := range enemies[1:] {
		if e.HPPercent() < weakest.HPPercent() {
			weakest = e
		}
	}
	return weakest
}

// Allies returns all playable combatants of Self's kind, excluding Self.
func (ws *WorldState) Allies() []*CombatantState {
	var out []*CombatantState
	for _, c := range ws.Combatants {
		if c.Playable && c.ID != ws.Self.ID && c.Kind == ws.Self.Kind {
			out = append(out, c)
		}
	}
	return out
}

// ResolveTarget maps a target token to a character ID.
//
// Postcondition: "nearest_enemy", "weakest_enemy" and "self" resolve to IDs, or ""
// when no such combatant exists; any other token is returned as-is.
func (ws *WorldState) ResolveTarget(token string) string {
	switch token {
	case TargetNearestEnemy:
		if e := ws.NearestEnemy(); e != nil {
			return e.ID
		}
		return ""
	case TargetWeakestEnemy:
		if e := ws.WeakestEnemy(); e != nil {
			return e.ID
		}
		return ""
	case TargetSelf:
		return ws.Self.ID
	default:
		return token
	}
}
