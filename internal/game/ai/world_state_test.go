package ai_test

import (
	"fmt"
	"testing"

	"github.com/cory-johannsen/tactics/internal/game/ai"
	"pgregory.net/rapid"
)

func goblinState(combatants ...*ai.CombatantState) *ai.WorldState {
	self := &ai.CombatantState{ID: "n1", Kind: "npc", HP: 6, MaxHP: 6, Playable: true}
	return &ai.WorldState{EncounterID: "enc", Self: self, Combatants: append([]*ai.CombatantState{self}, combatants...)}
}

func TestWorldState_Enemies_ReturnsOnlyOppositeKind(t *testing.T) {
	ws := goblinState(
		&ai.CombatantState{ID: "p1", Kind: "player", HP: 20, Playable: true},
		&ai.CombatantState{ID: "n2", Kind: "npc", HP: 10, Playable: true},
	)
	enemies := ws.Enemies()
	if len(enemies) != 1 || enemies[0].ID != "p1" {
		t.Fatalf("expected 1 player enemy, got %v", enemies)
	}
	allies := ws.Allies()
	if len(allies) != 1 || allies[0].ID != "n2" {
		t.Fatalf("expected n2 as the only ally, got %v", allies)
	}
}

func TestWorldState_Enemies_ExcludesUnplayable(t *testing.T) {
	ws := goblinState(
		&ai.CombatantState{ID: "p1", Kind: "player", HP: 0, Playable: false},
		&ai.CombatantState{ID: "p2", Kind: "player", HP: 20, Playable: true},
	)
	enemies := ws.Enemies()
	if len(enemies) != 1 || enemies[0].ID != "p2" {
		t.Fatalf("expected only conscious p2, got %v", enemies)
	}
}

func TestWorldState_NearestEnemy_ReturnsFirst(t *testing.T) {
	ws := goblinState(
		&ai.CombatantState{ID: "p1", Kind: "player", HP: 30, Playable: true},
		&ai.CombatantState{ID: "p2", Kind: "player", HP: 20, Playable: true},
	)
	nearest := ws.NearestEnemy()
	if nearest == nil || nearest.ID != "p1" {
		t.Fatalf("expected p1 as nearest, got %v", nearest)
	}
}

func TestWorldState_WeakestEnemy_ReturnsLowestHP(t *testing.T) {
	ws := goblinState(
		&ai.CombatantState{ID: "p1", Kind: "player", HP: 30, MaxHP: 30, Playable: true},
		&ai.CombatantState{ID: "p2", Kind: "player", HP: 5, MaxHP: 30, Playable: true},
	)
	weakest := ws.WeakestEnemy()
	if weakest == nil || weakest.ID != "p2" {
		t.Fatalf("expected p2 as weakest, got %v", weakest)
	}
	if got := ws.ResolveTarget("weakest_enemy"); got != "p2" {
		t.Fatalf("expected weakest_enemy to resolve to p2, got %q", got)
	}
}

func TestWorldState_ResolveTarget(t *testing.T) {
	ws := goblinState(&ai.CombatantState{ID: "p1", Kind: "player", HP: 20, Playable: true})
	cases := map[string]string{
		"nearest_enemy": "p1",
		"self":          "n1",
		"p7":            "p7",
		"":              "",
	}
	for token, want := range cases {
		if got := ws.ResolveTarget(token); got != want {
			t.Fatalf("ResolveTarget(%q) = %q, want %q", token, got, want)
		}
	}
	if !ws.HasLivingEnemies() {
		t.Fatal("expected HasLivingEnemies=true")
	}
}

func TestProperty_WorldState_NearestEnemy_NilWhenNoEnemies(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 5).Draw(rt, "allies")
		var others []*ai.CombatantState
		for i := 0; i < n; i++ {
			others = append(others, &ai.CombatantState{ID: fmt.Sprintf("n%d", i+2), Kind: "npc", HP: 5, Playable: true})
		}
		ws := goblinState(others...)
		if ws.NearestEnemy() != nil || ws.WeakestEnemy() != nil || ws.HasLivingEnemies() {
			rt.Fatal("expected no enemies among allies only")
		}
		if ws.ResolveTarget("nearest_enemy") != "" {
			rt.Fatal("expected empty target with no enemies")
		}
	})
}
