package ai

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// ScriptCaller is the interface required by the Planner to evaluate Lua preconditions.
type ScriptCaller interface {
	// Call invokes the named global Lua function with string arguments.
	// defined is false when the function does not exist.
	Call(hook string, args ...string) (ret lua.LValue, defined bool)
}

// PlannedAction is one primitive step produced by the planner.
type PlannedAction struct {
	Ability string // ability ID to activate
	Target  string // resolved character ID; empty for untargeted abilities
}

// Planner evaluates an HTN domain for one participant and produces an ordered
// plan for its current turn.
//
// Invariant: domain and caller must not be nil.
type Planner struct {
	domain *Domain
	caller ScriptCaller
}

// NewPlanner constructs a Planner.
//
// Precondition: domain and caller must not be nil.
func NewPlanner(domain *Domain, caller ScriptCaller) *Planner {
	if domain == nil {
		panic("ai.NewPlanner: domain must not be nil")
	}
	if caller == nil {
		panic("ai.NewPlanner: caller must not be nil")
	}
	return &Planner{domain: domain, caller: caller}
}

// Domain returns the planner's domain.
func (p *Planner) Domain() *Domain { return p.domain }

// Plan evaluates the HTN domain against state and returns an ordered plan.
//
// Precondition: state and state.Self must not be nil.
// Postcondition: returns non-nil slice (may be empty); never returns error for Lua failures
// (they are treated as precondition-false).
func (p *Planner) Plan(state *WorldState) ([]PlannedAction, error) {
	if state == nil || state.Self == nil {
		return nil, fmt.Errorf("ai.Planner.Plan: state and state.Self must not be nil")
	}

	taskQueue := []string{p.domain.RootTask()}
	result := []PlannedAction{}

	const maxSteps = 32 // guard against recursive decompositions
	steps := 0

	for len(taskQueue) > 0 && steps < maxSteps {
		steps++
		current := taskQueue[0]
		taskQueue = taskQueue[1:]

		if op, ok := p.domain.OperatorByID(current); ok {
			target := state.ResolveTarget(op.Target)
			if op.Target != "" && target == "" {
				// Nobody to target; the step is skipped.
				continue
			}
			result = append(result, PlannedAction{Ability: op.Ability, Target: target})
			continue
		}

		method := p.findApplicableMethod(current, state)
		if method == nil {
			continue
		}

		// Prepend subtasks (preserves ordered decomposition).
		next := make([]string, 0, len(method.Subtasks)+len(taskQueue))
		next = append(next, method.Subtasks...)
		taskQueue = append(next, taskQueue...)
	}
	return result, nil
}

// findApplicableMethod returns the first Method for taskID whose precondition passes,
// or nil if none applies.
//
// Methods are tried in declaration order. An empty Precondition always passes. The
// precondition hook receives the planning character's ID and the encounter ID.
func (p *Planner) findApplicableMethod(taskID string, state *WorldState) *Method {
	for _, m := range p.domain.MethodsForTask(taskID) {
		if m.Precondition == "" {
			return m
		}
		val, defined := p.caller.Call(m.Precondition, state.Self.ID, state.EncounterID)
		if defined && val == lua.LTrue {
			return m
		}
	}
	return nil
}
