// Package ai implements the Hierarchical Task Network (HTN) planner that chooses
// commands for non-player encounter participants.
//
// HTN planning decomposes abstract tasks into primitive operators via ordered methods.
// Method preconditions are evaluated as Lua hooks; operators name the ability to
// activate and whom to activate it against.
package ai

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/tactics/internal/game/ability"
)

// Target tokens resolved against the world state at planning time. Any other
// non-empty operator target is taken as a character ID.
const (
	TargetNearestEnemy = "nearest_enemy"
	TargetWeakestEnemy = "weakest_enemy"
	TargetSelf         = "self"
)

// DefaultRoot is the root task of a domain that names none.
const DefaultRoot = "behave"

// AbilityCatalog looks up ability definitions. *ability.Registry satisfies it.
type AbilityCatalog interface {
	Get(id string) (*ability.Ability, bool)
}

// Task is an abstract goal that can be decomposed by methods.
type Task struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
}

// Method decomposes a task into an ordered list of subtasks or operator IDs.
//
// Precondition: Precondition names a Lua function; empty means always applicable.
type Method struct {
	TaskID       string   `yaml:"task"`
	ID           string   `yaml:"id"`
	Precondition string   `yaml:"precondition"`
	Subtasks     []string `yaml:"subtasks"`
}

// Operator is a primitive step that queues one ability activation.
type Operator struct {
	ID      string `yaml:"id"`
	Ability string `yaml:"ability"`
	// Target is a target token, a character ID, or empty for an untargeted activation.
	Target string `yaml:"target"`
}

// TargetsEnemy reports whether the operator picks an enemy at planning time.
func (op *Operator) TargetsEnemy() bool {
	return op.Target == TargetNearestEnemy || op.Target == TargetWeakestEnemy
}

// Domain holds one HTN domain loaded from YAML.
//
// Invariant: Task, Method and Operator IDs are unique within their kind.
type Domain struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	// Root is the task planning starts from; DefaultRoot when empty.
	Root      string      `yaml:"root"`
	Tasks     []*Task     `yaml:"tasks"`
	Methods   []*Method   `yaml:"methods"`
	Operators []*Operator `yaml:"operators"`
}

// RootTask returns the task planning starts from.
func (d *Domain) RootTask() string {
	if d.Root == "" {
		return DefaultRoot
	}
	return d.Root
}

// Validate checks the domain's structure and reports every problem found.
//
// Postcondition: nil means the ID is set, the root task is declared, IDs are
// unique, every method decomposes a declared task into declared tasks or
// operators, and every operator names an ability.
func (d *Domain) Validate() error {
	if d.ID == "" {
		return errors.New("ai domain: id must not be empty")
	}
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("ai domain %q: "+format, append([]any{d.ID}, args...)...))
	}

	tasks := make(map[string]bool, len(d.Tasks))
	for _, t := range d.Tasks {
		switch {
		case t.ID == "":
			fail("task has an empty id")
		case tasks[t.ID]:
			fail("duplicate task %q", t.ID)
		}
		tasks[t.ID] = true
	}
	if !tasks[d.RootTask()] {
		fail("root task %q is not declared", d.RootTask())
	}

	operators := make(map[string]bool, len(d.Operators))
	for _, op := range d.Operators {
		switch {
		case op.ID == "":
			fail("operator has an empty id")
		case operators[op.ID]:
			fail("duplicate operator %q", op.ID)
		case tasks[op.ID]:
			fail("operator %q shadows a task", op.ID)
		case op.Ability == "":
			fail("operator %q names no ability", op.ID)
		}
		operators[op.ID] = true
	}

	methods := make(map[string]bool, len(d.Methods))
	for _, m := range d.Methods {
		if m.ID == "" {
			fail("method has an empty id")
			continue
		}
		if methods[m.ID] {
			fail("duplicate method %q", m.ID)
		}
		methods[m.ID] = true
		if !tasks[m.TaskID] {
			fail("method %q decomposes unknown task %q", m.ID, m.TaskID)
		}
		if len(m.Subtasks) == 0 {
			fail("method %q has no subtasks", m.ID)
		}
		for _, sub := range m.Subtasks {
			if !tasks[sub] && !operators[sub] {
				fail("method %q: subtask %q is neither a task nor an operator", m.ID, sub)
			}
		}
	}
	return errors.Join(errs...)
}

// CheckAbilities verifies the domain's operators against the loaded abilities.
//
// Postcondition: nil means every operator's ability exists, enemy-targeted
// operators use an ability with an effect on its target, and untargeted operators
// use an ability without one.
func (d *Domain) CheckAbilities(abilities AbilityCatalog) error {
	var errs []error
	for _, op := range d.Operators {
		a, ok := abilities.Get(op.Ability)
		if !ok {
			errs = append(errs, fmt.Errorf("ai domain %q operator %q: unknown ability %q", d.ID, op.ID, op.Ability))
			continue
		}
		targeted := affectsTarget(a)
		switch {
		case op.TargetsEnemy() && !targeted:
			errs = append(errs, fmt.Errorf("ai domain %q operator %q: ability %q has no effect on %s",
				d.ID, op.ID, a.ID, op.Target))
		case op.Target == "" && targeted:
			errs = append(errs, fmt.Errorf("ai domain %q operator %q: ability %q needs a target", d.ID, op.ID, a.ID))
		}
	}
	return errors.Join(errs...)
}

func affectsTarget(a *ability.Ability) bool {
	for _, e := range a.Effects {
		if e.Target == ability.TargetPayload {
			return true
		}
	}
	return false
}

// OperatorByID returns the operator with the given ID.
func (d *Domain) OperatorByID(id string) (*Operator, bool) {
	for _, op := range d.Operators {
		if op.ID == id {
			return op, true
		}
	}
	return nil, false
}

// MethodsForTask returns the methods that decompose taskID, in declaration order.
func (d *Domain) MethodsForTask(taskID string) []*Method {
	var out []*Method
	for _, m := range d.Methods {
		if m.TaskID == taskID {
			out = append(out, m)
		}
	}
	return out
}

type domainFile struct {
	Domain *Domain `yaml:"domain"`
}

// LoadDomains reads every *.yaml file in dir, validates each domain and checks its
// operators against abilities.
//
// Postcondition: domains are sorted by ID; duplicate domain IDs are an error.
func LoadDomains(dir string, abilities AbilityCatalog) ([]*Domain, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading ai domains %q: %w", dir, err)
	}
	var domains []*Domain
	seen := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		d, err := parseDomainFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("ai domain %q in %s already defined in %s", d.ID, e.Name(), prev)
		}
		seen[d.ID] = e.Name()
		if err := d.CheckAbilities(abilities); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i].ID < domains[j].ID })
	return domains, nil
}

func parseDomainFile(path string) (*Domain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ai domain: %w", err)
	}
	var f domainFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if f.Domain == nil {
		return nil, fmt.Errorf("%s: missing top-level domain key", filepath.Base(path))
	}
	if err := f.Domain.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return f.Domain, nil
}
