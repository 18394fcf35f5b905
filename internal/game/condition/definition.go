// Package condition tracks the lasting states (unconscious, stunned, frightened)
// applied to a character between and during turns.
package condition

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Duration kinds.
const (
	DurationTurns        = "turns"         // expires after a number of the bearer's turns end
	DurationUntilRemoved = "until_removed" // stays until explicitly removed
)

// Well-known condition IDs the character layer applies itself.
const (
	Unconscious = "unconscious"
	Dead        = "dead"
)

// Definition is the static description of a condition.
type Definition struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Duration    string `yaml:"duration"`
	// MaxStacks caps the condition value; 0 means the condition does not stack.
	MaxStacks int `yaml:"max_stacks"`
	// ActionPenalty is subtracted, per stack, from the action points granted at turn start.
	ActionPenalty int `yaml:"action_penalty"`
	// ArmorClassPenalty is subtracted, per stack, from armor class while active.
	ArmorClassPenalty int `yaml:"armor_class_penalty"`
	// Incapacitating conditions make the bearer unplayable: they are skipped in initiative order.
	Incapacitating bool `yaml:"incapacitating"`
}

// Validate reports the first problem with d.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("condition: missing id")
	}
	switch d.Duration {
	case DurationTurns, DurationUntilRemoved:
	default:
		return fmt.Errorf("condition %q: unknown duration %q", d.ID, d.Duration)
	}
	if d.MaxStacks < 0 {
		return fmt.Errorf("condition %q: max_stacks must be >= 0", d.ID)
	}
	return nil
}

// Registry holds every known Definition keyed by ID.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry returns a Registry pre-loaded with the built-in conditions.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]*Definition)}
	r.Register(&Definition{ID: Unconscious, Name: "Unconscious", Duration: DurationUntilRemoved, Incapacitating: true, ArmorClassPenalty: 4})
	r.Register(&Definition{ID: Dead, Name: "Dead", Duration: DurationUntilRemoved, Incapacitating: true})
	return r
}

// Register adds def, replacing any definition with the same ID.
//
// Precondition: def is non-nil.
func (r *Registry) Register(def *Definition) {
	r.defs[def.ID] = def
}

// Get returns the definition for id.
func (r *Registry) Get(id string) (*Definition, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// IDs returns the registered IDs in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadDirectory parses every *.yaml file in dir into a Registry that also holds
// the built-in conditions.
//
// Postcondition: returns an error naming the first file that fails to parse or validate.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading condition dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var def Definition
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("validating %q: %w", path, err)
		}
		reg.Register(&def)
	}
	return reg, nil
}
