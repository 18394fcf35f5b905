package ability

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/dice"
)

// Target selects whose attributes an effect modifies.
type Target string

const (
	TargetSelf    Target = "self"
	TargetPayload Target = "payload"
)

// Effect is one attribute modification applied on activation.
type Effect struct {
	Attribute attribute.Name
	Op        attribute.ModOp
	Magnitude float64
	// Dice, when set, is rolled and added to Magnitude.
	Dice   *dice.Expression
	Target Target
}

// Ability is an activatable action.
type Ability struct {
	ID          string
	Label       string
	Description string
	ActionCost  int
	Tags        attribute.Tags
	Effects     []Effect
}

// Definition is the YAML form of an Ability.
type Definition struct {
	ID          string             `yaml:"id"`
	Label       string             `yaml:"label"`
	Description string             `yaml:"description"`
	ActionCost  int                `yaml:"action_cost"`
	Tags        []string           `yaml:"tags"`
	Effects     []EffectDefinition `yaml:"effects"`
}

// EffectDefinition is the YAML form of an Effect.
type EffectDefinition struct {
	Attribute string  `yaml:"attribute"`
	Op        string  `yaml:"op"`
	Magnitude float64 `yaml:"magnitude"`
	Dice      string  `yaml:"dice"`
	Target    string  `yaml:"target"`
}

// Build validates d and converts it to an Ability.
func (d *Definition) Build() (*Ability, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("ability: missing id")
	}
	if d.ActionCost < 0 {
		return nil, fmt.Errorf("ability %q: action_cost must be >= 0", d.ID)
	}
	a := &Ability{
		ID:          d.ID,
		Label:       d.Label,
		Description: d.Description,
		ActionCost:  d.ActionCost,
		Tags:        attribute.Tags(d.Tags),
	}
	if a.Label == "" {
		a.Label = d.ID
	}
	for i, ed := range d.Effects {
		e, err := ed.build()
		if err != nil {
			return nil, fmt.Errorf("ability %q effect %d: %w", d.ID, i, err)
		}
		a.Effects = append(a.Effects, e)
	}
	return a, nil
}

func (ed EffectDefinition) build() (Effect, error) {
	name := attribute.Name(ed.Attribute)
	if !attribute.Valid(name) {
		return Effect{}, fmt.Errorf("unknown attribute %q", ed.Attribute)
	}
	op, err := attribute.ParseModOp(ed.Op)
	if err != nil {
		return Effect{}, err
	}
	e := Effect{Attribute: name, Op: op, Magnitude: ed.Magnitude, Target: TargetSelf}
	switch Target(ed.Target) {
	case "", TargetSelf:
	case TargetPayload:
		e.Target = TargetPayload
	default:
		return Effect{}, fmt.Errorf("unknown target %q", ed.Target)
	}
	if ed.Dice != "" {
		expr, err := dice.Parse(ed.Dice)
		if err != nil {
			return Effect{}, err
		}
		e.Dice = &expr
	}
	return e, nil
}

// Registry holds every known Ability keyed by ID.
type Registry struct {
	abilities map[string]*Ability
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{abilities: make(map[string]*Ability)}
}

// Register adds a, replacing any ability with the same ID.
func (r *Registry) Register(a *Ability) {
	r.abilities[a.ID] = a
}

// Get returns the ability with id.
func (r *Registry) Get(id string) (*Ability, bool) {
	a, ok := r.abilities[id]
	return a, ok
}

// IDs returns every registered ID, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.abilities))
	for id := range r.abilities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadDirectory parses every *.yaml file in dir into a Registry.
//
// Postcondition: unknown YAML fields, unknown attributes and malformed dice are errors.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading ability dir %q: %w", dir, err)
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
		a, err := def.Build()
		if err != nil {
			return nil, fmt.Errorf("building %q: %w", path, err)
		}
		reg.Register(a)
	}
	return reg, nil
}
