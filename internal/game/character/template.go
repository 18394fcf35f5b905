package character

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/tactics/internal/game/attribute"
)

// AbilityScores are the six ability scores of a template.
type AbilityScores struct {
	Strength     int `yaml:"strength"`
	Dexterity    int `yaml:"dexterity"`
	Constitution int `yaml:"constitution"`
	Intelligence int `yaml:"intelligence"`
	Wisdom       int `yaml:"wisdom"`
	Charisma     int `yaml:"charisma"`
}

// Template describes a character to build.
type Template struct {
	ID           string        `yaml:"id"`
	Name         string        `yaml:"name"`
	Kind         Kind          `yaml:"kind"`
	Level        int           `yaml:"level"`
	Scores       AbilityScores `yaml:"ability_scores"`
	MaxHitPoints float64       `yaml:"max_hit_points"`
	Speed        float64       `yaml:"speed"`
	ArmorClass   float64       `yaml:"armor_class"`
	Perception   float64       `yaml:"perception"`
	Abilities    []string      `yaml:"abilities"`
	// AIDomain names the planning domain that drives an npc; empty for players.
	AIDomain string `yaml:"ai_domain"`
	// Attributes sets any further attribute by name.
	Attributes map[string]float64 `yaml:"attributes"`
}

// Validate reports the first problem with t.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("character template: missing id")
	}
	if t.Name == "" {
		return fmt.Errorf("character template %q: missing name", t.ID)
	}
	switch t.Kind {
	case KindPlayer, KindNPC:
	default:
		return fmt.Errorf("character template %q: unknown kind %q", t.ID, t.Kind)
	}
	if t.MaxHitPoints <= 0 {
		return fmt.Errorf("character template %q: max_hit_points must be > 0", t.ID)
	}
	for name := range t.Attributes {
		if !attribute.Valid(attribute.Name(name)) {
			return fmt.Errorf("character template %q: unknown attribute %q", t.ID, name)
		}
	}
	return nil
}

// apply writes the template's values into s, maxima before current values.
func (t *Template) apply(s *attribute.Store) error {
	scores := map[attribute.Name]int{
		attribute.AbStrength:     t.Scores.Strength,
		attribute.AbDexterity:    t.Scores.Dexterity,
		attribute.AbConstitution: t.Scores.Constitution,
		attribute.AbIntelligence: t.Scores.Intelligence,
		attribute.AbWisdom:       t.Scores.Wisdom,
		attribute.AbCharisma:     t.Scores.Charisma,
	}
	for name, v := range scores {
		if v == 0 {
			v = 10
		}
		if err := s.Set(name, float64(v)); err != nil {
			return err
		}
	}
	s.RecalculateAbilityModifiers()

	values := []struct {
		name attribute.Name
		v    float64
	}{
		{attribute.MaxHitPoints, t.MaxHitPoints},
		{attribute.HitPoints, t.MaxHitPoints},
		{attribute.MaxSpeed, t.Speed},
		{attribute.Speed, t.Speed},
		{attribute.ArmorClass, t.ArmorClass},
		{attribute.PerceptionModifier, t.Perception},
	}
	for _, kv := range values {
		if kv.v == 0 {
			continue
		}
		if err := s.Set(kv.name, kv.v); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(t.Attributes))
	for name := range t.Attributes {
		names = append(names, name)
	}
	// Maxima first so that paired current values clamp against the final bound.
	sort.Slice(names, func(i, j int) bool {
		_, iMax := attribute.MaxOf(attribute.Name(names[i]))
		_, jMax := attribute.MaxOf(attribute.Name(names[j]))
		if iMax != jMax {
			return !iMax
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		if err := s.Set(attribute.Name(name), t.Attributes[name]); err != nil {
			return err
		}
	}
	return nil
}

// LoadTemplates parses every *.yaml file in dir.
//
// Postcondition: templates are keyed by ID; duplicate IDs are an error.
func LoadTemplates(dir string) (map[string]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading character dir %q: %w", dir, err)
	}
	out := make(map[string]*Template)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		t, err := ParseTemplate(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if _, dup := out[t.ID]; dup {
			return nil, fmt.Errorf("%q: duplicate character template %q", path, t.ID)
		}
		out[t.ID] = t
	}
	return out, nil
}

// ParseTemplate decodes and validates one template.
func ParseTemplate(data []byte) (*Template, error) {
	var t Template
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}
