// Package scenario describes a prepared encounter in YAML: who takes part, with
// what initiative, and which actions the player characters take each turn.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/tactics/internal/content"
	"github.com/cory-johannsen/tactics/internal/game/character"
	"github.com/cory-johannsen/tactics/internal/game/encounter"
)

// Action is one scripted ability activation.
type Action struct {
	Ability string `yaml:"ability"`
	// Target is a character ID; empty for untargeted abilities.
	Target string `yaml:"target"`
}

// Participant is one entry of the roster. Count > 1 spawns numbered copies.
type Participant struct {
	Template string `yaml:"template"`
	ID       string `yaml:"id"`
	Count    int    `yaml:"count"`
	// Initiative is rolled when absent.
	Initiative *int `yaml:"initiative"`
	// Actions are taken, in order, on every turn of a player character.
	Actions []Action `yaml:"actions"`
}

// Scenario is a prepared encounter.
type Scenario struct {
	ID           string         `yaml:"id"`
	Description  string         `yaml:"description"`
	Mode         encounter.Mode `yaml:"mode"`
	Seed         uint64         `yaml:"seed"`
	Rounds       int            `yaml:"rounds"`
	Participants []Participant  `yaml:"participants"`
}

// Validate reports every problem with s.
func (s *Scenario) Validate() error {
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("scenario: missing id"))
	}
	if s.Mode != "" {
		if _, err := encounter.ParseMode(string(s.Mode)); err != nil {
			errs = append(errs, fmt.Errorf("scenario %q: %w", s.ID, err))
		}
	}
	if s.Rounds < 0 {
		errs = append(errs, fmt.Errorf("scenario %q: rounds must be >= 0", s.ID))
	}
	if len(s.Participants) == 0 {
		errs = append(errs, fmt.Errorf("scenario %q: no participants", s.ID))
	}
	seen := make(map[string]bool)
	for i, p := range s.Participants {
		if p.Template == "" {
			errs = append(errs, fmt.Errorf("scenario %q: participant %d has no template", s.ID, i))
		}
		if p.Count < 0 {
			errs = append(errs, fmt.Errorf("scenario %q: participant %d has negative count", s.ID, i))
		}
		for _, id := range p.ids() {
			if seen[id] {
				errs = append(errs, fmt.Errorf("scenario %q: duplicate participant id %q", s.ID, id))
			}
			seen[id] = true
		}
	}
	return errors.Join(errs...)
}

// ids returns the character IDs the participant spawns.
func (p Participant) ids() []string {
	base := p.ID
	if base == "" {
		base = p.Template
	}
	if p.Count <= 1 {
		return []string{base}
	}
	out := make([]string, p.Count)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d", base, i+1)
	}
	return out
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses the scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %q: %w", path, err)
	}
	return Parse(data)
}

// LoadDirectory parses every *.yaml scenario in dir, sorted by ID.
//
// Postcondition: an error names the first file that fails, or a duplicated ID.
func LoadDirectory(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenarios %q: %w", dir, err)
	}
	var out []*Scenario
	seen := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		s, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if prev, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("%s: scenario %q already defined in %s", e.Name(), s.ID, prev)
		}
		seen[s.ID] = e.Name()
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Cast is the spawned roster of a scenario.
type Cast struct {
	Characters []*character.Character
	// Initiative holds the fixed scores; everyone else rolls.
	Initiative map[string]int
	Actions    map[string][]Action
}

// Spawn builds every participant from b.
//
// Postcondition: every character is in b.Directory, in scenario order.
func (s *Scenario) Spawn(b *content.Bundle) (*Cast, error) {
	cast := &Cast{Initiative: make(map[string]int), Actions: make(map[string][]Action)}
	for _, p := range s.Participants {
		for _, id := range p.ids() {
			c, err := b.Spawn(p.Template, id)
			if err != nil {
				return nil, fmt.Errorf("scenario %q: %w", s.ID, err)
			}
			cast.Characters = append(cast.Characters, c)
			if p.Initiative != nil {
				cast.Initiative[id] = *p.Initiative
			}
			if len(p.Actions) > 0 {
				cast.Actions[id] = p.Actions
			}
		}
	}
	return cast, nil
}

// Participants returns the cast as encounter participants.
func (c *Cast) Participants() []encounter.Participant {
	out := make([]encounter.Participant, len(c.Characters))
	for i, ch := range c.Characters {
		out[i] = ch
	}
	return out
}

// Join adds every cast member not yet on the roster of rs.
func (c *Cast) Join(rs *encounter.RuleSet) error {
	for _, ch := range c.Characters {
		if _, ok := rs.Participant(ch.ID()); !ok {
			if err := rs.AddCharacter(ch); err != nil {
				return err
			}
		}
	}
	return nil
}

// Seat adds the cast to rs and sets initiative: fixed scores where given,
// rolled for everyone else.
func (c *Cast) Seat(rs *encounter.RuleSet) error {
	if err := c.Join(rs); err != nil {
		return err
	}
	return c.ApplyInitiative(rs)
}

// IDs returns the cast's character IDs in scenario order.
func (c *Cast) IDs() []string {
	out := make([]string, len(c.Characters))
	for i, ch := range c.Characters {
		out[i] = ch.ID()
	}
	return out
}

// ApplyInitiative sets the fixed scores and rolls for anyone still without one.
func (c *Cast) ApplyInitiative(rs *encounter.RuleSet) error {
	for _, ch := range c.Characters {
		if score, ok := c.Initiative[ch.ID()]; ok {
			if err := rs.SetCharacterInitiative(ch, score); err != nil {
				return err
			}
			continue
		}
		if !rs.IsInitiativeSetForCharacter(ch) {
			if _, err := rs.RollInitiative(ch); err != nil {
				return err
			}
		}
	}
	return nil
}
