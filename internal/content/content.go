// Package content loads the YAML and Lua content a rules process runs on and
// builds characters from it.
package content

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/config"
	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/ai"
	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/character"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/contract"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/scripting"
)

// ErrUnknownTemplate is returned by Spawn for a template ID that was not loaded.
var ErrUnknownTemplate = errors.New("unknown character template")

// Bundle is the loaded content plus the directory of characters built from it.
type Bundle struct {
	Abilities  *ability.Registry
	Conditions *condition.Registry
	Templates  map[string]*character.Template
	Scripts    *scripting.Host
	AI         *ai.Registry
	Directory  *character.Directory

	roller   *dice.Roller
	contract contract.Enforcer
	logger   *zap.Logger
}

// Load reads every content directory named by cfg. The conditions, AI and
// scripts directories are optional; a missing one loads nothing.
//
// Precondition: roller and logger must not be nil.
// Postcondition: every AI domain is registered against the loaded scripts.
func Load(cfg config.ContentConfig, roller *dice.Roller, enforcer contract.Enforcer, logger *zap.Logger) (*Bundle, error) {
	start := time.Now()
	logger = logger.Named("content")
	b := &Bundle{
		Directory: character.NewDirectory(),
		AI:        ai.NewRegistry(),
		roller:    roller,
		contract:  enforcer,
		logger:    logger,
	}

	var err error
	if b.Abilities, err = ability.LoadDirectory(cfg.AbilitiesDir); err != nil {
		return nil, fmt.Errorf("loading abilities: %w", err)
	}
	b.Conditions = condition.NewRegistry()
	if present(cfg.ConditionsDir) {
		if b.Conditions, err = condition.LoadDirectory(cfg.ConditionsDir); err != nil {
			return nil, fmt.Errorf("loading conditions: %w", err)
		}
	}
	if b.Templates, err = character.LoadTemplates(cfg.CharactersDir); err != nil {
		return nil, fmt.Errorf("loading character templates: %w", err)
	}

	b.Scripts = scripting.NewHost(scripting.Callbacks{
		Attribute: b.attribute,
		Roll: func(expr string) (int, error) {
			res, err := roller.RollExpr(expr)
			return res.Total(), err
		},
	}, cfg.ScriptInstructionLimit, logger)
	if present(cfg.ScriptsDir) {
		if err := b.Scripts.LoadDirectory(cfg.ScriptsDir); err != nil {
			b.Scripts.Close()
			return nil, err
		}
	}
	if present(cfg.AIDir) {
		domains, err := ai.LoadDomains(cfg.AIDir, b.Abilities)
		if err != nil {
			b.Scripts.Close()
			return nil, err
		}
		for _, d := range domains {
			if err := b.AI.Register(d, b.Scripts); err != nil {
				b.Scripts.Close()
				return nil, err
			}
		}
	}

	logger.Info("content loaded",
		zap.Int("abilities", len(b.Abilities.IDs())),
		zap.Int("conditions", len(b.Conditions.IDs())),
		zap.Int("templates", len(b.Templates)),
		zap.Strings("ai_domains", b.AI.DomainIDs()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return b, nil
}

// present reports whether dir names an existing directory.
func present(dir string) bool {
	if dir == "" {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

func (b *Bundle) attribute(characterID, name string) (float64, bool) {
	c, ok := b.Directory.Get(characterID)
	if !ok {
		return 0, false
	}
	n := attribute.Name(name)
	if !attribute.Valid(n) {
		return 0, false
	}
	return c.Attributes().Get(n), true
}

// Deps returns the collaborators characters built from this bundle share.
func (b *Bundle) Deps() character.Deps {
	return character.Deps{
		Abilities:  b.Abilities,
		Conditions: b.Conditions,
		Roller:     b.roller,
		Hooks:      b.Scripts,
		Resolver:   b.Directory.Resolve,
		Contract:   b.contract,
		Logger:     b.logger,
	}
}

// Spawn builds a character from templateID and adds it to the directory. An empty
// id selects a fresh one.
//
// Postcondition: ErrUnknownTemplate when templateID was not loaded.
func (b *Bundle) Spawn(templateID, id string) (*character.Character, error) {
	tmpl, ok := b.Templates[templateID]
	if !ok {
		return nil, fmt.Errorf("spawning %q: %w", templateID, ErrUnknownTemplate)
	}
	var (
		c   *character.Character
		err error
	)
	if id == "" {
		c, err = character.New(tmpl, b.Deps())
	} else {
		c, err = character.NewWithID(id, tmpl, b.Deps())
	}
	if err != nil {
		return nil, err
	}
	b.Directory.Add(c)
	return c, nil
}

// TemplateIDs returns the loaded template IDs in sorted order.
func (b *Bundle) TemplateIDs() []string {
	ids := make([]string, 0, len(b.Templates))
	for id := range b.Templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Commander returns an NPC commander planning with the loaded AI domains.
func (b *Bundle) Commander() *ai.Commander {
	return ai.NewCommander(b.AI, b.logger)
}

// Close releases the script VM.
func (b *Bundle) Close() {
	b.Scripts.Close()
}
