package character

import (
	"sort"
	"sync"

	"github.com/cory-johannsen/tactics/internal/game/attribute"
)

// Directory indexes characters by ID. It resolves ability payload targets and
// stored encounter rosters. It is safe for concurrent use.
type Directory struct {
	mu   sync.RWMutex
	byID map[string]*Character
}

// NewDirectory returns an empty Directory.
func NewDirectory() *Directory {
	return &Directory{byID: make(map[string]*Character)}
}

// Add registers c, replacing any character with the same ID.
func (d *Directory) Add(c *Character) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[c.ID()] = c
}

// Remove forgets the character with id.
func (d *Directory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byID, id)
}

// Get returns the character with id.
func (d *Directory) Get(id string) (*Character, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byID[id]
	return c, ok
}

// All returns every character ordered by ID.
func (d *Directory) All() []*Character {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Character, 0, len(d.byID))
	for _, c := range d.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Resolve implements ability.Resolver.
func (d *Directory) Resolve(id string) (*attribute.Store, bool) {
	c, ok := d.Get(id)
	if !ok {
		return nil, false
	}
	return c.Attributes(), true
}
