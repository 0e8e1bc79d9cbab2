package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/marsgrid/ticksync/pkg/core"
)

var (
	// ErrUnknownEntity is returned when updating an id that was never inserted.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrDuplicateEntity is returned when inserting an id that already exists.
	ErrDuplicateEntity = errors.New("duplicate entity")
)

// table is one id -> state map. Values are stored and returned by copy so
// callers never alias registry state.
type table[T core.Entity] struct {
	kind core.EntityKind
	rows map[string]T
}

func newTable[T core.Entity](kind core.EntityKind) table[T] {
	return table[T]{kind: kind, rows: make(map[string]T)}
}

func (t table[T]) get(id string) (T, bool) {
	v, ok := t.rows[id]
	return v, ok
}

func (t table[T]) insert(v T) error {
	id := v.EntityID()
	if _, ok := t.rows[id]; ok {
		return fmt.Errorf("insert %s %q: %w", t.kind, id, ErrDuplicateEntity)
	}
	t.rows[id] = v
	return nil
}

func (t table[T]) update(v T) (T, error) {
	id := v.EntityID()
	prev, ok := t.rows[id]
	if !ok {
		return prev, fmt.Errorf("update %s %q: %w", t.kind, id, ErrUnknownEntity)
	}
	t.rows[id] = v
	return prev, nil
}

func (t table[T]) list() []T {
	out := make([]T, 0, len(t.rows))
	for _, v := range t.rows {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out
}

// Sizes is the number of entries per kind.
type Sizes struct {
	Agents  int `json:"agents"`
	Items   int `json:"items"`
	Barrels int `json:"barrels"`
}

// Reader is the read-only view handed to collaborators outside the engine.
type Reader interface {
	Agent(id string) (core.Agent, bool)
	Item(id string) (core.Item, bool)
	Barrel(id string) (core.Barrel, bool)
	Agents() []core.Agent
	Items() []core.Item
	Barrels() []core.Barrel
	Sizes() Sizes
}

// View wraps r so the write methods cannot be reached by a type assertion.
func View(r *Registry) Reader {
	return view{r: r}
}

type view struct{ r *Registry }

func (v view) Agent(id string) (core.Agent, bool)   { return v.r.Agent(id) }
func (v view) Item(id string) (core.Item, bool)     { return v.r.Item(id) }
func (v view) Barrel(id string) (core.Barrel, bool) { return v.r.Barrel(id) }
func (v view) Agents() []core.Agent                 { return v.r.Agents() }
func (v view) Items() []core.Item                   { return v.r.Items() }
func (v view) Barrels() []core.Barrel               { return v.r.Barrels() }
func (v view) Sizes() Sizes                         { return v.r.Sizes() }

// Registry holds the last applied state of every entity seen this session.
// Entries are created on first sighting and never removed; a dead agent
// keeps its last known position.
type Registry struct {
	mu      sync.RWMutex
	agents  table[core.Agent]
	items   table[core.Item]
	barrels table[core.Barrel]
}

func New() *Registry {
	return &Registry{
		agents:  newTable[core.Agent](core.KindAgent),
		items:   newTable[core.Item](core.KindItem),
		barrels: newTable[core.Barrel](core.KindBarrel),
	}
}

func (r *Registry) Agent(id string) (core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents.get(id)
}

func (r *Registry) InsertAgent(a core.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agents.insert(a)
}

// UpdateAgent replaces a stored agent and returns the value it replaced.
func (r *Registry) UpdateAgent(a core.Agent) (core.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agents.update(a)
}

func (r *Registry) Item(id string) (core.Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items.get(id)
}

func (r *Registry) InsertItem(i core.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items.insert(i)
}

func (r *Registry) UpdateItem(i core.Item) (core.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items.update(i)
}

func (r *Registry) Barrel(id string) (core.Barrel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.barrels.get(id)
}

func (r *Registry) InsertBarrel(b core.Barrel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.barrels.insert(b)
}

func (r *Registry) UpdateBarrel(b core.Barrel) (core.Barrel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.barrels.update(b)
}

// Agents returns a copy of every stored agent, ordered by id.
func (r *Registry) Agents() []core.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents.list()
}

func (r *Registry) Items() []core.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items.list()
}

func (r *Registry) Barrels() []core.Barrel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.barrels.list()
}

func (r *Registry) Sizes() Sizes {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Sizes{
		Agents:  len(r.agents.rows),
		Items:   len(r.items.rows),
		Barrels: len(r.barrels.rows),
	}
}
