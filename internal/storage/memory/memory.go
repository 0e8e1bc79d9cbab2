// Package memory keeps a session in memory and exports it as JSON when the
// session ends.
package memory

import (
	"sync"
	"time"

	"github.com/marsgrid/ticksync/internal/config"
	"github.com/marsgrid/ticksync/internal/storage"
	"github.com/marsgrid/ticksync/pkg/core"
)

// State is one recorded value of an entity.
type State struct {
	Tick   int
	Entity core.Entity
}

// Track groups an entity with all its recorded states
type Track struct {
	ID        string
	FirstTick int
	States    []State
}

// ScoreFrame is the score table as of one tick.
type ScoreFrame struct {
	Tick   int          `json:"tick"`
	Scores []core.Score `json:"scores"`
}

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	agents  map[string]*Track
	items   map[string]*Track
	barrels map[string]*Track

	events   [][]any
	scores   []ScoreFrame
	finished *core.GameFinished
	lastTick int

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	b := &Backend{cfg: cfg}
	b.reset()
	return b
}

func (b *Backend) reset() {
	b.agents = make(map[string]*Track)
	b.items = make(map[string]*Track)
	b.barrels = make(map[string]*Track)
	b.events = nil
	b.scores = nil
	b.finished = nil
	b.lastTick = 0
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session, dropping anything recorded
// for the previous one.
func (b *Backend) StartSession(session *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = session
	b.reset()
	return nil
}

// EndSession exports the session. Without a session there is nothing to
// write.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return storage.ErrNoSession
	}
	return b.exportJSON()
}

// ExportedFilePath returns the path of the last export, or "" if none.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

func (b *Backend) tracks(kind core.EntityKind) map[string]*Track {
	switch kind {
	case core.KindAgent:
		return b.agents
	case core.KindItem:
		return b.items
	default:
		return b.barrels
	}
}

func (b *Backend) recordState(tick int, e core.Entity) {
	tracks := b.tracks(e.EntityKind())
	t, ok := tracks[e.EntityID()]
	if !ok {
		t = &Track{ID: e.EntityID(), FirstTick: tick}
		tracks[e.EntityID()] = t
	}
	t.States = append(t.States, State{Tick: tick, Entity: e})
}

func (b *Backend) seen(tick int) {
	if tick > b.lastTick {
		b.lastTick = tick
	}
}

// Record appends ev to the session.
func (b *Backend) Record(_ time.Time, ev core.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return storage.ErrNoSession
	}

	switch v := ev.(type) {
	case core.EntityCreated:
		b.seen(v.Tick)
		b.recordState(v.Tick, v.Entity)
	case core.EntityUpdated:
		b.seen(v.Tick)
		b.recordState(v.Tick, v.Current)
	case core.EntityEliminated:
		b.events = append(b.events, []any{v.Tick, "eliminated", v.Victim.ID, v.KillerID})
	case core.Explosion:
		b.events = append(b.events, []any{v.Tick, "explosion", v.BarrelID, v.X, v.Y})
	case core.ScoresChanged:
		b.seen(v.Tick)
		b.scores = append(b.scores, ScoreFrame{Tick: v.Tick, Scores: v.Scores})
	case core.TickCorrected:
		b.events = append(b.events, []any{v.To, "corrected", v.From, v.To})
	case core.LifecycleChanged:
		b.events = append(b.events, []any{v.Tick, "lifecycle", v.From, v.To})
	case core.MapAnnounced:
		mode := ""
		if v.GameMode != nil {
			mode = v.GameMode.String()
		}
		b.events = append(b.events, []any{v.Tick, "map", v.MapPath, mode})
	case core.ConnectionChanged:
		b.events = append(b.events, []any{b.lastTick, "connection", v.State, v.Disconnects})
	case core.GameFinished:
		b.seen(v.Tick)
		fin := v
		b.finished = &fin
	}
	return nil
}

// Sizes reports how many distinct entities of each kind were recorded.
func (b *Backend) Sizes() (agents, items, barrels int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.agents), len(b.items), len(b.barrels)
}
