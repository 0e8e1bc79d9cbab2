// Package killfeed keeps the most recent eliminations as display lines and
// the end-of-game outcome text.
package killfeed

import (
	"fmt"
	"sync"

	"github.com/marsgrid/ticksync/pkg/core"
)

// DefaultSize is how many lines the feed keeps.
const DefaultSize = 5

// Feed is safe for concurrent use.
type Feed struct {
	mu      sync.RWMutex
	size    int
	lines   []string
	outcome string
}

// New creates a feed keeping at most size lines. Sizes below one use
// DefaultSize.
func New(size int) *Feed {
	if size < 1 {
		size = DefaultSize
	}
	return &Feed{size: size, lines: make([]string, 0, size)}
}

// Line formats an elimination.
func Line(ev core.EntityEliminated) string {
	if ev.KillerID == "" {
		return fmt.Sprintf("%s died", ev.Victim.ID)
	}
	return fmt.Sprintf("%s eliminated %s", ev.KillerID, ev.Victim.ID)
}

// Add appends the elimination, dropping the oldest line when full.
func (f *Feed) Add(ev core.EntityEliminated) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.lines) == f.size {
		copy(f.lines, f.lines[1:])
		f.lines = f.lines[:f.size-1]
	}
	f.lines = append(f.lines, Line(ev))
}

// Lines returns the feed oldest first.
func (f *Feed) Lines() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, len(f.lines))
	copy(out, f.lines)
	return out
}

// Finish stores the outcome text of a finished game.
func (f *Feed) Finish(ev core.GameFinished) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcome = ev.Outcome.String()
}

// Outcome returns the outcome text, or "" while the game is running.
func (f *Feed) Outcome() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.outcome
}
