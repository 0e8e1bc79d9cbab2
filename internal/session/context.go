package session

import (
	"sync"

	"github.com/marsgrid/ticksync/pkg/core"
)

// Context holds the current session description. It is written by the
// runner and read by sinks and the control surface.
type Context struct {
	mu      sync.RWMutex
	session core.Session
}

// NewContext creates a Context for s.
func NewContext(s core.Session) *Context {
	return &Context{session: s}
}

// Get returns a copy of the current session.
func (c *Context) Get() core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.session
	if s.GameMode != nil {
		mode := *s.GameMode
		s.GameMode = &mode
	}
	return s
}

// ID returns the session id.
func (c *Context) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.ID
}

// SetMap records the map and game mode the peer announced.
func (c *Context) SetMap(path string, mode *core.GameMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.MapPath = path
	if mode != nil {
		m := *mode
		c.session.GameMode = &m
	}
}
