// Package worker connects the dispatcher to the event sinks: the storage
// recorder, influx points and the kill feed.
package worker

import (
	"log/slog"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/marsgrid/ticksync/internal/gridmap"
	"github.com/marsgrid/ticksync/internal/killfeed"
	"github.com/marsgrid/ticksync/internal/registry"
	"github.com/marsgrid/ticksync/internal/storage"
)

// PointWriter is satisfied by *influx.Manager.
type PointWriter interface {
	WritePoints(points []*influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the worker manager. Any sink may
// be nil.
type Dependencies struct {
	Backend   storage.Backend
	Points    PointWriter
	Feed      *killfeed.Feed
	Logger    *slog.Logger
	SessionID func() string
	Sizes     func() registry.Sizes
	// LoadMap validates announced maps. Nil skips validation.
	LoadMap func(path string) (*gridmap.Map, error)
}

// Manager owns the sink handlers.
type Manager struct {
	deps Dependencies
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.SessionID == nil {
		deps.SessionID = func() string { return "" }
	}
	return &Manager{deps: deps}
}
