// Package storage defines the recording sinks the engine's events are
// written to.
package storage

import (
	"errors"
	"time"

	"github.com/marsgrid/ticksync/pkg/core"
)

// ErrNoSession is returned when recording is attempted before StartSession.
var ErrNoSession = errors.New("no active session")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(session *core.Session) error
	EndSession() error

	// Record stores one engine event observed at the given wall time.
	Record(at time.Time, ev core.Event) error
}

// Exporter is an optional interface for backends that produce a file per
// session.
type Exporter interface {
	ExportedFilePath() string
}
