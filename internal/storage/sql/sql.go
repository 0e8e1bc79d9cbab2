// Package sqlstore implements storage.Backend on GORM. Rows are queued by
// Record and written in batches by a background writer, so the frame loop
// never waits on the database.
package sqlstore

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/marsgrid/ticksync/internal/database"
	"github.com/marsgrid/ticksync/internal/model"
	"github.com/marsgrid/ticksync/internal/model/convert"
	"github.com/marsgrid/ticksync/internal/queue"
	"github.com/marsgrid/ticksync/internal/storage"
	"github.com/marsgrid/ticksync/pkg/core"
)

const defaultFlushInterval = time.Second

// Dependencies holds all dependencies for the SQL storage backend.
type Dependencies struct {
	Manager       *database.Manager
	Logger        zerolog.Logger
	FlushInterval time.Duration
	// DumpPath receives a VACUUM INTO copy at EndSession when the database
	// lives in memory.
	DumpPath string
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps  Dependencies
	rows  *queue.Queue[any]
	flush sync.Mutex

	session   *model.Session
	sessionID atomic.Uint64
	finished  *core.GameFinished
	finishAt  time.Time

	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new SQL storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{
		deps: deps,
		rows: queue.New[any](),
	}
}

func (b *Backend) db() (*gorm.DB, error) {
	if b.deps.Manager == nil || b.deps.Manager.DB == nil {
		return nil, errors.New("database not connected")
	}
	return b.deps.Manager.DB, nil
}

// Init migrates the schema and starts the writer goroutine.
func (b *Backend) Init() error {
	if _, err := b.db(); err != nil {
		return err
	}
	if err := b.deps.Manager.Migrate(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writer()
	return nil
}

func (b *Backend) writer() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error().Err(err).Msg("Failed to write queued rows")
			}
		}
	}
}

// Close stops the writer and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		<-b.done
		b.stopChan = nil
	}
	if _, err := b.db(); err != nil {
		return nil
	}
	return b.Flush()
}

// Flush writes all queued rows in one transaction. On failure the rows are
// queued again.
func (b *Backend) Flush() error {
	b.flush.Lock()
	defer b.flush.Unlock()

	if b.rows.Empty() {
		return nil
	}
	db, err := b.db()
	if err != nil {
		return err
	}

	items := b.rows.Drain()
	start := time.Now()
	err = db.Transaction(func(tx *gorm.DB) error {
		for _, row := range items {
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("insert %T: %w", row, err)
			}
		}
		return nil
	})
	if err != nil {
		b.rows.Requeue(items...)
		return err
	}

	b.deps.Logger.Debug().Int("rows", len(items)).Dur("duration", time.Since(start)).Msg("Wrote queued rows")
	return nil
}

// Pending is the number of rows waiting for the writer.
func (b *Backend) Pending() int {
	return b.rows.Len()
}

// StartSession inserts the session row synchronously so queued rows can
// reference its id.
func (b *Backend) StartSession(s *core.Session) error {
	db, err := b.db()
	if err != nil {
		return err
	}
	row := convert.CoreToSession(*s)
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	b.session = &row
	b.finished = nil
	b.sessionID.Store(uint64(row.ID))
	b.deps.Logger.Info().Str("session", s.ID).Uint("rowId", row.ID).Msg("Session started")
	return nil
}

// Record converts ev to its row and queues it. GameFinished is held until
// EndSession, which writes it onto the session row.
func (b *Backend) Record(at time.Time, ev core.Event) error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return storage.ErrNoSession
	}

	if fin, ok := ev.(core.GameFinished); ok {
		b.finished = &fin
		b.finishAt = at
		return nil
	}

	if row := convert.EventToRow(id, at, ev); row != nil {
		b.rows.Push(row)
	}
	return nil
}

// EndSession flushes queued rows, stores the outcome on the session row and
// dumps an in-memory database to DumpPath when configured.
func (b *Backend) EndSession() error {
	if b.session == nil {
		return storage.ErrNoSession
	}
	db, err := b.db()
	if err != nil {
		return err
	}

	if err := b.Flush(); err != nil {
		return err
	}

	if b.finished != nil {
		convert.ApplyFinish(b.session, *b.finished, b.finishAt)
	} else {
		b.session.EndTime.Time = time.Now()
		b.session.EndTime.Valid = true
	}
	if err := db.Save(b.session).Error; err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if b.deps.DumpPath != "" && b.deps.Manager.InMemory {
		if err := b.deps.Manager.DumpTo(b.deps.DumpPath); err != nil {
			return err
		}
	}

	b.deps.Logger.Info().Str("session", b.session.SessionID).Msg("Session ended")
	b.session = nil
	b.sessionID.Store(0)
	return nil
}
