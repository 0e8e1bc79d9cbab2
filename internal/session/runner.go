// Package session drives one connection to the simulation: each cycle it
// polls the transport, feeds frames through the engine and hands the
// resulting events to the dispatcher.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marsgrid/ticksync/internal/dispatcher"
	"github.com/marsgrid/ticksync/internal/engine"
	"github.com/marsgrid/ticksync/internal/parser"
	"github.com/marsgrid/ticksync/internal/registry"
	"github.com/marsgrid/ticksync/internal/storage"
	"github.com/marsgrid/ticksync/internal/transport"
	"github.com/marsgrid/ticksync/pkg/core"
)

var (
	// ErrInboxFull is returned when commands arrive faster than cycles run.
	ErrInboxFull = errors.New("command inbox full")
	// ErrStopped is returned for commands sent after the runner stopped.
	ErrStopped = errors.New("session stopped")
)

const defaultInboxSize = 16

// Transport is the connection the runner polls. *transport.Client
// satisfies it.
type Transport interface {
	Connect(address string) error
	Poll(dt time.Duration) [][]byte
	Send(text string) error
	Close() error
	State() transport.State
	Disconnects() int
}

// Dispatcher receives drained events. *dispatcher.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
	Close()
}

// Config holds the per-session inputs.
type Config struct {
	Address    string
	TotalSteps int
	MapPath    string
	InboxSize  int
}

// Status is an immutable snapshot published after every cycle.
type Status struct {
	SessionID   string
	Address     string
	Lifecycle   string
	Transport   string
	Tick        int
	LastAcked   int
	HasAcked    bool
	TotalSteps  int
	Disconnects int
	Pending     int
	Sizes       registry.Sizes
	Scores      []core.Score
	MapPath     string
	StartTime   time.Time
	Finished    bool
}

type commandKind int

const (
	commandPause commandKind = iota
	commandResume
)

type command struct {
	kind  commandKind
	reply chan error
}

// Runner owns the engine. Only Step mutates engine state; other goroutines
// talk to it through the command inbox and read Status.
type Runner struct {
	cfg       Config
	logger    *slog.Logger
	transport Transport
	dispatch  Dispatcher
	backend   storage.Backend
	engine    *engine.Engine
	session   *Context

	commands chan command
	status   atomic.Pointer[Status]
	stopped  atomic.Bool

	lastConn        transport.State
	lastDisconnects int
	finished        bool
}

// New creates a runner. backend may be nil when nothing is recorded.
func New(cfg Config, t Transport, d Dispatcher, backend storage.Backend, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaultInboxSize
	}

	eng, err := engine.New(engine.Config{TotalSteps: cfg.TotalSteps}, t, logger)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	r := &Runner{
		cfg:       cfg,
		logger:    logger,
		transport: t,
		dispatch:  d,
		backend:   backend,
		engine:    eng,
		session: NewContext(core.Session{
			ID:         uuid.NewString(),
			Address:    cfg.Address,
			MapPath:    cfg.MapPath,
			TotalSteps: cfg.TotalSteps,
			StartTime:  time.Now(),
		}),
		commands: make(chan command, cfg.InboxSize),
		lastConn: t.State(),
	}
	r.publish()
	return r, nil
}

// Session returns the shared session description.
func (r *Runner) Session() *Context {
	return r.session
}

// Engine exposes the engine for read access from the owning goroutine.
func (r *Runner) Engine() *engine.Engine {
	return r.engine
}

// Start opens the recording session and begins connecting.
func (r *Runner) Start() error {
	if r.backend != nil {
		s := r.session.Get()
		if err := r.backend.StartSession(&s); err != nil {
			return fmt.Errorf("start recording: %w", err)
		}
	}
	if err := r.transport.Connect(r.cfg.Address); err != nil {
		return err
	}
	r.logger.Info("Session started", "session", r.session.ID(), "address", r.cfg.Address, "totalSteps", r.cfg.TotalSteps)
	return nil
}

// Step runs one cycle and reports whether the game has finished.
func (r *Runner) Step(dt time.Duration) bool {
	r.runCommands()

	for _, frame := range r.transport.Poll(dt) {
		res, err := r.engine.HandleFrame(frame)
		if err != nil {
			r.logFrameError(err)
		}
		if res.Finished {
			r.finished = true
		}
	}

	var events []core.Event
	if state, disconnects := r.transport.State(), r.transport.Disconnects(); state != r.lastConn || disconnects != r.lastDisconnects {
		r.logger.Info("Connection changed", "from", r.lastConn.String(), "to", state.String(), "disconnects", disconnects)
		events = append(events, core.ConnectionChanged{State: state.String(), Disconnects: disconnects})
		r.lastConn = state
		r.lastDisconnects = disconnects
	}
	events = append(events, r.engine.Drain()...)

	for _, ev := range events {
		if m, ok := ev.(core.MapAnnounced); ok {
			r.session.SetMap(m.MapPath, m.GameMode)
		}
		if _, err := r.dispatch.Dispatch(dispatcher.NewEvent(ev)); err != nil {
			r.logger.Error("Sink failed", "kind", string(ev.Kind()), "error", err)
		}
	}

	r.publish()
	return r.finished
}

func (r *Runner) logFrameError(err error) {
	var decodeErr *parser.DecodeError
	var violation *engine.InvariantViolation
	switch {
	case errors.As(err, &decodeErr), errors.Is(err, parser.ErrEmptyFrame):
		r.logger.Warn("Dropped frame", "error", err)
	case errors.As(err, &violation):
		r.logger.Warn("Invariant violation", "error", err)
	default:
		r.logger.Error("Frame handling failed", "error", err)
	}
}

func (r *Runner) runCommands() {
	for {
		select {
		case cmd := <-r.commands:
			var err error
			switch cmd.kind {
			case commandPause:
				err = r.engine.Pause()
			case commandResume:
				err = r.engine.Resume()
			}
			cmd.reply <- err
		default:
			return
		}
	}
}

func (r *Runner) submit(ctx context.Context, kind commandKind) error {
	if r.stopped.Load() {
		return ErrStopped
	}
	cmd := command{kind: kind, reply: make(chan error, 1)}
	select {
	case r.commands <- cmd:
	default:
		return ErrInboxFull
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause asks the owning goroutine to pause and waits for the result.
func (r *Runner) Pause(ctx context.Context) error {
	return r.submit(ctx, commandPause)
}

// Resume asks the owning goroutine to resume and waits for the result.
func (r *Runner) Resume(ctx context.Context) error {
	return r.submit(ctx, commandResume)
}

func (r *Runner) publish() {
	last, hasAcked := r.engine.LastAcked()
	sess := r.session.Get()
	r.status.Store(&Status{
		SessionID:   sess.ID,
		Address:     sess.Address,
		Lifecycle:   r.engine.State().String(),
		Transport:   r.transport.State().String(),
		Tick:        r.engine.CurrentTick(),
		LastAcked:   last,
		HasAcked:    hasAcked,
		TotalSteps:  r.engine.TotalSteps(),
		Disconnects: r.transport.Disconnects(),
		Pending:     r.engine.Pending(),
		Sizes:       r.engine.Registry().Sizes(),
		Scores:      r.engine.Scores(),
		MapPath:     sess.MapPath,
		StartTime:   sess.StartTime,
		Finished:    r.finished,
	})
}

// Status returns the snapshot published by the last cycle.
func (r *Runner) Status() Status {
	return *r.status.Load()
}

// LogAttrs returns the attributes attached to every log record.
func (r *Runner) LogAttrs() []slog.Attr {
	s := r.status.Load()
	if s == nil {
		return nil
	}
	return []slog.Attr{
		slog.String("session", s.SessionID),
		slog.Int("tick", s.Tick),
		slog.String("lifecycle", s.Lifecycle),
		slog.String("transport", s.Transport),
	}
}

// DefaultInterval is the Step cadence used when Run is given a
// non-positive interval.
const DefaultInterval = 16 * time.Millisecond

// Run calls Step every interval until ctx is done or the game finishes,
// then shuts down.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	if err := r.Start(); err != nil {
		return err
	}

	if interval <= 0 {
		r.logger.Warn("Non-positive loop interval, using default", "interval", interval, "default", DefaultInterval)
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Session interrupted", "tick", r.Status().Tick)
			return r.Shutdown()
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if r.Step(dt) {
				r.logger.Info("Session finished", "tick", r.Status().Tick)
				return r.Shutdown()
			}
		}
	}
}

// Shutdown closes the transport, flushes the dispatcher and ends the
// recording session. Commands still queued are rejected.
func (r *Runner) Shutdown() error {
	if r.stopped.Swap(true) {
		return nil
	}

	var errs []error
	if err := r.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}
	for {
		select {
		case cmd := <-r.commands:
			cmd.reply <- ErrStopped
			continue
		default:
		}
		break
	}
	r.dispatch.Close()
	if r.backend != nil {
		if err := r.backend.EndSession(); err != nil {
			errs = append(errs, fmt.Errorf("end recording: %w", err))
		}
	}
	r.publish()
	return errors.Join(errs...)
}
