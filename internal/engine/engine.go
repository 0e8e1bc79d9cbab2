// Package engine applies tick snapshots to the entity registry, turns the
// differences into events and decides which tick to acknowledge.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/marsgrid/ticksync/internal/lifecycle"
	"github.com/marsgrid/ticksync/internal/pacing"
	"github.com/marsgrid/ticksync/internal/parser"
	"github.com/marsgrid/ticksync/internal/queue"
	"github.com/marsgrid/ticksync/internal/registry"
	"github.com/marsgrid/ticksync/pkg/core"
)

// initialTick is what the simulation expects first when nothing was acked yet.
const initialTick = 1

// Config holds the values supplied by the scenario loader.
type Config struct {
	// TotalSteps ends the game once applying a snapshot advances the tick
	// to it. Zero means the game never ends on its own.
	TotalSteps int
}

// Engine is owned by a single goroutine. Nothing here locks except the
// registry and lifecycle, which other goroutines may read.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	parser    *parser.Parser
	registry  *registry.Registry
	lifecycle *lifecycle.Machine
	pacer     *pacing.Controller
	events    *queue.Queue[core.Event]
	metrics   instruments

	currentTick int
	mapPath     string
	gameMode    *core.GameMode
	scores      []core.Score
}

// New creates an engine that acks through sender.
func New(cfg Config, sender pacing.Sender, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TotalSteps < 0 {
		return nil, fmt.Errorf("total steps must not be negative, got %d", cfg.TotalSteps)
	}
	metrics, err := newInstruments()
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:         cfg,
		logger:      logger,
		parser:      parser.NewParser(logger),
		registry:    registry.New(),
		lifecycle:   lifecycle.New(),
		pacer:       pacing.NewController(sender, logger),
		events:      queue.New[core.Event](),
		metrics:     metrics,
		currentTick: initialTick,
	}, nil
}

// Pause stops applying snapshots. Snapshots that arrive while paused are
// dropped, not buffered.
func (e *Engine) Pause() error {
	tr, err := e.lifecycle.Pause()
	if err != nil {
		return err
	}
	e.emitTransition(tr)
	return nil
}

// Resume returns to Playing and re-sends the last ack so the peer
// continues from where it stopped.
func (e *Engine) Resume() error {
	tr, err := e.lifecycle.Resume()
	if err != nil {
		return err
	}
	e.emitTransition(tr)
	if err := e.pacer.Resend(); err != nil {
		return fmt.Errorf("resend ack on resume: %w", err)
	}
	return nil
}

func (e *Engine) emitTransition(tr lifecycle.Transition) {
	e.logger.Info("Lifecycle changed", "from", tr.From.String(), "to", tr.To.String(), "tick", e.currentTick)
	e.events.Push(core.LifecycleChanged{Tick: e.currentTick, From: tr.From.String(), To: tr.To.String()})
}

// Drain returns every event emitted since the last call, oldest first.
func (e *Engine) Drain() []core.Event {
	return e.events.Drain()
}

// Pending is the number of events waiting to be drained.
func (e *Engine) Pending() int {
	return e.events.Len()
}

func (e *Engine) CurrentTick() int {
	return e.currentTick
}

func (e *Engine) State() lifecycle.State {
	return e.lifecycle.State()
}

func (e *Engine) TotalSteps() int {
	return e.cfg.TotalSteps
}

// Registry is a read-only view; only Apply writes to the registry.
func (e *Engine) Registry() registry.Reader {
	return registry.View(e.registry)
}

// Scores returns a copy of the last applied score table.
func (e *Engine) Scores() []core.Score {
	return append([]core.Score(nil), e.scores...)
}

// MapPath is the last map announced by the peer.
func (e *Engine) MapPath() string {
	return e.mapPath
}

func (e *Engine) GameMode() *core.GameMode {
	return e.gameMode
}

// LastAcked is the last tick sent to the peer.
func (e *Engine) LastAcked() (int, bool) {
	return e.pacer.LastAcked()
}
