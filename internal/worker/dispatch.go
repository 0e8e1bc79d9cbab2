package worker

import (
	"errors"
	"fmt"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/marsgrid/ticksync/internal/dispatcher"
	"github.com/marsgrid/ticksync/internal/influx"
	"github.com/marsgrid/ticksync/pkg/core"
)

// RegisterHandlers registers one handler per event kind with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// High-volume per-entity records - buffered
	d.Register(core.EventEntityCreated, m.handleRecordOnly, dispatcher.Buffered(10000), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(core.EventEntityUpdated, m.handleRecordOnly, dispatcher.Buffered(10000), dispatcher.Blocking(), dispatcher.Logged())

	// Per-tick game events - buffered
	d.Register(core.EventEntityEliminated, m.handleEliminated, dispatcher.Buffered(1000), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(core.EventExplosion, m.handleExplosion, dispatcher.Buffered(1000), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(core.EventScoresChanged, m.handleScores, dispatcher.Buffered(1000), dispatcher.Blocking(), dispatcher.Logged())

	// Rare state changes - sync, so they are recorded before the session ends
	d.Register(core.EventLifecycleChanged, m.handleLifecycle, dispatcher.Logged())
	d.Register(core.EventTickCorrected, m.handleRecordOnly, dispatcher.Logged())
	d.Register(core.EventMapAnnounced, m.handleMap, dispatcher.Logged())
	d.Register(core.EventConnectionChanged, m.handleRecordOnly, dispatcher.Logged())
	d.Register(core.EventGameFinished, m.handleFinished, dispatcher.Logged())
}

func (m *Manager) record(e dispatcher.Event) error {
	if m.deps.Backend == nil {
		return nil
	}
	if err := m.deps.Backend.Record(e.Timestamp, e.Payload); err != nil {
		return fmt.Errorf("record %s: %w", e.Kind, err)
	}
	return nil
}

func (m *Manager) write(points ...*influxdb2_write.Point) error {
	if m.deps.Points == nil || len(points) == 0 {
		return nil
	}
	if err := m.deps.Points.WritePoints(points); err != nil {
		return fmt.Errorf("write points: %w", err)
	}
	return nil
}

func (m *Manager) handleRecordOnly(e dispatcher.Event) (any, error) {
	return nil, m.record(e)
}

func (m *Manager) handleEliminated(e dispatcher.Event) (any, error) {
	ev, ok := e.Payload.(core.EntityEliminated)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Kind)
	}

	if m.deps.Feed != nil {
		m.deps.Feed.Add(ev)
	}

	return nil, errors.Join(
		m.record(e),
		m.write(influx.EliminationPoint(m.deps.SessionID(), ev, e.Timestamp)),
	)
}

func (m *Manager) handleExplosion(e dispatcher.Event) (any, error) {
	ev, ok := e.Payload.(core.Explosion)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Kind)
	}
	return nil, errors.Join(
		m.record(e),
		m.write(influx.ExplosionPoint(m.deps.SessionID(), ev, e.Timestamp)),
	)
}

// handleScores also samples registry sizes; ScoresChanged fires once per
// applied snapshot.
func (m *Manager) handleScores(e dispatcher.Event) (any, error) {
	ev, ok := e.Payload.(core.ScoresChanged)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Kind)
	}

	points := influx.ScorePoints(m.deps.SessionID(), ev.Tick, ev.Scores, e.Timestamp)
	if m.deps.Sizes != nil {
		points = append(points, influx.EntityCountPoint(m.deps.SessionID(), ev.Tick, m.deps.Sizes(), e.Timestamp))
	}

	return nil, errors.Join(m.record(e), m.write(points...))
}

func (m *Manager) handleLifecycle(e dispatcher.Event) (any, error) {
	if ev, ok := e.Payload.(core.LifecycleChanged); ok {
		m.deps.Logger.Info("Lifecycle changed", "from", ev.From, "to", ev.To, "tick", ev.Tick)
	}
	return nil, m.record(e)
}

// handleMap returns the parsed map when a loader is configured. A map that
// fails to parse is reported but still recorded.
func (m *Manager) handleMap(e dispatcher.Event) (any, error) {
	ev, ok := e.Payload.(core.MapAnnounced)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Kind)
	}
	m.deps.Logger.Info("Map announced", "path", ev.MapPath, "tick", ev.Tick)

	if m.deps.LoadMap == nil || ev.MapPath == "" {
		return nil, m.record(e)
	}
	grid, err := m.deps.LoadMap(ev.MapPath)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("load map: %w", err), m.record(e))
	}
	w, h := grid.Size()
	m.deps.Logger.Info("Map loaded", "path", ev.MapPath, "width", w, "height", h)
	return grid, m.record(e)
}

func (m *Manager) handleFinished(e dispatcher.Event) (any, error) {
	ev, ok := e.Payload.(core.GameFinished)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Kind)
	}

	if m.deps.Feed != nil {
		m.deps.Feed.Finish(ev)
	}
	m.deps.Logger.Info("Game finished", "tick", ev.Tick, "outcome", ev.Outcome.String())

	return ev.Outcome, m.record(e)
}
