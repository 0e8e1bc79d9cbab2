package engine

import (
	"context"
	"errors"

	"github.com/marsgrid/ticksync/pkg/core"
)

// Result describes what one snapshot did.
type Result struct {
	// Applied is false when the lifecycle gate dropped the snapshot.
	Applied bool
	// Ack is the tick to acknowledge, valid when HasAck is set.
	Ack      int
	HasAck   bool
	Finished bool
}

// Apply runs one snapshot through the lifecycle gate and, when playing,
// into the registry. Events are queued for Drain. The returned error only
// ever holds *InvariantViolation values; the snapshot is applied anyway.
func (e *Engine) Apply(snap core.TickSnapshot) (Result, error) {
	ctx := context.Background()

	if tr, ok := e.lifecycle.Begin(); ok {
		e.emitTransition(tr)
	}
	if !e.lifecycle.Applying() {
		e.metrics.skipped.Add(ctx, 1)
		e.logger.Debug("Snapshot skipped", "expectingTick", snap.ExpectingTick, "state", e.lifecycle.State().String())
		return Result{}, nil
	}

	if snap.ExpectingTick != e.currentTick {
		e.logger.Debug("Tick corrected", "from", e.currentTick, "to", snap.ExpectingTick)
		e.events.Push(core.TickCorrected{From: e.currentTick, To: snap.ExpectingTick})
		e.metrics.corrections.Add(ctx, 1)
		e.currentTick = snap.ExpectingTick
	}
	tick := e.currentTick

	e.announceMap(tick, snap)

	var violations []error
	violations = append(violations, e.applyAgents(tick, snap.Agents)...)
	violations = append(violations, e.applyItems(tick, snap.Items)...)
	violations = append(violations, e.applyBarrels(tick, snap.Barrels)...)

	e.scores = append([]core.Score(nil), snap.Scores...)
	e.events.Push(core.ScoresChanged{Tick: tick, Scores: e.Scores()})

	res := Result{Applied: true, Ack: tick, HasAck: true}
	e.currentTick++
	e.metrics.applied.Add(ctx, 1)

	// The finish check runs on the advanced tick, so the snapshot that brings
	// currentTick up to TotalSteps is the last one applied and is not acked.
	if e.cfg.TotalSteps > 0 && e.currentTick >= e.cfg.TotalSteps {
		if tr, err := e.lifecycle.Finish(); err == nil {
			e.emitTransition(tr)
			outcome := core.DecideOutcome(e.scores)
			e.events.Push(core.GameFinished{Tick: tick, Scores: e.Scores(), Outcome: outcome})
			e.logger.Info("Game finished", "tick", tick, "outcome", outcome.String())
		}
		res.HasAck = false
		res.Finished = true
	}

	if len(violations) > 0 {
		e.metrics.violations.Add(ctx, int64(len(violations)))
		return res, errors.Join(violations...)
	}
	return res, nil
}

func (e *Engine) announceMap(tick int, snap core.TickSnapshot) {
	changed := false
	if snap.MapPath != "" && snap.MapPath != e.mapPath {
		e.mapPath = snap.MapPath
		changed = true
	}
	if snap.GameMode != nil && (e.gameMode == nil || *e.gameMode != *snap.GameMode) {
		mode := *snap.GameMode
		e.gameMode = &mode
		changed = true
	}
	if changed {
		e.logger.Info("Map announced", "mapPath", e.mapPath, "tick", tick)
		e.events.Push(core.MapAnnounced{Tick: tick, MapPath: e.mapPath, GameMode: e.gameMode})
	}
}

func (e *Engine) applyAgents(tick int, agents []core.Agent) []error {
	var violations []error
	incoming := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		incoming[a.ID] = struct{}{}
	}
	for _, a := range agents {
		prev, ok := e.registry.Agent(a.ID)
		if !ok {
			if err := e.registry.InsertAgent(a); err != nil {
				violations = append(violations, &InvariantViolation{Tick: tick, Kind: core.KindAgent, ID: a.ID, Reason: "insert failed", Err: err})
				continue
			}
			e.events.Push(core.EntityCreated{Tick: tick, Entity: a})
			continue
		}

		if !prev.Alive && a.Alive {
			violations = append(violations, &InvariantViolation{Tick: tick, Kind: core.KindAgent, ID: a.ID, Reason: "eliminated agent reported alive"})
			a.Alive = false
		}
		if _, err := e.registry.UpdateAgent(a); err != nil {
			violations = append(violations, &InvariantViolation{Tick: tick, Kind: core.KindAgent, ID: a.ID, Reason: "update failed", Err: err})
			continue
		}
		e.events.Push(core.EntityUpdated{Tick: tick, Previous: prev, Current: a})

		if prev.Alive && !a.Alive {
			killer, tagged := a.Killer()
			if tagged && !e.knownAgent(killer, incoming) {
				violations = append(violations, &InvariantViolation{Tick: tick, Kind: core.KindAgent, ID: a.ID, Reason: "unknown tagger " + killer})
			}
			e.logger.Debug("Agent eliminated", "victim", a.ID, "killer", killer, "tick", tick)
			e.events.Push(core.EntityEliminated{Tick: tick, Victim: a, KillerID: killer})
		}
	}
	return violations
}

// knownAgent reports whether id is registered or arrives in the same snapshot.
func (e *Engine) knownAgent(id string, incoming map[string]struct{}) bool {
	if _, ok := incoming[id]; ok {
		return true
	}
	_, ok := e.registry.Agent(id)
	return ok
}

func (e *Engine) applyItems(tick int, items []core.Item) []error {
	var violations []error
	for _, it := range items {
		prev, ok := e.registry.Item(it.ID)
		if !ok {
			if err := e.registry.InsertItem(it); err != nil {
				violations = append(violations, &InvariantViolation{Tick: tick, Kind: core.KindItem, ID: it.ID, Reason: "insert failed", Err: err})
				continue
			}
			e.events.Push(core.EntityCreated{Tick: tick, Entity: it})
			continue
		}
		if _, err := e.registry.UpdateItem(it); err != nil {
			violations = append(violations, &InvariantViolation{Tick: tick, Kind: core.KindItem, ID: it.ID, Reason: "update failed", Err: err})
			continue
		}
		e.events.Push(core.EntityUpdated{Tick: tick, Previous: prev, Current: it})
	}
	return violations
}

func (e *Engine) applyBarrels(tick int, barrels []core.Barrel) []error {
	var violations []error
	for _, b := range barrels {
		prev, ok := e.registry.Barrel(b.ID)
		if !ok {
			if err := e.registry.InsertBarrel(b); err != nil {
				violations = append(violations, &InvariantViolation{Tick: tick, Kind: core.KindBarrel, ID: b.ID, Reason: "insert failed", Err: err})
				continue
			}
			e.events.Push(core.EntityCreated{Tick: tick, Entity: b})
			// a barrel first seen already exploded still gets its one explosion
			if b.HasExploded {
				e.events.Push(core.Explosion{Tick: tick, BarrelID: b.ID, X: b.X, Y: b.Y})
			}
			continue
		}

		if prev.HasExploded && !b.HasExploded {
			violations = append(violations, &InvariantViolation{Tick: tick, Kind: core.KindBarrel, ID: b.ID, Reason: "exploded barrel reported intact"})
			b.HasExploded = true
		}
		if _, err := e.registry.UpdateBarrel(b); err != nil {
			violations = append(violations, &InvariantViolation{Tick: tick, Kind: core.KindBarrel, ID: b.ID, Reason: "update failed", Err: err})
			continue
		}
		e.events.Push(core.EntityUpdated{Tick: tick, Previous: prev, Current: b})

		if !prev.HasExploded && b.HasExploded {
			e.events.Push(core.Explosion{Tick: tick, BarrelID: b.ID, X: b.X, Y: b.Y})
		}
	}
	return violations
}
