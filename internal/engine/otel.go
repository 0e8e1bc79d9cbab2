package engine

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/marsgrid/ticksync/internal/engine"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	applied     metric.Int64Counter
	skipped     metric.Int64Counter
	dropped     metric.Int64Counter
	corrections metric.Int64Counter
	violations  metric.Int64Counter
}

func newInstruments() (instruments, error) {
	m := meter()
	var (
		in  instruments
		err error
	)

	if in.applied, err = m.Int64Counter("engine.snapshots.applied",
		metric.WithDescription("Snapshots applied to the registry")); err != nil {
		return in, fmt.Errorf("creating applied counter: %w", err)
	}
	if in.skipped, err = m.Int64Counter("engine.snapshots.skipped",
		metric.WithDescription("Decoded snapshots not applied because the session was paused or finished")); err != nil {
		return in, fmt.Errorf("creating skipped counter: %w", err)
	}
	if in.dropped, err = m.Int64Counter("engine.frames.dropped",
		metric.WithDescription("Frames that failed to decode")); err != nil {
		return in, fmt.Errorf("creating dropped counter: %w", err)
	}
	if in.corrections, err = m.Int64Counter("engine.tick.corrections",
		metric.WithDescription("Times the local tick was replaced by the peer's")); err != nil {
		return in, fmt.Errorf("creating corrections counter: %w", err)
	}
	if in.violations, err = m.Int64Counter("engine.invariant.violations",
		metric.WithDescription("Snapshots that contradicted registry invariants")); err != nil {
		return in, fmt.Errorf("creating violations counter: %w", err)
	}
	return in, nil
}
