package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/marsgrid/ticksync/pkg/core"
)

const instrumentationName = "github.com/marsgrid/ticksync/internal/dispatcher"

type metrics struct {
	processed metric.Int64Counter
	dropped   metric.Int64Counter
}

// newMetrics registers the dispatcher instruments. depths is called from
// the gauge callback on every collection.
func newMetrics(depths func(observe func(core.EventKind, int))) (*metrics, error) {
	m := otel.Meter(instrumentationName)

	gauge, err := m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in a buffered route"))
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		depths(func(kind core.EventKind, n int) {
			o.ObserveInt64(gauge, int64(n), kindOption(kind))
		})
		return nil
	}, gauge)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	out := &metrics{}
	if out.processed, err = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Events a buffered route handed to its sink")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if out.dropped, err = m.Int64Counter("dispatcher.events.dropped",
		metric.WithDescription("Events rejected by a full queue")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	return out, nil
}

func (m *metrics) done(kind core.EventKind) {
	m.processed.Add(context.Background(), 1, kindOption(kind))
}

func (m *metrics) drop(kind core.EventKind) {
	m.dropped.Add(context.Background(), 1, kindOption(kind))
}

func kindOption(kind core.EventKind) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("kind", string(kind)))
}
