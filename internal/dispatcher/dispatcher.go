// Package dispatcher fans engine events out to sinks. Each event kind has
// at most one route; a route either runs its sink inline or feeds it from a
// bounded queue drained by a dedicated goroutine.
package dispatcher

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marsgrid/ticksync/pkg/core"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// Queued is the result a buffered route returns once the event is accepted.
const Queued = "queued"

// Event is an engine event stamped with the time the session saw it.
type Event struct {
	Kind      core.EventKind
	Payload   core.Event
	Timestamp time.Time
}

// NewEvent stamps payload with the current time.
func NewEvent(payload core.Event) Event {
	return Event{Kind: payload.Kind(), Payload: payload, Timestamp: time.Now()}
}

// HandlerFunc is a sink for one event kind.
type HandlerFunc func(Event) (any, error)

// Logger is the subset of a structured logger the dispatcher writes to.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option adjusts how a route is built.
type Option func(*routeOptions)

type routeOptions struct {
	queueSize int
	wait      bool
	trace     bool
}

// Buffered decouples the sink from the session loop through a queue of size
// events. A full queue rejects the event unless Blocking is also given.
func Buffered(size int) Option {
	return func(o *routeOptions) { o.queueSize = size }
}

// Blocking makes a full queue apply backpressure to the caller.
func Blocking() Option {
	return func(o *routeOptions) { o.wait = true }
}

// Logged records the start, end and duration of every sink call.
func Logged() Option {
	return func(o *routeOptions) { o.trace = true }
}

// route is what Dispatch invokes for a kind. queue is nil for inline sinks.
type route struct {
	kind  core.EventKind
	sink  HandlerFunc
	queue chan Event
	wait  bool
}

// Dispatcher holds the routing table. Register is expected to run during
// setup, before the session loop starts dispatching.
type Dispatcher struct {
	routes map[core.EventKind]*route
	log    Logger
	stats  *metrics

	mu      sync.RWMutex
	closed  bool
	drainWG sync.WaitGroup
}

// New builds an empty dispatcher. Instruments come from the global meter
// provider, which is a no-op until OpenTelemetry is configured.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		routes: make(map[core.EventKind]*route),
		log:    logger,
	}
	stats, err := newMetrics(d.queueDepths)
	if err != nil {
		return nil, err
	}
	d.stats = stats
	return d, nil
}

// Register installs the sink for kind, replacing any earlier one.
func (d *Dispatcher) Register(kind core.EventKind, h HandlerFunc, opts ...Option) {
	var o routeOptions
	for _, opt := range opts {
		opt(&o)
	}

	sink := h
	if o.trace {
		sink = d.traced(kind, sink)
	}

	r := &route{kind: kind, sink: sink, wait: o.wait}
	if o.queueSize > 0 {
		r.queue = make(chan Event, o.queueSize)
		d.drainWG.Add(1)
		go d.drain(r)
	}

	d.mu.Lock()
	d.routes[kind] = r
	d.mu.Unlock()
}

// Dispatch hands e to the route for its kind. Inline routes return the
// sink's result; buffered routes return Queued.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	r, ok := d.routes[e.Kind]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no handler for event kind: %s", e.Kind)
	}
	if r.queue == nil {
		return r.sink(e)
	}
	return d.enqueue(r, e)
}

// HasHandler reports whether kind has a route.
func (d *Dispatcher) HasHandler(kind core.EventKind) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[kind]
	return ok
}

// Close rejects further events and returns once every queue is empty.
// Calling it again is a no-op.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, r := range d.routes {
		if r.queue != nil {
			close(r.queue)
		}
	}
	d.mu.Unlock()

	d.drainWG.Wait()
}

// enqueue holds the read lock across the send so Close cannot close the
// channel underneath it.
func (d *Dispatcher) enqueue(r *route, e Event) (any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}

	if r.wait {
		r.queue <- e
		return Queued, nil
	}
	select {
	case r.queue <- e:
		return Queued, nil
	default:
		d.stats.drop(r.kind)
		return nil, fmt.Errorf("queue full: %s", r.kind)
	}
}

func (d *Dispatcher) drain(r *route) {
	defer d.drainWG.Done()
	for e := range r.queue {
		if _, err := r.sink(e); err != nil {
			d.log.Error("buffered handler failed", "kind", string(r.kind), "error", err)
		}
		d.stats.done(r.kind)
	}
}

// queueDepths feeds the queue gauge.
func (d *Dispatcher) queueDepths(observe func(kind core.EventKind, depth int)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for kind, r := range d.routes {
		if r.queue != nil {
			observe(kind, len(r.queue))
		}
	}
}

func (d *Dispatcher) traced(kind core.EventKind, h HandlerFunc) HandlerFunc {
	k := string(kind)
	return func(e Event) (any, error) {
		began := time.Now()
		d.log.Debug("handling event", "kind", k, "queuedFor", time.Since(e.Timestamp))

		out, err := h(e)
		took := time.Since(began)
		if err != nil {
			d.log.Error("event failed", "kind", k, "duration", took, "error", err)
			return out, err
		}
		d.log.Debug("event complete", "kind", k, "duration", took)
		return out, nil
	}
}
