package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marsgrid/ticksync/pkg/core"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, kv))
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.add("DEBUG", msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.add("INFO", msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.add("ERROR", msg, kv) }

func (l *recordingLogger) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

func setup(t *testing.T) (*Dispatcher, *recordingLogger) {
	t.Helper()
	log := &recordingLogger{}
	d, err := New(log)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, log
}

func TestInlineRouteReturnsSinkResult(t *testing.T) {
	d, _ := setup(t)

	var got core.ScoresChanged
	d.Register(core.EventScoresChanged, func(e Event) (any, error) {
		got = e.Payload.(core.ScoresChanged)
		return len(got.Scores), nil
	})

	out, err := d.Dispatch(NewEvent(core.ScoresChanged{Tick: 7, Scores: []core.Score{{TeamName: "red"}}}))
	require.NoError(t, err)
	assert.Equal(t, 1, out)
	assert.Equal(t, 7, got.Tick)
}

func TestUnroutedKindIsAnError(t *testing.T) {
	d, _ := setup(t)

	_, err := d.Dispatch(NewEvent(core.Explosion{BarrelID: "b1"}))
	assert.ErrorContains(t, err, string(core.EventExplosion))
}

func TestRegisterReplacesRoute(t *testing.T) {
	d, _ := setup(t)

	d.Register(core.EventMapAnnounced, func(Event) (any, error) { return "first", nil })
	d.Register(core.EventMapAnnounced, func(Event) (any, error) { return "second", nil })

	out, err := d.Dispatch(NewEvent(core.MapAnnounced{}))
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestHasHandler(t *testing.T) {
	d, _ := setup(t)
	d.Register(core.EventMapAnnounced, func(Event) (any, error) { return nil, nil })

	assert.True(t, d.HasHandler(core.EventMapAnnounced))
	assert.False(t, d.HasHandler(core.EventConnectionChanged))
}

func TestBufferedRouteDeliversInOrder(t *testing.T) {
	d, _ := setup(t)

	var mu sync.Mutex
	var ticks []int
	d.Register(core.EventEntityUpdated, func(e Event) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		ticks = append(ticks, e.Payload.(core.EntityUpdated).Tick)
		return nil, nil
	}, Buffered(16))

	for tick := 1; tick <= 5; tick++ {
		out, err := d.Dispatch(NewEvent(core.EntityUpdated{Tick: tick}))
		require.NoError(t, err)
		assert.Equal(t, Queued, out)
	}
	d.Close()

	assert.Equal(t, []int{1, 2, 3, 4, 5}, ticks)
}

func TestBufferedRouteRejectsWhenFull(t *testing.T) {
	d, _ := setup(t)

	busy := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	d.Register(core.EventEntityCreated, func(Event) (any, error) {
		once.Do(func() { close(busy) })
		<-release
		return nil, nil
	}, Buffered(2))

	_, err := d.Dispatch(NewEvent(core.EntityCreated{}))
	require.NoError(t, err)
	<-busy

	for i := 0; i < 2; i++ {
		_, err = d.Dispatch(NewEvent(core.EntityCreated{}))
		require.NoError(t, err)
	}

	_, err = d.Dispatch(NewEvent(core.EntityCreated{}))
	assert.ErrorContains(t, err, "queue full")

	close(release)
}

func TestBlockingRouteWaitsForRoom(t *testing.T) {
	d, _ := setup(t)

	release := make(chan struct{})
	d.Register(core.EventEntityCreated, func(Event) (any, error) {
		<-release
		return nil, nil
	}, Buffered(1), Blocking())

	_, _ = d.Dispatch(NewEvent(core.EntityCreated{}))
	_, _ = d.Dispatch(NewEvent(core.EntityCreated{}))

	sent := make(chan struct{})
	go func() {
		_, _ = d.Dispatch(NewEvent(core.EntityCreated{}))
		close(sent)
	}()

	select {
	case <-sent:
		t.Fatal("dispatch returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("dispatch stayed blocked after the sink drained")
	}
}

func TestLoggedRouteTracesCalls(t *testing.T) {
	d, log := setup(t)

	d.Register(core.EventTickCorrected, func(Event) (any, error) { return "ok", nil }, Logged())
	d.Register(core.EventGameFinished, func(Event) (any, error) {
		return nil, errors.New("recording failed")
	}, Logged())

	_, err := d.Dispatch(NewEvent(core.TickCorrected{From: 3, To: 5}))
	require.NoError(t, err)
	assert.Equal(t, 2, log.count("DEBUG"))

	_, err = d.Dispatch(NewEvent(core.GameFinished{Tick: 9}))
	require.Error(t, err)
	assert.Equal(t, 1, log.count("ERROR event failed"))
}

func TestBufferedLoggedRoute(t *testing.T) {
	d, log := setup(t)

	var seen atomic.Int32
	d.Register(core.EventEntityEliminated, func(Event) (any, error) {
		seen.Add(1)
		return nil, nil
	}, Buffered(8), Logged())

	out, err := d.Dispatch(NewEvent(core.EntityEliminated{}))
	require.NoError(t, err)
	assert.Equal(t, Queued, out)

	d.Close()
	assert.EqualValues(t, 1, seen.Load())
	assert.Equal(t, 2, log.count("DEBUG"))
}

func TestBufferedSinkErrorIsLogged(t *testing.T) {
	d, log := setup(t)

	d.Register(core.EventScoresChanged, func(Event) (any, error) {
		return nil, errors.New("disk full")
	}, Buffered(4))

	_, err := d.Dispatch(NewEvent(core.ScoresChanged{}))
	require.NoError(t, err)
	d.Close()

	assert.Equal(t, 1, log.count("ERROR buffered handler failed"))
}

func TestCloseDrainsQueuesAndRejectsLateEvents(t *testing.T) {
	d, _ := setup(t)

	var handled atomic.Int32
	d.Register(core.EventScoresChanged, func(Event) (any, error) {
		time.Sleep(time.Millisecond)
		handled.Add(1)
		return nil, nil
	}, Buffered(64))

	for i := 0; i < 20; i++ {
		_, err := d.Dispatch(NewEvent(core.ScoresChanged{Tick: i}))
		require.NoError(t, err)
	}

	d.Close()
	assert.EqualValues(t, 20, handled.Load())

	_, err := d.Dispatch(NewEvent(core.ScoresChanged{}))
	assert.ErrorIs(t, err, ErrClosed)

	d.Close()
}

func TestNewEventStampsKindAndTime(t *testing.T) {
	before := time.Now()
	e := NewEvent(core.Explosion{BarrelID: "b1"})

	assert.Equal(t, core.EventExplosion, e.Kind)
	assert.False(t, e.Timestamp.Before(before))
}
