package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marsgrid/ticksync/internal/dispatcher"
	"github.com/marsgrid/ticksync/internal/transport"
	"github.com/marsgrid/ticksync/pkg/core"
	"github.com/marsgrid/ticksync/pkg/streaming"
)

type fakeTransport struct {
	mu          sync.Mutex
	state       transport.State
	disconnects int
	frames      [][][]byte
	sent        []string
	connectedTo string
	closed      bool
}

func (f *fakeTransport) Connect(address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectedTo = address
	f.state = transport.Connecting
	return nil
}

func (f *fakeTransport) Poll(time.Duration) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == transport.Connecting {
		f.state = transport.Open
	}
	if len(f.frames) == 0 {
		return nil
	}
	next := f.frames[0]
	f.frames = f.frames[1:]
	return next
}

func (f *fakeTransport) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != transport.Open {
		return errors.New("not open")
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.state = transport.Closed
	return nil
}

func (f *fakeTransport) State() transport.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

func (f *fakeTransport) queue(batches ...[][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, batches...)
}

func (f *fakeTransport) acks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []core.Event
	closed bool
}

func (d *fakeDispatcher) Dispatch(e dispatcher.Event) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e.Payload)
	return nil, nil
}

func (d *fakeDispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

func (d *fakeDispatcher) kinds() []core.EventKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]core.EventKind, 0, len(d.events))
	for _, ev := range d.events {
		out = append(out, ev.Kind())
	}
	return out
}

type fakeBackend struct {
	started *core.Session
	ended   bool
}

func (b *fakeBackend) Init() error  { return nil }
func (b *fakeBackend) Close() error { return nil }
func (b *fakeBackend) StartSession(s *core.Session) error {
	b.started = s
	return nil
}
func (b *fakeBackend) EndSession() error {
	b.ended = true
	return nil
}
func (b *fakeBackend) Record(time.Time, core.Event) error { return nil }

func tickFrame(t *testing.T, tick int) []byte {
	t.Helper()
	data, err := json.Marshal(streaming.TickMessage{
		ExpectingTick: &tick,
		Scores: []streaming.ScoreMessage{
			{TeamName: "Red Team", TeamColor: "Red", Score: tick},
		},
	})
	require.NoError(t, err)
	return data
}

func newTestRunner(t *testing.T, steps int) (*Runner, *fakeTransport, *fakeDispatcher, *fakeBackend) {
	t.Helper()
	tr := &fakeTransport{}
	d := &fakeDispatcher{}
	b := &fakeBackend{}
	r, err := New(Config{Address: "ws://sim:8080", TotalSteps: steps}, tr, d, b, nil)
	require.NoError(t, err)
	return r, tr, d, b
}

func TestRunner_StartRecordsSessionAndConnects(t *testing.T) {
	r, tr, _, b := newTestRunner(t, 10)

	require.NoError(t, r.Start())

	require.NotNil(t, b.started)
	assert.Equal(t, r.Session().ID(), b.started.ID)
	assert.Equal(t, "ws://sim:8080", tr.connectedTo)
	assert.Equal(t, 10, b.started.TotalSteps)
}

func TestRunner_StepAppliesAndAcks(t *testing.T) {
	r, tr, d, _ := newTestRunner(t, 10)
	require.NoError(t, r.Start())

	tr.queue([][]byte{tickFrame(t, 1)})
	finished := r.Step(10 * time.Millisecond)

	assert.False(t, finished)
	assert.Equal(t, []string{"1"}, tr.acks())

	kinds := d.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, core.EventConnectionChanged, kinds[0], "connection change is dispatched before engine events")
	assert.Contains(t, kinds, core.EventLifecycleChanged)
	assert.Contains(t, kinds, core.EventScoresChanged)

	st := r.Status()
	assert.Equal(t, "Playing", st.Lifecycle)
	assert.Equal(t, "Open", st.Transport)
	assert.Equal(t, 2, st.Tick)
	assert.True(t, st.HasAcked)
	assert.Equal(t, 1, st.LastAcked)
	assert.Zero(t, st.Pending)
}

func TestRunner_ConnectionChangedOnlyOnChange(t *testing.T) {
	r, _, d, _ := newTestRunner(t, 10)
	require.NoError(t, r.Start())

	r.Step(time.Millisecond)
	r.Step(time.Millisecond)

	count := 0
	for _, k := range d.kinds() {
		if k == core.EventConnectionChanged {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRunner_BadFrameIsDropped(t *testing.T) {
	r, tr, _, _ := newTestRunner(t, 10)
	require.NoError(t, r.Start())

	tr.queue([][]byte{[]byte("{not json"), tickFrame(t, 1)})
	r.Step(time.Millisecond)

	assert.Equal(t, []string{"1"}, tr.acks())
	assert.Equal(t, 2, r.Status().Tick)
}

func TestRunner_PauseAndResumeThroughInbox(t *testing.T) {
	r, tr, d, _ := newTestRunner(t, 10)
	require.NoError(t, r.Start())
	tr.queue([][]byte{tickFrame(t, 1)})
	r.Step(time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Pause(ctx) }()
	require.Eventually(t, func() bool { return len(r.commands) == 1 }, time.Second, time.Millisecond)
	r.Step(time.Millisecond)
	require.NoError(t, <-done)
	assert.Equal(t, "Paused", r.Status().Lifecycle)

	// Frames that arrive while paused are dropped without an ack.
	tr.queue([][]byte{tickFrame(t, 2)})
	r.Step(time.Millisecond)
	assert.Equal(t, []string{"1"}, tr.acks())

	go func() { done <- r.Resume(ctx) }()
	require.Eventually(t, func() bool { return len(r.commands) == 1 }, time.Second, time.Millisecond)
	r.Step(time.Millisecond)
	require.NoError(t, <-done)

	assert.Equal(t, "Playing", r.Status().Lifecycle)
	assert.Equal(t, []string{"1", "1"}, tr.acks(), "resume re-sends the last ack")

	lifecycle := 0
	for _, k := range d.kinds() {
		if k == core.EventLifecycleChanged {
			lifecycle++
		}
	}
	assert.Equal(t, 3, lifecycle)
}

func TestRunner_PauseBeforePlayingFails(t *testing.T) {
	r, _, _, _ := newTestRunner(t, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Pause(ctx) }()
	require.Eventually(t, func() bool { return len(r.commands) == 1 }, time.Second, time.Millisecond)
	r.Step(time.Millisecond)

	assert.Error(t, <-done)
	assert.Equal(t, "Loading", r.Status().Lifecycle)
}

func TestRunner_InboxFull(t *testing.T) {
	tr := &fakeTransport{}
	r, err := New(Config{TotalSteps: 10, InboxSize: 1}, tr, &fakeDispatcher{}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Pause(ctx) }()
	require.Eventually(t, func() bool { return len(r.commands) == 1 }, time.Second, time.Millisecond)

	assert.ErrorIs(t, r.Resume(context.Background()), ErrInboxFull)
}

func TestRunner_CommandContextCancelled(t *testing.T) {
	r, _, _, _ := newTestRunner(t, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, r.Pause(ctx), context.DeadlineExceeded)
}

func TestRunner_RunStopsWhenFinished(t *testing.T) {
	r, tr, d, b := newTestRunner(t, 3)
	tr.queue(
		[][]byte{tickFrame(t, 1)},
		[][]byte{tickFrame(t, 2)},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx, time.Millisecond))

	st := r.Status()
	assert.True(t, st.Finished)
	assert.Equal(t, "Finished", st.Lifecycle)
	assert.Equal(t, []string{"1"}, tr.acks(), "the finishing snapshot is not acked")
	assert.True(t, tr.closed)
	assert.True(t, d.closed)
	assert.True(t, b.ended)
	assert.Contains(t, d.kinds(), core.EventGameFinished)

	assert.ErrorIs(t, r.Pause(context.Background()), ErrStopped)
}

func TestRunner_RunWithZeroIntervalUsesDefault(t *testing.T) {
	r, tr, _, _ := newTestRunner(t, 3)
	tr.queue(
		[][]byte{tickFrame(t, 1)},
		[][]byte{tickFrame(t, 2)},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NotPanics(t, func() {
		require.NoError(t, r.Run(ctx, 0))
	})
	assert.True(t, r.Status().Finished)
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	r, tr, d, b := newTestRunner(t, 100)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool { return r.Status().Transport == "Open" }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, tr.closed)
	assert.True(t, d.closed)
	assert.True(t, b.ended)
	assert.False(t, r.Status().Finished)
}

func TestRunner_MapAnnouncedUpdatesSession(t *testing.T) {
	r, tr, _, _ := newTestRunner(t, 10)
	require.NoError(t, r.Start())

	tick := 1
	path, mode := "maps/arena.csv", "CaptureTheFlag"
	data, err := json.Marshal(streaming.TickMessage{ExpectingTick: &tick, MapPath: &path, GameMode: &mode})
	require.NoError(t, err)
	tr.queue([][]byte{data})
	r.Step(time.Millisecond)

	s := r.Session().Get()
	assert.Equal(t, "maps/arena.csv", s.MapPath)
	require.NotNil(t, s.GameMode)
	assert.Equal(t, core.CaptureTheFlag, *s.GameMode)
	assert.Equal(t, "maps/arena.csv", r.Status().MapPath)
}

func TestRunner_LogAttrs(t *testing.T) {
	r, _, _, _ := newTestRunner(t, 10)

	attrs := r.LogAttrs()
	require.Len(t, attrs, 4)
	assert.Equal(t, "session", attrs[0].Key)
	assert.Equal(t, r.Session().ID(), attrs[0].Value.String())
	assert.Equal(t, "Loading", attrs[2].Value.String())
}
