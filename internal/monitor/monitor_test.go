package monitor

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marsgrid/ticksync/internal/influx"
	"github.com/marsgrid/ticksync/internal/registry"
	"github.com/marsgrid/ticksync/internal/session"
)

type recordingPoints struct {
	mu     sync.Mutex
	points []*influxdb2_write.Point
}

func (r *recordingPoints) WritePoint(p *influxdb2_write.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, p)
	return nil
}

func (r *recordingPoints) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.points)
}

func sampleStatus() session.Status {
	return session.Status{
		SessionID:   "abc",
		Address:     "ws://sim:8080",
		Lifecycle:   "Playing",
		Transport:   "Open",
		Tick:        1234,
		LastAcked:   1233,
		HasAcked:    true,
		TotalSteps:  1500,
		Disconnects: 2,
		Sizes:       registry.Sizes{Agents: 6, Items: 2, Barrels: 3},
		StartTime:   time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLines(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC)
	lines := Lines(sampleStatus(), now)

	assert.Contains(t, lines, "tick:        1,234 / 1,500")
	assert.Contains(t, lines, "transport:   Open (2 disconnects)")
	assert.Contains(t, lines, "entities:    6 agents, 2 items, 3 barrels")
	assert.Contains(t, lines, "last ack:    1,233")
	assert.Contains(t, lines, "started:     5 minutes ago")
}

func TestLines_Unbounded(t *testing.T) {
	st := sampleStatus()
	st.TotalSteps = 0
	st.HasAcked = false
	st.StartTime = time.Time{}

	lines := Lines(st, time.Now())
	assert.Contains(t, lines, "tick:        1,234")
	for _, l := range lines {
		assert.NotContains(t, l, "last ack")
		assert.NotContains(t, l, "started")
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	points := &recordingPoints{}
	svc := NewService(Dependencies{
		Status: sampleStatus,
		Points: points,
		Logger: slog.New(slog.NewTextHandler(&buf, nil)),
	})

	path := filepath.Join(t.TempDir(), "status.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	svc.Report(f, time.Now())

	assert.Contains(t, buf.String(), "Client status")
	assert.Contains(t, buf.String(), "tick=1234")

	require.Equal(t, 1, points.count())
	assert.Equal(t, influx.MeasurementClient, points.points[0].Name())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session:     abc")
}

func TestStartStop(t *testing.T) {
	points := &recordingPoints{}
	path := filepath.Join(t.TempDir(), "status.txt")
	svc := NewService(Dependencies{
		Status:     sampleStatus,
		Points:     points,
		Logger:     slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		StatusFile: path,
		Interval:   5 * time.Millisecond,
	})

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())

	require.Eventually(t, func() bool { return points.count() >= 2 }, time.Second, time.Millisecond)
	svc.Stop()
	assert.False(t, svc.IsRunning())

	n := points.count()
	svc.Stop()
	assert.Equal(t, n, points.count())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lifecycle:   Playing")
}
