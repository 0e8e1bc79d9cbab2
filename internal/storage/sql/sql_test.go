package sqlstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marsgrid/ticksync/internal/database"
	"github.com/marsgrid/ticksync/internal/geo"
	"github.com/marsgrid/ticksync/internal/model"
	"github.com/marsgrid/ticksync/internal/storage"
	"github.com/marsgrid/ticksync/pkg/core"
)

var _ storage.Backend = (*Backend)(nil)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newBackend(t *testing.T, dumpPath string) *Backend {
	t.Helper()
	m := database.NewManager(zerolog.Nop())
	require.NoError(t, m.Connect(false, ""))
	t.Cleanup(func() { m.Close() })

	b := New(Dependencies{
		Manager:       m,
		Logger:        zerolog.Nop(),
		FlushInterval: time.Hour,
		DumpPath:      dumpPath,
	})
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func session() *core.Session {
	return &core.Session{ID: "6a1e", Address: "ws://127.0.0.1:8181", MapPath: "arena.csv", TotalSteps: 3, StartTime: now}
}

func TestInit_NoDatabase(t *testing.T) {
	b := New(Dependencies{})
	require.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestRecord_WithoutSession(t *testing.T) {
	b := newBackend(t, "")
	err := b.Record(now, core.ScoresChanged{Tick: 1})
	assert.ErrorIs(t, err, storage.ErrNoSession)
	assert.ErrorIs(t, b.EndSession(), storage.ErrNoSession)
}

func TestRecord_QueuesUntilFlush(t *testing.T) {
	b := newBackend(t, "")
	require.NoError(t, b.StartSession(session()))

	agent := core.Agent{ID: "a1", X: 2, Y: 5, Alive: true, Team: "Alpha"}
	require.NoError(t, b.Record(now, core.EntityCreated{Tick: 1, Entity: agent}))
	require.NoError(t, b.Record(now, core.ScoresChanged{Tick: 1, Scores: []core.Score{{TeamName: "Alpha", TeamScore: 1}}}))
	require.NoError(t, b.Record(now, core.TickCorrected{From: 1, To: 4}))
	assert.Equal(t, 3, b.Pending())

	require.NoError(t, b.Flush())
	assert.Equal(t, 0, b.Pending())

	db := b.deps.Manager.DB
	var states []model.AgentState
	require.NoError(t, db.Find(&states).Error)
	require.Len(t, states, 1)
	assert.Equal(t, "a1", states[0].AgentID)
	assert.True(t, states[0].Created)
	x, y, ok := geo.GridFromPoint(states[0].Position)
	require.True(t, ok)
	assert.Equal(t, [2]int{2, 5}, [2]int{x, y})
	assert.Equal(t, uint(b.sessionID.Load()), states[0].SessionID)

	var corrections []model.TickCorrection
	require.NoError(t, db.Find(&corrections).Error)
	require.Len(t, corrections, 1)
	assert.Equal(t, 4, corrections[0].ToTick)
}

func TestEndSession_StoresOutcome(t *testing.T) {
	b := newBackend(t, "")
	require.NoError(t, b.StartSession(session()))

	scores := []core.Score{{TeamName: "Alpha", TeamScore: 3}, {TeamName: "Bravo", TeamScore: 1}}
	require.NoError(t, b.Record(now, core.EntityEliminated{Tick: 2, Victim: core.Agent{ID: "a2", Team: "Bravo"}, KillerID: "a1"}))
	require.NoError(t, b.Record(now, core.GameFinished{Tick: 3, Scores: scores, Outcome: core.DecideOutcome(scores)}))
	assert.Equal(t, 1, b.Pending(), "GameFinished is not queued")

	require.NoError(t, b.EndSession())

	db := b.deps.Manager.DB
	var s model.Session
	require.NoError(t, db.First(&s, "session_id = ?", "6a1e").Error)
	assert.Equal(t, 3, s.FinalTick)
	assert.Equal(t, "Alpha", s.WinnerTeam)
	assert.False(t, s.Draw)
	assert.True(t, s.EndTime.Valid)
	assert.Contains(t, string(s.FinalScores), "Bravo")

	var elims []model.Elimination
	require.NoError(t, db.Find(&elims).Error)
	require.Len(t, elims, 1)
	assert.Equal(t, "a1", elims[0].KillerID)

	assert.ErrorIs(t, b.Record(now, core.ScoresChanged{Tick: 4}), storage.ErrNoSession)
}

func TestEndSession_DumpsMemoryDatabase(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "session.db")
	b := newBackend(t, dump)
	require.NoError(t, b.StartSession(session()))
	require.NoError(t, b.Record(now, core.Explosion{Tick: 2, BarrelID: "b1", X: 1, Y: 1}))
	require.NoError(t, b.EndSession())

	disk := database.NewManager(zerolog.Nop())
	require.NoError(t, disk.Connect(false, dump))
	defer disk.Close()

	var n int64
	require.NoError(t, disk.DB.Model(&model.Explosion{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestClose_FlushesQueue(t *testing.T) {
	b := newBackend(t, "")
	require.NoError(t, b.StartSession(session()))
	require.NoError(t, b.Record(now, core.LifecycleChanged{Tick: 1, From: "Loading", To: "Playing"}))

	require.NoError(t, b.Close())

	var n int64
	require.NoError(t, b.deps.Manager.DB.Model(&model.LifecycleChange{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
