package influx

import (
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/marsgrid/ticksync/internal/registry"
	"github.com/marsgrid/ticksync/pkg/core"
)

// Measurement names.
const (
	MeasurementTeamScore   = "team_score"
	MeasurementEntities    = "entities"
	MeasurementElimination = "elimination"
	MeasurementExplosion   = "explosion"
	MeasurementClient      = "client_status"
)

// ScorePoints returns one point per team.
func ScorePoints(sessionID string, tick int, scores []core.Score, at time.Time) []*influxdb2_write.Point {
	points := make([]*influxdb2_write.Point, 0, len(scores))
	for _, s := range scores {
		points = append(points, influxdb2_write.NewPoint(
			MeasurementTeamScore,
			map[string]string{
				"session": sessionID,
				"team":    s.TeamName,
				"color":   s.TeamColor.String(),
			},
			map[string]interface{}{
				"score": s.TeamScore,
				"tick":  tick,
			},
			at,
		))
	}
	return points
}

// EntityCountPoint records registry sizes after a tick was applied.
func EntityCountPoint(sessionID string, tick int, sizes registry.Sizes, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementEntities,
		map[string]string{"session": sessionID},
		map[string]interface{}{
			"agents":  sizes.Agents,
			"items":   sizes.Items,
			"barrels": sizes.Barrels,
			"tick":    tick,
		},
		at,
	)
}

// EliminationPoint records one elimination.
func EliminationPoint(sessionID string, ev core.EntityEliminated, at time.Time) *influxdb2_write.Point {
	killer := ev.KillerID
	if killer == "" {
		killer = "none"
	}
	return influxdb2_write.NewPointWithMeasurement(MeasurementElimination).
		AddTag("session", sessionID).
		AddTag("team", ev.Victim.Team).
		AddField("victim", ev.Victim.ID).
		AddField("killer", killer).
		AddField("tick", ev.Tick).
		SetTime(at)
}

// ExplosionPoint records one barrel going off.
func ExplosionPoint(sessionID string, ev core.Explosion, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(MeasurementExplosion).
		AddTag("session", sessionID).
		AddField("barrel", ev.BarrelID).
		AddField("x", ev.X).
		AddField("y", ev.Y).
		AddField("tick", ev.Tick).
		SetTime(at)
}

// ClientStatus is the periodic health sample of the client itself.
type ClientStatus struct {
	SessionID   string
	Connection  string
	Lifecycle   string
	Tick        int
	LastAcked   int
	Disconnects int
	Pending     int
}

// ClientStatusPoint converts a status sample.
func ClientStatusPoint(s ClientStatus, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementClient,
		map[string]string{
			"session":    s.SessionID,
			"connection": s.Connection,
			"lifecycle":  s.Lifecycle,
		},
		map[string]interface{}{
			"tick":        s.Tick,
			"last_acked":  s.LastAcked,
			"disconnects": s.Disconnects,
			"pending":     s.Pending,
		},
		at,
	)
}
