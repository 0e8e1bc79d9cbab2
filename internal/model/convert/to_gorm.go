// Package convert turns core sessions and events into GORM rows
package convert

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/marsgrid/ticksync/internal/geo"
	"github.com/marsgrid/ticksync/internal/model"
	"github.com/marsgrid/ticksync/pkg/core"

	"gorm.io/datatypes"
)

// scoresToJSON converts a score table to datatypes.JSON for DB storage.
func scoresToJSON(scores []core.Score) datatypes.JSON {
	if len(scores) == 0 {
		return datatypes.JSON("[]")
	}
	data, err := json.Marshal(scores)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}

func gameModeName(m *core.GameMode) string {
	if m == nil {
		return ""
	}
	return m.String()
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	return model.Session{
		SessionID:   s.ID,
		Address:     s.Address,
		MapPath:     s.MapPath,
		GameMode:    gameModeName(s.GameMode),
		TotalSteps:  s.TotalSteps,
		StartTime:   s.StartTime,
		FinalScores: datatypes.JSON("[]"),
	}
}

// ApplyFinish copies the end-of-game result onto a session row.
func ApplyFinish(s *model.Session, ev core.GameFinished, at time.Time) {
	s.EndTime = sql.NullTime{Time: at, Valid: true}
	s.FinalTick = ev.Tick
	s.Draw = ev.Outcome.Draw
	if !ev.Outcome.Draw {
		s.WinnerTeam = ev.Outcome.Winner.TeamName
	}
	s.FinalScores = scoresToJSON(ev.Scores)
}

// EntityToRow converts an applied entity to its state row.
func EntityToRow(sessionID uint, at time.Time, tick int, e core.Entity, created bool) any {
	switch v := e.(type) {
	case core.Agent:
		return &model.AgentState{
			Time:        at,
			SessionID:   sessionID,
			Tick:        tick,
			AgentID:     v.ID,
			Created:     created,
			Position:    geo.PointFromGrid(v.X, v.Y),
			Alive:       v.Alive,
			Color:       v.Color.String(),
			Team:        v.Team,
			VisualRange: v.VisualRange,
			Stance:      v.Stance.String(),
			GotShot:     v.GotShot,
			TaggerID:    v.TaggerID,
		}
	case core.Item:
		return &model.ItemState{
			Time:      at,
			SessionID: sessionID,
			Tick:      tick,
			ItemID:    v.ID,
			Created:   created,
			Position:  geo.PointFromGrid(v.X, v.Y),
			Color:     v.Color.String(),
			Type:      v.Type.String(),
			PickedUp:  v.PickedUp,
			OwnerID:   v.OwnerID,
		}
	case core.Barrel:
		return &model.BarrelState{
			Time:        at,
			SessionID:   sessionID,
			Tick:        tick,
			BarrelID:    v.ID,
			Created:     created,
			Position:    geo.PointFromGrid(v.X, v.Y),
			HasExploded: v.HasExploded,
		}
	}
	return nil
}

// EventToRow converts an engine event to the row that records it. It
// returns nil for events with no table, such as GameFinished, which updates
// the session row instead.
func EventToRow(sessionID uint, at time.Time, ev core.Event) any {
	switch v := ev.(type) {
	case core.EntityCreated:
		return EntityToRow(sessionID, at, v.Tick, v.Entity, true)
	case core.EntityUpdated:
		return EntityToRow(sessionID, at, v.Tick, v.Current, false)
	case core.EntityEliminated:
		return &model.Elimination{
			Time:      at,
			SessionID: sessionID,
			Tick:      v.Tick,
			VictimID:  v.Victim.ID,
			KillerID:  v.KillerID,
			Team:      v.Victim.Team,
			Position:  geo.PointFromGrid(v.Victim.X, v.Victim.Y),
		}
	case core.Explosion:
		return &model.Explosion{
			Time:      at,
			SessionID: sessionID,
			Tick:      v.Tick,
			BarrelID:  v.BarrelID,
			Position:  geo.PointFromGrid(v.X, v.Y),
		}
	case core.ScoresChanged:
		return &model.ScoreSnapshot{
			Time:      at,
			SessionID: sessionID,
			Tick:      v.Tick,
			Scores:    scoresToJSON(v.Scores),
		}
	case core.LifecycleChanged:
		return &model.LifecycleChange{
			Time:      at,
			SessionID: sessionID,
			Tick:      v.Tick,
			From:      v.From,
			To:        v.To,
		}
	case core.TickCorrected:
		return &model.TickCorrection{
			Time:      at,
			SessionID: sessionID,
			FromTick:  v.From,
			ToTick:    v.To,
		}
	case core.ConnectionChanged:
		return &model.ConnectionChange{
			Time:        at,
			SessionID:   sessionID,
			State:       v.State,
			Disconnects: v.Disconnects,
		}
	case core.MapAnnounced:
		return &model.MapAnnouncement{
			Time:      at,
			SessionID: sessionID,
			Tick:      v.Tick,
			MapPath:   v.MapPath,
			GameMode:  gameModeName(v.GameMode),
		}
	}
	return nil
}
