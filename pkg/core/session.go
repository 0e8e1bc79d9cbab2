package core

import (
	"sort"
	"time"
)

// Session describes one run of the client against a simulation.
type Session struct {
	ID         string
	Address    string
	MapPath    string
	GameMode   *GameMode
	TotalSteps int
	StartTime  time.Time
}

// Outcome is the end-of-game result derived from the final scores.
type Outcome struct {
	Draw   bool
	Winner Score
}

// DecideOutcome reports a draw when the two best scores tie (or there are
// no scores), otherwise the best team.
func DecideOutcome(scores []Score) Outcome {
	if len(scores) == 0 {
		return Outcome{Draw: true}
	}
	ranked := make([]Score, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TeamScore > ranked[j].TeamScore
	})
	if len(ranked) > 1 && ranked[0].TeamScore == ranked[1].TeamScore {
		return Outcome{Draw: true}
	}
	return Outcome{Winner: ranked[0]}
}

func (o Outcome) String() string {
	if o.Draw {
		return "Game resulted in a draw!"
	}
	return o.Winner.TeamName + " Won!"
}
