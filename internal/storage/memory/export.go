package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/marsgrid/ticksync/pkg/core"
)

// SessionExport is the root JSON structure
type SessionExport struct {
	SessionID  string         `json:"sessionId"`
	Address    string         `json:"address"`
	MapPath    string         `json:"mapPath"`
	GameMode   string         `json:"gameMode,omitempty"`
	TotalSteps int            `json:"totalSteps"`
	StartTime  time.Time      `json:"startTime"`
	EndTick    int            `json:"endTick"`
	Outcome    *OutcomeExport `json:"outcome,omitempty"`
	Agents     []TrackExport  `json:"agents"`
	Items      []TrackExport  `json:"items"`
	Barrels    []TrackExport  `json:"barrels"`
	Events     [][]any        `json:"events"`
	Scores     []ScoreFrame   `json:"scores"`
}

// OutcomeExport is present once the game finished.
type OutcomeExport struct {
	Tick   int          `json:"tick"`
	Draw   bool         `json:"draw"`
	Winner string       `json:"winner,omitempty"`
	Scores []core.Score `json:"scores"`
}

// TrackExport is one entity and its per-tick frames.
type TrackExport struct {
	ID        string  `json:"id"`
	FirstTick int     `json:"firstTick"`
	Frames    [][]any `json:"frames"`
}

// frame layouts:
//
//	agent:  [tick, x, y, alive, color, team, stance, gotShot]
//	item:   [tick, x, y, pickedUp, ownerId]
//	barrel: [tick, x, y, hasExploded]
func frameOf(s State) []any {
	switch e := s.Entity.(type) {
	case core.Agent:
		return []any{s.Tick, e.X, e.Y, boolToInt(e.Alive), e.Color.String(), e.Team, e.Stance.String(), boolToInt(e.GotShot)}
	case core.Item:
		return []any{s.Tick, e.X, e.Y, boolToInt(e.PickedUp), e.OwnerID}
	case core.Barrel:
		return []any{s.Tick, e.X, e.Y, boolToInt(e.HasExploded)}
	}
	x, y := s.Entity.GridPosition()
	return []any{s.Tick, x, y}
}

func exportTracks(tracks map[string]*Track) []TrackExport {
	out := make([]TrackExport, 0, len(tracks))
	for _, t := range tracks {
		te := TrackExport{
			ID:        t.ID,
			FirstTick: t.FirstTick,
			Frames:    make([][]any, 0, len(t.States)),
		}
		for _, s := range t.States {
			te.Frames = append(te.Frames, frameOf(s))
		}
		out = append(out, te)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		SessionID:  b.session.ID,
		Address:    b.session.Address,
		MapPath:    b.session.MapPath,
		TotalSteps: b.session.TotalSteps,
		StartTime:  b.session.StartTime,
		EndTick:    b.lastTick,
		Agents:     exportTracks(b.agents),
		Items:      exportTracks(b.items),
		Barrels:    exportTracks(b.barrels),
		Events:     make([][]any, 0, len(b.events)),
		Scores:     make([]ScoreFrame, 0, len(b.scores)),
	}
	if b.session.GameMode != nil {
		export.GameMode = b.session.GameMode.String()
	}

	export.Events = append(export.Events, b.events...)
	export.Scores = append(export.Scores, b.scores...)

	if b.finished != nil {
		out := &OutcomeExport{
			Tick:   b.finished.Tick,
			Draw:   b.finished.Outcome.Draw,
			Scores: b.finished.Scores,
		}
		if !out.Draw {
			out.Winner = b.finished.Outcome.Winner.TeamName
		}
		export.Outcome = out
	}

	return export
}

func exportFileName(sessionID string, start time.Time, compress bool) string {
	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_").Replace(sessionID)
	if name == "" {
		name = "session"
	}
	ext := ".json"
	if compress {
		ext = ".json.gz"
	}
	return fmt.Sprintf("%s_%s%s", name, start.Format("20060102_150405"), ext)
}

// exportJSON writes the session data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, exportFileName(b.session.ID, b.session.StartTime, b.cfg.CompressOutput))

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
