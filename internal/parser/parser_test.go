package parser

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marsgrid/ticksync/pkg/core"
)

const fullFrame = `{
	"mapPath": "resources/map.csv",
	"gameMode": "CaptureTheFlag",
	"expectingTick": 12,
	"agents": [
		{"id": "a1", "x": 3, "y": 4, "alive": true, "color": "Red", "team": "Red Team",
		 "visualRange": 10, "gotShot": false, "stance": "Crouching",
		 "taggerID": "00000000-0000-0000-0000-000000000000"}
	],
	"items": [
		{"id": "f1", "x": 1, "y": 1, "color": "Yellow", "type": "Flag", "pickedUp": true, "ownerID": "a1"}
	],
	"explosiveBarrels": [
		{"id": "b1", "x": 7, "y": 8, "hasExploded": false}
	],
	"scores": [
		{"teamName": "Red Team", "teamColor": "Red", "score": 2},
		{"teamName": "Yellow Team", "teamColor": "Yellow", "score": 1}
	]
}`

func newTestParser() *Parser {
	return NewParser(slog.Default())
}

func TestNewParser(t *testing.T) {
	require.NotNil(t, NewParser(nil))
}

func TestDecode_FullFrame(t *testing.T) {
	snap, err := newTestParser().Decode([]byte(fullFrame))
	require.NoError(t, err)

	assert.Equal(t, 12, snap.ExpectingTick)
	assert.Equal(t, "resources/map.csv", snap.MapPath)
	require.NotNil(t, snap.GameMode)
	assert.Equal(t, core.CaptureTheFlag, *snap.GameMode)

	require.Len(t, snap.Agents, 1)
	a := snap.Agents[0]
	assert.Equal(t, "a1", a.ID)
	assert.Equal(t, 3, a.X)
	assert.Equal(t, 4, a.Y)
	assert.True(t, a.Alive)
	assert.Equal(t, core.Red, a.Color)
	assert.Equal(t, "Red Team", a.Team)
	assert.Equal(t, 10, a.VisualRange)
	assert.Equal(t, core.Crouching, a.Stance)
	assert.Equal(t, core.NoTagger, a.TaggerID)

	require.Len(t, snap.Items, 1)
	assert.Equal(t, core.Flag, snap.Items[0].Type)
	assert.Equal(t, core.Yellow, snap.Items[0].Color)
	assert.True(t, snap.Items[0].PickedUp)
	assert.Equal(t, "a1", snap.Items[0].OwnerID)

	require.Len(t, snap.Barrels, 1)
	assert.Equal(t, core.Barrel{ID: "b1", X: 7, Y: 8}, snap.Barrels[0])

	require.Len(t, snap.Scores, 2)
	assert.Equal(t, core.Score{TeamName: "Red Team", TeamColor: core.Red, TeamScore: 2}, snap.Scores[0])
}

func TestDecode_OptionalFieldsAbsent(t *testing.T) {
	snap, err := newTestParser().Decode([]byte(`{"expectingTick": 0, "agents": [], "items": [], "explosiveBarrels": [], "scores": []}`))
	require.NoError(t, err)

	assert.Equal(t, 0, snap.ExpectingTick)
	assert.Empty(t, snap.MapPath)
	assert.Nil(t, snap.GameMode)
	assert.Empty(t, snap.Agents)
}

func TestDecode_MissingStanceDefaultsToStanding(t *testing.T) {
	frame := `{"expectingTick": 1, "agents": [{"id": "a1", "color": "Blue", "alive": true}]}`
	snap, err := newTestParser().Decode([]byte(frame))
	require.NoError(t, err)
	require.Len(t, snap.Agents, 1)
	assert.Equal(t, core.Standing, snap.Agents[0].Stance)
}

func TestDecode_ScoreDefaults(t *testing.T) {
	frame := `{"expectingTick": 1, "scores": [{"teamName": "A", "score": 2}, {"teamName": "B"}]}`
	snap, err := newTestParser().Decode([]byte(frame))
	require.NoError(t, err)

	require.Len(t, snap.Scores, 2)
	assert.Equal(t, core.Score{TeamName: "A", TeamColor: core.Grey, TeamScore: 2}, snap.Scores[0])
	assert.Equal(t, core.Score{TeamName: "B", TeamColor: core.Grey}, snap.Scores[1])
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		field string
	}{
		{"whitespace", "   \n", ""},
		{"not json", "hello", ""},
		{"truncated", `{"expectingTick": 3, "agents": [`, ""},
		{"wrong type", `{"expectingTick": "three"}`, ""},
		{"missing tick", `{"agents": []}`, "expectingTick"},
		{"unknown game mode", `{"expectingTick": 1, "gameMode": "KingOfTheHill"}`, "gameMode"},
		{"unknown agent color", `{"expectingTick": 1, "agents": [{"id": "a1", "color": "Purple"}]}`, "agents[0].color"},
		{"unknown stance", `{"expectingTick": 1, "agents": [{"id": "a1", "color": "Red", "stance": "Flying"}]}`, "agents[0].stance"},
		{"agent without id", `{"expectingTick": 1, "agents": [{"color": "Red"}]}`, "agents[0]"},
		{"unknown item type", `{"expectingTick": 1, "items": [{"id": "i1", "color": "Red", "type": "Bomb"}]}`, "items[0].type"},
		{"barrel without id", `{"expectingTick": 1, "explosiveBarrels": [{"x": 1}]}`, "explosiveBarrels[0]"},
		{"unknown team color", `{"expectingTick": 1, "scores": [{"teamName": "A", "teamColor": "Pink", "score": 1}]}`, "scores[0].teamColor"},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Decode([]byte(tt.frame))
			require.Error(t, err)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr), "expected *DecodeError, got %T", err)
			assert.Equal(t, tt.field, decodeErr.Field)
		})
	}
}

func TestDecode_EmptyFrameSentinel(t *testing.T) {
	_, err := newTestParser().Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)
}
