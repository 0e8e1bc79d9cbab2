package streaming

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultAddress is where the simulation listens unless configured otherwise.
const DefaultAddress = "ws://127.0.0.1:8181"

// TickMessage is the JSON document the simulation sends once per tick.
// ExpectingTick is a pointer so a missing field can be told apart from 0.
type TickMessage struct {
	MapPath       *string         `json:"mapPath,omitempty"`
	GameMode      *string         `json:"gameMode,omitempty"`
	ExpectingTick *int            `json:"expectingTick"`
	Agents        []AgentMessage  `json:"agents"`
	Items         []ItemMessage   `json:"items"`
	Barrels       []BarrelMessage `json:"explosiveBarrels"`
	Scores        []ScoreMessage  `json:"scores"`
}

// AgentMessage is one agent as serialized by the simulation.
type AgentMessage struct {
	ID          string `json:"id"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Alive       bool   `json:"alive"`
	Color       string `json:"color"`
	Team        string `json:"team"`
	VisualRange int    `json:"visualRange"`
	GotShot     bool   `json:"gotShot"`
	Stance      string `json:"stance,omitempty"`
	TaggerID    string `json:"taggerID"`
}

// ItemMessage is one item as serialized by the simulation.
type ItemMessage struct {
	ID       string `json:"id"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Color    string `json:"color"`
	Type     string `json:"type"`
	PickedUp bool   `json:"pickedUp"`
	OwnerID  string `json:"ownerID"`
}

// BarrelMessage is one explosive barrel as serialized by the simulation.
type BarrelMessage struct {
	ID          string `json:"id"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	HasExploded bool   `json:"hasExploded"`
}

// ScoreMessage is one team's score as serialized by the simulation.
type ScoreMessage struct {
	TeamName  string `json:"teamName"`
	TeamColor string `json:"teamColor"`
	Score     int    `json:"score"`
}

// FormatAck renders the acknowledgement payload for a tick.
func FormatAck(tick int) string {
	return strconv.Itoa(tick)
}

// ParseAck reads an acknowledgement payload back into a tick number.
func ParseAck(payload string) (int, error) {
	tick, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return 0, fmt.Errorf("invalid ack payload %q: %w", payload, err)
	}
	return tick, nil
}
