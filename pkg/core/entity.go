package core

import "github.com/google/uuid"

// NoTagger is the tagger id the simulation sends when an agent was not
// eliminated by another agent.
var NoTagger = uuid.Nil.String()

// EntityKind names one of the registry's maps.
type EntityKind string

const (
	KindAgent  EntityKind = "agent"
	KindItem   EntityKind = "item"
	KindBarrel EntityKind = "barrel"
)

// Entity is implemented by Agent, Item and Barrel.
type Entity interface {
	EntityID() string
	EntityKind() EntityKind
	GridPosition() (x, y int)
}

// Agent is one simulated player.
type Agent struct {
	ID          string
	X           int
	Y           int
	Alive       bool
	Color       Color
	VisualRange int
	TaggerID    string
	Team        string
	GotShot     bool
	Stance      Stance
}

func (a Agent) EntityID() string         { return a.ID }
func (a Agent) EntityKind() EntityKind   { return KindAgent }
func (a Agent) GridPosition() (int, int) { return a.X, a.Y }

// Killer returns the id of the agent that eliminated a, or false when the
// tagger is empty or the none sentinel.
func (a Agent) Killer() (string, bool) {
	if a.TaggerID == "" {
		return "", false
	}
	if id, err := uuid.Parse(a.TaggerID); err == nil && id == uuid.Nil {
		return "", false
	}
	return a.TaggerID, true
}

// Item is a pick-up on the grid, currently always a flag.
type Item struct {
	ID       string
	X        int
	Y        int
	Color    Color
	Type     ItemType
	PickedUp bool
	OwnerID  string
}

func (i Item) EntityID() string         { return i.ID }
func (i Item) EntityKind() EntityKind   { return KindItem }
func (i Item) GridPosition() (int, int) { return i.X, i.Y }

// Barrel is an explosive barrel. HasExploded only ever goes false -> true.
type Barrel struct {
	ID          string
	X           int
	Y           int
	HasExploded bool
}

func (b Barrel) EntityID() string         { return b.ID }
func (b Barrel) EntityKind() EntityKind   { return KindBarrel }
func (b Barrel) GridPosition() (int, int) { return b.X, b.Y }

// Score is one team's standing. Scores carry no identity across ticks.
type Score struct {
	TeamName  string `json:"teamName"`
	TeamColor Color  `json:"teamColor"`
	TeamScore int    `json:"score"`
}

// TickSnapshot is the decoded content of one inbound frame.
type TickSnapshot struct {
	ExpectingTick int
	MapPath       string
	GameMode      *GameMode
	Agents        []Agent
	Items         []Item
	Barrels       []Barrel
	Scores        []Score
}
