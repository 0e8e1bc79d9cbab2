package core

// EventKind identifies an outbound event. The values double as dispatcher
// command names.
type EventKind string

const (
	EventEntityCreated     EventKind = "entity_created"
	EventEntityUpdated     EventKind = "entity_updated"
	EventEntityEliminated  EventKind = "entity_eliminated"
	EventExplosion         EventKind = "explosion"
	EventScoresChanged     EventKind = "scores_changed"
	EventGameFinished      EventKind = "game_finished"
	EventTickCorrected     EventKind = "tick_corrected"
	EventLifecycleChanged  EventKind = "lifecycle_changed"
	EventMapAnnounced      EventKind = "map_announced"
	EventConnectionChanged EventKind = "connection_changed"
)

// Event is anything the engine publishes for renderers and sinks.
type Event interface {
	Kind() EventKind
}

// EntityCreated is emitted the first time an id is seen.
type EntityCreated struct {
	Tick   int
	Entity Entity
}

// EntityUpdated carries the stored value before and after the update.
type EntityUpdated struct {
	Tick     int
	Previous Entity
	Current  Entity
}

// EntityEliminated fires once per agent, on the tick its alive flag drops.
// KillerID is empty when nobody tagged the victim.
type EntityEliminated struct {
	Tick     int
	Victim   Agent
	KillerID string
}

// Explosion fires once per barrel, on the tick it goes off.
type Explosion struct {
	Tick     int
	BarrelID string
	X        int
	Y        int
}

// ScoresChanged republishes the full score table for every applied snapshot.
type ScoresChanged struct {
	Tick   int
	Scores []Score
}

// GameFinished is emitted once when the configured step count is reached.
type GameFinished struct {
	Tick    int
	Scores  []Score
	Outcome Outcome
}

// TickCorrected records the engine adopting the peer's tick.
type TickCorrected struct {
	From int
	To   int
}

// LifecycleChanged records a lifecycle state transition.
type LifecycleChanged struct {
	Tick int
	From string
	To   string
}

// MapAnnounced is emitted when the peer names a new map or game mode.
type MapAnnounced struct {
	Tick     int
	MapPath  string
	GameMode *GameMode
}

// ConnectionChanged reports transport state for connecting/retrying indicators.
type ConnectionChanged struct {
	State       string
	Disconnects int
}

func (EntityCreated) Kind() EventKind     { return EventEntityCreated }
func (EntityUpdated) Kind() EventKind     { return EventEntityUpdated }
func (EntityEliminated) Kind() EventKind  { return EventEntityEliminated }
func (Explosion) Kind() EventKind         { return EventExplosion }
func (ScoresChanged) Kind() EventKind     { return EventScoresChanged }
func (GameFinished) Kind() EventKind      { return EventGameFinished }
func (TickCorrected) Kind() EventKind     { return EventTickCorrected }
func (LifecycleChanged) Kind() EventKind  { return EventLifecycleChanged }
func (MapAnnounced) Kind() EventKind      { return EventMapAnnounced }
func (ConnectionChanged) Kind() EventKind { return EventConnectionChanged }
