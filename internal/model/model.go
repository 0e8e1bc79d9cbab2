package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&AgentState{},
	&ItemState{},
	&BarrelState{},
	&Elimination{},
	&Explosion{},
	&ScoreSnapshot{},
	&LifecycleChange{},
	&TickCorrection{},
	&ConnectionChange{},
	&MapAnnouncement{},
}

////////////////////////
// SESSION
////////////////////////

// Session is one run of the client against a simulation
type Session struct {
	gorm.Model
	SessionID   string         `json:"sessionId" gorm:"size:36;uniqueIndex"`
	Address     string         `json:"address" gorm:"size:255"`
	MapPath     string         `json:"mapPath" gorm:"size:255"`
	GameMode    string         `json:"gameMode" gorm:"size:32"`
	TotalSteps  int            `json:"totalSteps"`
	StartTime   time.Time      `json:"startTime" gorm:"index:idx_session_start"`
	EndTime     sql.NullTime   `json:"endTime"`
	FinalTick   int            `json:"finalTick"`
	Draw        bool           `json:"draw"`
	WinnerTeam  string         `json:"winnerTeam" gorm:"size:64"`
	FinalScores datatypes.JSON `json:"finalScores"`
}

func (*Session) TableName() string {
	return "sessions"
}

////////////////////////
// ENTITY STATES
////////////////////////

// AgentState is an agent as applied on one tick
type AgentState struct {
	ID          uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time  `json:"time"`
	SessionID   uint       `json:"sessionId" gorm:"index:idx_agentstate_session_id"`
	Tick        int        `json:"tick" gorm:"index:idx_agentstate_tick"`
	AgentID     string     `json:"agentId" gorm:"size:64;index:idx_agentstate_agent_id"`
	Created     bool       `json:"created"`
	Position    geom.Point `json:"position"`
	Alive       bool       `json:"alive"`
	Color       string     `json:"color" gorm:"size:16"`
	Team        string     `json:"team" gorm:"size:64"`
	VisualRange int        `json:"visualRange"`
	Stance      string     `json:"stance" gorm:"size:16"`
	GotShot     bool       `json:"gotShot"`
	TaggerID    string     `json:"taggerId" gorm:"size:64"`
}

func (*AgentState) TableName() string {
	return "agent_states"
}

// ItemState is an item as applied on one tick
type ItemState struct {
	ID        uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time  `json:"time"`
	SessionID uint       `json:"sessionId" gorm:"index:idx_itemstate_session_id"`
	Tick      int        `json:"tick" gorm:"index:idx_itemstate_tick"`
	ItemID    string     `json:"itemId" gorm:"size:64"`
	Created   bool       `json:"created"`
	Position  geom.Point `json:"position"`
	Color     string     `json:"color" gorm:"size:16"`
	Type      string     `json:"type" gorm:"size:16"`
	PickedUp  bool       `json:"pickedUp"`
	OwnerID   string     `json:"ownerId" gorm:"size:64"`
}

func (*ItemState) TableName() string {
	return "item_states"
}

// BarrelState is a barrel as applied on one tick
type BarrelState struct {
	ID          uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time  `json:"time"`
	SessionID   uint       `json:"sessionId" gorm:"index:idx_barrelstate_session_id"`
	Tick        int        `json:"tick" gorm:"index:idx_barrelstate_tick"`
	BarrelID    string     `json:"barrelId" gorm:"size:64"`
	Created     bool       `json:"created"`
	Position    geom.Point `json:"position"`
	HasExploded bool       `json:"hasExploded"`
}

func (*BarrelState) TableName() string {
	return "barrel_states"
}

////////////////////////
// EVENTS
////////////////////////

// Elimination is an agent going down
type Elimination struct {
	ID        uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time  `json:"time"`
	SessionID uint       `json:"sessionId" gorm:"index:idx_elimination_session_id"`
	Tick      int        `json:"tick"`
	VictimID  string     `json:"victimId" gorm:"size:64"`
	KillerID  string     `json:"killerId" gorm:"size:64"`
	Team      string     `json:"team" gorm:"size:64"`
	Position  geom.Point `json:"position"`
}

func (*Elimination) TableName() string {
	return "eliminations"
}

// Explosion is a barrel going off
type Explosion struct {
	ID        uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time  `json:"time"`
	SessionID uint       `json:"sessionId" gorm:"index:idx_explosion_session_id"`
	Tick      int        `json:"tick"`
	BarrelID  string     `json:"barrelId" gorm:"size:64"`
	Position  geom.Point `json:"position"`
}

func (*Explosion) TableName() string {
	return "explosions"
}

// ScoreSnapshot is the score table after one tick
type ScoreSnapshot struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time      `json:"time"`
	SessionID uint           `json:"sessionId" gorm:"index:idx_scoresnapshot_session_id"`
	Tick      int            `json:"tick"`
	Scores    datatypes.JSON `json:"scores"`
}

func (*ScoreSnapshot) TableName() string {
	return "score_snapshots"
}

// LifecycleChange is a lifecycle state transition
type LifecycleChange struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_lifecyclechange_session_id"`
	Tick      int       `json:"tick"`
	From      string    `json:"from" gorm:"size:16"`
	To        string    `json:"to" gorm:"size:16"`
}

func (*LifecycleChange) TableName() string {
	return "lifecycle_changes"
}

// TickCorrection records the client adopting the peer's tick
type TickCorrection struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_tickcorrection_session_id"`
	FromTick  int       `json:"fromTick"`
	ToTick    int       `json:"toTick"`
}

func (*TickCorrection) TableName() string {
	return "tick_corrections"
}

// ConnectionChange is a transport state change
type ConnectionChange struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time `json:"time"`
	SessionID   uint      `json:"sessionId" gorm:"index:idx_connectionchange_session_id"`
	State       string    `json:"state" gorm:"size:16"`
	Disconnects int       `json:"disconnects"`
}

func (*ConnectionChange) TableName() string {
	return "connection_changes"
}

// MapAnnouncement is the peer naming its map or game mode
type MapAnnouncement struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_mapannouncement_session_id"`
	Tick      int       `json:"tick"`
	MapPath   string    `json:"mapPath" gorm:"size:255"`
	GameMode  string    `json:"gameMode" gorm:"size:32"`
}

func (*MapAnnouncement) TableName() string {
	return "map_announcements"
}
