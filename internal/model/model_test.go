package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Session", &Session{}, "sessions"},
		{"AgentState", &AgentState{}, "agent_states"},
		{"ItemState", &ItemState{}, "item_states"},
		{"BarrelState", &BarrelState{}, "barrel_states"},
		{"Elimination", &Elimination{}, "eliminations"},
		{"Explosion", &Explosion{}, "explosions"},
		{"ScoreSnapshot", &ScoreSnapshot{}, "score_snapshots"},
		{"LifecycleChange", &LifecycleChange{}, "lifecycle_changes"},
		{"TickCorrection", &TickCorrection{}, "tick_corrections"},
		{"ConnectionChange", &ConnectionChange{}, "connection_changes"},
		{"MapAnnouncement", &MapAnnouncement{}, "map_announcements"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModels_AllHaveTableNames(t *testing.T) {
	assert.Len(t, DatabaseModels, 11)
	for _, m := range DatabaseModels {
		_, ok := m.(interface{ TableName() string })
		assert.True(t, ok, "%T has no TableName", m)
	}
}
