package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_StartsLoading(t *testing.T) {
	m := New()
	assert.Equal(t, Loading, m.State())
	assert.False(t, m.Applying())
}

func TestMachine_BeginOnlyOnce(t *testing.T) {
	m := New()

	tr, ok := m.Begin()
	require.True(t, ok)
	assert.Equal(t, Transition{From: Loading, To: Playing}, tr)
	assert.True(t, m.Applying())

	_, ok = m.Begin()
	assert.False(t, ok, "second Begin must be a no-op")
	assert.Equal(t, Playing, m.State())
}

func TestMachine_PauseResume(t *testing.T) {
	m := New()
	m.Begin()

	tr, err := m.Pause()
	require.NoError(t, err)
	assert.Equal(t, Transition{From: Playing, To: Paused}, tr)
	assert.False(t, m.Applying())

	tr, err = m.Resume()
	require.NoError(t, err)
	assert.Equal(t, Transition{From: Paused, To: Playing}, tr)
	assert.True(t, m.Applying())
}

func TestMachine_BeginWhilePausedDoesNotResume(t *testing.T) {
	m := New()
	m.Begin()
	_, err := m.Pause()
	require.NoError(t, err)

	_, ok := m.Begin()
	assert.False(t, ok)
	assert.Equal(t, Paused, m.State())
}

func TestMachine_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *Machine)
		act   func(m *Machine) error
	}{
		{
			name:  "pause while loading",
			setup: func(m *Machine) {},
			act:   func(m *Machine) error { _, err := m.Pause(); return err },
		},
		{
			name:  "resume while playing",
			setup: func(m *Machine) { m.Begin() },
			act:   func(m *Machine) error { _, err := m.Resume(); return err },
		},
		{
			name:  "finish while loading",
			setup: func(m *Machine) {},
			act:   func(m *Machine) error { _, err := m.Finish(); return err },
		},
		{
			name:  "finish while paused",
			setup: func(m *Machine) { m.Begin(); _, _ = m.Pause() },
			act:   func(m *Machine) error { _, err := m.Finish(); return err },
		},
		{
			name:  "pause after finished",
			setup: func(m *Machine) { m.Begin(); _, _ = m.Finish() },
			act:   func(m *Machine) error { _, err := m.Pause(); return err },
		},
		{
			name:  "resume after finished",
			setup: func(m *Machine) { m.Begin(); _, _ = m.Finish() },
			act:   func(m *Machine) error { _, err := m.Resume(); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			tt.setup(m)
			before := m.State()

			err := tt.act(m)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, before, m.State(), "failed transition must not change state")
		})
	}
}

func TestMachine_FinishedIsTerminal(t *testing.T) {
	m := New()
	m.Begin()
	_, err := m.Finish()
	require.NoError(t, err)

	_, ok := m.Begin()
	assert.False(t, ok)
	assert.Equal(t, Finished, m.State())
	assert.False(t, m.Applying())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Loading", Loading.String())
	assert.Equal(t, "Paused", Paused.String())
	assert.Equal(t, "State(9)", State(9).String())
}
