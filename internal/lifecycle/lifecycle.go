package lifecycle

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned for a command that has no edge from the
// current state.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// State gates whether snapshots are applied.
type State int

const (
	Loading State = iota
	Playing
	Paused
	Finished
)

func (s State) String() string {
	switch s {
	case Loading:
		return "Loading"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case Finished:
		return "Finished"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Transition records one edge that was taken.
type Transition struct {
	From State
	To   State
}

// edges lists every legal move. Finished has none.
var edges = map[State][]State{
	Loading: {Playing},
	Playing: {Paused, Finished},
	Paused:  {Playing},
}

// Machine is the Loading -> Playing <-> Paused -> Finished state machine.
type Machine struct {
	mu    sync.RWMutex
	state State
}

func New() *Machine {
	return &Machine{state: Loading}
}

func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Applying reports whether snapshots should currently reach the registry.
func (m *Machine) Applying() bool {
	return m.State() == Playing
}

// Begin moves Loading to Playing. It is called for every decoded snapshot
// and reports false when the machine had already left Loading.
func (m *Machine) Begin() (Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Loading {
		return Transition{}, false
	}
	m.state = Playing
	return Transition{From: Loading, To: Playing}, true
}

func (m *Machine) Pause() (Transition, error) {
	return m.move(Paused)
}

func (m *Machine) Resume() (Transition, error) {
	return m.move(Playing)
}

func (m *Machine) Finish() (Transition, error) {
	return m.move(Finished)
}

func (m *Machine) move(to State) (Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.state
	for _, next := range edges[from] {
		if next == to {
			m.state = to
			return Transition{From: from, To: to}, nil
		}
	}
	return Transition{}, fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
}
