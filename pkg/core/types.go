package core

import (
	"fmt"
	"strings"
)

// Color is the team/entity color the simulation assigns.
type Color uint8

const (
	Red Color = iota
	Green
	Blue
	Yellow
	Grey
)

var colorNames = [...]string{"Red", "Green", "Blue", "Yellow", "Grey"}

func (c Color) String() string {
	if int(c) < len(colorNames) {
		return colorNames[c]
	}
	return fmt.Sprintf("Color(%d)", uint8(c))
}

// ParseColor maps a wire name to a Color, ignoring case. Unknown names are
// an error.
func ParseColor(s string) (Color, error) {
	for i, name := range colorNames {
		if strings.EqualFold(name, s) {
			return Color(i), nil
		}
	}
	return 0, fmt.Errorf("unknown color %q", s)
}

// MarshalText encodes the color as its name.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ItemType classifies items. Flag is the only kind the simulation emits.
type ItemType uint8

const (
	Flag ItemType = iota
)

func (t ItemType) String() string {
	if t == Flag {
		return "Flag"
	}
	return fmt.Sprintf("ItemType(%d)", uint8(t))
}

// ParseItemType maps a wire name to an ItemType.
func ParseItemType(s string) (ItemType, error) {
	if strings.EqualFold(s, "Flag") {
		return Flag, nil
	}
	return 0, fmt.Errorf("unknown item type %q", s)
}

func (t ItemType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Stance is the agent's body posture.
type Stance uint8

const (
	Standing Stance = iota
	Crouching
	Creeping
)

var stanceNames = [...]string{"Standing", "Crouching", "Creeping"}

func (s Stance) String() string {
	if int(s) < len(stanceNames) {
		return stanceNames[s]
	}
	return fmt.Sprintf("Stance(%d)", uint8(s))
}

// ParseStance maps a wire name to a Stance.
func ParseStance(s string) (Stance, error) {
	for i, name := range stanceNames {
		if strings.EqualFold(name, s) {
			return Stance(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stance %q", s)
}

func (s Stance) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// GameMode is announced by the simulation alongside the map.
type GameMode uint8

const (
	CaptureTheFlag GameMode = iota
	TeamDeathmatch
)

var gameModeNames = [...]string{"CaptureTheFlag", "TeamDeathmatch"}

func (m GameMode) String() string {
	if int(m) < len(gameModeNames) {
		return gameModeNames[m]
	}
	return fmt.Sprintf("GameMode(%d)", uint8(m))
}

// ParseGameMode maps a wire name to a GameMode.
func ParseGameMode(s string) (GameMode, error) {
	for i, name := range gameModeNames {
		if strings.EqualFold(name, s) {
			return GameMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown game mode %q", s)
}

func (m GameMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
