// Package gridmap parses the simulation's map files: rows of ';'-separated
// field codes.
package gridmap

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Field is one cell of the map.
type Field uint8

const (
	Floor Field = iota
	Wall
	Hill
	Ditch
	Water
	ExplosiveBarrel
	FlagStandRed
	FlagStandYellow
)

var codes = map[string]Field{
	"0": Floor,
	"1": Wall,
	"2": Hill,
	"3": Ditch,
	"4": Water,
	"5": ExplosiveBarrel,
	"7": FlagStandRed,
	"8": FlagStandYellow,
}

// Map is a parsed grid, indexed [y][x].
type Map struct {
	rows [][]Field
}

// Load reads and parses the map file at path.
func Load(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse reads one row per line. A code outside the known set is an error.
func Parse(r io.Reader) (*Map, error) {
	var rows [][]Field
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSuffix(sc.Text(), "\r")
		parts := strings.Split(text, ";")
		row := make([]Field, len(parts))
		for i, code := range parts {
			f, ok := codes[code]
			if !ok {
				return nil, fmt.Errorf("line %d: unknown map field %q", line, code)
			}
			row[i] = f
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &Map{rows: rows}, nil
}

// Size returns width (cells in the first row) and height (rows).
func (m *Map) Size() (width, height int) {
	if len(m.rows) == 0 {
		return 0, 0
	}
	return len(m.rows[0]), len(m.rows)
}

// At returns the field at x, y and whether it is inside the map.
func (m *Map) At(x, y int) (Field, bool) {
	if y < 0 || y >= len(m.rows) || x < 0 || x >= len(m.rows[y]) {
		return 0, false
	}
	return m.rows[y][x], true
}

// String renders the map as text, one line per row.
func (m *Map) String() string {
	var b strings.Builder
	for _, row := range m.rows {
		for _, f := range row {
			switch f {
			case Floor:
				b.WriteByte(' ')
			case Wall:
				b.WriteByte('H')
			case Hill:
				b.WriteByte('^')
			case Ditch:
				b.WriteByte('_')
			default:
				b.WriteByte('=')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
