package geo

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
)

// GRID POINTS
// Grid cells are stored as plain XY points with no SRID; the simulation grid
// is not geographic. Geometry data is stored in WKB so SQLite can hold it as
// a blob and scan it back without spatial extensions.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// PointFromGrid creates a point for a grid cell
func PointFromGrid(x, y int) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: float64(x), Y: float64(y)},
		Type: geom.DimXY,
	})
}

// GridFromPoint returns the grid cell of a point. Empty points report false.
func GridFromPoint(p geom.Point) (x, y int, ok bool) {
	coords, ok := p.Coordinates()
	if !ok {
		return 0, 0, false
	}
	return int(coords.XY.X), int(coords.XY.Y), true
}

// PointFromString parses "x,y" into a grid point.
func PointFromString(coords string) (geom.Point, error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 2 {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	return PointFromGrid(x, y), nil
}

// FlipY converts a simulation y coordinate (origin bottom-left) to a row
// index in a map file (origin top-left).
func FlipY(y, height int) int {
	return height - 1 - y
}
