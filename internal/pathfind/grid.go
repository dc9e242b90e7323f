package pathfind

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/neatdrive/simulator/pkg/core"
)

var (
	// ErrEmptyGrid is returned for grids without any tiles.
	ErrEmptyGrid = errors.New("road grid is empty")
	// ErrRaggedGrid is returned when rows differ in length.
	ErrRaggedGrid = errors.New("road grid rows differ in length")
)

// RoadTile marks a drivable tile in a Grid.
const RoadTile uint8 = 1

// Grid is a row-major road map indexed as grid[y][x].
type Grid [][]uint8

// Width returns the number of columns.
func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Height returns the number of rows.
func (g Grid) Height() int { return len(g) }

// Empty reports whether the grid has no tiles.
func (g Grid) Empty() bool { return g.Width() == 0 || g.Height() == 0 }

// Validate checks the grid is non-empty and rectangular.
func (g Grid) Validate() error {
	if g.Empty() {
		return ErrEmptyGrid
	}
	w := g.Width()
	for y, row := range g {
		if len(row) != w {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrRaggedGrid, y, len(row), w)
		}
	}
	return nil
}

// InBounds reports whether t lies inside the grid.
func (g Grid) InBounds(t core.Tile) bool {
	return t.X >= 0 && t.Y >= 0 && t.Y < len(g) && t.X < len(g[t.Y])
}

// IsRoad reports whether t is inside the grid and a road tile.
func (g Grid) IsRoad(t core.Tile) bool {
	return g.InBounds(t) && g[t.Y][t.X] == RoadTile
}

// TileAt converts a pixel position to the tile containing it, clamped into
// the grid.
func (g Grid) TileAt(p core.Position2D, tileSize int) core.Tile {
	t := core.Tile{X: int(p.X) / tileSize, Y: int(p.Y) / tileSize}
	t.X = clampInt(t.X, 0, g.Width()-1)
	t.Y = clampInt(t.Y, 0, g.Height()-1)
	return t
}

// NearestRoad returns the road tile closest to t by Manhattan distance.
// Ties go to the first tile in row-major order.
func (g Grid) NearestRoad(t core.Tile) (core.Tile, bool) {
	var (
		best  core.Tile
		bestD = -1
	)
	for y, row := range g {
		for x, v := range row {
			if v != RoadTile {
				continue
			}
			d := absInt(x-t.X) + absInt(y-t.Y)
			if bestD < 0 || d < bestD {
				best, bestD = core.Tile{X: x, Y: y}, d
			}
		}
	}
	return best, bestD >= 0
}

// LoadGrid reads a road grid from a CSV file of integers, one row per line.
func LoadGrid(path string) (Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening road grid: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading road grid %s: %w", path, err)
	}

	grid := make(Grid, 0, len(records))
	for y, rec := range records {
		row := make([]uint8, len(rec))
		for x, field := range rec {
			v, err := strconv.ParseUint(strings.TrimSpace(field), 10, 8)
			if err != nil {
				return nil, fmt.Errorf("road grid %s row %d col %d: %w", path, y, x, err)
			}
			row[x] = uint8(v)
		}
		grid = append(grid, row)
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	return grid, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
