package pathfind

import (
	"image"
	"image/color"

	"github.com/neatdrive/simulator/internal/track"
	"github.com/neatdrive/simulator/pkg/core"
)

// Rasterize paints every path tile as a tileSize square in c. An empty
// result leaves the mask untouched.
func Rasterize(res Result, mask *track.Mask, tileSize int, c color.RGBA) {
	for _, t := range res.Path {
		x, y := t.X*tileSize, t.Y*tileSize
		mask.FillRect(image.Rect(x, y, x+tileSize, y+tileSize), c)
	}
}

// Build searches the grid and returns a mask sized to it where only the
// route is drivable. ok is false when no route exists; the mask is nil then.
func Build(grid Grid, start, goal core.Position2D, tileSize int) (*track.Mask, Result, bool) {
	res := Find(grid, start, goal, tileSize)
	if !res.Found() {
		return nil, res, false
	}

	mask, err := track.NewMask(grid.Width()*tileSize, grid.Height()*tileSize, track.NonDrivable)
	if err != nil {
		return nil, res, false
	}
	Rasterize(res, mask, tileSize, track.Road)
	return mask, res, true
}
