// Package geo converts vehicle path histories to simplefeatures geometries
// for storage and analysis. Coordinates are track pixels.
package geo

import (
	"github.com/neatdrive/simulator/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// PathLineString builds a 2D LineString from a path. Paths with fewer than
// two points yield an empty LineString.
func PathLineString(path []core.Position2D) geom.LineString {
	if len(path) < 2 {
		return geom.LineString{}
	}
	flat := make([]float64, 0, len(path)*2)
	for _, p := range path {
		flat = append(flat, p.X, p.Y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}

// PathFromLineString is the inverse of PathLineString.
func PathFromLineString(ls geom.LineString) []core.Position2D {
	seq := ls.Coordinates()
	path := make([]core.Position2D, seq.Length())
	for i := range path {
		xy := seq.GetXY(i)
		path[i] = core.Position2D{X: xy.X, Y: xy.Y}
	}
	return path
}

// PathLength returns the Euclidean length of the polyline through path.
func PathLength(path []core.Position2D) float64 {
	return PathLineString(path).Length()
}

// Bounds returns the bounding box of a path, or false for an empty path.
func Bounds(path []core.Position2D) (lo, hi core.Position2D, ok bool) {
	if len(path) == 0 {
		return lo, hi, false
	}
	lo, hi = path[0], path[0]
	for _, p := range path[1:] {
		if p.X < lo.X {
			lo.X = p.X
		}
		if p.Y < lo.Y {
			lo.Y = p.Y
		}
		if p.X > hi.X {
			hi.X = p.X
		}
		if p.Y > hi.Y {
			hi.Y = p.Y
		}
	}
	return lo, hi, true
}
