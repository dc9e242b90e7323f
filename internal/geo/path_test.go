package geo

import (
	"testing"

	"github.com/neatdrive/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathLineString_RoundTrip(t *testing.T) {
	path := []core.Position2D{{X: 100.5, Y: 200.25}, {X: 103.5, Y: 204.25}, {X: 110, Y: 204.25}}

	ls := PathLineString(path)
	require.False(t, ls.IsEmpty())
	assert.Equal(t, path, PathFromLineString(ls))
}

func TestPathLineString_TooShort(t *testing.T) {
	assert.True(t, PathLineString(nil).IsEmpty())
	assert.True(t, PathLineString([]core.Position2D{{X: 1, Y: 2}}).IsEmpty())
	assert.Empty(t, PathFromLineString(PathLineString(nil)))
}

func TestPathLength(t *testing.T) {
	path := []core.Position2D{{X: 0, Y: 0}, {X: 3, Y: 4}, {X: 3, Y: 14}}
	assert.InDelta(t, 15.0, PathLength(path), 1e-9)
	assert.Zero(t, PathLength(path[:1]))
}

func TestBounds(t *testing.T) {
	_, _, ok := Bounds(nil)
	assert.False(t, ok)

	lo, hi, ok := Bounds([]core.Position2D{{X: 5, Y: 1}, {X: -2, Y: 8}, {X: 3, Y: 3}})
	require.True(t, ok)
	assert.Equal(t, core.Position2D{X: -2, Y: 1}, lo)
	assert.Equal(t, core.Position2D{X: 5, Y: 8}, hi)
}
