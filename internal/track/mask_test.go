package track

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMask_ZeroSize(t *testing.T) {
	_, err := NewMask(0, 10, Road)
	require.ErrorIs(t, err, ErrEmptyTrack)

	_, err = FromImage(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	require.ErrorIs(t, err, ErrEmptyTrack)
}

func TestMask_BoundsAreHalfOpen(t *testing.T) {
	m, err := NewMask(20, 10, Road)
	require.NoError(t, err)

	assert.True(t, m.InBounds(0, 0))
	assert.True(t, m.InBounds(19, 9))
	assert.False(t, m.InBounds(20, 9))
	assert.False(t, m.InBounds(19, 10))
	assert.False(t, m.InBounds(-1, 0))

	assert.False(t, m.Blocked(5, 5))
	assert.True(t, m.Blocked(20, 5), "out of bounds counts as blocked")

	m.Set(5, 5, NonDrivable)
	assert.True(t, m.Blocked(5, 5))
}

func TestMask_CloneIsIndependent(t *testing.T) {
	m, err := NewMask(4, 4, Road)
	require.NoError(t, err)

	c := m.Clone()
	c.FillRect(image.Rect(0, 0, 4, 4), NonDrivable)

	assert.Equal(t, Road, m.At(1, 1))
	assert.Equal(t, NonDrivable, c.At(1, 1))
}

func TestFit_CentersAndFrames(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := range src.Pix {
		src.Pix[i] = 0
	}
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 255
	}

	m, err := Fit(src, 100, 50)
	require.NoError(t, err)

	assert.Equal(t, 100, m.Width())
	assert.Equal(t, 50, m.Height())
	assert.Equal(t, Road, m.At(50, 25), "scaled track lands in the middle")
	assert.Equal(t, NonDrivable, m.At(10, 25), "left margin stays white")
	assert.Equal(t, Road, m.At(0, 0), "border")
	assert.Equal(t, Road, m.At(99, 49), "border")
}

func TestLength_ThinLineKeepsItsLength(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 10))
	fill(img, color.RGBA{255, 255, 255, 255})
	for x := 5; x < 35; x++ {
		img.SetRGBA(x, 5, color.RGBA{A: 255})
	}

	assert.Equal(t, 30.0, Length(img))
}

func TestLength_ThickBarCollapsesToCenterline(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 80, 20))
	fill(img, color.RGBA{255, 255, 255, 255})
	for y := 8; y < 13; y++ {
		for x := 10; x < 70; x++ {
			img.SetRGBA(x, y, color.RGBA{A: 255})
		}
	}

	got := Length(img)
	assert.Greater(t, got, 40.0)
	assert.LessOrEqual(t, got, 60.0)
}

func TestLength_BlankImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	fill(img, color.RGBA{255, 255, 255, 255})
	assert.Zero(t, Length(img))
}

func fill(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}
