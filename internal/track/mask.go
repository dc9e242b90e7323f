// Package track holds the raster mask vehicles drive on.
package track

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
)

// ErrEmptyTrack is returned when a track image has no pixels.
var ErrEmptyTrack = errors.New("track has zero size")

// Colors used by track masks.
var (
	NonDrivable = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Road        = color.RGBA{A: 255}
)

// Mask is a read-only (during simulation) raster where NonDrivable pixels
// stop vehicles and sensor rays.
type Mask struct {
	img *image.RGBA
}

// NewMask creates a w x h mask filled with c.
func NewMask(w, h int, c color.RGBA) (*Mask, error) {
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyTrack
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return &Mask{img: img}, nil
}

// FromImage copies src into a mask anchored at (0,0).
func FromImage(src image.Image) (*Mask, error) {
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyTrack
	}
	img := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), src, b.Min, draw.Src)
	return &Mask{img: img}, nil
}

// Width returns the mask width in pixels.
func (m *Mask) Width() int { return m.img.Rect.Dx() }

// Height returns the mask height in pixels.
func (m *Mask) Height() int { return m.img.Rect.Dy() }

// InBounds reports whether (x,y) lies in [0,w) x [0,h).
func (m *Mask) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width() && y < m.Height()
}

// At returns the pixel color at (x,y). Callers must check InBounds.
func (m *Mask) At(x, y int) color.RGBA {
	return m.img.RGBAAt(x, y)
}

// Blocked reports whether (x,y) is out of bounds or non-drivable.
func (m *Mask) Blocked(x, y int) bool {
	return !m.InBounds(x, y) || m.At(x, y) == NonDrivable
}

// Drivable reports whether a vehicle may occupy (x,y).
func (m *Mask) Drivable(x, y int) bool {
	return !m.Blocked(x, y)
}

// Set paints a single pixel.
func (m *Mask) Set(x, y int, c color.RGBA) {
	m.img.SetRGBA(x, y, c)
}

// FillRect paints r (clipped to the mask) with c.
func (m *Mask) FillRect(r image.Rectangle, c color.RGBA) {
	draw.Draw(m.img, r.Intersect(m.img.Rect), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// StrokeBorder paints a frame of the given thickness around the mask edge.
func (m *Mask) StrokeBorder(thickness int, c color.RGBA) {
	w, h := m.Width(), m.Height()
	m.FillRect(image.Rect(0, 0, w, thickness), c)
	m.FillRect(image.Rect(0, h-thickness, w, h), c)
	m.FillRect(image.Rect(0, 0, thickness, h), c)
	m.FillRect(image.Rect(w-thickness, 0, w, h), c)
}

// Image exposes the underlying raster, e.g. for PNG export.
func (m *Mask) Image() *image.RGBA { return m.img }

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	img := image.NewRGBA(m.img.Rect)
	copy(img.Pix, m.img.Pix)
	return &Mask{img: img}
}
