package track

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/png"
	"os"

	"github.com/anthonynsimon/bild/transform"
)

// BorderThickness is the width of the frame drawn around a loaded track.
const BorderThickness = 2

// Loaded is a track image fitted to the simulation canvas.
type Loaded struct {
	Mask   *Mask
	Length float64
}

// Load decodes a track image, scales it to fit a canvasW x canvasH white
// canvas keeping its aspect ratio, centers it and frames it with a border.
// Length is measured on the unscaled source image.
func Load(path string, canvasW, canvasH int) (*Loaded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode track image %s: %w", path, err)
	}

	mask, err := Fit(src, canvasW, canvasH)
	if err != nil {
		return nil, err
	}

	return &Loaded{Mask: mask, Length: Length(src)}, nil
}

// Fit places src on a white canvas the way Load does.
func Fit(src image.Image, canvasW, canvasH int) (*Mask, error) {
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyTrack
	}

	canvas, err := NewMask(canvasW, canvasH, NonDrivable)
	if err != nil {
		return nil, err
	}

	scale := min(float64(canvasW)/float64(b.Dx()), float64(canvasH)/float64(b.Dy()))
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyTrack
	}

	// nearest neighbour keeps the collision color exact along edges
	scaled := transform.Resize(src, w, h, transform.NearestNeighbor)

	offset := image.Pt((canvasW-w)/2, (canvasH-h)/2)
	draw.Draw(canvas.img, image.Rectangle{Min: offset, Max: offset.Add(image.Pt(w, h))}, scaled, image.Point{}, draw.Src)
	canvas.StrokeBorder(BorderThickness, Road)

	return canvas, nil
}
