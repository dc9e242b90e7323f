package track

import "image"

// trackThreshold: a pixel with any channel below it counts as track.
const trackThreshold = 250

// Length estimates the driving length of a track by counting the pixels of
// the skeleton of its non-white area.
func Length(img image.Image) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	grid := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			grid[y*w+x] = r>>8 < trackThreshold || g>>8 < trackThreshold || bl>>8 < trackThreshold
		}
	}

	grid = erode(dilate(grid, w, h), w, h)
	thin(grid, w, h)

	count := 0
	for _, v := range grid {
		if v {
			count++
		}
	}
	return float64(count)
}

// dilate applies a 3x3 max filter; pixels outside the image are ignored.
func dilate(src []bool, w, h int) []bool {
	out := make([]bool, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = window(src, w, h, x, y, true)
		}
	}
	return out
}

// erode applies a 3x3 min filter; pixels outside the image are ignored.
func erode(src []bool, w, h int) []bool {
	out := make([]bool, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = !window(src, w, h, x, y, false)
		}
	}
	return out
}

// window reports whether any in-bounds 3x3 neighbour of (x,y) equals want.
func window(src []bool, w, h, x, y int, want bool) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			if src[ny*w+nx] == want {
				return true
			}
		}
	}
	return false
}

// thin reduces grid to a one pixel wide skeleton in place (Zhang-Suen).
func thin(grid []bool, w, h int) {
	at := func(x, y int) bool {
		if x < 0 || y < 0 || x >= w || y >= h {
			return false
		}
		return grid[y*w+x]
	}

	var remove []int
	for changed := true; changed; {
		changed = false
		for pass := 0; pass < 2; pass++ {
			remove = remove[:0]
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					if !grid[y*w+x] {
						continue
					}
					// P2..P9 clockwise from north
					p := [8]bool{
						at(x, y-1), at(x+1, y-1), at(x+1, y), at(x+1, y+1),
						at(x, y+1), at(x-1, y+1), at(x-1, y), at(x-1, y-1),
					}
					n, t := 0, 0
					for i := 0; i < 8; i++ {
						if p[i] {
							n++
						}
						if !p[i] && p[(i+1)%8] {
							t++
						}
					}
					if n < 2 || n > 6 || t != 1 {
						continue
					}
					if pass == 0 && (p[0] && p[2] && p[4] || p[2] && p[4] && p[6]) {
						continue
					}
					if pass == 1 && (p[0] && p[2] && p[6] || p[0] && p[4] && p[6]) {
						continue
					}
					remove = append(remove, y*w+x)
				}
			}
			for _, idx := range remove {
				grid[idx] = false
			}
			if len(remove) > 0 {
				changed = true
			}
		}
	}
}
