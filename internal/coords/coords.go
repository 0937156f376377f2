// Package coords maps points between document space and viewport space.
//
// Document space is measured in PDF points with the origin at the bottom-left
// corner of the page. Viewport space is measured in pixels with the origin at
// the top-left corner of the rendered page, scaled by the zoom factor.
package coords

import (
	"math"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// Point is a 2D point in either space.
type Point = vec.Vec2

// Zoom limits accepted by the editor.
const (
	MinZoom = 0.25
	MaxZoom = 4.0
)

// Size is a page size. Intrinsic sizes are in points, rendered sizes in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether s has no area.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// ToViewport maps a document point onto the rendered page.
func ToViewport(p Point, page Size, zoom float64) Point {
	return Point{
		X: p.X * zoom,
		Y: (page.Height - p.Y) * zoom,
	}
}

// ToDocument maps a viewport point back to document space, clamped to the page.
func ToDocument(v Point, page Size, zoom float64) Point {
	if zoom <= 0 {
		zoom = 1
	}
	return Point{
		X: clamp(v.X/zoom, 0, page.Width),
		Y: clamp(page.Height-v.Y/zoom, 0, page.Height),
	}
}

// RenderedSize is the on-screen size of a page at zoom. Overlays are sized from
// this value, never from a measured bitmap.
func RenderedSize(page Size, zoom float64) Size {
	return Size{Width: page.Width * zoom, Height: page.Height * zoom}
}

// PixelSize is RenderedSize rounded to whole pixels, the size of the bitmap the
// rasterizer is asked for.
func PixelSize(page Size, zoom float64) (w, h int) {
	r := RenderedSize(page, zoom)
	w = int(math.Round(r.Width))
	h = int(math.Round(r.Height))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// RectToDocument converts two viewport corners, in any order, to a normalized
// document rectangle.
func RectToDocument(a, b Point, page Size, zoom float64) rect.Rect {
	p := ToDocument(a, page, zoom)
	q := ToDocument(b, page, zoom)
	return rect.Rect{
		LLx: math.Min(p.X, q.X),
		LLy: math.Min(p.Y, q.Y),
		URx: math.Max(p.X, q.X),
		URy: math.Max(p.Y, q.Y),
	}
}

// Distance is the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return b.Sub(a).Length()
}

// ClampZoom limits zoom to [MinZoom, MaxZoom].
func ClampZoom(zoom float64) float64 {
	if math.IsNaN(zoom) {
		return 1
	}
	return clamp(zoom, MinZoom, MaxZoom)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
