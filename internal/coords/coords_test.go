package coords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"seehuhn.de/go/geom/rect"
)

var letter = Size{Width: 612, Height: 792}

func TestToViewport(t *testing.T) {
	v := ToViewport(Point{X: 100, Y: 700}, letter, 2)
	assert.InDelta(t, 200, v.X, 1e-9)
	assert.InDelta(t, 184, v.Y, 1e-9)

	// bottom-left corner lands on the bottom edge of the bitmap
	v = ToViewport(Point{}, letter, 1.5)
	assert.InDelta(t, 0, v.X, 1e-9)
	assert.InDelta(t, 792*1.5, v.Y, 1e-9)
}

func TestRoundTrip(t *testing.T) {
	zooms := []float64{0.25, 0.5, 0.75, 1, 1.1, 1.333, 2, 3.7, 4}
	points := []Point{
		{X: 0, Y: 0},
		{X: 612, Y: 792},
		{X: 0.1, Y: 791.9},
		{X: 306.123456, Y: 17.000001},
		{X: 611.999, Y: 0.001},
	}
	for i := 0; i < 40; i++ {
		points = append(points, Point{X: float64(i) * 15.3, Y: float64(i) * 19.7})
	}

	for _, zoom := range zooms {
		for _, p := range points {
			got := ToDocument(ToViewport(p, letter, zoom), letter, zoom)
			assert.InDeltaf(t, p.X, got.X, 1e-6, "x at zoom %v for %v", zoom, p)
			assert.InDeltaf(t, p.Y, got.Y, 1e-6, "y at zoom %v for %v", zoom, p)
		}
	}
}

func TestToDocumentClamps(t *testing.T) {
	tests := []struct {
		name string
		in   Point
		want Point
	}{
		{"left of page", Point{X: -20, Y: 100}, Point{X: 0, Y: 692}},
		{"right of page", Point{X: 1000, Y: 0}, Point{X: 612, Y: 792}},
		{"below page", Point{X: 10, Y: 900}, Point{X: 10, Y: 0}},
		{"above page", Point{X: 10, Y: -5}, Point{X: 10, Y: 792}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDocument(tt.in, letter, 1)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
		})
	}
}

func TestRenderedAndPixelSize(t *testing.T) {
	assert.Equal(t, Size{Width: 918, Height: 1188}, RenderedSize(letter, 1.5))

	w, h := PixelSize(Size{Width: 595.28, Height: 841.89}, 1)
	assert.Equal(t, 595, w)
	assert.Equal(t, 842, h)

	w, h = PixelSize(Size{Width: 1, Height: 1}, 0.25)
	assert.Equal(t, 1, w, "pixel size never collapses to zero")
	assert.Equal(t, 1, h)
}

func TestRectToDocument(t *testing.T) {
	r := RectToDocument(Point{X: 200, Y: 400}, Point{X: 100, Y: 300}, letter, 2)
	assert.Equal(t, rect.Rect{LLx: 50, LLy: 592, URx: 100, URy: 642}, r)
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5, Distance(Point{X: 1, Y: 1}, Point{X: 4, Y: 5}), 1e-12)
	assert.Zero(t, Distance(Point{X: 3, Y: 3}, Point{X: 3, Y: 3}))
}

func TestClampZoom(t *testing.T) {
	assert.Equal(t, MinZoom, ClampZoom(0.01))
	assert.Equal(t, MaxZoom, ClampZoom(10))
	assert.Equal(t, 1.25, ClampZoom(1.25))
	assert.False(t, Size{Width: 10, Height: 10}.Empty())
	assert.True(t, Size{Width: 0, Height: 10}.Empty())
}
