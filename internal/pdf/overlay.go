package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/vector"
	"seehuhn.de/go/geom/rect"

	"pdf-editor/internal/annotation"
	"pdf-editor/internal/coords"
)

// Overlay rendering parameters.
const (
	// OverlayScale is the overlay bitmap resolution in pixels per point.
	OverlayScale = 2.0
	// HighlightOpacity is applied when a highlight overlay is stamped.
	HighlightOpacity = 0.35
	// circleSegments approximates circles and round joins.
	circleSegments = 48
	// arrowWing is the angle between the shaft and each head stroke.
	arrowWing = math.Pi / 6
)

// Overlay rasterizes highlights and drawings for one page into a transparent
// bitmap that is later stamped onto the page as an image.
type Overlay struct {
	page  coords.Size
	scale float64
	img   *image.RGBA
	z     *vector.Rasterizer
	// pending is the pixel extent of the path in z, dirty the extent of
	// everything painted so far
	pending image.Rectangle
	dirty   image.Rectangle
}

// NewOverlay returns an empty overlay for a page of the given size in points.
func NewOverlay(page coords.Size, scale float64) *Overlay {
	if scale <= 0 {
		scale = OverlayScale
	}
	w, h := coords.PixelSize(page, scale)
	z := vector.NewRasterizer(w, h)
	z.DrawOp = draw.Over
	return &Overlay{
		page:  page,
		scale: scale,
		img:   image.NewRGBA(image.Rect(0, 0, w, h)),
		z:     z,
	}
}

// Image returns the overlay bitmap.
func (o *Overlay) Image() *image.RGBA {
	return o.img
}

// Empty reports whether nothing has been painted.
func (o *Overlay) Empty() bool {
	return o.dirty.Empty()
}

// Fill paints a document-space rectangle.
func (o *Overlay) Fill(area rect.Rect, c color.Color) {
	a := o.px(coords.Point{X: area.LLx, Y: area.LLy})
	b := o.px(coords.Point{X: area.URx, Y: area.URy})
	o.polygon(a, coords.Point{X: b.X, Y: a.Y}, b, coords.Point{X: a.X, Y: b.Y})
	o.flush(c)
}

// Draw strokes a drawing annotation. Circles are centred on the first point
// and pass through the second.
func (o *Overlay) Draw(d *annotation.Drawing) error {
	c, err := ParseColor(d.Color)
	if err != nil {
		return err
	}
	width := d.StrokeWidth
	if width <= 0 {
		width = 1
	}
	if len(d.Path) == 0 {
		return fmt.Errorf("%s has no points", d.Kind)
	}
	if d.Kind.IsShape() && len(d.Path) < 2 {
		return fmt.Errorf("%s needs 2 points", d.Kind)
	}

	switch d.Kind {
	case annotation.Freehand:
		o.polyline(d.Path, width, false)
	case annotation.Line:
		o.polyline(d.Path[:2], width, false)
	case annotation.Rectangle:
		a, b := d.Path[0], d.Path[1]
		o.polyline([]coords.Point{a, {X: b.X, Y: a.Y}, b, {X: a.X, Y: b.Y}}, width, true)
	case annotation.Circle:
		center := d.Path[0]
		r := coords.Distance(center, d.Path[1])
		pts := make([]coords.Point, circleSegments)
		for i := range pts {
			t := 2 * math.Pi * float64(i) / circleSegments
			pts[i] = coords.Point{X: center.X + r*math.Cos(t), Y: center.Y + r*math.Sin(t)}
		}
		o.polyline(pts, width, true)
	case annotation.Arrow:
		start, tip := d.Path[0], d.Path[1]
		o.polyline([]coords.Point{start, tip}, width, false)
		size := 6 + width*2
		angle := math.Atan2(tip.Y-start.Y, tip.X-start.X)
		left := coords.Point{X: tip.X - size*math.Cos(angle-arrowWing), Y: tip.Y - size*math.Sin(angle-arrowWing)}
		right := coords.Point{X: tip.X - size*math.Cos(angle+arrowWing), Y: tip.Y - size*math.Sin(angle+arrowWing)}
		o.polyline([]coords.Point{left, tip, right}, width, false)
	default:
		return fmt.Errorf("unknown drawing kind %q", d.Kind)
	}
	o.flush(c)
	return nil
}

// Encode crops the overlay to the painted area and encodes it as PNG. origin
// is the document-space lower-left corner of the crop.
func (o *Overlay) Encode() (data []byte, origin coords.Point, err error) {
	if o.Empty() {
		return nil, coords.Point{}, fmt.Errorf("overlay is empty")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, o.img.SubImage(o.dirty)); err != nil {
		return nil, coords.Point{}, fmt.Errorf("failed to encode overlay: %w", err)
	}
	origin = coords.Point{
		X: float64(o.dirty.Min.X) / o.scale,
		Y: o.page.Height - float64(o.dirty.Max.Y)/o.scale,
	}
	return buf.Bytes(), origin, nil
}

// px maps a document point to overlay pixels.
func (o *Overlay) px(p coords.Point) coords.Point {
	return coords.ToViewport(p, o.page, o.scale)
}

// polyline strokes pts with round joins and caps. Every piece is emitted with
// the same winding so overlapping pieces never cancel out.
func (o *Overlay) polyline(pts []coords.Point, width float64, closed bool) {
	hw := width * o.scale / 2
	px := make([]coords.Point, len(pts))
	for i, p := range pts {
		px[i] = o.px(p)
	}
	for i, p := range px {
		o.disc(p, hw)
		if i > 0 {
			o.segment(px[i-1], p, hw)
		}
	}
	if closed && len(px) > 2 {
		o.segment(px[len(px)-1], px[0], hw)
	}
}

func (o *Overlay) segment(a, b coords.Point, hw float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*hw, dx/l*hw
	o.polygon(
		coords.Point{X: a.X + nx, Y: a.Y + ny},
		coords.Point{X: b.X + nx, Y: b.Y + ny},
		coords.Point{X: b.X - nx, Y: b.Y - ny},
		coords.Point{X: a.X - nx, Y: a.Y - ny},
	)
}

func (o *Overlay) disc(c coords.Point, r float64) {
	pts := make([]coords.Point, circleSegments)
	for i := range pts {
		t := 2 * math.Pi * float64(i) / circleSegments
		pts[i] = coords.Point{X: c.X + r*math.Cos(t), Y: c.Y + r*math.Sin(t)}
	}
	o.polygon(pts...)
}

// polygon adds a closed path to the rasterizer, clockwise.
func (o *Overlay) polygon(pts ...coords.Point) {
	if len(pts) < 3 {
		return
	}
	area := 0.0
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		area += p.X*q.Y - q.X*p.Y
	}
	if area > 0 {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}

	lo, hi := pts[0], pts[0]
	o.z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		o.z.LineTo(float32(p.X), float32(p.Y))
		lo.X, lo.Y = min(lo.X, p.X), min(lo.Y, p.Y)
		hi.X, hi.Y = max(hi.X, p.X), max(hi.Y, p.Y)
	}
	o.z.ClosePath()

	box := image.Rect(int(math.Floor(lo.X)), int(math.Floor(lo.Y)), int(math.Ceil(hi.X)), int(math.Ceil(hi.Y)))
	o.pending = o.pending.Union(box)
}

// flush paints the accumulated path in c and clears the rasterizer.
func (o *Overlay) flush(c color.Color) {
	r := o.pending.Intersect(o.img.Bounds())
	if !r.Empty() {
		o.z.Draw(o.img, r, image.NewUniform(c), image.Point{})
		o.dirty = o.dirty.Union(r)
	}
	o.pending = image.Rectangle{}
	b := o.img.Bounds()
	o.z.Reset(b.Dx(), b.Dy())
	o.z.DrawOp = draw.Over
}

// ParseColor parses "#rgb" or "#rrggbb" into an opaque color.
func ParseColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
