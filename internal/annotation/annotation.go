// Package annotation holds the client-side text boxes and drawings of a document.
// Nothing here changes the document bytes; baking is done by the session.
package annotation

import (
	"encoding/json"
	"fmt"
	"strings"

	"pdf-editor/internal/coords"
)

// Kind is the shape of a drawing.
type Kind string

const (
	Freehand  Kind = "freehand"
	Rectangle Kind = "rectangle"
	Circle    Kind = "circle"
	Line      Kind = "line"
	Arrow     Kind = "arrow"
)

// ParseKind validates a drawing kind name.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	switch k {
	case Freehand, Rectangle, Circle, Line, Arrow:
		return k, nil
	}
	return "", fmt.Errorf("unknown drawing kind %q", name)
}

// IsShape reports whether k is a two-point shape.
func (k Kind) IsShape() bool {
	return k == Rectangle || k == Circle || k == Line || k == Arrow
}

// Annotation is either a *Text or a *Drawing.
type Annotation interface {
	AnnotationID() string
	PageNumber() int
	// Bounds returns the document-space extent used to place the overlay.
	Bounds() (lo, hi coords.Point)
	clone() Annotation
	setID(id string)
	setPage(page int)
}

// Text is a free text box. X and Y are the baseline origin of the first
// glyph in document points.
type Text struct {
	ID       string  `json:"id"`
	Page     int     `json:"page"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Text     string  `json:"text"`
	FontSize float64 `json:"fontSize"`
	Color    string  `json:"color"`
}

func (t *Text) AnnotationID() string { return t.ID }
func (t *Text) PageNumber() int      { return t.Page }
func (t *Text) setID(id string)      { t.ID = id }
func (t *Text) setPage(page int)     { t.Page = page }

func (t *Text) clone() Annotation {
	c := *t
	return &c
}

// Bounds estimates the box from the font size; text is not measured.
func (t *Text) Bounds() (lo, hi coords.Point) {
	width := float64(len([]rune(t.Text))) * t.FontSize * 0.5
	return coords.Point{X: t.X, Y: t.Y}, coords.Point{X: t.X + width, Y: t.Y + t.FontSize}
}

// Drawing is a freehand stroke or a two-point shape in document points.
type Drawing struct {
	ID          string         `json:"id"`
	Page        int            `json:"page"`
	Kind        Kind           `json:"kind"`
	Path        []coords.Point `json:"path"`
	Color       string         `json:"color"`
	StrokeWidth float64        `json:"strokeWidth"`
}

func (d *Drawing) AnnotationID() string { return d.ID }
func (d *Drawing) PageNumber() int      { return d.Page }
func (d *Drawing) setID(id string)      { d.ID = id }
func (d *Drawing) setPage(page int)     { d.Page = page }

func (d *Drawing) clone() Annotation {
	c := *d
	c.Path = append([]coords.Point(nil), d.Path...)
	return &c
}

// Bounds is the bounding box of the path.
func (d *Drawing) Bounds() (lo, hi coords.Point) {
	if len(d.Path) == 0 {
		return
	}
	lo, hi = d.Path[0], d.Path[0]
	for _, p := range d.Path[1:] {
		lo.X, lo.Y = min(lo.X, p.X), min(lo.Y, p.Y)
		hi.X, hi.Y = max(hi.X, p.X), max(hi.Y, p.Y)
	}
	return lo, hi
}

// validate checks the path length rule for the kind.
func (d *Drawing) validate() error {
	if _, err := ParseKind(string(d.Kind)); err != nil {
		return err
	}
	if d.Kind.IsShape() && len(d.Path) != 2 {
		return fmt.Errorf("%s needs exactly 2 points, got %d", d.Kind, len(d.Path))
	}
	if len(d.Path) < 1 {
		return fmt.Errorf("%s needs at least 1 point", d.Kind)
	}
	return nil
}

// envelope is the JSON form with an explicit type tag.
type envelope struct {
	Type    string   `json:"type"`
	Text    *Text    `json:"text,omitempty"`
	Drawing *Drawing `json:"drawing,omitempty"`
}

// Marshal encodes a as tagged JSON for the frontend.
func Marshal(a Annotation) ([]byte, error) {
	switch v := a.(type) {
	case *Text:
		return json.Marshal(envelope{Type: "text", Text: v})
	case *Drawing:
		return json.Marshal(envelope{Type: "drawing", Drawing: v})
	default:
		return nil, fmt.Errorf("unknown annotation type %T", a)
	}
}

// Unmarshal decodes data written by Marshal.
func Unmarshal(data []byte) (Annotation, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch {
	case env.Type == "text" && env.Text != nil:
		return env.Text, nil
	case env.Type == "drawing" && env.Drawing != nil:
		return env.Drawing, nil
	default:
		return nil, fmt.Errorf("unknown annotation type %q", env.Type)
	}
}
