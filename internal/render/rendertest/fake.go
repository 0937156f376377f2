// Package rendertest provides an in-memory Rasterizer for tests.
//
// Documents use a small text format instead of PDF: a "FAKEPDF" header line
// followed by one "width height label" line per page.
package rendertest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"pdf-editor/internal/coords"
	"pdf-editor/internal/render"
)

const header = "FAKEPDF"

// ErrDecode is returned by Load for input that is not a fake document.
var ErrDecode = errors.New("rendertest: not a document")

// Page is one page of a fake document.
type Page struct {
	Size  coords.Size
	Label string
}

// Encode serializes pages.
func Encode(pages []Page) []byte {
	var b bytes.Buffer
	b.WriteString(header + "\n")
	for _, p := range pages {
		label := p.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(&b, "%g %g %s\n", p.Size.Width, p.Size.Height, label)
	}
	return b.Bytes()
}

// Letter returns n US letter pages labelled "p1".."pn".
func Letter(n int) []byte {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Size: coords.Size{Width: 612, Height: 792}, Label: fmt.Sprintf("p%d", i+1)}
	}
	return Encode(pages)
}

// Decode parses data written by Encode.
func Decode(data []byte) ([]Page, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	if !sc.Scan() || sc.Text() != header {
		return nil, ErrDecode
	}
	var pages []Page
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var p Page
		if _, err := fmt.Sscanf(line, "%g %g %s", &p.Size.Width, &p.Size.Height, &p.Label); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		pages = append(pages, p)
	}
	if len(pages) == 0 {
		return nil, ErrDecode
	}
	return pages, nil
}

// Doc is the handle returned by Rasterizer.Load.
type Doc struct {
	ID    int
	Pages []Page

	mu       sync.Mutex
	disposed bool
}

// PageCount implements render.Handle.
func (d *Doc) PageCount() int { return len(d.Pages) }

// Disposed reports whether Dispose was called for d.
func (d *Doc) Disposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

// Rasterizer is a render.Rasterizer over fake documents.
type Rasterizer struct {
	// BeforeRender, when set, runs inside RenderPage before the bitmap is
	// produced. call counts RenderPage calls from 1. A non-nil error fails
	// the render.
	BeforeRender func(ctx context.Context, page, call int) error
	// FailPages makes RenderPage fail for the listed pages.
	FailPages map[int]error

	mu        sync.Mutex
	nextID    int
	calls     int
	sizeCalls int
	live      map[int]*Doc
	disposed  int
}

// New returns an empty fake rasterizer.
func New() *Rasterizer {
	return &Rasterizer{live: make(map[int]*Doc)}
}

// Load implements render.Rasterizer.
func (r *Rasterizer) Load(ctx context.Context, data []byte) (render.Handle, error) {
	pages, err := Decode(data)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	d := &Doc{ID: r.nextID, Pages: pages}
	r.live[d.ID] = d
	return d, nil
}

// PageSize implements render.Rasterizer.
func (r *Rasterizer) PageSize(ctx context.Context, h render.Handle, page int) (coords.Size, error) {
	d, err := r.doc(h, page)
	if err != nil {
		return coords.Size{}, err
	}
	r.mu.Lock()
	r.sizeCalls++
	r.mu.Unlock()
	return d.Pages[page-1].Size, nil
}

// RenderPage implements render.Rasterizer.
func (r *Rasterizer) RenderPage(ctx context.Context, h render.Handle, page int, scale float64) (*image.RGBA, error) {
	d, err := r.doc(h, page)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.calls++
	call := r.calls
	hook := r.BeforeRender
	failure := r.FailPages[page]
	r.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, page, call); err != nil {
			return nil, err
		}
	}
	if failure != nil {
		return nil, failure
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, hgt := coords.PixelSize(d.Pages[page-1].Size, scale)
	return image.NewRGBA(image.Rect(0, 0, w, hgt)), nil
}

// Dispose implements render.Rasterizer.
func (r *Rasterizer) Dispose(h render.Handle) error {
	d, ok := h.(*Doc)
	if !ok {
		return fmt.Errorf("rendertest: foreign handle %T", h)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return fmt.Errorf("rendertest: document %d disposed twice", d.ID)
	}
	d.disposed = true

	r.mu.Lock()
	delete(r.live, d.ID)
	r.disposed++
	r.mu.Unlock()
	return nil
}

func (r *Rasterizer) doc(h render.Handle, page int) (*Doc, error) {
	d, ok := h.(*Doc)
	if !ok {
		return nil, fmt.Errorf("rendertest: foreign handle %T", h)
	}
	if d.Disposed() {
		return nil, fmt.Errorf("rendertest: document %d used after dispose", d.ID)
	}
	if page < 1 || page > len(d.Pages) {
		return nil, fmt.Errorf("rendertest: page %d out of range", page)
	}
	return d, nil
}

// Live returns the number of loaded, undisposed documents.
func (r *Rasterizer) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// RenderCalls returns the number of RenderPage calls.
func (r *Rasterizer) RenderCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// SizeCalls returns the number of PageSize calls.
func (r *Rasterizer) SizeCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sizeCalls
}

// Recorder is a render.Surface that keeps everything it receives.
type Recorder struct {
	mu     sync.Mutex
	frames []render.Frame
	fails  map[int]error
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{fails: make(map[int]error)}
}

// Present implements render.Surface.
func (s *Recorder) Present(f render.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

// Fail implements render.Surface.
func (s *Recorder) Fail(page int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[page] = err
}

// Frames returns the presented frames in order.
func (s *Recorder) Frames() []render.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]render.Frame(nil), s.frames...)
}

// FramesFor returns the frames presented for page.
func (s *Recorder) FramesFor(page int) []render.Frame {
	var out []render.Frame
	for _, f := range s.Frames() {
		if f.Page == page {
			out = append(out, f)
		}
	}
	return out
}

// Failure returns the error reported for page.
func (s *Recorder) Failure(page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fails[page]
}
