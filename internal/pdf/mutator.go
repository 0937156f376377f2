package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"seehuhn.de/go/geom/rect"

	"pdf-editor/internal/annotation"
	"pdf-editor/internal/coords"
	"pdf-editor/internal/logger"
)

// Mutator performs structural edits on whole-document byte buffers with
// pdfcpu. Inputs are never modified; every call returns a fresh buffer.
type Mutator struct {
	fontName string
	log      logger.Logger
}

// NewMutator returns a mutator. fontName is used for baked text when the
// caller passes none; it must be one of the standard 14 fonts.
func NewMutator(fontName string) *Mutator {
	if !IsStandardFont(fontName) {
		fontName = "Helvetica"
	}
	return &Mutator{
		fontName: fontName,
		log:      logger.Named("mutator"),
	}
}

// newConf returns a fresh configuration per call since pdfcpu records the
// running command in it.
func newConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in data.
func (m *Mutator) PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), newConf())
	if err != nil {
		return 0, NewPDFError(ErrPDFInvalid, "failed to read page count", err)
	}
	return n, nil
}

// PageSizes returns the size of every page in points.
func (m *Mutator) PageSizes(data []byte) ([]coords.Size, error) {
	dims, err := api.PageDims(bytes.NewReader(data), newConf())
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "failed to read page sizes", err)
	}
	sizes := make([]coords.Size, len(dims))
	for i, d := range dims {
		sizes[i] = coords.Size{Width: d.Width, Height: d.Height}
	}
	return sizes, nil
}

// DeletePages removes the given 1-based pages. Removing every page is
// rejected with ErrInvalidRange.
func (m *Mutator) DeletePages(ctx context.Context, data []byte, pages []int) ([]byte, error) {
	count, err := m.PageCount(data)
	if err != nil {
		return nil, err
	}
	unique, err := uniquePages(pages, count)
	if err != nil {
		return nil, err
	}
	if len(unique) >= count {
		return nil, NewPDFErrorWithDetails(ErrInvalidRange, "cannot delete every page",
			fmt.Sprintf("%d of %d pages selected", len(unique), count), nil)
	}

	return m.run(ctx, "delete pages", 0, func(w io.Writer) error {
		return api.RemovePages(bytes.NewReader(data), w, selection(unique), newConf())
	}, logger.Int("pages", len(unique)))
}

// ReorderPages rearranges pages so that the i-th output page is order[i].
// order must be a permutation of 1..PageCount.
func (m *Mutator) ReorderPages(ctx context.Context, data []byte, order []int) ([]byte, error) {
	count, err := m.PageCount(data)
	if err != nil {
		return nil, err
	}
	if len(order) != count {
		return nil, NewPDFErrorWithDetails(ErrInvalidRange, "order must list every page once",
			fmt.Sprintf("got %d entries for %d pages", len(order), count), nil)
	}
	if unique, err := uniquePages(order, count); err != nil {
		return nil, err
	} else if len(unique) != count {
		return nil, NewPDFError(ErrInvalidRange, "order contains duplicate pages", nil)
	}

	return m.run(ctx, "reorder pages", 0, func(w io.Writer) error {
		return api.Collect(bytes.NewReader(data), w, selection(order), newConf())
	}, logger.Int("pages", count))
}

// NormalizeRotation maps degrees onto 90, 180 or 270. Negative quarter turns
// are accepted, so -90 becomes 270.
func NormalizeRotation(degrees int) (int, error) {
	d := ((degrees % 360) + 360) % 360
	switch d {
	case 90, 180, 270:
		return d, nil
	}
	return 0, NewPDFErrorWithDetails(ErrInvalidRange, "rotation must be a quarter turn",
		fmt.Sprintf("got %d degrees", degrees), nil)
}

// RotatePage rotates one page clockwise by degrees.
func (m *Mutator) RotatePage(ctx context.Context, data []byte, page, degrees int) ([]byte, error) {
	d, err := NormalizeRotation(degrees)
	if err != nil {
		return nil, err
	}
	if err := m.checkPage(data, page); err != nil {
		return nil, err
	}

	return m.run(ctx, "rotate page", page, func(w io.Writer) error {
		return api.Rotate(bytes.NewReader(data), w, d, selection([]int{page}), newConf())
	}, logger.Int("degrees", d))
}

// Merge concatenates docs in order.
func (m *Mutator) Merge(ctx context.Context, docs [][]byte) ([]byte, error) {
	if len(docs) < 2 {
		return nil, NewPDFError(ErrInvalidRange, "merge needs at least two documents", nil)
	}
	readers := make([]io.ReadSeeker, len(docs))
	for i, d := range docs {
		if len(d) == 0 {
			return nil, NewPDFErrorWithDetails(ErrPDFInvalid, "empty document in merge",
				fmt.Sprintf("document %d", i+1), nil)
		}
		readers[i] = bytes.NewReader(d)
	}

	return m.run(ctx, "merge documents", 0, func(w io.Writer) error {
		return api.MergeRaw(readers, w, false, newConf())
	}, logger.Int("documents", len(docs)))
}

// BakeText stamps t permanently onto its page. (t.X, t.Y) is the lower-left
// corner of the text in points. An empty font uses the mutator's default.
func (m *Mutator) BakeText(ctx context.Context, data []byte, t annotation.Text, font string) ([]byte, error) {
	if err := m.checkPage(data, t.Page); err != nil {
		return nil, err
	}
	text, replaced := SanitizeText(t.Text)
	if strings.TrimSpace(text) == "" {
		return nil, NewPDFErrorWithPage(ErrUnsupportedText, "text is empty", t.Page, nil)
	}
	if replaced > 0 {
		m.log.Warn("replaced characters the standard fonts cannot show",
			logger.Page(t.Page), logger.Int("replaced", replaced))
	}
	if !IsStandardFont(font) {
		font = m.fontName
	}
	size := t.FontSize
	if size <= 0 {
		size = 12
	}
	c, err := ParseColor(t.Color)
	if err != nil {
		return nil, NewPDFErrorWithPage(ErrInvalidRange, "invalid text color", t.Page, err)
	}

	desc := fmt.Sprintf("fontname:%s, points:%.1f, pos:bl, off:%.2f %.2f, scale:1 abs, rot:0, fillc:#%02x%02x%02x, op:1",
		font, size, t.X, t.Y, c.R, c.G, c.B)
	wm, err := api.TextWatermark(text, desc, true, false, pdftypes.POINTS)
	if err != nil {
		return nil, NewPDFErrorWithPage(ErrMutateFailed, "failed to create text stamp", t.Page, err)
	}

	return m.run(ctx, "bake text", t.Page, func(w io.Writer) error {
		return api.AddWatermarks(bytes.NewReader(data), w, selection([]int{t.Page}), wm, newConf())
	}, logger.Int("chars", len([]rune(text))))
}

// BakeHighlight stamps a translucent filled rectangle onto page.
func (m *Mutator) BakeHighlight(ctx context.Context, data []byte, page int, area rect.Rect, color string) ([]byte, error) {
	if area.URx-area.LLx <= 0 || area.URy-area.LLy <= 0 {
		return nil, NewPDFErrorWithPage(ErrInvalidRange, "highlight has no area", page, nil)
	}
	c, err := ParseColor(color)
	if err != nil {
		return nil, NewPDFErrorWithPage(ErrInvalidRange, "invalid highlight color", page, err)
	}
	size, err := m.pageSize(data, page)
	if err != nil {
		return nil, err
	}

	o := NewOverlay(size, OverlayScale)
	o.Fill(area, c)
	return m.stampOverlay(ctx, data, page, o, HighlightOpacity, "bake highlight")
}

// BakeDrawing stamps a drawing annotation onto its page.
func (m *Mutator) BakeDrawing(ctx context.Context, data []byte, d annotation.Drawing) ([]byte, error) {
	size, err := m.pageSize(data, d.Page)
	if err != nil {
		return nil, err
	}

	o := NewOverlay(size, OverlayScale)
	if err := o.Draw(&d); err != nil {
		return nil, NewPDFErrorWithPage(ErrInvalidRange, "invalid drawing", d.Page, err)
	}
	return m.stampOverlay(ctx, data, d.Page, o, 1, "bake drawing")
}

// InsertBlankPage inserts an empty page after page after; 0 inserts at the
// front. The new page takes the size of its neighbour.
func (m *Mutator) InsertBlankPage(ctx context.Context, data []byte, after int) ([]byte, error) {
	sizes, err := m.PageSizes(data)
	if err != nil {
		return nil, err
	}
	count := len(sizes)
	if after < 0 || after > count {
		return nil, NewPDFErrorWithDetails(ErrInvalidRange, "insert position out of range",
			fmt.Sprintf("after %d, document has %d pages", after, count), nil)
	}
	ref := A4
	if count > 0 {
		ref = sizes[max(after, 1)-1]
	}
	blank, err := BlankPage(ref)
	if err != nil {
		return nil, err
	}

	merged, err := m.Merge(ctx, [][]byte{data, blank})
	if err != nil {
		return nil, err
	}
	order := make([]int, 0, count+1)
	for p := 1; p <= after; p++ {
		order = append(order, p)
	}
	order = append(order, count+1)
	for p := after + 1; p <= count; p++ {
		order = append(order, p)
	}
	return m.run(ctx, "insert blank page", after+1, func(w io.Writer) error {
		return api.Collect(bytes.NewReader(merged), w, selection(order), newConf())
	})
}

func (m *Mutator) stampOverlay(ctx context.Context, data []byte, page int, o *Overlay, opacity float64, op string) ([]byte, error) {
	img, origin, err := o.Encode()
	if err != nil {
		return nil, NewPDFErrorWithPage(ErrInvalidRange, "nothing to stamp", page, err)
	}
	desc := fmt.Sprintf("pos:bl, off:%.2f %.2f, scale:%.4f abs, rot:0, op:%.2f",
		origin.X, origin.Y, 1/OverlayScale, opacity)
	wm, err := api.ImageWatermarkForReader(bytes.NewReader(img), desc, true, false, pdftypes.POINTS)
	if err != nil {
		return nil, NewPDFErrorWithPage(ErrMutateFailed, "failed to create image stamp", page, err)
	}
	return m.run(ctx, op, page, func(w io.Writer) error {
		return api.AddWatermarks(bytes.NewReader(data), w, selection([]int{page}), wm, newConf())
	}, logger.Int("overlayBytes", len(img)))
}

// run executes one pdfcpu operation into a fresh buffer.
func (m *Mutator) run(ctx context.Context, op string, page int, fn func(w io.Writer) error, fields ...logger.Field) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		m.log.Error("pdfcpu operation failed", err, append(fields, logger.String("op", op), logger.Page(page))...)
		if page > 0 {
			return nil, NewPDFErrorWithPage(ErrMutateFailed, op+" failed", page, err)
		}
		return nil, NewPDFError(ErrMutateFailed, op+" failed", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.log.Info("document mutated", append(fields,
		logger.String("op", op),
		logger.Int("bytes", buf.Len()),
		logger.Duration("elapsed", time.Since(start)))...)
	return buf.Bytes(), nil
}

func (m *Mutator) pageSize(data []byte, page int) (coords.Size, error) {
	sizes, err := m.PageSizes(data)
	if err != nil {
		return coords.Size{}, err
	}
	if page < 1 || page > len(sizes) {
		return coords.Size{}, NewPDFErrorWithPage(ErrInvalidRange, "page out of range", page, nil)
	}
	return sizes[page-1], nil
}

func (m *Mutator) checkPage(data []byte, page int) error {
	count, err := m.PageCount(data)
	if err != nil {
		return err
	}
	if page < 1 || page > count {
		return NewPDFErrorWithPage(ErrInvalidRange, "page out of range", page, nil)
	}
	return nil
}

// uniquePages validates pages against count and returns them sorted without
// duplicates.
func uniquePages(pages []int, count int) ([]int, error) {
	seen := make(map[int]bool, len(pages))
	unique := make([]int, 0, len(pages))
	for _, p := range pages {
		if p < 1 || p > count {
			return nil, NewPDFErrorWithPage(ErrInvalidRange, "page out of range", p, nil)
		}
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}
	if len(unique) == 0 {
		return nil, NewPDFError(ErrInvalidRange, "no pages selected", nil)
	}
	sort.Ints(unique)
	return unique, nil
}

// selection renders pages as a pdfcpu page selection, one entry per page so
// that order is kept.
func selection(pages []int) []string {
	s := make([]string, len(pages))
	for i, p := range pages {
		s[i] = strconv.Itoa(p)
	}
	return s
}
