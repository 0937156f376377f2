package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"seehuhn.de/go/geom/rect"

	"pdf-editor/internal/annotation"
	errs "pdf-editor/internal/errors"
	"pdf-editor/internal/history"
	"pdf-editor/internal/logger"
	"pdf-editor/internal/parser"
	"pdf-editor/internal/render"
	"pdf-editor/internal/types"
)

// Mutator produces new document bytes from old ones. The input is never
// modified. Page numbers are 1-based.
type Mutator interface {
	DeletePages(ctx context.Context, data []byte, pages []int) ([]byte, error)
	ReorderPages(ctx context.Context, data []byte, order []int) ([]byte, error)
	RotatePage(ctx context.Context, data []byte, page, degrees int) ([]byte, error)
	Merge(ctx context.Context, docs [][]byte) ([]byte, error)
	BakeText(ctx context.Context, data []byte, t annotation.Text, font string) ([]byte, error)
	BakeHighlight(ctx context.Context, data []byte, page int, area rect.Rect, color string) ([]byte, error)
	BakeDrawing(ctx context.Context, data []byte, d annotation.Drawing) ([]byte, error)
	InsertBlankPage(ctx context.Context, data []byte, after int) ([]byte, error)
}

// edit is one destructive operation run through mutate.
type edit struct {
	label string
	// page is reported with failures, 0 for the whole document
	page int
	// check validates the request against the page count before anything runs
	check func(pageCount int) error
	apply func(ctx context.Context, data []byte) ([]byte, error)
	// remap moves annotations to their new page numbers; nil keeps them
	remap func(page int) (int, bool)
	// consumed lists annotations that became part of the document
	consumed []string
}

// mutate runs e against the current document. The old bytes and handle stay
// in place until the new document has loaded; only then is the result pushed
// onto the history, exactly once.
func (s *Session) mutate(ctx context.Context, e edit) error {
	s.mu.Lock()
	if err := s.checkDocumentLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.busy {
		s.mu.Unlock()
		return errBusy()
	}
	if s.mutator == nil {
		s.mu.Unlock()
		return types.NewAppError(types.ErrInternal, "no document mutator configured", nil)
	}
	if e.check != nil {
		if err := e.check(s.handle.PageCount()); err != nil {
			s.mu.Unlock()
			s.fail(errs.StageValidate, e.page, err)
			return err
		}
	}
	data := s.data
	s.busy = true
	s.phase = types.PhaseMutating
	s.mu.Unlock()
	s.emit(ChangeDocument)

	started := time.Now()
	out, h, err := s.produce(ctx, func(ctx context.Context) ([]byte, error) { return e.apply(ctx, data) })
	if err != nil {
		code := types.ErrMutation
		if types.Classify(err, types.ErrMutation) == types.ErrValidation {
			code = types.ErrValidation
		}
		mutErr := types.NewAppErrorWithDetails(code, e.label+" failed", err.Error(), err)
		s.settle()
		s.fail(errs.StageMutate, e.page, mutErr)
		return mutErr
	}

	if err := s.install(h); err != nil {
		return err
	}
	s.hist.Push(history.NewSnapshot(out, e.label))
	s.adopt(out, h.PageCount())

	if e.remap != nil {
		s.forget(s.store.Remap(e.remap))
	}
	for _, id := range e.consumed {
		if err := s.store.Delete(id); err == nil {
			s.forget([]string{id})
		}
	}

	s.log.Info("document edited", logger.String("op", e.label), logger.Int("pages", h.PageCount()),
		logger.Int("bytes", len(out)), logger.Duration("elapsed", time.Since(started)))
	s.finishReload()
	return nil
}

// produce runs fn and loads its output. A result that cannot be loaded is a
// failure of the edit.
func (s *Session) produce(ctx context.Context, fn func(context.Context) ([]byte, error)) ([]byte, render.Handle, error) {
	out, err := fn(ctx)
	if err == nil && len(out) == 0 {
		err = fmt.Errorf("empty document")
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, nil, err
	}
	h, err := s.raster.Load(ctx, out)
	if err != nil {
		return nil, nil, fmt.Errorf("reloading edited document: %w", err)
	}
	if h.PageCount() < 1 {
		s.dispose(h)
		return nil, nil, fmt.Errorf("edited document has no pages")
	}
	return out, h, nil
}

// adopt records bytes that were just installed and releases the busy flag.
func (s *Session) adopt(data []byte, pageCount int) {
	s.mu.Lock()
	s.data = data
	s.busy = false
	s.phase = types.PhaseReady
	if s.current > pageCount {
		s.current = pageCount
	}
	s.mu.Unlock()
	s.store.SetPageCount(pageCount)
}

// settle releases the busy flag after a failed edit.
func (s *Session) settle() {
	s.mu.Lock()
	s.busy = false
	if s.handle != nil {
		s.phase = types.PhaseReady
	}
	s.mu.Unlock()
	s.emit(ChangeDocument)
}

func (s *Session) finishReload() {
	s.machine.Reset()
	s.refresh(false)
	s.emit(ChangeDocument, ChangeAnnotations, ChangeView)
}

func invalid(msg, details string) error {
	return types.NewAppErrorWithDetails(types.ErrValidation, msg, details, nil)
}

func checkPage(page, count int) error {
	if page < 1 || page > count {
		return invalid("page out of range", fmt.Sprintf("page %d of %d", page, count))
	}
	return nil
}

// DeletePages removes pages. Deleting every page is rejected. Annotations on
// deleted pages are dropped, the rest follow their pages.
func (s *Session) DeletePages(ctx context.Context, pages []int) error {
	var unique []int
	deleted := make(map[int]bool)
	return s.mutate(ctx, edit{
		label: "delete " + joinPages(pages),
		check: func(count int) error {
			if len(pages) == 0 {
				return invalid("no pages selected", "")
			}
			for _, p := range pages {
				if err := checkPage(p, count); err != nil {
					return err
				}
				if !deleted[p] {
					deleted[p] = true
					unique = append(unique, p)
				}
			}
			if len(unique) >= count {
				return invalid("cannot delete every page", fmt.Sprintf("%d of %d pages selected", len(unique), count))
			}
			sort.Ints(unique)
			return nil
		},
		apply: func(ctx context.Context, data []byte) ([]byte, error) {
			return s.mutator.DeletePages(ctx, data, unique)
		},
		remap: func(page int) (int, bool) {
			if deleted[page] {
				return 0, false
			}
			// unique is sorted; count the deleted pages before page
			shift := sort.SearchInts(unique, page)
			return page - shift, true
		},
	})
}

// DeletePageRanges deletes the pages named by a selector such as "1-3,5".
func (s *Session) DeletePageRanges(ctx context.Context, spec string) error {
	pages, err := parser.ParseRangesStrict(spec, s.PageCount())
	if err != nil {
		s.fail(errs.StageValidate, 0, err)
		return err
	}
	return s.DeletePages(ctx, pages)
}

// ReorderPages rearranges the document so that new page i is old page
// order[i-1]. order must be a permutation of all pages.
func (s *Session) ReorderPages(ctx context.Context, order []int) error {
	newPos := make(map[int]int, len(order))
	return s.mutate(ctx, edit{
		label: "reorder " + joinPages(order),
		check: func(count int) error {
			if len(order) != count {
				return invalid("page order must list every page once", fmt.Sprintf("%d of %d pages", len(order), count))
			}
			for i, p := range order {
				if err := checkPage(p, count); err != nil {
					return err
				}
				if _, dup := newPos[p]; dup {
					return invalid("page order must list every page once", fmt.Sprintf("page %d repeated", p))
				}
				newPos[p] = i + 1
			}
			return nil
		},
		apply: func(ctx context.Context, data []byte) ([]byte, error) {
			return s.mutator.ReorderPages(ctx, data, order)
		},
		remap: func(page int) (int, bool) {
			p, ok := newPos[page]
			return p, ok
		},
	})
}

// ReorderPagesSpec reorders with a selector such as "3,1-2".
func (s *Session) ReorderPagesSpec(ctx context.Context, spec string) error {
	order, err := parser.ParseOrder(spec, s.PageCount())
	if err != nil {
		s.fail(errs.StageValidate, 0, err)
		return err
	}
	return s.ReorderPages(ctx, order)
}

// normalizeDegrees maps a clockwise quarter turn onto 90, 180 or 270.
func normalizeDegrees(degrees int) (int, bool) {
	if degrees%90 != 0 {
		return 0, false
	}
	d := ((degrees % 360) + 360) % 360
	return d, d != 0
}

// RotatePage turns page clockwise by degrees, a non-zero multiple of 90.
func (s *Session) RotatePage(ctx context.Context, page, degrees int) error {
	return s.mutate(ctx, edit{
		label: fmt.Sprintf("rotate page %d by %d", page, degrees),
		page:  page,
		check: func(count int) error {
			if _, ok := normalizeDegrees(degrees); !ok {
				return invalid("rotation must be 90, 180 or 270 degrees", fmt.Sprint(degrees))
			}
			return checkPage(page, count)
		},
		apply: func(ctx context.Context, data []byte) ([]byte, error) {
			d, _ := normalizeDegrees(degrees)
			return s.mutator.RotatePage(ctx, data, page, d)
		},
	})
}

// Merge appends the pages of the given documents to the current one.
func (s *Session) Merge(ctx context.Context, docs ...[]byte) error {
	return s.mutate(ctx, edit{
		label: fmt.Sprintf("merge %d documents", len(docs)+1),
		check: func(int) error {
			if len(docs) == 0 {
				return invalid("nothing to merge", "")
			}
			for i, d := range docs {
				if len(d) == 0 {
					return invalid("cannot merge an empty document", fmt.Sprintf("document %d", i+1))
				}
			}
			return nil
		},
		apply: func(ctx context.Context, data []byte) ([]byte, error) {
			return s.mutator.Merge(ctx, append([][]byte{data}, docs...))
		},
	})
}

// InsertBlankPage adds an empty page after page after; 0 inserts at the front.
func (s *Session) InsertBlankPage(ctx context.Context, after int) error {
	return s.mutate(ctx, edit{
		label: fmt.Sprintf("insert page after %d", after),
		page:  after,
		check: func(count int) error {
			if after < 0 || after > count {
				return invalid("insert position out of range", fmt.Sprintf("after %d of %d", after, count))
			}
			return nil
		},
		apply: func(ctx context.Context, data []byte) ([]byte, error) {
			return s.mutator.InsertBlankPage(ctx, data, after)
		},
		remap: func(page int) (int, bool) {
			if page > after {
				return page + 1, true
			}
			return page, true
		},
	})
}

// BakeText writes the text annotation id into the page content and removes
// it from the annotation layer.
func (s *Session) BakeText(ctx context.Context, id string) error {
	a, ok := s.store.Get(id)
	t, isText := a.(*annotation.Text)
	e := edit{label: "bake text", consumed: []string{id}}
	switch {
	case !ok:
		e.check = func(int) error { return invalid("annotation not found", id) }
	case !isText:
		e.check = func(int) error { return invalid("annotation is not a text box", id) }
	default:
		e.page = t.Page
		e.check = func(count int) error {
			if strings.TrimSpace(t.Text) == "" {
				return invalid("text is empty", id)
			}
			return checkPage(t.Page, count)
		}
		e.apply = func(ctx context.Context, data []byte) ([]byte, error) {
			return s.mutator.BakeText(ctx, data, *t, s.style.FontName)
		}
	}
	return s.mutate(ctx, e)
}

// BakeDrawing writes the drawing annotation id into the page content and
// removes it from the annotation layer.
func (s *Session) BakeDrawing(ctx context.Context, id string) error {
	a, ok := s.store.Get(id)
	d, isDrawing := a.(*annotation.Drawing)
	e := edit{label: "bake drawing", consumed: []string{id}}
	switch {
	case !ok:
		e.check = func(int) error { return invalid("annotation not found", id) }
	case !isDrawing:
		e.check = func(int) error { return invalid("annotation is not a drawing", id) }
	default:
		e.label = "bake " + string(d.Kind)
		e.page = d.Page
		e.check = func(count int) error { return checkPage(d.Page, count) }
		e.apply = func(ctx context.Context, data []byte) ([]byte, error) {
			return s.mutator.BakeDrawing(ctx, data, *d)
		}
	}
	return s.mutate(ctx, e)
}

// BakeAnnotation bakes id whatever its type.
func (s *Session) BakeAnnotation(ctx context.Context, id string) error {
	if a, ok := s.store.Get(id); ok {
		if _, isText := a.(*annotation.Text); isText {
			return s.BakeText(ctx, id)
		}
	}
	return s.BakeDrawing(ctx, id)
}

// BakeHighlight paints a translucent rectangle over area of page.
func (s *Session) BakeHighlight(ctx context.Context, page int, area rect.Rect) error {
	return s.mutate(ctx, edit{
		label: fmt.Sprintf("highlight page %d", page),
		page:  page,
		check: func(count int) error {
			if area.URx-area.LLx <= 0 || area.URy-area.LLy <= 0 {
				return invalid("highlight has no area", "")
			}
			return checkPage(page, count)
		},
		apply: func(ctx context.Context, data []byte) ([]byte, error) {
			return s.mutator.BakeHighlight(ctx, data, page, area, s.style.HighlightColor)
		},
	})
}

// Undo reloads the previous snapshot. At the oldest snapshot it does nothing
// and reports false.
func (s *Session) Undo(ctx context.Context) (bool, error) {
	return s.step(ctx, "undo", s.hist.PeekUndo, s.hist.Undo)
}

// Redo reloads the next snapshot. At the newest snapshot it does nothing and
// reports false.
func (s *Session) Redo(ctx context.Context) (bool, error) {
	return s.step(ctx, "redo", s.hist.PeekRedo, s.hist.Redo)
}

// CanUndo reports whether Undo would change the document.
func (s *Session) CanUndo() bool { return s.hist.CanUndo() }

// CanRedo reports whether Redo would change the document.
func (s *Session) CanRedo() bool { return s.hist.CanRedo() }

func (s *Session) step(ctx context.Context, op string, peek, move func() (history.Snapshot, bool)) (bool, error) {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return false, err
	}
	if s.busy {
		s.mu.Unlock()
		return false, errBusy()
	}
	snap, ok := peek()
	if !ok || s.handle == nil {
		s.mu.Unlock()
		return false, nil
	}
	s.busy = true
	s.phase = types.PhaseMutating
	s.mu.Unlock()

	out, h, err := s.produce(ctx, func(context.Context) ([]byte, error) { return snap.Data, nil })
	if err != nil {
		stepErr := types.NewAppErrorWithDetails(types.ErrMutation, op+" failed", err.Error(), err)
		s.settle()
		s.fail(errs.StageHistory, 0, stepErr)
		return false, stepErr
	}
	if err := s.install(h); err != nil {
		return false, err
	}
	move()
	s.adopt(out, h.PageCount())
	s.forget(s.store.Prune())

	s.log.Info("history moved", logger.String("op", op), logger.String("label", snap.Label),
		logger.Int("index", s.hist.Index()), logger.Int("pages", h.PageCount()))
	s.finishReload()
	return true, nil
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ",")
}
