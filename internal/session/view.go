package session

import (
	"context"
	"fmt"
	"time"

	"pdf-editor/internal/coords"
	errs "pdf-editor/internal/errors"
	"pdf-editor/internal/layout"
	"pdf-editor/internal/logger"
	"pdf-editor/internal/render"
	"pdf-editor/internal/types"
)

// Geometry is the on-screen geometry of one page. Overlays must be sized to
// PixelWidth x PixelHeight, the size of the bitmap.
type Geometry struct {
	Page        int         `json:"page"`
	Zoom        float64     `json:"zoom"`
	Intrinsic   coords.Size `json:"intrinsic"`
	Rendered    coords.Size `json:"rendered"`
	PixelWidth  int         `json:"pixelWidth"`
	PixelHeight int         `json:"pixelHeight"`
}

// PageGeometry returns the geometry of page at the current zoom.
func (s *Session) PageGeometry(ctx context.Context, page int) (Geometry, error) {
	size, err := s.sched.IntrinsicSize(ctx, page)
	if err != nil {
		return Geometry{}, err
	}
	zoom := s.sched.Zoom()
	w, h := coords.PixelSize(size, zoom)
	return Geometry{
		Page:        page,
		Zoom:        zoom,
		Intrinsic:   size,
		Rendered:    coords.RenderedSize(size, zoom),
		PixelWidth:  w,
		PixelHeight: h,
	}, nil
}

// Zoom returns the zoom factor.
func (s *Session) Zoom() float64 {
	return s.sched.Zoom()
}

// SetZoom changes the zoom, clamped to the supported range, and re-renders
// the visible pages. It returns the zoom in effect.
func (s *Session) SetZoom(zoom float64) float64 {
	if s.sched.SetZoom(zoom) {
		s.refresh(false)
		s.emit(ChangeView)
	}
	return s.sched.Zoom()
}

// ViewMode returns the page layout mode.
func (s *Session) ViewMode() layout.ViewMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewMode
}

// SetViewMode switches the page layout. Pages that leave the layout have
// their renders cancelled.
func (s *Session) SetViewMode(mode layout.ViewMode) {
	s.mu.Lock()
	changed := s.viewMode != mode
	s.viewMode = mode
	s.mu.Unlock()

	if changed {
		s.log.Debug("view mode changed", logger.String("mode", mode.String()))
		s.refresh(false)
		s.emit(ChangeView)
	}
}

// CurrentPage returns the focus page, 0 without a document.
func (s *Session) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// GoToPage moves the focus to page. Pages in the new layout whose last render
// failed are retried.
func (s *Session) GoToPage(page int) error {
	s.mu.Lock()
	if err := s.checkDocumentLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if n := s.pageCountLocked(); page < 1 || page > n {
		s.mu.Unlock()
		return types.NewAppErrorWithDetails(types.ErrValidation, "page out of range",
			fmt.Sprintf("page %d of %d", page, n), nil)
	}
	s.current = page
	s.mu.Unlock()

	s.refresh(true)
	s.emit(ChangeView)
	return nil
}

// Visible returns the pages of the current layout in display order.
func (s *Session) Visible() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.visible...)
}

// RenderState returns the render state of page.
func (s *Session) RenderState(page int) render.State {
	return s.sched.State(page)
}

// RenderErr returns the last render error of page.
func (s *Session) RenderErr(page int) error {
	return s.sched.Err(page)
}

// Wait blocks until the renders started so far have finished.
func (s *Session) Wait() {
	s.sched.Wait()
}

// refresh recomputes the layout, cancels pages that left it and schedules
// pages that are not rendered yet. Failed pages are only retried when retry
// is set.
func (s *Session) refresh(retry bool) {
	s.mu.Lock()
	if s.handle == nil {
		s.visible = nil
		s.mu.Unlock()
		return
	}
	n := s.handle.PageCount()
	if s.current < 1 {
		s.current = 1
	}
	if s.current > n {
		s.current = n
	}
	next := layout.Compute(s.viewMode, s.current, n)
	change := layout.Diff(s.visible, next)
	s.visible = next
	s.mu.Unlock()

	for _, page := range change.Leave {
		s.sched.Cancel(page)
	}
	surface := pageSurface{s}
	for _, page := range next {
		switch s.sched.State(page) {
		case render.Idle, render.Cancelled:
		case render.Errored:
			if !retry {
				continue
			}
			s.log.Info("retrying failed page", logger.Page(page))
		default:
			continue
		}
		if _, err := s.sched.RequestRender(page, surface); err != nil {
			s.log.Debug("render request rejected", logger.Page(page), logger.Err(err))
		}
	}
}

// pageSurface forwards scheduler results to the display. It runs with the
// scheduler lock held, so it only touches state that has its own lock.
type pageSurface struct{ s *Session }

func (p pageSurface) Present(f render.Frame) {
	if p.s.journal != nil {
		p.s.journal.RemoveError(errs.RecordID(errs.StageRender, f.Page))
	}
	if p.s.display != nil {
		p.s.display.Present(f)
	}
}

func (p pageSurface) Fail(page int, err error) {
	s := p.s
	if s.journal != nil {
		if jerr := s.journal.RecordError(s.Name(), errs.StageRender, page, string(types.CodeOf(err)), err.Error()); jerr != nil {
			s.log.Warn("failed to journal render error", logger.Err(jerr))
		}
	}
	if s.display != nil {
		s.display.Fail(page, err)
	}
	s.events.Notify(Notification{
		Level:   LevelWarning,
		Code:    types.ErrRender,
		Message: fmt.Sprintf("failed to render page %d", page),
		Page:    page,
		Time:    time.Now(),
	})
}

// viewport gives the tool machine the page geometry. It runs with the
// machine lock held and never takes the session lock.
type viewport struct{ s *Session }

func (v viewport) PageSize(page int) (coords.Size, bool) {
	size, err := v.s.sched.IntrinsicSize(context.Background(), page)
	if err != nil {
		return coords.Size{}, false
	}
	return size, true
}

func (v viewport) Zoom() float64 {
	return v.s.sched.Zoom()
}
