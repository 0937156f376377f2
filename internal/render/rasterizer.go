// Package render schedules page rasterization with per-page cancellation.
package render

import (
	"context"
	"image"

	"pdf-editor/internal/coords"
)

// Handle is a decoded document owned by a Rasterizer.
type Handle interface {
	PageCount() int
}

// Rasterizer decodes documents and draws their pages. Page numbers are 1-based.
// Implementations must return promptly with ctx.Err() once ctx is done when
// they can; results produced after cancellation are discarded by the caller.
type Rasterizer interface {
	// Load decodes data. Malformed input yields an error and no handle.
	Load(ctx context.Context, data []byte) (Handle, error)
	// PageSize returns the intrinsic page size in points.
	PageSize(ctx context.Context, h Handle, page int) (coords.Size, error)
	// RenderPage draws page at scale pixels per point.
	RenderPage(ctx context.Context, h Handle, page int, scale float64) (*image.RGBA, error)
	// Dispose releases the decoder resources held by h.
	Dispose(h Handle) error
}

// Frame is a finished render ready for display.
type Frame struct {
	Page       int
	Generation uint64
	Zoom       float64
	Image      *image.RGBA
	// Intrinsic is the page size in points
	Intrinsic coords.Size
	// Rendered is Intrinsic scaled by Zoom; overlays use this size
	Rendered coords.Size
}

// Surface receives render results. Both methods are called with the scheduler
// lock held and must not call back into the Scheduler.
type Surface interface {
	Present(f Frame)
	Fail(page int, err error)
}

// SurfaceFuncs adapts plain functions to Surface. Nil fields are ignored.
type SurfaceFuncs struct {
	PresentFunc func(Frame)
	FailFunc    func(page int, err error)
}

// Present calls PresentFunc.
func (s SurfaceFuncs) Present(f Frame) {
	if s.PresentFunc != nil {
		s.PresentFunc(f)
	}
}

// Fail calls FailFunc.
func (s SurfaceFuncs) Fail(page int, err error) {
	if s.FailFunc != nil {
		s.FailFunc(page, err)
	}
}

// CancelToken is the cancellation handle of one render request.
type CancelToken struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCancelToken derives a token from parent.
func NewCancelToken(parent context.Context) *CancelToken {
	ctx, cancel := context.WithCancel(parent)
	return &CancelToken{ctx: ctx, cancel: cancel}
}

// Context is passed to every rasterizer call made for the request.
func (t *CancelToken) Context() context.Context { return t.ctx }

// Cancel marks the request as superseded. It is safe to call more than once.
func (t *CancelToken) Cancel() { t.cancel() }

// Cancelled reports whether Cancel was called or the parent ended.
func (t *CancelToken) Cancelled() bool { return t.ctx.Err() != nil }
