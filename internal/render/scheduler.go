package render

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pdf-editor/internal/coords"
	"pdf-editor/internal/logger"
	"pdf-editor/internal/types"
)

// State is the render state of one page.
type State int

const (
	// Idle pages have not been requested since the last zoom change or Reset
	Idle State = iota
	// Loading pages have a render task in flight
	Loading
	// Rendered pages have presented a frame at the current zoom
	Rendered
	// Cancelled pages had their task stopped before it committed
	Cancelled
	// Errored pages failed to render; the error is kept until the next request
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Rendered:
		return "rendered"
	case Cancelled:
		return "cancelled"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type task struct {
	page       int
	generation uint64
	epoch      uint64
	zoom       float64
	handle     Handle
	token      *CancelToken
	surface    Surface
}

// Scheduler owns at most one in-flight render per page. A newer request for a
// page cancels the older one, and a result is only presented while its task is
// still the current task for that page.
type Scheduler struct {
	raster Rasterizer
	log    logger.Logger

	mu         sync.Mutex
	handle     Handle
	zoom       float64
	generation uint64
	// epoch changes with every Reset so late size lookups from an old
	// document never reach the cache
	epoch  uint64
	tasks  map[int]*task
	states map[int]State
	sizes  map[int]coords.Size
	errs   map[int]error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler with no document at zoom 1.
func NewScheduler(raster Rasterizer) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		raster: raster,
		log:    logger.Named("render"),
		zoom:   1,
		tasks:  make(map[int]*task),
		states: make(map[int]State),
		sizes:  make(map[int]coords.Size),
		errs:   make(map[int]error),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Reset cancels everything and switches to h, which may be nil. Cached page
// sizes and states belong to the old document and are dropped.
func (s *Scheduler) Reset(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelAllLocked()
	s.handle = h
	s.epoch++
	s.states = make(map[int]State)
	s.sizes = make(map[int]coords.Size)
	s.errs = make(map[int]error)
}

// Zoom returns the current zoom factor.
func (s *Scheduler) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// SetZoom changes the zoom factor. Bitmaps are resolution dependent, so every
// rendered page is invalidated and in-flight renders are cancelled. It reports
// whether the zoom changed.
func (s *Scheduler) SetZoom(zoom float64) bool {
	zoom = coords.ClampZoom(zoom)

	s.mu.Lock()
	defer s.mu.Unlock()

	if zoom == s.zoom {
		return false
	}
	s.cancelAllLocked()
	s.zoom = zoom
	s.states = make(map[int]State)
	s.errs = make(map[int]error)
	s.log.Debug("zoom changed, render cache cleared", logger.Float64("zoom", zoom))
	return true
}

// RequestRender starts rendering page onto surface, replacing any render of
// the same page that is still in flight. It returns the request generation.
func (s *Scheduler) RequestRender(page int, surface Surface) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return 0, types.NewAppError(types.ErrValidation, "no document loaded", nil)
	}
	if page < 1 || page > s.handle.PageCount() {
		return 0, types.NewAppErrorWithDetails(types.ErrValidation, "page out of range",
			fmt.Sprintf("page %d of %d", page, s.handle.PageCount()), nil)
	}

	if prev, ok := s.tasks[page]; ok {
		prev.token.Cancel()
		s.log.Debug("render superseded", logger.Page(page), logger.Uint64("generation", prev.generation))
	}

	s.generation++
	t := &task{
		page:       page,
		generation: s.generation,
		epoch:      s.epoch,
		zoom:       s.zoom,
		handle:     s.handle,
		token:      NewCancelToken(s.ctx),
		surface:    surface,
	}
	s.tasks[page] = t
	s.states[page] = Loading
	delete(s.errs, page)

	s.wg.Add(1)
	go s.run(t)

	return t.generation, nil
}

func (s *Scheduler) run(t *task) {
	defer s.wg.Done()
	started := time.Now()
	ctx := t.token.Context()

	if t.token.Cancelled() {
		return
	}

	size, err := s.pageSize(ctx, t.handle, t.epoch, t.page)
	if t.token.Cancelled() {
		return
	}
	if err != nil {
		s.fail(t, err)
		return
	}

	img, err := s.raster.RenderPage(ctx, t.handle, t.page, t.zoom)
	if t.token.Cancelled() {
		return
	}
	if err != nil {
		s.fail(t, err)
		return
	}

	frame := Frame{
		Page:       t.page,
		Generation: t.generation,
		Zoom:       t.zoom,
		Image:      img,
		Intrinsic:  size,
		Rendered:   coords.RenderedSize(size, t.zoom),
	}
	if img != nil {
		w, h := coords.PixelSize(size, t.zoom)
		if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
			s.log.Warn("rendered bitmap does not match page geometry",
				logger.Page(t.page), logger.Int("width", b.Dx()), logger.Int("height", b.Dy()),
				logger.Int("expectedWidth", w), logger.Int("expectedHeight", h))
		}
	}
	s.commit(t, frame, time.Since(started))
}

// current reports whether t is still the live task for its page. Caller holds mu.
func (s *Scheduler) current(t *task) bool {
	return s.tasks[t.page] == t && !t.token.Cancelled()
}

func (s *Scheduler) commit(t *task, frame Frame, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(t) {
		s.log.Debug("discarding stale render", logger.Page(t.page), logger.Uint64("generation", t.generation))
		return
	}
	delete(s.tasks, t.page)
	t.token.Cancel()
	s.states[t.page] = Rendered

	s.log.Debug("page rendered", logger.Page(t.page), logger.Uint64("generation", t.generation),
		logger.Duration("elapsed", elapsed))
	if t.surface != nil {
		t.surface.Present(frame)
	}
}

func (s *Scheduler) fail(t *task, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(t) {
		return
	}
	delete(s.tasks, t.page)
	t.token.Cancel()

	err := types.NewAppErrorWithDetails(types.ErrRender,
		fmt.Sprintf("failed to render page %d", t.page), cause.Error(), cause)
	s.states[t.page] = Errored
	s.errs[t.page] = err

	s.log.Error("page render failed", cause, logger.Page(t.page), logger.Uint64("generation", t.generation))
	if t.surface != nil {
		t.surface.Fail(t.page, err)
	}
}

// pageSize returns the cached intrinsic size or asks the rasterizer.
func (s *Scheduler) pageSize(ctx context.Context, h Handle, epoch uint64, page int) (coords.Size, error) {
	s.mu.Lock()
	size, ok := s.sizes[page]
	s.mu.Unlock()
	if ok {
		return size, nil
	}

	size, err := s.raster.PageSize(ctx, h, page)
	if err != nil {
		return coords.Size{}, err
	}

	s.mu.Lock()
	if s.epoch == epoch {
		s.sizes[page] = size
	}
	s.mu.Unlock()
	return size, nil
}

// IntrinsicSize returns the page size in points, fetching it once per page.
func (s *Scheduler) IntrinsicSize(ctx context.Context, page int) (coords.Size, error) {
	s.mu.Lock()
	h, epoch := s.handle, s.epoch
	s.mu.Unlock()

	if h == nil {
		return coords.Size{}, types.NewAppError(types.ErrValidation, "no document loaded", nil)
	}
	if page < 1 || page > h.PageCount() {
		return coords.Size{}, types.NewAppErrorWithDetails(types.ErrValidation, "page out of range",
			fmt.Sprintf("page %d of %d", page, h.PageCount()), nil)
	}
	return s.pageSize(ctx, h, epoch, page)
}

// Cancel stops the in-flight render of page, if any. Cancellation is silent.
func (s *Scheduler) Cancel(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(page)
}

func (s *Scheduler) cancelLocked(page int) {
	t, ok := s.tasks[page]
	if !ok {
		return
	}
	t.token.Cancel()
	delete(s.tasks, page)
	s.states[page] = Cancelled
}

// CancelAll stops every in-flight render.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAllLocked()
}

func (s *Scheduler) cancelAllLocked() {
	for page := range s.tasks {
		s.cancelLocked(page)
	}
}

// State returns the render state of page.
func (s *Scheduler) State(page int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[page]
}

// Err returns the last render error of page, or nil.
func (s *Scheduler) Err(page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs[page]
}

// Pages returns the sorted pages currently in state st.
func (s *Scheduler) Pages(st State) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pages []int
	for page, state := range s.states {
		if state == st {
			pages = append(pages, page)
		}
	}
	sort.Ints(pages)
	return pages
}

// InFlight returns the number of active render tasks.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Wait blocks until every started render goroutine has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close cancels all work and waits for it to drain. The handle is not
// disposed; it belongs to the caller.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.cancelAllLocked()
	s.handle = nil
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
