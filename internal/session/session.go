// Package session binds the editing core to one loaded document: the render
// scheduler, the page layout, the annotation store, the tool state machine and
// the undo history.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pdf-editor/internal/annotation"
	"pdf-editor/internal/coords"
	"pdf-editor/internal/editor"
	errs "pdf-editor/internal/errors"
	"pdf-editor/internal/history"
	"pdf-editor/internal/layout"
	"pdf-editor/internal/logger"
	"pdf-editor/internal/render"
	"pdf-editor/internal/tool"
	"pdf-editor/internal/types"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user facing message produced at the session boundary.
type Notification struct {
	Level   Level           `json:"level"`
	Code    types.ErrorCode `json:"code,omitempty"`
	Message string          `json:"message"`
	Page    int             `json:"page,omitempty"`
	Time    time.Time       `json:"time"`
}

// Change names the part of the session state that changed.
type Change string

const (
	ChangeDocument    Change = "document"
	ChangeView        Change = "view"
	ChangeAnnotations Change = "annotations"
	ChangeSelection   Change = "selection"
	ChangePreview     Change = "preview"
	ChangeTool        Change = "tool"
)

// Events receives notifications and change signals. Notify may run with the
// render scheduler lock held and must not call back into the Session. Changed
// is called with no session lock held and may read session state.
type Events interface {
	Notify(n Notification)
	Changed(c Change)
}

type noEvents struct{}

func (noEvents) Notify(Notification) {}
func (noEvents) Changed(Change)      {}

// Style holds the defaults applied to new annotations and baked content.
type Style struct {
	FontName       string
	FontSize       float64
	Color          string
	StrokeWidth    float64
	HighlightColor string
}

// DefaultStyle is used for zero Style fields.
var DefaultStyle = Style{
	FontName:       "Helvetica",
	FontSize:       14,
	Color:          "#000000",
	StrokeWidth:    2,
	HighlightColor: "#ffff00",
}

func (st Style) withDefaults() Style {
	if st.FontName == "" {
		st.FontName = DefaultStyle.FontName
	}
	if st.FontSize <= 0 {
		st.FontSize = DefaultStyle.FontSize
	}
	if st.Color == "" {
		st.Color = DefaultStyle.Color
	}
	if st.StrokeWidth <= 0 {
		st.StrokeWidth = DefaultStyle.StrokeWidth
	}
	if st.HighlightColor == "" {
		st.HighlightColor = DefaultStyle.HighlightColor
	}
	return st
}

// Options configures a Session. Rasterizer is required.
type Options struct {
	Rasterizer render.Rasterizer
	Mutator    Mutator
	// Display receives rendered frames and render failures. It is called with
	// the scheduler lock held and must not call back into the Session.
	Display render.Surface
	Events  Events
	Journal *errs.ErrorManager
	// BackupDir holds the backups made by Save; empty keeps them next to the file
	BackupDir    string
	Clock        tool.Clock
	HistoryLimit int
	Zoom         float64
	ViewMode     layout.ViewMode
	Style        Style
}

// Placement is the pending text placement marker.
type Placement struct {
	Page int          `json:"page"`
	At   coords.Point `json:"at"`
}

// Session is the document aggregate. All methods are safe for concurrent
// use. Structural edits, undo and redo are serialized: while one runs, the
// others fail with a BUSY error.
type Session struct {
	raster  render.Rasterizer
	mutator Mutator
	sched   *render.Scheduler
	store   *annotation.Store
	hist    *history.History
	machine *tool.Machine
	backups *editor.BackupManager
	display render.Surface
	events  Events
	journal *errs.ErrorManager
	style   Style
	log     logger.Logger

	// docName is read by the render surface, which must not take mu
	docName atomic.Value

	mu       sync.Mutex
	closed   bool
	phase    types.SessionPhase
	data     []byte
	handle   render.Handle
	viewMode layout.ViewMode
	current  int
	visible  []int
	selected string
	editing  string
	preview  *Placement
	busy     bool
	message  string
}

// New creates an empty session.
func New(opts Options) (*Session, error) {
	if opts.Rasterizer == nil {
		return nil, types.NewAppError(types.ErrConfig, "session needs a rasterizer", nil)
	}

	s := &Session{
		raster:   opts.Rasterizer,
		mutator:  opts.Mutator,
		sched:    render.NewScheduler(opts.Rasterizer),
		store:    annotation.NewStore(0),
		hist:     history.New(opts.HistoryLimit),
		backups:  editor.NewBackupManager(opts.BackupDir),
		display:  opts.Display,
		events:   opts.Events,
		journal:  opts.Journal,
		style:    opts.Style.withDefaults(),
		log:      logger.Named("session"),
		phase:    types.PhaseEmpty,
		viewMode: opts.ViewMode,
	}
	if s.events == nil {
		s.events = noEvents{}
	}
	s.docName.Store("")
	if opts.Zoom > 0 {
		s.sched.SetZoom(opts.Zoom)
	}
	s.machine = tool.NewMachine(viewport{s}, sink{s}, opts.Clock)
	return s, nil
}

// Load replaces the current document with data. On failure the session is
// left empty: the previous document is disposed as well.
func (s *Session) Load(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.busy {
		s.mu.Unlock()
		return errBusy()
	}
	s.busy = true
	s.phase = types.PhaseLoading
	s.mu.Unlock()

	started := time.Now()
	h, err := s.raster.Load(ctx, data)
	if err == nil && h.PageCount() < 1 {
		s.dispose(h)
		h, err = nil, fmt.Errorf("document has no pages")
	}
	if err != nil {
		loadErr := types.NewAppErrorWithDetails(types.ErrLoad, "failed to load document", name, err)
		s.clearDocument(types.PhaseError)
		s.docName.Store(name)
		s.fail(errs.StageLoad, 0, loadErr)
		s.docName.Store("")
		return loadErr
	}

	if err := s.install(h); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = data
	s.phase = types.PhaseReady
	s.current = 1
	s.visible = nil
	s.selected, s.editing, s.preview = "", "", nil
	s.busy = false
	s.message = ""
	s.mu.Unlock()
	s.docName.Store(name)

	s.hist.Reset(history.NewSnapshot(data, "open"))
	s.store.Clear()
	s.store.SetPageCount(h.PageCount())
	if s.journal != nil {
		s.journal.RemoveError(errs.RecordID(errs.StageLoad, 0))
	}

	s.log.Info("document loaded", logger.String("name", name), logger.Int("pages", h.PageCount()),
		logger.Int("bytes", len(data)), logger.Duration("elapsed", time.Since(started)))

	s.machine.Reset()
	s.refresh(false)
	s.emit(ChangeDocument, ChangeAnnotations, ChangeSelection, ChangeView)
	return nil
}

// Close ends the session and disposes the document handle. Later calls fail.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	h := s.handle
	s.handle = nil
	s.data = nil
	s.phase = types.PhaseEmpty
	s.visible = nil
	s.selected, s.editing, s.preview = "", "", nil
	s.mu.Unlock()

	s.sched.Close()
	s.machine.Reset()
	s.store.Clear()
	s.hist.Clear()

	if h != nil {
		if err := s.raster.Dispose(h); err != nil {
			s.log.Warn("failed to dispose document", logger.Err(err))
			return err
		}
	}
	s.log.Info("session closed")
	return nil
}

// clearDocument drops the document and everything derived from it.
func (s *Session) clearDocument(phase types.SessionPhase) {
	s.install(nil)

	s.mu.Lock()
	s.data = nil
	s.phase = phase
	s.current = 0
	s.visible = nil
	s.selected, s.editing, s.preview = "", "", nil
	s.busy = false
	s.mu.Unlock()
	s.docName.Store("")

	s.hist.Clear()
	s.store.Clear()
	s.store.SetPageCount(0)
	s.machine.Reset()
	s.emit(ChangeDocument, ChangeAnnotations, ChangeSelection, ChangeView)
}

// install swaps in h, which may be nil. Renders of the old handle are
// drained before it is disposed. If the session was closed meanwhile, h is
// disposed instead.
func (s *Session) install(h render.Handle) error {
	s.sched.Reset(nil)
	s.sched.Wait()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.dispose(h)
		return errClosed()
	}
	old := s.handle
	s.handle = h
	s.sched.Reset(h)
	s.mu.Unlock()

	s.dispose(old)
	return nil
}

func (s *Session) dispose(h render.Handle) {
	if h == nil {
		return
	}
	if err := s.raster.Dispose(h); err != nil {
		s.log.Warn("failed to dispose document", logger.Err(err))
	}
}

func (s *Session) checkOpenLocked() error {
	if s.closed {
		return errClosed()
	}
	return nil
}

func (s *Session) checkDocumentLocked() error {
	if s.closed {
		return errClosed()
	}
	if s.handle == nil {
		return types.NewAppError(types.ErrValidation, "no document loaded", nil)
	}
	return nil
}

// Name returns the document name given to Load or Save.
func (s *Session) Name() string {
	return s.docName.Load().(string)
}

// Data returns the current document bytes. They must not be modified.
func (s *Session) Data() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// PageCount returns the number of pages, 0 without a document.
func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCountLocked()
}

func (s *Session) pageCountLocked() int {
	if s.handle == nil {
		return 0
	}
	return s.handle.PageCount()
}

// Busy reports whether a structural edit, undo or redo is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Status summarizes the session for the UI.
func (s *Session) Status() types.Status {
	t := s.machine.Tool()
	zoom := s.sched.Zoom()

	s.mu.Lock()
	defer s.mu.Unlock()
	return types.Status{
		Phase:       s.phase,
		PageCount:   s.pageCountLocked(),
		CurrentPage: s.current,
		Zoom:        zoom,
		ViewMode:    s.viewMode.String(),
		Tool:        t.String(),
		CanUndo:     s.hist.CanUndo() && !s.busy,
		CanRedo:     s.hist.CanRedo() && !s.busy,
		Selected:    s.selected,
		Message:     s.message,
	}
}

// HistoryLabels lists the labels of the undo snapshots, oldest first.
func (s *Session) HistoryLabels() []string {
	return s.hist.Labels()
}

func (s *Session) emit(changes ...Change) {
	for _, c := range changes {
		s.events.Changed(c)
	}
}

func (s *Session) notify(level Level, code types.ErrorCode, page int, msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
	s.events.Notify(Notification{Level: level, Code: code, Message: msg, Page: page, Time: time.Now()})
}

// fail journals err and turns it into a notification.
func (s *Session) fail(stage errs.ErrorStage, page int, err error) {
	code := types.CodeOf(err)
	level := LevelError
	if code == types.ErrValidation || code == types.ErrBusy {
		level = LevelWarning
	}
	s.log.Error("operation failed", err, logger.String("stage", string(stage)), logger.Page(page))
	if s.journal != nil {
		if jerr := s.journal.RecordError(s.Name(), stage, page, string(code), err.Error()); jerr != nil {
			s.log.Warn("failed to journal error", logger.Err(jerr))
		}
	}
	s.notify(level, code, page, err.Error())
}

func errBusy() error {
	return types.NewAppError(types.ErrBusy, "another edit is in progress", nil)
}

func errClosed() error {
	return types.NewAppError(types.ErrValidation, "session is closed", nil)
}
