package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"pdf-editor/internal/annotation"
	"pdf-editor/internal/config"
	"pdf-editor/internal/coords"
	"pdf-editor/internal/editor"
	errs "pdf-editor/internal/errors"
	"pdf-editor/internal/layout"
	"pdf-editor/internal/logger"
	"pdf-editor/internal/pdf"
	"pdf-editor/internal/render"
	"pdf-editor/internal/session"
	"pdf-editor/internal/tool"
	"pdf-editor/internal/types"
)

// Events emitted to the frontend.
const (
	EventPageRendered   = "page-rendered"
	EventPageFailed     = "page-failed"
	EventNotification   = "notification"
	EventSessionChanged = "session-changed"
)

// PageImage is a rendered page as sent to the frontend.
type PageImage struct {
	Page    int     `json:"page"`
	Zoom    float64 `json:"zoom"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	DataURL string  `json:"dataUrl"`
}

// PageFailure is the payload of EventPageFailed.
type PageFailure struct {
	Page    int    `json:"page"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionUpdate is the payload of EventSessionChanged.
type SessionUpdate struct {
	Change  session.Change `json:"change"`
	Status  types.Status   `json:"status"`
	Visible []int          `json:"visible"`
}

// Settings is the editable part of the configuration.
type Settings struct {
	DefaultZoom     float64 `json:"defaultZoom"`
	ViewMode        string  `json:"viewMode"`
	Rasterizer      string  `json:"rasterizer"`
	HistoryLimit    int     `json:"historyLimit"`
	FontName        string  `json:"fontName"`
	FontSize        float64 `json:"fontSize"`
	Color           string  `json:"color"`
	StrokeWidth     float64 `json:"strokeWidth"`
	WorkDirectory   string  `json:"workDirectory"`
	BackupKeepCount int     `json:"backupKeepCount"`
}

// App struct
type App struct {
	ctx      context.Context
	config   *config.ConfigManager
	errorMgr *errs.ErrorManager
	session  *session.Session
	backups  *editor.BackupManager

	// rasterizer and mutator are created at startup unless set beforehand
	rasterizer      render.Rasterizer
	mutator         session.Mutator
	closeRasterizer func() error
	clock           tool.Clock

	pathMu sync.RWMutex
	path   string

	framesMu sync.RWMutex
	frames   map[int]PageImage
	// frameSeq holds the sequence of the newest render per page; encodes
	// finishing with an older sequence are dropped
	frameSeq map[int]uint64
	lastSeq  uint64
	encodes  sync.WaitGroup

	// isWailsRuntime indicates if the app is running in a Wails environment
	// This is used to safely skip EventsEmit calls during tests
	isWailsRuntime bool
}

// safeEmit safely emits an event to the frontend.
// It only emits events when running in a Wails environment.
func (a *App) safeEmit(eventName string, data ...interface{}) {
	if !a.isWailsRuntime {
		logger.Debug("event emit skipped (not in Wails runtime)",
			logger.String("event", eventName))
		return
	}
	runtime.EventsEmit(a.ctx, eventName, data...)
}

// SetWailsRuntime sets the Wails runtime flag.
// This should be called from main.go when the app is started in Wails mode.
func (a *App) SetWailsRuntime(isWails bool) {
	a.isWailsRuntime = isWails
}

// NewApp creates a new App application struct.
func NewApp() *App {
	return &App{
		frames:   make(map[int]PageImage),
		frameSeq: make(map[int]uint64),
	}
}

// NewAppWithConfig creates a new App with a custom config path.
// This is useful for testing or when a specific configuration location is needed.
func NewAppWithConfig(configPath string) (*App, error) {
	app := NewApp()

	configMgr, err := config.NewConfigManager(configPath)
	if err != nil {
		return nil, err
	}
	app.config = configMgr

	return app, nil
}

// startup is called when the app starts. The context is saved
// so we can call the runtime methods.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	logger.Info("application starting up")

	if a.config == nil {
		configMgr, err := config.NewConfigManager("")
		if err != nil {
			logger.Error("failed to create config manager", err)
			return
		}
		a.config = configMgr
	}

	if err := a.config.Load(); err != nil {
		logger.Warn("failed to load config, using defaults", logger.Err(err))
	}

	if a.errorMgr == nil {
		errorMgr, err := errs.NewErrorManager(a.journalDir())
		if err != nil {
			logger.Warn("failed to open error journal, keeping errors in memory", logger.Err(err))
			errorMgr = errs.NewMemoryErrorManager()
		}
		a.errorMgr = errorMgr
	}

	if err := a.initSession(); err != nil {
		logger.Error("failed to initialize document session", err)
		return
	}

	logger.Info("application startup complete",
		logger.String("rasterizer", a.config.GetRasterizer()))
}

// shutdown is called when the app is closing.
func (a *App) shutdown(ctx context.Context) {
	logger.Info("application shutting down")

	if a.session != nil {
		if err := a.session.Close(); err != nil {
			logger.Warn("failed to close session", logger.Err(err))
		}
	}
	a.waitFrames()
	if a.closeRasterizer != nil {
		if err := a.closeRasterizer(); err != nil {
			logger.Warn("failed to close rasterizer", logger.Err(err))
		}
	}

	logger.Info("application shutdown complete")
}

// journalDir keeps the error journal under the work directory when one is configured.
func (a *App) journalDir() string {
	if dir := a.config.GetWorkDirectory(); dir != "" {
		return filepath.Join(dir, "errors")
	}
	return ""
}

// initRasterizer picks the configured backend and falls back to the other one.
func (a *App) initRasterizer() error {
	if a.rasterizer != nil {
		return nil
	}

	usePoppler := func() error {
		r, err := pdf.NewPopplerRasterizer()
		if err != nil {
			return err
		}
		a.rasterizer = r
		return nil
	}
	usePdfium := func() error {
		r, err := pdf.NewPdfiumRasterizer()
		if err != nil {
			return err
		}
		a.rasterizer = r
		a.closeRasterizer = r.Close
		return nil
	}

	first, second := usePdfium, usePoppler
	if a.config.GetRasterizer() == string(pdf.BackendPoppler) {
		first, second = usePoppler, usePdfium
	}
	err := first()
	if err == nil {
		return nil
	}
	logger.Warn("preferred rasterizer unavailable, trying fallback", logger.Err(err))
	if fallbackErr := second(); fallbackErr != nil {
		return types.NewAppError(types.ErrConfig, "no page rasterizer available", err)
	}
	return nil
}

// initSession creates the document session with the configured defaults.
func (a *App) initSession() error {
	if err := a.initRasterizer(); err != nil {
		return err
	}
	if a.mutator == nil {
		a.mutator = pdf.NewMutator(a.config.GetFontName())
	}

	mode, err := layout.ParseViewMode(a.config.GetViewMode())
	if err != nil {
		logger.Warn("unknown view mode in config, using continuous", logger.Err(err))
		mode = layout.Continuous
	}

	backupDir := ""
	if dir := a.config.GetWorkDirectory(); dir != "" {
		backupDir = filepath.Join(dir, "backups")
	}
	a.backups = editor.NewBackupManager(backupDir)

	s, err := session.New(session.Options{
		Rasterizer:   a.rasterizer,
		Mutator:      a.mutator,
		Display:      frameSurface{a},
		Events:       appEvents{a},
		Journal:      a.errorMgr,
		BackupDir:    backupDir,
		Clock:        a.clock,
		HistoryLimit: a.config.GetHistoryLimit(),
		Zoom:         a.config.GetDefaultZoom(),
		ViewMode:     mode,
		Style: session.Style{
			FontName:    a.config.GetFontName(),
			FontSize:    a.config.GetFontSize(),
			Color:       a.config.GetColor(),
			StrokeWidth: a.config.GetStrokeWidth(),
		},
	})
	if err != nil {
		return err
	}
	a.session = s
	return nil
}

func (a *App) requireSession() error {
	if a.session == nil {
		return types.NewAppError(types.ErrInternal, "editor is not initialized", nil)
	}
	return nil
}

func (a *App) context() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return context.Background()
}

// frameSurface hands finished renders to the frame cache. It runs with the
// scheduler lock held, so encoding happens on a separate goroutine.
type frameSurface struct{ a *App }

func (f frameSurface) Present(fr render.Frame) {
	a := f.a
	a.framesMu.Lock()
	a.lastSeq++
	seq := a.lastSeq
	a.frameSeq[fr.Page] = seq
	a.encodes.Add(1)
	a.framesMu.Unlock()

	go a.encodeFrame(fr, seq)
}

func (f frameSurface) Fail(page int, err error) {
	a := f.a
	a.framesMu.Lock()
	a.lastSeq++
	a.frameSeq[page] = a.lastSeq
	delete(a.frames, page)
	a.framesMu.Unlock()

	a.safeEmit(EventPageFailed, PageFailure{
		Page:    page,
		Code:    string(types.CodeOf(err)),
		Message: err.Error(),
	})
}

// encodeFrame turns fr into a data URL and caches it unless a newer render
// or failure of the page arrived meanwhile.
func (a *App) encodeFrame(fr render.Frame, seq uint64) {
	defer a.encodes.Done()

	var buf bytes.Buffer
	if err := png.Encode(&buf, fr.Image); err != nil {
		logger.Warn("failed to encode page image", logger.Page(fr.Page), logger.Err(err))
		return
	}
	b := fr.Image.Bounds()
	img := PageImage{
		Page:    fr.Page,
		Zoom:    fr.Zoom,
		Width:   b.Dx(),
		Height:  b.Dy(),
		DataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}

	a.framesMu.Lock()
	if a.frameSeq[fr.Page] != seq {
		a.framesMu.Unlock()
		logger.Debug("stale page image dropped", logger.Page(fr.Page))
		return
	}
	a.frames[fr.Page] = img
	a.framesMu.Unlock()

	a.safeEmit(EventPageRendered, img)
}

// waitFrames blocks until every pending encode has finished.
func (a *App) waitFrames() {
	a.encodes.Wait()
}

// appEvents forwards session events to the frontend.
type appEvents struct{ a *App }

func (e appEvents) Notify(n session.Notification) {
	e.a.safeEmit(EventNotification, n)
}

func (e appEvents) Changed(c session.Change) {
	if c == session.ChangeDocument {
		e.a.pruneFrames(e.a.session.PageCount())
	}
	e.a.safeEmit(EventSessionChanged, SessionUpdate{
		Change:  c,
		Status:  e.a.session.Status(),
		Visible: e.a.session.Visible(),
	})
}

// pruneFrames drops bitmaps of pages past the end of the document.
func (a *App) pruneFrames(pageCount int) {
	a.framesMu.Lock()
	for page := range a.frames {
		if page > pageCount {
			delete(a.frames, page)
		}
	}
	for page := range a.frameSeq {
		if page > pageCount {
			delete(a.frameSeq, page)
		}
	}
	a.framesMu.Unlock()
}

func (a *App) clearFrames() {
	a.framesMu.Lock()
	a.frames = make(map[int]PageImage)
	a.frameSeq = make(map[int]uint64)
	a.framesMu.Unlock()
}

// OpenPDFFileDialog opens a file dialog to select a PDF file.
// Returns the selected file path or empty string if cancelled.
func (a *App) OpenPDFFileDialog() string {
	logger.Debug("opening PDF file dialog")
	selection, err := runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title:   "Open PDF",
		Filters: pdfFilters(),
	})
	if err != nil {
		logger.Error("PDF file dialog error", err)
		return ""
	}
	logger.Debug("PDF file selected", logger.String("path", selection))
	return selection
}

func pdfFilters() []runtime.FileFilter {
	return []runtime.FileFilter{
		{DisplayName: "PDF files (*.pdf)", Pattern: "*.pdf"},
		{DisplayName: "All files (*.*)", Pattern: "*.*"},
	}
}

// OpenDocument loads the PDF at path into the editor.
func (a *App) OpenDocument(path string) (types.Status, error) {
	if err := a.requireSession(); err != nil {
		return types.Status{}, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return a.session.Status(), types.NewAppError(types.ErrInvalidInput, "no file selected", nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return a.session.Status(), types.NewAppErrorWithDetails(types.ErrFileNotFound, "file not found", path, err)
		}
		return a.session.Status(), types.NewAppErrorWithDetails(types.ErrLoad, "failed to read file", path, err)
	}

	logger.Info("opening document", logger.String("path", path), logger.Int("bytes", len(data)))
	a.clearFrames()
	if err := a.session.Load(a.context(), filepath.Base(path), data); err != nil {
		a.setPath("")
		return a.session.Status(), err
	}

	a.setPath(path)
	a.config.AddRecentFile(path, a.session.PageCount())
	return a.session.Status(), nil
}

// OpenDocumentDialog asks for a file and opens it. A cancelled dialog is not an error.
func (a *App) OpenDocumentDialog() (types.Status, error) {
	path := a.OpenPDFFileDialog()
	if path == "" {
		if a.session == nil {
			return types.Status{}, nil
		}
		return a.session.Status(), nil
	}
	return a.OpenDocument(path)
}

// CurrentPath returns the file the document was opened from or last saved to.
func (a *App) CurrentPath() string {
	a.pathMu.RLock()
	defer a.pathMu.RUnlock()
	return a.path
}

func (a *App) setPath(path string) {
	a.pathMu.Lock()
	a.path = path
	a.pathMu.Unlock()
}

// SaveDocument writes the document back to the file it came from.
func (a *App) SaveDocument() (string, error) {
	path := a.CurrentPath()
	if path == "" {
		return a.SaveDocumentAs()
	}
	return a.saveTo(path)
}

// SaveDocumentAs asks for a target file and saves there. It returns the
// chosen path, empty when the dialog was cancelled.
func (a *App) SaveDocumentAs() (string, error) {
	if err := a.requireSession(); err != nil {
		return "", err
	}
	defaultFilename := a.session.Name()
	if defaultFilename == "" {
		defaultFilename = "document.pdf"
	}

	savePath, err := runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		Title:           "Save PDF",
		DefaultFilename: defaultFilename,
		Filters:         pdfFilters()[:1],
	})
	if err != nil {
		logger.Error("save dialog error", err)
		return "", types.NewAppError(types.ErrInternal, "failed to open save dialog", err)
	}
	if savePath == "" {
		return "", nil // User cancelled
	}
	return a.saveTo(savePath)
}

func (a *App) saveTo(path string) (string, error) {
	if err := a.requireSession(); err != nil {
		return "", err
	}
	backup, err := a.session.Save(path, a.config.GetBackupKeepCount())
	if err != nil {
		return "", err
	}
	if backup != "" {
		logger.Debug("previous version backed up", logger.String("backup", backup))
	}
	a.setPath(path)
	a.config.AddRecentFile(path, a.session.PageCount())
	return path, nil
}

// ListBackups returns the backups of the current file, newest first.
func (a *App) ListBackups() ([]string, error) {
	path := a.CurrentPath()
	if path == "" || a.backups == nil {
		return []string{}, nil
	}
	backups, err := a.backups.ListBackups(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrInternal, "failed to list backups", err)
	}
	return backups, nil
}

// RestoreBackup copies backupPath over the current file and reopens it.
// Unsaved edits and annotations are discarded.
func (a *App) RestoreBackup(backupPath string) (types.Status, error) {
	if err := a.requireSession(); err != nil {
		return types.Status{}, err
	}
	path := a.CurrentPath()
	if path == "" {
		return a.session.Status(), types.NewAppError(types.ErrValidation, "no file to restore", nil)
	}
	if err := a.backups.Restore(backupPath, path); err != nil {
		return a.session.Status(), types.NewAppErrorWithDetails(types.ErrFileNotFound, "failed to restore backup", backupPath, err)
	}
	return a.OpenDocument(path)
}

// DeleteBackup removes one backup file of the current document.
func (a *App) DeleteBackup(backupPath string) error {
	if a.backups == nil {
		return nil
	}
	if err := a.backups.DeleteBackup(backupPath); err != nil {
		return types.NewAppErrorWithDetails(types.ErrInternal, "failed to delete backup", backupPath, err)
	}
	return nil
}

// GetStatus returns the editor status.
func (a *App) GetStatus() types.Status {
	if a.session == nil {
		return types.Status{Phase: types.PhaseEmpty}
	}
	return a.session.Status()
}

// IsBusy reports whether a page operation is running.
func (a *App) IsBusy() bool {
	return a.session != nil && a.session.Busy()
}

// GetVisiblePages returns the pages the current layout shows.
func (a *App) GetVisiblePages() []int {
	if a.session == nil {
		return nil
	}
	return a.session.Visible()
}

// SetZoom changes the zoom and returns the zoom in effect.
func (a *App) SetZoom(zoom float64) float64 {
	if a.session == nil {
		return zoom
	}
	return a.session.SetZoom(zoom)
}

// SetViewMode switches the page layout.
func (a *App) SetViewMode(name string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	mode, err := layout.ParseViewMode(name)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown view mode", name, err)
	}
	a.session.SetViewMode(mode)
	return nil
}

// GoToPage focuses page and re-renders the layout around it.
func (a *App) GoToPage(page int) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	return a.session.GoToPage(page)
}

// GetPageGeometry returns the size the overlay for page must have.
func (a *App) GetPageGeometry(page int) (session.Geometry, error) {
	if err := a.requireSession(); err != nil {
		return session.Geometry{}, err
	}
	return a.session.PageGeometry(a.context(), page)
}

// GetPageImage returns the latest rendered bitmap of page.
func (a *App) GetPageImage(page int) (PageImage, bool) {
	a.framesMu.RLock()
	defer a.framesMu.RUnlock()
	img, ok := a.frames[page]
	return img, ok
}

// GetPageImages returns the cached bitmaps ordered by page.
func (a *App) GetPageImages() []PageImage {
	a.framesMu.RLock()
	out := make([]PageImage, 0, len(a.frames))
	for _, img := range a.frames {
		out = append(out, img)
	}
	a.framesMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out
}

// SetTool activates the named tool and returns the tool in effect.
func (a *App) SetTool(name string) (string, error) {
	if err := a.requireSession(); err != nil {
		return "", err
	}
	t, err := tool.Parse(name)
	if err != nil {
		return a.session.Tool().String(), types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown tool", name, err)
	}
	return a.session.SetTool(t).String(), nil
}

// Escape returns to the select tool.
func (a *App) Escape() {
	if a.session != nil {
		a.session.Escape()
	}
}

// PointerEvent routes a pointer event from the page overlay. kind is one of
// down, move, up or leave; x and y are overlay pixels from the top left.
func (a *App) PointerEvent(kind string, page int, x, y float64, target string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	e := tool.Event{Page: page, Pos: coords.Point{X: x, Y: y}, Target: target}
	switch strings.ToLower(kind) {
	case "down":
		a.session.PointerDown(e)
	case "move":
		a.session.PointerMove(e)
	case "up":
		a.session.PointerUp(e)
	case "leave":
		a.session.PointerLeave(e)
	default:
		return types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown pointer event", kind, nil)
	}
	return nil
}

// GetAnnotations returns the annotations on page, or all of them when page
// is 0, as tagged JSON.
func (a *App) GetAnnotations(page int) ([]json.RawMessage, error) {
	if err := a.requireSession(); err != nil {
		return nil, err
	}
	list := a.session.AllAnnotations()
	if page > 0 {
		list = a.session.Annotations(page)
	}
	out := make([]json.RawMessage, 0, len(list))
	for _, item := range list {
		data, err := annotation.Marshal(item)
		if err != nil {
			return nil, types.NewAppError(types.ErrInternal, "failed to encode annotation", err)
		}
		out = append(out, data)
	}
	return out, nil
}

// AddTextAnnotation places a text box at document coordinates x, y.
func (a *App) AddTextAnnotation(page int, x, y float64, text string) (string, error) {
	if err := a.requireSession(); err != nil {
		return "", err
	}
	created, err := a.session.CreateAnnotation(&annotation.Text{
		Page:     page,
		X:        x,
		Y:        y,
		Text:     text,
		FontSize: a.config.GetFontSize(),
		Color:    a.config.GetColor(),
	})
	if err != nil {
		return "", err
	}
	return created.AnnotationID(), nil
}

// SetAnnotationText replaces the content of a text annotation.
func (a *App) SetAnnotationText(id, text string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	_, err := a.session.UpdateAnnotation(id, annotation.Patch{Text: &text})
	return err
}

// SetAnnotationStyle changes color and size. Zero values are left alone.
func (a *App) SetAnnotationStyle(id, color string, fontSize, strokeWidth float64) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	var p annotation.Patch
	if color != "" {
		p.Color = &color
	}
	if fontSize > 0 {
		p.FontSize = &fontSize
	}
	if strokeWidth > 0 {
		p.StrokeWidth = &strokeWidth
	}
	_, err := a.session.UpdateAnnotation(id, p)
	return err
}

// MoveAnnotation shifts an annotation by dx, dy document points.
func (a *App) MoveAnnotation(id string, dx, dy float64) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	_, err := a.session.MoveAnnotation(id, dx, dy)
	return err
}

// DeleteAnnotation removes an annotation.
func (a *App) DeleteAnnotation(id string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	return a.session.DeleteAnnotation(id)
}

// SelectAnnotation selects id, or clears the selection when id is empty.
func (a *App) SelectAnnotation(id string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	if id == "" {
		a.session.ClearSelection()
		return nil
	}
	return a.session.SelectAnnotation(id)
}

// BeginTextEdit opens a text annotation in the inline editor.
func (a *App) BeginTextEdit(id string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	return a.session.BeginTextEdit(id)
}

// EndTextEdit closes the inline editor.
func (a *App) EndTextEdit() {
	if a.session != nil {
		a.session.EndTextEdit()
	}
}

// BakeAnnotation writes an annotation into the document.
func (a *App) BakeAnnotation(id string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	return a.session.BakeAnnotation(a.context(), id)
}

// DeletePages deletes the pages named by spec, e.g. "1,3-5".
func (a *App) DeletePages(spec string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	return a.session.DeletePageRanges(a.context(), spec)
}

// ReorderPages puts the pages in the order named by spec, e.g. "3,1-2".
func (a *App) ReorderPages(spec string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	return a.session.ReorderPagesSpec(a.context(), spec)
}

// RotatePage rotates page clockwise by a multiple of 90 degrees.
func (a *App) RotatePage(page, degrees int) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	return a.session.RotatePage(a.context(), page, degrees)
}

// InsertBlankPage adds an empty page after page; 0 inserts at the front.
func (a *App) InsertBlankPage(after int) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	return a.session.InsertBlankPage(a.context(), after)
}

// MergeFiles appends the given PDF files to the document.
func (a *App) MergeFiles(paths []string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	if len(paths) == 0 {
		return types.NewAppError(types.ErrInvalidInput, "no files to merge", nil)
	}
	docs := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return types.NewAppErrorWithDetails(types.ErrFileNotFound, "failed to read file", p, err)
		}
		docs = append(docs, data)
	}
	return a.session.Merge(a.context(), docs...)
}

// MergeFilesDialog asks for PDF files and appends them. It returns the
// number of files merged, 0 when the dialog was cancelled.
func (a *App) MergeFilesDialog() (int, error) {
	paths, err := runtime.OpenMultipleFilesDialog(a.ctx, runtime.OpenDialogOptions{
		Title:   "Append PDF files",
		Filters: pdfFilters(),
	})
	if err != nil {
		logger.Error("merge dialog error", err)
		return 0, types.NewAppError(types.ErrInternal, "failed to open file dialog", err)
	}
	if len(paths) == 0 {
		return 0, nil
	}
	if err := a.MergeFiles(paths); err != nil {
		return 0, err
	}
	return len(paths), nil
}

// Undo restores the previous snapshot. It reports whether anything changed.
func (a *App) Undo() (bool, error) {
	if err := a.requireSession(); err != nil {
		return false, err
	}
	return a.session.Undo(a.context())
}

// Redo re-applies the next snapshot. It reports whether anything changed.
func (a *App) Redo() (bool, error) {
	if err := a.requireSession(); err != nil {
		return false, err
	}
	return a.session.Redo(a.context())
}

// GetHistory lists the undo snapshot labels, oldest first.
func (a *App) GetHistory() []string {
	if a.session == nil {
		return nil
	}
	return a.session.HistoryLabels()
}

// GetSettings returns the editable configuration.
func (a *App) GetSettings() Settings {
	if a.config == nil {
		return Settings{}
	}
	return Settings{
		DefaultZoom:     a.config.GetDefaultZoom(),
		ViewMode:        a.config.GetViewMode(),
		Rasterizer:      a.config.GetRasterizer(),
		HistoryLimit:    a.config.GetHistoryLimit(),
		FontName:        a.config.GetFontName(),
		FontSize:        a.config.GetFontSize(),
		Color:           a.config.GetColor(),
		StrokeWidth:     a.config.GetStrokeWidth(),
		WorkDirectory:   a.config.GetWorkDirectory(),
		BackupKeepCount: a.config.GetBackupKeepCount(),
	}
}

// SaveSettings validates and stores s. Rasterizer and history changes take
// effect on the next start.
func (a *App) SaveSettings(s Settings) error {
	if a.config == nil {
		return types.NewAppError(types.ErrConfig, "configuration is not loaded", nil)
	}
	if s.ViewMode != "" {
		if _, err := layout.ParseViewMode(s.ViewMode); err != nil {
			return types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown view mode", s.ViewMode, err)
		}
	}
	if s.Rasterizer != "" && s.Rasterizer != string(pdf.BackendPdfium) && s.Rasterizer != string(pdf.BackendPoppler) {
		return types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown rasterizer", s.Rasterizer, nil)
	}
	if s.FontName != "" && !pdf.IsStandardFont(s.FontName) {
		return types.NewAppErrorWithDetails(types.ErrInvalidInput, "font must be one of the standard PDF fonts", s.FontName, nil)
	}
	if s.Color != "" {
		if _, err := pdf.ParseColor(s.Color); err != nil {
			return types.NewAppErrorWithDetails(types.ErrInvalidInput, "invalid color", s.Color, err)
		}
	}
	return a.config.UpdateConfig(s.DefaultZoom, s.ViewMode, s.Rasterizer, s.HistoryLimit,
		s.FontName, s.FontSize, s.Color, s.StrokeWidth, s.WorkDirectory)
}

// GetRecentFiles returns recently opened documents, newest first.
func (a *App) GetRecentFiles() []types.RecentFile {
	if a.config == nil {
		return nil
	}
	return a.config.GetRecentFiles()
}

// ClearRecentFiles empties the recent document list.
func (a *App) ClearRecentFiles() error {
	if a.config == nil {
		return nil
	}
	return a.config.ClearRecentFiles()
}

// ListErrors returns the journaled errors, newest first.
func (a *App) ListErrors() []*errs.ErrorRecord {
	if a.errorMgr == nil {
		return []*errs.ErrorRecord{}
	}
	return a.errorMgr.ListErrors()
}

// ClearError removes one journal record.
func (a *App) ClearError(id string) error {
	if a.errorMgr == nil {
		return nil
	}
	return a.errorMgr.RemoveError(id)
}

// ClearAllErrors empties the error journal.
func (a *App) ClearAllErrors() error {
	if a.errorMgr == nil {
		return nil
	}
	return a.errorMgr.ClearAll()
}
