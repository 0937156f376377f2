package main

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	errs "pdf-editor/internal/errors"
	"pdf-editor/internal/render"
	"pdf-editor/internal/render/rendertest"
	"pdf-editor/internal/tool"
	"pdf-editor/internal/types"
)

// newTestApp starts an App on the in-memory rasterizer with its config in a
// temp dir.
func newTestApp(t *testing.T) (*App, *tool.ManualClock) {
	t.Helper()
	tempDir := t.TempDir()

	app, err := NewAppWithConfig(filepath.Join(tempDir, "config.json"))
	if err != nil {
		t.Fatalf("NewAppWithConfig() returned error: %v", err)
	}
	clock := tool.NewManualClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	app.rasterizer = rendertest.New()
	app.errorMgr = errs.NewMemoryErrorManager()
	app.clock = clock

	app.startup(context.Background())
	if app.session == nil {
		t.Fatal("session should be initialized after startup")
	}
	t.Cleanup(func() { app.shutdown(context.Background()) })
	return app, clock
}

// writeDocument writes an n page test document and returns its path.
func writeDocument(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, rendertest.Letter(n), 0644); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
	return path
}

func TestNewApp(t *testing.T) {
	app := NewApp()
	if app == nil {
		t.Fatal("NewApp() returned nil")
	}
	if status := app.GetStatus(); status.Phase != types.PhaseEmpty {
		t.Errorf("GetStatus() phase = %s, want %s", status.Phase, types.PhaseEmpty)
	}
	if err := app.GoToPage(1); !types.IsCode(err, types.ErrInternal) {
		t.Errorf("GoToPage() before startup error = %v, want INTERNAL_ERROR", err)
	}
}

func TestApp_Startup(t *testing.T) {
	app, _ := newTestApp(t)

	if app.config == nil {
		t.Error("ConfigManager should be initialized after startup")
	}
	if app.mutator == nil {
		t.Error("mutator should be initialized after startup")
	}
	if got := app.GetStatus().Zoom; got != 1 {
		t.Errorf("initial zoom = %v, want 1", got)
	}
	if got := app.GetStatus().ViewMode; got != "continuous" {
		t.Errorf("initial view mode = %q, want continuous", got)
	}
}

func TestApp_OpenDocument(t *testing.T) {
	app, _ := newTestApp(t)
	path := writeDocument(t, 3)

	status, err := app.OpenDocument(path)
	if err != nil {
		t.Fatalf("OpenDocument() returned error: %v", err)
	}
	if status.Phase != types.PhaseReady || status.PageCount != 3 || status.CurrentPage != 1 {
		t.Errorf("OpenDocument() status = %+v", status)
	}
	if app.CurrentPath() != path {
		t.Errorf("CurrentPath() = %q, want %q", app.CurrentPath(), path)
	}

	recent := app.GetRecentFiles()
	if len(recent) != 1 || recent[0].Path != path || recent[0].Pages != 3 {
		t.Errorf("GetRecentFiles() = %+v", recent)
	}

	app.session.Wait()
	app.waitFrames()
	images := app.GetPageImages()
	if len(images) != 3 {
		t.Fatalf("GetPageImages() returned %d pages, want 3", len(images))
	}
	img, ok := app.GetPageImage(1)
	if !ok {
		t.Fatal("page 1 should have a rendered image")
	}
	if !strings.HasPrefix(img.DataURL, "data:image/png;base64,") {
		t.Errorf("DataURL has unexpected prefix: %.40s", img.DataURL)
	}
	if img.Width != 612 || img.Height != 792 {
		t.Errorf("image size = %dx%d, want 612x792", img.Width, img.Height)
	}
}

func TestApp_FrameCacheKeepsNewestRender(t *testing.T) {
	app := NewApp()
	surface := frameSurface{app}
	frame := func(page, w, h int) render.Frame {
		return render.Frame{Page: page, Zoom: 1, Image: image.NewRGBA(image.Rect(0, 0, w, h))}
	}

	surface.Present(frame(1, 10, 10))
	surface.Present(frame(1, 20, 30))
	surface.Present(frame(2, 10, 10))
	surface.Fail(2, errors.New("broken page"))
	app.waitFrames()

	img, ok := app.GetPageImage(1)
	if !ok {
		t.Fatal("page 1 should have a cached image")
	}
	if img.Width != 20 || img.Height != 30 {
		t.Errorf("page 1 image = %dx%d, want the newer 20x30", img.Width, img.Height)
	}
	if _, ok := app.GetPageImage(2); ok {
		t.Error("page 2 failed after its render and should have no image")
	}

	surface.Present(frame(3, 10, 10))
	app.pruneFrames(2)
	app.waitFrames()
	if _, ok := app.GetPageImage(3); ok {
		t.Error("page 3 is past the end of the document and should be dropped")
	}
}

func TestApp_OpenDocumentErrors(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		name string
		path string
		code types.ErrorCode
	}{
		{"empty path", "  ", types.ErrInvalidInput},
		{"missing file", filepath.Join(t.TempDir(), "missing.pdf"), types.ErrFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.OpenDocument(tt.path)
			if !types.IsCode(err, tt.code) {
				t.Errorf("OpenDocument(%q) error = %v, want %s", tt.path, err, tt.code)
			}
		})
	}

	garbage := filepath.Join(t.TempDir(), "garbage.pdf")
	if err := os.WriteFile(garbage, []byte("not a document"), 0644); err != nil {
		t.Fatal(err)
	}
	status, err := app.OpenDocument(garbage)
	if !types.IsCode(err, types.ErrLoad) {
		t.Errorf("OpenDocument(garbage) error = %v, want LOAD_ERROR", err)
	}
	if status.Phase != types.PhaseError || status.PageCount != 0 {
		t.Errorf("status after failed load = %+v", status)
	}
	if app.CurrentPath() != "" {
		t.Errorf("CurrentPath() = %q after failed load", app.CurrentPath())
	}
	if len(app.ListErrors()) == 0 {
		t.Error("failed load should be journaled")
	}
	if err := app.ClearAllErrors(); err != nil {
		t.Fatalf("ClearAllErrors() returned error: %v", err)
	}
	if len(app.ListErrors()) != 0 {
		t.Error("journal should be empty after ClearAllErrors")
	}
}

func TestApp_ViewControls(t *testing.T) {
	app, _ := newTestApp(t)
	if _, err := app.OpenDocument(writeDocument(t, 12)); err != nil {
		t.Fatal(err)
	}

	if got := app.SetZoom(2); got != 2 {
		t.Errorf("SetZoom(2) = %v", got)
	}
	geo, err := app.GetPageGeometry(1)
	if err != nil {
		t.Fatalf("GetPageGeometry() returned error: %v", err)
	}
	if geo.PixelWidth != 1224 || geo.PixelHeight != 1584 {
		t.Errorf("geometry = %+v", geo)
	}

	if err := app.SetViewMode("mosaic"); !types.IsCode(err, types.ErrInvalidInput) {
		t.Errorf("SetViewMode(mosaic) error = %v", err)
	}
	if err := app.SetViewMode("single"); err != nil {
		t.Fatal(err)
	}
	if err := app.GoToPage(7); err != nil {
		t.Fatal(err)
	}
	if got := app.GetVisiblePages(); len(got) != 1 || got[0] != 7 {
		t.Errorf("GetVisiblePages() = %v, want [7]", got)
	}
	if err := app.GoToPage(13); !types.IsCode(err, types.ErrValidation) {
		t.Errorf("GoToPage(13) error = %v", err)
	}
}

func TestApp_PointerEventsPlaceText(t *testing.T) {
	app, clock := newTestApp(t)
	if _, err := app.OpenDocument(writeDocument(t, 1)); err != nil {
		t.Fatal(err)
	}

	if _, err := app.SetTool("lasso"); !types.IsCode(err, types.ErrInvalidInput) {
		t.Errorf("SetTool(lasso) error = %v", err)
	}
	active, err := app.SetTool("addText")
	if err != nil || active != "addText" {
		t.Fatalf("SetTool(addText) = %q, %v", active, err)
	}

	if err := app.PointerEvent("down", 1, 50, 50, ""); err != nil {
		t.Fatal(err)
	}
	clock.Advance(100 * time.Millisecond)
	if err := app.PointerEvent("down", 1, 52, 51, ""); err != nil {
		t.Fatal(err)
	}
	if err := app.PointerEvent("wiggle", 1, 0, 0, ""); !types.IsCode(err, types.ErrInvalidInput) {
		t.Errorf("PointerEvent(wiggle) error = %v", err)
	}

	raw, err := app.GetAnnotations(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 1 {
		t.Fatalf("GetAnnotations(1) returned %d items, want 1", len(raw))
	}
	var decoded struct {
		Type string `json:"type"`
		Text struct {
			ID   string  `json:"id"`
			X    float64 `json:"x"`
			Y    float64 `json:"y"`
			Text string  `json:"text"`
		} `json:"text"`
	}
	if err := json.Unmarshal(raw[0], &decoded); err != nil {
		t.Fatalf("annotation is not valid JSON: %v", err)
	}
	if decoded.Type != "text" || decoded.Text.X != 50 || decoded.Text.Y != 742 {
		t.Errorf("decoded annotation = %+v", decoded)
	}
	if got := app.GetStatus().Selected; got != decoded.Text.ID {
		t.Errorf("selected = %q, want %q", got, decoded.Text.ID)
	}

	if err := app.SetAnnotationText(decoded.Text.ID, "Approved"); err != nil {
		t.Fatal(err)
	}
	if err := app.DeleteAnnotation(decoded.Text.ID); err != nil {
		t.Fatal(err)
	}
	if got := app.GetStatus().Selected; got != "" {
		t.Errorf("selection should be cleared, got %q", got)
	}
}

func TestApp_SelectAndDragByTarget(t *testing.T) {
	app, _ := newTestApp(t)
	if _, err := app.OpenDocument(writeDocument(t, 1)); err != nil {
		t.Fatal(err)
	}
	id, err := app.AddTextAnnotation(1, 100, 100, "Note")
	if err != nil {
		t.Fatal(err)
	}

	// (100, 100) in document points is (100, 692) in the viewport at zoom 1
	if err := app.PointerEvent("down", 1, 102, 690, id); err != nil {
		t.Fatal(err)
	}
	if got := app.GetStatus().Selected; got != id {
		t.Errorf("selected = %q, want %q", got, id)
	}
	if err := app.PointerEvent("move", 1, 112, 680, ""); err != nil {
		t.Fatal(err)
	}
	if err := app.PointerEvent("up", 1, 112, 680, ""); err != nil {
		t.Fatal(err)
	}

	raw, err := app.GetAnnotations(1)
	if err != nil || len(raw) != 1 {
		t.Fatalf("GetAnnotations(1) = %d items, %v", len(raw), err)
	}
	var decoded struct {
		Text struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"text"`
	}
	if err := json.Unmarshal(raw[0], &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Text.X != 110 || decoded.Text.Y != 110 {
		t.Errorf("dragged annotation at (%v, %v), want (110, 110)", decoded.Text.X, decoded.Text.Y)
	}

	if err := app.PointerEvent("down", 1, 400, 300, ""); err != nil {
		t.Fatal(err)
	}
	if got := app.GetStatus().Selected; got != "" {
		t.Errorf("click on empty area should clear the selection, got %q", got)
	}
}

func TestApp_AnnotationValidation(t *testing.T) {
	app, _ := newTestApp(t)
	if _, err := app.AddTextAnnotation(1, 10, 10, "x"); !types.IsCode(err, types.ErrValidation) {
		t.Errorf("AddTextAnnotation() without document error = %v", err)
	}

	if _, err := app.OpenDocument(writeDocument(t, 2)); err != nil {
		t.Fatal(err)
	}
	if _, err := app.AddTextAnnotation(3, 10, 10, "x"); !types.IsCode(err, types.ErrValidation) {
		t.Errorf("AddTextAnnotation() on page 3 error = %v", err)
	}
	id, err := app.AddTextAnnotation(2, 10, 10, "x")
	if err != nil {
		t.Fatal(err)
	}
	if err := app.SetAnnotationStyle(id, "#ff0000", 18, 0); err != nil {
		t.Errorf("SetAnnotationStyle() error = %v", err)
	}
	if err := app.SelectAnnotation("missing"); !types.IsCode(err, types.ErrValidation) {
		t.Errorf("SelectAnnotation(missing) error = %v", err)
	}
}

func TestApp_FailedPageOperationKeepsDocument(t *testing.T) {
	app, _ := newTestApp(t)
	path := writeDocument(t, 3)
	if _, err := app.OpenDocument(path); err != nil {
		t.Fatal(err)
	}
	before := app.session.Data()

	// the real mutator cannot read the test document format
	if err := app.RotatePage(1, 90); err == nil {
		t.Fatal("RotatePage() should fail")
	}
	if err := app.RotatePage(1, 45); !types.IsCode(err, types.ErrValidation) {
		t.Errorf("RotatePage(45) error = %v", err)
	}
	if err := app.DeletePages("1-3"); !types.IsCode(err, types.ErrValidation) {
		t.Errorf("DeletePages(all) error = %v", err)
	}
	if err := app.MergeFiles(nil); !types.IsCode(err, types.ErrInvalidInput) {
		t.Errorf("MergeFiles(nil) error = %v", err)
	}

	status := app.GetStatus()
	if status.Phase != types.PhaseReady || status.PageCount != 3 {
		t.Errorf("status after failed edits = %+v", status)
	}
	if string(app.session.Data()) != string(before) {
		t.Error("document bytes changed after failed edits")
	}
	if len(app.GetHistory()) != 1 {
		t.Errorf("GetHistory() = %v, want only the opened snapshot", app.GetHistory())
	}
	if changed, err := app.Undo(); err != nil || changed {
		t.Errorf("Undo() = %v, %v; want nothing to undo", changed, err)
	}
	if len(app.ListErrors()) == 0 {
		t.Error("failed edits should be journaled")
	}
}

func TestApp_SaveDocument(t *testing.T) {
	app, _ := newTestApp(t)
	path := writeDocument(t, 2)
	if _, err := app.OpenDocument(path); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(t.TempDir(), "copy.pdf")
	saved, err := app.saveTo(target)
	if err != nil {
		t.Fatalf("saveTo() returned error: %v", err)
	}
	if saved != target || app.CurrentPath() != target {
		t.Errorf("saved = %q, CurrentPath() = %q", saved, app.CurrentPath())
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(rendertest.Letter(2)) {
		t.Error("saved bytes differ from the document")
	}
	if got := app.GetStatus().Message; got != "saved copy.pdf" {
		t.Errorf("status message = %q", got)
	}
}

func TestApp_Settings(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		name     string
		settings Settings
	}{
		{"view mode", Settings{ViewMode: "mosaic"}},
		{"rasterizer", Settings{Rasterizer: "ghostscript"}},
		{"font", Settings{FontName: "Comic Sans"}},
		{"color", Settings{Color: "red"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := app.SaveSettings(tt.settings); !types.IsCode(err, types.ErrInvalidInput) {
				t.Errorf("SaveSettings(%+v) error = %v", tt.settings, err)
			}
		})
	}

	if err := app.SaveSettings(Settings{ViewMode: "grid", FontName: "Courier", Color: "#336699", FontSize: 11}); err != nil {
		t.Fatalf("SaveSettings() returned error: %v", err)
	}
	got := app.GetSettings()
	if got.ViewMode != "grid" || got.FontName != "Courier" || got.Color != "#336699" || got.FontSize != 11 {
		t.Errorf("GetSettings() = %+v", got)
	}
	if got.HistoryLimit != 50 {
		t.Errorf("unset HistoryLimit = %d, want default 50", got.HistoryLimit)
	}

	if err := app.ClearRecentFiles(); err != nil {
		t.Fatal(err)
	}
	if len(app.GetRecentFiles()) != 0 {
		t.Error("recent files should be empty")
	}
}

func TestApp_Backups(t *testing.T) {
	app, _ := newTestApp(t)
	backups, err := app.ListBackups()
	if err != nil || len(backups) != 0 {
		t.Errorf("ListBackups() without document = %v, %v", backups, err)
	}

	path := writeDocument(t, 2)
	if _, err := app.OpenDocument(path); err != nil {
		t.Fatal(err)
	}
	if _, err := app.SaveDocument(); err != nil {
		t.Fatalf("SaveDocument() returned error: %v", err)
	}
	backups, err = app.ListBackups()
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 1 {
		t.Fatalf("ListBackups() = %v, want one backup", backups)
	}

	if err := os.WriteFile(path, rendertest.Letter(5), 0644); err != nil {
		t.Fatal(err)
	}
	status, err := app.RestoreBackup(backups[0])
	if err != nil {
		t.Fatalf("RestoreBackup() returned error: %v", err)
	}
	if status.PageCount != 2 {
		t.Errorf("restored document has %d pages, want 2", status.PageCount)
	}

	if err := app.DeleteBackup(backups[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := app.RestoreBackup(backups[0]); !types.IsCode(err, types.ErrFileNotFound) {
		t.Errorf("RestoreBackup(deleted) error = %v", err)
	}
}
