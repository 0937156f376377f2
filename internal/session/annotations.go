package session

import (
	"context"

	"seehuhn.de/go/geom/rect"

	"pdf-editor/internal/annotation"
	"pdf-editor/internal/coords"
	errs "pdf-editor/internal/errors"
	"pdf-editor/internal/logger"
	"pdf-editor/internal/tool"
	"pdf-editor/internal/types"
)

// DefaultText is the content of a text box placed with the addText tool.
const DefaultText = "Text"

// CreateAnnotation adds a to the store and returns the stored copy with its
// new id. Annotations never enter the undo history.
func (s *Session) CreateAnnotation(a annotation.Annotation) (annotation.Annotation, error) {
	s.mu.Lock()
	err := s.checkDocumentLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	created, err := s.store.Create(a)
	if err != nil {
		return nil, err
	}
	s.emit(ChangeAnnotations)
	return created, nil
}

// UpdateAnnotation merges p into the annotation id.
func (s *Session) UpdateAnnotation(id string, p annotation.Patch) (annotation.Annotation, error) {
	updated, err := s.store.Update(id, p)
	if err != nil {
		return nil, err
	}
	s.emit(ChangeAnnotations)
	return updated, nil
}

// MoveAnnotation shifts the annotation id by dx, dy document points.
func (s *Session) MoveAnnotation(id string, dx, dy float64) (annotation.Annotation, error) {
	moved, err := s.store.Translate(id, dx, dy)
	if err != nil {
		return nil, err
	}
	s.emit(ChangeAnnotations)
	return moved, nil
}

// DeleteAnnotation removes id. Deleting the selected annotation clears the
// selection.
func (s *Session) DeleteAnnotation(id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.forget([]string{id})
	s.emit(ChangeAnnotations)
	return nil
}

// Annotation returns the annotation id.
func (s *Session) Annotation(id string) (annotation.Annotation, bool) {
	return s.store.Get(id)
}

// Annotations returns the annotations on page in creation order.
func (s *Session) Annotations(page int) []annotation.Annotation {
	return s.store.ListForPage(page)
}

// AllAnnotations returns every annotation in creation order.
func (s *Session) AllAnnotations() []annotation.Annotation {
	return s.store.All()
}

// forget clears the selection and text edit when they point at a removed id.
func (s *Session) forget(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	changed := false
	for _, id := range ids {
		if s.selected == id {
			s.selected = ""
			changed = true
		}
		if s.editing == id {
			s.editing = ""
		}
	}
	s.mu.Unlock()
	if changed {
		s.emit(ChangeSelection)
	}
}

// Selected returns the selected annotation id, empty when none is.
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SelectAnnotation makes id the single selected annotation.
func (s *Session) SelectAnnotation(id string) error {
	if _, ok := s.store.Get(id); !ok {
		return types.NewAppErrorWithDetails(types.ErrValidation, "annotation not found", id, nil)
	}
	s.mu.Lock()
	changed := s.selected != id
	s.selected = id
	if s.editing != id {
		s.editing = ""
	}
	s.mu.Unlock()
	if changed {
		s.emit(ChangeSelection)
	}
	return nil
}

// ClearSelection deselects any annotation.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	changed := s.selected != ""
	s.selected = ""
	s.mu.Unlock()
	if changed {
		s.emit(ChangeSelection)
	}
}

// Editing returns the id of the text annotation open for inline editing.
func (s *Session) Editing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing
}

// BeginTextEdit opens the text annotation id for inline editing and selects it.
func (s *Session) BeginTextEdit(id string) error {
	a, ok := s.store.Get(id)
	if !ok {
		return types.NewAppErrorWithDetails(types.ErrValidation, "annotation not found", id, nil)
	}
	if _, isText := a.(*annotation.Text); !isText {
		return types.NewAppErrorWithDetails(types.ErrValidation, "only text annotations can be edited inline", id, nil)
	}
	s.mu.Lock()
	s.selected = id
	s.editing = id
	s.mu.Unlock()
	s.emit(ChangeSelection)
	return nil
}

// EndTextEdit closes the inline editor.
func (s *Session) EndTextEdit() {
	s.mu.Lock()
	changed := s.editing != ""
	s.editing = ""
	s.mu.Unlock()
	if changed {
		s.emit(ChangeSelection)
	}
}

// Preview returns the pending text placement marker.
func (s *Session) Preview() (Placement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preview == nil {
		return Placement{}, false
	}
	return *s.preview, true
}

// Tool returns the active editing tool.
func (s *Session) Tool() tool.Tool {
	return s.machine.Tool()
}

// SetTool activates t, or returns to select when t is already active.
func (s *Session) SetTool(t tool.Tool) tool.Tool {
	active := s.machine.SetTool(t)
	s.emit(ChangeTool)
	return active
}

// Escape returns to the select tool and clears the text edit and selection.
func (s *Session) Escape() {
	s.machine.Escape()
	s.emit(ChangeTool)
}

// PointerDown routes a pointer press to the active tool.
func (s *Session) PointerDown(e tool.Event) { s.machine.PointerDown(e) }

// PointerMove routes a pointer move to the active tool.
func (s *Session) PointerMove(e tool.Event) { s.machine.PointerMove(e) }

// PointerUp routes a pointer release to the active tool.
func (s *Session) PointerUp(e tool.Event) { s.machine.PointerUp(e) }

// PointerLeave finishes a gesture whose pointer left the page.
func (s *Session) PointerLeave(e tool.Event) { s.machine.PointerLeave(e) }

// sink applies the gestures recognized by the tool machine.
type sink struct{ s *Session }

func (k sink) Select(id string) {
	if err := k.s.SelectAnnotation(id); err != nil {
		k.s.log.Debug("select ignored", logger.String("id", id), logger.Err(err))
	}
}

func (k sink) ClearSelection() {
	k.s.ClearSelection()
}

func (k sink) MoveAnnotation(id string, dx, dy float64) {
	if _, err := k.s.MoveAnnotation(id, dx, dy); err != nil {
		k.s.log.Debug("move ignored", logger.String("id", id), logger.Err(err))
	}
}

func (k sink) PlaceText(page int, at coords.Point, edit bool) {
	st := k.s.style
	text := DefaultText
	if edit {
		text = ""
	}
	a, err := k.s.CreateAnnotation(&annotation.Text{
		Page:     page,
		X:        at.X,
		Y:        at.Y,
		Text:     text,
		FontSize: st.FontSize,
		Color:    st.Color,
	})
	if err != nil {
		k.s.fail(errs.StageValidate, page, err)
		return
	}
	if edit {
		k.s.BeginTextEdit(a.AnnotationID())
		return
	}
	k.s.SelectAnnotation(a.AnnotationID())
}

func (k sink) FinishDrawing(page int, kind annotation.Kind, path []coords.Point) {
	st := k.s.style
	if _, err := k.s.CreateAnnotation(&annotation.Drawing{
		Page:        page,
		Kind:        kind,
		Path:        path,
		Color:       st.Color,
		StrokeWidth: st.StrokeWidth,
	}); err != nil {
		k.s.fail(errs.StageValidate, page, err)
	}
}

func (k sink) FinishHighlight(page int, area rect.Rect) {
	// failures are already reported by the edit itself
	k.s.BakeHighlight(context.Background(), page, area)
}

func (k sink) PreviewPlacement(page int, at coords.Point, visible bool) {
	s := k.s
	s.mu.Lock()
	if visible {
		s.preview = &Placement{Page: page, At: at}
	} else if s.preview != nil && s.preview.Page == page && s.preview.At == at {
		s.preview = nil
	}
	s.mu.Unlock()
	s.emit(ChangePreview)
}

func (k sink) EndTextEdit() {
	k.s.EndTextEdit()
}
