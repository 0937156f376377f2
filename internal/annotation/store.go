package annotation

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"pdf-editor/internal/coords"
	"pdf-editor/internal/logger"
	"pdf-editor/internal/types"
)

// Patch lists the fields to change in Update. Nil fields are left alone.
// Fields that do not exist on the annotation's variant are rejected.
type Patch struct {
	Page        *int
	X           *float64
	Y           *float64
	Text        *string
	FontSize    *float64
	Color       *string
	Path        []coords.Point
	StrokeWidth *float64
}

// Store keeps annotations in creation order. Values handed out are copies.
type Store struct {
	mu        sync.RWMutex
	pageCount int
	order     []string
	items     map[string]Annotation
	newID     func() string
	log       logger.Logger
}

// NewStore creates an empty store for a document of pageCount pages.
func NewStore(pageCount int) *Store {
	return &Store{
		pageCount: pageCount,
		items:     make(map[string]Annotation),
		newID:     uuid.NewString,
		log:       logger.Named("annotation"),
	}
}

// PageCount returns the page range annotations are validated against.
func (s *Store) PageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageCount
}

// SetPageCount changes the valid page range. Existing annotations are not
// touched; see Remap and Prune.
func (s *Store) SetPageCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageCount = n
}

func (s *Store) checkPage(page int) error {
	if page < 1 || page > s.pageCount {
		return types.NewAppErrorWithDetails(types.ErrValidation, "annotation page out of range",
			fmt.Sprintf("page %d of %d", page, s.pageCount), nil)
	}
	return nil
}

// Create stores a copy of a under a fresh id and returns that copy.
func (s *Store) Create(a Annotation) (Annotation, error) {
	if a == nil {
		return nil, types.NewAppError(types.ErrValidation, "nil annotation", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPage(a.PageNumber()); err != nil {
		return nil, err
	}
	if d, ok := a.(*Drawing); ok {
		if err := d.validate(); err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrValidation, "invalid drawing", err.Error(), err)
		}
	}

	stored := a.clone()
	stored.setID(s.newID())
	s.items[stored.AnnotationID()] = stored
	s.order = append(s.order, stored.AnnotationID())

	s.log.Debug("annotation created", logger.String("id", stored.AnnotationID()),
		logger.Page(stored.PageNumber()), logger.String("type", fmt.Sprintf("%T", stored)))
	return stored.clone(), nil
}

// Update merges p into the annotation with id and returns the result.
func (s *Store) Update(id string, p Patch) (Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[id]
	if !ok {
		return nil, notFound(id)
	}
	if p.Page != nil {
		if err := s.checkPage(*p.Page); err != nil {
			return nil, err
		}
	}

	next := current.clone()
	if err := apply(next, p); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrValidation, "invalid annotation update", err.Error(), err)
	}
	s.items[id] = next
	return next.clone(), nil
}

func apply(a Annotation, p Patch) error {
	if p.Page != nil {
		a.setPage(*p.Page)
	}
	switch v := a.(type) {
	case *Text:
		if p.Path != nil || p.StrokeWidth != nil {
			return fmt.Errorf("path and stroke width do not apply to text")
		}
		setFloat(&v.X, p.X)
		setFloat(&v.Y, p.Y)
		setFloat(&v.FontSize, p.FontSize)
		if p.Text != nil {
			v.Text = *p.Text
		}
		if p.Color != nil {
			v.Color = *p.Color
		}
	case *Drawing:
		if p.X != nil || p.Y != nil || p.Text != nil || p.FontSize != nil {
			return fmt.Errorf("position, text and font size do not apply to drawings")
		}
		if p.Path != nil {
			v.Path = append([]coords.Point(nil), p.Path...)
		}
		setFloat(&v.StrokeWidth, p.StrokeWidth)
		if p.Color != nil {
			v.Color = *p.Color
		}
		return v.validate()
	}
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// Translate moves an annotation by (dx, dy) document points. Both variants
// move, which is what dragging needs.
func (s *Store) Translate(id string, dx, dy float64) (Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[id]
	if !ok {
		return nil, notFound(id)
	}
	next := current.clone()
	switch v := next.(type) {
	case *Text:
		v.X += dx
		v.Y += dy
	case *Drawing:
		for i := range v.Path {
			v.Path[i] = v.Path[i].Add(coords.Point{X: dx, Y: dy})
		}
	}
	s.items[id] = next
	return next.clone(), nil
}

// Delete removes the annotation with id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return notFound(id)
	}
	s.removeLocked(id)
	s.log.Debug("annotation deleted", logger.String("id", id))
	return nil
}

func (s *Store) removeLocked(id string) {
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the annotation with id.
func (s *Store) Get(id string) (Annotation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return a.clone(), true
}

// ListForPage returns the annotations on page in creation order.
func (s *Store) ListForPage(page int) []Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Annotation
	for _, id := range s.order {
		if a := s.items[id]; a.PageNumber() == page {
			out = append(out, a.clone())
		}
	}
	return out
}

// All returns every annotation in creation order.
func (s *Store) All() []Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Annotation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].clone())
	}
	return out
}

// Len returns the number of annotations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Clear removes every annotation.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]Annotation)
	s.order = nil
}

// Remap moves annotations to new page numbers after a structural edit.
// fn returns the new page and whether the page still exists; annotations
// whose page is gone are removed and their ids returned.
func (s *Store) Remap(fn func(page int) (int, bool)) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for _, id := range append([]string(nil), s.order...) {
		a := s.items[id]
		page, ok := fn(a.PageNumber())
		if !ok {
			s.removeLocked(id)
			removed = append(removed, id)
			continue
		}
		if page != a.PageNumber() {
			next := a.clone()
			next.setPage(page)
			s.items[id] = next
		}
	}
	if len(removed) > 0 {
		s.log.Info("annotations dropped with their pages", logger.Int("count", len(removed)))
	}
	return removed
}

// Prune removes annotations outside [1, PageCount] and returns their ids.
func (s *Store) Prune() []string {
	n := s.PageCount()
	return s.Remap(func(page int) (int, bool) {
		return page, page >= 1 && page <= n
	})
}

func notFound(id string) error {
	return types.NewAppErrorWithDetails(types.ErrValidation, "annotation not found", id, nil)
}
