package tool

import (
	"sync"
	"time"

	"seehuhn.de/go/geom/rect"

	"pdf-editor/internal/annotation"
	"pdf-editor/internal/coords"
	"pdf-editor/internal/logger"
)

// Double-click thresholds for text placement.
const (
	DoubleClickWindow   = 300 * time.Millisecond
	DoubleClickDistance = 10.0 // viewport pixels
)

// Event is a pointer event. Pos is in viewport pixels relative to the top-left
// corner of the rendered page. Target is the id of the annotation under the
// pointer, or empty for the bare overlay.
type Event struct {
	Page   int
	Pos    coords.Point
	Target string
}

// Viewport supplies the geometry needed to convert pointer positions. It is
// called with the machine's lock held and must not call back into the Machine.
type Viewport interface {
	PageSize(page int) (coords.Size, bool)
	Zoom() float64
}

// Sink receives the outcome of gestures. Positions are in document points.
// Sink methods are never called with the machine's lock held, so they may
// call back into the Machine.
type Sink interface {
	Select(id string)
	ClearSelection()
	MoveAnnotation(id string, dx, dy float64)
	// PlaceText creates a text annotation at the baseline origin at; edit
	// opens it for inline editing.
	PlaceText(page int, at coords.Point, edit bool)
	FinishDrawing(page int, kind annotation.Kind, path []coords.Point)
	FinishHighlight(page int, area rect.Rect)
	// PreviewPlacement shows or hides the pending text placement marker.
	PreviewPlacement(page int, at coords.Point, visible bool)
	EndTextEdit()
}

// handler is the per-tool pointer routine set.
type handler struct {
	OnDown func(m *Machine, e Event)
	OnMove func(m *Machine, e Event)
	OnUp   func(m *Machine, e Event)
}

type pendingClick struct {
	page  int
	pos   coords.Point
	at    time.Time
	timer Timer
}

type drag struct {
	id   string
	last coords.Point
}

// Machine is the tool state machine. It is safe for concurrent use; preview
// timeouts fire on the clock's goroutine.
type Machine struct {
	clock    Clock
	sink     Sink
	view     Viewport
	handlers map[Tool]handler
	log      logger.Logger

	mu      sync.Mutex
	tool    Tool
	capture []coords.Point
	page    int
	drag    *drag
	pending *pendingClick
	// effects are sink calls queued under mu and run after unlocking
	effects []func()
}

// NewMachine returns a machine in the select tool. A nil clock means SystemClock.
func NewMachine(view Viewport, sink Sink, clock Clock) *Machine {
	if clock == nil {
		clock = SystemClock{}
	}
	m := &Machine{
		clock: clock,
		sink:  sink,
		view:  view,
		log:   logger.Named("tool"),
	}

	capture := handler{OnDown: (*Machine).beginCapture, OnMove: (*Machine).extendCapture, OnUp: (*Machine).endCapture}
	m.handlers = map[Tool]handler{
		Select:    {OnDown: (*Machine).selectDown, OnMove: (*Machine).selectMove, OnUp: (*Machine).selectUp},
		AddText:   {OnDown: (*Machine).addTextDown},
		Annotate:  {OnDown: (*Machine).annotateDown},
		Freehand:  capture,
		Rectangle: capture,
		Circle:    capture,
		Line:      capture,
		Arrow:     capture,
		Highlight: capture,
	}
	return m
}

// Tool returns the active tool.
func (m *Machine) Tool() Tool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tool
}

// SetTool activates t. Activating the active tool returns to Select.
// Any switch drops in-progress gestures. It returns the new active tool.
func (m *Machine) SetTool(t Tool) Tool {
	m.mu.Lock()
	if t == m.tool {
		t = Select
	}
	if t != m.tool {
		m.log.Debug("tool changed", logger.String("from", m.tool.String()), logger.String("to", t.String()))
	}
	m.tool = t
	m.resetLocked()
	m.unlockAndFlush()
	return t
}

// Escape returns to Select from any state and clears any text edit and
// selection.
func (m *Machine) Escape() {
	m.mu.Lock()
	m.tool = Select
	m.resetLocked()
	m.queue(m.sink.EndTextEdit)
	m.queue(m.sink.ClearSelection)
	m.unlockAndFlush()
}

// Reset drops in-progress gestures without changing the tool, e.g. when the
// document is reloaded.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.resetLocked()
	m.unlockAndFlush()
}

// Capture returns the page and viewport path of the gesture in progress.
func (m *Machine) Capture() (page int, path []coords.Point, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capture == nil {
		return 0, nil, false
	}
	return m.page, append([]coords.Point(nil), m.capture...), true
}

// PointerDown routes a press to the active tool.
func (m *Machine) PointerDown(e Event) { m.dispatch(e, func(h handler) func(*Machine, Event) { return h.OnDown }) }

// PointerMove routes a move to the active tool.
func (m *Machine) PointerMove(e Event) { m.dispatch(e, func(h handler) func(*Machine, Event) { return h.OnMove }) }

// PointerUp routes a release to the active tool.
func (m *Machine) PointerUp(e Event) { m.dispatch(e, func(h handler) func(*Machine, Event) { return h.OnUp }) }

// PointerLeave is treated as a release so a drag that exits the page still
// finishes.
func (m *Machine) PointerLeave(e Event) { m.PointerUp(e) }

func (m *Machine) dispatch(e Event, pick func(handler) func(*Machine, Event)) {
	m.mu.Lock()
	if fn := pick(m.handlers[m.tool]); fn != nil {
		fn(m, e)
	}
	m.unlockAndFlush()
}

func (m *Machine) queue(f func()) {
	m.effects = append(m.effects, f)
}

func (m *Machine) unlockAndFlush() {
	effects := m.effects
	m.effects = nil
	m.mu.Unlock()
	for _, f := range effects {
		f()
	}
}

// resetLocked clears capture, drag and pending click state.
func (m *Machine) resetLocked() {
	m.capture = nil
	m.page = 0
	m.drag = nil
	m.clearPendingLocked()
}

func (m *Machine) clearPendingLocked() {
	p := m.pending
	if p == nil {
		return
	}
	p.timer.Stop()
	m.pending = nil
	if at, ok := m.toDocument(p.page, p.pos); ok {
		m.queue(func() { m.sink.PreviewPlacement(p.page, at, false) })
	}
}

func (m *Machine) toDocument(page int, v coords.Point) (coords.Point, bool) {
	size, ok := m.view.PageSize(page)
	if !ok {
		return coords.Point{}, false
	}
	return coords.ToDocument(v, size, m.view.Zoom()), true
}

// select tool

func (m *Machine) selectDown(e Event) {
	if e.Target == "" {
		m.drag = nil
		m.queue(m.sink.ClearSelection)
		return
	}
	id := e.Target
	m.drag = &drag{id: id, last: e.Pos}
	m.queue(func() { m.sink.Select(id) })
}

func (m *Machine) selectMove(e Event) {
	if m.drag == nil {
		return
	}
	zoom := m.view.Zoom()
	if zoom <= 0 {
		return
	}
	delta := e.Pos.Sub(m.drag.last)
	if delta.X == 0 && delta.Y == 0 {
		return
	}
	m.drag.last = e.Pos
	id := m.drag.id
	// viewport Y grows downwards, document Y upwards
	dx, dy := delta.X/zoom, -delta.Y/zoom
	m.queue(func() { m.sink.MoveAnnotation(id, dx, dy) })
}

func (m *Machine) selectUp(e Event) {
	m.drag = nil
}

// addText tool: a second click close in time and space confirms placement at
// the first click; a lone click only shows a preview that expires.

func (m *Machine) addTextDown(e Event) {
	now := m.clock.Now()

	if p := m.pending; p != nil && p.page == e.Page &&
		now.Sub(p.at) <= DoubleClickWindow &&
		coords.Distance(p.pos, e.Pos) <= DoubleClickDistance {
		m.clearPendingLocked()
		at, ok := m.toDocument(p.page, p.pos)
		if !ok {
			return
		}
		page := p.page
		m.log.Debug("text placement confirmed", logger.Page(page))
		m.queue(func() { m.sink.PlaceText(page, at, false) })
		return
	}

	m.clearPendingLocked()
	at, ok := m.toDocument(e.Page, e.Pos)
	if !ok {
		return
	}
	p := &pendingClick{page: e.Page, pos: e.Pos, at: now}
	p.timer = m.clock.AfterFunc(DoubleClickWindow, func() { m.expire(p) })
	m.pending = p
	page := e.Page
	m.queue(func() { m.sink.PreviewPlacement(page, at, true) })
}

// expire clears the preview of p unless a newer click replaced it. A click
// at exactly DoubleClickWindow still confirms, so the preview outlives the
// window by the smallest clock step.
func (m *Machine) expire(p *pendingClick) {
	m.mu.Lock()
	if m.pending == p {
		if left := DoubleClickWindow - m.clock.Now().Sub(p.at); left >= 0 {
			p.timer = m.clock.AfterFunc(left+time.Nanosecond, func() { m.expire(p) })
		} else {
			m.clearPendingLocked()
		}
	}
	m.unlockAndFlush()
}

// annotate tool

func (m *Machine) annotateDown(e Event) {
	if e.Target != "" {
		id := e.Target
		m.queue(func() { m.sink.Select(id) })
		return
	}
	at, ok := m.toDocument(e.Page, e.Pos)
	if !ok {
		return
	}
	page := e.Page
	m.queue(func() { m.sink.PlaceText(page, at, true) })
}

// drawing and highlight tools

func (m *Machine) beginCapture(e Event) {
	if _, ok := m.view.PageSize(e.Page); !ok {
		return
	}
	m.page = e.Page
	m.capture = []coords.Point{e.Pos}
}

func (m *Machine) extendCapture(e Event) {
	if m.capture == nil {
		return
	}
	if m.tool == Freehand {
		m.capture = append(m.capture, e.Pos)
		return
	}
	m.capture = []coords.Point{m.capture[0], e.Pos}
}

func (m *Machine) endCapture(e Event) {
	path, page, t := m.capture, m.page, m.tool
	m.capture = nil
	m.page = 0
	if path == nil {
		return
	}

	size, ok := m.view.PageSize(page)
	if !ok {
		return
	}
	zoom := m.view.Zoom()

	if t == Highlight {
		if len(path) < 2 {
			return
		}
		area := coords.RectToDocument(path[0], path[1], size, zoom)
		if area.URx-area.LLx <= 0 || area.URy-area.LLy <= 0 {
			return
		}
		m.queue(func() { m.sink.FinishHighlight(page, area) })
		return
	}

	kind, _ := t.DrawingKind()
	if kind.IsShape() && len(path) < 2 {
		return
	}
	doc := make([]coords.Point, len(path))
	for i, v := range path {
		doc[i] = coords.ToDocument(v, size, zoom)
	}
	m.queue(func() { m.sink.FinishDrawing(page, kind, doc) })
}
