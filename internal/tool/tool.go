// Package tool routes pointer events according to the active editing tool.
package tool

import (
	"fmt"
	"strings"

	"pdf-editor/internal/annotation"
)

// Tool is the active editing mode. Exactly one is active at a time.
type Tool int

const (
	Select Tool = iota
	AddText
	Freehand
	Rectangle
	Circle
	Line
	Arrow
	Highlight
	Annotate
)

var toolNames = []string{
	Select:    "select",
	AddText:   "addText",
	Freehand:  "freehand",
	Rectangle: "rectangle",
	Circle:    "circle",
	Line:      "line",
	Arrow:     "arrow",
	Highlight: "highlight",
	Annotate:  "annotate",
}

func (t Tool) String() string {
	if t >= 0 && int(t) < len(toolNames) {
		return toolNames[t]
	}
	return fmt.Sprintf("Tool(%d)", int(t))
}

// Parse maps a tool name, case-insensitively, to a Tool.
func Parse(name string) (Tool, error) {
	name = strings.TrimSpace(name)
	for i, n := range toolNames {
		if strings.EqualFold(n, name) {
			return Tool(i), nil
		}
	}
	return Select, fmt.Errorf("unknown tool %q", name)
}

// DrawingKind returns the annotation kind a drawing tool produces.
func (t Tool) DrawingKind() (annotation.Kind, bool) {
	switch t {
	case Freehand:
		return annotation.Freehand, true
	case Rectangle:
		return annotation.Rectangle, true
	case Circle:
		return annotation.Circle, true
	case Line:
		return annotation.Line, true
	case Arrow:
		return annotation.Arrow, true
	}
	return "", false
}

// Captures reports whether the tool records a drag path.
func (t Tool) Captures() bool {
	_, drawing := t.DrawingKind()
	return drawing || t == Highlight
}
