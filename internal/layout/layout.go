// Package layout decides which pages are on screen for a view mode.
package layout

import (
	"fmt"
	"strings"
)

// ViewMode selects how pages are arranged.
type ViewMode int

const (
	// Single shows the focus page only
	Single ViewMode = iota
	// Continuous is a scrolling strip with look-ahead
	Continuous
	// Paired shows two pages side by side
	Paired
	// Grid shows an aligned block of GridSize pages
	Grid
)

const (
	// GridSize is the number of pages in one grid block
	GridSize = 4
	// ContinuousBehind is how many pages before the focus page stay rendered
	ContinuousBehind = 3
	// ContinuousAhead is how many pages after the focus page are rendered
	ContinuousAhead = 8
)

var modeNames = map[ViewMode]string{
	Single:     "single",
	Continuous: "continuous",
	Paired:     "paired",
	Grid:       "grid",
}

func (m ViewMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ViewMode(%d)", int(m))
}

// ParseViewMode maps a mode name to a ViewMode.
func ParseViewMode(name string) (ViewMode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for mode, n := range modeNames {
		if n == name {
			return mode, nil
		}
	}
	return Single, fmt.Errorf("unknown view mode %q", name)
}

// Compute returns the ordered page numbers to render for mode around focus.
// focus is clamped to [1, pageCount]; an empty document yields no pages.
func Compute(mode ViewMode, focus, pageCount int) []int {
	if pageCount < 1 {
		return nil
	}
	if focus < 1 {
		focus = 1
	}
	if focus > pageCount {
		focus = pageCount
	}

	switch mode {
	case Continuous:
		return span(max(1, focus-ContinuousBehind), min(pageCount, focus+ContinuousAhead))
	case Paired:
		return span(focus, min(focus+1, pageCount))
	case Grid:
		start := (focus-1)/GridSize*GridSize + 1
		return span(start, min(pageCount, start+GridSize-1))
	default:
		return []int{focus}
	}
}

func span(from, to int) []int {
	pages := make([]int, 0, to-from+1)
	for p := from; p <= to; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Change is the difference between two page sets.
type Change struct {
	// Leave lists pages whose renders must be cancelled
	Leave []int
	// Enter lists pages that must be scheduled
	Enter []int
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool {
	return len(c.Leave) == 0 && len(c.Enter) == 0
}

// Diff compares the previous and next page sets. Pages keep the order of the
// list they come from.
func Diff(prev, next []int) Change {
	inPrev := make(map[int]bool, len(prev))
	for _, p := range prev {
		inPrev[p] = true
	}
	inNext := make(map[int]bool, len(next))
	for _, p := range next {
		inNext[p] = true
	}

	var c Change
	for _, p := range prev {
		if !inNext[p] {
			c.Leave = append(c.Leave, p)
		}
	}
	for _, p := range next {
		if !inPrev[p] {
			c.Enter = append(c.Enter, p)
		}
	}
	return c
}
