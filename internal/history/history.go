// Package history is a bounded undo/redo stack of whole-document snapshots.
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultMax is the snapshot cap used when none is given.
const DefaultMax = 50

// Snapshot is one immutable document state. Data must not be modified.
type Snapshot struct {
	Data      []byte
	Hash      string
	Label     string
	CreatedAt time.Time
}

// NewSnapshot hashes data and stamps the snapshot.
func NewSnapshot(data []byte, label string) Snapshot {
	sum := sha256.Sum256(data)
	return Snapshot{
		Data:      data,
		Hash:      hex.EncodeToString(sum[:]),
		Label:     label,
		CreatedAt: time.Now(),
	}
}

// History is a linear stack with a cursor. Invariant: 0 <= index < len <= max,
// or empty with index -1.
type History struct {
	mu      sync.RWMutex
	max     int
	entries []Snapshot
	index   int
}

// New returns an empty history holding at most max snapshots.
func New(max int) *History {
	if max < 1 {
		max = DefaultMax
	}
	return &History{max: max, index: -1}
}

// Max returns the snapshot cap.
func (h *History) Max() int {
	return h.max
}

// Push discards any redo entries, appends s and moves the cursor to it.
// The oldest entry is evicted once the cap is exceeded.
func (h *History) Push(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries[:h.index+1], s)
	if len(h.entries) > h.max {
		drop := len(h.entries) - h.max
		// copy so evicted snapshots are not pinned by the backing array
		h.entries = append([]Snapshot(nil), h.entries[drop:]...)
	}
	h.index = len(h.entries) - 1
}

// Reset replaces the whole history with a single base snapshot.
func (h *History) Reset(base Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = []Snapshot{base}
	h.index = 0
}

// Clear empties the history.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.index = -1
}

// CanUndo reports whether Undo would move the cursor.
func (h *History) CanUndo() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index > 0
}

// CanRedo reports whether Redo would move the cursor.
func (h *History) CanRedo() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index >= 0 && h.index < len(h.entries)-1
}

// PeekUndo returns the snapshot Undo would move to, without moving.
func (h *History) PeekUndo() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.index <= 0 {
		return Snapshot{}, false
	}
	return h.entries[h.index-1], true
}

// PeekRedo returns the snapshot Redo would move to, without moving.
func (h *History) PeekRedo() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.index < 0 || h.index >= len(h.entries)-1 {
		return Snapshot{}, false
	}
	return h.entries[h.index+1], true
}

// Undo moves the cursor back. At the oldest entry it is a no-op and reports false.
func (h *History) Undo() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index <= 0 {
		return Snapshot{}, false
	}
	h.index--
	return h.entries[h.index], true
}

// Redo moves the cursor forward. At the newest entry it is a no-op and reports false.
func (h *History) Redo() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index < 0 || h.index >= len(h.entries)-1 {
		return Snapshot{}, false
	}
	h.index++
	return h.entries[h.index], true
}

// Current returns the snapshot at the cursor.
func (h *History) Current() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.index < 0 {
		return Snapshot{}, false
	}
	return h.entries[h.index], true
}

// Len returns the number of snapshots.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Index returns the cursor position, -1 when empty.
func (h *History) Index() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index
}

// Labels returns the snapshot labels oldest first.
func (h *History) Labels() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	labels := make([]string, len(h.entries))
	for i, e := range h.entries {
		labels[i] = e.Label
	}
	return labels
}
