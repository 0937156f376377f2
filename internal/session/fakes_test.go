package session_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/rect"

	"pdf-editor/internal/annotation"
	errs "pdf-editor/internal/errors"
	"pdf-editor/internal/render/rendertest"
	"pdf-editor/internal/session"
	"pdf-editor/internal/tool"
)

// fakeMutator edits rendertest documents. Baked content is appended to the
// page label so tests can see where it went.
type fakeMutator struct {
	mu      sync.Mutex
	calls   int
	fail    error
	gate    chan struct{}
	started chan struct{}
}

func (m *fakeMutator) enter(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	gate, started, fail := m.gate, m.started, m.fail
	m.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fail
}

func (m *fakeMutator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *fakeMutator) edit(ctx context.Context, data []byte, fn func([]rendertest.Page) ([]rendertest.Page, error)) ([]byte, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	pages, err := rendertest.Decode(data)
	if err != nil {
		return nil, err
	}
	// never touch the decoded input in place
	pages = append([]rendertest.Page(nil), pages...)
	out, err := fn(pages)
	if err != nil {
		return nil, err
	}
	return rendertest.Encode(out), nil
}

func (m *fakeMutator) DeletePages(ctx context.Context, data []byte, del []int) ([]byte, error) {
	return m.edit(ctx, data, func(pages []rendertest.Page) ([]rendertest.Page, error) {
		drop := make(map[int]bool)
		for _, p := range del {
			drop[p] = true
		}
		var out []rendertest.Page
		for i, p := range pages {
			if !drop[i+1] {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("cannot delete all pages")
		}
		return out, nil
	})
}

func (m *fakeMutator) ReorderPages(ctx context.Context, data []byte, order []int) ([]byte, error) {
	return m.edit(ctx, data, func(pages []rendertest.Page) ([]rendertest.Page, error) {
		out := make([]rendertest.Page, len(order))
		for i, p := range order {
			out[i] = pages[p-1]
		}
		return out, nil
	})
}

func (m *fakeMutator) RotatePage(ctx context.Context, data []byte, page, degrees int) ([]byte, error) {
	return m.edit(ctx, data, func(pages []rendertest.Page) ([]rendertest.Page, error) {
		if degrees != 180 {
			s := pages[page-1].Size
			s.Width, s.Height = s.Height, s.Width
			pages[page-1].Size = s
		}
		return pages, nil
	})
}

func (m *fakeMutator) Merge(ctx context.Context, docs [][]byte) ([]byte, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	var out []rendertest.Page
	for _, d := range docs {
		pages, err := rendertest.Decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, pages...)
	}
	return rendertest.Encode(out), nil
}

func (m *fakeMutator) label(page int, mark string) func([]rendertest.Page) ([]rendertest.Page, error) {
	return func(pages []rendertest.Page) ([]rendertest.Page, error) {
		pages[page-1].Label += "+" + strings.ReplaceAll(mark, " ", "_")
		return pages, nil
	}
}

func (m *fakeMutator) BakeText(ctx context.Context, data []byte, t annotation.Text, font string) ([]byte, error) {
	return m.edit(ctx, data, m.label(t.Page, "text:"+t.Text))
}

func (m *fakeMutator) BakeHighlight(ctx context.Context, data []byte, page int, area rect.Rect, color string) ([]byte, error) {
	return m.edit(ctx, data, m.label(page, "hl"))
}

func (m *fakeMutator) BakeDrawing(ctx context.Context, data []byte, d annotation.Drawing) ([]byte, error) {
	return m.edit(ctx, data, m.label(d.Page, string(d.Kind)))
}

func (m *fakeMutator) InsertBlankPage(ctx context.Context, data []byte, after int) ([]byte, error) {
	return m.edit(ctx, data, func(pages []rendertest.Page) ([]rendertest.Page, error) {
		ref := pages[max(after, 1)-1]
		blank := rendertest.Page{Size: ref.Size, Label: "blank"}
		out := append([]rendertest.Page(nil), pages[:after]...)
		out = append(out, blank)
		return append(out, pages[after:]...), nil
	})
}

// eventLog records what the session reports.
type eventLog struct {
	mu      sync.Mutex
	notes   []session.Notification
	changes []session.Change
}

func (e *eventLog) Notify(n session.Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notes = append(e.notes, n)
}

func (e *eventLog) Changed(c session.Change) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changes = append(e.changes, c)
}

func (e *eventLog) Notes() []session.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]session.Notification(nil), e.notes...)
}

type fixture struct {
	s       *session.Session
	raster  *rendertest.Rasterizer
	mutator *fakeMutator
	events  *eventLog
	display *rendertest.Recorder
	journal *errs.ErrorManager
	clock   *tool.ManualClock
}

func newFixture(t *testing.T, configure ...func(*session.Options)) *fixture {
	t.Helper()
	f := &fixture{
		raster:  rendertest.New(),
		mutator: &fakeMutator{},
		events:  &eventLog{},
		display: rendertest.NewRecorder(),
		journal: errs.NewMemoryErrorManager(),
		clock:   tool.NewManualClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)),
	}
	opts := session.Options{
		Rasterizer: f.raster,
		Mutator:    f.mutator,
		Display:    f.display,
		Events:     f.events,
		Journal:    f.journal,
		BackupDir:  t.TempDir(),
		Clock:      f.clock,
	}
	for _, c := range configure {
		c(&opts)
	}
	s, err := session.New(opts)
	require.NoError(t, err)
	f.s = s
	t.Cleanup(func() { s.Close() })
	return f
}

// load opens n letter pages and waits for the first renders.
func (f *fixture) load(t *testing.T, n int) {
	t.Helper()
	require.NoError(t, f.s.Load(context.Background(), "test.pdf", rendertest.Letter(n)))
	f.s.Wait()
}

func (f *fixture) labels(t *testing.T) []string {
	t.Helper()
	pages, err := rendertest.Decode(f.s.Data())
	require.NoError(t, err)
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Label
	}
	return out
}
