package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-editor/internal/coords"
	"pdf-editor/internal/types"
)

func ptr[T any](v T) *T { return &v }

func TestCreateAssignsFreshIDs(t *testing.T) {
	s := NewStore(3)

	in := &Text{ID: "caller-id", Page: 1, X: 10, Y: 20, Text: "hello", FontSize: 12, Color: "#000000"}
	a, err := s.Create(in)
	require.NoError(t, err)
	b, err := s.Create(in)
	require.NoError(t, err)

	assert.NotEqual(t, "caller-id", a.AnnotationID())
	assert.NotEmpty(t, a.AnnotationID())
	assert.NotEqual(t, a.AnnotationID(), b.AnnotationID())
	assert.Equal(t, "caller-id", in.ID, "input must not be modified")
	assert.Equal(t, 2, s.Len())
}

func TestCreateValidatesPage(t *testing.T) {
	s := NewStore(2)

	for _, page := range []int{0, 3, -1} {
		_, err := s.Create(&Text{Page: page})
		assert.True(t, types.IsCode(err, types.ErrValidation), "page %d", page)
	}
	_, err := s.Create(nil)
	assert.True(t, types.IsCode(err, types.ErrValidation))
	assert.Zero(t, s.Len())
}

func TestCreateValidatesDrawingPath(t *testing.T) {
	s := NewStore(1)
	two := []coords.Point{{X: 1, Y: 1}, {X: 5, Y: 5}}

	tests := []struct {
		name    string
		d       *Drawing
		wantErr bool
	}{
		{"rectangle", &Drawing{Page: 1, Kind: Rectangle, Path: two}, false},
		{"arrow needs two points", &Drawing{Page: 1, Kind: Arrow, Path: two[:1]}, true},
		{"circle with three points", &Drawing{Page: 1, Kind: Circle, Path: append(two, coords.Point{})}, true},
		{"freehand single point", &Drawing{Page: 1, Kind: Freehand, Path: two[:1]}, false},
		{"freehand empty", &Drawing{Page: 1, Kind: Freehand}, true},
		{"unknown kind", &Drawing{Page: 1, Kind: "spiral", Path: two}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(tt.d)
			if tt.wantErr {
				assert.True(t, types.IsCode(err, types.ErrValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpdateMergesShallowly(t *testing.T) {
	s := NewStore(3)
	a, err := s.Create(&Text{Page: 1, X: 10, Y: 20, Text: "draft", FontSize: 12, Color: "#111111"})
	require.NoError(t, err)

	updated, err := s.Update(a.AnnotationID(), Patch{Text: ptr("final"), X: ptr(40.0)})
	require.NoError(t, err)

	txt := updated.(*Text)
	assert.Equal(t, "final", txt.Text)
	assert.Equal(t, 40.0, txt.X)
	assert.Equal(t, 20.0, txt.Y, "unset fields keep their value")
	assert.Equal(t, "#111111", txt.Color)

	got, ok := s.Get(a.AnnotationID())
	require.True(t, ok)
	assert.Equal(t, updated, got)

	_, err = s.Update(a.AnnotationID(), Patch{StrokeWidth: ptr(3.0)})
	assert.True(t, types.IsCode(err, types.ErrValidation), "stroke width does not apply to text")

	_, err = s.Update(a.AnnotationID(), Patch{Page: ptr(4)})
	assert.True(t, types.IsCode(err, types.ErrValidation))

	_, err = s.Update("missing", Patch{})
	assert.True(t, types.IsCode(err, types.ErrValidation))
}

func TestUpdateDrawing(t *testing.T) {
	s := NewStore(1)
	d, err := s.Create(&Drawing{Page: 1, Kind: Line, Path: []coords.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, StrokeWidth: 1})
	require.NoError(t, err)

	updated, err := s.Update(d.AnnotationID(), Patch{
		Path:        []coords.Point{{X: 2, Y: 2}, {X: 8, Y: 9}},
		StrokeWidth: ptr(4.0),
		Color:       ptr("#ff0000"),
	})
	require.NoError(t, err)
	dr := updated.(*Drawing)
	assert.Equal(t, coords.Point{X: 8, Y: 9}, dr.Path[1])
	assert.Equal(t, 4.0, dr.StrokeWidth)

	_, err = s.Update(d.AnnotationID(), Patch{Path: []coords.Point{{X: 1, Y: 1}}})
	assert.True(t, types.IsCode(err, types.ErrValidation), "a line keeps two points")

	_, err = s.Update(d.AnnotationID(), Patch{Text: ptr("x")})
	assert.True(t, types.IsCode(err, types.ErrValidation))
}

func TestReturnedValuesAreCopies(t *testing.T) {
	s := NewStore(1)
	d, err := s.Create(&Drawing{Page: 1, Kind: Freehand, Path: []coords.Point{{X: 1, Y: 1}}})
	require.NoError(t, err)

	d.(*Drawing).Path[0].X = 99
	for _, a := range s.ListForPage(1) {
		a.(*Drawing).Path[0].Y = 99
	}

	got, _ := s.Get(d.AnnotationID())
	assert.Equal(t, coords.Point{X: 1, Y: 1}, got.(*Drawing).Path[0])
}

func TestListForPageKeepsCreationOrder(t *testing.T) {
	s := NewStore(3)
	var ids []string
	for i, page := range []int{2, 1, 2, 3, 2} {
		a, err := s.Create(&Text{Page: page, Text: string(rune('a' + i))})
		require.NoError(t, err)
		if page == 2 {
			ids = append(ids, a.AnnotationID())
		}
	}

	var got []string
	for _, a := range s.ListForPage(2) {
		got = append(got, a.AnnotationID())
	}
	assert.Equal(t, ids, got)
	assert.Empty(t, s.ListForPage(4))
	assert.Len(t, s.All(), 5)
}

func TestDeleteAndClear(t *testing.T) {
	s := NewStore(1)
	a, _ := s.Create(&Text{Page: 1})
	b, _ := s.Create(&Text{Page: 1})

	require.NoError(t, s.Delete(a.AnnotationID()))
	assert.True(t, types.IsCode(s.Delete(a.AnnotationID()), types.ErrValidation))
	_, ok := s.Get(a.AnnotationID())
	assert.False(t, ok)
	assert.Len(t, s.ListForPage(1), 1)
	assert.Equal(t, b.AnnotationID(), s.All()[0].AnnotationID())

	s.Clear()
	assert.Zero(t, s.Len())
}

func TestTranslate(t *testing.T) {
	s := NewStore(1)
	txt, _ := s.Create(&Text{Page: 1, X: 10, Y: 10})
	rect, _ := s.Create(&Drawing{Page: 1, Kind: Rectangle, Path: []coords.Point{{X: 0, Y: 0}, {X: 5, Y: 5}}})

	moved, err := s.Translate(txt.AnnotationID(), 5, -3)
	require.NoError(t, err)
	assert.Equal(t, 15.0, moved.(*Text).X)
	assert.Equal(t, 7.0, moved.(*Text).Y)

	moved, err = s.Translate(rect.AnnotationID(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []coords.Point{{X: 1, Y: 2}, {X: 6, Y: 7}}, moved.(*Drawing).Path)

	_, err = s.Translate("nope", 1, 1)
	assert.Error(t, err)
}

func TestRemapAndPrune(t *testing.T) {
	s := NewStore(4)
	onPage := map[int]string{}
	for page := 1; page <= 4; page++ {
		a, err := s.Create(&Text{Page: page})
		require.NoError(t, err)
		onPage[page] = a.AnnotationID()
	}

	// page 2 deleted: 1 stays, 3 -> 2, 4 -> 3
	removed := s.Remap(func(page int) (int, bool) {
		switch {
		case page == 2:
			return 0, false
		case page > 2:
			return page - 1, true
		default:
			return page, true
		}
	})
	assert.Equal(t, []string{onPage[2]}, removed)

	a, _ := s.Get(onPage[4])
	assert.Equal(t, 3, a.PageNumber())
	a, _ = s.Get(onPage[1])
	assert.Equal(t, 1, a.PageNumber())

	s.SetPageCount(2)
	assert.Equal(t, []string{onPage[4]}, s.Prune())
	assert.Equal(t, 2, s.Len())
}

func TestBounds(t *testing.T) {
	d := &Drawing{Kind: Freehand, Path: []coords.Point{{X: 5, Y: 1}, {X: 2, Y: 8}, {X: 7, Y: 3}}}
	lo, hi := d.Bounds()
	assert.Equal(t, coords.Point{X: 2, Y: 1}, lo)
	assert.Equal(t, coords.Point{X: 7, Y: 8}, hi)

	txt := &Text{X: 10, Y: 20, Text: "abcd", FontSize: 10}
	lo, hi = txt.Bounds()
	assert.Equal(t, coords.Point{X: 10, Y: 20}, lo)
	assert.Equal(t, coords.Point{X: 30, Y: 30}, hi)
}

func TestMarshalTagsVariant(t *testing.T) {
	data, err := Marshal(&Drawing{ID: "d1", Page: 2, Kind: Arrow, Path: []coords.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"drawing"`)

	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, Arrow, back.(*Drawing).Kind)

	_, err = Unmarshal([]byte(`{"type":"video"}`))
	assert.Error(t, err)

	k, err := ParseKind(" Circle ")
	require.NoError(t, err)
	assert.Equal(t, Circle, k)
	assert.False(t, Freehand.IsShape())
}
