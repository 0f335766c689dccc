package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
	"github.com/FocuswithJustin/ChristusBible/core/sqlite"
	"github.com/FocuswithJustin/ChristusBible/internal/logging"
)

var psalm23 = corpus.Key{BookID: 19, Chapter: 23, Verse: 1}

// failingBackend fails every call after the first allowLoads loads.
type failingBackend struct {
	allowLoads int
	loads      int
	saves      int
}

func (f *failingBackend) Load(ctx context.Context, name string) ([]byte, error) {
	f.loads++
	if f.loads <= f.allowLoads {
		return nil, nil
	}
	return nil, fmt.Errorf("quota exceeded")
}

func (f *failingBackend) Save(ctx context.Context, name string, data []byte) error {
	f.saves++
	return fmt.Errorf("quota exceeded")
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	logging.InitLogger(logging.LevelInfo, logging.FormatJSON)
	t.Cleanup(func() {
		logging.SetOutput(os.Stderr)
		logging.InitLogger(logging.LevelInfo, logging.FormatText)
	})
	return &buf
}

func TestWordHighlightsScenario(t *testing.T) {
	ctx := context.Background()
	w := OpenWordHighlights(ctx, NewMemoryBackend())

	require.Empty(t, w.Ranges(psalm23))
	require.NoError(t, w.Add(ctx, psalm23, 23, WordRange{0, 3, Green}))
	require.NoError(t, w.Add(ctx, psalm23, 23, WordRange{2, 6, Red}))

	assert.Equal(t, []WordRange{{2, 6, Red}}, w.Ranges(psalm23))
}

func TestWordHighlightsOverwriteEvictsWholeRange(t *testing.T) {
	ctx := context.Background()
	w := OpenWordHighlights(ctx, NewMemoryBackend())

	require.NoError(t, w.Add(ctx, psalm23, 20, WordRange{7, 12, Yellow}))
	require.NoError(t, w.Add(ctx, psalm23, 20, WordRange{5, 10, Green}))
	assert.Equal(t, []WordRange{{5, 10, Green}}, w.Ranges(psalm23))

	// Touching ranges do not intersect.
	require.NoError(t, w.Add(ctx, psalm23, 20, WordRange{10, 14, Red}))
	require.NoError(t, w.Add(ctx, psalm23, 20, WordRange{0, 5, Yellow}))
	assert.Equal(t, []WordRange{{0, 5, Yellow}, {5, 10, Green}, {10, 14, Red}}, w.Ranges(psalm23))

	// One range spanning two stored ranges evicts both.
	require.NoError(t, w.Add(ctx, psalm23, 20, WordRange{4, 11, Red}))
	assert.Equal(t, []WordRange{{4, 11, Red}}, w.Ranges(psalm23))
}

func TestWordHighlightsNeverIntersect(t *testing.T) {
	ctx := context.Background()
	w := OpenWordHighlights(ctx, NewMemoryBackend())
	rng := rand.New(rand.NewSource(7))

	const textLen = 40
	for i := 0; i < 500; i++ {
		start := rng.Intn(textLen)
		end := start + 1 + rng.Intn(textLen-start)
		require.NoError(t, w.Add(ctx, psalm23, textLen, WordRange{start, end, Colors[rng.Intn(len(Colors))]}))

		got := w.Ranges(psalm23)
		added := false
		for _, e := range got {
			added = added || (e.Start == start && e.End == end)
		}
		require.True(t, added, "step %d: [%d,%d) not stored", i, start, end)
		for a := 0; a < len(got); a++ {
			for b := a + 1; b < len(got); b++ {
				require.False(t, got[a].Intersects(got[b]), "step %d: %v and %v intersect", i, got[a], got[b])
			}
		}
	}
}

func TestWordHighlightsValidation(t *testing.T) {
	ctx := context.Background()
	w := OpenWordHighlights(ctx, NewMemoryBackend())

	for _, r := range []WordRange{
		{-1, 2, Green},
		{3, 3, Green},
		{4, 2, Green},
		{0, 11, Green},
		{0, 2, None},
		{0, 2, "blue"},
	} {
		err := w.Add(ctx, psalm23, 10, r)
		assert.ErrorIs(t, err, errors.ErrInvalidInput, "%v", r)
	}
	assert.Empty(t, w.Ranges(psalm23))
	assert.NoError(t, w.Add(ctx, psalm23, 10, WordRange{0, 10, Green}))
}

func TestWordHighlightsClear(t *testing.T) {
	ctx := context.Background()
	w := OpenWordHighlights(ctx, NewMemoryBackend())
	other := corpus.Key{BookID: 1, Chapter: 1, Verse: 1}

	require.NoError(t, w.Add(ctx, psalm23, 10, WordRange{0, 2, Green}))
	require.NoError(t, w.Add(ctx, other, 10, WordRange{0, 2, Red}))
	w.Clear(ctx, psalm23)

	assert.Empty(t, w.Ranges(psalm23))
	assert.Equal(t, []string{"1:1:1"}, w.Keys())
}

func TestRender(t *testing.T) {
	text := "Der HERR ist mein Hirte"
	segs := Render(text, []WordRange{{18, 23, Green}, {4, 8, Red}})

	assert.Equal(t, []ColoredSegment{
		{Text: "Der "},
		{Text: "HERR", Color: Red},
		{Text: " ist mein "},
		{Text: "Hirte", Color: Green},
	}, segs)

	var joined strings.Builder
	for _, s := range Render("Güte ü", []WordRange{{1, 2, Yellow}, {5, 99, Red}}) {
		joined.WriteString(s.Text)
	}
	assert.Equal(t, "Güte ü", joined.String(), "rune offsets, clipped at the end")

	overlapping := []WordRange{{8, 17, Green}, {4, 12, Red}, {5, 7, Yellow}}
	assert.Equal(t, []ColoredSegment{
		{Text: "Der "},
		{Text: "HERR ist", Color: Red},
		{Text: " mein", Color: Green},
		{Text: " Hirte"},
	}, Render(text, overlapping), "later ranges are trimmed, covered ones dropped")

	assert.Equal(t, []ColoredSegment{{Text: "abc"}}, Render("abc", nil))
	assert.Nil(t, Render("", nil))
}

func TestHighlights(t *testing.T) {
	ctx := context.Background()
	h := OpenHighlights(ctx, NewMemoryBackend())

	assert.Equal(t, None, h.Get(psalm23))
	require.NoError(t, h.Set(ctx, psalm23, Green))
	require.NoError(t, h.Set(ctx, psalm23, Red))
	assert.Equal(t, Red, h.Get(psalm23), "last write wins")

	require.NoError(t, h.Set(ctx, psalm23, None))
	assert.Empty(t, h.All())

	assert.ErrorIs(t, h.Set(ctx, psalm23, "purple"), errors.ErrInvalidInput)

	require.NoError(t, h.Set(ctx, psalm23, Yellow))
	h.Clear(ctx, psalm23)
	assert.Equal(t, None, h.Get(psalm23))
}

func TestParseColor(t *testing.T) {
	for in, want := range map[string]Color{"green": Green, " RED ": Red, "yellow": Yellow, "none": None, "": None} {
		got, err := ParseColor(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseColor("blue")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Equal(t, "none", None.String())
}

func TestNotes(t *testing.T) {
	ctx := context.Background()
	n := OpenNotes(ctx, NewMemoryBackend())

	n.Save(ctx, 12, "Am Anfang")
	n.Save(ctx, 3, "Trost")
	n.Save(ctx, 7, "vorläufig")
	assert.Equal(t, []int{3, 7, 12}, n.IDs())

	n.Save(ctx, 7, "  \n\t ")
	_, ok := n.Get(7)
	assert.False(t, ok, "whitespace-only note deletes")
	assert.Equal(t, []int{3, 12}, n.IDs())

	n.Save(ctx, 99, "")
	assert.Equal(t, []int{3, 12}, n.IDs(), "saving empty text for a missing note is a no-op")

	text, ok := n.Get(12)
	require.True(t, ok)
	assert.Equal(t, "Am Anfang", text)

	n.Delete(ctx, 3)
	assert.Equal(t, map[int]string{12: "Am Anfang"}, n.All())
}

func TestStoresPersistAcrossOpen(t *testing.T) {
	ctx := context.Background()
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	s := Open(ctx, backend)
	require.NoError(t, s.Highlights.Set(ctx, psalm23, Yellow))
	require.NoError(t, s.Words.Add(ctx, psalm23, 23, WordRange{4, 8, Green}))
	s.Notes.Save(ctx, 10, "Der gute Hirte")

	reopened := Open(ctx, backend)
	assert.Equal(t, Yellow, reopened.Highlights.Get(psalm23))
	assert.Equal(t, []WordRange{{4, 8, Green}}, reopened.Words.Ranges(psalm23))
	assert.Equal(t, []int{10}, reopened.Notes.IDs())
	assert.False(t, reopened.Notes.Degraded())
}

func TestMutationsReadModifyWrite(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	a := OpenNotes(ctx, backend)
	b := OpenNotes(ctx, backend)
	a.Save(ctx, 1, "from a")
	b.Save(ctx, 2, "from b")

	assert.Equal(t, []int{1, 2}, b.IDs(), "b reloads the map before writing")

	raw, err := backend.Load(ctx, NotesStore)
	require.NoError(t, err)
	var stored map[string]string
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, map[string]string{"1": "from a", "2": "from b"}, stored)
}

func TestDegradesToMemory(t *testing.T) {
	logs := captureLogs(t)
	ctx := context.Background()

	t.Run("save failure", func(t *testing.T) {
		logs.Reset()
		backend := &failingBackend{allowLoads: 100}
		h := OpenHighlights(ctx, backend)
		require.False(t, h.Degraded())

		require.NoError(t, h.Set(ctx, psalm23, Green))
		require.NoError(t, h.Set(ctx, corpus.Key{BookID: 1, Chapter: 1, Verse: 1}, Red))

		assert.True(t, h.Degraded())
		assert.Equal(t, Green, h.Get(psalm23), "state kept in memory")
		assert.Len(t, h.All(), 2)
		assert.Equal(t, 1, backend.saves, "no save attempts after degrading")
		assert.Equal(t, 1, strings.Count(logs.String(), `"msg":"store_degraded"`))
	})

	t.Run("load failure", func(t *testing.T) {
		logs.Reset()
		n := OpenNotes(ctx, &failingBackend{})
		assert.True(t, n.Degraded())
		n.Save(ctx, 5, "still works")
		text, ok := n.Get(5)
		assert.True(t, ok)
		assert.Equal(t, "still works", text)
		assert.Contains(t, logs.String(), `"operation":"load"`)
	})

	t.Run("corrupt blob", func(t *testing.T) {
		backend := NewMemoryBackend()
		require.NoError(t, backend.Save(ctx, WordsStore, []byte("{not json")))
		w := OpenWordHighlights(ctx, backend)
		assert.True(t, w.Degraded())
		assert.Empty(t, w.Ranges(psalm23))

		raw, _ := backend.Load(ctx, WordsStore)
		assert.Equal(t, "{not json", string(raw), "corrupt data is left untouched")
	})
}

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)

	data, err := b.Load(ctx, NotesStore)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, b.Save(ctx, NotesStore, []byte(`{"1":"a"}`)))
	require.NoError(t, b.Save(ctx, NotesStore, []byte(`{"1":"b"}`)))
	data, err = b.Load(ctx, NotesStore)
	require.NoError(t, err)
	assert.Equal(t, `{"1":"b"}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are renamed away")
	assert.Equal(t, "notes.json", entries[0].Name())

	assert.ErrorIs(t, b.Save(ctx, "../escape", nil), errors.ErrInvalidInput)
}

func TestFileBackendRenameFailure(t *testing.T) {
	orig := osRename
	osRename = func(string, string) error { return fmt.Errorf("disk full") }
	defer func() { osRename = orig }()

	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)

	err = b.Save(context.Background(), HighlightsStore, []byte("{}"))
	var ioe *errors.IOError
	require.True(t, errors.As(err, &ioe))

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "temp file removed")
	_, statErr := os.Stat(filepath.Join(dir, "highlights.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "annotations.db"))
	require.NoError(t, err)
	defer db.Close()

	b, err := NewSQLiteBackend(ctx, db)
	require.NoError(t, err)

	data, err := b.Load(ctx, HighlightsStore)
	require.NoError(t, err)
	assert.Nil(t, data)

	h := OpenHighlights(ctx, b)
	require.NoError(t, h.Set(ctx, psalm23, Red))
	require.NoError(t, h.Set(ctx, corpus.Key{BookID: 43, Chapter: 3, Verse: 16}, Green))

	again := OpenHighlights(ctx, b)
	assert.Equal(t, map[string]Color{"19:23:1": Red, "43:3:16": Green}, again.All())

	var rows int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM annotations`).Scan(&rows))
	assert.Equal(t, 1, rows, "one row per store")
}
