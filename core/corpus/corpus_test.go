package corpus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

func newTestCorpus(t *testing.T, verses ...Verse) *Corpus {
	t.Helper()
	books := Books{}
	for _, v := range verses {
		books[v.BookID] = fmt.Sprintf("Book %d", v.BookID)
	}
	c, err := New(Meta{ID: "test", Language: "en"}, books, verses)
	require.NoError(t, err)
	return c
}

// gridCorpus builds books 1..2, chapters 1..3, verses 1..4.
func gridCorpus(t *testing.T) *Corpus {
	t.Helper()
	var vs []Verse
	for b := 1; b <= 2; b++ {
		for c := 1; c <= 3; c++ {
			for v := 1; v <= 4; v++ {
				vs = append(vs, Verse{BookID: b, Chapter: c, Verse: v, Text: fmt.Sprintf("b%d c%d v%d", b, c, v)})
			}
		}
	}
	return newTestCorpus(t, vs...)
}

func TestNewRejectsLoaderContractViolations(t *testing.T) {
	tests := []struct {
		name   string
		books  Books
		verses []Verse
		want   string
	}{
		{
			name:   "missing book name",
			books:  Books{1: "Genesis"},
			verses: []Verse{{1, 1, 1, "a"}, {2, 1, 1, "b"}},
			want:   "book 2 has no name",
		},
		{
			name:   "duplicate key",
			books:  Books{1: "Genesis"},
			verses: []Verse{{1, 1, 1, "a"}, {1, 1, 1, "b"}},
			want:   "duplicate verse 1:1:1",
		},
		{
			name:   "out of order",
			books:  Books{1: "Genesis"},
			verses: []Verse{{1, 2, 1, "a"}, {1, 1, 5, "b"}},
			want:   "out of order",
		},
		{
			name:   "zero chapter",
			books:  Books{1: "Genesis"},
			verses: []Verse{{1, 0, 1, "a"}},
			want:   "non-positive key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Meta{ID: "bad"}, tt.books, tt.verses)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			var pe *errors.ParseError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestNewCopiesInput(t *testing.T) {
	verses := []Verse{{1, 1, 1, "original"}}
	books := Books{1: "Genesis"}
	c, err := New(Meta{ID: "x"}, books, verses)
	require.NoError(t, err)

	verses[0].Text = "mutated"
	books[1] = "mutated"

	assert.Equal(t, "original", c.Verses()[0].Text)
	name, _ := c.Book(1)
	assert.Equal(t, "Genesis", name)
}

// Scenario A.
func TestVersesInRangeScenarioA(t *testing.T) {
	c := newTestCorpus(t,
		Verse{1, 1, 1, "In the beginning"},
		Verse{1, 1, 2, "And the earth"},
		Verse{1, 2, 1, "Let there be"},
	)

	got := c.VersesInRange(Range{BookID: 1, ChapterFrom: 1, VerseFrom: 1, ChapterTo: 1, VerseTo: 2})
	assert.Equal(t, []Verse{
		{1, 1, 1, "In the beginning"},
		{1, 1, 2, "And the earth"},
	}, got)
}

func TestVersesInRangeCases(t *testing.T) {
	c := gridCorpus(t)

	keys := func(vs []Verse) []string {
		out := []string{}
		for _, v := range vs {
			out = append(out, v.Key().String())
		}
		return out
	}

	tests := []struct {
		name string
		r    Range
		want []string
	}{
		{"single verse", Range{1, 2, 3, 2, 3}, []string{"1:2:3"}},
		{"multi chapter", Range{1, 1, 4, 3, 1}, []string{"1:1:4", "1:2:1", "1:2:2", "1:2:3", "1:2:4", "1:3:1"}},
		{"whole chapter with wide verse bound", Range{2, 3, 1, 3, 999}, []string{"2:3:1", "2:3:2", "2:3:3", "2:3:4"}},
		{"unknown book", Range{9, 1, 1, 1, 4}, []string{}},
		{"inverted chapters", Range{1, 3, 1, 1, 4}, []string{}},
		{"inverted verses same chapter", Range{1, 2, 4, 2, 1}, []string{}},
		{"past end of book", Range{1, 4, 1, 9, 9}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.VersesInRange(tt.r)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, keys(got))
		})
	}
}

// P1 and P2 over every range in a small grid.
func TestVersesInRangeMatchesLexicographicDefinition(t *testing.T) {
	c := gridCorpus(t)
	all := c.Verses()

	for b := 1; b <= 3; b++ {
		for cf := 0; cf <= 4; cf++ {
			for vf := 0; vf <= 5; vf++ {
				for ct := 0; ct <= 4; ct++ {
					for vt := 0; vt <= 5; vt++ {
						r := Range{b, cf, vf, ct, vt}
						got := c.VersesInRange(r)

						var want []Verse
						lo, hi := [2]int{cf, vf}, [2]int{ct, vt}
						for _, v := range all {
							p := [2]int{v.Chapter, v.Verse}
							if v.BookID == b && !lexLess(p, lo) && !lexLess(hi, p) {
								want = append(want, v)
							}
						}
						if want == nil {
							want = []Verse{}
						}
						require.Equal(t, want, got, "range %v", r)
					}
				}
			}
		}
	}
}

func lexLess(a, b [2]int) bool {
	return a[0] < b[0] || (a[0] == b[0] && a[1] < b[1])
}

func TestChapterAndVerseLookup(t *testing.T) {
	c := gridCorpus(t)

	assert.Equal(t, []int{1, 2}, c.BookIDs())
	assert.Equal(t, []int{1, 2, 3}, c.Chapters(2))
	assert.Empty(t, c.Chapters(7))

	ch := c.Chapter(2, 3)
	require.Len(t, ch, 4)
	assert.Equal(t, "b2 c3 v1", ch[0].Text)
	assert.Empty(t, c.Chapter(2, 9))

	v, ok := c.Verse(Key{1, 2, 3})
	require.True(t, ok)
	assert.Equal(t, "b1 c2 v3", v.Text)

	_, ok = c.Verse(Key{1, 2, 9})
	assert.False(t, ok)
	_, ok = c.Verse(Key{5, 1, 1})
	assert.False(t, ok)

	assert.Equal(t, 24, c.Len())
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("19:23:1")
	require.NoError(t, err)
	assert.Equal(t, Key{19, 23, 1}, k)
	assert.Equal(t, "19:23:1", k.String())

	for _, bad := range []string{"", "19:23", "19:a:1", "0:1:1", "1:2:3:4", "-1:1:1"} {
		_, err := ParseKey(bad)
		assert.ErrorIs(t, err, errors.ErrInvalidInput, "input %q", bad)
	}
}

func TestKeyLess(t *testing.T) {
	assert.True(t, Key{1, 1, 2}.Less(Key{1, 2, 1}))
	assert.True(t, Key{1, 9, 9}.Less(Key{2, 1, 1}))
	assert.False(t, Key{1, 1, 1}.Less(Key{1, 1, 1}))
}
