package corpus

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/text/cases"

	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

// Meta describes a translation.
type Meta struct {
	ID       string `json:"id"`
	Language string `json:"lang"`
	Name     string `json:"name,omitempty"`
}

// span is a half-open index range [start, end) into Corpus.verses.
type span struct {
	start, end int
}

// Corpus is an immutable, in-memory translation. It is safe for concurrent
// readers once New returns.
type Corpus struct {
	meta   Meta
	books  Books
	verses []Verse
	folded []string

	// byBook holds the ordinals of every verse of a book.
	byBook map[int]*roaring.Bitmap
	// chapters maps book -> chapter -> verse ordinals. Canonical order makes
	// each chapter contiguous.
	chapters map[int]map[int]span
}

// New validates the loader contract and indexes the verses. Verses must be
// in canonical order with unique keys, and every book_id must have a name.
// A violation is a loader failure.
func New(meta Meta, books Books, verses []Verse) (*Corpus, error) {
	c := &Corpus{
		meta:     meta,
		books:    make(Books, len(books)),
		verses:   make([]Verse, len(verses)),
		folded:   make([]string, len(verses)),
		byBook:   make(map[int]*roaring.Bitmap),
		chapters: make(map[int]map[int]span),
	}
	for id, name := range books {
		c.books[id] = name
	}
	copy(c.verses, verses)

	caser := cases.Fold()
	for i, v := range c.verses {
		if v.BookID <= 0 || v.Chapter <= 0 || v.Verse <= 0 {
			return nil, &errors.ParseError{Format: "corpus", Path: meta.ID,
				Message: fmt.Sprintf("verse %d has non-positive key %s", i, v.Key())}
		}
		if _, ok := c.books[v.BookID]; !ok {
			return nil, &errors.ParseError{Format: "corpus", Path: meta.ID,
				Message: fmt.Sprintf("book %d has no name", v.BookID)}
		}
		if i > 0 {
			prev := c.verses[i-1].Key()
			switch {
			case prev == v.Key():
				return nil, &errors.ParseError{Format: "corpus", Path: meta.ID,
					Message: fmt.Sprintf("duplicate verse %s", v.Key())}
			case !prev.Less(v.Key()):
				return nil, &errors.ParseError{Format: "corpus", Path: meta.ID,
					Message: fmt.Sprintf("verse %s out of order after %s", v.Key(), prev)}
			}
		}

		bm, ok := c.byBook[v.BookID]
		if !ok {
			bm = roaring.New()
			c.byBook[v.BookID] = bm
			c.chapters[v.BookID] = make(map[int]span)
		}
		bm.Add(uint32(i))

		ch := c.chapters[v.BookID]
		s, ok := ch[v.Chapter]
		if !ok {
			s = span{start: i}
		}
		s.end = i + 1
		ch[v.Chapter] = s

		c.folded[i] = fold(caser, v.Text, nil, nil)
	}
	for _, bm := range c.byBook {
		bm.RunOptimize()
	}
	return c, nil
}

// Meta returns the translation metadata.
func (c *Corpus) Meta() Meta { return c.meta }

// ID returns the translation id.
func (c *Corpus) ID() string { return c.meta.ID }

// Len returns the number of verses.
func (c *Corpus) Len() int { return len(c.verses) }

// Books returns a copy of the book table.
func (c *Corpus) Books() Books {
	out := make(Books, len(c.books))
	for id, name := range c.books {
		out[id] = name
	}
	return out
}

// Book returns the display name of a book.
func (c *Corpus) Book(id int) (string, bool) {
	name, ok := c.books[id]
	return name, ok
}

// BookIDs returns the ids of books that have verses, ascending.
func (c *Corpus) BookIDs() []int {
	ids := make([]int, 0, len(c.byBook))
	for id := range c.byBook {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Verses returns the verses in canonical order. The slice must not be modified.
func (c *Corpus) Verses() []Verse { return c.verses }

// Chapters returns the chapter numbers of a book, ascending.
func (c *Corpus) Chapters(bookID int) []int {
	chs := c.chapters[bookID]
	out := make([]int, 0, len(chs))
	for n := range chs {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Chapter returns the verses of one chapter, or an empty slice.
func (c *Corpus) Chapter(bookID, chapter int) []Verse {
	s, ok := c.chapters[bookID][chapter]
	if !ok {
		return []Verse{}
	}
	out := make([]Verse, s.end-s.start)
	copy(out, c.verses[s.start:s.end])
	return out
}

// Verse looks up a single verse.
func (c *Corpus) Verse(k Key) (Verse, bool) {
	s, ok := c.chapters[k.BookID][k.Chapter]
	if !ok {
		return Verse{}, false
	}
	vs := c.verses[s.start:s.end]
	i := sort.Search(len(vs), func(i int) bool { return vs[i].Verse >= k.Verse })
	if i < len(vs) && vs[i].Verse == k.Verse {
		return vs[i], true
	}
	return Verse{}, false
}

// VersesInRange returns every verse of r.BookID whose (chapter, verse) lies
// within the inclusive range, in corpus order. An unknown book or an
// inverted range yields an empty slice.
func (c *Corpus) VersesInRange(r Range) []Verse {
	out := []Verse{}
	bm, ok := c.byBook[r.BookID]
	if !ok || r.ChapterFrom > r.ChapterTo {
		return out
	}
	it := bm.Iterator()
	for it.HasNext() {
		v := c.verses[it.Next()]
		if v.Chapter > r.ChapterTo {
			break
		}
		if r.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}
