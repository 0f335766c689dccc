// Package passage holds the curated key passages and the themes that group them.
package passage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

// Theme groups passages on the home screen.
type Theme struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	SortOrder int    `json:"sort_order,omitempty"`
}

// Passage is a named reference range within one book.
type Passage struct {
	ID          int    `json:"id"`
	ThemeID     int    `json:"theme_id"`
	SortOrder   int    `json:"sort_order"`
	Title       string `json:"title"`
	BookID      int    `json:"book_id"`
	ChapterFrom int    `json:"chapter_from"`
	VerseFrom   int    `json:"verse_from"`
	ChapterTo   int    `json:"chapter_to"`
	VerseTo     int    `json:"verse_to"`
}

// Range returns the passage as a corpus range descriptor.
func (p Passage) Range() corpus.Range {
	return corpus.Range{
		BookID:      p.BookID,
		ChapterFrom: p.ChapterFrom,
		VerseFrom:   p.VerseFrom,
		ChapterTo:   p.ChapterTo,
		VerseTo:     p.VerseTo,
	}
}

// Catalog is the static list of themes and passages.
type Catalog struct {
	Themes   []Theme   `json:"themes"`
	Passages []Passage `json:"passages"`
}

// Load decodes a catalog from its JSON form.
func Load(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := json.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return nil, &errors.ParseError{Format: "passages", Message: err.Error(), Err: err}
	}
	return &c, nil
}

// LoadFile reads a catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return c, nil
}

// Validate checks that every passage runs forwards in reading order, that
// ids are unique, and that referenced themes exist.
func (c *Catalog) Validate() error {
	var errs []error
	themes := make(map[int]bool, len(c.Themes))
	for _, t := range c.Themes {
		if themes[t.ID] {
			errs = append(errs, &errors.ValidationError{Field: "theme.id", Value: fmt.Sprint(t.ID), Message: "duplicate theme id"})
		}
		themes[t.ID] = true
	}

	seen := make(map[int]bool, len(c.Passages))
	for _, p := range c.Passages {
		field := fmt.Sprintf("passage[%d]", p.ID)
		if seen[p.ID] {
			errs = append(errs, &errors.ValidationError{Field: field, Message: "duplicate passage id"})
		}
		seen[p.ID] = true

		if !themes[p.ThemeID] {
			errs = append(errs, &errors.ValidationError{Field: field, Value: fmt.Sprint(p.ThemeID), Message: "unknown theme"})
		}
		from := corpus.Key{BookID: p.BookID, Chapter: p.ChapterFrom, Verse: p.VerseFrom}
		to := corpus.Key{BookID: p.BookID, Chapter: p.ChapterTo, Verse: p.VerseTo}
		if to.Less(from) {
			errs = append(errs, &errors.ValidationError{Field: field, Value: p.Title,
				Message: fmt.Sprintf("range %d,%d ends before it starts", p.ChapterFrom, p.VerseFrom)})
		}
	}
	return errors.Join(errs...)
}

// ThemesSorted returns themes by sort order, then id.
func (c *Catalog) ThemesSorted() []Theme {
	out := append([]Theme(nil), c.Themes...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Theme looks up a theme by id.
func (c *Catalog) Theme(id int) (Theme, bool) {
	for _, t := range c.Themes {
		if t.ID == id {
			return t, true
		}
	}
	return Theme{}, false
}

// ForTheme returns a theme's passages by sort order, then id.
func (c *Catalog) ForTheme(themeID int) []Passage {
	out := []Passage{}
	for _, p := range c.Passages {
		if p.ThemeID == themeID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ByID looks up a passage.
func (c *Catalog) ByID(id int) (Passage, bool) {
	for _, p := range c.Passages {
		if p.ID == id {
			return p, true
		}
	}
	return Passage{}, false
}

// Reference renders the display reference, "Psalm 23,1–6" within one
// chapter or "Johannes 3,16 – 4,2" across chapters.
func Reference(p Passage, books corpus.Books) string {
	name, ok := books[p.BookID]
	if !ok {
		name = "?"
	}
	if p.ChapterFrom == p.ChapterTo {
		return fmt.Sprintf("%s %d,%d–%d", name, p.ChapterFrom, p.VerseFrom, p.VerseTo)
	}
	return fmt.Sprintf("%s %d,%d – %d,%d", name, p.ChapterFrom, p.VerseFrom, p.ChapterTo, p.VerseTo)
}

// Verses resolves a passage against a corpus. An empty result is valid.
func Verses(p Passage, c *corpus.Corpus) []corpus.Verse {
	return c.VersesInRange(p.Range())
}

// Check reports passages that resolve to no verses in c. These are not
// errors; callers log them.
func (c *Catalog) Check(tr *corpus.Corpus) []Passage {
	var empty []Passage
	for _, p := range c.Passages {
		if len(Verses(p, tr)) == 0 {
			empty = append(empty, p)
		}
	}
	return empty
}
