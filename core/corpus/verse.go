// Package corpus holds one translation's verses in canonical reading order
// and answers range and substring queries over them.
package corpus

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

// Verse is a single verse of one translation.
type Verse struct {
	BookID  int    `json:"book_id"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
}

// Key returns the verse's book/chapter/verse triple.
func (v Verse) Key() Key {
	return Key{BookID: v.BookID, Chapter: v.Chapter, Verse: v.Verse}
}

// Key identifies a verse within a translation. Its string form
// "book:chapter:verse" keys per-verse annotations.
type Key struct {
	BookID  int `json:"book_id"`
	Chapter int `json:"chapter"`
	Verse   int `json:"verse"`
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d:%d", k.BookID, k.Chapter, k.Verse)
}

// Less orders keys canonically: book, then chapter, then verse.
func (k Key) Less(o Key) bool {
	if k.BookID != o.BookID {
		return k.BookID < o.BookID
	}
	if k.Chapter != o.Chapter {
		return k.Chapter < o.Chapter
	}
	return k.Verse < o.Verse
}

// ParseKey parses "book:chapter:verse".
func ParseKey(s string) (Key, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Key{}, &errors.ValidationError{Field: "verse_key", Value: s, Message: "expected book:chapter:verse"}
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return Key{}, &errors.ValidationError{Field: "verse_key", Value: s, Message: "components must be positive integers"}
		}
		nums[i] = n
	}
	return Key{BookID: nums[0], Chapter: nums[1], Verse: nums[2]}, nil
}

// Books maps book_id to its display name in one language.
type Books map[int]string

// IDs returns the book ids in ascending order.
func (b Books) IDs() []int {
	ids := make([]int, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Range is an inclusive chapter/verse span within one book.
type Range struct {
	BookID      int `json:"book_id"`
	ChapterFrom int `json:"chapter_from"`
	VerseFrom   int `json:"verse_from"`
	ChapterTo   int `json:"chapter_to"`
	VerseTo     int `json:"verse_to"`
}

// Contains reports whether v lies inside the range. Chapters strictly
// between the bounds are included whole; boundary chapters are cut by verse.
func (r Range) Contains(v Verse) bool {
	c, n := v.Chapter, v.Verse
	return v.BookID == r.BookID &&
		r.ChapterFrom <= c && c <= r.ChapterTo &&
		(c > r.ChapterFrom || n >= r.VerseFrom) &&
		(c < r.ChapterTo || n <= r.VerseTo)
}

func (r Range) String() string {
	return fmt.Sprintf("%d %d:%d-%d:%d", r.BookID, r.ChapterFrom, r.VerseFrom, r.ChapterTo, r.VerseTo)
}
