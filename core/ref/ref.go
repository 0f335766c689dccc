// Package ref parses human scripture references ("Ps 23,1-6", "Joh 3:16",
// "1. Mose 1,1-2,3") into corpus ranges.
package ref

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

// Open bounds are widened to these sentinels. No book has this many chapters
// or verses, so the range test never cuts anything off.
const (
	MaxChapter = 999
	MaxVerse   = 999
)

type reference struct {
	Book  string    `parser:"@Book"`
	Start *position `parser:"@@?"`
	End   *position `parser:"( \"-\" @@ )?"`
}

type position struct {
	Chapter int  `parser:"@Number"`
	Verse   *int `parser:"( ( \":\" | \",\" ) @Number )?"`
}

// Book names may carry a numeric prefix ("1. Mose", "1 John") and span
// several words ("Hohes Lied", "Song of Solomon").
var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Book", Pattern: `(?:\d+\.?\s*)?\p{L}+\.?(?:\s+\p{L}+\.?)*`},
	{Name: "Number", Pattern: `\d+`},
	{Name: "Punct", Pattern: `[:,\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var refParser = participle.MustBuild[reference](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

var dashes = strings.NewReplacer("–", "-", "—", "-", "‒", "-")

// Parse turns a reference into a range over books. Supported shapes:
//
//	Psalm           whole book
//	Psalm 23        whole chapter
//	Ps 23,1         single verse (":" works as well as ",")
//	Ps 23,1-6       verses within a chapter
//	Mat 5-7         chapter range
//	Mat 5,3-7,29    range across chapters
func Parse(input string, books corpus.Books) (corpus.Range, error) {
	src := strings.TrimSpace(dashes.Replace(input))
	if src == "" {
		return corpus.Range{}, errors.NewParse("reference", "", "empty reference")
	}
	g, err := refParser.ParseString("", src)
	if err != nil {
		return corpus.Range{}, &errors.ParseError{Format: "reference", Message: fmt.Sprintf("%q: %v", input, err), Err: err}
	}

	bookID, err := ResolveBook(g.Book, books)
	if err != nil {
		return corpus.Range{}, err
	}

	r := corpus.Range{BookID: bookID, ChapterFrom: 1, VerseFrom: 1, ChapterTo: MaxChapter, VerseTo: MaxVerse}
	if g.Start == nil {
		return r, nil
	}

	r.ChapterFrom = g.Start.Chapter
	r.ChapterTo = g.Start.Chapter
	if g.Start.Verse != nil {
		r.VerseFrom = *g.Start.Verse
		r.VerseTo = *g.Start.Verse
	}

	if g.End != nil {
		switch {
		case g.Start.Verse != nil && g.End.Verse == nil:
			// "23,1-6": the number after the dash is a verse.
			r.VerseTo = g.End.Chapter
		case g.End.Verse != nil:
			r.ChapterTo = g.End.Chapter
			r.VerseTo = *g.End.Verse
		default:
			r.ChapterTo = g.End.Chapter
			r.VerseTo = MaxVerse
		}
	}
	return r, nil
}

// ResolveBook finds a book id by name: exact match first, then a unique
// prefix. Case, dots and spaces are ignored.
func ResolveBook(name string, books corpus.Books) (int, error) {
	want := normalize(name)
	if want == "" {
		return 0, errors.NewNotFound("book", name)
	}

	var prefixed []int
	for _, id := range books.IDs() {
		n := normalize(books[id])
		if n == want {
			return id, nil
		}
		if strings.HasPrefix(n, want) {
			prefixed = append(prefixed, id)
		}
	}

	switch len(prefixed) {
	case 1:
		return prefixed[0], nil
	case 0:
		return 0, errors.NewNotFound("book", name)
	default:
		names := make([]string, 0, len(prefixed))
		for _, id := range prefixed {
			names = append(names, books[id])
		}
		sort.Strings(names)
		return 0, &errors.NotFoundError{Resource: "book", ID: fmt.Sprintf("%s (ambiguous: %s)", name, strings.Join(names, ", "))}
	}
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r == '.' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
