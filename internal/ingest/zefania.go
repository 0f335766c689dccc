package ingest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

var (
	xpBooks    = xpath.MustCompile(`/XMLBIBLE/BIBLEBOOK`)
	xpChapters = xpath.MustCompile(`CHAPTER`)
	xpVerses   = xpath.MustCompile(`VERS`)
	xpTitle    = xpath.MustCompile(`/XMLBIBLE/INFORMATION/title`)
	xpLanguage = xpath.MustCompile(`/XMLBIBLE/INFORMATION/language`)
)

// ReadZefania reads a Zefania XML bible:
//
//	<XMLBIBLE>
//	  <BIBLEBOOK bnumber="1" bname="Genesis">
//	    <CHAPTER cnumber="1"><VERS vnumber="1">…</VERS></CHAPTER>
//
// Verse text is the element's inner text with whitespace collapsed. Verses
// or chapters without a numeric attribute are skipped and counted.
func ReadZefania(r io.Reader) (*Result, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, &errors.ParseError{Format: "zefania", Message: "parsing XML", Err: err}
	}

	books := xmlquery.QuerySelectorAll(doc, xpBooks)
	if len(books) == 0 {
		return nil, errors.NewParse("zefania", "", "no /XMLBIBLE/BIBLEBOOK elements")
	}

	res := &Result{Books: make(corpus.Books)}
	if n := xmlquery.QuerySelector(doc, xpTitle); n != nil {
		res.Title = collapse(n.InnerText())
	}
	if n := xmlquery.QuerySelector(doc, xpLanguage); n != nil {
		res.Language = strings.ToLower(collapse(n.InnerText()))
	}

	for _, b := range books {
		bookID, err := strconv.Atoi(strings.TrimSpace(b.SelectAttr("bnumber")))
		if err != nil || bookID <= 0 {
			return nil, errors.NewParse("zefania", "", fmt.Sprintf("BIBLEBOOK with invalid bnumber %q", b.SelectAttr("bnumber")))
		}
		name := strings.TrimSpace(b.SelectAttr("bname"))
		if name == "" {
			name = strings.TrimSpace(b.SelectAttr("bsname"))
		}
		if name == "" {
			name = strconv.Itoa(bookID)
		}
		res.Books[bookID] = name

		for _, c := range xmlquery.QuerySelectorAll(b, xpChapters) {
			chapter, err := strconv.Atoi(strings.TrimSpace(c.SelectAttr("cnumber")))
			verses := xmlquery.QuerySelectorAll(c, xpVerses)
			if err != nil || chapter <= 0 {
				res.Stats.Rows += len(verses)
				res.Stats.Skipped += len(verses)
				continue
			}
			for _, v := range verses {
				res.Stats.Rows++
				verse, err := strconv.Atoi(strings.TrimSpace(v.SelectAttr("vnumber")))
				if err != nil || verse <= 0 {
					res.Stats.Skipped++
					continue
				}
				res.Verses = append(res.Verses, corpus.Verse{
					BookID:  bookID,
					Chapter: chapter,
					Verse:   verse,
					Text:    collapse(v.InnerText()),
				})
			}
		}
	}

	res.Verses, res.Stats.Duplicates = canonical(res.Verses)
	return res, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
