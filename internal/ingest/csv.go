package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

// Column names of the CSV export.
const (
	colVerseID  = "Verse ID"
	colBookNum  = "Book Number"
	colBookName = "Book Name"
	colChapter  = "Chapter"
	colVerse    = "Verse"
	colText     = "Text"
)

// ReadCSV reads the CSV export. Metadata lines before the header row (the
// first row mentioning both "Verse ID" and "Book Number") are ignored. Rows
// whose book, chapter or verse is not a number are skipped and counted.
func ReadCSV(r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := findHeader(cr)
	if err != nil {
		return nil, err
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.Trim(strings.TrimSpace(name), `"`)] = i
	}
	idx := make(map[string]int, 5)
	for _, name := range []string{colBookNum, colBookName, colChapter, colVerse, colText} {
		i, ok := col[name]
		if !ok {
			return nil, errors.NewParse("csv", "", fmt.Sprintf("expected column %q not found", name))
		}
		idx[name] = i
	}

	res := &Result{Books: make(corpus.Books)}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &errors.ParseError{Format: "csv", Message: "reading rows", Err: err}
		}
		if blank(row) {
			continue
		}
		res.Stats.Rows++

		v, name, ok := parseRow(row, idx)
		if !ok {
			res.Stats.Skipped++
			continue
		}
		res.Books[v.BookID] = name
		res.Verses = append(res.Verses, v)
	}

	res.Verses, res.Stats.Duplicates = canonical(res.Verses)
	return res, nil
}

func findHeader(cr *csv.Reader) ([]string, error) {
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil, errors.NewParse("csv", "", fmt.Sprintf("header row not found, expected columns %q and %q", colVerseID, colBookNum))
		}
		if err != nil {
			return nil, &errors.ParseError{Format: "csv", Message: "reading header", Err: err}
		}
		if anyContains(row, colVerseID) && anyContains(row, colBookNum) {
			return row, nil
		}
	}
}

func parseRow(row []string, idx map[string]int) (corpus.Verse, string, bool) {
	field := func(name string) (string, bool) {
		i := idx[name]
		if i >= len(row) {
			return "", false
		}
		return row[i], true
	}
	num := func(name string) (int, bool) {
		s, ok := field(name)
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		return n, err == nil
	}

	book, ok1 := num(colBookNum)
	chapter, ok2 := num(colChapter)
	verse, ok3 := num(colVerse)
	name, ok4 := field(colBookName)
	text, ok5 := field(colText)
	if !(ok1 && ok2 && ok3 && ok4 && ok5) || book <= 0 || chapter <= 0 || verse <= 0 {
		return corpus.Verse{}, "", false
	}
	return corpus.Verse{BookID: book, Chapter: chapter, Verse: verse, Text: text}, name, true
}

func anyContains(row []string, s string) bool {
	for _, c := range row {
		if strings.Contains(c, s) {
			return true
		}
	}
	return false
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
