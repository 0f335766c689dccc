// Package ingest reads verse sources (the CSV export and Zefania XML) into
// verse lists ready for corpus.New.
package ingest

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

// Format identifies a source file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatZefania Format = "zefania"
)

// ParseFormat validates a format name. An empty name means "detect".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatCSV, FormatZefania:
		return f, nil
	default:
		return "", errors.NewUnsupported("source format", s)
	}
}

// Stats counts what a reader saw.
type Stats struct {
	Rows       int `json:"rows"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
}

// Result is one source read into memory.
type Result struct {
	Books  corpus.Books
	Verses []corpus.Verse
	Stats  Stats

	// Optional source metadata (Zefania INFORMATION block).
	Title    string
	Language string
}

// Corpus builds a corpus from the result.
func (r *Result) Corpus(meta corpus.Meta) (*corpus.Corpus, error) {
	if meta.Name == "" {
		meta.Name = r.Title
	}
	if meta.Language == "" {
		meta.Language = r.Language
	}
	return corpus.New(meta, r.Books, r.Verses)
}

// Detect picks a format from the file name, falling back to sniffing the
// first bytes.
func Detect(name string, head []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV
	case ".xml":
		return FormatZefania
	}
	trimmed := bytes.TrimLeft(head, "\ufeff \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		return FormatZefania
	}
	return FormatCSV
}

// Read parses r in the given format; an empty format is detected from name
// and content.
func Read(r io.Reader, name string, format Format) (*Result, error) {
	br := bufio.NewReader(r)
	if format == "" {
		head, _ := br.Peek(512)
		format = Detect(name, head)
	}
	switch format {
	case FormatCSV:
		return ReadCSV(br)
	case FormatZefania:
		return ReadZefania(br)
	default:
		return nil, errors.NewUnsupported("source format", string(format))
	}
}

// ReadFile opens path and reads it with Read.
func ReadFile(path string, format Format) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	res, err := Read(f, path, format)
	var pe *errors.ParseError
	if errors.As(err, &pe) && pe.Path == "" {
		pe.Path = path
	}
	return res, err
}

// canonical sorts verses by key and drops earlier duplicates, keeping the
// last occurrence. It returns the number of dropped verses.
func canonical(verses []corpus.Verse) ([]corpus.Verse, int) {
	sort.SliceStable(verses, func(i, j int) bool {
		return verses[i].Key().Less(verses[j].Key())
	})
	out := verses[:0]
	dropped := 0
	for i, v := range verses {
		if i+1 < len(verses) && verses[i+1].Key() == v.Key() {
			dropped++
			continue
		}
		out = append(out, v)
	}
	return out, dropped
}
