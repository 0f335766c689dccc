// Package payload serializes corpora into the compressed document embedded
// in the standalone page, and reads it back.
//
// The document is JSON:
//
//	{"version":1,"translations":[{"id":"elb1905","lang":"de","name":"…",
//	  "books":{"1":"1. Mose"},"verses":[[1,1,1,"Im Anfang …"]]}]}
//
// Older single-translation payloads ({"books":…,"verses":…}) still decode.
package payload

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

// Version is the document version written by Encode.
const Version = 1

// LegacyID names the translation of a versionless payload.
const LegacyID = "default"

// Digest is the hex BLAKE3 of the uncompressed document.
type Digest string

// Short returns the first 12 hex digits, enough for cache busting.
func (d Digest) Short() string {
	if len(d) > 12 {
		return string(d[:12])
	}
	return string(d)
}

// Row is a verse in its compact [book, chapter, verse, text] form.
type Row corpus.Verse

func (r Row) MarshalJSON() ([]byte, error) {
	text, err := json.Marshal(r.Text)
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, len(text)+24)
	b = append(b, '[')
	b = strconv.AppendInt(b, int64(r.BookID), 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(r.Chapter), 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(r.Verse), 10)
	b = append(b, ',')
	b = append(b, text...)
	return append(b, ']'), nil
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) != 4 {
		return fmt.Errorf("verse row has %d fields, want 4", len(fields))
	}
	for i, dst := range []*int{&r.BookID, &r.Chapter, &r.Verse} {
		if err := json.Unmarshal(fields[i], dst); err != nil {
			return fmt.Errorf("verse row field %d: %w", i, err)
		}
	}
	return json.Unmarshal(fields[3], &r.Text)
}

// Translation is one corpus in wire form.
type Translation struct {
	ID     string            `json:"id"`
	Lang   string            `json:"lang"`
	Name   string            `json:"name"`
	Books  map[string]string `json:"books"`
	Verses []Row             `json:"verses"`
}

// Document is the whole payload.
type Document struct {
	Version      int           `json:"version"`
	Translations []Translation `json:"translations"`

	// Versionless payloads carry one translation at the top level.
	Books  map[string]string `json:"books,omitempty"`
	Verses []Row             `json:"verses,omitempty"`
}

// NewDocument converts corpora into wire form.
func NewDocument(corpora []*corpus.Corpus) *Document {
	doc := &Document{Version: Version, Translations: make([]Translation, 0, len(corpora))}
	for _, c := range corpora {
		meta := c.Meta()
		t := Translation{ID: meta.ID, Lang: meta.Language, Name: meta.Name, Books: make(map[string]string)}
		for id, name := range c.Books() {
			t.Books[strconv.Itoa(id)] = name
		}
		verses := c.Verses()
		t.Verses = make([]Row, len(verses))
		for i, v := range verses {
			t.Verses[i] = Row(v)
		}
		doc.Translations = append(doc.Translations, t)
	}
	return doc
}

// Corpora validates the document and builds one corpus per translation.
func (d *Document) Corpora() ([]*corpus.Corpus, error) {
	translations := d.Translations
	if d.Version == 0 && len(translations) == 0 && d.Books != nil {
		translations = []Translation{{ID: LegacyID, Books: d.Books, Verses: d.Verses}}
	}
	if d.Version > Version {
		return nil, errors.NewLoad("decode", fmt.Errorf("payload version %d is newer than %d", d.Version, Version))
	}
	if len(translations) == 0 {
		return nil, errors.NewLoad("decode", fmt.Errorf("payload has no translations"))
	}

	out := make([]*corpus.Corpus, 0, len(translations))
	for _, t := range translations {
		books := make(corpus.Books, len(t.Books))
		for k, name := range t.Books {
			id, err := strconv.Atoi(k)
			if err != nil {
				return nil, errors.NewLoad("decode", fmt.Errorf("translation %q: book id %q", t.ID, k))
			}
			books[id] = name
		}
		verses := make([]corpus.Verse, len(t.Verses))
		for i, r := range t.Verses {
			verses[i] = corpus.Verse(r)
		}
		c, err := corpus.New(corpus.Meta{ID: t.ID, Language: t.Lang, Name: t.Name}, books, verses)
		if err != nil {
			return nil, errors.NewLoad("corpus", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Marshal returns the uncompressed JSON document.
func Marshal(corpora []*corpus.Corpus) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(NewDocument(corpora)); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Encode writes the compressed document to w.
func Encode(w io.Writer, corpora []*corpus.Corpus, codec Codec) (Digest, error) {
	raw, err := Marshal(corpora)
	if err != nil {
		return "", err
	}
	cw, err := codec.NewWriter(w)
	if err != nil {
		return "", err
	}
	if _, err := cw.Write(raw); err != nil {
		cw.Close()
		return "", errors.Wrapf(err, "%s compress", codec)
	}
	if err := cw.Close(); err != nil {
		return "", errors.Wrapf(err, "%s compress", codec)
	}
	return digest(raw), nil
}

// EncodeBase64 returns the compressed document as standard base64.
func EncodeBase64(corpora []*corpus.Corpus, codec Codec) (string, Digest, error) {
	var buf bytes.Buffer
	d, err := Encode(&buf, corpora, codec)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), d, nil
}

// Decode reads a compressed document. Any failure is a *errors.LoadError and
// no corpus is returned.
func Decode(r io.Reader, codec Codec) ([]*corpus.Corpus, error) {
	cr, err := codec.NewReader(r)
	if err != nil {
		return nil, errors.NewLoad("decompress", err)
	}
	defer cr.Close()

	var doc Document
	dec := json.NewDecoder(bufio.NewReader(cr))
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.NewLoad("decode", err)
	}
	return doc.Corpora()
}

// DecodeBase64 reverses EncodeBase64.
func DecodeBase64(s string, codec Codec) ([]*corpus.Corpus, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.NewLoad("base64", err)
	}
	return Decode(bytes.NewReader(raw), codec)
}

// WriteFile encodes corpora to path with the codec implied by its extension.
// It returns the digest and the compressed size.
func WriteFile(path string, corpora []*corpus.Corpus) (Digest, int64, error) {
	codec, err := CodecForPath(path)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", 0, errors.NewIO("create", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", 0, errors.NewIO("create", path, err)
	}
	cw := &countingWriter{w: f}
	d, err := Encode(cw, corpora, codec)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.NewIO("close", path, cerr)
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}
	return d, cw.n, nil
}

// ReadFile decodes the payload at path.
func ReadFile(path string) ([]*corpus.Corpus, error) {
	codec, err := CodecForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()
	return Decode(f, codec)
}

func digest(raw []byte) Digest {
	h := blake3.Sum256(raw)
	return Digest(hex.EncodeToString(h[:]))
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
