// Package site renders the standalone offline page: one HTML file carrying
// the compressed corpus payload, the passage catalog and the reader script.
package site

import (
	"embed"
	"html/template"
	"io"

	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/passage"
	"github.com/FocuswithJustin/ChristusBible/internal/payload"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/standalone.html.tmpl"))

// Page is the data rendered into the standalone page.
type Page struct {
	Title        string
	Lang         string
	Version      string
	Payload      string // base64 gzip document
	Digest       payload.Digest
	Catalog      *passage.Catalog
	Translations []corpus.Meta
	LiveReload   bool
}

// Render writes the page to w.
func Render(w io.Writer, p Page) error {
	if p.Catalog == nil {
		p.Catalog = &passage.Catalog{Themes: []passage.Theme{}, Passages: []passage.Passage{}}
	}
	if p.Lang == "" {
		p.Lang = "de"
	}
	return pageTemplate.ExecuteTemplate(w, "standalone.html.tmpl", p)
}

// NewPage encodes corpora with the gzip codec, the only one the browser can
// decode, and fills a Page.
func NewPage(title string, corpora []*corpus.Corpus, catalog *passage.Catalog) (Page, error) {
	b64, digest, err := payload.EncodeBase64(corpora, payload.Gzip)
	if err != nil {
		return Page{}, err
	}
	p := Page{Title: title, Payload: b64, Digest: digest, Catalog: catalog}
	for _, c := range corpora {
		p.Translations = append(p.Translations, c.Meta())
	}
	if len(corpora) > 0 && corpora[0].Meta().Language != "" {
		p.Lang = corpora[0].Meta().Language
	}
	return p, nil
}
