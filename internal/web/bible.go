package web

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/FocuswithJustin/ChristusBible/core/annotate"
	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
	"github.com/FocuswithJustin/ChristusBible/core/passage"
	"github.com/FocuswithJustin/ChristusBible/core/ref"
)

type corpusKey struct{}

func (s *Server) withCorpus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "tr")
		c, ok := s.corpora[id]
		if !ok {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown translation "+strconv.Quote(id))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), corpusKey{}, c)))
	})
}

func corpusFrom(r *http.Request) *corpus.Corpus {
	return r.Context().Value(corpusKey{}).(*corpus.Corpus)
}

// VerseView is a verse with its annotations.
type VerseView struct {
	corpus.Verse
	Key       string               `json:"key"`
	Highlight annotate.Color       `json:"highlight,omitempty"`
	Words     []annotate.WordRange `json:"words,omitempty"`
}

func (s *Server) view(v corpus.Verse) VerseView {
	k := v.Key()
	out := VerseView{Verse: v, Key: k.String()}
	if s.stores != nil {
		out.Highlight = s.stores.Highlights.Get(k)
		out.Words = s.stores.Words.Ranges(k)
	}
	return out
}

func (s *Server) views(verses []corpus.Verse) []VerseView {
	out := make([]VerseView, len(verses))
	for i, v := range verses {
		out[i] = s.view(v)
	}
	return out
}

// TranslationInfo describes a loaded translation.
type TranslationInfo struct {
	corpus.Meta
	Books  int `json:"books"`
	Verses int `json:"verses"`
}

// BookInfo describes one book of a translation.
type BookInfo struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Chapters int    `json:"chapters"`
}

// SearchHit is a matching verse with its merged highlight spans.
type SearchHit struct {
	VerseView
	Reference string        `json:"reference"`
	Spans     []corpus.Span `json:"spans"`
}

// SearchResult is the answer to a search query.
type SearchResult struct {
	Query string      `json:"query"`
	Terms []string    `json:"terms"`
	Limit int         `json:"limit"`
	Hits  []SearchHit `json:"hits"`
}

// PassageView is a catalog passage resolved against a translation.
type PassageView struct {
	passage.Passage
	Reference string      `json:"reference"`
	Verses    []VerseView `json:"verses,omitempty"`
	Note      string      `json:"note,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.cfg.HTMLPath == "" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no page configured")
		return
	}
	page, err := os.ReadFile(s.cfg.HTMLPath)
	if err != nil {
		if os.IsNotExist(err) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "page not built yet, run christus build")
			return
		}
		respondErr(w, r, errors.NewIO("read", s.cfg.HTMLPath, err))
		return
	}
	if s.cfg.LiveReload {
		page = injectReload(page)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(page)
}

func (s *Server) handleTranslations(w http.ResponseWriter, r *http.Request) {
	out := make([]TranslationInfo, 0, len(s.metas))
	for _, m := range s.metas {
		c := s.corpora[m.ID]
		out = append(out, TranslationInfo{Meta: m, Books: len(c.BookIDs()), Verses: c.Len()})
	}
	respondTotal(w, http.StatusOK, out, len(out))
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	c := corpusFrom(r)
	names := c.Books()
	ids := c.BookIDs()
	out := make([]BookInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, BookInfo{ID: id, Name: names[id], Chapters: len(c.Chapters(id))})
	}
	respondTotal(w, http.StatusOK, out, len(out))
}

func (s *Server) bookParam(r *http.Request, c *corpus.Corpus) (int, error) {
	book, err := intParam(r, "book")
	if err != nil {
		return 0, err
	}
	if _, ok := c.Book(book); !ok {
		return 0, errors.NewNotFound("book", strconv.Itoa(book))
	}
	return book, nil
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	c := corpusFrom(r)
	book, err := s.bookParam(r, c)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	chapters := c.Chapters(book)
	respondTotal(w, http.StatusOK, chapters, len(chapters))
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	c := corpusFrom(r)
	book, err := s.bookParam(r, c)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	ch, err := intParam(r, "ch")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	verses := c.Chapter(book, ch)
	if len(verses) == 0 {
		respondErr(w, r, errors.NewNotFound("chapter", strconv.Itoa(book)+":"+strconv.Itoa(ch)))
		return
	}
	respondTotal(w, http.StatusOK, s.views(verses), len(verses))
}

// handleRange answers book, cf, vf, ct, vt. An empty result is not an error.
func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	var rg corpus.Range
	fields := []struct {
		name string
		dst  *int
	}{
		{"book", &rg.BookID},
		{"cf", &rg.ChapterFrom},
		{"vf", &rg.VerseFrom},
		{"ct", &rg.ChapterTo},
		{"vt", &rg.VerseTo},
	}
	for _, f := range fields {
		n, err := intQuery(r, f.name, -1)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		*f.dst = n
	}
	verses := corpusFrom(r).VersesInRange(rg)
	respondTotal(w, http.StatusOK, s.views(verses), len(verses))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	c := corpusFrom(r)
	q := r.URL.Query().Get("q")
	terms := corpus.Terms(q)
	if len(terms) == 0 {
		respondError(w, http.StatusBadRequest, "EMPTY_QUERY", "type something")
		return
	}
	limit, err := intQuery(r, "limit", corpus.DefaultSearchLimit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if limit > corpus.DefaultSearchLimit {
		limit = corpus.DefaultSearchLimit
	}

	key := c.ID() + "\x00" + strconv.Itoa(limit) + "\x00" + strings.Join(terms, " ")
	cached, ok := s.searches.Get(key)
	if !ok {
		cached = search(c, terms, limit)
		s.searches.Set(key, cached)
	}

	// Annotations change independently of the cached matches.
	res := SearchResult{Query: q, Terms: terms, Limit: limit, Hits: make([]SearchHit, len(cached.Hits))}
	for i, h := range cached.Hits {
		h.VerseView = s.view(h.Verse)
		res.Hits[i] = h
	}
	respondTotal(w, http.StatusOK, res, len(res.Hits))
}

func search(c *corpus.Corpus, terms []string, limit int) *SearchResult {
	verses := c.SearchTerms(terms, limit)
	hl := corpus.NewHighlighter(terms)
	names := c.Books()

	res := &SearchResult{Terms: terms, Limit: limit, Hits: make([]SearchHit, len(verses))}
	for i, v := range verses {
		res.Hits[i] = SearchHit{
			VerseView: VerseView{Verse: v, Key: v.Key().String()},
			Reference: names[v.BookID] + " " + strconv.Itoa(v.Chapter) + "," + strconv.Itoa(v.Verse),
			Spans:     hl.Spans(v.Text),
		}
	}
	return res
}

// RefResult is a parsed reference with the verses it selects.
type RefResult struct {
	Range  corpus.Range `json:"range"`
	Verses []VerseView  `json:"verses"`
}

func (s *Server) handleRef(w http.ResponseWriter, r *http.Request) {
	c := corpusFrom(r)
	rg, err := ref.Parse(r.URL.Query().Get("q"), c.Books())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	verses := c.VersesInRange(rg)
	respondTotal(w, http.StatusOK, RefResult{Range: rg, Verses: s.views(verses)}, len(verses))
}

// ThemeView is a theme with its passage count.
type ThemeView struct {
	passage.Theme
	Passages int `json:"passages"`
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	themes := s.catalog.ThemesSorted()
	out := make([]ThemeView, len(themes))
	for i, t := range themes {
		out[i] = ThemeView{Theme: t, Passages: len(s.catalog.ForTheme(t.ID))}
	}
	respondTotal(w, http.StatusOK, out, len(out))
}

func (s *Server) passageView(p passage.Passage, c *corpus.Corpus, withVerses bool) PassageView {
	v := PassageView{Passage: p}
	if c != nil {
		v.Reference = passage.Reference(p, c.Books())
		if withVerses {
			v.Verses = s.views(passage.Verses(p, c))
		}
	}
	if s.stores != nil {
		v.Note, _ = s.stores.Notes.Get(p.ID)
	}
	return v
}

func (s *Server) handleThemePassages(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if _, ok := s.catalog.Theme(id); !ok {
		respondErr(w, r, errors.NewNotFound("theme", strconv.Itoa(id)))
		return
	}
	c := s.defaultCorpus()
	ps := s.catalog.ForTheme(id)
	out := make([]PassageView, len(ps))
	for i, p := range ps {
		out[i] = s.passageView(p, c, false)
	}
	respondTotal(w, http.StatusOK, out, len(out))
}

func (s *Server) handlePassage(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	p, ok := s.catalog.ByID(id)
	if !ok {
		respondErr(w, r, errors.NewNotFound("passage", strconv.Itoa(id)))
		return
	}
	respond(w, http.StatusOK, s.passageView(p, corpusFrom(r), true))
}
