package web

import (
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/FocuswithJustin/ChristusBible/core/annotate"
	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

func (s *Server) requireStores(w http.ResponseWriter) bool {
	if s.stores == nil {
		respondError(w, http.StatusServiceUnavailable, "NO_STORES", "annotations are disabled")
		return false
	}
	return true
}

func keyParam(r *http.Request) (corpus.Key, error) {
	return corpus.ParseKey(chi.URLParam(r, "key"))
}

// HighlightView is the color of one verse.
type HighlightView struct {
	Key   string         `json:"key"`
	Color annotate.Color `json:"color"`
}

func (s *Server) handleHighlights(w http.ResponseWriter, r *http.Request) {
	if !s.requireStores(w) {
		return
	}
	all := s.stores.Highlights.All()
	respondTotal(w, http.StatusOK, all, len(all))
}

func (s *Server) handleHighlightGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireStores(w) {
		return
	}
	k, err := keyParam(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, HighlightView{Key: k.String(), Color: s.stores.Highlights.Get(k)})
}

func (s *Server) handleHighlightPut(w http.ResponseWriter, r *http.Request) {
	if !s.requireStores(w) {
		return
	}
	k, err := keyParam(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var body struct {
		Color string `json:"color"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		respondErr(w, r, err)
		return
	}
	c, err := annotate.ParseColor(body.Color)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := s.stores.Highlights.Set(r.Context(), k, c); err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, HighlightView{Key: k.String(), Color: c})
}

func (s *Server) handleHighlightDelete(w http.ResponseWriter, r *http.Request) {
	if !s.requireStores(w) {
		return
	}
	k, err := keyParam(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.stores.Highlights.Clear(r.Context(), k)
	w.WriteHeader(http.StatusNoContent)
}

// WordsView lists the word ranges of one verse, and the colored segments
// when the verse text is known.
type WordsView struct {
	Key      string                    `json:"key"`
	Ranges   []annotate.WordRange      `json:"ranges"`
	Segments []annotate.ColoredSegment `json:"segments,omitempty"`
}

// wordsCorpus picks the translation named by ?tr=, or the default one.
func (s *Server) wordsCorpus(r *http.Request) (*corpus.Corpus, error) {
	id := r.URL.Query().Get("tr")
	if id == "" {
		if c := s.defaultCorpus(); c != nil {
			return c, nil
		}
		return nil, errors.NewNotFound("translation", "default")
	}
	c, ok := s.corpora[id]
	if !ok {
		return nil, errors.NewNotFound("translation", id)
	}
	return c, nil
}

func (s *Server) wordsView(r *http.Request, k corpus.Key) WordsView {
	ranges := s.stores.Words.Ranges(k)
	if ranges == nil {
		ranges = []annotate.WordRange{}
	}
	view := WordsView{Key: k.String(), Ranges: ranges}
	if c, err := s.wordsCorpus(r); err == nil {
		if v, ok := c.Verse(k); ok {
			view.Segments = annotate.Render(v.Text, ranges)
		}
	}
	return view
}

func (s *Server) handleWordKeys(w http.ResponseWriter, r *http.Request) {
	if !s.requireStores(w) {
		return
	}
	keys := s.stores.Words.Keys()
	respondTotal(w, http.StatusOK, keys, len(keys))
}

func (s *Server) handleWordsGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireStores(w) {
		return
	}
	k, err := keyParam(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, s.wordsView(r, k))
}

// handleWordsPost adds a rune range, evicting every stored range it touches.
func (s *Server) handleWordsPost(w http.ResponseWriter, r *http.Request) {
	if !s.requireStores(w) {
		return
	}
	k, err := keyParam(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	c, err := s.wordsCorpus(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	v, ok := c.Verse(k)
	if !ok {
		respondErr(w, r, errors.NewNotFound("verse", k.String()))
		return
	}
	var body struct {
		Start int    `json:"start"`
		End   int    `json:"end"`
		Color string `json:"color"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		respondErr(w, r, err)
		return
	}
	color, err := annotate.ParseColor(body.Color)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	rg := annotate.WordRange{Start: body.Start, End: body.End, Color: color}
	if err := s.stores.Words.Add(r.Context(), k, utf8.RuneCountInString(v.Text), rg); err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, s.wordsView(r, k))
}

func (s *Server) handleWordsDelete(w http.ResponseWriter, r *http.Request) {
	if !s.requireStores(w) {
		return
	}
	k, err := keyParam(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.stores.Words.Clear(r.Context(), k)
	w.WriteHeader(http.StatusNoContent)
}

// NoteView is the note of one passage.
type NoteView struct {
	PassageID int    `json:"passage_id"`
	Text      string `json:"text"`
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	if !s.requireStores(w) {
		return
	}
	all := s.stores.Notes.All()
	out := make([]NoteView, 0, len(all))
	for _, id := range s.stores.Notes.IDs() {
		out = append(out, NoteView{PassageID: id, Text: all[id]})
	}
	respondTotal(w, http.StatusOK, out, len(out))
}

func (s *Server) notePassage(r *http.Request) (int, error) {
	id, err := intParam(r, "id")
	if err != nil {
		return 0, err
	}
	if _, ok := s.catalog.ByID(id); !ok {
		return 0, errors.NewNotFound("passage", strconv.Itoa(id))
	}
	return id, nil
}

func (s *Server) handleNoteGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireStores(w) {
		return
	}
	id, err := s.notePassage(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	text, ok := s.stores.Notes.Get(id)
	if !ok {
		respondErr(w, r, errors.NewNotFound("note", strconv.Itoa(id)))
		return
	}
	respond(w, http.StatusOK, NoteView{PassageID: id, Text: text})
}

// handleNotePut saves a note. Whitespace-only text deletes it.
func (s *Server) handleNotePut(w http.ResponseWriter, r *http.Request) {
	if !s.requireStores(w) {
		return
	}
	id, err := s.notePassage(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		respondErr(w, r, err)
		return
	}
	s.stores.Notes.Save(r.Context(), id, body.Text)
	text, _ := s.stores.Notes.Get(id)
	respond(w, http.StatusOK, NoteView{PassageID: id, Text: text})
}

func (s *Server) handleNoteDelete(w http.ResponseWriter, r *http.Request) {
	if !s.requireStores(w) {
		return
	}
	id, err := s.notePassage(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.stores.Notes.Delete(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}
