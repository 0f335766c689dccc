package annotate

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/FocuswithJustin/ChristusBible/core/errors"
	"github.com/FocuswithJustin/ChristusBible/internal/logging"
)

// blobStore is a map persisted as one JSON blob.
type blobStore[V any] struct {
	mu       sync.Mutex
	name     string
	backend  Backend
	data     map[string]V
	degraded bool
}

func openBlob[V any](ctx context.Context, backend Backend, name string) *blobStore[V] {
	s := &blobStore[V]{name: name, backend: backend, data: make(map[string]V)}
	if data, err := s.read(ctx); err != nil {
		s.degrade("load", err)
	} else {
		s.data = data
	}
	return s
}

func (s *blobStore[V]) read(ctx context.Context) (map[string]V, error) {
	raw, err := s.backend.Load(ctx, s.name)
	if err != nil {
		return nil, errors.NewStorage(s.name, "load", err)
	}
	m := make(map[string]V)
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.NewStorage(s.name, "load", err)
	}
	return m, nil
}

func (s *blobStore[V]) degrade(op string, err error) {
	if s.degraded {
		return
	}
	s.degraded = true
	logging.StoreDegraded(s.name, op, err)
}

// update re-reads the whole map, applies fn and writes the whole map back.
// Backend failures switch the store to memory-only mode; fn is still applied.
func (s *blobStore[V]) update(ctx context.Context, fn func(m map[string]V)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.degraded {
		if fresh, err := s.read(ctx); err != nil {
			s.degrade("load", err)
		} else {
			s.data = fresh
		}
	}

	fn(s.data)

	if s.degraded {
		return
	}
	raw, err := json.Marshal(s.data)
	if err == nil {
		err = s.backend.Save(ctx, s.name, raw)
	}
	if err != nil {
		s.degrade("save", errors.NewStorage(s.name, "save", err))
	}
}

func (s *blobStore[V]) get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *blobStore[V]) snapshot() map[string]V {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]V, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Degraded reports whether the store fell back to memory-only mode.
func (s *blobStore[V]) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Store names used as backend keys.
const (
	HighlightsStore = "highlights"
	WordsStore      = "word_highlights"
	NotesStore      = "notes"
)

// Stores bundles the three annotation stores over one backend.
type Stores struct {
	Highlights *Highlights
	Words      *WordHighlights
	Notes      *Notes
}

// Open loads all annotation stores from backend.
func Open(ctx context.Context, backend Backend) *Stores {
	return &Stores{
		Highlights: OpenHighlights(ctx, backend),
		Words:      OpenWordHighlights(ctx, backend),
		Notes:      OpenNotes(ctx, backend),
	}
}
