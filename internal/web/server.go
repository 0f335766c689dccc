// Package web serves the built page and a JSON API over the loaded
// translations, the passage catalog and the annotation stores.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/FocuswithJustin/ChristusBible/core/annotate"
	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/passage"
	"github.com/FocuswithJustin/ChristusBible/internal/cache"
	"github.com/FocuswithJustin/ChristusBible/internal/logging"
)

// Config holds server configuration.
type Config struct {
	Port int
	// HTMLPath is the built standalone page served at "/".
	HTMLPath string
	// LiveReload watches HTMLPath and tells connected pages to reload.
	LiveReload     bool
	PollInterval   time.Duration
	AllowedOrigins []string
	SearchCacheTTL time.Duration
	SearchCacheMax int
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	if c.SearchCacheTTL <= 0 {
		c.SearchCacheTTL = 10 * time.Minute
	}
	if c.SearchCacheMax <= 0 {
		c.SearchCacheMax = 512
	}
	return c
}

// Server is the preview server.
type Server struct {
	cfg      Config
	corpora  map[string]*corpus.Corpus
	metas    []corpus.Meta
	catalog  *passage.Catalog
	stores   *annotate.Stores
	searches *cache.TTLCache[string, *SearchResult]
	hub      *Hub
}

// New creates a server over corpora. The first corpus is the default
// translation for catalog references and word highlights. catalog may be nil.
func New(cfg Config, corpora []*corpus.Corpus, catalog *passage.Catalog, stores *annotate.Stores) *Server {
	cfg = cfg.withDefaults()
	if catalog == nil {
		catalog = &passage.Catalog{}
	}
	s := &Server{
		cfg:      cfg,
		corpora:  make(map[string]*corpus.Corpus, len(corpora)),
		catalog:  catalog,
		stores:   stores,
		searches: cache.New[string, *SearchResult](cfg.SearchCacheTTL, cfg.SearchCacheMax),
		hub:      NewHub(),
	}
	for _, c := range corpora {
		s.corpora[c.ID()] = c
		s.metas = append(s.metas, c.Meta())
	}
	return s
}

func (s *Server) defaultCorpus() *corpus.Corpus {
	if len(s.metas) == 0 {
		return nil
	}
	return s.corpora[s.metas[0].ID]
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.CombinedMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(securityHeaders)

	r.Get("/", s.handleIndex)
	r.Get("/ws/reload", s.hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/translations", s.handleTranslations)

		r.Get("/themes", s.handleThemes)
		r.Get("/themes/{id}/passages", s.handleThemePassages)

		r.Get("/highlights", s.handleHighlights)
		r.Get("/highlights/{key}", s.handleHighlightGet)
		r.Put("/highlights/{key}", s.handleHighlightPut)
		r.Delete("/highlights/{key}", s.handleHighlightDelete)

		r.Get("/words", s.handleWordKeys)
		r.Get("/words/{key}", s.handleWordsGet)
		r.Post("/words/{key}", s.handleWordsPost)
		r.Delete("/words/{key}", s.handleWordsDelete)

		r.Get("/notes", s.handleNotes)
		r.Get("/notes/{id}", s.handleNoteGet)
		r.Put("/notes/{id}", s.handleNotePut)
		r.Delete("/notes/{id}", s.handleNoteDelete)

		r.Route("/{tr}", func(r chi.Router) {
			r.Use(s.withCorpus)
			r.Get("/books", s.handleBooks)
			r.Get("/books/{book}/chapters", s.handleChapters)
			r.Get("/books/{book}/chapters/{ch}", s.handleChapter)
			r.Get("/range", s.handleRange)
			r.Get("/search", s.handleSearch)
			r.Get("/ref", s.handleRef)
			r.Get("/passages/{id}", s.handlePassage)
		})
	})
	return r
}

// securityHeaders sets the response hardening headers. The standalone page
// carries its script and style inline.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start runs the websocket hub and, with LiveReload, the file watcher until
// ctx is done.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx)
	if s.cfg.LiveReload && s.cfg.HTMLPath != "" {
		go watchFile(ctx, s.cfg.HTMLPath, s.cfg.PollInterval, func() {
			s.hub.Broadcast(ReloadMessage{Type: ReloadType, Path: s.cfg.HTMLPath})
		})
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logging.ServerStartup("preview", "http", s.cfg.Port,
		"translations", len(s.metas),
		"html", s.cfg.HTMLPath,
		"live_reload", s.cfg.LiveReload)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
