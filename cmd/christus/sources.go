package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/ChristusBible/core/annotate"
	"github.com/FocuswithJustin/ChristusBible/core/cas"
	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
	"github.com/FocuswithJustin/ChristusBible/core/passage"
	"github.com/FocuswithJustin/ChristusBible/core/sqlite"
	"github.com/FocuswithJustin/ChristusBible/internal/bibledb"
	"github.com/FocuswithJustin/ChristusBible/internal/config"
	"github.com/FocuswithJustin/ChristusBible/internal/fetch"
	"github.com/FocuswithJustin/ChristusBible/internal/ingest"
	"github.com/FocuswithJustin/ChristusBible/internal/payload"
	"github.com/FocuswithJustin/ChristusBible/internal/site"
)

// SourceFlags selects the translations a pipeline command reads.
type SourceFlags struct {
	Inputs      []string `arg:"" optional:"" help:"Source files as id[:lang]=path (CSV or Zefania XML)"`
	Manifest    string   `help:"JSON manifest of remote sources" type:"existingfile" env:"CHRISTUS_MANIFEST"`
	Refresh     bool     `help:"Download manifest sources again even when cached"`
	Concurrency int      `help:"Parallel source loaders (default: number of CPUs)"`
}

// options fills the source part of site.Options.
func (f *SourceFlags) options() (site.Options, error) {
	opts := site.Options{Concurrency: f.Concurrency}
	for _, s := range f.Inputs {
		in, err := site.ParseInput(s)
		if err != nil {
			return opts, err
		}
		opts.Inputs = append(opts.Inputs, in)
	}
	if f.Manifest != "" {
		m, err := fetch.LoadManifestFile(f.Manifest)
		if err != nil {
			return opts, err
		}
		if err := m.Validate(); err != nil {
			return opts, err
		}
		fetcher, err := newFetcher(fetch.Options{Refresh: f.Refresh})
		if err != nil {
			return opts, err
		}
		opts.Sources = m.Sources
		opts.Fetcher = fetcher
	}
	return opts, nil
}

func (f *SourceFlags) load(ctx context.Context) ([]*corpus.Corpus, error) {
	opts, err := f.options()
	if err != nil {
		return nil, err
	}
	corpora, _, err := site.LoadCorpora(ctx, opts)
	return corpora, err
}

// newFetcher stores downloads under the data directory. An s3 getter is
// registered when CHRISTUS_S3_ENDPOINT is set.
func newFetcher(opts fetch.Options) (*fetch.Fetcher, error) {
	store, err := cas.NewStore(filepath.Join(CLI.DataDir, "sources"))
	if err != nil {
		return nil, err
	}
	f := fetch.New(store, opts)
	if s3 := config.S3FromEnv(); s3.Configured() {
		g, err := fetch.NewS3Getter(s3)
		if err != nil {
			return nil, err
		}
		f.Register("s3", g)
	}
	return f, nil
}

// CorpusFlags selects one translation for a query.
type CorpusFlags struct {
	From        string `short:"f" required:"" help:"CSV/XML source (id[:lang]=path), payload file or SQLite database" env:"CHRISTUS_FROM"`
	Translation string `short:"t" help:"Translation id within a payload or database (default: the first)" env:"CHRISTUS_TRANSLATION"`
}

func (f *CorpusFlags) load(ctx context.Context) (*corpus.Corpus, error) {
	return loadCorpus(ctx, f.From, f.Translation)
}

func loadCorpus(ctx context.Context, from, translation string) (*corpus.Corpus, error) {
	switch strings.ToLower(filepath.Ext(from)) {
	case ".db", ".sqlite", ".sqlite3":
		db, err := sqlite.OpenReadOnly(from)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		if translation == "" {
			metas, err := bibledb.Translations(ctx, db)
			if err != nil {
				return nil, err
			}
			if len(metas) == 0 {
				return nil, errors.NewNotFound("translation", from)
			}
			translation = metas[0].ID
		}
		return bibledb.Load(ctx, db, translation)
	}

	if _, err := payload.CodecForPath(from); err == nil {
		corpora, err := payload.ReadFile(from)
		if err != nil {
			return nil, err
		}
		return pick(corpora, translation)
	}

	in, err := site.ParseInput(from)
	if err != nil {
		return nil, err
	}
	res, err := ingest.ReadFile(in.Path, in.Format)
	if err != nil {
		return nil, err
	}
	return res.Corpus(in.Meta)
}

func pick(corpora []*corpus.Corpus, id string) (*corpus.Corpus, error) {
	if len(corpora) == 0 {
		return nil, errors.NewNotFound("translation", "any")
	}
	if id == "" {
		return corpora[0], nil
	}
	for _, c := range corpora {
		if c.ID() == id {
			return c, nil
		}
	}
	return nil, errors.NewNotFound("translation", id)
}

func loadCatalog(path string) (*passage.Catalog, error) {
	if path == "" {
		return nil, nil
	}
	cat, err := passage.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// openStores opens the annotation stores under the data directory.
func openStores(ctx context.Context) (*annotate.Stores, func() error, error) {
	if err := os.MkdirAll(CLI.DataDir, 0o755); err != nil {
		return nil, nil, errors.NewIO("create", CLI.DataDir, err)
	}
	switch CLI.Store {
	case "sqlite":
		db, err := sqlite.Open(filepath.Join(CLI.DataDir, "annotations.db"))
		if err != nil {
			return nil, nil, err
		}
		backend, err := annotate.NewSQLiteBackend(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return annotate.Open(ctx, backend), db.Close, nil
	default:
		backend, err := annotate.NewFileBackend(filepath.Join(CLI.DataDir, "annotations"))
		if err != nil {
			return nil, nil, err
		}
		return annotate.Open(ctx, backend), func() error { return nil }, nil
	}
}

type degradable interface{ Degraded() bool }

// saved turns a store that fell back to memory into an error, since a CLI
// process loses its memory on exit.
func saved(name string, s degradable) error {
	if s.Degraded() {
		return fmt.Errorf("%s store is unavailable, change was not saved", name)
	}
	return nil
}
