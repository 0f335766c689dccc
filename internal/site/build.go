package site

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
	"github.com/FocuswithJustin/ChristusBible/core/passage"
	"github.com/FocuswithJustin/ChristusBible/internal/fetch"
	"github.com/FocuswithJustin/ChristusBible/internal/ingest"
	"github.com/FocuswithJustin/ChristusBible/internal/logging"
	"github.com/FocuswithJustin/ChristusBible/internal/payload"
)

// Input is a local source file.
type Input struct {
	Path   string
	Format ingest.Format
	Meta   corpus.Meta
}

// ParseInput parses "id=path" or "id:lang=path", or a bare path whose file
// name (without extension) becomes the id.
func ParseInput(s string) (Input, error) {
	label, path, ok := strings.Cut(s, "=")
	if !ok {
		path = s
		label = strings.TrimSuffix(filepath.Base(s), filepath.Ext(s))
	}
	if path == "" || label == "" {
		return Input{}, errors.NewValidation("input", fmt.Sprintf("want id[:lang]=path, got %q", s))
	}
	id, lang, _ := strings.Cut(label, ":")
	return Input{Path: path, Meta: corpus.Meta{ID: id, Language: lang, Name: id}}, nil
}

// Options configures Build and LoadCorpora.
type Options struct {
	Inputs  []Input
	Sources []fetch.Source
	Fetcher *fetch.Fetcher // required when Sources is set

	CatalogPath string
	Output      string
	// PayloadFile, when set, also writes the payload on its own; the codec
	// follows the extension.
	PayloadFile string

	Title       string
	Version     string
	LiveReload  bool
	Concurrency int
}

// TranslationReport summarizes one loaded translation.
type TranslationReport struct {
	ID         string `json:"id"`
	Books      int    `json:"books"`
	Verses     int    `json:"verses"`
	Skipped    int    `json:"skipped"`
	Duplicates int    `json:"duplicates"`
}

// Report summarizes a build.
type Report struct {
	Translations  []TranslationReport `json:"translations"`
	Passages      int                 `json:"passages"`
	EmptyPassages []int               `json:"empty_passages,omitempty"`
	PayloadBytes  int64               `json:"payload_bytes"`
	HTMLBytes     int64               `json:"html_bytes"`
	Digest        payload.Digest      `json:"digest"`
	Output        string              `json:"output"`
	Duration      time.Duration       `json:"duration"`
}

func (r *Report) String() string {
	var b strings.Builder
	for _, t := range r.Translations {
		fmt.Fprintf(&b, "%-12s %3d books  %s verses", t.ID, t.Books, humanize.Comma(int64(t.Verses)))
		if t.Skipped > 0 || t.Duplicates > 0 {
			fmt.Fprintf(&b, "  (%d skipped, %d duplicates)", t.Skipped, t.Duplicates)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "passages     %d", r.Passages)
	if len(r.EmptyPassages) > 0 {
		fmt.Fprintf(&b, " (%d resolve to no verses)", len(r.EmptyPassages))
	}
	fmt.Fprintf(&b, "\npayload      %s (digest %s)\n", humanize.Bytes(uint64(r.PayloadBytes)), r.Digest.Short())
	fmt.Fprintf(&b, "wrote        %s, %s in %s\n", r.Output, humanize.Bytes(uint64(r.HTMLBytes)), r.Duration.Round(time.Millisecond))
	return b.String()
}

type loaded struct {
	corpus *corpus.Corpus
	report TranslationReport
	err    error
}

// LoadCorpora reads every input and source. Local files are parsed in
// parallel; sources go through the fetcher.
func LoadCorpora(ctx context.Context, opts Options) ([]*corpus.Corpus, []TranslationReport, error) {
	if len(opts.Inputs) == 0 && len(opts.Sources) == 0 {
		return nil, nil, errors.NewValidation("inputs", "no inputs or sources given")
	}
	if len(opts.Sources) > 0 && opts.Fetcher == nil {
		return nil, nil, errors.NewValidation("sources", "sources given without a fetcher")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}

	results := newWorkerPool[Input, loaded](opts.Concurrency, len(opts.Inputs)).run(opts.Inputs, loadInput)

	if len(opts.Sources) > 0 {
		if _, err := opts.Fetcher.FetchAll(ctx, opts.Sources); err != nil {
			return nil, nil, err
		}
		for _, src := range opts.Sources {
			c, stats, err := opts.Fetcher.Corpus(ctx, src)
			results = append(results, newLoaded(c, stats, err))
		}
	}

	seen := make(map[string]bool)
	corpora := make([]*corpus.Corpus, 0, len(results))
	reports := make([]TranslationReport, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			return nil, nil, r.err
		}
		if seen[r.report.ID] {
			return nil, nil, errors.NewValidation("id", fmt.Sprintf("translation %q given twice", r.report.ID))
		}
		seen[r.report.ID] = true
		logging.CorpusLoaded(r.report.ID, r.report.Books, r.report.Verses, "skipped", r.report.Skipped)
		corpora = append(corpora, r.corpus)
		reports = append(reports, r.report)
	}
	return corpora, reports, nil
}

func loadInput(in Input) loaded {
	res, err := ingest.ReadFile(in.Path, in.Format)
	if err != nil {
		return loaded{err: err}
	}
	c, err := res.Corpus(in.Meta)
	return newLoaded(c, res.Stats, err)
}

func newLoaded(c *corpus.Corpus, stats ingest.Stats, err error) loaded {
	if err != nil {
		return loaded{err: err}
	}
	return loaded{corpus: c, report: TranslationReport{
		ID:         c.ID(),
		Books:      len(c.BookIDs()),
		Verses:     c.Len(),
		Skipped:    stats.Skipped,
		Duplicates: stats.Duplicates,
	}}
}

// Build runs the whole pipeline: read sources, load the passage catalog,
// encode the payload and write the standalone page.
func Build(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	if opts.Output == "" {
		return nil, errors.NewValidation("output", "no output path")
	}
	if opts.Title == "" {
		opts.Title = "Christus – Bibel"
	}

	logging.BuildStep("read_sources", "inputs", len(opts.Inputs), "sources", len(opts.Sources))
	corpora, reports, err := LoadCorpora(ctx, opts)
	if err != nil {
		return nil, err
	}
	report := &Report{Translations: reports, Output: opts.Output}

	var catalog *passage.Catalog
	if opts.CatalogPath != "" {
		logging.BuildStep("load_catalog", "path", opts.CatalogPath)
		if catalog, err = passage.LoadFile(opts.CatalogPath); err != nil {
			return nil, err
		}
		if err := catalog.Validate(); err != nil {
			return nil, err
		}
		report.Passages = len(catalog.Passages)
		for _, p := range catalog.Check(corpora[0]) {
			logging.Warn("passage resolves to no verses", "passage", p.ID, "title", p.Title, "translation", corpora[0].ID())
			report.EmptyPassages = append(report.EmptyPassages, p.ID)
		}
	}

	logging.BuildStep("encode_payload", "translations", len(corpora))
	page, err := NewPage(opts.Title, corpora, catalog)
	if err != nil {
		return nil, err
	}
	page.Version = opts.Version
	page.LiveReload = opts.LiveReload
	report.Digest = page.Digest
	report.PayloadBytes = int64(len(page.Payload))

	if opts.PayloadFile != "" {
		logging.BuildStep("write_payload", "path", opts.PayloadFile)
		if _, _, err := payload.WriteFile(opts.PayloadFile, corpora); err != nil {
			return nil, err
		}
	}

	logging.BuildStep("render", "output", opts.Output)
	var buf bytes.Buffer
	if err := Render(&buf, page); err != nil {
		return nil, errors.Wrap(err, "render page")
	}
	if err := writeFile(opts.Output, buf.Bytes()); err != nil {
		return nil, err
	}
	report.HTMLBytes = int64(buf.Len())
	report.Duration = time.Since(start)
	logging.BuildStep("done", "bytes", report.HTMLBytes, "digest", report.Digest.Short(), "duration_ms", report.Duration.Milliseconds())
	return report, nil
}

// writeFile replaces path atomically so a watching preview server never
// serves a half-written page.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewIO("create", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return errors.NewIO("create temp file in", dir, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.NewIO("write", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.NewIO("close", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.NewIO("rename", path, err)
	}
	return nil
}
