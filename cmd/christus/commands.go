package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/FocuswithJustin/ChristusBible/core/annotate"
	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
	"github.com/FocuswithJustin/ChristusBible/core/passage"
	"github.com/FocuswithJustin/ChristusBible/core/ref"
	"github.com/FocuswithJustin/ChristusBible/core/sqlite"
	"github.com/FocuswithJustin/ChristusBible/internal/bibledb"
	"github.com/FocuswithJustin/ChristusBible/internal/fetch"
	"github.com/FocuswithJustin/ChristusBible/internal/payload"
	"github.com/FocuswithJustin/ChristusBible/internal/site"
	"github.com/FocuswithJustin/ChristusBible/internal/web"
)

// BuildCmd builds the standalone page.
type BuildCmd struct {
	SourceFlags `embed:""`

	Catalog     string `help:"Key passages JSON" type:"existingfile" env:"CHRISTUS_CATALOG"`
	Out         string `short:"o" help:"Output HTML path" default:"standalone.html" type:"path" env:"CHRISTUS_OUT"`
	PayloadFile string `name:"payload-file" help:"Also write the payload here (.json.gz, .json.xz, .json.zst or .json.lz4)" type:"path"`
	Title       string `help:"Page title" default:"Christus – Bibel"`
	LiveReload  bool   `name:"live-reload" help:"Embed the live reload client"`
}

func (c *BuildCmd) Run(ctx context.Context) error {
	opts, err := c.options()
	if err != nil {
		return err
	}
	opts.CatalogPath = c.Catalog
	opts.Output = c.Out
	opts.PayloadFile = c.PayloadFile
	opts.Title = c.Title
	opts.Version = "christus " + version
	opts.LiveReload = c.LiveReload

	report, err := site.Build(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, report.String())
	return nil
}

// FetchCmd downloads manifest sources into the data directory.
type FetchCmd struct {
	Manifest    string   `required:"" help:"JSON manifest of sources" type:"existingfile" env:"CHRISTUS_MANIFEST"`
	IDs         []string `arg:"" optional:"" name:"id" help:"Only fetch these source ids"`
	Refresh     bool     `help:"Download again even when cached"`
	RPS         float64  `name:"rps" help:"Requests per second" default:"2"`
	Concurrency int      `help:"Parallel downloads" default:"4"`
}

func (c *FetchCmd) Run(ctx context.Context) error {
	m, err := fetch.LoadManifestFile(c.Manifest)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	sources := m.Sources
	if len(c.IDs) > 0 {
		sources = sources[:0:0]
		for _, id := range c.IDs {
			src, ok := m.Get(id)
			if !ok {
				return errors.NewNotFound("source", id)
			}
			sources = append(sources, src)
		}
	}

	f, err := newFetcher(fetch.Options{Concurrency: c.Concurrency, RequestsPerSecond: c.RPS, Refresh: c.Refresh})
	if err != nil {
		return err
	}
	results, err := f.FetchAll(ctx, sources)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, r := range results {
		state := "downloaded"
		if r.Cached {
			state = "cached"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\tblake3:%.12s\n", r.Source.ID, humanize.Bytes(uint64(r.Size)), state, r.Digest.BLAKE3)
	}
	return tw.Flush()
}

// DBExportCmd writes translations and the catalog into SQLite.
type DBExportCmd struct {
	SourceFlags `embed:""`

	DB      string `name:"db" required:"" help:"SQLite database path" type:"path" env:"CHRISTUS_DB"`
	Catalog string `help:"Key passages JSON" type:"existingfile" env:"CHRISTUS_CATALOG"`
	FTS     bool   `name:"fts" help:"Build the FTS5 full-text index" default:"true" negatable:""`
}

func (c *DBExportCmd) Run(ctx context.Context) error {
	corpora, err := c.load(ctx)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(c.Catalog)
	if err != nil {
		return err
	}
	db, err := sqlite.Open(c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := bibledb.Export(ctx, db, corpora, catalog, bibledb.Options{FTS: c.FTS})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d translations, %d books, %s verses", c.DB,
		report.Translations, report.Books, humanize.Comma(int64(report.Verses)))
	if c.FTS {
		fmt.Fprintf(stdout, ", %s indexed", humanize.Comma(int64(report.FTSRows)))
	}
	fmt.Fprintf(stdout, ", %d themes, %d passages\n", report.Themes, report.Passages)
	return nil
}

// DBSearchCmd runs a full-text query against an exported database.
type DBSearchCmd struct {
	DB          string   `name:"db" required:"" help:"SQLite database path" type:"existingfile" env:"CHRISTUS_DB"`
	Translation string   `short:"t" required:"" help:"Translation id"`
	Query       []string `arg:"" help:"Search terms (prefix match)"`
	Limit       int      `help:"Maximum results" default:"60"`
}

func (c *DBSearchCmd) Run(ctx context.Context) error {
	db, err := sqlite.OpenReadOnly(c.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	hits, err := bibledb.Search(ctx, db, c.Translation, strings.Join(c.Query, " "), c.Limit)
	if err != nil {
		return err
	}
	for _, h := range hits {
		fmt.Fprintf(stdout, "%s  %s\n", h.Key(), h.Snippet)
	}
	fmt.Fprintf(stdout, "%d results\n", len(hits))
	return nil
}

func printVerses(c *corpus.Corpus, verses []corpus.Verse) {
	names := c.Books()
	for _, v := range verses {
		fmt.Fprintf(stdout, "%s %d,%d  %s\n", names[v.BookID], v.Chapter, v.Verse, v.Text)
	}
}

// QueryRangeCmd prints the verses of a range.
type QueryRangeCmd struct {
	CorpusFlags `embed:""`

	Book        int `arg:"" help:"Book id"`
	ChapterFrom int `arg:"" help:"First chapter"`
	VerseFrom   int `arg:"" help:"First verse"`
	ChapterTo   int `arg:"" help:"Last chapter"`
	VerseTo     int `arg:"" help:"Last verse"`
}

func (c *QueryRangeCmd) Run(ctx context.Context) error {
	tr, err := c.load(ctx)
	if err != nil {
		return err
	}
	printVerses(tr, tr.VersesInRange(corpus.Range{
		BookID: c.Book, ChapterFrom: c.ChapterFrom, VerseFrom: c.VerseFrom,
		ChapterTo: c.ChapterTo, VerseTo: c.VerseTo,
	}))
	return nil
}

// QuerySearchCmd prints verses containing every term, matches in «».
type QuerySearchCmd struct {
	CorpusFlags `embed:""`

	Query []string `arg:"" help:"Search terms"`
	Limit int      `help:"Maximum results" default:"60"`
}

func (c *QuerySearchCmd) Run(ctx context.Context) error {
	terms := corpus.Terms(strings.Join(c.Query, " "))
	if len(terms) == 0 {
		return errors.NewValidation("query", "type something")
	}
	tr, err := c.load(ctx)
	if err != nil {
		return err
	}
	hits := tr.SearchTerms(terms, c.Limit)
	hl := corpus.NewHighlighter(terms)
	names := tr.Books()
	for _, v := range hits {
		var b strings.Builder
		for _, seg := range corpus.Mark(v.Text, hl.Spans(v.Text)) {
			if seg.Marked {
				b.WriteString("«" + seg.Text + "»")
			} else {
				b.WriteString(seg.Text)
			}
		}
		fmt.Fprintf(stdout, "%s %d,%d  %s\n", names[v.BookID], v.Chapter, v.Verse, b.String())
	}
	fmt.Fprintf(stdout, "%d results", len(hits))
	if c.Limit > 0 && len(hits) == c.Limit {
		fmt.Fprint(stdout, " (limit reached)")
	}
	fmt.Fprintln(stdout)
	return nil
}

// QueryRefCmd resolves a reference and prints its verses.
type QueryRefCmd struct {
	CorpusFlags `embed:""`

	Reference []string `arg:"" help:"Reference, e.g. Ps 23,1-6"`
}

func (c *QueryRefCmd) Run(ctx context.Context) error {
	tr, err := c.load(ctx)
	if err != nil {
		return err
	}
	r, err := ref.Parse(strings.Join(c.Reference, " "), tr.Books())
	if err != nil {
		return err
	}
	printVerses(tr, tr.VersesInRange(r))
	return nil
}

// PassagesListCmd lists themes and their passages.
type PassagesListCmd struct {
	Catalog     string `required:"" help:"Key passages JSON" type:"existingfile" env:"CHRISTUS_CATALOG"`
	Theme       int    `help:"Only this theme id"`
	From        string `short:"f" help:"Resolve references against this translation source" env:"CHRISTUS_FROM"`
	Translation string `short:"t" help:"Translation id within a payload or database"`
}

func (c *PassagesListCmd) Run(ctx context.Context) error {
	cat, err := loadCatalog(c.Catalog)
	if err != nil {
		return err
	}
	var tr *corpus.Corpus
	if c.From != "" {
		if tr, err = loadCorpus(ctx, c.From, c.Translation); err != nil {
			return err
		}
	}

	for _, t := range cat.ThemesSorted() {
		if c.Theme != 0 && t.ID != c.Theme {
			continue
		}
		fmt.Fprintf(stdout, "%s %s\n", t.Icon, t.Name)
		for _, p := range cat.ForTheme(t.ID) {
			where := p.Range().String()
			suffix := ""
			if tr != nil {
				where = passage.Reference(p, tr.Books())
				if n := len(passage.Verses(p, tr)); n == 0 {
					suffix = "  (no verses)"
				} else {
					suffix = fmt.Sprintf("  (%d verses)", n)
				}
			}
			fmt.Fprintf(stdout, "  %3d  %-32s %s%s\n", p.ID, p.Title, where, suffix)
		}
	}
	return nil
}

// NotesListCmd lists stored notes.
type NotesListCmd struct{}

func (c *NotesListCmd) Run(ctx context.Context) error {
	stores, closeFn, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	all := stores.Notes.All()
	for _, id := range stores.Notes.IDs() {
		fmt.Fprintf(stdout, "%d\t%s\n", id, all[id])
	}
	return nil
}

// NotesSetCmd sets a passage note.
type NotesSetCmd struct {
	ID   int      `arg:"" help:"Passage id"`
	Text []string `arg:"" optional:"" help:"Note text"`
}

func (c *NotesSetCmd) Run(ctx context.Context) error {
	stores, closeFn, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	stores.Notes.Save(ctx, c.ID, strings.Join(c.Text, " "))
	return saved("notes", stores.Notes)
}

// NotesClearCmd deletes a passage note.
type NotesClearCmd struct {
	ID int `arg:"" help:"Passage id"`
}

func (c *NotesClearCmd) Run(ctx context.Context) error {
	stores, closeFn, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	stores.Notes.Delete(ctx, c.ID)
	return saved("notes", stores.Notes)
}

// HighlightsListCmd lists verse highlights and word ranges.
type HighlightsListCmd struct{}

func (c *HighlightsListCmd) Run(ctx context.Context) error {
	stores, closeFn, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	all := stores.Highlights.All()
	keys := make([]corpus.Key, 0, len(all))
	for k := range all {
		if key, err := corpus.ParseKey(k); err == nil {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	for _, k := range keys {
		fmt.Fprintf(stdout, "%s\t%s\n", k, all[k.String()])
	}
	for _, k := range stores.Words.Keys() {
		key, err := corpus.ParseKey(k)
		if err != nil {
			continue
		}
		for _, r := range stores.Words.Ranges(key) {
			fmt.Fprintf(stdout, "%s\t[%d,%d)\t%s\n", k, r.Start, r.End, r.Color)
		}
	}
	return nil
}

// HighlightsSetCmd colors a verse.
type HighlightsSetCmd struct {
	Key   string `arg:"" help:"Verse key book:chapter:verse"`
	Color string `arg:"" help:"green, yellow, red or none" enum:"green,yellow,red,none"`
}

func (c *HighlightsSetCmd) Run(ctx context.Context) error {
	key, err := corpus.ParseKey(c.Key)
	if err != nil {
		return err
	}
	color, err := annotate.ParseColor(c.Color)
	if err != nil {
		return err
	}
	stores, closeFn, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := stores.Highlights.Set(ctx, key, color); err != nil {
		return err
	}
	return saved("highlights", stores.Highlights)
}

// HighlightsClearCmd removes a verse highlight and its word ranges.
type HighlightsClearCmd struct {
	Key   string `arg:"" help:"Verse key book:chapter:verse"`
	Words bool   `help:"Also clear word ranges"`
}

func (c *HighlightsClearCmd) Run(ctx context.Context) error {
	key, err := corpus.ParseKey(c.Key)
	if err != nil {
		return err
	}
	stores, closeFn, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	stores.Highlights.Clear(ctx, key)
	if c.Words {
		stores.Words.Clear(ctx, key)
		if err := saved("word highlights", stores.Words); err != nil {
			return err
		}
	}
	return saved("highlights", stores.Highlights)
}

// HighlightsWordsCmd colors a rune range of a verse, replacing every range
// it touches.
type HighlightsWordsCmd struct {
	CorpusFlags `embed:""`

	Key   string `arg:"" help:"Verse key book:chapter:verse"`
	Start int    `arg:"" help:"First rune (0-based)"`
	End   int    `arg:"" help:"Rune after the last one"`
	Color string `arg:"" help:"green, yellow or red" enum:"green,yellow,red"`
}

func (c *HighlightsWordsCmd) Run(ctx context.Context) error {
	key, err := corpus.ParseKey(c.Key)
	if err != nil {
		return err
	}
	color, err := annotate.ParseColor(c.Color)
	if err != nil {
		return err
	}
	tr, err := c.load(ctx)
	if err != nil {
		return err
	}
	v, ok := tr.Verse(key)
	if !ok {
		return errors.NewNotFound("verse", key.String())
	}

	stores, closeFn, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	r := annotate.WordRange{Start: c.Start, End: c.End, Color: color}
	if err := stores.Words.Add(ctx, key, utf8.RuneCountInString(v.Text), r); err != nil {
		return err
	}
	if err := saved("word highlights", stores.Words); err != nil {
		return err
	}
	for _, seg := range annotate.Render(v.Text, stores.Words.Ranges(key)) {
		if seg.Color == annotate.None {
			fmt.Fprint(stdout, seg.Text)
		} else {
			fmt.Fprintf(stdout, "[%s|%s]", seg.Color, seg.Text)
		}
	}
	fmt.Fprintln(stdout)
	return nil
}

// ServeCmd starts the preview server.
type ServeCmd struct {
	SourceFlags `embed:""`

	Payload        string   `help:"Load translations from a payload file instead of sources" type:"existingfile"`
	Catalog        string   `help:"Key passages JSON" type:"existingfile" env:"CHRISTUS_CATALOG"`
	HTML           string   `name:"html" help:"Built page served at /" default:"standalone.html" type:"path" env:"CHRISTUS_OUT"`
	Port           int      `help:"HTTP server port" default:"8080" env:"CHRISTUS_PORT"`
	LiveReload     bool     `name:"live-reload" help:"Reload open pages when the built page changes" default:"true" negatable:""`
	AllowedOrigins []string `name:"allowed-origin" help:"CORS origins allowed to call the API (default: localhost)" env:"CHRISTUS_ALLOWED_ORIGINS"`
}

func (c *ServeCmd) Run(ctx context.Context) error {
	var corpora []*corpus.Corpus
	var err error
	if c.Payload != "" {
		corpora, err = payload.ReadFile(c.Payload)
	} else {
		corpora, err = c.load(ctx)
	}
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(c.Catalog)
	if err != nil {
		return err
	}
	stores, closeFn, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	srv := web.New(web.Config{
		Port:           c.Port,
		HTMLPath:       c.HTML,
		LiveReload:     c.LiveReload,
		AllowedOrigins: c.AllowedOrigins,
	}, corpora, catalog, stores)
	return srv.ListenAndServe(ctx)
}
