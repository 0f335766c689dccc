package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/FocuswithJustin/ChristusBible/core/cas"
	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
	"github.com/FocuswithJustin/ChristusBible/internal/cache"
	"github.com/FocuswithJustin/ChristusBible/internal/ingest"
	"github.com/FocuswithJustin/ChristusBible/internal/logging"
)

// Defaults for Options.
const (
	DefaultConcurrency       = 4
	DefaultRequestsPerSecond = 2
	DefaultMaxBytes          = 64 << 20
)

// Options configures a Fetcher. Zero values pick the defaults.
type Options struct {
	Concurrency       int
	RequestsPerSecond float64
	MaxBytes          int64
	// Refresh downloads sources again even when the store has them.
	Refresh bool
}

// Result describes one fetched source.
type Result struct {
	Source Source
	Digest cas.Digest
	Size   int64
	Cached bool
}

// Fetcher downloads sources into a content store.
type Fetcher struct {
	store   *cas.Store
	getters map[string]Getter
	limiter *rate.Limiter
	opts    Options
	seen    *cache.TTLCache[string, cas.Digest]
}

// New creates a fetcher with http, https and file getters registered.
func New(store *cas.Store, opts Options) *Fetcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	httpGetter := &HTTPGetter{UserAgent: "christus-fetch"}
	return &Fetcher{
		store: store,
		getters: map[string]Getter{
			"http":  httpGetter,
			"https": httpGetter,
			"file":  FileGetter{},
			"":      FileGetter{},
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		opts:    opts,
		seen:    cache.New[string, cas.Digest](10*time.Minute, 256),
	}
}

// Register installs g for a URL scheme, replacing any previous getter.
func (f *Fetcher) Register(scheme string, g Getter) {
	f.getters[scheme] = g
}

// Fetch makes src available in the store under the ref src.ID.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (Result, error) {
	res := Result{Source: src}

	if !f.opts.Refresh {
		if d, ok := f.cached(src); ok {
			res.Digest, res.Cached = d, true
			logging.FetchEvent(src.ID, src.URL, "cached", true)
			return res, nil
		}
	}

	u, err := url.Parse(src.URL)
	if err != nil {
		return res, errors.NewValidation("url", fmt.Sprintf("source %q: %v", src.ID, err))
	}
	g, ok := f.getters[u.Scheme]
	if !ok {
		return res, errors.NewUnsupported("url scheme", u.Scheme)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return res, err
	}
	start := time.Now()
	body, err := g.Get(ctx, u)
	if err != nil {
		return res, errors.Wrapf(err, "fetch %s", src.ID)
	}
	data, err := io.ReadAll(io.LimitReader(body, f.opts.MaxBytes+1))
	body.Close()
	if err != nil {
		return res, errors.Wrapf(err, "fetch %s", src.ID)
	}
	if int64(len(data)) > f.opts.MaxBytes {
		return res, errors.NewValidation("size", fmt.Sprintf("source %q exceeds %d bytes", src.ID, f.opts.MaxBytes))
	}

	if src.BLAKE3 != "" {
		if got := cas.BLAKE3(data); got != src.BLAKE3 {
			return res, &errors.ValidationError{
				Field:   "blake3",
				Value:   got,
				Message: fmt.Sprintf("source %q: checksum mismatch, manifest says %s", src.ID, src.BLAKE3),
			}
		}
	}

	d, err := f.store.Put(data)
	if err != nil {
		return res, err
	}
	if err := f.store.SetRef(src.ID, d.SHA256); err != nil {
		return res, err
	}
	f.seen.Set(src.URL, d)

	res.Digest, res.Size = d, int64(len(data))
	logging.FetchEvent(src.ID, u.Redacted(), "bytes", res.Size, "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// cached reports a stored copy of src that still satisfies its checksum.
func (f *Fetcher) cached(src Source) (cas.Digest, bool) {
	if d, ok := f.seen.Get(src.URL); ok && (src.BLAKE3 == "" || d.BLAKE3 == src.BLAKE3) {
		return d, true
	}
	_, d, err := f.store.Ref(src.ID)
	if err != nil {
		return cas.Digest{}, false
	}
	if src.BLAKE3 != "" && d.BLAKE3 != src.BLAKE3 {
		return cas.Digest{}, false
	}
	f.seen.Set(src.URL, d)
	return d, true
}

// FetchAll fetches sources concurrently. Results keep the input order. The
// first error cancels the remaining downloads.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]Result, error) {
	results := make([]Result, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			r, err := f.Fetch(ctx, src)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Corpus fetches src if needed and parses it into a corpus.
func (f *Fetcher) Corpus(ctx context.Context, src Source) (*corpus.Corpus, ingest.Stats, error) {
	if _, err := f.Fetch(ctx, src); err != nil {
		return nil, ingest.Stats{}, err
	}
	data, _, err := f.store.Ref(src.ID)
	if err != nil {
		return nil, ingest.Stats{}, err
	}
	format, err := ingest.ParseFormat(src.Format)
	if err != nil {
		return nil, ingest.Stats{}, err
	}
	parsed, err := ingest.Read(bytes.NewReader(data), src.URL, format)
	if err != nil {
		return nil, ingest.Stats{}, errors.Wrapf(err, "source %s", src.ID)
	}
	c, err := parsed.Corpus(src.Meta())
	if err != nil {
		return nil, parsed.Stats, errors.Wrapf(err, "source %s", src.ID)
	}
	return c, parsed.Stats, nil
}
