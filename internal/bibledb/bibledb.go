// Package bibledb exports corpora and the passage catalog to SQLite and
// loads translations back.
package bibledb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
	"github.com/FocuswithJustin/ChristusBible/core/passage"
	"github.com/FocuswithJustin/ChristusBible/core/sqlite"
	"github.com/FocuswithJustin/ChristusBible/internal/logging"
)

// Options configures Export.
type Options struct {
	// FTS builds the bible_verses_fts full-text index.
	FTS bool
}

// Report summarizes an export.
type Report struct {
	Translations int
	Books        int
	Verses       int
	FTSRows      int
	Themes       int
	Passages     int
}

// Export writes corpora and catalog into db. Rows of the exported
// translations are replaced; other translations are left alone. catalog may
// be nil.
func Export(ctx context.Context, db *sql.DB, corpora []*corpus.Corpus, catalog *passage.Catalog, opts Options) (*Report, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, errors.Wrap(err, "create schema")
	}
	if opts.FTS {
		if !sqlite.HasFTS5(ctx, db) {
			return nil, errors.NewUnsupported("fts5", fmt.Sprintf("the %s SQLite driver was built without FTS5", sqlite.DriverType()))
		}
		if _, err := db.ExecContext(ctx, ftsSchema); err != nil {
			return nil, errors.Wrap(err, "create fts schema")
		}
	}

	report := &Report{}
	for _, c := range corpora {
		if err := exportCorpus(ctx, db, c); err != nil {
			return nil, errors.Wrapf(err, "export %s", c.ID())
		}
		report.Translations++
		report.Books += len(c.Books())
		report.Verses += c.Len()
		logging.BuildStep("db_translation", "translation", c.ID(), "verses", c.Len())

		if opts.FTS {
			n, err := indexCorpus(ctx, db, c)
			if err != nil {
				return nil, errors.Wrapf(err, "index %s", c.ID())
			}
			report.FTSRows += n
		}
	}

	if catalog != nil {
		if err := exportCatalog(ctx, db, catalog); err != nil {
			return nil, errors.Wrap(err, "export passages")
		}
		report.Themes = len(catalog.Themes)
		report.Passages = len(catalog.Passages)
	}
	return report, nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func exportCorpus(ctx context.Context, db *sql.DB, c *corpus.Corpus) error {
	meta := c.Meta()
	return withTx(ctx, db, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM bible_verses WHERE translation = ?`,
			`DELETE FROM books WHERE translation = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, meta.ID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO translations (id, lang, name) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET lang = excluded.lang, name = excluded.name`,
			meta.ID, meta.Language, meta.Name); err != nil {
			return err
		}

		books, err := tx.PrepareContext(ctx, `INSERT INTO books (translation, id, name) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer books.Close()
		names := c.Books()
		for _, id := range c.BookIDs() {
			if _, err := books.ExecContext(ctx, meta.ID, id, names[id]); err != nil {
				return err
			}
		}

		verses, err := tx.PrepareContext(ctx,
			`INSERT INTO bible_verses (translation, book_id, chapter, verse, text) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer verses.Close()
		for _, v := range c.Verses() {
			if _, err := verses.ExecContext(ctx, meta.ID, v.BookID, v.Chapter, v.Verse, v.Text); err != nil {
				return err
			}
		}
		return nil
	})
}

// indexCorpus rebuilds the FTS rows of one translation and checks they match
// the verse table.
func indexCorpus(ctx context.Context, db *sql.DB, c *corpus.Corpus) (int, error) {
	id := c.ID()
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bible_verses_fts WHERE translation = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO bible_verses_fts (text, translation, book_id, chapter, verse)
			 SELECT text, translation, book_id, chapter, verse FROM bible_verses WHERE translation = ?`, id)
		return err
	})
	if err != nil {
		return 0, err
	}

	var verses, indexed int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM bible_verses WHERE translation = ?`, id).Scan(&verses); err != nil {
		return 0, err
	}
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM bible_verses_fts WHERE translation = ?`, id).Scan(&indexed); err != nil {
		return 0, err
	}
	if verses != indexed {
		return 0, fmt.Errorf("fts row count %d does not match verse count %d", indexed, verses)
	}
	return indexed, nil
}

func exportCatalog(ctx context.Context, db *sql.DB, catalog *passage.Catalog) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM key_passages`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM passage_themes`); err != nil {
			return err
		}
		for _, t := range catalog.Themes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO passage_themes (id, name, icon, sort_order) VALUES (?, ?, ?, ?)`,
				t.ID, t.Name, t.Icon, t.SortOrder); err != nil {
				return err
			}
		}
		for _, p := range catalog.Passages {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO key_passages (id, theme_id, sort_order, title, book_id, chapter_from, verse_from, chapter_to, verse_to)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.ThemeID, p.SortOrder, p.Title, p.BookID, p.ChapterFrom, p.VerseFrom, p.ChapterTo, p.VerseTo); err != nil {
				return err
			}
		}
		return nil
	})
}

// Translations lists the exported translations ordered by id.
func Translations(ctx context.Context, db *sql.DB) ([]corpus.Meta, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, lang, name FROM translations ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list translations")
	}
	defer rows.Close()

	var out []corpus.Meta
	for rows.Next() {
		var m corpus.Meta
		if err := rows.Scan(&m.ID, &m.Language, &m.Name); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Load reads one translation back into a corpus.
func Load(ctx context.Context, db *sql.DB, translation string) (*corpus.Corpus, error) {
	var meta corpus.Meta
	err := db.QueryRowContext(ctx, `SELECT id, lang, name FROM translations WHERE id = ?`, translation).
		Scan(&meta.ID, &meta.Language, &meta.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("translation", translation)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load translation")
	}

	books := make(corpus.Books)
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM books WHERE translation = ?`, translation)
	if err != nil {
		return nil, errors.Wrap(err, "load books")
	}
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return nil, err
		}
		books[id] = name
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var verses []corpus.Verse
	rows, err = db.QueryContext(ctx,
		`SELECT book_id, chapter, verse, text FROM bible_verses
		 WHERE translation = ? ORDER BY book_id, chapter, verse`, translation)
	if err != nil {
		return nil, errors.Wrap(err, "load verses")
	}
	defer rows.Close()
	for rows.Next() {
		var v corpus.Verse
		if err := rows.Scan(&v.BookID, &v.Chapter, &v.Verse, &v.Text); err != nil {
			return nil, err
		}
		verses = append(verses, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	c, err := corpus.New(meta, books, verses)
	if err != nil {
		return nil, errors.NewLoad("sqlite", err)
	}
	logging.CorpusLoaded(meta.ID, len(books), len(verses), "source", "sqlite")
	return c, nil
}

// LoadCatalog reads the passage catalog back.
func LoadCatalog(ctx context.Context, db *sql.DB) (*passage.Catalog, error) {
	cat := &passage.Catalog{}
	rows, err := db.QueryContext(ctx, `SELECT id, name, icon, sort_order FROM passage_themes ORDER BY sort_order, id`)
	if err != nil {
		return nil, errors.Wrap(err, "load themes")
	}
	for rows.Next() {
		var t passage.Theme
		if err := rows.Scan(&t.ID, &t.Name, &t.Icon, &t.SortOrder); err != nil {
			rows.Close()
			return nil, err
		}
		cat.Themes = append(cat.Themes, t)
	}
	rows.Close()

	rows, err = db.QueryContext(ctx,
		`SELECT id, theme_id, sort_order, title, book_id, chapter_from, verse_from, chapter_to, verse_to
		 FROM key_passages ORDER BY theme_id, sort_order, id`)
	if err != nil {
		return nil, errors.Wrap(err, "load passages")
	}
	defer rows.Close()
	for rows.Next() {
		var p passage.Passage
		if err := rows.Scan(&p.ID, &p.ThemeID, &p.SortOrder, &p.Title, &p.BookID, &p.ChapterFrom, &p.VerseFrom, &p.ChapterTo, &p.VerseTo); err != nil {
			return nil, err
		}
		cat.Passages = append(cat.Passages, p)
	}
	return cat, rows.Err()
}

// Hit is a full-text search result.
type Hit struct {
	corpus.Verse
	Snippet string
}

// Search runs an FTS5 query over one translation, best matches first.
// Terms are ANDed and matched as prefixes.
func Search(ctx context.Context, db *sql.DB, translation, query string, limit int) ([]Hit, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = corpus.DefaultSearchLimit
	}
	match := make([]string, len(terms))
	for i, t := range terms {
		match[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}

	rows, err := db.QueryContext(ctx,
		`SELECT book_id, chapter, verse, text, snippet(bible_verses_fts, 0, '[', ']', '…', 12)
		 FROM bible_verses_fts
		 WHERE bible_verses_fts MATCH ? AND translation = ?
		 ORDER BY rank LIMIT ?`, strings.Join(match, " "), translation, limit)
	if err != nil {
		return nil, errors.Wrap(err, "fts search")
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.BookID, &h.Chapter, &h.Verse.Verse, &h.Text, &h.Snippet); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
