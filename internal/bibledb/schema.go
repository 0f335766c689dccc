package bibledb

const schema = `
CREATE TABLE IF NOT EXISTS translations (
	id   TEXT PRIMARY KEY,
	lang TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS books (
	translation TEXT    NOT NULL REFERENCES translations(id) ON DELETE CASCADE,
	id          INTEGER NOT NULL,
	name        TEXT    NOT NULL,
	PRIMARY KEY (translation, id)
);

CREATE TABLE IF NOT EXISTS bible_verses (
	translation TEXT    NOT NULL REFERENCES translations(id) ON DELETE CASCADE,
	book_id     INTEGER NOT NULL,
	chapter     INTEGER NOT NULL,
	verse       INTEGER NOT NULL,
	text        TEXT    NOT NULL,
	PRIMARY KEY (translation, book_id, chapter, verse)
);

CREATE TABLE IF NOT EXISTS passage_themes (
	id         INTEGER PRIMARY KEY,
	name       TEXT    NOT NULL,
	icon       TEXT    NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS key_passages (
	id           INTEGER PRIMARY KEY,
	theme_id     INTEGER NOT NULL REFERENCES passage_themes(id) ON DELETE CASCADE,
	sort_order   INTEGER NOT NULL DEFAULT 0,
	title        TEXT    NOT NULL,
	book_id      INTEGER NOT NULL,
	chapter_from INTEGER NOT NULL,
	verse_from   INTEGER NOT NULL,
	chapter_to   INTEGER NOT NULL,
	verse_to     INTEGER NOT NULL
);
`

const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS bible_verses_fts USING fts5(
	text,
	translation UNINDEXED,
	book_id     UNINDEXED,
	chapter     UNINDEXED,
	verse       UNINDEXED,
	tokenize = 'unicode61 remove_diacritics 2'
);
`
