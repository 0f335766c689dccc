package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
)

const testCSV = `Elberfelder 1905
"Verse ID","Book Name","Book Number","Chapter","Verse","Text"
1001001,1. Mose,1,1,1,"Im Anfang schuf Gott die Himmel und die Erde."
1001002,1. Mose,1,1,2,"Und die Erde war wüst und leer."
19023001,Psalm,19,23,1,"Jehova ist mein Hirte, mir wird nichts mangeln."
19023002,Psalm,19,23,2,"Er lagert mich auf grünen Auen."
`

const testCatalog = `{"themes":[{"id":1,"name":"Trost","icon":"*"}],
 "passages":[{"id":7,"theme_id":1,"sort_order":1,"title":"Der gute Hirte","book_id":19,"chapter_from":23,"verse_from":1,"chapter_to":23,"verse_to":6}]}`

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

// captureOutput redirects command output and points the data directory at a
// fresh temp dir for the duration of the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldOut, oldDir, oldStore := stdout, CLI.DataDir, CLI.Store
	stdout = &buf
	CLI.DataDir = filepath.Join(t.TempDir(), "data")
	CLI.Store = "file"
	t.Cleanup(func() {
		stdout, CLI.DataDir, CLI.Store = oldOut, oldDir, oldStore
	})
	return &buf
}

func TestEnvFiles(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"none", []string{"serve", "--port", "9000"}, nil},
		{"separate value", []string{"--env-file", "prod.env", "serve"}, []string{"prod.env"}},
		{"equals list", []string{"--env-file=a.env,b.env", "build"}, []string{"a.env", "b.env"}},
		{"repeated", []string{"--env-file", "a.env", "--env-file=b.env"}, []string{"a.env", "b.env"}},
		{"missing value", []string{"build", "--env-file"}, nil},
		{"after terminator", []string{"notes", "set", "1", "--", "--env-file", "x"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := envFiles(tt.args)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("envFiles(%q) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestBuildCmd(t *testing.T) {
	out := captureOutput(t)
	dir := t.TempDir()
	csvPath := createTestFile(t, dir, "elb.csv", testCSV)
	catalogPath := createTestFile(t, dir, "passages.json", testCatalog)
	page := filepath.Join(dir, "site", "standalone.html")

	cmd := &BuildCmd{
		SourceFlags: SourceFlags{Inputs: []string{"elb:de=" + csvPath}},
		Catalog:     catalogPath,
		Out:         page,
		PayloadFile: filepath.Join(dir, "bible.json.gz"),
		Title:       "Test",
	}
	if err := cmd.Run(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(out.String(), "elb") {
		t.Errorf("report does not mention the translation:\n%s", out.String())
	}
	html, err := os.ReadFile(page)
	if err != nil {
		t.Fatalf("page not written: %v", err)
	}
	if !strings.Contains(string(html), "Der gute Hirte") {
		t.Error("page is missing the catalog")
	}

	// The payload written next to the page is a valid query source.
	out.Reset()
	q := &QuerySearchCmd{
		CorpusFlags: CorpusFlags{From: filepath.Join(dir, "bible.json.gz")},
		Query:       []string{"erde"},
		Limit:       60,
	}
	if err := q.Run(context.Background()); err != nil {
		t.Fatalf("search payload: %v", err)
	}
	if !strings.HasSuffix(out.String(), "2 results\n") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestQuerySearchCmd(t *testing.T) {
	dir := t.TempDir()
	from := "elb:de=" + createTestFile(t, dir, "elb.csv", testCSV)

	tests := []struct {
		name    string
		query   []string
		limit   int
		want    string
		wantErr bool
	}{
		{
			name:  "marks matches",
			query: []string{"HIRTE"},
			limit: 60,
			want:  "Psalm 23,1  Jehova ist mein «Hirte», mir wird nichts mangeln.\n1 results\n",
		},
		{
			name:  "every term must match",
			query: []string{"erde", "wüst"},
			limit: 60,
			want:  "1. Mose 1,2  Und die «Erde» war «wüst» und leer.\n1 results\n",
		},
		{
			name:  "limit reached",
			query: []string{"die"},
			limit: 1,
			want:  "1. Mose 1,1  Im Anfang schuf Gott «die» Himmel und «die» Erde.\n1 results (limit reached)\n",
		},
		{name: "no match", query: []string{"zebra"}, limit: 60, want: "0 results\n"},
		{name: "blank", query: []string{"  "}, limit: 60, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(t)
			cmd := &QuerySearchCmd{CorpusFlags: CorpusFlags{From: from}, Query: tt.query, Limit: tt.limit}
			err := cmd.Run(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if out.String() != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", out.String(), tt.want)
			}
		})
	}
}

func TestQueryRefAndRange(t *testing.T) {
	out := captureOutput(t)
	from := "elb:de=" + createTestFile(t, t.TempDir(), "elb.csv", testCSV)

	ref := &QueryRefCmd{CorpusFlags: CorpusFlags{From: from}, Reference: []string{"Ps", "23,2"}}
	if err := ref.Run(context.Background()); err != nil {
		t.Fatalf("ref: %v", err)
	}
	if got, want := out.String(), "Psalm 23,2  Er lagert mich auf grünen Auen.\n"; got != want {
		t.Errorf("ref output = %q, want %q", got, want)
	}

	out.Reset()
	rng := &QueryRangeCmd{CorpusFlags: CorpusFlags{From: from}, Book: 1, ChapterFrom: 1, VerseFrom: 2, ChapterTo: 1, VerseTo: 9}
	if err := rng.Run(context.Background()); err != nil {
		t.Fatalf("range: %v", err)
	}
	if got, want := out.String(), "1. Mose 1,2  Und die Erde war wüst und leer.\n"; got != want {
		t.Errorf("range output = %q, want %q", got, want)
	}

	bad := &QueryRefCmd{CorpusFlags: CorpusFlags{From: from}, Reference: []string{"Xyz", "1"}}
	if err := bad.Run(context.Background()); err == nil {
		t.Error("unknown book should fail")
	}
}

func TestNotesCommands(t *testing.T) {
	out := captureOutput(t)
	ctx := context.Background()

	if err := (&NotesSetCmd{ID: 7, Text: []string{"Der", "Herr", "ist", "mein", "Hirte"}}).Run(ctx); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := (&NotesSetCmd{ID: 3, Text: []string{"Anfang"}}).Run(ctx); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := (&NotesListCmd{}).Run(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if got, want := out.String(), "3\tAnfang\n7\tDer Herr ist mein Hirte\n"; got != want {
		t.Errorf("list = %q, want %q", got, want)
	}

	// Blank text deletes the note like clear does.
	if err := (&NotesSetCmd{ID: 3, Text: []string{" "}}).Run(ctx); err != nil {
		t.Fatalf("set blank: %v", err)
	}
	if err := (&NotesClearCmd{ID: 7}).Run(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out.Reset()
	if err := (&NotesListCmd{}).Run(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no notes, got %q", out.String())
	}
}

func TestHighlightCommands(t *testing.T) {
	for _, store := range []string{"file", "sqlite"} {
		t.Run(store, func(t *testing.T) {
			out := captureOutput(t)
			CLI.Store = store
			ctx := context.Background()
			from := "elb:de=" + createTestFile(t, t.TempDir(), "elb.csv", testCSV)

			if err := (&HighlightsSetCmd{Key: "19:23:1", Color: "green"}).Run(ctx); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := (&HighlightsSetCmd{Key: "1:1:1", Color: "red"}).Run(ctx); err != nil {
				t.Fatalf("set: %v", err)
			}
			words := &HighlightsWordsCmd{CorpusFlags: CorpusFlags{From: from}, Key: "19:23:1", Start: 16, End: 21, Color: "yellow"}
			if err := words.Run(ctx); err != nil {
				t.Fatalf("words: %v", err)
			}
			if got, want := out.String(), "Jehova ist mein [yellow|Hirte], mir wird nichts mangeln.\n"; got != want {
				t.Errorf("words = %q, want %q", got, want)
			}

			out.Reset()
			if err := (&HighlightsListCmd{}).Run(ctx); err != nil {
				t.Fatalf("list: %v", err)
			}
			want := "1:1:1\tred\n19:23:1\tgreen\n19:23:1\t[16,21)\tyellow\n"
			if out.String() != want {
				t.Errorf("list = %q, want %q", out.String(), want)
			}

			if err := (&HighlightsClearCmd{Key: "19:23:1", Words: true}).Run(ctx); err != nil {
				t.Fatalf("clear: %v", err)
			}
			out.Reset()
			if err := (&HighlightsListCmd{}).Run(ctx); err != nil {
				t.Fatalf("list: %v", err)
			}
			if got, want := out.String(), "1:1:1\tred\n"; got != want {
				t.Errorf("list after clear = %q, want %q", got, want)
			}
		})
	}
}

func TestHighlightsWordsRejectsBadRange(t *testing.T) {
	captureOutput(t)
	from := "elb:de=" + createTestFile(t, t.TempDir(), "elb.csv", testCSV)

	tests := []struct {
		name       string
		key        string
		start, end int
	}{
		{"empty", "19:23:1", 4, 4},
		{"past end", "19:23:1", 40, 200},
		{"missing verse", "19:23:9", 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &HighlightsWordsCmd{CorpusFlags: CorpusFlags{From: from}, Key: tt.key, Start: tt.start, End: tt.end, Color: "red"}
			if err := cmd.Run(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPassagesListCmd(t *testing.T) {
	out := captureOutput(t)
	dir := t.TempDir()
	catalogPath := createTestFile(t, dir, "passages.json", testCatalog)
	csvPath := createTestFile(t, dir, "elb.csv", testCSV)

	cmd := &PassagesListCmd{Catalog: catalogPath, From: "elb:de=" + csvPath}
	if err := cmd.Run(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
	got := out.String()
	if !strings.HasPrefix(got, "* Trost\n") {
		t.Errorf("missing theme header:\n%s", got)
	}
	if !strings.Contains(got, "Der gute Hirte") || !strings.Contains(got, "(2 verses)") {
		t.Errorf("unexpected passage line:\n%s", got)
	}
}

func TestDBExportAndSearch(t *testing.T) {
	out := captureOutput(t)
	dir := t.TempDir()
	csvPath := createTestFile(t, dir, "elb.csv", testCSV)
	dbPath := filepath.Join(dir, "bible.db")

	export := &DBExportCmd{SourceFlags: SourceFlags{Inputs: []string{"elb:de=" + csvPath}}, DB: dbPath}
	if err := export.Run(context.Background()); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out.String(), "1 translations, 2 books, 4 verses") {
		t.Errorf("unexpected export report: %s", out.String())
	}

	// The database is itself a query source.
	out.Reset()
	q := &QueryRefCmd{CorpusFlags: CorpusFlags{From: dbPath}, Reference: []string{"1.", "Mose", "1,1"}}
	if err := q.Run(context.Background()); err != nil {
		t.Fatalf("query db: %v", err)
	}
	if got, want := out.String(), "1. Mose 1,1  Im Anfang schuf Gott die Himmel und die Erde.\n"; got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
}

func TestCLIParse(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("CHRISTUS_DATA_DIR", dataDir)
	t.Setenv("CHRISTUS_STORE", "sqlite")
	t.Cleanup(func() { CLI.DataDir, CLI.Store = "", "" })

	var buf bytes.Buffer
	oldOut := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = oldOut })

	ctx := context.Background()
	parser, err := kong.New(&CLI, kong.Name("christus"), kong.BindTo(ctx, (*context.Context)(nil)))
	if err != nil {
		t.Fatalf("kong.New: %v", err)
	}

	kctx, err := parser.Parse([]string{"notes", "set", "4", "Fürchte", "dich", "nicht"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if CLI.DataDir != dataDir || CLI.Store != "sqlite" {
		t.Errorf("env not applied: data dir %q, store %q", CLI.DataDir, CLI.Store)
	}
	if err := kctx.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "annotations.db")); err != nil {
		t.Errorf("sqlite store not created: %v", err)
	}

	kctx, err = parser.Parse([]string{"notes", "list"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := kctx.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got, want := buf.String(), "4\tFürchte dich nicht\n"; got != want {
		t.Errorf("notes list = %q, want %q", got, want)
	}

	if _, err := parser.Parse([]string{"highlights", "set", "1:1:1", "purple"}); err == nil {
		t.Error("enum should reject purple")
	}
}
