// Command christus builds the offline Bible page and works with its data:
// fetching translations, exporting SQLite, querying, annotating and serving a
// live preview.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/ChristusBible/core/sqlite"
	"github.com/FocuswithJustin/ChristusBible/internal/config"
	"github.com/FocuswithJustin/ChristusBible/internal/logging"
)

const version = "0.4.0"

// stdout is where commands print results.
var stdout io.Writer = os.Stdout

// CLI defines the command-line interface for christus.
var CLI struct {
	// Global flags
	LogLevel  string   `name:"log-level" help:"Log level (debug, info, warn, error)" default:"info" env:"CHRISTUS_LOG_LEVEL"`
	LogFormat string   `name:"log-format" help:"Log format (text, json)" default:"text" env:"CHRISTUS_LOG_FORMAT"`
	DataDir   string   `name:"data-dir" help:"Directory for annotations and downloaded sources" default:".christus" type:"path" env:"CHRISTUS_DATA_DIR"`
	Store     string   `name:"store" help:"Annotation backend" enum:"file,sqlite" default:"file" env:"CHRISTUS_STORE"`
	EnvFile   []string `name:"env-file" help:"Load environment variables from these files (default: .env.local, .env)"`

	// Command groups (noun-first organization)
	Build      BuildCmd        `cmd:"" help:"Build the standalone HTML page"`
	Fetch      FetchCmd        `cmd:"" help:"Download translations listed in a manifest"`
	DB         DBGroup         `cmd:"" name:"db" help:"SQLite export"`
	Query      QueryGroup      `cmd:"" help:"Query a translation"`
	Passages   PassagesGroup   `cmd:"" help:"Key passage catalog"`
	Notes      NotesGroup      `cmd:"" help:"Passage notes"`
	Highlights HighlightsGroup `cmd:"" help:"Verse and word highlights"`
	Serve      ServeCmd        `cmd:"" help:"Start the preview server"`
	Version    VersionCmd      `cmd:"" help:"Print version information"`
}

// DBGroup contains SQLite operations.
type DBGroup struct {
	Export DBExportCmd `cmd:"" help:"Export translations and passages to SQLite"`
	Search DBSearchCmd `cmd:"" help:"Full-text search an exported database"`
}

// QueryGroup contains read-only corpus queries.
type QueryGroup struct {
	Range  QueryRangeCmd  `cmd:"" help:"Print the verses of a range"`
	Search QuerySearchCmd `cmd:"" help:"Search verses containing every term"`
	Ref    QueryRefCmd    `cmd:"" help:"Resolve a reference like \"Ps 23,1-6\""`
}

// PassagesGroup contains catalog operations.
type PassagesGroup struct {
	List PassagesListCmd `cmd:"" help:"List themes and their passages"`
}

// NotesGroup contains passage note operations.
type NotesGroup struct {
	List  NotesListCmd  `cmd:"" help:"List notes"`
	Set   NotesSetCmd   `cmd:"" help:"Set the note of a passage (blank text deletes it)"`
	Clear NotesClearCmd `cmd:"" help:"Delete the note of a passage"`
}

// HighlightsGroup contains highlight operations.
type HighlightsGroup struct {
	List  HighlightsListCmd  `cmd:"" help:"List verse highlights"`
	Set   HighlightsSetCmd   `cmd:"" help:"Color a verse"`
	Clear HighlightsClearCmd `cmd:"" help:"Remove a verse highlight"`
	Words HighlightsWordsCmd `cmd:"" help:"Color a rune range of a verse"`
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := sqlite.GetInfo()
	fmt.Fprintf(stdout, "christus version %s\n", version)
	fmt.Fprintf(stdout, "sqlite driver %s (%s)\n", info.DriverName, info.DriverType)
	return nil
}

// envFiles picks --env-file values out of args before kong parses them, so
// the loaded variables can fill flag defaults.
func envFiles(args []string) []string {
	var files []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			return files
		case a == "--env-file" && i+1 < len(args):
			files = append(files, args[i+1])
			i++
		case strings.HasPrefix(a, "--env-file="):
			files = append(files, strings.Split(strings.TrimPrefix(a, "--env-file="), ",")...)
		}
	}
	return files
}

func main() {
	files := envFiles(os.Args[1:])
	if len(files) == 0 {
		files = config.DefaultEnvFiles
	}
	loaded, envErr := config.LoadEnv(files...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx := kong.Parse(&CLI,
		kong.Name("christus"),
		kong.Description("Christus Bible - offline Bible page builder"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), logging.ParseFormat(CLI.LogFormat))
	kctx.FatalIfErrorf(envErr)
	if len(loaded) > 0 {
		logging.Debug("loaded env files", "files", loaded)
	}

	err := kctx.Run()
	kctx.FatalIfErrorf(err)
}
