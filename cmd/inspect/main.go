// Command inspect reads the session history offline: records and messages
// from Badger, the search index from Bluge.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
	exitUsage   = 3
)

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=WARN"`
	Colours        bool   `env:"INSPECT_COLOURS,default=true"`
}

const usage = `usage: inspect <command> [flags]

commands:
  sessions                     list stored sessions, newest first
  search <terms> [--state s]   search the session history
  summary <session-id>         print the summary of a session
  messages <session-id>        print the messages of a session, newest first
  serve                        browse raw Badger keys over HTTP
`

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return exitUsage, nil
	}

	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	db, err := openDB(config.BadgerFilepath)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() { _ = db.Close() }()

	printer := newPrinter(os.Stdout, config.Colours)
	ctx := context.Background()
	command, rest := args[0], args[1:]

	switch command {
	case "sessions":
		err = listSessions(db, log, printer)
	case "search":
		err = searchSessions(ctx, config.BlugeFilepath, rest, printer)
	case "summary":
		err = withSessionID(rest, func(id string, flags *flag.FlagSet) error {
			markdown := flags.Bool("markdown", false, "print the markdown export instead of coloured text")
			if err := flags.Parse(rest[1:]); err != nil {
				return err
			}
			return showSummary(db, log, id, *markdown, printer)
		})
	case "messages":
		err = withSessionID(rest, func(id string, flags *flag.FlagSet) error {
			limit := flags.Int("limit", 50, "maximum number of messages")
			if err := flags.Parse(rest[1:]); err != nil {
				return err
			}
			return showMessages(db, log, id, *limit, printer)
		})
	case "serve":
		flags := flag.NewFlagSet("serve", flag.ContinueOnError)
		port := flags.Int("port", 8081, "HTTP port")
		if err = flags.Parse(rest); err == nil {
			err = serve(db, log, *port)
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		return exitUsage, fmt.Errorf("unknown command %q", command)
	}

	if err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}

func withSessionID(args []string, fn func(id string, flags *flag.FlagSet) error) error {
	if len(args) == 0 || args[0] == "" {
		return fmt.Errorf("a session id is required")
	}
	return fn(args[0], flag.NewFlagSet("inspect", flag.ContinueOnError))
}

// openDB opens Badger read-only so a running host keeps its lock.
func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)
	return badger.Open(opts)
}

func openIndex(path string) (*bluge.Reader, error) {
	return bluge.OpenReader(bluge.DefaultConfig(path))
}

func serve(db *badger.DB, log *slog.Logger, port int) error {
	startDebugServer(db, port)
	log.Info("Inspector available", "url", fmt.Sprintf("http://localhost:%d/inspect", port))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	return nil
}
