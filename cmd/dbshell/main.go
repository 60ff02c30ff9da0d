package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"mysql-dbdriver/internal/config"
	"mysql-dbdriver/internal/driver"
)

var version = "dev"

const usage = `dbshell %s

Usage:
  dbshell [flags] sql <statement>...         run statements, printing rows tab-separated
  dbshell [flags] ns <subcommand> [arg]      run an ns_mysql subcommand on the handle
  dbshell [flags] export [-format f] <select> write a SELECT as csv, json, excel or pdf
  dbshell [flags] seed [-rows n]             create and fill a demo users table
  dbshell keygen                             print a new API secret, API key and key hash
  dbshell sign <secret> <method> <path> <body>

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the process: it returns the exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()

	fs := flag.NewFlagSet("dbshell", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.DBDialect, "dialect", cfg.DBDialect, "native client: mysql, postgres or sqlite (DB_DIALECT)")
	fs.StringVar(&cfg.DBDatasource, "datasource", cfg.DBDatasource, "host:port:database (DB_DATASOURCE)")
	fs.StringVar(&cfg.DBUser, "user", cfg.DBUser, "database user (DB_USER)")
	fs.StringVar(&cfg.DBPassword, "password", cfg.DBPassword, "database password (DB_PASSWORD)")
	fs.BoolVar(&cfg.DBIncludeTableNames, "tablenames", cfg.DBIncludeTableNames, "qualify column names with their table (DB_INCLUDE_TABLENAMES)")
	fs.BoolVar(&cfg.DBBufferResults, "buffer", cfg.DBBufferResults, "read whole result sets on query (DB_BUFFER_RESULTS)")
	fs.BoolVar(&cfg.DBVerbose, "verbose", cfg.DBVerbose, "log every driver operation (DB_VERBOSE)")
	showVersion := fs.Bool("version", false, "show version")
	fs.Usage = func() {
		fmt.Fprintf(stderr, usage, version)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintf(stdout, "dbshell %s (%s)\n", version, driver.DefaultVersion)
		return 0
	}

	level := slog.LevelWarn
	if cfg.DBVerbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	var err error
	switch rest[0] {
	case "keygen":
		err = keygen(stdout)
	case "sign":
		err = sign(stdout, rest[1:])
	case "sql", "ns", "export", "seed":
		err = withSession(ctx, cfg, logger, func(s *session) error {
			switch rest[0] {
			case "sql":
				return s.sql(ctx, stdout, rest[1:])
			case "ns":
				return s.ns(ctx, stdout, rest[1:])
			case "export":
				return s.export(ctx, stdout, stderr, rest[1:])
			}
			return s.seed(ctx, stdout, stderr, rest[1:])
		})
	default:
		fs.Usage()
		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "dbshell: %v\n", err)
		return 1
	}
	return 0
}
