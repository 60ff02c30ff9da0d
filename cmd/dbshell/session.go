package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"mysql-dbdriver/internal/command"
	"mysql-dbdriver/internal/config"
	"mysql-dbdriver/internal/driver"
	"mysql-dbdriver/internal/exporter"
	"mysql-dbdriver/internal/security"
)

var errUsage = errors.New("usage")

// session is one open handle.
type session struct {
	d    *driver.Driver
	h    *driver.Handle
	cmd  *command.Command
	name string
}

func withSession(ctx context.Context, cfg *config.Config, logger *slog.Logger, fn func(*session) error) error {
	connector, err := cfg.Connector()
	if err != nil {
		return err
	}
	opts := cfg.DriverOptions()
	opts.Logger = logger
	d := driver.New(connector, opts)

	h := d.NewHandle(cfg.DBDatasource, cfg.DBUser, cfg.DBPassword)
	h.Verbose = cfg.DBVerbose
	if err := d.Open(ctx, h); err != nil {
		return fmt.Errorf("open %s: %w", cfg.DBDatasource, err)
	}
	defer d.Close(h)

	reg := command.NewRegistry()
	s := &session{d: d, h: h, cmd: command.New("", d, reg), name: reg.Add(h)}
	return fn(s)
}

func (s *session) sql(ctx context.Context, w io.Writer, stmts []string) error {
	if len(stmts) == 0 {
		return fmt.Errorf("%w: sql <statement>...", errUsage)
	}
	for _, stmt := range stmts {
		out, err := s.d.Exec(ctx, s.h, stmt)
		if err != nil {
			return err
		}
		if out == driver.DML {
			n, err := s.d.ResultRows(ctx, s.h)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s rows affected\n", strconv.FormatUint(n, 10))
			continue
		}
		if err := s.printRows(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) printRows(ctx context.Context, w io.Writer) error {
	row, err := s.d.BindRow(s.h)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, strings.Join(row.Keys(), "\t"))
	for {
		out, err := s.d.GetRow(ctx, s.h, row)
		if err != nil {
			return err
		}
		if out == driver.EndData {
			return nil
		}
		fmt.Fprintln(w, strings.Join(row.Values(), "\t"))
	}
}

func (s *session) ns(ctx context.Context, w io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: ns <subcommand> [arg]", errUsage)
	}
	out, err := s.cmd.Run(ctx, append([]string{args[0], s.name}, args[1:]...))
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintln(w, out)
	}
	return nil
}

func (s *session) export(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "csv", "csv, json, excel or pdf")
	output := fs.String("o", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: export [-format f] [-o file] <select>", errUsage)
	}
	if err := security.ValidateQuery(fs.Arg(0)); err != nil {
		return err
	}

	w := stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	rows, err := s.d.Query(ctx, s.h, fs.Arg(0))
	if err != nil {
		return err
	}
	enc := exporter.NewEncoder(*format, w)
	stats, err := exporter.Export(ctx, rows, enc)
	if cerr := enc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "exported %d rows in %v\n", stats.RowsProcessed, stats.Duration)
	return nil
}

// seed creates a users table and fills it in batches. The SQL is valid for
// every supported dialect.
func (s *session) seed(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	total := fs.Int("rows", 10000, "number of users")
	batch := fs.Int("batch", 500, "rows per INSERT")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *batch < 1 {
		*batch = 1
	}

	err := s.d.DML(ctx, s.h, `CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		name VARCHAR(64),
		email VARCHAR(128),
		score DOUBLE PRECISION
	)`)
	if err != nil {
		return err
	}

	start := time.Now()
	for i := 0; i < *total; i += *batch {
		var b strings.Builder
		b.WriteString("INSERT INTO users (id, name, email, score) VALUES ")
		for j := i; j < i+*batch && j < *total; j++ {
			if j > i {
				b.WriteByte(',')
			}
			id := j + 1
			fmt.Fprintf(&b, "(%d, 'User%d', 'user%d@example.com', %s)", id, id, id, strconv.FormatFloat(float64(id)*0.1, 'f', 1, 64))
		}
		if err := s.d.DML(ctx, s.h, b.String()); err != nil {
			return err
		}
	}
	fmt.Fprintf(stdout, "seeded %d users in %v\n", *total, time.Since(start).Round(time.Millisecond))
	return nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func keygen(w io.Writer) error {
	secret, err := randomHex(32)
	if err != nil {
		return err
	}
	suffix, err := randomHex(16)
	if err != nil {
		return err
	}
	key := "sk_live_" + suffix
	hash, err := security.HashAPIKey(key)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "API_SECRET=%s\n", secret)
	fmt.Fprintf(w, "API_KEY_HASH=%s\n", hash)
	fmt.Fprintf(w, "# give clients the key, never the hash: X-API-Key: %s\n", key)
	return nil
}

func sign(w io.Writer, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("%w: sign <secret> <method> <path> <body>", errUsage)
	}
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	fmt.Fprintf(w, "X-Timestamp: %s\n", ts)
	fmt.Fprintf(w, "X-Signature: %s\n", security.Sign(args[0], args[1], args[2], args[3], ts))
	return nil
}
