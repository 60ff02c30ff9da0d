// Package command implements the script-facing "ns_mysql" command, which
// exposes the driver's auxiliary operations to end-user scripts.
//
// Arguments follow the host's script convention: a subcommand, a handle name
// and at most one more argument.
//
//	ns_mysql list_tables nsdb0 user%
//	ns_mysql include_tablenames nsdb0 off
//
// Results are rendered as script strings; lists use the host's list syntax.
package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mysql-dbdriver/internal/driver"
)

// DefaultName is the name scripts invoke the command by.
const DefaultName = "ns_mysql"

var (
	// ErrWrongArgs is wrapped by every usage error.
	ErrWrongArgs = errors.New("wrong # args")
	// ErrUnknownSubcommand is returned for a subcommand the command does not implement.
	ErrUnknownSubcommand = errors.New("unknown command")
	// ErrInvalidHandle is returned when the handle name is not registered.
	ErrInvalidHandle = errors.New("invalid database id")
	// ErrNotBoolean is returned when a boolean argument cannot be parsed.
	ErrNotBoolean = errors.New("expected boolean value")
)

// Handles resolves handle names to handles. The host owns the mapping.
type Handles interface {
	Handle(name string) (*driver.Handle, bool)
}

type subcommand struct {
	usage   string
	minArgs int
	maxArgs int
	run     func(ctx context.Context, c *Command, h *driver.Handle, args []string) (string, error)
}

var subcommands = map[string]subcommand{
	"include_tablenames": {"handle boolean", 1, 1, includeTableNames},
	"list_dbs":           {"handle ?wild?", 0, 1, listDBs},
	"list_tables":        {"handle ?wild?", 0, 1, listTables},
	"resultrows":         {"handle", 0, 0, resultRows},
	"select_db":          {"handle database", 1, 1, selectDB},
	"version":            {"handle", 0, 0, version},
}

var subcommandNames = []string{"include_tablenames", "list_dbs", "list_tables", "resultrows", "select_db", "version"}

// Command dispatches subcommands against handles of one driver.
type Command struct {
	name    string
	d       *driver.Driver
	handles Handles
}

// New returns the command for d. An empty name means DefaultName.
func New(name string, d *driver.Driver, handles Handles) *Command {
	if name == "" {
		name = DefaultName
	}
	return &Command{name: name, d: d, handles: handles}
}

// Name is the command name used in usage messages.
func (c *Command) Name() string {
	return c.name
}

// Run executes args, which start with the subcommand name.
func (c *Command) Run(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 || len(args) > 3 {
		return "", c.usage("cmd handle ?args?")
	}

	h, err := c.handle(args[1])
	if err != nil {
		return "", err
	}

	sub, ok := subcommands[args[0]]
	if !ok {
		return "", fmt.Errorf("%w %q: should be %s", ErrUnknownSubcommand, args[0], oneOf(subcommandNames))
	}
	rest := args[2:]
	if len(rest) < sub.minArgs || len(rest) > sub.maxArgs {
		return "", c.usage(args[0] + " " + sub.usage)
	}
	return sub.run(ctx, c, h, rest)
}

func (c *Command) usage(form string) error {
	return fmt.Errorf("%w: should be \"%s %s\"", ErrWrongArgs, c.name, form)
}

// handle resolves name and checks that it belongs to this command's driver
// before anything touches its connection.
func (c *Command) handle(name string) (*driver.Handle, error) {
	h, ok := c.handles.Handle(name)
	if !ok || h == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHandle, name)
	}
	if h.Driver() != c.d {
		return nil, fmt.Errorf("%w: handle %q is not of type %q", driver.ErrWrongDriver, name, c.d.Name())
	}
	return h, nil
}

func includeTableNames(_ context.Context, c *Command, _ *driver.Handle, args []string) (string, error) {
	on, err := ParseBool(args[0])
	if err != nil {
		return "", err
	}
	c.d.SetIncludeTableNames(on)
	return "", nil
}

func wild(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func listDBs(ctx context.Context, c *Command, h *driver.Handle, args []string) (string, error) {
	names, err := c.d.ListDBs(ctx, h, wild(args))
	if err != nil {
		return "", err
	}
	return FormatList(names), nil
}

func listTables(ctx context.Context, c *Command, h *driver.Handle, args []string) (string, error) {
	names, err := c.d.ListTables(ctx, h, wild(args))
	if err != nil {
		return "", err
	}
	return FormatList(names), nil
}

func resultRows(ctx context.Context, c *Command, h *driver.Handle, _ []string) (string, error) {
	n, err := c.d.ResultRows(ctx, h)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(n, 10), nil
}

func selectDB(ctx context.Context, c *Command, h *driver.Handle, args []string) (string, error) {
	if err := c.d.SelectDB(ctx, h, args[0]); err != nil {
		return "", err
	}
	return args[0], nil
}

func version(_ context.Context, c *Command, _ *driver.Handle, _ []string) (string, error) {
	return c.d.Version(), nil
}

// oneOf renders "a, b, or c."
func oneOf(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0] + "."
	}
	return strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1] + "."
}
