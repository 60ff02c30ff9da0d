// Package dsn parses the compact "host:port:database" datasource descriptor
// handed to the driver by the host.
package dsn

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Separator delimits the three datasource fields.
const Separator = ":"

// ErrMalformed is returned when the descriptor does not carry all three fields.
var ErrMalformed = errors.New("malformed datasource: expected host:port:database")

// Datasource holds the parsed connection parameters.
// Fields never alias the input string's backing array.
type Datasource struct {
	Host     string
	Port     uint32
	Database string
}

// Parse splits s into host, port and database.
//
// Everything after the second separator belongs to the database, so values
// such as "x:0::memory:" keep their colons. Empty host or database segments
// are accepted; the connect step reports those, as it does ports above
// 65535. A port that is not an unsigned 32-bit number becomes 0.
func Parse(s string) (Datasource, error) {
	host, rest, ok := strings.Cut(s, Separator)
	if !ok {
		return Datasource{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	port, db, ok := strings.Cut(rest, Separator)
	if !ok {
		return Datasource{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	return Datasource{
		Host:     strings.Clone(host),
		Port:     parsePort(port),
		Database: strings.Clone(db),
	}, nil
}

func parsePort(s string) uint32 {
	p, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(p)
}

// String rebuilds the descriptor. The port is written in canonical decimal,
// so "h:03306:db" comes back as "h:3306:db".
func (d Datasource) String() string {
	return d.Host + Separator + strconv.FormatUint(uint64(d.Port), 10) + Separator + d.Database
}

// Addr returns "host:port" for network dialing. A zero port yields just the host.
func (d Datasource) Addr() string {
	if d.Port == 0 {
		return d.Host
	}
	return d.Host + ":" + strconv.FormatUint(uint64(d.Port), 10)
}
