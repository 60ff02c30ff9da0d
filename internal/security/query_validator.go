package security

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMultipleQueries = errors.New("multi-statement queries are not allowed")
	ErrNotSelect       = errors.New("only SELECT queries are allowed")
	ErrForbidden       = errors.New("forbidden keyword detected")
	ErrSystemTable     = errors.New("access to system table blocked")
)

var (
	// statements that write, change privileges or leave the SELECT
	forbiddenKeywords = set("DELETE", "DROP", "INSERT", "UPDATE", "ALTER", "TRUNCATE", "GRANT", "REVOKE",
		"CREATE", "REPLACE", "CALL", "DO", "HANDLER", "LOAD", "UNION", "ATTACH", "PRAGMA", "INTO")
	// server information functions, forbidden only when called
	forbiddenCalls = set("USER", "CURRENT_USER", "SYSTEM_USER", "SESSION_USER", "VERSION", "DATABASE",
		"LOAD_FILE", "SLEEP", "BENCHMARK")
	forbiddenVariables = set("@@VERSION", "@@HOSTNAME", "@@DATADIR", "@@BASEDIR")
	// catalogs of every supported dialect
	systemSchemas = set("INFORMATION_SCHEMA", "MYSQL", "PERFORMANCE_SCHEMA", "SYS",
		"PG_CATALOG", "SQLITE_MASTER", "SQLITE_SCHEMA")
)

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// token is one identifier or keyword, upper-cased.
type token struct {
	text string
	// quoted identifiers are only checked against the system schemas
	quoted bool
	// call is set when the next significant byte is "("
	call bool
}

// ValidateQuery accepts a single SELECT that names no forbidden keyword and
// no system schema. String literals and comments are skipped, so a column
// such as deleted_at or a literal 'drop' passes.
func ValidateQuery(query string) error {
	tokens, err := scan(query)
	if err != nil {
		return err
	}
	if len(tokens) == 0 || tokens[0].quoted || tokens[0].text != "SELECT" {
		return ErrNotSelect
	}

	for _, t := range tokens {
		if systemSchemas[t.text] {
			return fmt.Errorf("%w: %s", ErrSystemTable, t.text)
		}
		if t.quoted {
			continue
		}
		switch {
		case forbiddenKeywords[t.text], forbiddenVariables[t.text]:
			return fmt.Errorf("%w: %s", ErrForbidden, t.text)
		case t.call && forbiddenCalls[t.text]:
			return fmt.Errorf("%w: %s(", ErrForbidden, t.text)
		}
	}
	return nil
}

func scan(q string) ([]token, error) {
	var tokens []token
	for i := 0; i < len(q); {
		c := q[i]
		switch {
		case c == ';':
			return nil, ErrMultipleQueries
		case c == '\'':
			i = skipLiteral(q, i)
		case c == '`' || c == '"':
			end := strings.IndexByte(q[i+1:], c)
			if end < 0 {
				end = len(q) - i - 1
			}
			tokens = append(tokens, token{text: strings.ToUpper(q[i+1 : i+1+end]), quoted: true})
			i += end + 2
		case isWordByte(c):
			j := i
			for j < len(q) && isWordByte(q[j]) {
				j++
			}
			next := skipSpace(q, j)
			tokens = append(tokens, token{
				text: strings.ToUpper(q[i:j]),
				call: next < len(q) && q[next] == '(',
			})
			i = j
		default:
			if n := skipComment(q, i); n > i {
				i = n
			} else {
				i++
			}
		}
	}
	return tokens, nil
}

// skipLiteral returns the index after the single-quoted string at q[i].
func skipLiteral(q string, i int) int {
	for j := i + 1; j < len(q); j++ {
		switch q[j] {
		case '\\':
			j++
		case '\'':
			if j+1 < len(q) && q[j+1] == '\'' {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(q)
}

// skipComment returns the index after a comment starting at q[i], or i.
func skipComment(q string, i int) int {
	rest := q[i:]
	switch {
	case strings.HasPrefix(rest, "--"), strings.HasPrefix(rest, "#"):
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			return i + nl + 1
		}
		return len(q)
	case strings.HasPrefix(rest, "/*"):
		if end := strings.Index(rest[2:], "*/"); end >= 0 {
			return i + 2 + end + 2
		}
		return len(q)
	}
	return i
}

func skipSpace(q string, i int) int {
	for i < len(q) {
		switch q[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		n := skipComment(q, i)
		if n == i {
			return i
		}
		i = n
	}
	return i
}

func isWordByte(b byte) bool {
	return b == '_' || b == '@' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
