package db

import (
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour a repository emits.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	default:
		return "sqlite"
	}
}

// Rebind rewrites ? placeholders to $1, $2, ... for Postgres. Queries are
// written once with ? and rebound at execution time. Placeholders inside
// quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// bigintType is the column type for 64-bit integers.
func (d Dialect) bigintType() string {
	if d == DialectPostgres {
		return "BIGINT"
	}
	return "INTEGER"
}
