package sqlstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Dialect captures what differs between the supported SQL engines
type Dialect struct {
	Name       string
	DriverName string

	// numbered placeholders ($1, $2, ...) instead of ?
	numberedParams bool

	isUniqueViolation func(error) bool
}

// SQLite is the embedded dialect, backed by the pure-Go modernc driver
var SQLite = Dialect{
	Name:              "sqlite",
	DriverName:        "sqlite",
	isUniqueViolation: isSQLiteUniqueViolation,
}

// Postgres is the server dialect, backed by lib/pq
var Postgres = Dialect{
	Name:              "postgres",
	DriverName:        "postgres",
	numberedParams:    true,
	isUniqueViolation: isPostgresUniqueViolation,
}

// DialectByName resolves "sqlite" or "postgres"
func DialectByName(name string) (Dialect, error) {
	switch name {
	case SQLite.Name:
		return SQLite, nil
	case Postgres.Name:
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unknown sql dialect %q", name)
	}
}

// SQLiteDSN builds a DSN for a database file with WAL journaling, a busy
// timeout and immediate write locks so concurrent writers queue instead of
// failing on lock upgrade.
func SQLiteDSN(path string) string {
	return filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
}

// rebind rewrites ? placeholders for dialects with numbered parameters
func (d Dialect) rebind(query string) string {
	if !d.numberedParams {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

const pgUniqueViolation = "23505"

func isPostgresUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return false
}
