/*
Package dialect renders structured filter and order options into SQL text for a
specific database engine. Values are inlined as escaped literals, which lets the
fragments be spliced into any squirrel chain without touching its bindings.
*/
package dialect

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
)

// Dialect names
const (
	MySQLName    = "mysql"
	PostgresName = "postgres"
	SQLiteName   = "sqlite"
)

// Dialect holds the engine specific quoting rules used by the Generator
type Dialect interface {
	// Name is one of MySQLName, PostgresName or SQLiteName
	Name() string
	// QuoteIdentifier quotes a single identifier part
	QuoteIdentifier(name string) string
	// QuoteString returns s as a quoted and escaped string literal
	QuoteString(s string) string
	// Bool renders a boolean literal
	Bool(b bool) string
	// Bytes renders a binary literal
	Bytes(b []byte) string
	// Placeholder is the squirrel placeholder format for bound chains
	Placeholder() squirrel.PlaceholderFormat
}

var (
	// MySQL dialect, also used for mariadb
	MySQL Dialect = mysqlDialect{}
	// Postgres dialect, shared by the lib/pq and pgx drivers
	Postgres Dialect = postgresDialect{}
	// SQLite dialect
	SQLite Dialect = sqliteDialect{}
)

/*
ForDriver returns the dialect for a database/sql driver name. Both "postgres"
and "pgx" map to Postgres.
*/
func ForDriver(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "mysql", "mariadb":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return nil, fmt.Errorf("dialect: unsupported driver %q", driver)
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string {
	return MySQLName
}

func (mysqlDialect) QuoteIdentifier(name string) string {
	return "`" + strings.Replace(name, "`", "``", -1) + "`"
}

var mysqlEscaper = strings.NewReplacer(
	"\x00", `\0`,
	"\b", `\b`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
	`"`, `\"`,
	`'`, `\'`,
	`\`, `\\`,
)

func (mysqlDialect) QuoteString(s string) string {
	return "'" + mysqlEscaper.Replace(s) + "'"
}

func (mysqlDialect) Bool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (mysqlDialect) Bytes(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}

func (mysqlDialect) Placeholder() squirrel.PlaceholderFormat {
	return squirrel.Question
}

type postgresDialect struct{}

func (postgresDialect) Name() string {
	return PostgresName
}

func (postgresDialect) QuoteIdentifier(name string) string {
	return `"` + strings.Replace(name, `"`, `""`, -1) + `"`
}

func (postgresDialect) QuoteString(s string) string {
	// postgres text cannot hold NUL
	s = strings.Replace(s, "\x00", "", -1)
	return "'" + strings.Replace(s, "'", "''", -1) + "'"
}

func (postgresDialect) Bool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (postgresDialect) Bytes(b []byte) string {
	return `'\x` + hex.EncodeToString(b) + "'"
}

func (postgresDialect) Placeholder() squirrel.PlaceholderFormat {
	return squirrel.Dollar
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string {
	return SQLiteName
}

func (sqliteDialect) QuoteIdentifier(name string) string {
	return "`" + strings.Replace(name, "`", "``", -1) + "`"
}

func (sqliteDialect) QuoteString(s string) string {
	return "'" + strings.Replace(s, "'", "''", -1) + "'"
}

func (sqliteDialect) Bool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (sqliteDialect) Bytes(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}

func (sqliteDialect) Placeholder() squirrel.PlaceholderFormat {
	return squirrel.Question
}
