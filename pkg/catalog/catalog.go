// Package catalog queries the relational catalog of a binary cache
// deployment: narinfos, their linked nar_files, and the ordered chunk
// linkage for CDC deployments. Three backends are supported behind one
// query surface: SQLite, PostgreSQL and MySQL.
//
// The catalog is treated as an immutable, externally owned snapshot, only
// SELECTs are ever issued.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun/driver/sqliteshim"

	_ "github.com/jackc/pgx/v4/stdlib" // PostgreSQL driver
)

// Kind identifies a catalog backend.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindSQLite
	KindPostgres
	KindMySQL
)

// KindFromString parses the backend kind as recorded in the deployment
// descriptor.
func KindFromString(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "sqlite", "sqlite3":
		return KindSQLite, nil
	case "postgres", "postgresql":
		return KindPostgres, nil
	case "mysql":
		return KindMySQL, nil
	default:
		return KindUnknown, fmt.Errorf("unknown catalog backend: %q", s)
	}
}

func (k Kind) String() string {
	switch k {
	case KindSQLite:
		return "sqlite"
	case KindPostgres:
		return "postgres"
	case KindMySQL:
		return "mysql"
	default:
		return "unknown"
	}
}

// Catalog is a read-only client for one catalog backend.
type Catalog struct {
	db   *sql.DB
	kind Kind
}

// Open connects to the catalog described by kind and dbURL and verifies the
// connection with a ping. Callers treat any error as fatal for the whole
// run; per-entry errors only start after a catalog has been opened.
func Open(kind, dbURL string) (*Catalog, error) {
	k, err := KindFromString(kind)
	if err != nil {
		return nil, err
	}

	var sdb *sql.DB

	switch k {
	case KindSQLite:
		// the descriptor records sqlite URLs as "sqlite:<path>"
		path := strings.TrimPrefix(strings.TrimPrefix(dbURL, "sqlite3:"), "sqlite:")
		sdb, err = sql.Open(sqliteshim.ShimName, path)
	case KindPostgres:
		sdb, err = sql.Open("pgx", dbURL)
	case KindMySQL:
		var dsn string

		dsn, err = mysqlDSN(dbURL)
		if err == nil {
			sdb, err = sql.Open("mysql", dsn)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("unable to open %v catalog at %q: %w", k, dbURL, err)
	}

	if err := sdb.Ping(); err != nil {
		sdb.Close()

		return nil, fmt.Errorf("unable to reach %v catalog at %q: %w", k, dbURL, err)
	}

	return &Catalog{db: sdb, kind: k}, nil
}

// mysqlDSN converts a mysql:// URL into the DSN format the driver expects.
func mysqlDSN(dbURL string) (string, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", fmt.Errorf("unable to parse mysql URL %q: %w", dbURL, err)
	}

	port := u.Port()
	if port == "" {
		port = "3306"
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(u.Hostname(), port)
	cfg.User = u.User.Username()
	cfg.Passwd, _ = u.User.Password()
	cfg.DBName = strings.TrimPrefix(u.Path, "/")

	return cfg.FormatDSN(), nil
}

// Kind returns the backend kind of this catalog.
func (c *Catalog) Kind() Kind {
	return c.kind
}

// Placeholder returns the parameter placeholder style of the backend: "?"
// for SQLite and MySQL, "$n" for PostgreSQL. Call sites write their SQL
// with "?" placeholders and pass it through Rebind.
func (c *Catalog) Placeholder() string {
	if c.kind == KindPostgres {
		return "$n"
	}

	return "?"
}

// Rebind rewrites "?" placeholders into the backend's positional style.
func (c *Catalog) Rebind(query string) string {
	return rebind(c.kind, query)
}

func rebind(kind Kind, query string) string {
	if kind != KindPostgres {
		return query
	}

	var b strings.Builder

	n := 0

	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		} else {
			b.WriteRune(r)
		}
	}

	return b.String()
}

func (c *Catalog) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, rebind(c.kind, query), args...)
}

// Close releases the underlying connection pool.
func (c *Catalog) Close() error {
	return c.db.Close()
}
