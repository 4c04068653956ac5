package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // PostgreSQL driver and error codes
	_ "modernc.org/sqlite"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a connection pool together with the SQL dialect it speaks.
// Repositories write queries with '?' placeholders; Rebind adapts them.
type DB struct {
	*sql.DB
	driver string
}

func (db *DB) Driver() string { return db.driver }

// Open connects using the configured driver and pings the database.
func Open(driver, dataSourceName string) (*DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres:
		return NewPostgresConnection(dataSourceName)
	case DriverSQLite, "sqlite3":
		return NewSQLiteConnection(dataSourceName)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
}

// NewPostgresConnection creates and returns a new PostgreSQL database connection.
// It also pings the database to ensure connectivity.
func NewPostgresConnection(dataSourceName string) (*DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, driver: DriverPostgres}, nil
}

// NewSQLiteConnection opens (creating if needed) a SQLite database file.
func NewSQLiteConnection(path string) (*DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{DB: db, driver: DriverSQLite}, nil
}

// Migrate applies the embedded schema for the current driver. The schema uses
// IF NOT EXISTS throughout, so running it repeatedly is safe.
func (db *DB) Migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations/" + db.driver + ".sql")
	if err != nil {
		return fmt.Errorf("failed to read %s migrations: %w", db.driver, err)
	}
	if _, err := db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("failed to apply %s migrations: %w", db.driver, err)
	}
	return nil
}

// Rebind converts '?' placeholders into the driver's positional syntax. Every
// '?' is rewritten, including one inside a string literal, so queries must pass
// literal question marks as arguments.
func (db *DB) Rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

// isUniqueViolation recognizes unique constraint failures from both drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func utc(t time.Time) time.Time { return t.UTC() }

func utcNull(nt sql.NullTime) sql.NullTime {
	if !nt.Valid {
		return nt
	}
	return sql.NullTime{Time: nt.Time.UTC(), Valid: true}
}
