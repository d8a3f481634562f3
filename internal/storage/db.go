package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql

	"github.com/garyellow/lessonbot-go/internal/config"
	domerrors "github.com/garyellow/lessonbot-go/internal/errors"
)

const (
	module   = "storage"
	memoryDB = ":memory:"
)

// ObjectStore receives uploaded media. r2client.Client satisfies it.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	PublicURL(key string) string
}

// DB wraps the SQLite database connection
type DB struct {
	conn    *sql.DB
	path    string
	objects ObjectStore
	now     func() time.Time
}

// Option configures a DB.
type Option func(*DB)

// WithObjectStore enables UploadMedia.
func WithObjectStore(store ObjectStore) Option {
	return func(db *DB) { db.objects = store }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// New opens (creating if needed) the database at dbPath and initializes the schema.
func New(ctx context.Context, dbPath string, opts ...Option) (*DB, error) {
	if dbPath != memoryDB {
		if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == memoryDB {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	} else {
		conn.SetMaxOpenConns(8)
		conn.SetMaxIdleConns(4)
		conn.SetConnMaxLifetime(config.DatabaseConnMaxLifetime)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := InitSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	db := &DB{
		conn: conn,
		path: dbPath,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// dsn appends per-connection pragmas. The driver applies _pragma values to
// every new pool connection, unlike a one-off PRAGMA statement.
func dsn(dbPath string) string {
	pragmas := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", config.DatabaseBusyTimeout.Milliseconds()),
		"_pragma=foreign_keys(1)",
		"_pragma=synchronous(NORMAL)",
		"_txlock=immediate",
	}
	if dbPath != memoryDB {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	return dbPath + "?" + strings.Join(pragmas, "&")
}

// NewTestDB creates an isolated in-memory database for tests.
func NewTestDB(opts ...Option) (*DB, error) {
	return New(context.Background(), memoryDB, opts...)
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying *sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Ready runs a trivial query against the schema.
func (db *DB) Ready(ctx context.Context) error {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_state`).Scan(&n); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	return nil
}

// CreateSnapshot writes a consistent copy of the database to dstPath.
// VACUUM INTO works while the database is in use.
func (db *DB) CreateSnapshot(ctx context.Context, dstPath string) error {
	if err := os.Remove(dstPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale snapshot: %w", err)
	}
	if _, err := db.conn.ExecContext(ctx, `VACUUM INTO ?`, dstPath); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dstPath, err)
	}
	return nil
}

// withTx runs fn in a transaction, rolling back on error.
func (db *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// fail logs err and wraps it with the failing operation.
func fail(ctx context.Context, op string, err error, attrs ...any) error {
	slog.ErrorContext(ctx, "database operation failed",
		append([]any{"operation", op, "error", err}, attrs...)...)
	return domerrors.NewWrapper(module, op).Wrap(err, "storage unavailable")
}

// warnSlow logs operations slower than 100ms.
func warnSlow(ctx context.Context, op string, start time.Time) {
	if d := time.Since(start); d > 100*time.Millisecond {
		slog.WarnContext(ctx, "slow database operation",
			"operation", op,
			"duration_ms", d.Milliseconds())
	}
}
