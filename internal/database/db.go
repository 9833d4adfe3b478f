// Package database opens and maintains the SQLite files under DATA_DIR.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schemas/*.sql
var schemaFS embed.FS

// Database names. Each maps to <name>.db under DATA_DIR and to
// schemas/<name>_schema.sql.
const (
	NamePortfolio  = "portfolio"
	NameLedger     = "ledger"
	NameClientData = "client_data"
)

// DatabaseProfile selects durability and pooling settings for a file.
type DatabaseProfile string

const (
	// ProfileLedger is for the cash and dividend bookkeeping trail.
	ProfileLedger DatabaseProfile = "ledger"
	// ProfileCache is for data that can be refetched from upstream.
	ProfileCache DatabaseProfile = "cache"
	// ProfileStandard is for everything else.
	ProfileStandard DatabaseProfile = "standard"
)

type profileSettings struct {
	pragmas  []string
	maxOpen  int
	maxIdle  int
	lifetime time.Duration
}

var profiles = map[DatabaseProfile]profileSettings{
	ProfileLedger: {
		pragmas:  []string{"synchronous(FULL)", "auto_vacuum(NONE)"},
		maxOpen:  25,
		maxIdle:  5,
		lifetime: 24 * time.Hour,
	},
	ProfileCache: {
		pragmas:  []string{"synchronous(OFF)", "auto_vacuum(FULL)", "temp_store(MEMORY)"},
		maxOpen:  10,
		maxIdle:  2,
		lifetime: 24 * time.Hour,
	},
	ProfileStandard: {
		pragmas:  []string{"synchronous(NORMAL)", "auto_vacuum(INCREMENTAL)", "temp_store(MEMORY)"},
		maxOpen:  25,
		maxIdle:  5,
		lifetime: 24 * time.Hour,
	},
}

// Applied to every profile after the profile's own pragmas.
var sharedPragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"wal_autocheckpoint(1000)",
	"cache_size(-16000)",
}

// DB is an open SQLite file with its profile applied.
type DB struct {
	conn    *sql.DB
	path    string
	profile DatabaseProfile
	name    string
}

// Config holds database configuration.
type Config struct {
	Path    string
	Profile DatabaseProfile
	Name    string // Used for logging and schema lookup
}

// New opens the database at cfg.Path, creating its directory if needed, and
// verifies the connection.
func New(cfg Config) (*DB, error) {
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}
	settings, ok := profiles[cfg.Profile]
	if !ok {
		return nil, fmt.Errorf("unknown database profile %q", cfg.Profile)
	}

	// file: URIs are left alone so tests can use in-memory databases
	if !strings.HasPrefix(cfg.Path, "file:") {
		abs, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path %s: %w", cfg.Path, err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory for %s: %w", cfg.Name, err)
		}
		cfg.Path = abs
	}

	conn, err := sql.Open("sqlite", dsn(cfg.Path, settings))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}
	conn.SetMaxOpenConns(settings.maxOpen)
	conn.SetMaxIdleConns(settings.maxIdle)
	conn.SetConnMaxLifetime(settings.lifetime)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to reach database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, profile: cfg.Profile, name: cfg.Name}, nil
}

// dsn builds the modernc connection string. WAL is on for every profile.
func dsn(path string, settings profileSettings) string {
	var b strings.Builder
	b.WriteString(path)
	b.WriteString("?_pragma=journal_mode(WAL)")
	for _, list := range [][]string{settings.pragmas, sharedPragmas} {
		for _, p := range list {
			b.WriteString("&_pragma=")
			b.WriteString(p)
		}
	}
	return b.String()
}

func (db *DB) Close() error { return db.conn.Close() }

// Conn exposes the pool to repositories.
func (db *DB) Conn() *sql.DB { return db.conn }

func (db *DB) Name() string { return db.name }
func (db *DB) Profile() DatabaseProfile { return db.profile }
func (db *DB) Path() string { return db.path }

// Migrate applies the embedded schema for this database, if there is one.
// Schemas only use IF NOT EXISTS statements, so running it twice is safe.
func (db *DB) Migrate() error {
	file := "schemas/" + db.name + "_schema.sql"
	content, err := schemaFS.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema for %s: %w", db.name, err)
	}

	return WithTransaction(db.conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to apply schema for %s: %w", db.name, err)
		}
		return nil
	})
}

// WithTransaction runs fn in a transaction on the background context.
func WithTransaction(db *sql.DB, fn func(*sql.Tx) error) error {
	return WithTransactionContext(context.Background(), db, fn)
}

// WithTransactionContext runs fn in a transaction. The transaction commits
// when fn returns nil and rolls back when fn errors or panics.
func WithTransactionContext(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		p := recover()
		rbErr := tx.Rollback()
		switch {
		case p != nil:
			err = fmt.Errorf("panic in transaction: %v", p)
		case rbErr != nil:
			err = fmt.Errorf("transaction failed: %w (rollback: %v)", err, rbErr)
		default:
			err = fmt.Errorf("transaction failed: %w", err)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		committed = true
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// HealthCheck pings the database and runs PRAGMA integrity_check.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.QuickCheck(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}

	var verdict string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&verdict); err != nil {
		return fmt.Errorf("integrity check could not run on %s: %w", db.name, err)
	}
	if verdict != "ok" {
		return fmt.Errorf("integrity check failed for %s: %s", db.name, verdict)
	}
	return nil
}

// QuickCheck only pings.
func (db *DB) QuickCheck(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

var checkpointModes = map[string]bool{"PASSIVE": true, "FULL": true, "RESTART": true, "TRUNCATE": true}

// WALCheckpoint runs a WAL checkpoint. An empty mode means TRUNCATE.
func (db *DB) WALCheckpoint(mode string) error {
	if mode == "" {
		mode = "TRUNCATE"
	}
	if !checkpointModes[mode] {
		return fmt.Errorf("invalid WAL checkpoint mode %q", mode)
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(" + mode + ")"); err != nil {
		return fmt.Errorf("WAL checkpoint failed for %s: %w", db.name, err)
	}
	return nil
}

// VacuumInto writes a consistent, compacted copy of the database to dest,
// which must not exist yet.
func (db *DB) VacuumInto(ctx context.Context, dest string) error {
	if _, err := db.conn.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("vacuum into failed for %s: %w", db.name, err)
	}
	return nil
}

// Stats describes the on-disk footprint of a database.
type Stats struct {
	SizeBytes     int64 `json:"size_bytes"`
	WALSizeBytes  int64 `json:"wal_size_bytes"`
	PageCount     int64 `json:"page_count"`
	PageSize      int64 `json:"page_size"`
	FreelistCount int64 `json:"freelist_count"`
}

// GetStats reads file sizes and page counters. Missing files count as zero.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{
		SizeBytes:    fileSize(db.path),
		WALSizeBytes: fileSize(db.path + "-wal"),
	}

	for pragma, dst := range map[string]*int64{
		"page_count":     &stats.PageCount,
		"page_size":      &stats.PageSize,
		"freelist_count": &stats.FreelistCount,
	} {
		if err := db.conn.QueryRow("PRAGMA " + pragma).Scan(dst); err != nil {
			return nil, fmt.Errorf("failed to read %s for %s: %w", pragma, db.name, err)
		}
	}
	return stats, nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
