// Package store persists raw and cleaned messages in SQLite through gorm.
//
// A database holds one raw table written by import and one cleaned table
// written by clean. Each table can carry an FTS4 index named <table>_fts.
package store

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jmylchreest/mailrefyne/internal/logger"
)

// DefaultTable is the table name used when none is given.
const DefaultTable = "messages"

// upsertBatchSize bounds the rows per INSERT statement. SQLite caps the
// number of bound variables per statement.
const upsertBatchSize = 100

var (
	// ErrNotFound is returned when a message id is not in the table.
	ErrNotFound = errors.New("record not found")

	// ErrTableMissing is returned when reading from a table that does not
	// exist.
	ErrTableMissing = errors.New("table not found")

	// ErrInvalidName is returned for table or tokenizer names that are not
	// plain identifiers.
	ErrInvalidName = errors.New("invalid identifier")
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdentifier(kind, name string) error {
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("%w: %s %q", ErrInvalidName, kind, name)
	}
	return nil
}

// Options configures Open.
type Options struct {
	// Debug logs every SQL statement.
	Debug bool
}

// DB is an open message database.
type DB struct {
	db   *gorm.DB
	path string
}

// Open opens or creates the SQLite database at path. ":memory:" opens a
// private in-memory database.
func Open(path string, opts Options) (*DB, error) {
	mode := gormlogger.Silent
	if opts.Debug {
		mode = gormlogger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(mode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// An in-memory database lives only as long as its connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Duration(0))

	if path != ":memory:" {
		for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL"} {
			if err := db.Exec(pragma).Error; err != nil {
				return nil, fmt.Errorf("failed to configure database: %w", err)
			}
		}
	}

	logger.Debug("opened database", "path", path)
	return &DB{db: db, path: path}, nil
}

// Path returns the path the database was opened with.
func (d *DB) Path() string {
	return d.path
}

// Close closes the database connection.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Tables lists the non-index tables in the database.
func (d *DB) Tables() ([]string, error) {
	tables, err := d.db.Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	out := tables[:0]
	for _, t := range tables {
		if !ftsShadowRegex.MatchString(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (d *DB) hasTable(name string) bool {
	return d.db.Migrator().HasTable(name)
}
