package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration moves the schema from version-1 to version.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations is the schema history, oldest first. Append only.
var migrations = []migration{
	{1, "chain state", []string{schemaSQL}},
	{2, "operation queue", []string{
		`CREATE TABLE IF NOT EXISTS operations (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			execution_id TEXT    NOT NULL,
			payload      BLOB    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_operations_execution ON operations(execution_id, seq)`,
	}},
	{3, "host-call log", []string{
		`CREATE TABLE IF NOT EXISTS host_calls (
			execution_id TEXT    NOT NULL,
			seq          INTEGER NOT NULL,
			depth        INTEGER NOT NULL,
			application  TEXT    NOT NULL,
			primitive    TEXT    NOT NULL,
			detail       TEXT    NOT NULL,
			PRIMARY KEY (execution_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_host_calls_primitive ON host_calls(primitive)`,
	}},
}

// SchemaVersion is the version a freshly opened store is at.
var SchemaVersion = migrations[len(migrations)-1].version

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Store holds sandbox chain state, the operation queue and the host-call log.
type Store struct {
	db *sql.DB
}

// Open opens the state database at path, creating it if needed, and brings
// its schema up to SchemaVersion. Opening an up-to-date database is a no-op
// apart from the pragmas.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection: sqlite has a single writer, and an in-memory
	// database lives exactly as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("open %s: %q: %w", path, pragma, err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens a private in-memory store.
func OpenMemory() (*Store, error) {
	return Open(":memory:")
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrate applies every migration newer than the database's user_version,
// each in its own transaction together with the version bump.
func migrate(db *sql.DB) error {
	var current int
	if err := db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := apply(db, m); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func apply(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return err
	}
	return tx.Commit()
}

// pragma reads a pragma's current value.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("pragma %s: %w", name, err)
	}
	return value, nil
}
