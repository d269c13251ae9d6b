package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/svcrt/internal/base"
)

// KeyValue is one storage entry.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Application is a registered application.
type Application struct {
	ID         base.ApplicationID
	Name       string
	Parameters []byte
}

// WriteBlob stores content and returns its hash. Writing the same content
// twice is a no-op.
func (s *Store) WriteBlob(ctx context.Context, content []byte) (base.DataBlobHash, error) {
	hash := base.BlobHashOf(content)
	if content == nil {
		content = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (hash, content) VALUES (?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash.String(), content)
	if err != nil {
		return base.DataBlobHash{}, fmt.Errorf("write blob: %w", err)
	}
	return hash, nil
}

// ReadBlob returns the content of a blob and whether it exists.
func (s *Store) ReadBlob(ctx context.Context, hash base.DataBlobHash) ([]byte, bool, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM blobs WHERE hash = ?`, hash.String()).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read blob: %w", err)
	}
	if content == nil {
		content = []byte{}
	}
	return content, true, nil
}

// HasBlob reports whether a blob exists.
func (s *Store) HasBlob(ctx context.Context, hash base.DataBlobHash) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM blobs WHERE hash = ?`, hash.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has blob: %w", err)
	}
	return true, nil
}

// WriteKV sets key to value.
func (s *Store) WriteKV(ctx context.Context, key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, nonNil(key), value)
	if err != nil {
		return fmt.Errorf("write kv: %w", err)
	}
	return nil
}

// DeleteKV removes key. Removing an absent key is a no-op.
func (s *Store) DeleteKV(ctx context.Context, key []byte) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, nonNil(key)); err != nil {
		return fmt.Errorf("delete kv: %w", err)
	}
	return nil
}

// ReadKV returns the value at key and whether it exists.
func (s *Store) ReadKV(ctx context.Context, key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, nonNil(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read kv: %w", err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

// ScanKV returns the entries whose key starts with prefix, in binary key
// order. Returned keys are complete; callers strip the prefix if needed.
func (s *Store) ScanKV(ctx context.Context, prefix []byte) ([]KeyValue, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(prefix) == 0 {
		rows, err = s.db.QueryContext(ctx, `SELECT key, value FROM kv ORDER BY key ASC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT key, value
			FROM kv
			WHERE substr(key, 1, ?) = ?
			ORDER BY key ASC
		`, len(prefix), prefix)
	}
	if err != nil {
		return nil, fmt.Errorf("scan kv: %w", err)
	}
	defer rows.Close()

	out := []KeyValue{}
	for rows.Next() {
		var kv KeyValue
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return nil, fmt.Errorf("scan kv: %w", err)
		}
		out = append(out, kv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kv: %w", err)
	}
	return out, nil
}

// WriteApplication registers or updates an application.
func (s *Store) WriteApplication(ctx context.Context, app Application) error {
	params := app.Parameters
	if params == nil {
		params = []byte("null")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (id, name, parameters) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, parameters = excluded.parameters
	`, app.ID.String(), app.Name, params)
	if err != nil {
		return fmt.Errorf("write application: %w", err)
	}
	return nil
}

// ReadApplication returns a registered application and whether it exists.
func (s *Store) ReadApplication(ctx context.Context, id base.ApplicationID) (Application, bool, error) {
	app := Application{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT name, parameters FROM applications WHERE id = ?
	`, id.String()).Scan(&app.Name, &app.Parameters)
	if errors.Is(err, sql.ErrNoRows) {
		return Application{}, false, nil
	}
	if err != nil {
		return Application{}, false, fmt.Errorf("read application: %w", err)
	}
	return app, true, nil
}

// ReadApplications lists registered applications ordered by id.
func (s *Store) ReadApplications(ctx context.Context) ([]Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, parameters FROM applications ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	out := []Application{}
	for rows.Next() {
		var (
			id  string
			app Application
		)
		if err := rows.Scan(&id, &app.Name, &app.Parameters); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		if app.ID, err = base.ParseApplicationID(id); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

// nonNil keeps empty keys from binding as NULL.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
