package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/hanger/internal/bus"
)

var fieldRegexp = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// splitPath returns the parent collection and the final segment of a document path.
func splitPath(path string) (parent, id string, err error) {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") || strings.Contains(path, "//") {
		return "", "", fmt.Errorf("invalid document path %q", path)
	}
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path, nil
	}
	return path[:i], path[i+1:], nil
}

// Get reads the document at path into dst. Absent documents report false with a nil error.
func (db *DB) Get(ctx context.Context, path string, dst any) (bool, error) {
	var raw string
	err := db.QueryRowContext(ctx, `SELECT value FROM documents WHERE path = ?`, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", path, err)
	}
	if dst == nil {
		return true, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// Set replaces the document at path with v.
func (db *DB) Set(ctx context.Context, path string, v any) error {
	parent, id, err := splitPath(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO documents (path, parent, id, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		path, parent, id, string(data), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	db.notify(path)
	return nil
}

// Delete removes the document at path. Deleting an absent document is a no-op.
func (db *DB) Delete(ctx context.Context, path string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		db.notify(path)
	}
	return nil
}

// Add stores v under a generated id in collection and returns the id.
// Ids are time-ordered, so they sort in insertion order.
func (db *DB) Add(ctx context.Context, collection string, v any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	if err := db.Set(ctx, collection+"/"+id.String(), v); err != nil {
		return "", err
	}
	return id.String(), nil
}

// MultiUpdate merges each patch into the document at its path, creating
// documents that do not exist yet. All paths commit together or not at all.
func (db *DB) MultiUpdate(ctx context.Context, updates map[string]Patch) error {
	paths := make([]string, 0, len(updates))
	for p := range updates {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, path := range paths {
		parent, id, err := splitPath(path)
		if err != nil {
			return err
		}

		fields := make(map[string]json.RawMessage)
		var raw string
		err = tx.QueryRowContext(ctx, `SELECT value FROM documents WHERE path = ?`, path).Scan(&raw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("read %s: %w", path, err)
		default:
			if err := json.Unmarshal([]byte(raw), &fields); err != nil {
				return fmt.Errorf("document %s is not an object: %w", path, err)
			}
		}

		for k, v := range updates[path] {
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode %s.%s: %w", path, k, err)
			}
			fields[k] = b
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (path, parent, id, value, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at`,
			path, parent, id, string(data), now); err != nil {
			return fmt.Errorf("update %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit multi-update: %w", err)
	}
	for _, path := range paths {
		db.notify(path)
	}
	return nil
}

// Query returns the direct children of q.Collection matching every filter.
// Without OrderBy results come back in id order.
func (db *DB) Query(ctx context.Context, q Query) ([]Document, error) {
	var b strings.Builder
	b.WriteString(`SELECT path, id, value FROM documents WHERE parent = ?`)
	args := []any{q.Collection}

	for _, f := range q.Where {
		if !fieldRegexp.MatchString(f.Field) {
			return nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		fmt.Fprintf(&b, ` AND json_extract(value, '$.%s') = ?`, f.Field)
		args = append(args, f.Value)
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	if q.OrderBy != "" {
		if !fieldRegexp.MatchString(q.OrderBy) {
			return nil, fmt.Errorf("invalid order field %q", q.OrderBy)
		}
		fmt.Fprintf(&b, ` ORDER BY json_extract(value, '$.%s') %s, id %s`, q.OrderBy, dir, dir)
	} else {
		fmt.Fprintf(&b, ` ORDER BY id %s`, dir)
	}
	if q.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		var d Document
		var raw string
		if err := rows.Scan(&d.Path, &d.ID, &raw); err != nil {
			return nil, err
		}
		d.Value = json.RawMessage(raw)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (db *DB) notify(path string) {
	db.bus.Publish(bus.Event{
		Kind:      bus.DocKind(path),
		Timestamp: time.Now(),
		Payload:   path,
	})
}
