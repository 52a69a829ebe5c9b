package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// indexSchemaVersion is bumped when schema.sql changes. A mismatched index is
// dropped and rebuilt empty; the entry files remain authoritative.
const indexSchemaVersion = 1

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

type index struct {
	db *sql.DB
}

type indexRow struct {
	Key       Key
	Kind      Kind
	Source    string
	Title     string
	Method    string
	Model     string
	Size      int64
	WrittenAt time.Time
}

func openIndex(path string) (*index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	db.SetMaxOpenConns(1)
	idx := &index{db: db}
	if err := idx.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (i *index) close() error {
	return i.db.Close()
}

func (i *index) initSchema(ctx context.Context) error {
	var tableExists int
	if err := i.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists > 0 {
		var version int
		err := i.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
		if err == nil && version == indexSchemaVersion {
			return nil
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read schema version: %w", err)
		}
		for _, stmt := range []string{"DROP TABLE IF EXISTS entries", "DROP TABLE IF EXISTS schema_version"} {
			if _, err := i.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("reset index: %w", err)
			}
		}
	}
	if _, err := i.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create index schema: %w", err)
	}
	if _, err := i.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", indexSchemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (i *index) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := i.db.ExecContext(ctx, query, args...)
		return err
	})
}

func (i *index) upsert(ctx context.Context, row indexRow) error {
	return i.exec(ctx,
		`INSERT INTO entries (key, kind, source, title, method, model, size, written_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(key, kind) DO UPDATE SET
            source = excluded.source,
            title = excluded.title,
            method = excluded.method,
            model = excluded.model,
            size = excluded.size,
            written_at = excluded.written_at`,
		string(row.Key), string(row.Kind), row.Source, row.Title, row.Method, row.Model,
		row.Size, row.WrittenAt.UTC().Format(time.RFC3339Nano),
	)
}

func (i *index) remove(ctx context.Context, key Key, kind Kind) error {
	return i.exec(ctx, "DELETE FROM entries WHERE key = ? AND kind = ?", string(key), string(kind))
}

func (i *index) removeKind(ctx context.Context, kind Kind) error {
	return i.exec(ctx, "DELETE FROM entries WHERE kind = ?", string(kind))
}

func (i *index) list(ctx context.Context, kind Kind) ([]indexRow, error) {
	query := "SELECT key, kind, source, title, method, model, size, written_at FROM entries"
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY written_at DESC, key"

	var rows []indexRow
	err := retryOnBusy(ctx, func() error {
		rows = rows[:0]
		result, err := i.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer result.Close()
		for result.Next() {
			var (
				row       indexRow
				key, kd   string
				writtenAt string
			)
			if err := result.Scan(&key, &kd, &row.Source, &row.Title, &row.Method, &row.Model, &row.Size, &writtenAt); err != nil {
				return err
			}
			row.Key = Key(key)
			row.Kind = Kind(kd)
			if ts, err := time.Parse(time.RFC3339Nano, writtenAt); err == nil {
				row.WrittenAt = ts
			}
			rows = append(rows, row)
		}
		return result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list cache index: %w", err)
	}
	return rows, nil
}
