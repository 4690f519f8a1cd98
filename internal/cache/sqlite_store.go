package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteFileName = "cache.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS buckets (
	name       TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	bucket    TEXT NOT NULL,
	method    TEXT NOT NULL,
	url       TEXT NOT NULL,
	base_url  TEXT NOT NULL,
	status    INTEGER NOT NULL,
	header    TEXT NOT NULL,
	body      BLOB,
	stored_at INTEGER NOT NULL,
	PRIMARY KEY (bucket, method, url)
);
CREATE INDEX IF NOT EXISTS entries_base_idx ON entries (bucket, method, base_url);
`

// NewSQLiteStore 在 dir/cache.db 中保存全部 bucket，批量写入在单个事务内完成。
func NewSQLiteStore(dir string) (Store, error) {
	if dir == "" {
		return nil, errors.New("storage path required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, sqliteFileName))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 单连接即可串行化写入，避免 SQLITE_BUSY。
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

type sqliteStore struct {
	db *sql.DB
}

func (s *sqliteStore) Open(ctx context.Context, name string) (Bucket, error) {
	if err := validateBucketName(name); err != nil {
		return nil, err
	}
	if err := ensureBucket(ctx, s.db, name); err != nil {
		return nil, err
	}
	return &sqliteBucket{db: s.db, name: name}, nil
}

func (s *sqliteStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM buckets ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *sqliteStore) Has(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM buckets WHERE name = ?", name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *sqliteStore) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE bucket = ?", name); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM buckets WHERE name = ?", name)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureBucket(ctx context.Context, db execer, name string) error {
	_, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO buckets (name, created_at) VALUES (?, ?)",
		name, time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", name, err)
	}
	return nil
}

type sqliteBucket struct {
	db   *sql.DB
	name string
}

func (b *sqliteBucket) Name() string { return b.name }

func (b *sqliteBucket) Match(ctx context.Context, key Key, opts MatchOptions) (*Snapshot, error) {
	row := b.db.QueryRowContext(ctx,
		"SELECT status, header, body, stored_at FROM entries WHERE bucket = ? AND method = ? AND url = ?",
		b.name, key.Method, key.URL)
	snap, err := scanSnapshot(row)
	if err == nil || !errors.Is(err, ErrNotFound) || !opts.IgnoreSearch {
		return snap, err
	}

	row = b.db.QueryRowContext(ctx,
		"SELECT status, header, body, stored_at FROM entries WHERE bucket = ? AND method = ? AND base_url = ? ORDER BY url LIMIT 1",
		b.name, key.Method, key.WithoutSearch().URL)
	return scanSnapshot(row)
}

func (b *sqliteBucket) Put(ctx context.Context, key Key, snapshot *Snapshot) error {
	return b.PutAll(ctx, []Record{{Key: key, Snapshot: snapshot}})
}

func (b *sqliteBucket) PutAll(ctx context.Context, records []Record) error {
	if err := validateRecords(records); err != nil {
		return err
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := ensureBucket(ctx, tx, b.name); err != nil {
		return err
	}
	for _, record := range records {
		header, err := json.Marshal(record.Snapshot.Header)
		if err != nil {
			return fmt.Errorf("encode header %s: %w", record.Key, err)
		}
		storedAt := record.Snapshot.StoredAt
		if storedAt.IsZero() {
			storedAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO entries (bucket, method, url, base_url, status, header, body, stored_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.name, record.Key.Method, record.Key.URL, record.Key.WithoutSearch().URL,
			record.Snapshot.Status, string(header), record.Snapshot.Body, storedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("put %s: %w", record.Key, err)
		}
	}
	return tx.Commit()
}

func (b *sqliteBucket) Keys(ctx context.Context) ([]Key, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT method, url FROM entries WHERE bucket = ? ORDER BY method, url", b.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var key Key
		if err := rows.Scan(&key.Method, &key.URL); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (b *sqliteBucket) Delete(ctx context.Context, key Key) (bool, error) {
	res, err := b.db.ExecContext(ctx,
		"DELETE FROM entries WHERE bucket = ? AND method = ? AND url = ?",
		b.name, key.Method, key.URL)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var (
		status   int
		header   string
		body     []byte
		storedAt int64
	)
	if err := row.Scan(&status, &header, &body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	snap := &Snapshot{
		Status:   status,
		Header:   http.Header{},
		Body:     body,
		StoredAt: time.Unix(0, storedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(header), &snap.Header); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return snap, nil
}
