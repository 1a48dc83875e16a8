// Package sqlite provides a SQLite implementation of storage.BlobStore using
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/scrypster/thinkgraph/internal/storage"
)

// Schema creates the single blobs table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS blobs (
	namespace   TEXT    NOT NULL,
	key         TEXT    NOT NULL,
	data        BLOB    NOT NULL,
	size        INTEGER NOT NULL,
	modified_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);
`

// BlobStore is a SQLite-backed storage.BlobStore.
type BlobStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ storage.BlobStore = (*BlobStore)(nil)

// NewBlobStore opens the database at dsn with WAL self-healing. If the initial
// open fails because of stale WAL files left by a crashed process, it checks
// that no other process holds them and retries once after removing them.
func NewBlobStore(dsn string, logger *zap.Logger) (*BlobStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := openBlobStore(dsn, logger)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath, logger)

	store, retryErr := openBlobStore(dsn, logger)
	if retryErr != nil {
		return nil, fmt.Errorf("sqlite: failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	logger.Warn("sqlite: recovered from stale WAL files", zap.String("path", dbPath))
	return store, nil
}

func openBlobStore(dsn string, logger *zap.Logger) (*BlobStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serialises writes and keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode=WAL", "enable WAL mode"},
		{"PRAGMA busy_timeout = 5000", "set busy timeout"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: failed to %s: %w", p.what, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &BlobStore{db: db, logger: logger}, nil
}

// Put upserts the document.
func (s *BlobStore) Put(ctx context.Context, namespace, key string, data []byte) error {
	if err := storage.ValidateKey(namespace, key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (namespace, key, data, size, modified_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			data = excluded.data,
			size = excluded.size,
			modified_at = excluded.modified_at
	`, namespace, key, data, len(data), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite: put %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Get returns the document or storage.ErrNotFound.
func (s *BlobStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := storage.ValidateKey(namespace, key); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM blobs WHERE namespace = ? AND key = ?`, namespace, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s/%s: %w", namespace, key, err)
	}
	return data, nil
}

// List returns every document in namespace ordered by key.
func (s *BlobStore) List(ctx context.Context, namespace string) ([]storage.BlobInfo, error) {
	if err := storage.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, size, modified_at FROM blobs WHERE namespace = ? ORDER BY key`, namespace)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", namespace, err)
	}
	defer rows.Close()

	infos := []storage.BlobInfo{}
	for rows.Next() {
		var (
			info     storage.BlobInfo
			modified int64
		)
		if err := rows.Scan(&info.Key, &info.Size, &modified); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", namespace, err)
		}
		info.ModTime = time.Unix(0, modified)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Close flushes the WAL into the main database file and releases resources.
// The TRUNCATE checkpoint removes the -shm and -wal files so another process
// can open the database without encountering stale WAL state.
func (s *BlobStore) Close() error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Warn("sqlite: WAL checkpoint on close failed", zap.Error(err))
	}
	return s.db.Close()
}
