package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"snipbin/internal/storage"
)

// Store implements storage.Store using SQLite.
//
// Timestamps are stored as unix nanoseconds so the expiry comparison is exact
// and served by idx_pastes_expires_at.
type Store struct {
	db *sql.DB
}

// Open initializes the SQLite database at path.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w: %w", storage.ErrUnavailable, err)
	}
	// SQLite allows one writer; serializing on the pool avoids SQLITE_BUSY
	// under concurrent creates.
	db.SetMaxOpenConns(1)
	if err := initialize(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initialize(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS pastes (
    id TEXT PRIMARY KEY,
    content BLOB NOT NULL,
    language TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_pastes_expires_at ON pastes (expires_at) WHERE expires_at IS NOT NULL;
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Create inserts a paste. The primary key makes the existence check and the
// insert a single atomic statement.
func (s *Store) Create(ctx context.Context, paste *storage.Paste) error {
	if paste == nil {
		return errors.New("paste is nil")
	}

	paste.CreatedAt = paste.CreatedAt.UTC()
	paste.ExpiresAt = paste.ExpiresAt.UTC()

	const q = `
INSERT INTO pastes (id, content, language, created_at, expires_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING;
`
	res, err := s.db.ExecContext(ctx, q,
		paste.ID,
		[]byte(paste.Content),
		paste.Language,
		paste.CreatedAt.UnixNano(),
		nullableTime(paste.ExpiresAt),
	)
	if err != nil {
		return unavailable("create paste", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if rows == 0 {
		return storage.ErrConflict
	}
	return nil
}

// Get fetches a paste by id if it is live at asOf.
func (s *Store) Get(ctx context.Context, id string, asOf time.Time) (*storage.Paste, error) {
	const q = `
SELECT content, language, created_at, expires_at
FROM pastes WHERE id = ? AND (expires_at IS NULL OR expires_at > ?);
`
	row := s.db.QueryRowContext(ctx, q, id, asOf.UTC().UnixNano())

	var (
		content   []byte
		language  string
		createdAt int64
		expiresAt sql.NullInt64
	)
	if err := row.Scan(&content, &language, &createdAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, unavailable("query paste", err)
	}

	paste := &storage.Paste{
		ID:        id,
		Content:   string(content),
		Language:  language,
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}
	if expiresAt.Valid {
		paste.ExpiresAt = time.Unix(0, expiresAt.Int64).UTC()
	}
	return paste, nil
}

// ListExpired returns ids whose expiry is at or before asOf.
func (s *Store) ListExpired(ctx context.Context, asOf time.Time) ([]string, error) {
	const q = `
SELECT id FROM pastes
WHERE expires_at IS NOT NULL AND expires_at <= ?
ORDER BY expires_at;
`
	rows, err := s.db.QueryContext(ctx, q, asOf.UTC().UnixNano())
	if err != nil {
		return nil, unavailable("list expired", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("scan expired id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate expired", err)
	}
	return ids, nil
}

// DeleteIfExpired removes the paste only when its expiry is at or before asOf.
func (s *Store) DeleteIfExpired(ctx context.Context, id string, asOf time.Time) (bool, error) {
	const q = `DELETE FROM pastes WHERE id = ? AND expires_at IS NOT NULL AND expires_at <= ?;`
	res, err := s.db.ExecContext(ctx, q, id, asOf.UTC().UnixNano())
	if err != nil {
		return false, unavailable("delete expired", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("rows affected", err)
	}
	return rows > 0, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().UnixNano()
}
