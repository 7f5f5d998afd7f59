// Package sqlite implements storage backends on a single-file SQLite
// database. This is the default backend: one bot account, one file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"pokeball/internal/domain"
	"pokeball/internal/storage"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// CaughtStore implements storage.CaughtStore using SQLite.
// Thread-safe with WAL mode for high-concurrency reads.
type CaughtStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewCaughtStore opens (creating if needed) the database at dbPath.
func NewCaughtStore(dbPath string) (*CaughtStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &CaughtStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS caught (
		caught_on TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		name TEXT NOT NULL,
		external_id INTEGER UNIQUE NOT NULL,
		level INTEGER NOT NULL,
		iv REAL DEFAULT 0.0,
		category TEXT CHECK(category IN ('common', 'priority', 'legendary', 'shiny')) DEFAULT 'common',
		nickname TEXT DEFAULT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_caught_name ON caught(name COLLATE NOCASE);
	`
	_, err := db.Exec(query)
	return err
}

// InsertCaught adds a record. Inserting an existing external id is a no-op.
func (s *CaughtStore) InsertCaught(ctx context.Context, r *domain.CaughtRecord) error {
	if r == nil || r.ExternalID == 0 || r.Name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(ctx, s.db, r)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *CaughtStore) insertLocked(ctx context.Context, db execer, r *domain.CaughtRecord) error {
	category := r.Category
	if category == "" {
		category = domain.CategoryCommon
	}

	query := `
		INSERT OR IGNORE INTO caught (caught_on, name, external_id, level, iv, category, nickname)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, query,
		r.CaughtOn, r.Name, r.ExternalID, r.Level, r.IV, string(category), r.Nickname)
	if err != nil {
		return fmt.Errorf("insert caught: %w", err)
	}
	return nil
}

// BulkInsert adds multiple records in one transaction, skipping duplicates.
func (s *CaughtStore) BulkInsert(ctx context.Context, records []*domain.CaughtRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.ExternalID == 0 || r.Name == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if err := s.insertLocked(ctx, tx, r); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteByIDs removes records by external id. Missing ids are ignored.
func (s *CaughtStore) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM caught WHERE external_id IN (%s)", placeholders), args...)
	if err != nil {
		return fmt.Errorf("delete by ids: %w", err)
	}
	return nil
}

// CountByName returns the persisted count for name, or the total when empty.
func (s *CaughtStore) CountByName(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		count int
		err   error
	)
	if name == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM caught").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM caught WHERE name = ? COLLATE NOCASE", name).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count by name: %w", err)
	}
	return count, nil
}

// orderColumns is the allowlist for Query.OrderBy.
var orderColumns = map[string]bool{
	"caught_on":   true,
	"name":        true,
	"external_id": true,
	"level":       true,
	"iv":          true,
	"category":    true,
}

// filterColumns is the allowlist for Query.Filters keys.
var filterColumns = map[string]bool{
	"name":     true,
	"category": true,
	"nickname": true,
}

// QueryFiltered retrieves records matching q.
func (s *CaughtStore) QueryFiltered(ctx context.Context, q storage.Query) ([]*domain.CaughtRecord, error) {
	var (
		where []string
		args  []any
	)

	if q.MinLevel > 0 {
		where = append(where, "level >= ?")
		args = append(args, q.MinLevel)
	}
	if q.MaxLevel > 0 {
		where = append(where, "level <= ?")
		args = append(args, q.MaxLevel)
	}
	if q.MinIV > 0 {
		where = append(where, "iv >= ?")
		args = append(args, q.MinIV)
	}
	if q.MaxIV > 0 {
		where = append(where, "iv <= ?")
		args = append(args, q.MaxIV)
	}
	for col, val := range q.Filters {
		if !filterColumns[col] {
			return nil, fmt.Errorf("%w: unknown filter column %q", storage.ErrInvalidInput, col)
		}
		where = append(where, col+" = ? COLLATE NOCASE")
		args = append(args, val)
	}
	if q.MinDuplicates > 0 {
		where = append(where,
			"name IN (SELECT name FROM caught GROUP BY name COLLATE NOCASE HAVING COUNT(*) >= ?)")
		args = append(args, q.MinDuplicates)
	}

	query := "SELECT caught_on, name, external_id, level, iv, category, nickname FROM caught"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	if q.OrderBy != "" {
		col := strings.TrimPrefix(q.OrderBy, "-")
		if !orderColumns[col] {
			return nil, fmt.Errorf("%w: unknown order column %q", storage.ErrInvalidInput, col)
		}
		query += " ORDER BY " + col
		if strings.HasPrefix(q.OrderBy, "-") {
			query += " DESC"
		}
	} else {
		query += " ORDER BY external_id"
	}

	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx, query, args...)
}

// Duplicates retrieves records of names persisted at least minCount times.
func (s *CaughtStore) Duplicates(ctx context.Context, minCount int) ([]*domain.CaughtRecord, error) {
	return s.QueryFiltered(ctx, storage.Query{MinDuplicates: minCount, OrderBy: "name"})
}

// TrashCandidates retrieves common, unnamed, low-IV records beyond the
// per-name keep count. External id 1 is reserved and never returned.
func (s *CaughtStore) TrashCandidates(ctx context.Context, q storage.TrashQuery) ([]*domain.CaughtRecord, error) {
	where := []string{
		"iv < ?",
		"nickname IS NULL",
		"category = 'common'",
		"external_id <> 1",
	}
	args := []any{q.IVThreshold}

	if q.Name != "" {
		where = append(where, "name = ? COLLATE NOCASE")
		args = append(args, q.Name)
	}
	for _, name := range q.Exclude {
		where = append(where, "name <> ? COLLATE NOCASE")
		args = append(args, name)
	}

	// Rank each name's candidates by IV; everything past the keep count
	// is trash.
	query := fmt.Sprintf(`
		SELECT caught_on, name, external_id, level, iv, category, nickname FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY name COLLATE NOCASE ORDER BY iv DESC
			) AS rank
			FROM caught
			WHERE %s
		) WHERE rank > ?
		ORDER BY external_id`, strings.Join(where, " AND "))
	args = append(args, q.MaxKeep)

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx, query, args...)
}

func (s *CaughtStore) queryRecords(ctx context.Context, query string, args ...any) ([]*domain.CaughtRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query caught: %w", err)
	}
	defer rows.Close()

	var result []*domain.CaughtRecord
	for rows.Next() {
		var (
			r        domain.CaughtRecord
			category string
			nickname sql.NullString
		)
		if err := rows.Scan(&r.CaughtOn, &r.Name, &r.ExternalID, &r.Level, &r.IV, &category, &nickname); err != nil {
			return nil, fmt.Errorf("scan caught: %w", err)
		}
		r.Category = domain.Category(category)
		if nickname.Valid {
			r.Nickname = &nickname.String
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate caught: %w", err)
	}
	return result, nil
}

// Close closes the database connection.
func (s *CaughtStore) Close() error {
	return s.db.Close()
}

// Verify interface compliance at compile time.
var _ storage.CaughtStore = (*CaughtStore)(nil)
