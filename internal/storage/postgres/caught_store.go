package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"pokeball/internal/domain"
	"pokeball/internal/storage"
)

// CaughtStore implements storage.CaughtStore using PostgreSQL. Meant for
// deployments where several accounts share one database.
type CaughtStore struct {
	pool *Pool
}

// NewCaughtStore creates a new CaughtStore.
func NewCaughtStore(pool *Pool) *CaughtStore {
	return &CaughtStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CaughtStore = (*CaughtStore)(nil)

// InsertCaught adds a record. Inserting an existing external id is a no-op.
func (s *CaughtStore) InsertCaught(ctx context.Context, r *domain.CaughtRecord) error {
	if r == nil || r.ExternalID == 0 || r.Name == "" {
		return storage.ErrInvalidInput
	}

	category := r.Category
	if category == "" {
		category = domain.CategoryCommon
	}

	query := `
		INSERT INTO caught_records (
			caught_on, name, external_id, level, iv, category, nickname
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		r.CaughtOn,
		r.Name,
		r.ExternalID,
		r.Level,
		r.IV,
		string(category),
		r.Nickname,
	)
	if err != nil {
		return fmt.Errorf("insert caught record: %w", err)
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO caught_records (
			caught_on, name, external_id, level, iv, category, nickname
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO NOTHING
	`

	for _, r := range records {
		category := r.Category
		if category == "" {
			category = domain.CategoryCommon
		}
		_, err := tx.Exec(ctx, query,
			r.CaughtOn, r.Name, r.ExternalID, r.Level, r.IV, string(category), r.Nickname)
		if err != nil {
			return fmt.Errorf("bulk insert record %d: %w", r.ExternalID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteByIDs removes records by external id. Missing ids are ignored.
func (s *CaughtStore) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `DELETE FROM caught_records WHERE external_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("delete by ids: %w", err)
	}
	return nil
}

// CountByName returns the persisted count for name, or the total when empty.
func (s *CaughtStore) CountByName(ctx context.Context, name string) (int, error) {
	var (
		count int
		err   error
	)
	if name == "" {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM caught_records`).Scan(&count)
	} else {
		err = s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM caught_records WHERE LOWER(name) = LOWER($1)`, name).Scan(&count)
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
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.MinLevel > 0 {
		where = append(where, "level >= "+arg(q.MinLevel))
	}
	if q.MaxLevel > 0 {
		where = append(where, "level <= "+arg(q.MaxLevel))
	}
	if q.MinIV > 0 {
		where = append(where, "iv >= "+arg(q.MinIV))
	}
	if q.MaxIV > 0 {
		where = append(where, "iv <= "+arg(q.MaxIV))
	}
	for col, val := range q.Filters {
		if !filterColumns[col] {
			return nil, fmt.Errorf("%w: unknown filter column %q", storage.ErrInvalidInput, col)
		}
		where = append(where, fmt.Sprintf("LOWER(%s) = LOWER(%s)", col, arg(val)))
	}
	if q.MinDuplicates > 0 {
		where = append(where, fmt.Sprintf(
			"LOWER(name) IN (SELECT LOWER(name) FROM caught_records GROUP BY LOWER(name) HAVING COUNT(*) >= %s)",
			arg(q.MinDuplicates)))
	}

	query := `SELECT caught_on, name, external_id, level, iv, category, nickname FROM caught_records`
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
		query += " LIMIT " + arg(q.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query caught records: %w", err)
	}
	defer rows.Close()

	return scanCaughtRecords(rows)
}

// Duplicates retrieves records of names persisted at least minCount times.
func (s *CaughtStore) Duplicates(ctx context.Context, minCount int) ([]*domain.CaughtRecord, error) {
	return s.QueryFiltered(ctx, storage.Query{MinDuplicates: minCount, OrderBy: "name"})
}

// TrashCandidates retrieves common, unnamed, low-IV records beyond the
// per-name keep count. External id 1 is reserved and never returned.
func (s *CaughtStore) TrashCandidates(ctx context.Context, q storage.TrashQuery) ([]*domain.CaughtRecord, error) {
	where := []string{
		"iv < $1",
		"nickname IS NULL",
		"category = 'common'",
		"external_id <> 1",
	}
	args := []any{q.IVThreshold}

	if q.Name != "" {
		args = append(args, q.Name)
		where = append(where, fmt.Sprintf("LOWER(name) = LOWER($%d)", len(args)))
	}
	for _, name := range q.Exclude {
		args = append(args, name)
		where = append(where, fmt.Sprintf("LOWER(name) <> LOWER($%d)", len(args)))
	}

	args = append(args, q.MaxKeep)
	query := fmt.Sprintf(`
		SELECT caught_on, name, external_id, level, iv, category, nickname FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY LOWER(name) ORDER BY iv DESC
			) AS per_name_rank
			FROM caught_records
			WHERE %s
		) ranked
		WHERE per_name_rank > $%d
		ORDER BY external_id`, strings.Join(where, " AND "), len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trash candidates: %w", err)
	}
	defer rows.Close()

	return scanCaughtRecords(rows)
}

// scanCaughtRecords scans multiple rows into a slice of CaughtRecord.
func scanCaughtRecords(rows pgx.Rows) ([]*domain.CaughtRecord, error) {
	var records []*domain.CaughtRecord

	for rows.Next() {
		var (
			r        domain.CaughtRecord
			category string
		)
		err := rows.Scan(
			&r.CaughtOn,
			&r.Name,
			&r.ExternalID,
			&r.Level,
			&r.IV,
			&category,
			&r.Nickname,
		)
		if err != nil {
			return nil, fmt.Errorf("scan caught record row: %w", err)
		}

		r.Category = domain.Category(category)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate caught record rows: %w", err)
	}

	return records, nil
}
