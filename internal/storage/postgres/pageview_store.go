package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/flightdeck/internal/site"
)

// pageviewCols is the number of bind parameters per inserted row.
const pageviewCols = 6

// MaxPageviewsPerInsert keeps one INSERT under the 65535 bind parameter limit.
const MaxPageviewsPerInsert = 1000

// PageViewStore persists analytics hits in a dedicated, time-indexed table.
type PageViewStore struct {
	pool  Pool
	table string
	chunk int
}

// NewPageViewStore wraps an open pool. prefix is prepended to the table name.
func NewPageViewStore(pool Pool, prefix string) (*PageViewStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(prefix, "pageviews")
	if err != nil {
		return nil, err
	}
	return &PageViewStore{pool: pool, table: table, chunk: MaxPageviewsPerInsert}, nil
}

// Migrate creates the pageviews table and its time index.
func (s *PageViewStore) Migrate(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	referrer TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL DEFAULT '',
	viewed_at TIMESTAMPTZ NOT NULL
)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_viewed_at_idx ON %[1]s (viewed_at)`, s.table),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate pageviews: %w", err)
		}
	}
	return nil
}

// Record inserts views in statements of at most MaxPageviewsPerInsert rows.
// Text fields are cleaned first so one bad beacon cannot fail a whole batch.
// Duplicate IDs are ignored.
func (s *PageViewStore) Record(ctx context.Context, views []site.PageView) error {
	for len(views) > 0 {
		n := min(len(views), s.chunk)
		if err := s.insert(ctx, views[:n]); err != nil {
			return err
		}
		views = views[n:]
	}
	return nil
}

func (s *PageViewStore) insert(ctx context.Context, views []site.PageView) error {
	placeholders := make([]string, 0, len(views))
	args := make([]any, 0, len(views)*pageviewCols)
	for i, v := range views {
		v = v.Sanitized()
		base := i * pageviewCols
		placeholders = append(placeholders, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, v.ID, v.Path, v.Referrer, v.UserAgent, v.SessionID, v.ViewedAt.UTC())
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (id, path, referrer, user_agent, session_id, viewed_at) VALUES %s ON CONFLICT (id) DO NOTHING`,
		s.table, strings.Join(placeholders, ","),
	)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert pageviews: %w", err)
	}
	return nil
}

// Range returns views with from <= viewed_at < to, oldest first.
func (s *PageViewStore) Range(ctx context.Context, from, to time.Time) ([]site.PageView, error) {
	query := fmt.Sprintf(`
SELECT id, path, referrer, user_agent, session_id, viewed_at
FROM %s WHERE viewed_at >= $1 AND viewed_at < $2 ORDER BY viewed_at`, s.table)
	rows, err := s.pool.Query(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("select pageviews: %w", err)
	}
	defer rows.Close()

	var out []site.PageView
	for rows.Next() {
		var v site.PageView
		if err := rows.Scan(&v.ID, &v.Path, &v.Referrer, &v.UserAgent, &v.SessionID, &v.ViewedAt); err != nil {
			return nil, fmt.Errorf("scan pageview: %w", err)
		}
		v.ViewedAt = v.ViewedAt.UTC()
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pageviews: %w", err)
	}
	return out, nil
}
