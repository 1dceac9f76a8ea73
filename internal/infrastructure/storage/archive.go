package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/SAMK-online/NewsPod/internal/domain"
	"github.com/SAMK-online/NewsPod/internal/ports"
	"github.com/SAMK-online/NewsPod/internal/textutil"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	reportedTable = "reported_stories"
	// sqlite caps bound parameters per statement
	keysPerQuery = 500
)

// Archive persists reported story keys in SQLite or Postgres.
type Archive struct {
	db     *sql.DB
	driver string
	sb     sq.StatementBuilderType
	now    func() time.Time
}

var _ ports.StoryArchive = (*Archive)(nil)

// Open connects to dsn with the given driver and creates the schema.
func Open(ctx context.Context, driver, dsn string) (*Archive, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	var placeholder sq.PlaceholderFormat
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		placeholder = sq.Question
		if dir := filepath.Dir(dsn); dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create archive directory: %w", err)
			}
		}
	case DriverPostgres, "postgresql":
		driver = DriverPostgres
		placeholder = sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported archive driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	a := &Archive{
		db:     db,
		driver: driver,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:    time.Now,
	}
	if err := a.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS reported_stories (
	story_key   TEXT PRIMARY KEY,
	headline    TEXT NOT NULL,
	source_id   TEXT NOT NULL DEFAULT '',
	ticker      TEXT NOT NULL DEFAULT '',
	run_id      TEXT NOT NULL,
	reported_at TEXT NOT NULL
)`
	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (a *Archive) Close() error {
	return a.db.Close()
}

// AlreadyReported returns the subset of keys stored by earlier runs.
func (a *Archive) AlreadyReported(ctx context.Context, keys []string) (map[string]bool, error) {
	result := make(map[string]bool)
	for start := 0; start < len(keys); start += keysPerQuery {
		chunk := keys[start:min(start+keysPerQuery, len(keys))]

		query := a.sb.Select("story_key").From(reportedTable)
		if a.driver == DriverPostgres {
			query = query.Where("story_key = ANY(?)", pq.Array(chunk))
		} else {
			query = query.Where(sq.Eq{"story_key": chunk})
		}
		stmt, args, err := query.ToSql()
		if err != nil {
			return nil, fmt.Errorf("build query: %w", err)
		}

		if err := a.collect(ctx, stmt, args, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (a *Archive) collect(ctx context.Context, stmt string, args []any, result map[string]bool) error {
	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("query reported: %w", err)
	}

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan key: %w", err)
		}
		result[key] = true
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return fmt.Errorf("close rows: %w", closeErr)
	}
	return nil
}

// SaveReported records stories under their normalized headline. Keys that are
// already present keep their first run.
func (a *Archive) SaveReported(ctx context.Context, runID string, stories []domain.AcceptedStory) error {
	if len(stories) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	reportedAt := a.now().UTC().Format(time.RFC3339)
	for _, s := range stories {
		key := textutil.NormalizeHeadline(s.Headline)
		if key == "" {
			continue
		}
		stmt, args, err := a.sb.Insert(reportedTable).
			Columns("story_key", "headline", "source_id", "ticker", "run_id", "reported_at").
			Values(key, s.Headline, s.Source.SourceID, s.Ticker, runID, reportedAt).
			Suffix("ON CONFLICT (story_key) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert reported: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
