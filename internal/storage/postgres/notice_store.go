// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/ajou-notice-sync/internal/notice"
)

// DefaultTable is the table created by the bundled migrations.
const DefaultTable = "notices"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NoticeStoreConfig controls the Postgres connection pool used for notice rows.
type NoticeStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// NoticeStore reads and writes notice rows in Postgres.
type NoticeStore struct {
	pool  pool
	table string
}

// NewNoticeStore creates a Postgres-backed NoticeStore using the provided config.
func NewNoticeStore(ctx context.Context, cfg NoticeStoreConfig) (*NoticeStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &NoticeStore{pool: p, table: table}, nil
}

// NewNoticeStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewNoticeStoreWithPool(p pool, table string) (*NoticeStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &NoticeStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return DefaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *NoticeStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping reports whether the database is reachable.
func (s *NoticeStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("notice store is not configured")
	}
	return s.pool.Ping(ctx)
}

// MaxID returns the highest stored article number, or 0 for an empty table.
func (s *NoticeStore) MaxID(ctx context.Context) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("notice store is not configured")
	}
	var maxID int64
	query := fmt.Sprintf(`SELECT COALESCE(MAX(id), 0) FROM %s`, s.table)
	if err := s.pool.QueryRow(ctx, query).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("select max id: %w", err)
	}
	return maxID, nil
}

// Insert writes rec unless a row with the same id exists. It reports whether a
// row was written.
func (s *NoticeStore) Insert(ctx context.Context, rec notice.Record) (bool, error) {
	if s == nil || s.pool == nil {
		return false, fmt.Errorf("notice store is not configured")
	}
	if rec.ID <= 0 {
		return false, fmt.Errorf("record id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	category,
	department,
	title,
	date,
	content,
	summary,
	url
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (id) DO NOTHING`, s.table)

	tag, err := s.pool.Exec(ctx, query,
		rec.ID,
		rec.Category,
		rec.Department,
		rec.Title,
		rec.Date,
		rec.Content,
		rec.Summary,
		rec.URL,
	)
	if err != nil {
		return false, fmt.Errorf("insert notice %d: %w", rec.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// List returns one page of notices, newest first.
func (s *NoticeStore) List(ctx context.Context, q notice.Query) ([]notice.Record, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("notice store is not configured")
	}
	q = q.Normalize()
	query, args := s.listQuery(q)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	defer rows.Close()

	out := make([]notice.Record, 0, q.PageSize)
	for rows.Next() {
		var rec notice.Record
		if err := rows.Scan(
			&rec.ID,
			&rec.Category,
			&rec.Department,
			&rec.Title,
			&rec.Date,
			&rec.Content,
			&rec.Summary,
			&rec.URL,
		); err != nil {
			return nil, fmt.Errorf("scan notice: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	return out, nil
}

func (s *NoticeStore) listQuery(q notice.Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	if q.Category != "" {
		args = append(args, q.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if q.Department != "" {
		args = append(args, q.Department)
		where = append(where, fmt.Sprintf("department = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR content ILIKE $%d)", len(args), len(args)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id, category, department, title, date, content, summary, url FROM %s", s.table)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, q.PageSize, q.Offset())
	fmt.Fprintf(&b, " ORDER BY id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
