// Package lookup searches the phone / ID-card dataset.
package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liyubing19/telegram-bot/internal/domain"
)

// Postgres searches every configured (or discovered) table and merges the
// matches. Discovered table lists are cached for the process lifetime.
type Postgres struct {
	pool    *pgxpool.Pool
	sources Sources
	logger  *slog.Logger

	mu         sync.Mutex
	discovered map[domain.QueryType][]Table
}

func NewPostgres(pool *pgxpool.Pool, sources Sources, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	sources.normalize()
	return &Postgres{
		pool:       pool,
		sources:    sources,
		logger:     logger,
		discovered: make(map[domain.QueryType][]Table),
	}
}

func (p *Postgres) Search(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	tables, err := p.tablesFor(ctx, q.Type)
	if err != nil {
		return nil, err
	}

	var (
		out  []domain.Record
		errs []error
	)
	for _, t := range tables {
		recs, err := p.searchTable(ctx, t, q.Value)
		if err != nil {
			// one broken table must not hide matches in the others
			p.logger.Error("lookup table query failed", "schema", t.Schema, "table", t.Name, "err", err)
			errs = append(errs, err)
			continue
		}
		out = append(out, recs...)
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (p *Postgres) searchTable(ctx context.Context, t Table, value string) ([]domain.Record, error) {
	sql := fmt.Sprintf(
		`SELECT to_jsonb(t) FROM %s AS t WHERE %s = $1 LIMIT $2`,
		pgx.Identifier{t.Schema, t.Name}.Sanitize(),
		pgx.Identifier{t.Column}.Sanitize(),
	)
	rows, err := p.pool.Query(ctx, sql, value, p.sources.Limit)
	if err != nil {
		return nil, fmt.Errorf("query %s.%s: %w", t.Schema, t.Name, err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s.%s: %w", t.Schema, t.Name, err)
		}
		row, err := decodeRow(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", t.Schema, t.Name, err)
		}
		out = append(out, recordFromRow(row))
	}
	return out, rows.Err()
}

func (p *Postgres) tablesFor(ctx context.Context, qt domain.QueryType) ([]Table, error) {
	if tables := p.sources.tables(qt); len(tables) > 0 {
		return tables, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tables, ok := p.discovered[qt]; ok {
		return tables, nil
	}

	column := DefaultColumn(qt)
	rows, err := p.pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND column_name = $2
		ORDER BY table_name
	`, p.sources.Schema, column)
	if err != nil {
		return nil, fmt.Errorf("discover %s tables: %w", qt, err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("discover %s tables: %w", qt, err)
		}
		tables = append(tables, Table{Schema: p.sources.Schema, Name: name, Column: column})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("discover %s tables: %w", qt, err)
	}

	p.discovered[qt] = tables
	p.logger.Info("lookup tables discovered", "type", qt, "count", len(tables))
	return tables, nil
}

// decodeRow keeps numeric columns as json.Number so long card numbers
// stored as numeric survive exactly.
func decodeRow(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return row, nil
}

// recordFromRow maps a dataset row to a Record. Unknown columns are ignored.
func recordFromRow(row map[string]any) domain.Record {
	return domain.Record{
		Name:   stringField(row, "name"),
		CardNo: stringField(row, "cardno"),
		Phone:  stringField(row, "phone"),
	}
}

func stringField(row map[string]any, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
