package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sback-go/internal/engine"
)

// PostgresStore implements the engine.Database interface over a pgx
// connection pool. This is the one place engine-specific SQL lives; all
// identifiers pass the allow-list before being interpolated.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the target database and verifies the
// connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) ReadRows(ctx context.Context, table string, orderBy []string) ([]engine.Row, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}
	order := make([]string, len(orderBy))
	for i, col := range orderBy {
		if err := validateIdentifier(col); err != nil {
			return nil, err
		}
		order[i] = col
	}

	query := fmt.Sprintf("SELECT * FROM %s", table)
	if len(order) > 0 {
		query += " ORDER BY " + strings.Join(order, ", ")
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []engine.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		record := make(map[string]any, len(fields))
		for i, f := range fields {
			record[f.Name] = values[i]
		}
		out = append(out, engine.ColumnsToRow(record))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", table, err)
	}
	return out, nil
}

func (s *PostgresStore) CountRows(ctx context.Context, table string) (int64, error) {
	if err := validateIdentifier(table); err != nil {
		return 0, err
	}
	var count int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return count, nil
}

func (s *PostgresStore) HasRow(ctx context.Context, table, column string, value any) (bool, error) {
	if err := validateIdentifier(table); err != nil {
		return false, err
	}
	if err := validateIdentifier(column); err != nil {
		return false, err
	}
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)", table, column)
	if err := s.pool.QueryRow(ctx, query, bindValue(value)).Scan(&exists); err != nil {
		return false, fmt.Errorf("probing %s.%s: %w", table, column, err)
	}
	return exists, nil
}

func (s *PostgresStore) Begin(ctx context.Context) (engine.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &postgresTx{tx: tx}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) DeleteAll(ctx context.Context, table string) (int64, error) {
	if err := validateIdentifier(table); err != nil {
		return 0, err
	}
	tag, err := t.tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func (t *postgresTx) InsertRows(ctx context.Context, table string, rows []engine.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := validateIdentifier(table); err != nil {
		return 0, err
	}

	// Column set is the union across the batch, sorted for a stable
	// statement shape; rows missing a column insert NULL.
	columnSet := make(map[string]struct{})
	records := make([]map[string]any, len(rows))
	for i, row := range rows {
		rec := engine.RowToColumns(row)
		records[i] = rec
		for col := range rec {
			columnSet[col] = struct{}{}
		}
	}
	columns := make([]string, 0, len(columnSet))
	for col := range columnSet {
		if err := validateIdentifier(col); err != nil {
			return 0, err
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))
	args := make([]any, 0, len(records)*len(columns))
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j, col := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", len(args)+1)
			args = append(args, bindValue(rec[col]))
		}
		sb.WriteByte(')')
	}

	tag, err := t.tx.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("inserting into %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func (t *postgresTx) ReplaceLinks(ctx context.Context, table, parentColumn string, parentID any, childColumn string, children []any) error {
	for _, ident := range []string{table, parentColumn, childColumn} {
		if err := validateIdentifier(ident); err != nil {
			return err
		}
	}

	_, err := t.tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, parentColumn), bindValue(parentID))
	if err != nil {
		return fmt.Errorf("clearing %s links: %w", table, err)
	}
	if len(children) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s, %s) VALUES ", table, parentColumn, childColumn)
	args := make([]any, 0, len(children)*2)
	for i, child := range children {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d)", len(args)+1, len(args)+2)
		args = append(args, bindValue(parentID), bindValue(child))
	}
	if _, err := t.tx.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("inserting %s links: %w", table, err)
	}
	return nil
}

func (t *postgresTx) ResetSequence(ctx context.Context, table, column string) error {
	if err := validateIdentifier(table); err != nil {
		return err
	}
	if err := validateIdentifier(column); err != nil {
		return err
	}

	// setval with is_called=false positions an empty table's sequence so
	// the next generated value is 1; otherwise the next value is max+1.
	query := fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence($1, $2), GREATEST(COALESCE((SELECT MAX(%s) FROM %s), 0), 1), COALESCE((SELECT MAX(%s) FROM %s), 0) > 0)",
		column, table, column, table)
	if _, err := t.tx.Exec(ctx, query, table, column); err != nil {
		return fmt.Errorf("setval for %s.%s: %w", table, column, err)
	}
	return nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err == nil || err == pgx.ErrTxClosed {
		return nil
	}
	return err
}

// bindValue converts archive-side values into forms pgx binds natively:
// json.Number carries no driver type, and nested containers become JSONB.
func bindValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return val
		}
		return b
	default:
		return v
	}
}
