package engine

import "context"

// Database is the relational access port the engine reads through. Reads
// are safe to issue concurrently; all mutation happens through a Tx.
// Implementations translate between archive field names and physical
// column names via the engine's naming helpers, so rows crossing this
// boundary always use camelCase fields.
type Database interface {
	// ReadRows returns every row of a table, ordered by the given columns
	// so exports are deterministic.
	ReadRows(ctx context.Context, table string, orderBy []string) ([]Row, error)

	// CountRows returns the live row count of a table.
	CountRows(ctx context.Context, table string) (int64, error)

	// HasRow reports whether any row of the table has the given value in
	// the given column.
	HasRow(ctx context.Context, table, column string, value any) (bool, error)

	// Begin starts the single transaction an import runs inside.
	Begin(ctx context.Context) (Tx, error)

	// Close closes the underlying connection pool.
	Close() error
}

// Tx is the mutation port for the full-replace apply. Every method failing
// must leave the transaction abortable; Rollback after a failed Commit is a
// no-op.
type Tx interface {
	// DeleteAll removes every row of a table and returns the count removed.
	DeleteAll(ctx context.Context, table string) (int64, error)

	// InsertRows bulk-inserts rows into a table. Callers batch; one call is
	// one statement.
	InsertRows(ctx context.Context, table string, rows []Row) (int64, error)

	// ReplaceLinks sets the full child list for one parent in a link table:
	// delete the parent's existing link rows, then insert one per child.
	ReplaceLinks(ctx context.Context, table, parentColumn string, parentID any, childColumn string, children []any) error

	// ResetSequence repairs the auto-increment sequence backing
	// table.column so the next generated value is max(column)+1, or 1 when
	// the table is empty. Identifiers are validated against a strict
	// allow-list before touching any SQL.
	ResetSequence(ctx context.Context, table, column string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
