package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"sback-go/internal/engine"
)

// MemoryStore implements the engine.Database interface in memory with real
// transaction semantics: a transaction stages changes on a private copy and
// swaps it in on commit, so rollback restores the exact prior state. Useful
// for tests and local experimentation.
type MemoryStore struct {
	mu        sync.Mutex
	tables    map[string][]map[string]any // table -> rows in physical column form
	sequences map[string]int64            // "table.column" -> last generated value
}

// NewMemoryStore creates an empty in-memory database.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:    make(map[string][]map[string]any),
		sequences: make(map[string]int64),
	}
}

// Seed inserts rows directly (physical column names), advancing the
// table's id sequence past any numeric id seen. Test setup only.
func (m *MemoryStore) Seed(table, idColumn string, rows ...map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.tables[table] = append(m.tables[table], copyRecord(row))
		if id, ok := toInt64(row[idColumn]); ok {
			key := table + "." + idColumn
			if id > m.sequences[key] {
				m.sequences[key] = id
			}
		}
	}
}

// NextValue simulates the natural auto-increment: it advances the sequence
// and returns the id a newly inserted row would receive.
func (m *MemoryStore) NextValue(table, column string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := table + "." + column
	m.sequences[key]++
	return m.sequences[key]
}

// Rows returns a copy of a table's rows in physical column form.
func (m *MemoryStore) Rows(table string) []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, len(m.tables[table]))
	for i, row := range m.tables[table] {
		out[i] = copyRecord(row)
	}
	return out
}

func (m *MemoryStore) ReadRows(_ context.Context, table string, orderBy []string) ([]engine.Row, error) {
	m.mu.Lock()
	records := make([]map[string]any, len(m.tables[table]))
	for i, row := range m.tables[table] {
		records[i] = copyRecord(row)
	}
	m.mu.Unlock()

	sortRecords(records, orderBy)

	rows := make([]engine.Row, len(records))
	for i, rec := range records {
		rows[i] = engine.ColumnsToRow(rec)
	}
	return rows, nil
}

func (m *MemoryStore) CountRows(_ context.Context, table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.tables[table])), nil
}

func (m *MemoryStore) HasRow(_ context.Context, table, column string, value any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := scalarKey(value)
	for _, row := range m.tables[table] {
		if scalarKey(row[column]) == want {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) Begin(_ context.Context) (engine.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[string][]map[string]any, len(m.tables))
	for table, rows := range m.tables {
		copied := make([]map[string]any, len(rows))
		for i, row := range rows {
			copied[i] = copyRecord(row)
		}
		staged[table] = copied
	}
	seqs := make(map[string]int64, len(m.sequences))
	for k, v := range m.sequences {
		seqs[k] = v
	}
	return &memoryTx{store: m, tables: staged, sequences: seqs}, nil
}

func (m *MemoryStore) Close() error { return nil }

// memoryTx stages all mutations; nothing is visible in the parent store
// until Commit.
type memoryTx struct {
	store     *MemoryStore
	tables    map[string][]map[string]any
	sequences map[string]int64
	done      bool
}

func (t *memoryTx) DeleteAll(_ context.Context, table string) (int64, error) {
	if t.done {
		return 0, fmt.Errorf("transaction is closed")
	}
	n := int64(len(t.tables[table]))
	t.tables[table] = nil
	return n, nil
}

func (t *memoryTx) InsertRows(_ context.Context, table string, rows []engine.Row) (int64, error) {
	if t.done {
		return 0, fmt.Errorf("transaction is closed")
	}
	for _, row := range rows {
		t.tables[table] = append(t.tables[table], engine.RowToColumns(row))
	}
	return int64(len(rows)), nil
}

func (t *memoryTx) ReplaceLinks(_ context.Context, table, parentColumn string, parentID any, childColumn string, children []any) error {
	if t.done {
		return fmt.Errorf("transaction is closed")
	}
	parentKey := scalarKey(parentID)
	kept := t.tables[table][:0]
	for _, row := range t.tables[table] {
		if scalarKey(row[parentColumn]) != parentKey {
			kept = append(kept, row)
		}
	}
	t.tables[table] = kept
	for _, child := range children {
		t.tables[table] = append(t.tables[table], map[string]any{
			parentColumn: parentID,
			childColumn:  child,
		})
	}
	return nil
}

func (t *memoryTx) ResetSequence(_ context.Context, table, column string) error {
	if t.done {
		return fmt.Errorf("transaction is closed")
	}
	if err := validateIdentifier(table); err != nil {
		return err
	}
	if err := validateIdentifier(column); err != nil {
		return err
	}
	var max int64
	for _, row := range t.tables[table] {
		if id, ok := toInt64(row[column]); ok && id > max {
			max = id
		}
	}
	t.sequences[table+"."+column] = max
	return nil
}

func (t *memoryTx) Commit(_ context.Context) error {
	if t.done {
		return fmt.Errorf("transaction is closed")
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.tables = t.tables
	t.store.sequences = t.sequences
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	t.done = true
	return nil
}

func copyRecord(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// scalarKey renders a value into a comparable form so that int64(5),
// json.Number("5"), and float64(5) all match.
func scalarKey(v any) string {
	switch val := v.(type) {
	case nil:
		return "z"
	case string:
		return "s:" + val
	case bool:
		return "b:" + strconv.FormatBool(val)
	case int:
		return "n:" + strconv.FormatInt(int64(val), 10)
	case int32:
		return "n:" + strconv.FormatInt(int64(val), 10)
	case int64:
		return "n:" + strconv.FormatInt(val, 10)
	case float64:
		return "n:" + strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return "n:" + val.String()
	case time.Time:
		return "t:" + val.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("v:%v", val)
	}
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		return int64(val), true
	case json.Number:
		i, err := val.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(val, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func sortRecords(records []map[string]any, orderBy []string) {
	sort.SliceStable(records, func(i, j int) bool {
		for _, col := range orderBy {
			a, b := scalarKey(records[i][col]), scalarKey(records[j][col])
			// Numeric keys compare numerically when both sides are numbers.
			ai, aok := toInt64(records[i][col])
			bi, bok := toInt64(records[j][col])
			if aok && bok {
				if ai != bi {
					return ai < bi
				}
				continue
			}
			if a != b {
				return a < b
			}
		}
		return false
	})
}
