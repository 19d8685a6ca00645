package engine

import (
	"context"
	"fmt"
)

// InsertBatchSize is how many rows one INSERT statement carries. Bounded to
// stay under driver parameter limits.
const InsertBatchSize = 300

// replaceStats reports what a Replace actually did.
type replaceStats struct {
	deleted  int64
	inserted int64
}

// Replace executes the destructive full replace for this scope inside the
// supplied transaction: delete child-before-parent, bulk-insert
// parent-before-child in batches, rebuild many-to-many links from the
// flattened link rows, then repair the scope's auto-increment sequences.
// Any error aborts the caller's transaction; partial replacement is never
// an observable outcome.
func (d *ScopeDefinition) Replace(ctx context.Context, tx Tx, data Dataset) (*replaceStats, error) {
	stats := &replaceStats{}

	// Link tables reference entity tables, so they go first; entity tables
	// are declared parent-before-child and deleted in reverse.
	for _, l := range d.Links {
		n, err := tx.DeleteAll(ctx, l.Table)
		if err != nil {
			return nil, fmt.Errorf("deleting %s: %w", l.Table, err)
		}
		stats.deleted += n
	}
	for i := len(d.Tables) - 1; i >= 0; i-- {
		n, err := tx.DeleteAll(ctx, d.Tables[i].Table)
		if err != nil {
			return nil, fmt.Errorf("deleting %s: %w", d.Tables[i].Table, err)
		}
		stats.deleted += n
	}

	for _, t := range d.Tables {
		rows := data[t.DataKey]
		for start := 0; start < len(rows); start += InsertBatchSize {
			end := min(start+InsertBatchSize, len(rows))
			n, err := tx.InsertRows(ctx, t.Table, rows[start:end])
			if err != nil {
				return nil, fmt.Errorf("inserting into %s (rows %d-%d): %w", t.Table, start, end-1, err)
			}
			stats.inserted += n
		}
	}

	for _, l := range d.Links {
		if err := d.replaceLinks(ctx, tx, l, data[l.DataKey], stats); err != nil {
			return nil, err
		}
	}

	for _, seq := range d.Sequences {
		if err := tx.ResetSequence(ctx, seq.Table, seq.Column); err != nil {
			return nil, fmt.Errorf("resetting sequence %s.%s: %w", seq.Table, seq.Column, err)
		}
	}

	return stats, nil
}

// replaceLinks groups flattened link rows by parent and sets each parent's
// full child list in one call, so reconstruction is independent of row
// insertion order.
func (d *ScopeDefinition) replaceLinks(ctx context.Context, tx Tx, l LinkSpec, rows []Row, stats *replaceStats) error {
	parents := make([]any, 0)
	children := make(map[string][]any)
	seen := make(map[string]any)

	for _, row := range rows {
		parent := row[l.ParentField]
		child := row[l.ChildField]
		if parent == nil || child == nil {
			continue
		}
		key, ok := identityKey(parent)
		if !ok {
			continue
		}
		if _, dup := seen[key]; !dup {
			seen[key] = parent
			parents = append(parents, parent)
		}
		children[key] = append(children[key], queryValue(child))
	}

	for _, parent := range parents {
		key, _ := identityKey(parent)
		kids := children[key]
		if err := tx.ReplaceLinks(ctx, l.Table, l.ParentColumn, queryValue(parent), l.ChildColumn, kids); err != nil {
			return fmt.Errorf("rebuilding %s links for %s=%v: %w", l.Table, l.ParentColumn, parent, err)
		}
		stats.inserted += int64(len(kids))
	}
	return nil
}

// ImportResult is the outcome of a successful apply.
type ImportResult struct {
	Scope      Scope         `json:"scope"`
	Mode       string        `json:"mode"`
	Checksum   string        `json:"checksum"`
	ImportedAt string        `json:"importedAt"`
	TableStats []TablePlan   `json:"tableStats"`
	Summary    ImportSummary `json:"summary"`
}

// ImportSummary totals what the apply did.
type ImportSummary struct {
	DeletedRows  int64 `json:"deletedRows"`
	InsertedRows int64 `json:"insertedRows"`
}

// issueCodes renders the blocking error codes for an ErrNotImportable
// message.
func issueCodes(issues []Issue) string {
	var out []byte
	for _, issue := range issues {
		if issue.Level != IssueError {
			continue
		}
		if len(out) > 0 {
			out = append(out, ", "...)
		}
		out = append(out, issue.Code...)
	}
	return string(out)
}
