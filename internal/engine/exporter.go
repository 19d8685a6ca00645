package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ExportData reads every row of every entity group the scope owns, one
// query per group, all issued concurrently. Many-to-many link tables come
// back as flattened two-field rows under their own data key. Every row is
// normalized so serialization is deterministic.
func (d *ScopeDefinition) ExportData(ctx context.Context, db Database) (Dataset, error) {
	tableRows := make([][]Row, len(d.Tables))
	linkRows := make([][]Row, len(d.Links))

	g, ctx := errgroup.WithContext(ctx)

	for i, t := range d.Tables {
		i, t := i, t
		g.Go(func() error {
			rows, err := db.ReadRows(ctx, t.Table, []string{t.IDColumn})
			if err != nil {
				return fmt.Errorf("reading %s: %w", t.Table, err)
			}
			for j, row := range rows {
				rows[j] = NormalizeRow(row)
			}
			tableRows[i] = rows
			return nil
		})
	}

	for i, l := range d.Links {
		i, l := i, l
		g.Go(func() error {
			rows, err := db.ReadRows(ctx, l.Table, []string{l.ParentColumn, l.ChildColumn})
			if err != nil {
				return fmt.Errorf("reading %s: %w", l.Table, err)
			}
			flat := make([]Row, len(rows))
			for j, row := range rows {
				flat[j] = NormalizeRow(Row{
					l.ParentField: row[l.ParentField],
					l.ChildField:  row[l.ChildField],
				})
			}
			linkRows[i] = flat
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := make(Dataset, len(d.Tables)+len(d.Links))
	for i, t := range d.Tables {
		data[t.DataKey] = tableRows[i]
	}
	for i, l := range d.Links {
		data[l.DataKey] = linkRows[i]
	}
	return data, nil
}
