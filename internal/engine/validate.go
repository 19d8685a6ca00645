package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

// IssueLevel grades a validation finding.
type IssueLevel string

const (
	// IssueError blocks import.
	IssueError IssueLevel = "error"
	// IssueWarning describes acceptable-but-risky replacement.
	IssueWarning IssueLevel = "warning"
)

// Issue is one graded validation finding.
type Issue struct {
	Level   IssueLevel `json:"level"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
}

// TablePlan is the per-table row-count delta of a full replace. Computed
// fresh on every dry run and apply, never persisted.
type TablePlan struct {
	Table    string `json:"table"`
	Current  int64  `json:"current"`
	Incoming int64  `json:"incoming"`
	ToDelete int64  `json:"toDelete"`
	ToInsert int64  `json:"toInsert"`
}

// PlanSummary aggregates the table plans.
type PlanSummary struct {
	CurrentRows  int64 `json:"currentRows"`
	IncomingRows int64 `json:"incomingRows"`
	RowsToDelete int64 `json:"rowsToDelete"`
	RowsToInsert int64 `json:"rowsToInsert"`
}

// DryRunResult reports whether an archive can be safely applied. Producing
// one performs zero writes.
type DryRunResult struct {
	Scope       Scope       `json:"scope"`
	Mode        string      `json:"mode"`
	Checksum    string      `json:"checksum"`
	SizeBytes   int64       `json:"sizeBytes"`
	Ready       bool        `json:"ready"`
	ConfirmText string      `json:"confirmText"`
	Issues      []Issue     `json:"issues"`
	TablePlans  []TablePlan `json:"tablePlans"`
	Summary     PlanSummary `json:"summary"`
}

// validatedArchive is the outcome of the fatal-error validation steps:
// parse, structure, checksum recomputation, scope and source-checksum
// comparison.
type validatedArchive struct {
	archive   *Archive
	def       *ScopeDefinition
	checksum  string
	sizeBytes int64
}

// validateArchive runs the ordered fatal validation steps. Issue-level
// analysis (missing keys, referential integrity) happens afterwards so a
// full defect list comes back in one pass.
func validateArchive(content []byte, expectedScope Scope, expectedChecksum string) (*validatedArchive, error) {
	archive, err := ParseArchive(content)
	if err != nil {
		return nil, err
	}

	checksum, err := Checksum(archive.Meta.Scope, archive.Data)
	if err != nil {
		return nil, fmt.Errorf("recomputing checksum: %w", err)
	}
	if checksum != archive.Meta.Checksum {
		return nil, fmt.Errorf("%w (recorded %s, computed %s)", ErrChecksumMismatch, archive.Meta.Checksum, checksum)
	}

	if expectedScope != "" && archive.Meta.Scope != expectedScope {
		return nil, fmt.Errorf("%w: archive is %q, expected %q", ErrScopeMismatch, archive.Meta.Scope, expectedScope)
	}

	if expectedChecksum != "" && checksum != expectedChecksum {
		return nil, fmt.Errorf("%w: source expected %s, archive is %s", ErrChecksumMismatch, expectedChecksum, checksum)
	}

	return &validatedArchive{
		archive:   archive,
		def:       Definition(archive.Meta.Scope),
		checksum:  checksum,
		sizeBytes: int64(len(content)),
	}, nil
}

// missingKeyIssues reports one error per catalog-required data key the
// archive lacks. Collected, never short-circuited.
func (d *ScopeDefinition) missingKeyIssues(data Dataset) []Issue {
	var issues []Issue
	for _, key := range d.DataKeys() {
		if _, ok := data[key]; !ok {
			issues = append(issues, Issue{
				Level:   IssueError,
				Code:    "MISSING_DATA_KEY",
				Message: fmt.Sprintf("archive is missing required data key %q", key),
			})
		}
	}
	return issues
}

// analyzeRefs runs the scope's referential-integrity rules against the
// archive and the target database. A reference is satisfied when the
// target row exists in the archive's own data or already in the database.
// Every dangling reference becomes one error issue; nothing short-circuits.
func (d *ScopeDefinition) analyzeRefs(ctx context.Context, db Database, data Dataset) ([]Issue, error) {
	var issues []Issue

	archiveSets := make(map[string]map[string]struct{})
	identitySet := func(refKey, refField string) map[string]struct{} {
		cacheKey := refKey + "\x00" + refField
		if set, ok := archiveSets[cacheKey]; ok {
			return set
		}
		set := make(map[string]struct{}, len(data[refKey]))
		for _, row := range data[refKey] {
			if k, ok := identityKey(row[refField]); ok {
				set[k] = struct{}{}
			}
		}
		archiveSets[cacheKey] = set
		return set
	}

	dbHits := make(map[string]bool)

	for _, rule := range d.Refs {
		var set map[string]struct{}
		if rule.RefKey != "" {
			set = identitySet(rule.RefKey, rule.RefField)
		}

		for _, row := range data[rule.DataKey] {
			if rule.When != nil && !rule.When(row) {
				continue
			}
			v := row[rule.Field]
			if v == nil {
				continue
			}
			key, ok := identityKey(v)
			if !ok {
				continue
			}
			if set != nil {
				if _, found := set[key]; found {
					continue
				}
			}

			cacheKey := rule.RefTable + "." + rule.RefColumn + "=" + key
			exists, cached := dbHits[cacheKey]
			if !cached {
				var err error
				exists, err = db.HasRow(ctx, rule.RefTable, rule.RefColumn, queryValue(v))
				if err != nil {
					return nil, fmt.Errorf("checking %s.%s reference: %w", rule.RefTable, rule.RefColumn, err)
				}
				dbHits[cacheKey] = exists
			}
			if exists {
				continue
			}

			issues = append(issues, Issue{
				Level: IssueError,
				Code:  rule.Code,
				Message: fmt.Sprintf("%s.%s=%v references a row missing from both the archive and %s.%s",
					rule.DataKey, rule.Field, v, rule.RefTable, rule.RefColumn),
			})
		}
	}
	return issues, nil
}

// plan builds one TablePlan per physical table. Apply is always a full
// replace, so toDelete equals the live count and toInsert the incoming
// count. Live counts are read concurrently.
func (d *ScopeDefinition) plan(ctx context.Context, db Database, data Dataset) ([]TablePlan, PlanSummary, error) {
	type entry struct {
		table   string
		dataKey string
	}
	entries := make([]entry, 0, len(d.Tables)+len(d.Links))
	for _, t := range d.Tables {
		entries = append(entries, entry{t.Table, t.DataKey})
	}
	for _, l := range d.Links {
		entries = append(entries, entry{l.Table, l.DataKey})
	}

	plans := make([]TablePlan, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			current, err := db.CountRows(ctx, e.table)
			if err != nil {
				return fmt.Errorf("counting %s: %w", e.table, err)
			}
			incoming := int64(len(data[e.dataKey]))
			plans[i] = TablePlan{
				Table:    e.table,
				Current:  current,
				Incoming: incoming,
				ToDelete: current,
				ToInsert: incoming,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, PlanSummary{}, err
	}

	var summary PlanSummary
	for _, p := range plans {
		summary.CurrentRows += p.Current
		summary.IncomingRows += p.Incoming
		summary.RowsToDelete += p.ToDelete
		summary.RowsToInsert += p.ToInsert
	}
	return plans, summary, nil
}

// discardWarnings flags tables whose existing rows a full replace would
// drop without the archive re-populating anything.
func discardWarnings(plans []TablePlan) []Issue {
	var issues []Issue
	for _, p := range plans {
		if p.Current > 0 && p.Incoming == 0 {
			issues = append(issues, Issue{
				Level:   IssueWarning,
				Code:    "DATA_DISCARDED",
				Message: fmt.Sprintf("%d existing rows in %s will be discarded and not re-populated by this archive", p.Current, p.Table),
			})
		}
	}
	return issues
}

// identityKey renders an identity value into a canonical comparable form so
// that archive-side values (json.Number after decode) and database-side
// values (int64, string) collide correctly.
func identityKey(v any) (string, bool) {
	switch val := Normalize(v).(type) {
	case nil:
		return "", false
	case string:
		return "s:" + val, true
	case int64:
		return "n:" + strconv.FormatInt(val, 10), true
	case json.Number:
		return "n:" + val.String(), true
	case float64:
		return "n:" + strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return "b:" + strconv.FormatBool(val), true
	default:
		return fmt.Sprintf("v:%v", val), true
	}
}

// queryValue converts an archive value into something database drivers
// compare natively (json.Number carries no type information over the wire).
func queryValue(v any) any {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return v
}
