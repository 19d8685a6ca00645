package engine

import "fmt"

// Scope is a named, independently exportable/importable partition of the
// dataset.
type Scope string

const (
	ScopeCore      Scope = "core"
	ScopeContent   Scope = "content"
	ScopeAssets    Scope = "assets"
	ScopeAnalytics Scope = "analytics"
	ScopeOps       Scope = "ops"
)

// TableSpec binds an archive data key to a physical table. Specs are listed
// parent-before-child; the applier deletes in reverse order and inserts in
// declared order.
type TableSpec struct {
	DataKey  string
	Table    string
	IDField  string // identity field in archive rows ("uid", "id", "slug")
	IDColumn string
}

// LinkSpec describes a many-to-many link table exported as flattened
// two-field rows. Parent rows are exported without the relation attached;
// the applier reconstructs the full child list per parent.
type LinkSpec struct {
	DataKey      string
	Table        string
	ParentField  string
	ChildField   string
	ParentColumn string
	ChildColumn  string
}

// SequenceTarget names an auto-increment sequence the scope owns. These are
// read-repaired after replace, never exported as data.
type SequenceTarget struct {
	Table  string
	Column string
}

// RefRule declares a foreign-key-shaped field the dry-run planner checks.
// A reference is satisfied when the target exists in the archive's own data
// (RefKey/RefField) or already in the target database (RefTable/RefColumn).
// RefKey is empty for cross-scope references, which an archive of this
// scope can never carry.
type RefRule struct {
	DataKey   string
	Field     string
	RefKey    string
	RefField  string
	RefTable  string
	RefColumn string
	Code      string
	When      func(Row) bool
}

// ScopeDefinition is one catalog entry: the scope's label, advisory
// dependency list, and everything the generic exporter/planner/applier
// need to operate on it.
type ScopeDefinition struct {
	Scope       Scope
	Label       string
	Description string
	DependsOn   []Scope
	Tables      []TableSpec
	Links       []LinkSpec
	Sequences   []SequenceTarget
	Refs        []RefRule
}

// DataKeys enumerates every row-group name an archive of this scope must
// contain to be structurally complete.
func (d *ScopeDefinition) DataKeys() []string {
	keys := make([]string, 0, len(d.Tables)+len(d.Links))
	for _, t := range d.Tables {
		keys = append(keys, t.DataKey)
	}
	for _, l := range d.Links {
		keys = append(keys, l.DataKey)
	}
	return keys
}

// TableNames lists every physical table the scope owns, entity tables first.
func (d *ScopeDefinition) TableNames() []string {
	names := make([]string, 0, len(d.Tables)+len(d.Links))
	for _, t := range d.Tables {
		names = append(names, t.Table)
	}
	for _, l := range d.Links {
		names = append(names, l.Table)
	}
	return names
}

// catalog is the immutable, process-wide scope registry. DependsOn is
// advisory metadata for operators; import validates referential integrity
// directly against the target database instead of trusting it.
var catalog = map[Scope]*ScopeDefinition{
	ScopeCore:      coreScope,
	ScopeContent:   contentScope,
	ScopeAssets:    assetsScope,
	ScopeAnalytics: analyticsScope,
	ScopeOps:       opsScope,
}

// scopeOrder is the stable listing order for operator surfaces.
var scopeOrder = []Scope{ScopeCore, ScopeContent, ScopeAssets, ScopeAnalytics, ScopeOps}

// AllScopes returns every defined scope in stable order.
func AllScopes() []Scope {
	out := make([]Scope, len(scopeOrder))
	copy(out, scopeOrder)
	return out
}

// Definition returns the catalog entry for a scope. Requesting an undefined
// scope is a programming error and panics.
func Definition(scope Scope) *ScopeDefinition {
	def, ok := catalog[scope]
	if !ok {
		panic(fmt.Sprintf("undefined backup scope: %q", scope))
	}
	return def
}

// ParseScope validates an operator-supplied scope name.
func ParseScope(name string) (Scope, error) {
	s := Scope(name)
	if _, ok := catalog[s]; !ok {
		return "", fmt.Errorf("unknown scope %q (valid: core, content, assets, analytics, ops)", name)
	}
	return s, nil
}
