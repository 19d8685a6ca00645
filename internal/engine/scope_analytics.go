package engine

// analytics: view counters and raw access logs. Counters reference the
// content they count only when ref_type is "post".
var analyticsScope = &ScopeDefinition{
	Scope:       ScopeAnalytics,
	Label:       "View counters & access logs",
	Description: "Per-entity view counters and request access logs.",
	DependsOn:   []Scope{ScopeCore, ScopeContent},
	Tables: []TableSpec{
		{DataKey: "viewCounters", Table: "view_counters", IDField: "id", IDColumn: "id"},
		{DataKey: "accessLogs", Table: "access_logs", IDField: "id", IDColumn: "id"},
	},
	Sequences: []SequenceTarget{
		{Table: "view_counters", Column: "id"},
		{Table: "access_logs", Column: "id"},
	},
	Refs: []RefRule{
		{
			DataKey: "viewCounters", Field: "refId",
			RefTable: "posts", RefColumn: "id",
			Code: "MISSING_POST_REF",
			When: func(r Row) bool { return r["refType"] == "post" },
		},
	},
}
