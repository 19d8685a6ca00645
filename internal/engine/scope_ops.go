package engine

// ops: operational history. Audit entries name the operator that acted.
var opsScope = &ScopeDefinition{
	Scope:       ScopeOps,
	Label:       "Audit & task history",
	Description: "Audit log, cron run history, and health check records.",
	DependsOn:   []Scope{ScopeCore},
	Tables: []TableSpec{
		{DataKey: "auditLogs", Table: "audit_logs", IDField: "id", IDColumn: "id"},
		{DataKey: "cronRuns", Table: "cron_runs", IDField: "id", IDColumn: "id"},
		{DataKey: "healthChecks", Table: "health_checks", IDField: "id", IDColumn: "id"},
	},
	Sequences: []SequenceTarget{
		{Table: "audit_logs", Column: "id"},
		{Table: "cron_runs", Column: "id"},
		{Table: "health_checks", Column: "id"},
	},
	Refs: []RefRule{
		{
			DataKey: "auditLogs", Field: "operatorUid",
			RefTable: "users", RefColumn: "uid",
			Code: "MISSING_USER_REF",
		},
	},
}
