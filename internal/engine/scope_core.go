package engine

// core: site identities and settings. Incoming guest messages reference
// their sender; senders must resolve inside the archive or in the target
// database.
var coreScope = &ScopeDefinition{
	Scope:       ScopeCore,
	Label:       "Core identities & settings",
	Description: "User accounts, incoming messages, and site options.",
	Tables: []TableSpec{
		{DataKey: "users", Table: "users", IDField: "uid", IDColumn: "uid"},
		{DataKey: "messages", Table: "messages", IDField: "id", IDColumn: "id"},
		{DataKey: "options", Table: "site_options", IDField: "id", IDColumn: "id"},
	},
	Sequences: []SequenceTarget{
		{Table: "users", Column: "uid"},
		{Table: "messages", Column: "id"},
		{Table: "site_options", Column: "id"},
	},
	Refs: []RefRule{
		{
			DataKey: "messages", Field: "senderUid",
			RefKey: "users", RefField: "uid",
			RefTable: "users", RefColumn: "uid",
			Code: "MISSING_USER_REF",
		},
	},
}
