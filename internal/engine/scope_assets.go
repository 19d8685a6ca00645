package engine

// assets: storage providers, uploaded media, and galleries. Gallery↔media
// is flattened into {galleryId, mediaId} link rows.
var assetsScope = &ScopeDefinition{
	Scope:       ScopeAssets,
	Label:       "Storage providers & media",
	Description: "Object-storage provider records, uploaded media, and galleries.",
	DependsOn:   []Scope{ScopeCore, ScopeContent},
	Tables: []TableSpec{
		{DataKey: "providers", Table: "storage_providers", IDField: "id", IDColumn: "id"},
		{DataKey: "media", Table: "media", IDField: "id", IDColumn: "id"},
		{DataKey: "galleries", Table: "galleries", IDField: "id", IDColumn: "id"},
	},
	Links: []LinkSpec{
		{
			DataKey: "galleryMedia", Table: "gallery_media",
			ParentField: "galleryId", ChildField: "mediaId",
			ParentColumn: "gallery_id", ChildColumn: "media_id",
		},
	},
	Sequences: []SequenceTarget{
		{Table: "media", Column: "id"},
		{Table: "galleries", Column: "id"},
	},
	Refs: []RefRule{
		{
			DataKey: "media", Field: "providerId",
			RefKey: "providers", RefField: "id",
			RefTable: "storage_providers", RefColumn: "id",
			Code: "MISSING_PROVIDER_REF",
		},
		{
			DataKey: "media", Field: "uploaderUid",
			RefTable: "users", RefColumn: "uid",
			Code: "MISSING_USER_REF",
		},
		{
			DataKey: "galleryMedia", Field: "galleryId",
			RefKey: "galleries", RefField: "id",
			RefTable: "galleries", RefColumn: "id",
			Code: "MISSING_GALLERY_REF",
		},
		{
			DataKey: "galleryMedia", Field: "mediaId",
			RefKey: "media", RefField: "id",
			RefTable: "media", RefColumn: "id",
			Code: "MISSING_MEDIA_REF",
		},
	},
}
