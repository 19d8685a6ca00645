package engine

// content: the published surface of the site. Post↔tag is the one
// many-to-many here, exported as flattened {postId, tagSlug} link rows so
// the applier can rebuild the relation independent of insertion order.
var contentScope = &ScopeDefinition{
	Scope:       ScopeContent,
	Label:       "Posts, projects & interactions",
	Description: "Categories, tags, posts, projects, friend links, and comments.",
	DependsOn:   []Scope{ScopeCore},
	Tables: []TableSpec{
		{DataKey: "categories", Table: "categories", IDField: "id", IDColumn: "id"},
		{DataKey: "tags", Table: "tags", IDField: "slug", IDColumn: "slug"},
		{DataKey: "posts", Table: "posts", IDField: "id", IDColumn: "id"},
		{DataKey: "projects", Table: "projects", IDField: "id", IDColumn: "id"},
		{DataKey: "friendLinks", Table: "friend_links", IDField: "id", IDColumn: "id"},
		{DataKey: "comments", Table: "comments", IDField: "id", IDColumn: "id"},
	},
	Links: []LinkSpec{
		{
			DataKey: "postTags", Table: "post_tags",
			ParentField: "postId", ChildField: "tagSlug",
			ParentColumn: "post_id", ChildColumn: "tag_slug",
		},
	},
	Sequences: []SequenceTarget{
		{Table: "categories", Column: "id"},
		{Table: "posts", Column: "id"},
		{Table: "projects", Column: "id"},
		{Table: "friend_links", Column: "id"},
		{Table: "comments", Column: "id"},
	},
	Refs: []RefRule{
		{
			DataKey: "posts", Field: "categoryId",
			RefKey: "categories", RefField: "id",
			RefTable: "categories", RefColumn: "id",
			Code: "MISSING_CATEGORY_REF",
		},
		{
			DataKey: "posts", Field: "authorUid",
			RefTable: "users", RefColumn: "uid",
			Code: "MISSING_USER_REF",
		},
		{
			DataKey: "comments", Field: "postId",
			RefKey: "posts", RefField: "id",
			RefTable: "posts", RefColumn: "id",
			Code: "MISSING_POST_REF",
		},
		{
			DataKey: "comments", Field: "parentId",
			RefKey: "comments", RefField: "id",
			RefTable: "comments", RefColumn: "id",
			Code: "MISSING_PARENT_COMMENT_REF",
		},
		{
			DataKey: "comments", Field: "authorUid",
			RefTable: "users", RefColumn: "uid",
			Code: "MISSING_USER_REF",
		},
		{
			DataKey: "postTags", Field: "postId",
			RefKey: "posts", RefField: "id",
			RefTable: "posts", RefColumn: "id",
			Code: "MISSING_POST_REF",
		},
		{
			DataKey: "postTags", Field: "tagSlug",
			RefKey: "tags", RefField: "slug",
			RefTable: "tags", RefColumn: "slug",
			Code: "MISSING_TAG_REF",
		},
	},
}
