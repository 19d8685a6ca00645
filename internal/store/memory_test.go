package store

import (
	"context"
	"testing"

	"github.com/goccy/go-json"

	"sback-go/internal/engine"
)

func TestMemoryStore_ReadRows(t *testing.T) {
	db := NewMemoryStore()
	db.Seed("users", "uid",
		map[string]any{"uid": 3, "username": "carol", "display_name": "Carol"},
		map[string]any{"uid": 1, "username": "alice", "display_name": "Alice"},
		map[string]any{"uid": 2, "username": "bob", "display_name": "Bob"},
	)

	rows, err := db.ReadRows(context.Background(), "users", []string{"uid"})
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("ReadRows() = %d rows, want 3", len(rows))
	}
	for i, want := range []int64{1, 2, 3} {
		got, ok := toInt64(rows[i]["uid"])
		if !ok || got != want {
			t.Errorf("rows[%d].uid = %v, want %d", i, rows[i]["uid"], want)
		}
	}
	// Physical snake_case columns come back in archive field form.
	if _, ok := rows[0]["displayName"]; !ok {
		t.Errorf("rows[0] = %v, want displayName field", rows[0])
	}
	if _, ok := rows[0]["display_name"]; ok {
		t.Error("physical column name display_name leaked through ReadRows")
	}
}

func TestMemoryStore_ReadRows_MissingTable(t *testing.T) {
	db := NewMemoryStore()
	rows, err := db.ReadRows(context.Background(), "never_seeded", nil)
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("ReadRows() on missing table = %d rows, want 0", len(rows))
	}
}

func TestMemoryStore_CountRows(t *testing.T) {
	db := NewMemoryStore()
	db.Seed("tags", "slug",
		map[string]any{"slug": "go"},
		map[string]any{"slug": "sql"},
	)

	n, err := db.CountRows(context.Background(), "tags")
	if err != nil {
		t.Fatalf("CountRows() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountRows() = %d, want 2", n)
	}
}

func TestMemoryStore_HasRow(t *testing.T) {
	db := NewMemoryStore()
	db.Seed("users", "uid", map[string]any{"uid": 5, "username": "alice"})
	ctx := context.Background()

	tests := []struct {
		name   string
		column string
		value  any
		want   bool
	}{
		{"same type", "uid", 5, true},
		{"int64 matches int", "uid", int64(5), true},
		{"json number matches int", "uid", json.Number("5"), true},
		{"float matches int", "uid", float64(5), true},
		{"string form does not match number", "uid", "5", false},
		{"absent value", "uid", 6, false},
		{"string column", "username", "alice", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.HasRow(ctx, "users", tt.column, tt.value)
			if err != nil {
				t.Fatalf("HasRow() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("HasRow(%s, %v) = %v, want %v", tt.column, tt.value, got, tt.want)
			}
		})
	}
}

func TestMemoryStore_TxCommit(t *testing.T) {
	db := NewMemoryStore()
	db.Seed("users", "uid", map[string]any{"uid": 1, "username": "old"})
	ctx := context.Background()

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	deleted, err := tx.DeleteAll(ctx, "users")
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteAll() = %d, want 1", deleted)
	}

	inserted, err := tx.InsertRows(ctx, "users", []engine.Row{
		{"uid": 2, "username": "new"},
	})
	if err != nil {
		t.Fatalf("InsertRows() error = %v", err)
	}
	if inserted != 1 {
		t.Errorf("InsertRows() = %d, want 1", inserted)
	}

	// Uncommitted changes are invisible to the parent store.
	if rows := db.Rows("users"); len(rows) != 1 || rows[0]["username"] != "old" {
		t.Errorf("store visible mid-transaction: %v", rows)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	rows := db.Rows("users")
	if len(rows) != 1 || rows[0]["username"] != "new" {
		t.Errorf("store after commit = %v, want the replacement row", rows)
	}
}

func TestMemoryStore_TxRollback(t *testing.T) {
	db := NewMemoryStore()
	db.Seed("users", "uid", map[string]any{"uid": 1, "username": "kept"})
	ctx := context.Background()

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if _, err := tx.DeleteAll(ctx, "users"); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	if rows := db.Rows("users"); len(rows) != 1 {
		t.Errorf("rollback lost the original rows: %v", rows)
	}

	// A finished transaction refuses further work.
	if _, err := tx.DeleteAll(ctx, "users"); err == nil {
		t.Error("DeleteAll() after rollback expected error")
	}
	if err := tx.Commit(ctx); err == nil {
		t.Error("Commit() after rollback expected error")
	}
}

func TestMemoryStore_TxInsertConvertsColumns(t *testing.T) {
	db := NewMemoryStore()
	ctx := context.Background()

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if _, err := tx.InsertRows(ctx, "messages", []engine.Row{
		{"id": 1, "senderUid": 7, "content": "hi"},
	}); err != nil {
		t.Fatalf("InsertRows() error = %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	rows := db.Rows("messages")
	if len(rows) != 1 {
		t.Fatalf("messages = %d rows, want 1", len(rows))
	}
	if _, ok := rows[0]["sender_uid"]; !ok {
		t.Errorf("stored row = %v, want physical column sender_uid", rows[0])
	}
}

func TestMemoryStore_TxReplaceLinks(t *testing.T) {
	db := NewMemoryStore()
	db.Seed("post_tags", "post_id",
		map[string]any{"post_id": 1, "tag_slug": "stale"},
		map[string]any{"post_id": 2, "tag_slug": "other"},
	)
	ctx := context.Background()

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := tx.ReplaceLinks(ctx, "post_tags", "post_id", 1, "tag_slug", []any{"go", "sql"}); err != nil {
		t.Fatalf("ReplaceLinks() error = %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	rows := db.Rows("post_tags")
	if len(rows) != 3 {
		t.Fatalf("post_tags = %d rows, want 3", len(rows))
	}
	got := make(map[string]bool)
	for _, row := range rows {
		if slug, ok := row["tag_slug"].(string); ok {
			got[slug] = true
		}
	}
	if got["stale"] || !got["go"] || !got["sql"] || !got["other"] {
		t.Errorf("link rows = %v, want post 1 relinked and post 2 untouched", rows)
	}
}

func TestMemoryStore_TxResetSequence(t *testing.T) {
	db := NewMemoryStore()
	ctx := context.Background()

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if _, err := tx.InsertRows(ctx, "users", []engine.Row{
		{"uid": json.Number("500"), "username": "zed"},
		{"uid": json.Number("3"), "username": "al"},
	}); err != nil {
		t.Fatalf("InsertRows() error = %v", err)
	}
	if err := tx.ResetSequence(ctx, "users", "uid"); err != nil {
		t.Fatalf("ResetSequence() error = %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if next := db.NextValue("users", "uid"); next != 501 {
		t.Errorf("NextValue() = %d, want 501", next)
	}

	t.Run("empty table restarts at one", func(t *testing.T) {
		tx, err := db.Begin(ctx)
		if err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		if _, err := tx.DeleteAll(ctx, "users"); err != nil {
			t.Fatalf("DeleteAll() error = %v", err)
		}
		if err := tx.ResetSequence(ctx, "users", "uid"); err != nil {
			t.Fatalf("ResetSequence() error = %v", err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if next := db.NextValue("users", "uid"); next != 1 {
			t.Errorf("NextValue() after emptying = %d, want 1", next)
		}
	})

	t.Run("rejects bad identifiers", func(t *testing.T) {
		tx, err := db.Begin(ctx)
		if err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		defer tx.Rollback(ctx)
		if err := tx.ResetSequence(ctx, "users; DROP TABLE users", "uid"); err == nil {
			t.Error("ResetSequence() with malformed table expected error")
		}
	})
}

func TestMemoryStore_SeedAdvancesSequence(t *testing.T) {
	db := NewMemoryStore()
	db.Seed("posts", "id",
		map[string]any{"id": 7},
		map[string]any{"id": 2},
	)
	if next := db.NextValue("posts", "id"); next != 8 {
		t.Errorf("NextValue() = %d, want 8", next)
	}
	if next := db.NextValue("posts", "id"); next != 9 {
		t.Errorf("second NextValue() = %d, want 9", next)
	}
}
