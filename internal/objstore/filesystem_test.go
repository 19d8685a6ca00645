package objstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sback-go/internal/engine"
)

func TestFileSystemStore_Put(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileSystemStore("local", root, 0)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	url, err := store.Put(context.Background(), "backups/2024/06/core.json", []byte(`{"x":1}`), "application/json")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	path := filepath.Join(root, "backups", "2024", "06", "core.json")
	if url != "file://"+path {
		t.Errorf("Put() url = %q, want file://%s", url, path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading stored object: %v", err)
	}
	if string(content) != `{"x":1}` {
		t.Errorf("stored content = %q", content)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestFileSystemStore_Put_Overwrite(t *testing.T) {
	store, err := NewFileSystemStore("local", t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Put(ctx, "a.json", []byte("first"), "application/json"); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}
	url, err := store.Put(ctx, "a.json", []byte("second"), "application/json")
	if err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	content, err := os.ReadFile(strings.TrimPrefix(url, "file://"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "second" {
		t.Errorf("stored content = %q, want overwrite", content)
	}
}

func TestFileSystemStore_Put_RejectsTraversal(t *testing.T) {
	store, err := NewFileSystemStore("local", t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{
		"../outside.json",
		"a/../../outside.json",
		"/etc/passwd",
		".",
		"",
	} {
		if _, err := store.Put(ctx, key, []byte("x"), "application/json"); err == nil {
			t.Errorf("Put(%q) expected error", key)
		}
	}
}

func TestFileSystemStore_InitClientUpload(t *testing.T) {
	store, err := NewFileSystemStore("local", t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	cu, err := store.InitClientUpload(context.Background(), "a.json", 10, "application/json")
	if err != nil {
		t.Fatalf("InitClientUpload() error = %v", err)
	}
	if cu.Strategy != engine.UploadUnsupported {
		t.Errorf("Strategy = %q, want UNSUPPORTED", cu.Strategy)
	}
	if cu.Message == "" {
		t.Error("unsupported result should carry an explanation")
	}
}

func TestNewFileSystemStore_RequiresRoot(t *testing.T) {
	if _, err := NewFileSystemStore("local", "", 0); err == nil {
		t.Error("NewFileSystemStore() with empty root expected error")
	}
}
