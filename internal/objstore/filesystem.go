package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sback-go/internal/engine"
)

// FileSystemStore keeps archives in a local directory tree mirroring the
// object keys. It cannot accept client-side uploads; InitClientUpload
// reports the UNSUPPORTED strategy.
type FileSystemStore struct {
	name        string
	root        string
	maxFileSize int64
}

// NewFileSystemStore creates a filesystem store rooted at the given path.
func NewFileSystemStore(name, root string, maxFileSize int64) (*FileSystemStore, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem storage requires fs_root to be set")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FileSystemStore{name: name, root: root, maxFileSize: maxFileSize}, nil
}

func (f *FileSystemStore) ProviderID() string   { return "filesystem" }
func (f *FileSystemStore) ProviderName() string { return f.name }

func (f *FileSystemStore) MaxFileSize() int64 { return f.maxFileSize }

// Put writes the content under the key's path using atomic write (temp file + rename).
func (f *FileSystemStore) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	destPath, err := f.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, bytes.NewReader(content)); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return "file://" + destPath, nil
}

// InitClientUpload reports that client-side uploads are not available.
func (f *FileSystemStore) InitClientUpload(ctx context.Context, key string, size int64, contentType string) (*engine.ClientUpload, error) {
	return &engine.ClientUpload{
		Strategy: engine.UploadUnsupported,
		Message:  "filesystem storage does not support client-side uploads",
	}, nil
}

// resolve maps a key to a path under the root, rejecting traversal.
func (f *FileSystemStore) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key: %s", key)
	}
	return filepath.Join(f.root, clean), nil
}

// Compile-time check that FileSystemStore implements the ObjectStore interface
var _ engine.ObjectStore = (*FileSystemStore)(nil)
