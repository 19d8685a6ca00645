package objstore

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sback-go/internal/engine"
)

func newTestBlobStore(t *testing.T, endpoint string) *BlobStore {
	t.Helper()
	store, err := NewBlobStore(BlobOptions{
		Name:     "blob-test",
		Endpoint: endpoint,
		Secret:   "test-secret",
	})
	if err != nil {
		t.Fatalf("NewBlobStore() error = %v", err)
	}
	return store
}

func TestNewBlobStore_RequiresConfig(t *testing.T) {
	if _, err := NewBlobStore(BlobOptions{Secret: "s"}); err == nil {
		t.Error("NewBlobStore() without endpoint expected error")
	}
	if _, err := NewBlobStore(BlobOptions{Endpoint: "https://blob.test"}); err == nil {
		t.Error("NewBlobStore() without secret expected error")
	}
}

func TestBlobStore_Put(t *testing.T) {
	var gotPath, gotAuth, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	store := newTestBlobStore(t, srv.URL)
	url, err := store.Put(context.Background(), "backups/2024/06/core.json", []byte(`{"x":1}`), "application/json")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if gotPath != "/backups/2024/06/core.json" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotAuth != "Bearer test-secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if !bytes.Equal(gotBody, []byte(`{"x":1}`)) {
		t.Errorf("body = %q", gotBody)
	}
	if want := srv.URL + "/backups/2024/06/core.json"; url != want {
		t.Errorf("Put() url = %q, want %q", url, want)
	}
}

func TestBlobStore_Put_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	store := newTestBlobStore(t, srv.URL)
	_, err := store.Put(context.Background(), "a.json", []byte("x"), "application/json")
	if err == nil {
		t.Fatal("Put() expected error on 403")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error should carry status and body, got: %v", err)
	}
}

func TestBlobStore_InitClientUpload(t *testing.T) {
	store := newTestBlobStore(t, "https://blob.test")
	fixed := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	cu, err := store.InitClientUpload(context.Background(), "restore/abc/file.json", 2048, "application/json")
	if err != nil {
		t.Fatalf("InitClientUpload() error = %v", err)
	}

	if cu.Strategy != engine.UploadClientBlob {
		t.Fatalf("Strategy = %q, want CLIENT_BLOB", cu.Strategy)
	}
	if cu.BlobPathname != "restore/abc/file.json" {
		t.Errorf("BlobPathname = %q", cu.BlobPathname)
	}
	if cu.SourceURL != "https://blob.test/restore/abc/file.json" {
		t.Errorf("SourceURL = %q", cu.SourceURL)
	}

	// The token is verifiable with the shared secret and binds the
	// pathname, size, and expiry.
	raw, err := base64.RawURLEncoding.DecodeString(cu.BlobClientToken)
	if err != nil {
		t.Fatalf("token is not base64url: %v", err)
	}
	idx := bytes.LastIndexByte(raw, ':')
	if idx < 0 {
		t.Fatalf("token payload = %q, want trailing signature", raw)
	}
	payload, sig := string(raw[:idx]), string(raw[idx+1:])

	wantExpiry := fixed.Add(15 * time.Minute).Unix()
	wantPayload := fmt.Sprintf("restore/abc/file.json:2048:%d", wantExpiry)
	if payload != wantPayload {
		t.Errorf("token payload = %q, want %q", payload, wantPayload)
	}

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(payload))
	if want := hex.EncodeToString(mac.Sum(nil)); sig != want {
		t.Errorf("token signature = %q, want %q", sig, want)
	}
}
