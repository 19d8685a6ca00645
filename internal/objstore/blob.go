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
	"strings"
	"time"

	"sback-go/internal/engine"
)

// blobTokenTTL is how long a client upload token stays valid.
const blobTokenTTL = 15 * time.Minute

// BlobStore stores archives with a managed blob provider behind a simple
// HTTP API. Client uploads receive a token scoped to one pathname, signed
// with the account secret so the provider can verify it without a
// round trip.
type BlobStore struct {
	name        string
	endpoint    string
	secret      string
	maxFileSize int64
	httpClient  *http.Client
	now         func() time.Time
}

// BlobOptions configures a BlobStore.
type BlobOptions struct {
	Name        string
	Endpoint    string
	Secret      string
	MaxFileSize int64
}

// NewBlobStore creates a store backed by a managed blob provider.
func NewBlobStore(opts BlobOptions) (*BlobStore, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("blob storage requires blob_endpoint to be set")
	}
	if opts.Secret == "" {
		return nil, fmt.Errorf("blob storage requires blob_secret to be set")
	}
	return &BlobStore{
		name:        opts.Name,
		endpoint:    strings.TrimSuffix(opts.Endpoint, "/"),
		secret:      opts.Secret,
		maxFileSize: opts.MaxFileSize,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		now:         time.Now,
	}, nil
}

func (b *BlobStore) ProviderID() string   { return "blob" }
func (b *BlobStore) ProviderName() string { return b.name }

func (b *BlobStore) MaxFileSize() int64 { return b.maxFileSize }

// Put uploads the content server-side and returns the object's public URL.
func (b *BlobStore) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.endpoint+"/"+escapeKey(key), bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.secret)
	req.Header.Set("Content-Type", contentType)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("uploading %s: provider returned %d: %s", key, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return b.objectURL(key), nil
}

// InitClientUpload issues a token the client presents to the provider when
// uploading directly. The token binds the pathname, size cap, and expiry.
func (b *BlobStore) InitClientUpload(ctx context.Context, key string, size int64, contentType string) (*engine.ClientUpload, error) {
	expires := b.now().Add(blobTokenTTL).Unix()
	payload := fmt.Sprintf("%s:%d:%d", key, size, expires)

	mac := hmac.New(sha256.New, []byte(b.secret))
	mac.Write([]byte(payload))
	sig := hex.EncodeToString(mac.Sum(nil))

	token := base64.RawURLEncoding.EncodeToString([]byte(payload + ":" + sig))

	return &engine.ClientUpload{
		Strategy:        engine.UploadClientBlob,
		BlobPathname:    key,
		BlobClientToken: token,
		SourceURL:       b.objectURL(key),
	}, nil
}

func (b *BlobStore) objectURL(key string) string {
	return b.endpoint + "/" + escapeKey(key)
}

// Compile-time check that BlobStore implements the ObjectStore interface
var _ engine.ObjectStore = (*BlobStore)(nil)
