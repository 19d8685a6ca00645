package engine

import "context"

// UploadStrategy identifies how a client-side direct upload is performed.
type UploadStrategy string

const (
	// UploadClientS3 hands the client a short-lived presigned PUT URL.
	UploadClientS3 UploadStrategy = "CLIENT_S3"
	// UploadClientBlob hands the client a scoped upload token for a
	// managed blob provider.
	UploadClientBlob UploadStrategy = "CLIENT_BLOB"
	// UploadUnsupported means the active provider cannot accept
	// client-side uploads; the caller must switch providers.
	UploadUnsupported UploadStrategy = "UNSUPPORTED"
)

// ClientUpload describes how a client should upload a file directly to the
// active object-storage provider. Exactly one strategy's fields are set.
type ClientUpload struct {
	Strategy UploadStrategy

	// CLIENT_S3
	UploadURL     string
	UploadMethod  string
	UploadHeaders map[string]string

	// CLIENT_BLOB
	BlobPathname    string
	BlobClientToken string

	// SourceURL is where the object will be readable after the upload.
	SourceURL string

	// Message explains an UNSUPPORTED result.
	Message string
}

// ObjectStore is the object-storage port for archive delivery. A provider
// is addressed by key; the engine derives keys, providers derive URLs.
type ObjectStore interface {
	ProviderID() string
	ProviderName() string

	// MaxFileSize returns the provider's upload size cap in bytes,
	// or 0 when the provider imposes none.
	MaxFileSize() int64

	// Put performs a server-mediated upload and returns the object's
	// public URL.
	Put(ctx context.Context, key string, content []byte, contentType string) (string, error)

	// InitClientUpload prepares a client-side direct upload of the given
	// size to the given key. Providers that cannot support one return a
	// ClientUpload with the UNSUPPORTED strategy, not an error.
	InitClientUpload(ctx context.Context, key string, size int64, contentType string) (*ClientUpload, error)
}
