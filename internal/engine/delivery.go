package engine

import "fmt"

// Size thresholds. These are fixed and must agree across the export and
// import paths.
const (
	// DirectLimit is the largest payload returned inline.
	DirectLimit = 4 << 20

	// OSSImportLimit is the hard ceiling for archives fetched from object
	// storage on import.
	OSSImportLimit = 64 << 20

	// ClientUploadCap bounds client-side direct uploads regardless of
	// provider limits.
	ClientUploadCap = 64 << 20
)

// ConfirmPhrase must be supplied verbatim before an import applies.
// It is not localizable.
const ConfirmPhrase = "CONFIRM RESTORE"

const archiveContentType = "application/json"

// DeliveryMode selects how an export is returned.
type DeliveryMode string

const (
	// ModeDirect returns the payload inline, size permitting.
	ModeDirect DeliveryMode = "DIRECT"
	// ModeOSS uploads to the configured writable object-storage provider.
	ModeOSS DeliveryMode = "OSS"
	// ModeOSSRequired is the soft rejection of a DIRECT request whose
	// payload is over the inline limit. Retry with OSS mode.
	ModeOSSRequired DeliveryMode = "OSS_REQUIRED"
)

// ParseDeliveryMode validates an operator-supplied mode name.
func ParseDeliveryMode(name string) (DeliveryMode, error) {
	switch DeliveryMode(name) {
	case ModeDirect, ModeOSS:
		return DeliveryMode(name), nil
	default:
		return "", fmt.Errorf("unknown delivery mode %q (valid: DIRECT, OSS)", name)
	}
}

// ExportResult is the outcome of an export. Mode determines which fields
// are populated.
type ExportResult struct {
	Mode     DeliveryMode `json:"mode"`
	FileName string       `json:"fileName,omitempty"`

	// DIRECT
	Content []byte `json:"content,omitempty"`

	// OSS
	URL          string `json:"url,omitempty"`
	Key          string `json:"key,omitempty"`
	ProviderID   string `json:"providerId,omitempty"`
	ProviderName string `json:"providerName,omitempty"`

	Checksum  string `json:"checksum,omitempty"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`

	// OSS_REQUIRED
	LimitBytes int64  `json:"limitBytes,omitempty"`
	Message    string `json:"message,omitempty"`
}

// UploadInitResult describes how the client should upload a restore file.
// Strategy determines which fields are populated.
type UploadInitResult struct {
	Strategy UploadStrategy `json:"strategy"`

	// CLIENT_S3
	UploadURL     string            `json:"uploadUrl,omitempty"`
	UploadMethod  string            `json:"uploadMethod,omitempty"`
	UploadHeaders map[string]string `json:"uploadHeaders,omitempty"`

	// CLIENT_BLOB
	BlobPathname    string `json:"blobPathname,omitempty"`
	BlobClientToken string `json:"blobClientToken,omitempty"`

	Key               string `json:"key,omitempty"`
	SourceURL         string `json:"sourceUrl,omitempty"`
	StorageProviderID string `json:"storageProviderId,omitempty"`

	// UNSUPPORTED
	Message string `json:"message,omitempty"`
}
