package engine

import "errors"

// Sentinel errors callers branch on. Everything else is wrapped context.
var (
	// ErrInvalidFormat means the payload could not be parsed as an archive.
	ErrInvalidFormat = errors.New("not a valid archive format")

	// ErrInvalidStructure means the payload parsed but is missing required
	// meta fields or its data section is not a mapping of row arrays.
	ErrInvalidStructure = errors.New("archive structure invalid")

	// ErrChecksumMismatch means the recomputed content hash does not match
	// the archive's recorded checksum: the file is corrupted or tampered.
	ErrChecksumMismatch = errors.New("checksum mismatch: file corrupted or tampered")

	// ErrScopeMismatch means the archive's scope differs from the one the
	// caller expected.
	ErrScopeMismatch = errors.New("archive scope mismatch")

	// ErrStaleChecksum means the checksum supplied on apply no longer
	// matches the freshly loaded archive; the dry-run result is stale.
	ErrStaleChecksum = errors.New("checksum changed since dry run: re-run validation")

	// ErrSizeExceeded means a remote payload grew past the import ceiling
	// mid-stream.
	ErrSizeExceeded = errors.New("payload exceeds size limit")

	// ErrConfirmation means the confirmation text did not match the
	// required phrase.
	ErrConfirmation = errors.New("confirmation text does not match")

	// ErrNotImportable means blocking validation issues are present.
	ErrNotImportable = errors.New("archive has blocking validation errors")

	// ErrNoObjectStore means no writable object-storage provider is
	// configured for the requested operation.
	ErrNoObjectStore = errors.New("no writable object-storage provider configured")
)
