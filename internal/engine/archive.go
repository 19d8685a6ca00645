package engine

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// SchemaVersion is the archive format version. Parsing rejects any other.
const SchemaVersion = 1

// ArchiveMeta is the self-describing header of an archive.
type ArchiveMeta struct {
	SchemaVersion int    `json:"schemaVersion"`
	Scope         Scope  `json:"scope"`
	ExportedAt    string `json:"exportedAt"`
	FileName      string `json:"fileName"`
	Checksum      string `json:"checksum"`
}

// Archive is the unit produced by export and consumed by import.
// Invariant: Meta.Checksum == Checksum(Meta.Scope, Data).
type Archive struct {
	Meta ArchiveMeta `json:"meta"`
	Data Dataset     `json:"data"`
}

// BuiltArchive is a freshly built archive plus its serialized form.
type BuiltArchive struct {
	Archive   *Archive
	Content   []byte
	FileName  string
	SizeBytes int64
	Checksum  string
}

// BuildArchive wraps exported data with metadata, computes the content
// hash, derives the file name from scope and timestamp, and serializes the
// whole unit. No side effects.
func BuildArchive(scope Scope, data Dataset, now time.Time) (*BuiltArchive, error) {
	data = NormalizeDataset(data)

	checksum, err := Checksum(scope, data)
	if err != nil {
		return nil, fmt.Errorf("computing archive checksum: %w", err)
	}

	fileName := fmt.Sprintf("%s-backup-%s", scope, now.UTC().Format("20060102-150405"))

	archive := &Archive{
		Meta: ArchiveMeta{
			SchemaVersion: SchemaVersion,
			Scope:         scope,
			ExportedAt:    now.UTC().Format(time.RFC3339Nano),
			FileName:      fileName,
			Checksum:      checksum,
		},
		Data: data,
	}

	content, err := json.Marshal(archive)
	if err != nil {
		return nil, fmt.Errorf("serializing archive: %w", err)
	}

	return &BuiltArchive{
		Archive:   archive,
		Content:   content,
		FileName:  fileName,
		SizeBytes: int64(len(content)),
		Checksum:  checksum,
	}, nil
}

// ParseArchive decodes loaded bytes into an Archive, distinguishing
// unparseable payloads (ErrInvalidFormat) from parseable ones that are not
// shaped like an archive (ErrInvalidStructure). Numbers are decoded as
// json.Number so checksum recomputation sees the exact wire form.
func ParseArchive(content []byte) (*Archive, error) {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	var archive Archive
	dec = json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	if err := dec.Decode(&archive); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	if err := archive.validateStructure(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	return &archive, nil
}

func (a *Archive) validateStructure() error {
	if a.Meta.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema version %d (want %d)", a.Meta.SchemaVersion, SchemaVersion)
	}
	if a.Meta.Scope == "" {
		return errors.New("meta.scope is missing")
	}
	if _, ok := catalog[a.Meta.Scope]; !ok {
		return fmt.Errorf("meta.scope %q is not a known scope", a.Meta.Scope)
	}
	if a.Meta.ExportedAt == "" {
		return errors.New("meta.exportedAt is missing")
	}
	if a.Meta.FileName == "" {
		return errors.New("meta.fileName is missing")
	}
	if a.Meta.Checksum == "" {
		return errors.New("meta.checksum is missing")
	}
	if a.Data == nil {
		return errors.New("data section is missing")
	}
	return nil
}
