package engine

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"
	"time"
)

// ageMagic is the header every age-encrypted payload starts with.
const ageMagic = "age-encryption.org/v1"

// Service is the orchestration layer over the scope catalog, exporter,
// archive builder, delivery selector, loader, dry-run planner, and import
// applier. Export and dry run are read-only and safe to run concurrently;
// Import is the one exclusive, transactional operation.
type Service struct {
	db     Database
	store  ObjectStore // nil when no writable provider is configured
	loader *Loader
	enc    Encryptor         // nil disables at-rest encryption
	dec    DecryptionContext // set via SetDecryptionContext
	logger Logger
	clock  Clock
	idgen  IDGenerator
}

// NewService creates a Service with the provided dependencies. store and
// enc may be nil; operations that need them fail with configuration-level
// errors.
func NewService(db Database, store ObjectStore, loader *Loader, enc Encryptor, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		db:     db,
		store:  store,
		loader: loader,
		enc:    enc,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
	}
}

// SetDecryptionContext installs an unlocked decryption context for loading
// encrypted archives.
func (s *Service) SetDecryptionContext(dec DecryptionContext) {
	s.dec = dec
}

// Export builds the archive for a scope and delivers it per the requested
// mode. An over-limit DIRECT request returns an OSS_REQUIRED result, not an
// error, so the caller can retry with OSS mode.
func (s *Service) Export(ctx context.Context, scope Scope, mode DeliveryMode) (*ExportResult, error) {
	def := Definition(scope)

	data, err := def.ExportData(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("exporting scope %s: %w", scope, err)
	}

	built, err := BuildArchive(scope, data, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("building archive for scope %s: %w", scope, err)
	}

	s.logger.Info("archive built",
		"scope", scope, "file", built.FileName, "bytes", built.SizeBytes, "checksum", built.Checksum)

	switch mode {
	case ModeDirect:
		if built.SizeBytes > DirectLimit {
			return &ExportResult{
				Mode:       ModeOSSRequired,
				FileName:   built.FileName,
				LimitBytes: DirectLimit,
				Message:    fmt.Sprintf("archive is %d bytes, over the %d byte inline limit; retry with OSS mode", built.SizeBytes, DirectLimit),
			}, nil
		}
		return &ExportResult{
			Mode:      ModeDirect,
			FileName:  built.FileName,
			Content:   built.Content,
			Checksum:  built.Checksum,
			SizeBytes: built.SizeBytes,
		}, nil

	case ModeOSS:
		if s.store == nil {
			return nil, ErrNoObjectStore
		}

		content := built.Content
		if s.enc != nil && s.enc.IsConfigured() {
			var buf bytes.Buffer
			if err := s.enc.Encrypt(bytes.NewReader(built.Content), &buf); err != nil {
				return nil, fmt.Errorf("encrypting archive: %w", err)
			}
			content = buf.Bytes()
			s.logger.Debug("archive encrypted for upload", "plainBytes", built.SizeBytes, "cipherBytes", len(content))
		}

		key := s.exportKey(built.FileName)
		url, err := s.store.Put(ctx, key, content, archiveContentType)
		if err != nil {
			return nil, fmt.Errorf("uploading archive: %w", err)
		}

		s.logger.Info("archive uploaded", "scope", scope, "key", key, "provider", s.store.ProviderID())
		return &ExportResult{
			Mode:         ModeOSS,
			FileName:     built.FileName,
			URL:          url,
			Key:          key,
			ProviderID:   s.store.ProviderID(),
			ProviderName: s.store.ProviderName(),
			Checksum:     built.Checksum,
			SizeBytes:    built.SizeBytes,
		}, nil

	default:
		return nil, fmt.Errorf("unknown delivery mode %q", mode)
	}
}

// InitUpload prepares a client-side direct upload of a restore file. The
// upload strategy depends on the active provider's type; unsupported
// providers produce an UNSUPPORTED result rather than an error.
func (s *Service) InitUpload(ctx context.Context, fileName string, fileSize int64, contentType string) (*UploadInitResult, error) {
	if s.store == nil {
		return nil, ErrNoObjectStore
	}
	if fileSize <= 0 {
		return nil, fmt.Errorf("file size must be positive, got %d", fileSize)
	}

	limit := int64(ClientUploadCap)
	if m := s.store.MaxFileSize(); m > 0 && m < limit {
		limit = m
	}
	if fileSize > limit {
		return nil, fmt.Errorf("file is %d bytes, over the %d byte upload limit", fileSize, limit)
	}

	key := s.uploadKey(fileName)
	cu, err := s.store.InitClientUpload(ctx, key, fileSize, contentType)
	if err != nil {
		return nil, fmt.Errorf("initiating client upload: %w", err)
	}

	result := &UploadInitResult{
		Strategy:          cu.Strategy,
		UploadURL:         cu.UploadURL,
		UploadMethod:      cu.UploadMethod,
		UploadHeaders:     cu.UploadHeaders,
		BlobPathname:      cu.BlobPathname,
		BlobClientToken:   cu.BlobClientToken,
		Key:               key,
		SourceURL:         cu.SourceURL,
		StorageProviderID: s.store.ProviderID(),
		Message:           cu.Message,
	}
	if cu.Strategy == UploadUnsupported {
		// The caller must fall back to a provider switch; no key or URL
		// is meaningful.
		result.Key = ""
		result.SourceURL = ""
		result.StorageProviderID = ""
	}
	return result, nil
}

// DryRun validates a loaded archive against the catalog and the live
// database and reports the full table-by-table plan and issue list.
// Performs zero writes; safe to call repeatedly and concurrently.
func (s *Service) DryRun(ctx context.Context, source BackupSource, expectedScope Scope) (*DryRunResult, error) {
	content, err := s.loadSource(ctx, source)
	if err != nil {
		return nil, err
	}

	v, err := validateArchive(content, expectedScope, source.ExpectedChecksum)
	if err != nil {
		return nil, err
	}
	return s.planValidated(ctx, v)
}

func (s *Service) planValidated(ctx context.Context, v *validatedArchive) (*DryRunResult, error) {
	data := v.archive.Data

	issues := v.def.missingKeyIssues(data)

	refIssues, err := v.def.analyzeRefs(ctx, s.db, data)
	if err != nil {
		return nil, err
	}
	issues = append(issues, refIssues...)

	plans, summary, err := v.def.plan(ctx, s.db, data)
	if err != nil {
		return nil, err
	}
	issues = append(issues, discardWarnings(plans)...)

	ready := true
	for _, issue := range issues {
		if issue.Level == IssueError {
			ready = false
			break
		}
	}

	return &DryRunResult{
		Scope:       v.def.Scope,
		Mode:        "REPLACE",
		Checksum:    v.checksum,
		SizeBytes:   v.sizeBytes,
		Ready:       ready,
		ConfirmText: ConfirmPhrase,
		Issues:      issues,
		TablePlans:  plans,
		Summary:     summary,
	}, nil
}

// Import executes the destructive full replace. Preconditions checked
// before any write: the confirmation phrase matches exactly, the supplied
// checksum matches the freshly recomputed one, and re-run validation finds
// no blocking issues. The whole delete+insert+relink+resequence runs in one
// transaction; any failure rolls everything back.
func (s *Service) Import(ctx context.Context, source BackupSource, expectedScope Scope, expectedChecksum, confirmText string) (*ImportResult, error) {
	if confirmText != ConfirmPhrase {
		return nil, fmt.Errorf("%w: type %q to proceed", ErrConfirmation, ConfirmPhrase)
	}
	if expectedChecksum == "" {
		return nil, fmt.Errorf("%w: no checksum supplied", ErrStaleChecksum)
	}

	content, err := s.loadSource(ctx, source)
	if err != nil {
		return nil, err
	}

	v, err := validateArchive(content, expectedScope, source.ExpectedChecksum)
	if err != nil {
		return nil, err
	}
	if v.checksum != expectedChecksum {
		return nil, fmt.Errorf("%w (expected %s, archive is %s)", ErrStaleChecksum, expectedChecksum, v.checksum)
	}

	// Validation is re-run here rather than trusted from an earlier dry
	// run: the source file may have changed in between.
	dryRun, err := s.planValidated(ctx, v)
	if err != nil {
		return nil, err
	}
	if !dryRun.Ready {
		return nil, fmt.Errorf("%w: %s", ErrNotImportable, issueCodes(dryRun.Issues))
	}

	s.logger.Info("starting import",
		"scope", v.def.Scope, "checksum", v.checksum,
		"rowsToDelete", dryRun.Summary.RowsToDelete, "rowsToInsert", dryRun.Summary.RowsToInsert)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning import transaction: %w", err)
	}

	stats, err := v.def.Replace(ctx, tx, v.archive.Data)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Error("rollback failed after import error", "error", rbErr)
		}
		return nil, fmt.Errorf("applying import for scope %s: %w", v.def.Scope, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}

	s.logger.Info("import complete",
		"scope", v.def.Scope, "deleted", stats.deleted, "inserted", stats.inserted)

	return &ImportResult{
		Scope:      v.def.Scope,
		Mode:       "REPLACE",
		Checksum:   v.checksum,
		ImportedAt: s.clock.Now().UTC().Format(time.RFC3339Nano),
		TableStats: dryRun.TablePlans,
		Summary: ImportSummary{
			DeletedRows:  stats.deleted,
			InsertedRows: stats.inserted,
		},
	}, nil
}

// loadSource retrieves archive bytes and transparently decrypts
// age-encrypted payloads when a decryption context is installed.
func (s *Service) loadSource(ctx context.Context, source BackupSource) ([]byte, error) {
	content, err := s.loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}

	if bytes.HasPrefix(content, []byte(ageMagic)) {
		if s.dec == nil {
			return nil, fmt.Errorf("archive is encrypted; unlock the decryption key first")
		}
		var buf bytes.Buffer
		if err := s.dec.Decrypt(bytes.NewReader(content), &buf); err != nil {
			return nil, fmt.Errorf("decrypting archive: %w", err)
		}
		s.logger.Debug("archive decrypted", "cipherBytes", len(content), "plainBytes", buf.Len())
		return buf.Bytes(), nil
	}
	return content, nil
}

// exportKey derives the object-storage key for an uploaded export:
// backups/{year}/{month}/{fileName}.json.
func (s *Service) exportKey(fileName string) string {
	now := s.clock.Now().UTC()
	return fmt.Sprintf("backups/%s/%s/%s.json", now.Format("2006"), now.Format("01"), fileName)
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// uploadKey derives a collision-free object key for a client-uploaded
// restore file, sanitizing the caller-supplied name.
func (s *Service) uploadKey(fileName string) string {
	base := unsafeKeyChars.ReplaceAllString(path.Base(fileName), "_")
	if base == "" || base == "." {
		base = "restore.json"
	}
	return fmt.Sprintf("restore/%s/%s", s.idgen.New(), base)
}
