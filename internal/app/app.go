package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sback-go/internal/config"
	"sback-go/internal/encryption"
	"sback-go/internal/engine"
	"sback-go/internal/objstore"
	"sback-go/internal/store"
)

// App is the application layer between the CLI and the engine Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string arguments, and manages resource lifecycle on Close.
type App struct {
	cfg       *config.Config
	db        engine.Database
	store     engine.ObjectStore
	encryptor encryption.Encryptor
	service   *engine.Service
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Export", "Restore").
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, operation string) (*App, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger = logger.With("operation", operation)

	db, err := store.NewDatabaseFromConfig(ctx, cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	// The first configured provider is the active one. Running without any
	// is fine; OSS delivery and upload-init will report ErrNoObjectStore.
	var objStore engine.ObjectStore
	if len(cfg.Storage) > 0 {
		objStore, err = objstore.NewStoreFromConfig(ctx, cfg.Storage[0])
		if err != nil {
			db.Close()
			logFile.Close()
			return nil, fmt.Errorf("creating object store: %w", err)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	engineLogger := &slogAdapter{l: logger}
	loader := engine.NewLoader(engine.LoaderOptions{
		Limit:             0,
		Timeout:           time.Duration(cfg.Loader.TimeoutSeconds) * time.Second,
		AllowPrivateHosts: cfg.Loader.AllowPrivateHosts,
	}, engineLogger)

	svc := engine.NewService(db, objStore, loader, enc, engineLogger, engine.RealClock{}, engine.UUIDGenerator{})

	return &App{
		cfg:       cfg,
		db:        db,
		store:     objStore,
		encryptor: enc,
		service:   svc,
		logFile:   logFile,
	}, nil
}

// Export exports a scope with the given delivery mode. DIRECT results are
// additionally written to the local backup directory; the written path is
// returned alongside the result.
func (a *App) Export(ctx context.Context, scopeName, modeName string) (*engine.ExportResult, string, error) {
	scope, err := engine.ParseScope(scopeName)
	if err != nil {
		return nil, "", err
	}
	mode, err := engine.ParseDeliveryMode(modeName)
	if err != nil {
		return nil, "", err
	}

	result, err := a.service.Export(ctx, scope, mode)
	if err != nil {
		return nil, "", err
	}

	var savedPath string
	if result.Mode == engine.ModeDirect {
		savedPath, err = a.saveLocal(result.FileName, result.Content)
		if err != nil {
			return nil, "", err
		}
	}
	return result, savedPath, nil
}

// saveLocal writes an archive into the configured backup directory.
func (a *App) saveLocal(fileName string, content []byte) (string, error) {
	if err := os.MkdirAll(a.cfg.BackupDir, 0755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	path := filepath.Join(a.cfg.BackupDir, fileName+".json")
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("writing backup file: %w", err)
	}
	return path, nil
}

// DryRun validates an archive against the target database without writing.
// sourceArg is either a local file path or an http(s) URL.
func (a *App) DryRun(ctx context.Context, sourceArg, scopeName, checksum string) (*engine.DryRunResult, error) {
	scope, err := engine.ParseScope(scopeName)
	if err != nil {
		return nil, err
	}
	source, err := a.resolveSource(sourceArg, checksum)
	if err != nil {
		return nil, err
	}
	return a.service.DryRun(ctx, source, scope)
}

// Restore executes the destructive full replace for a scope.
func (a *App) Restore(ctx context.Context, sourceArg, scopeName, checksum, confirmText string) (*engine.ImportResult, error) {
	scope, err := engine.ParseScope(scopeName)
	if err != nil {
		return nil, err
	}
	source, err := a.resolveSource(sourceArg, checksum)
	if err != nil {
		return nil, err
	}
	return a.service.Import(ctx, source, scope, checksum, confirmText)
}

// InitUpload prepares a client-side direct upload of a restore file.
func (a *App) InitUpload(ctx context.Context, fileName string, fileSize int64, contentType string) (*engine.UploadInitResult, error) {
	return a.service.InitUpload(ctx, fileName, fileSize, contentType)
}

// resolveSource maps a CLI source argument to a BackupSource. URLs are
// fetched by the loader; anything else is read as a local file.
func (a *App) resolveSource(sourceArg, checksum string) (engine.BackupSource, error) {
	if strings.HasPrefix(sourceArg, "http://") || strings.HasPrefix(sourceArg, "https://") {
		return engine.URLSource(sourceArg, checksum), nil
	}
	content, err := os.ReadFile(sourceArg)
	if err != nil {
		return engine.BackupSource{}, fmt.Errorf("reading archive file: %w", err)
	}
	src := engine.DirectSource(content)
	src.ExpectedChecksum = checksum
	return src, nil
}

// BackupFile describes one archive in the local backup directory.
type BackupFile struct {
	Name     string
	Path     string
	Size     int64
	Modified time.Time
}

// ListBackups returns the archives in the local backup directory, newest
// first. A missing directory yields an empty list, not an error.
func (a *App) ListBackups() ([]BackupFile, error) {
	entries, err := os.ReadDir(a.cfg.BackupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var files []BackupFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		files = append(files, BackupFile{
			Name:     entry.Name(),
			Path:     filepath.Join(a.cfg.BackupDir, entry.Name()),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Modified.After(files[j].Modified)
	})
	return files, nil
}

// SetupKeys generates the age key pair used for archive encryption.
func (a *App) SetupKeys(passphrase string) error {
	return a.encryptor.Setup(passphrase)
}

// Unlock decrypts the private key and installs the decryption context so
// encrypted archives can be restored.
func (a *App) Unlock(passphrase string) error {
	dec, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return err
	}
	a.service.SetDecryptionContext(dec)
	return nil
}

// EncryptionConfigured reports whether archive encryption keys are in place.
func (a *App) EncryptionConfigured() bool {
	return a.encryptor.IsConfigured()
}

// Close releases the database and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
