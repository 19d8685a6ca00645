package objstore

import (
	"context"
	"fmt"

	"sback-go/internal/config"
	"sback-go/internal/engine"
)

// NewStoreFromConfig creates an ObjectStore implementation based on the storage config type.
func NewStoreFromConfig(ctx context.Context, cfg config.StorageConfig) (engine.ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.Name, cfg.MaxFileSize), nil
	case "s3":
		return NewS3Store(ctx, S3Options{
			Name:        cfg.Name,
			Bucket:      cfg.S3Bucket,
			Region:      cfg.S3Region,
			Endpoint:    cfg.S3Endpoint,
			AccessKey:   cfg.S3AccessKey,
			SecretKey:   cfg.S3SecretKey,
			MaxFileSize: cfg.MaxFileSize,
		})
	case "blob":
		return NewBlobStore(BlobOptions{
			Name:        cfg.Name,
			Endpoint:    cfg.BlobEndpoint,
			Secret:      cfg.BlobSecret,
			MaxFileSize: cfg.MaxFileSize,
		})
	case "filesystem":
		return NewFileSystemStore(cfg.Name, cfg.FSRoot, cfg.MaxFileSize)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
