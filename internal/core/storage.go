package core

import (
	"context"
	"fmt"

	blobcore "recordstore/internal/blob/core"
	fsblob "recordstore/internal/infra/blob/fs"
	memblob "recordstore/internal/infra/blob/memory"
	s3blob "recordstore/internal/infra/blob/s3"
	"recordstore/internal/infra/persistence/blob"
	"recordstore/internal/infra/persistence/memory"
	"recordstore/internal/infra/persistence/postgres"
	"recordstore/internal/infra/persistence/sqlite"
	"recordstore/internal/store"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBlob     StorageDriver = "blob"     // object storage journal (fs, s3, memory)
)

// OpenBackend selects a store.Backend for cfg.Storage. Defaults to sqlite.
func OpenBackend(ctx context.Context, cfg Config) (store.Backend, error) {
	switch cfg.Storage {
	case StorageMemory:
		return memory.NewStore(), nil
	case "", StorageSQLite:
		return sqlite.NewStore(cfg.SQLite)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.DSN)
	case StorageBlob:
		objects, err := OpenObjectStore(ctx, cfg.Blob)
		if err != nil {
			return nil, err
		}
		return blob.New(objects), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Storage)
	}
}

// OpenObjectStore selects the object store backing the blob storage driver.
func OpenObjectStore(ctx context.Context, cfg BlobConfig) (blobcore.Store, error) {
	switch cfg.Driver {
	case "", blobcore.DriverFilesystem:
		return fsblob.New(cfg.FSRoot)
	case blobcore.DriverS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("%s required for s3 driver", EnvBlobS3Bucket)
		}
		return s3blob.New(ctx, s3blob.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case blobcore.DriverMemory:
		return memblob.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
