// Package core wires the record store runtime: configuration from the
// environment, storage backend selection, rules registration and operation
// observation (structured logs plus Prometheus metrics).
package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	blobcore "recordstore/internal/blob/core"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvStorageDriver  = "RECORDSTORE_STORAGE_DRIVER"
	EnvSQLitePath     = "RECORDSTORE_SQLITE_PATH"
	EnvPostgresDSN    = "RECORDSTORE_POSTGRES_DSN"
	EnvBlobDriver     = "RECORDSTORE_BLOB_DRIVER"
	EnvBlobFSRoot     = "RECORDSTORE_BLOB_FS_ROOT"
	EnvBlobS3Bucket   = "RECORDSTORE_BLOB_S3_BUCKET"
	EnvBlobS3Region   = "RECORDSTORE_BLOB_S3_REGION"
	EnvBlobS3Endpoint = "RECORDSTORE_BLOB_S3_ENDPOINT"
	EnvBlobS3Path     = "RECORDSTORE_BLOB_S3_PATH_STYLE"
	EnvLogLevel       = "RECORDSTORE_LOG_LEVEL"
	EnvLogFormat      = "RECORDSTORE_LOG_FORMAT"
)

// Config is the runtime configuration shared by the CLI and tests.
type Config struct {
	Storage StorageDriver
	SQLite  string
	DSN     string
	Blob    BlobConfig
	Log     LogConfig
}

// BlobConfig selects the object store used by the blob storage driver.
type BlobConfig struct {
	Driver      blobcore.Driver
	FSRoot      string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// LogConfig controls the logrus logger built by NewLogger.
type LogConfig struct {
	Level  string
	Format string
}

// LoadDotEnv seeds the process environment from path without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ConfigFromEnv builds a Config from the process environment, applying
// defaults for unset variables.
func ConfigFromEnv() Config {
	return ConfigFromLookup(os.Getenv)
}

// ConfigFromLookup builds a Config using getenv for variable lookup.
func ConfigFromLookup(getenv func(string) string) Config {
	cfg := Config{
		Storage: StorageDriver(strings.ToLower(strings.TrimSpace(getenv(EnvStorageDriver)))),
		SQLite:  getenv(EnvSQLitePath),
		DSN:     getenv(EnvPostgresDSN),
		Blob: BlobConfig{
			Driver:      blobcore.Driver(strings.ToLower(strings.TrimSpace(getenv(EnvBlobDriver)))),
			FSRoot:      getenv(EnvBlobFSRoot),
			S3Bucket:    getenv(EnvBlobS3Bucket),
			S3Region:    getenv(EnvBlobS3Region),
			S3Endpoint:  getenv(EnvBlobS3Endpoint),
			S3PathStyle: strings.EqualFold(getenv(EnvBlobS3Path), "true"),
		},
		Log: LogConfig{
			Level:  getenv(EnvLogLevel),
			Format: getenv(EnvLogFormat),
		},
	}
	if cfg.Storage == "" {
		cfg.Storage = StorageSQLite
	}
	if cfg.Blob.Driver == "" {
		cfg.Blob.Driver = blobcore.DriverFilesystem
	}
	return cfg
}
