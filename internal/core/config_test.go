package core

import (
	"os"
	"path/filepath"
	"testing"

	blobcore "recordstore/internal/blob/core"
)

func lookup(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestConfigFromLookupDefaults(t *testing.T) {
	cfg := ConfigFromLookup(lookup(nil))
	if cfg.Storage != StorageSQLite {
		t.Fatalf("expected sqlite default, got %q", cfg.Storage)
	}
	if cfg.Blob.Driver != blobcore.DriverFilesystem {
		t.Fatalf("expected filesystem blob default, got %q", cfg.Blob.Driver)
	}
	if cfg.SQLite != "" || cfg.Log.Level != "" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestConfigFromLookupOverrides(t *testing.T) {
	cfg := ConfigFromLookup(lookup(map[string]string{
		EnvStorageDriver:  " BLOB ",
		EnvBlobDriver:     "S3",
		EnvBlobS3Bucket:   "records",
		EnvBlobS3Region:   "eu-west-1",
		EnvBlobS3Endpoint: "http://localhost:9000",
		EnvBlobS3Path:     "TRUE",
		EnvPostgresDSN:    "postgres://db/records",
		EnvLogLevel:       "debug",
		EnvLogFormat:      "json",
	}))
	if cfg.Storage != StorageBlob || cfg.Blob.Driver != blobcore.DriverS3 {
		t.Fatalf("drivers not normalised: %q %q", cfg.Storage, cfg.Blob.Driver)
	}
	if cfg.Blob.S3Bucket != "records" || cfg.Blob.S3Region != "eu-west-1" || !cfg.Blob.S3PathStyle {
		t.Fatalf("unexpected s3 config %+v", cfg.Blob)
	}
	if cfg.DSN != "postgres://db/records" {
		t.Fatalf("unexpected dsn %q", cfg.DSN)
	}
	if cfg.Log != (LogConfig{Level: "debug", Format: "json"}) {
		t.Fatalf("unexpected log config %+v", cfg.Log)
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(""); err != nil {
		t.Fatalf("empty path: %v", err)
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(EnvStorageDriver+"=memory\n"+EnvLogLevel+"=warn\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvStorageDriver, "")
	if err := os.Unsetenv(EnvStorageDriver); err != nil {
		t.Fatalf("unset: %v", err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := ConfigFromEnv()
	if cfg.Storage != StorageMemory {
		t.Fatalf("expected driver from file, got %q", cfg.Storage)
	}
	if cfg.Log.Level != "error" {
		t.Fatalf("existing variables must win over the file, got %q", cfg.Log.Level)
	}
}

func TestLoadDotEnvMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("NOT VALID LINE\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	if err := LoadDotEnv(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
