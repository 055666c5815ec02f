// Package blob re-exports the blob storage abstractions and selects a
// backend. Other packages depend on blob.Store; only this package wires the
// infra-backed implementations.
package blob

import (
	"context"
	"fmt"
	"os"

	"farmcore/internal/blob/core"
	fsstore "farmcore/internal/infra/blob/fs"
	memorystore "farmcore/internal/infra/blob/memory"
	s3store "farmcore/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// NewFilesystem returns a filesystem blob store rooted at path.
func NewFilesystem(root string) (Store, error) { return fsstore.New(root) }

// NewMemory returns an in-memory blob store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// Open selects a blob.Store implementation using environment variables.
//
//	FARMCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	FARMCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 specific variables documented in the s3 driver)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("FARMCORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return fsstore.New(os.Getenv("FARMCORE_BLOB_FS_ROOT"))
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return memorystore.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
