package core

import (
	"fmt"
	"os"

	"farmcore/internal/infra/persistence/document"
	"farmcore/internal/infra/persistence/memory"
	"farmcore/internal/infra/persistence/postgres"
	"farmcore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete document store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenDocumentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	FARMCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	FARMCORE_SQLITE_PATH: path to sqlite file (default ./farmcore.db)
//	FARMCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenDocumentStore() (document.Store, error) {
	driver := os.Getenv("FARMCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("FARMCORE_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(os.Getenv("FARMCORE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
