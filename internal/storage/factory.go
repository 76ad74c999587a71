package storage

import (
	"fmt"
	"os"
)

// StoreKindEnv overrides the build's default store backend.
const StoreKindEnv = "AXONSIM_STORE"

func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// DefaultStoreKind is the backend used when none is requested: the value of
// AXONSIM_STORE if set, otherwise sqlite in sqlite builds and memory
// elsewhere.
func DefaultStoreKind() string {
	if kind := os.Getenv(StoreKindEnv); kind != "" {
		return kind
	}
	return defaultStoreKind
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
