package storage

import "testing"

func TestNewStoreMemory(t *testing.T) {
	store, err := NewStore("memory", "")
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	if store == nil {
		t.Fatal("expected non-nil store")
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("unknown", "")
	if err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func TestDefaultStoreKindEnvOverride(t *testing.T) {
	t.Setenv(StoreKindEnv, "memory")
	if got := DefaultStoreKind(); got != "memory" {
		t.Fatalf("expected env override, got %q", got)
	}
	t.Setenv(StoreKindEnv, "")
	if got := DefaultStoreKind(); got != defaultStoreKind {
		t.Fatalf("expected build default %q, got %q", defaultStoreKind, got)
	}
}
