package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/card-ledger/internal/config"
	"github.com/dvloznov/card-ledger/internal/store/memory"
)

func TestOpen_Memory(t *testing.T) {
	backend, err := Open(context.Background(), config.Config{StoreBackend: config.BackendMemory})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer backend.Close()

	if _, ok := backend.(*memory.Store); !ok {
		t.Errorf("backend = %T, want *memory.Store", backend)
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), config.Config{StoreBackend: config.BackendPostgres})
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("Open() error = %v, want ErrInvalidConfig", err)
	}
}
