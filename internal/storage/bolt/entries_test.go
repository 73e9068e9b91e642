package boltrepo

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-flowstore/internal/storage/storagetest"
	iface "github.com/goliatone/go-flowstore/pkg/interfaces/store"
)

func TestEntryRepository(t *testing.T) {
	storagetest.RunEntryRepository(t, func(t *testing.T) iface.EntryRepository {
		repo, err := Open(filepath.Join(t.TempDir(), "store.db"))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestEntryRepositorySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.db")
	ctx := context.Background()

	repo, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := repo.Upsert(ctx, iface.Entry{Key: "acme_flow_f1/counter", Value: json.RawMessage(`7`)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get(ctx, "acme_flow_f1/counter")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Value) != "7" {
		t.Fatalf("unexpected value %s", got.Value)
	}
}
