// Package storagetest holds behaviour checks shared by every entry repository.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	iface "github.com/goliatone/go-flowstore/pkg/interfaces/store"
)

// RunEntryRepository exercises the EntryRepository contract against repo.
func RunEntryRepository(t *testing.T, newRepo func(t *testing.T) iface.EntryRepository) {
	t.Helper()

	t.Run("missing key", func(t *testing.T) {
		repo := newRepo(t)
		if _, err := repo.Get(context.Background(), "never"); !errors.Is(err, iface.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("upsert replaces", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		if _, err := repo.Upsert(ctx, iface.Entry{Key: "acme_counter", Value: json.RawMessage(`1`)}); err != nil {
			t.Fatalf("first upsert: %v", err)
		}
		stored, err := repo.Upsert(ctx, iface.Entry{Key: "acme_counter", Value: json.RawMessage(`{"n":2}`)})
		if err != nil {
			t.Fatalf("second upsert: %v", err)
		}
		if string(stored.Value) != `{"n":2}` {
			t.Fatalf("unexpected upsert echo %s", stored.Value)
		}

		got, err := repo.Get(ctx, "acme_counter")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Key != "acme_counter" || string(got.Value) != `{"n":2}` {
			t.Fatalf("unexpected entry %+v", got)
		}
	})

	t.Run("empty value stored as null", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		if _, err := repo.Upsert(ctx, iface.Entry{Key: "blank"}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		got, err := repo.Get(ctx, "blank")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if string(got.Value) != "null" {
			t.Fatalf("expected null, got %s", got.Value)
		}
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		if _, err := repo.Upsert(ctx, iface.Entry{Key: "gone", Value: json.RawMessage(`"x"`)}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := repo.Delete(ctx, "gone"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := repo.Delete(ctx, "gone"); !errors.Is(err, iface.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
		if _, err := repo.Get(ctx, "gone"); !errors.Is(err, iface.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("key validation", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		if _, err := repo.Upsert(ctx, iface.Entry{Key: "  ", Value: json.RawMessage(`1`)}); !errors.Is(err, iface.ErrEmptyKey) {
			t.Fatalf("expected ErrEmptyKey, got %v", err)
		}
		long := strings.Repeat("k", iface.MaxKeyLength+1)
		if _, err := repo.Upsert(ctx, iface.Entry{Key: long, Value: json.RawMessage(`1`)}); !errors.Is(err, iface.ErrKeyTooLong) {
			t.Fatalf("expected ErrKeyTooLong, got %v", err)
		}
	})

	t.Run("key length counts characters", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		key := strings.Repeat("é", iface.MaxKeyLength)
		if _, err := repo.Upsert(ctx, iface.Entry{Key: key, Value: json.RawMessage(`"accents"`)}); err != nil {
			t.Fatalf("upsert %d multi-byte characters: %v", iface.MaxKeyLength, err)
		}
		got, err := repo.Get(ctx, key)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if string(got.Value) != `"accents"` {
			t.Fatalf("unexpected value %s", got.Value)
		}
		if _, err := repo.Upsert(ctx, iface.Entry{Key: key + "é", Value: json.RawMessage(`1`)}); !errors.Is(err, iface.ErrKeyTooLong) {
			t.Fatalf("expected ErrKeyTooLong, got %v", err)
		}
	})
}
