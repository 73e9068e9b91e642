package commands

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/goliatone/go-flowstore/pkg/store"
)

type recordingStore struct {
	values map[string]any
	scopes map[string]store.Scope
}

func newRecordingStore() *recordingStore {
	return &recordingStore{values: map[string]any{}, scopes: map[string]store.Scope{}}
}

func (r *recordingStore) Put(_ context.Context, key string, value any, scope ...store.Scope) (any, error) {
	r.values[key] = value
	if len(scope) == 1 {
		r.scopes[key] = scope[0]
	}
	return value, nil
}

func (r *recordingStore) Get(_ context.Context, key string, _ ...store.Scope) (any, error) {
	return r.values[key], nil
}

func (r *recordingStore) Delete(_ context.Context, key string, _ ...store.Scope) error {
	delete(r.values, key)
	return nil
}

func TestCatalogCommands(t *testing.T) {
	ctx := context.Background()
	st := newRecordingStore()

	cat, err := NewCatalog(Dependencies{Store: st})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	if err := cat.PutEntry.Execute(ctx, PutEntry{Key: " counter ", Value: json.RawMessage(`3`), Scope: "project"}); err != nil {
		t.Fatalf("put entry: %v", err)
	}
	raw, ok := st.values["counter"].(json.RawMessage)
	if !ok || string(raw) != "3" {
		t.Fatalf("unexpected stored value %#v", st.values["counter"])
	}
	if st.scopes["counter"] != store.Project {
		t.Fatalf("expected project scope, got %v", st.scopes["counter"])
	}

	if err := cat.PutEntry.Execute(ctx, PutEntry{Key: "flowed", Value: json.RawMessage(`"x"`)}); err != nil {
		t.Fatalf("put entry: %v", err)
	}
	if st.scopes["flowed"] != store.Flow {
		t.Fatalf("expected default flow scope, got %v", st.scopes["flowed"])
	}

	if err := cat.DeleteEntry.Execute(ctx, DeleteEntry{Key: "counter", Scope: "PROJECT"}); err != nil {
		t.Fatalf("delete entry: %v", err)
	}
	if _, ok := st.values["counter"]; ok {
		t.Fatalf("expected counter to be removed")
	}
}

func TestCatalogValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewCatalog(Dependencies{}); err == nil {
		t.Fatalf("expected error without store")
	}

	cat, err := NewCatalog(Dependencies{Store: newRecordingStore()})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if err := cat.PutEntry.Execute(ctx, PutEntry{Key: ""}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if err := cat.PutEntry.Execute(ctx, PutEntry{Key: "k", Value: json.RawMessage(`{`)}); err == nil {
		t.Fatalf("expected invalid JSON error")
	}
	if err := cat.DeleteEntry.Execute(ctx, DeleteEntry{Key: "k", Scope: "tenant"}); !errors.Is(err, store.ErrInvalidScope) {
		t.Fatalf("expected ErrInvalidScope, got %v", err)
	}
}
