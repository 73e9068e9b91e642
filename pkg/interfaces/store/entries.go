package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxKeyLength bounds fully qualified keys accepted by entry repositories.
const MaxKeyLength = 128

var (
	// ErrNotFound is returned when an entry cannot be located.
	ErrNotFound = errors.New("store: not found")
	// ErrEmptyKey is returned for blank keys.
	ErrEmptyKey = errors.New("store: key is required")
	// ErrKeyTooLong is returned for keys longer than MaxKeyLength.
	ErrKeyTooLong = fmt.Errorf("store: key exceeds %d characters", MaxKeyLength)
)

// Entry is one persisted record at a fully qualified key. Value is kept as raw
// JSON so it round-trips without reinterpretation.
type Entry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// EntryRepository persists entries for the store-entries API.
type EntryRepository interface {
	// Get returns ErrNotFound when the key was never written or was deleted.
	Get(ctx context.Context, key string) (Entry, error)
	// Upsert creates or replaces the entry and returns the stored value.
	Upsert(ctx context.Context, entry Entry) (Entry, error)
	// Delete returns ErrNotFound when nothing was removed.
	Delete(ctx context.Context, key string) error
}

// ValidateKey checks the constraints shared by every repository.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if utf8.RuneCountInString(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// NormalizeValue maps an absent value to JSON null.
func NormalizeValue(value json.RawMessage) json.RawMessage {
	if len(value) == 0 {
		return json.RawMessage("null")
	}
	return value
}
