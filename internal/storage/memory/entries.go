package memory

import (
	"context"
	"sync"

	iface "github.com/goliatone/go-flowstore/pkg/interfaces/store"
)

// EntryRepository keeps entries in a map guarded by a RWMutex.
type EntryRepository struct {
	mu      sync.RWMutex
	records map[string][]byte
}

var _ iface.EntryRepository = (*EntryRepository)(nil)

func NewEntryRepository() *EntryRepository {
	return &EntryRepository{records: make(map[string][]byte)}
}

func (r *EntryRepository) Get(_ context.Context, key string) (iface.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.records[key]
	if !ok {
		return iface.Entry{}, iface.ErrNotFound
	}
	return iface.Entry{Key: key, Value: cloneBytes(value)}, nil
}

func (r *EntryRepository) Upsert(_ context.Context, entry iface.Entry) (iface.Entry, error) {
	if err := iface.ValidateKey(entry.Key); err != nil {
		return iface.Entry{}, err
	}
	value := iface.NormalizeValue(entry.Value)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[entry.Key] = cloneBytes(value)
	return iface.Entry{Key: entry.Key, Value: cloneBytes(value)}, nil
}

func (r *EntryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[key]; !ok {
		return iface.ErrNotFound
	}
	delete(r.records, key)
	return nil
}

// Len reports how many entries are stored.
func (r *EntryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
