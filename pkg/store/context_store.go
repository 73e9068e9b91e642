package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-flowstore/pkg/interfaces/logger"
	iface "github.com/goliatone/go-flowstore/pkg/interfaces/store"
)

// Store is the key/value contract handed to workflow pieces. Every method
// defaults to Flow scope when no scope is given.
type Store interface {
	Put(ctx context.Context, key string, value any, scope ...Scope) (any, error)
	Get(ctx context.Context, key string, scope ...Scope) (any, error)
	Delete(ctx context.Context, key string, scope ...Scope) error
}

// RawReader exposes stored values without decoding them.
type RawReader interface {
	Lookup(ctx context.Context, key string, scope ...Scope) (json.RawMessage, bool, error)
}

// EntryClient is the transport used by ContextStore. *Client satisfies it.
type EntryClient interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, entry Entry) (*Entry, error)
	Delete(ctx context.Context, key string) error
}

var (
	_ Store       = (*ContextStore)(nil)
	_ RawReader   = (*ContextStore)(nil)
	_ EntryClient = (*Client)(nil)
)

// ContextConfig is established once per workflow execution.
type ContextConfig struct {
	APIURL      string
	Prefix      string
	FlowID      string
	EngineToken string
}

// ContextStore namespaces keys by prefix, scope and flow before delegating
// to an EntryClient.
type ContextStore struct {
	prefix     string
	flowID     string
	client     EntryClient
	clientOpts []Option
	logger     logger.Logger
}

// ContextOption configures a ContextStore.
type ContextOption func(*ContextStore)

// WithEntryClient replaces the HTTP client with a custom transport.
func WithEntryClient(c EntryClient) ContextOption {
	return func(s *ContextStore) {
		if c != nil {
			s.client = c
		}
	}
}

// WithClientOptions forwards options to the underlying Client.
func WithClientOptions(opts ...Option) ContextOption {
	return func(s *ContextStore) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

// WithContextLogger sets the facade logger.
func WithContextLogger(l logger.Logger) ContextOption {
	return func(s *ContextStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewContextStore builds the facade for one workflow execution.
func NewContextStore(cfg ContextConfig, opts ...ContextOption) (*ContextStore, error) {
	s := &ContextStore{
		prefix: cfg.Prefix,
		flowID: cfg.FlowID,
		logger: &logger.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.client == nil {
		clientOpts := append([]Option{WithLogger(s.logger)}, s.clientOpts...)
		client, err := NewClient(Config{
			APIURL:      cfg.APIURL,
			EngineToken: cfg.EngineToken,
		}, clientOpts...)
		if err != nil {
			return nil, err
		}
		s.client = client
	}
	s.logger = s.logger.With(logger.Field{Key: "flow_id", Value: cfg.FlowID})
	return s, nil
}

// Put writes value at key and returns value as supplied, never the remote echo.
func (s *ContextStore) Put(ctx context.Context, key string, value any, scope ...Scope) (any, error) {
	fqk, err := s.key(key, scope)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("store: encode value for %q: %w", key, err)
	}
	if _, err := s.client.Put(ctx, Entry{Key: fqk, Value: raw}); err != nil {
		return nil, err
	}
	s.logger.Debug("store put", logger.Field{Key: "key", Value: fqk})
	return value, nil
}

// Get returns the decoded value at key, or nil when it was never set.
func (s *ContextStore) Get(ctx context.Context, key string, scope ...Scope) (any, error) {
	raw, ok, err := s.Lookup(ctx, key, scope...)
	if err != nil || !ok {
		return nil, err
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("store: decode value for %q: %w", key, err)
	}
	return value, nil
}

// Lookup returns the raw JSON at key. ok is false when the key is absent.
func (s *ContextStore) Lookup(ctx context.Context, key string, scope ...Scope) (json.RawMessage, bool, error) {
	fqk, err := s.key(key, scope)
	if err != nil {
		return nil, false, err
	}
	entry, err := s.client.Get(ctx, fqk)
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return nil, false, nil
	}
	return iface.NormalizeValue(entry.Value), true, nil
}

// Delete removes key. Deleting an absent key succeeds.
func (s *ContextStore) Delete(ctx context.Context, key string, scope ...Scope) error {
	fqk, err := s.key(key, scope)
	if err != nil {
		return err
	}
	if err := s.client.Delete(ctx, fqk); err != nil {
		return err
	}
	s.logger.Debug("store delete", logger.Field{Key: "key", Value: fqk})
	return nil
}

func (s *ContextStore) key(key string, scopes []Scope) (string, error) {
	scope, err := resolveScope(scopes)
	if err != nil {
		return "", err
	}
	if _, isFlow := scope.(flowScope); isFlow && s.flowID == "" {
		return "", ErrMissingFlowID
	}
	return DeriveKey(s.prefix, scope, s.flowID, key)
}

// GetAs decodes the value at key into T. It returns nil when the key is absent.
func GetAs[T any](ctx context.Context, r RawReader, key string, scope ...Scope) (*T, error) {
	raw, ok, err := r.Lookup(ctx, key, scope...)
	if err != nil || !ok {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("store: decode value for %q: %w", key, err)
	}
	return &out, nil
}

// PutAs writes value at key and returns it with its static type preserved.
func PutAs[T any](ctx context.Context, s Store, key string, value T, scope ...Scope) (T, error) {
	if _, err := s.Put(ctx, key, value, scope...); err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}
