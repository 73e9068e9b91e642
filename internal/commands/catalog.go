package commands

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	command "github.com/goliatone/go-command"
	"github.com/goliatone/go-flowstore/pkg/interfaces/logger"
	"github.com/goliatone/go-flowstore/pkg/store"
)

// Catalog exposes go-command compatible handlers for host transports.
type Catalog struct {
	PutEntry    command.Commander[PutEntry]
	DeleteEntry command.Commander[DeleteEntry]
}

// Dependencies wires the scoped store into the command catalog.
type Dependencies struct {
	Store  store.Store
	Logger logger.Logger
}

// NewCatalog builds the command catalog using the supplied dependencies.
func NewCatalog(deps Dependencies) (*Catalog, error) {
	if deps.Store == nil {
		return nil, errors.New("commands: store is required")
	}
	deps.Logger = logger.OrNop(deps.Logger)

	return &Catalog{
		PutEntry:    putEntryCommand{store: deps.Store, logger: deps.Logger},
		DeleteEntry: deleteEntryCommand{store: deps.Store, logger: deps.Logger},
	}, nil
}

// PutEntry writes Value under Key. Scope is "FLOW" (default) or "PROJECT".
type PutEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	Scope string          `json:"scope"`
}

type putEntryCommand struct {
	store  store.Store
	logger logger.Logger
}

func (c putEntryCommand) Execute(ctx context.Context, msg PutEntry) error {
	key, scope, err := normalize(msg.Key, msg.Scope)
	if err != nil {
		return err
	}
	value := msg.Value
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	if !json.Valid(value) {
		return errors.New("commands: value must be valid JSON")
	}
	if _, err := c.store.Put(ctx, key, value, scope); err != nil {
		return err
	}
	c.logger.Debug("entry stored", logger.Field{Key: "key", Value: key}, logger.Field{Key: "scope", Value: scope})
	return nil
}

// DeleteEntry removes Key. Deleting an absent key succeeds.
type DeleteEntry struct {
	Key   string `json:"key"`
	Scope string `json:"scope"`
}

type deleteEntryCommand struct {
	store  store.Store
	logger logger.Logger
}

func (c deleteEntryCommand) Execute(ctx context.Context, msg DeleteEntry) error {
	key, scope, err := normalize(msg.Key, msg.Scope)
	if err != nil {
		return err
	}
	if err := c.store.Delete(ctx, key, scope); err != nil {
		return err
	}
	c.logger.Debug("entry deleted", logger.Field{Key: "key", Value: key}, logger.Field{Key: "scope", Value: scope})
	return nil
}

func normalize(key, scopeName string) (string, store.Scope, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil, errors.New("commands: key is required")
	}
	scope, err := store.ParseScope(scopeName)
	if err != nil {
		return "", nil, err
	}
	return key, scope, nil
}
