package commands

import (
	command "github.com/goliatone/go-command"
	internalcommands "github.com/goliatone/go-flowstore/internal/commands"
	"github.com/goliatone/go-flowstore/pkg/interfaces/logger"
	"github.com/goliatone/go-flowstore/pkg/store"
)

// Re-export request types so consumers need not import internal packages.
type (
	PutEntry    = internalcommands.PutEntry
	DeleteEntry = internalcommands.DeleteEntry
)

// Registry exposes go-command compatible handlers backed by a scoped store.
type Registry struct {
	Catalog     *internalcommands.Catalog
	PutEntry    command.Commander[PutEntry]
	DeleteEntry command.Commander[DeleteEntry]
}

// Dependencies mirror the internal command dependencies but keep them public.
type Dependencies struct {
	Store  store.Store
	Logger logger.Logger
}

// New builds the registry using the provided dependencies.
func New(deps Dependencies) (*Registry, error) {
	catalog, err := internalcommands.NewCatalog(internalcommands.Dependencies{
		Store:  deps.Store,
		Logger: deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Registry{
		Catalog:     catalog,
		PutEntry:    catalog.PutEntry,
		DeleteEntry: catalog.DeleteEntry,
	}, nil
}

// Commanders returns every handler so callers can register them with go-command registries.
func (r *Registry) Commanders() []any {
	if r == nil {
		return nil
	}
	return []any{
		r.PutEntry,
		r.DeleteEntry,
	}
}
