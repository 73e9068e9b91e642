package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	boltrepo "github.com/goliatone/go-flowstore/internal/storage/bolt"
	bunrepo "github.com/goliatone/go-flowstore/internal/storage/bun"
	"github.com/goliatone/go-flowstore/internal/storage/memory"
	iface "github.com/goliatone/go-flowstore/pkg/interfaces/store"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// MetricsCollector enables downstream observers to record repo operations.
type MetricsCollector interface {
	Record(operation string, labels map[string]string)
}

// Providers exposes the entry repository used by the store-entries server.
type Providers struct {
	Entries iface.EntryRepository
	Metrics MetricsCollector
	closers []func() error
}

type Option func(*Providers)

// WithMetricsCollector records every repository call on collector.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(p *Providers) {
		p.Metrics = collector
	}
}

// Close releases backend resources.
func (p Providers) Close() error {
	var errs []error
	for _, closeFn := range p.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewMemoryProviders returns an entry repository backed by an in-memory map.
func NewMemoryProviders(opts ...Option) Providers {
	return finish(Providers{Entries: memory.NewEntryRepository()}, opts)
}

// NewBunProviders wires the bun-backed entry repository. The caller owns the
// *bun.DB lifecycle and is expected to have migrated the schema.
func NewBunProviders(db *bun.DB, opts ...Option) Providers {
	if db == nil {
		panic("storage: bun DB is required")
	}
	return finish(Providers{Entries: bunrepo.NewEntryRepository(db)}, opts)
}

// sqliteConfig satisfies persistence.Config for a local sqlite file.
type sqliteConfig struct {
	dsn string
}

func (sqliteConfig) GetDebug() bool { return false }
func (sqliteConfig) GetDriver() string { return sqliteshim.DriverName() }
func (c sqliteConfig) GetServer() string { return c.dsn }
func (sqliteConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (sqliteConfig) GetOtelIdentifier() string { return "" }

// OpenSQLite opens dsn through sqliteshim, applies the store_entries
// migrations and returns providers that close the database on Close.
func OpenSQLite(ctx context.Context, dsn string, opts ...Option) (Providers, error) {
	if strings.TrimSpace(dsn) == "" {
		return Providers{}, errors.New("storage: sqlite dsn is required")
	}
	sqldb, err := sql.Open(sqliteshim.DriverName(), dsn)
	if err != nil {
		return Providers{}, fmt.Errorf("storage: open sqlite: %w", err)
	}

	persistence.RegisterModel((*bunrepo.EntryRecord)(nil))
	client, err := persistence.New(sqliteConfig{dsn: dsn}, sqldb, sqlitedialect.New())
	if err != nil {
		sqldb.Close()
		return Providers{}, fmt.Errorf("storage: connect sqlite: %w", err)
	}
	client.RegisterSQLMigrations(bunrepo.Migrations())
	if err := client.Migrate(ctx); err != nil {
		client.Close()
		return Providers{}, fmt.Errorf("storage: migrate: %w", err)
	}

	providers := NewBunProviders(client.DB(), opts...)
	providers.closers = append(providers.closers, client.Close)
	return providers, nil
}

// OpenBolt opens the bolt file at path.
func OpenBolt(path string, opts ...Option) (Providers, error) {
	if strings.TrimSpace(path) == "" {
		return Providers{}, errors.New("storage: bolt path is required")
	}
	repo, err := boltrepo.Open(path)
	if err != nil {
		return Providers{}, err
	}
	providers := finish(Providers{Entries: repo}, opts)
	providers.closers = append(providers.closers, repo.Close)
	return providers, nil
}

// Open selects a backend by name. location is the sqlite DSN or bolt path and
// is ignored for the memory backend.
func Open(ctx context.Context, backend, location string, opts ...Option) (Providers, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		return NewMemoryProviders(opts...), nil
	case BackendSQLite:
		return OpenSQLite(ctx, location, opts...)
	case BackendBolt:
		return OpenBolt(location, opts...)
	default:
		return Providers{}, fmt.Errorf("storage: unknown backend %q", backend)
	}
}

func finish(p Providers, opts []Option) Providers {
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}
	if p.Metrics != nil {
		p.Entries = &instrumentedRepository{next: p.Entries, metrics: p.Metrics}
	}
	return p
}

type instrumentedRepository struct {
	next    iface.EntryRepository
	metrics MetricsCollector
}

func (r *instrumentedRepository) Get(ctx context.Context, key string) (iface.Entry, error) {
	entry, err := r.next.Get(ctx, key)
	r.metrics.Record("get", map[string]string{"result": outcome(err)})
	return entry, err
}

func (r *instrumentedRepository) Upsert(ctx context.Context, entry iface.Entry) (iface.Entry, error) {
	stored, err := r.next.Upsert(ctx, entry)
	r.metrics.Record("upsert", map[string]string{"result": outcome(err)})
	return stored, err
}

func (r *instrumentedRepository) Delete(ctx context.Context, key string) error {
	err := r.next.Delete(ctx, key)
	r.metrics.Record("delete", map[string]string{"result": outcome(err)})
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, iface.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
