package bunrepo

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"time"

	iface "github.com/goliatone/go-flowstore/pkg/interfaces/store"
	"github.com/uptrace/bun"
)

// EntryRecord is the bun model for the store_entries table.
type EntryRecord struct {
	bun.BaseModel `bun:"table:store_entries"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// EntryRepository persists entries through bun.
type EntryRepository struct {
	db *bun.DB
}

var _ iface.EntryRepository = (*EntryRepository)(nil)

func NewEntryRepository(db *bun.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the SQL migrations that create the store_entries table.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

func (r *EntryRepository) Get(ctx context.Context, key string) (iface.Entry, error) {
	var rec EntryRecord
	err := r.db.NewSelect().
		Model(&rec).
		Where("key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return iface.Entry{}, mapError(err)
	}
	return fromEntryRecord(rec), nil
}

func (r *EntryRepository) Upsert(ctx context.Context, entry iface.Entry) (iface.Entry, error) {
	if err := iface.ValidateKey(entry.Key); err != nil {
		return iface.Entry{}, err
	}
	now := time.Now().UTC()
	rec := &EntryRecord{
		Key:       entry.Key,
		Value:     string(iface.NormalizeValue(entry.Value)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.db.NewInsert().
		Model(rec).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return iface.Entry{}, mapError(err)
	}
	return fromEntryRecord(*rec), nil
}

func (r *EntryRepository) Delete(ctx context.Context, key string) error {
	res, err := r.db.NewDelete().
		Model((*EntryRecord)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return iface.ErrNotFound
	}
	return nil
}

func fromEntryRecord(rec EntryRecord) iface.Entry {
	return iface.Entry{Key: rec.Key, Value: json.RawMessage(rec.Value)}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return iface.ErrNotFound
	}
	return err
}
