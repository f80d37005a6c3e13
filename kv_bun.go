package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

type kvEntry struct {
	bun.BaseModel `bun:"table:kv_entries,alias:kv"`

	Key       string    `bun:"id,pk"`
	Value     []byte    `bun:"value"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// BunKeyValue stores values in the kv_entries table
type BunKeyValue struct {
	db bun.IDB
}

// NewBunKeyValue creates a store over db. Run Migrate first.
func NewBunKeyValue(db bun.IDB) *BunKeyValue {
	return &BunKeyValue{db: db}
}

func (b *BunKeyValue) Get(ctx context.Context, key string) ([]byte, error) {
	entry := new(kvEntry)
	err := b.db.NewSelect().
		Model(entry).
		Where("?TableAlias.id = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return entry.Value, nil
}

func (b *BunKeyValue) Set(ctx context.Context, key string, value []byte) error {
	entry := &kvEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}

	_, err := b.db.NewInsert().
		Model(entry).
		On("CONFLICT (id) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (b *BunKeyValue) Delete(ctx context.Context, key string) error {
	_, err := b.db.NewDelete().
		Model((*kvEntry)(nil)).
		Where("id = ?", key).
		Exec(ctx)
	return err
}
