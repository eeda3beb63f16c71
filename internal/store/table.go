package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type keyed interface {
	rawRecord | cleanedRecord
	key() string
}

// table holds the operations shared by raw and cleaned tables.
type table[R keyed] struct {
	d    *DB
	name string
}

func (t table[R]) scoped(ctx context.Context) *gorm.DB {
	return t.d.db.WithContext(ctx).Table(t.name)
}

// migrate creates the table or adds missing columns.
func (t table[R]) migrate(ctx context.Context) error {
	var rec R
	if err := t.scoped(ctx).AutoMigrate(&rec); err != nil {
		return fmt.Errorf("failed to migrate table %s: %w", t.name, err)
	}
	return nil
}

func (t table[R]) exists() error {
	if !t.d.hasTable(t.name) {
		return fmt.Errorf("%w: %s in %s", ErrTableMissing, t.name, t.d.path)
	}
	return nil
}

// upsert inserts recs, replacing rows with the same message id.
func (t table[R]) upsert(ctx context.Context, recs []R) error {
	if len(recs) == 0 {
		return nil
	}
	result := t.scoped(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			UpdateAll: true,
		}).
		CreateInBatches(recs, upsertBatchSize)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert into %s: %w", t.name, result.Error)
	}
	return nil
}

func (t table[R]) count(ctx context.Context) (int, error) {
	if err := t.exists(); err != nil {
		return 0, err
	}
	var n int64
	if err := t.scoped(ctx).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.name, err)
	}
	return int(n), nil
}

// each pages through the table in message id order.
func (t table[R]) each(ctx context.Context, batchSize int, fn func([]R) error) error {
	if err := t.exists(); err != nil {
		return err
	}
	if batchSize <= 0 {
		batchSize = 1000
	}

	last := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var recs []R
		err := t.scoped(ctx).
			Where("message_id > ?", last).
			Order("message_id").
			Limit(batchSize).
			Find(&recs).Error
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", t.name, err)
		}
		if len(recs) == 0 {
			return nil
		}
		if err := fn(recs); err != nil {
			return err
		}
		if len(recs) < batchSize {
			return nil
		}
		last = recs[len(recs)-1].key()
	}
}

func (t table[R]) get(ctx context.Context, id string) (R, error) {
	var rec R
	if err := t.exists(); err != nil {
		return rec, err
	}
	err := t.scoped(ctx).Where("message_id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return rec, fmt.Errorf("failed to get %s from %s: %w", id, t.name, err)
	}
	return rec, nil
}

func (t table[R]) list(ctx context.Context, limit, offset int) ([]R, error) {
	if err := t.exists(); err != nil {
		return nil, err
	}
	q := t.scoped(ctx).Order("message_id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var recs []R
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.name, err)
	}
	return recs, nil
}
