package store

import (
	"context"

	"github.com/jmylchreest/mailrefyne/pkg/mailclean"
)

// RawTable is a table of imported messages. It is a mailclean.Source.
type RawTable struct {
	t table[rawRecord]
}

var _ mailclean.Source = (*RawTable)(nil)

// Raw returns a handle to the raw table called name. The table is not
// created until Migrate.
func (d *DB) Raw(name string) (*RawTable, error) {
	if err := checkIdentifier("table", name); err != nil {
		return nil, err
	}
	return &RawTable{t: table[rawRecord]{d: d, name: name}}, nil
}

// Name returns the table name.
func (r *RawTable) Name() string {
	return r.t.name
}

// Migrate creates the table if needed.
func (r *RawTable) Migrate(ctx context.Context) error {
	return r.t.migrate(ctx)
}

// UpsertRaw stores msgs, replacing messages with the same id.
func (r *RawTable) UpsertRaw(ctx context.Context, msgs []mailclean.RawMessage) error {
	recs := make([]rawRecord, len(msgs))
	for i, m := range msgs {
		recs[i] = newRawRecord(m)
	}
	return r.t.upsert(ctx, recs)
}

// Count returns the number of messages. It fails with ErrTableMissing if
// the table does not exist.
func (r *RawTable) Count(ctx context.Context) (int, error) {
	return r.t.count(ctx)
}

// Each yields every message in id order, batchSize at a time.
func (r *RawTable) Each(ctx context.Context, batchSize int, fn func([]mailclean.RawMessage) error) error {
	return r.t.each(ctx, batchSize, func(recs []rawRecord) error {
		msgs := make([]mailclean.RawMessage, len(recs))
		for i, rec := range recs {
			msgs[i] = rec.message()
		}
		return fn(msgs)
	})
}

// Get returns the message with id.
func (r *RawTable) Get(ctx context.Context, id string) (mailclean.RawMessage, error) {
	rec, err := r.t.get(ctx, id)
	if err != nil {
		return mailclean.RawMessage{}, err
	}
	return rec.message(), nil
}

// RebuildIndex indexes subject and payload.
func (r *RawTable) RebuildIndex(ctx context.Context, tokenizer string) error {
	return r.t.d.rebuildIndex(ctx, r.t.name, "payload", tokenizer)
}

// Search runs an FTS query over subject and payload.
func (r *RawTable) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	return r.t.d.search(ctx, r.t.name, query, limit)
}
