package store

import (
	"context"

	"github.com/jmylchreest/mailrefyne/pkg/mailclean"
)

// CleanedTable is a table of cleaned messages. It is a mailclean.Sink.
type CleanedTable struct {
	t table[cleanedRecord]
}

var _ mailclean.Sink = (*CleanedTable)(nil)

// Cleaned returns a handle to the cleaned table called name. The table is
// not created until Migrate.
func (d *DB) Cleaned(name string) (*CleanedTable, error) {
	if err := checkIdentifier("table", name); err != nil {
		return nil, err
	}
	return &CleanedTable{t: table[cleanedRecord]{d: d, name: name}}, nil
}

// Name returns the table name.
func (c *CleanedTable) Name() string {
	return c.t.name
}

// Migrate creates the table if needed.
func (c *CleanedTable) Migrate(ctx context.Context) error {
	return c.t.migrate(ctx)
}

// UpsertCleaned stores msgs, replacing messages with the same id. Warnings
// are not stored.
func (c *CleanedTable) UpsertCleaned(ctx context.Context, msgs []mailclean.CleanedMessage) error {
	recs := make([]cleanedRecord, len(msgs))
	for i, m := range msgs {
		recs[i] = newCleanedRecord(m)
	}
	return c.t.upsert(ctx, recs)
}

// Count returns the number of messages.
func (c *CleanedTable) Count(ctx context.Context) (int, error) {
	return c.t.count(ctx)
}

// Each yields every message in id order, batchSize at a time.
func (c *CleanedTable) Each(ctx context.Context, batchSize int, fn func([]mailclean.CleanedMessage) error) error {
	return c.t.each(ctx, batchSize, func(recs []cleanedRecord) error {
		return fn(cleanedMessages(recs))
	})
}

// Get returns the message with id, or ErrNotFound.
func (c *CleanedTable) Get(ctx context.Context, id string) (mailclean.CleanedMessage, error) {
	rec, err := c.t.get(ctx, id)
	if err != nil {
		return mailclean.CleanedMessage{}, err
	}
	return rec.message(), nil
}

// List returns up to limit messages in id order after skipping offset.
// A limit of zero means no limit.
func (c *CleanedTable) List(ctx context.Context, limit, offset int) ([]mailclean.CleanedMessage, error) {
	recs, err := c.t.list(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return cleanedMessages(recs), nil
}

// RebuildIndex indexes subject and the cleaned body only.
func (c *CleanedTable) RebuildIndex(ctx context.Context, tokenizer string) error {
	return c.t.d.rebuildIndex(ctx, c.t.name, "body_clean", tokenizer)
}

// Search runs an FTS query over subject and the cleaned body.
func (c *CleanedTable) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	return c.t.d.search(ctx, c.t.name, query, limit)
}

func cleanedMessages(recs []cleanedRecord) []mailclean.CleanedMessage {
	msgs := make([]mailclean.CleanedMessage, len(recs))
	for i, rec := range recs {
		msgs[i] = rec.message()
	}
	return msgs
}
