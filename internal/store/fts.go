package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// DefaultTokenizer is the FTS tokenizer used when none is given.
const DefaultTokenizer = "simple"

var ftsShadowRegex = regexp.MustCompile(`_fts(?:_(?:content|segments|segdir|docsize|stat))?$`)

func ftsTable(table string) string {
	return table + "_fts"
}

// rebuildIndex replaces the FTS4 index of table with one over the
// message id, subject and body column.
func (d *DB) rebuildIndex(ctx context.Context, table, bodyColumn, tokenizer string) error {
	if tokenizer == "" {
		tokenizer = DefaultTokenizer
	}
	if err := checkIdentifier("tokenizer", tokenizer); err != nil {
		return err
	}
	fts := ftsTable(table)

	statements := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %q`, fts),
		fmt.Sprintf(`CREATE VIRTUAL TABLE %q USING fts4(message_id, subject, body, notindexed=message_id, tokenize=%s)`, fts, tokenizer),
		fmt.Sprintf(`INSERT INTO %q (message_id, subject, body) SELECT message_id, subject, %s FROM %q`, fts, bodyColumn, table),
	}

	tx := d.db.WithContext(ctx).Begin()
	for _, stmt := range statements {
		if err := tx.Exec(stmt).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to rebuild index %s: %w", fts, err)
		}
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to rebuild index %s: %w", fts, err)
	}
	return nil
}

// Hit is one search result.
type Hit struct {
	MessageID string `json:"message_id" yaml:"message_id"`
	Subject   string `json:"subject" yaml:"subject"`
	Snippet   string `json:"snippet" yaml:"snippet"`
}

// search runs an FTS MATCH query against the index of table.
func (d *DB) search(ctx context.Context, table, query string, limit int) ([]Hit, error) {
	fts := ftsTable(table)
	if !d.hasTable(fts) {
		return nil, fmt.Errorf("%w: %s in %s (rebuild the index first)", ErrTableMissing, fts, d.path)
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	sql := fmt.Sprintf(
		`SELECT message_id, subject, snippet(%[1]q, '[', ']', '...', 2, 16) AS snippet FROM %[1]q WHERE %[1]q MATCH ? LIMIT ?`,
		fts,
	)
	var hits []Hit
	if err := d.db.WithContext(ctx).Raw(sql, query, limit).Scan(&hits).Error; err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", fts, err)
	}
	return hits, nil
}
