package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/jmylchreest/mailrefyne/pkg/mailclean"
)

// StoreTestSuite exercises raw and cleaned tables on an in-memory database.
type StoreTestSuite struct {
	suite.Suite
	db      *DB
	raw     *RawTable
	cleaned *CleanedTable
	ctx     context.Context
}

func (s *StoreTestSuite) SetupTest() {
	db, err := Open(":memory:", Options{})
	require.NoError(s.T(), err)

	s.db = db
	s.ctx = context.Background()

	s.raw, err = db.Raw(DefaultTable)
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.raw.Migrate(s.ctx))

	s.cleaned, err = db.Cleaned("cleaned")
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.cleaned.Migrate(s.ctx))
}

func (s *StoreTestSuite) TearDownTest() {
	require.NoError(s.T(), s.db.Close())
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func rawMessage(id, subject, payload string) mailclean.RawMessage {
	return mailclean.RawMessage{
		ID: id,
		Headers: mailclean.Headers{
			{Name: "message-id", Value: id},
			{Name: "subject", Value: subject},
			{Name: "from", Value: "jane@example.com"},
			{Name: "received", Value: "by a\nby b"},
		},
		Payload: payload,
	}
}

// ==================== Raw table ====================

func (s *StoreTestSuite) TestUpsertRaw_RoundTrip() {
	msg := rawMessage("<a@x>", "Budget", "Please review the budget.")
	require.NoError(s.T(), s.raw.UpsertRaw(s.ctx, []mailclean.RawMessage{msg}))

	got, err := s.raw.Get(s.ctx, "<a@x>")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), msg, got)
	assert.Equal(s.T(), "by a\nby b", got.Headers.Get("received"))
}

func (s *StoreTestSuite) TestUpsertRaw_ReplacesByID() {
	require.NoError(s.T(), s.raw.UpsertRaw(s.ctx, []mailclean.RawMessage{rawMessage("<a@x>", "v1", "first")}))
	require.NoError(s.T(), s.raw.UpsertRaw(s.ctx, []mailclean.RawMessage{rawMessage("<a@x>", "v2", "second")}))

	n, err := s.raw.Count(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, n)

	got, err := s.raw.Get(s.ctx, "<a@x>")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "second", got.Payload)
}

func (s *StoreTestSuite) TestUpsertRaw_Empty() {
	assert.NoError(s.T(), s.raw.UpsertRaw(s.ctx, nil))
}

func (s *StoreTestSuite) TestEach_PagesInIDOrder() {
	msgs := make([]mailclean.RawMessage, 0, 250)
	for i := 249; i >= 0; i-- {
		msgs = append(msgs, rawMessage(fmt.Sprintf("m%04d", i), "s", "p"))
	}
	require.NoError(s.T(), s.raw.UpsertRaw(s.ctx, msgs))

	var ids []string
	var sizes []int
	err := s.raw.Each(s.ctx, 100, func(batch []mailclean.RawMessage) error {
		sizes = append(sizes, len(batch))
		for _, m := range batch {
			ids = append(ids, m.ID)
		}
		return nil
	})
	require.NoError(s.T(), err)

	assert.Equal(s.T(), []int{100, 100, 50}, sizes)
	require.Len(s.T(), ids, 250)
	assert.Equal(s.T(), "m0000", ids[0])
	assert.Equal(s.T(), "m0249", ids[249])
}

func (s *StoreTestSuite) TestEach_StopsOnError() {
	require.NoError(s.T(), s.raw.UpsertRaw(s.ctx, []mailclean.RawMessage{rawMessage("a", "", ""), rawMessage("b", "", "")}))
	stop := errors.New("stop")

	calls := 0
	err := s.raw.Each(s.ctx, 1, func([]mailclean.RawMessage) error {
		calls++
		return stop
	})
	assert.ErrorIs(s.T(), err, stop)
	assert.Equal(s.T(), 1, calls)
}

func (s *StoreTestSuite) TestGet_NotFound() {
	_, err := s.raw.Get(s.ctx, "missing")
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *StoreTestSuite) TestMissingTable() {
	other, err := s.db.Raw("nope")
	require.NoError(s.T(), err)

	_, err = other.Count(s.ctx)
	assert.ErrorIs(s.T(), err, ErrTableMissing)

	err = other.Each(s.ctx, 10, func([]mailclean.RawMessage) error { return nil })
	assert.ErrorIs(s.T(), err, ErrTableMissing)
}

func (s *StoreTestSuite) TestInvalidNames() {
	_, err := s.db.Raw("messages; DROP TABLE x")
	assert.ErrorIs(s.T(), err, ErrInvalidName)

	_, err = s.db.Cleaned("")
	assert.ErrorIs(s.T(), err, ErrInvalidName)

	err = s.raw.RebuildIndex(s.ctx, "simple)")
	assert.ErrorIs(s.T(), err, ErrInvalidName)
}

func (s *StoreTestSuite) TestRawSearch() {
	require.NoError(s.T(), s.raw.UpsertRaw(s.ctx, []mailclean.RawMessage{
		rawMessage("a", "Quarterly budget", "Numbers attached"),
		rawMessage("b", "Lunch", "Pizza on friday"),
	}))
	require.NoError(s.T(), s.raw.RebuildIndex(s.ctx, ""))

	hits, err := s.raw.Search(s.ctx, "pizza", 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), hits, 1)
	assert.Equal(s.T(), "b", hits[0].MessageID)
	assert.Contains(s.T(), hits[0].Snippet, "[Pizza]")
}

// ==================== Cleaned table ====================

func cleanedMessage(id, raw, clean string) mailclean.CleanedMessage {
	return mailclean.CleanedMessage{
		ID:        id,
		Headers:   mailclean.Headers{{Name: "subject", Value: "Subject " + id}},
		BodyRaw:   raw,
		BodyClean: clean,
		Stats:     mailclean.NewCleaningStats(len(raw), len(clean)),
		Warnings:  []mailclean.Warning{{Stage: mailclean.StageQuote, Message: "ignored"}},
	}
}

func (s *StoreTestSuite) TestUpsertCleaned_RoundTrip() {
	msg := cleanedMessage("c1", "Hello\n\n-- \nsig", "Hello")
	require.NoError(s.T(), s.cleaned.UpsertCleaned(s.ctx, []mailclean.CleanedMessage{msg}))

	got, err := s.cleaned.Get(s.ctx, "c1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), msg.BodyRaw, got.BodyRaw)
	assert.Equal(s.T(), msg.BodyClean, got.BodyClean)
	assert.Equal(s.T(), msg.Stats, got.Stats)
	assert.Equal(s.T(), msg.Headers, got.Headers)
	assert.Empty(s.T(), got.Warnings)
}

func (s *StoreTestSuite) TestCleaned_ListAndCount() {
	var msgs []mailclean.CleanedMessage
	for i := 0; i < 5; i++ {
		msgs = append(msgs, cleanedMessage(fmt.Sprintf("c%d", i), "raw", "clean"))
	}
	require.NoError(s.T(), s.cleaned.UpsertCleaned(s.ctx, msgs))

	n, err := s.cleaned.Count(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 5, n)

	page, err := s.cleaned.List(s.ctx, 2, 1)
	require.NoError(s.T(), err)
	require.Len(s.T(), page, 2)
	assert.Equal(s.T(), "c1", page[0].ID)
	assert.Equal(s.T(), "c2", page[1].ID)

	all, err := s.cleaned.List(s.ctx, 0, 0)
	require.NoError(s.T(), err)
	assert.Len(s.T(), all, 5)
}

func (s *StoreTestSuite) TestCleanedSearch_IndexesCleanBodyOnly() {
	require.NoError(s.T(), s.cleaned.UpsertCleaned(s.ctx, []mailclean.CleanedMessage{
		cleanedMessage("c1", "Invoice\n\nSent from my iPhone", "Invoice"),
	}))
	require.NoError(s.T(), s.cleaned.RebuildIndex(s.ctx, "simple"))

	hits, err := s.cleaned.Search(s.ctx, "iphone", 10)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), hits)

	hits, err = s.cleaned.Search(s.ctx, "invoice", 10)
	require.NoError(s.T(), err)
	assert.Len(s.T(), hits, 1)

	// Rebuilding replaces the index rather than duplicating rows.
	require.NoError(s.T(), s.cleaned.RebuildIndex(s.ctx, "simple"))
	hits, err = s.cleaned.Search(s.ctx, "invoice", 10)
	require.NoError(s.T(), err)
	assert.Len(s.T(), hits, 1)
}

func (s *StoreTestSuite) TestSearch_WithoutIndex() {
	_, err := s.cleaned.Search(s.ctx, "anything", 10)
	assert.ErrorIs(s.T(), err, ErrTableMissing)
}

func (s *StoreTestSuite) TestTables() {
	require.NoError(s.T(), s.raw.RebuildIndex(s.ctx, ""))

	tables, err := s.db.Tables()
	require.NoError(s.T(), err)
	assert.ElementsMatch(s.T(), []string{"messages", "cleaned"}, tables)
}

// ==================== Pipeline integration ====================

func (s *StoreTestSuite) TestPipeline_RawToCleaned() {
	require.NoError(s.T(), s.raw.UpsertRaw(s.ctx, []mailclean.RawMessage{
		rawMessage("a", "One", "First message.\n\n-- \nJane"),
		rawMessage("b", "Two", "<p>Second <b>message</b>.</p>"),
	}))

	p, err := mailclean.NewPipeline(mailclean.DefaultConfig(), mailclean.PipelineOptions{Workers: 2, BatchSize: 1})
	require.NoError(s.T(), err)

	summary, err := p.Run(s.ctx, s.raw, s.cleaned)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, summary.Messages)

	a, err := s.cleaned.Get(s.ctx, "a")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "First message.", a.BodyClean)
	assert.Equal(s.T(), "One", a.Headers.Get("subject"))

	b, err := s.cleaned.Get(s.ctx, "b")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Second **message**.", b.BodyClean)
}
