package store

import (
	"time"

	"github.com/jmylchreest/mailrefyne/pkg/mailclean"
)

// rawRecord is a row of a raw table. Headers are kept whole as JSON; the
// few used for listing and search are copied into their own columns.
type rawRecord struct {
	MessageID  string            `gorm:"column:message_id;primaryKey"`
	Subject    string            `gorm:"column:subject"`
	Sender     string            `gorm:"column:sender"`
	Date       string            `gorm:"column:date"`
	Headers    mailclean.Headers `gorm:"column:headers;type:text;serializer:json"`
	Payload    string            `gorm:"column:payload"`
	ImportedAt time.Time         `gorm:"column:imported_at;autoUpdateTime"`
}

// cleanedRecord is a row of a cleaned table.
type cleanedRecord struct {
	MessageID string                  `gorm:"column:message_id;primaryKey"`
	Subject   string                  `gorm:"column:subject"`
	Sender    string                  `gorm:"column:sender"`
	Date      string                  `gorm:"column:date"`
	Headers   mailclean.Headers       `gorm:"column:headers;type:text;serializer:json"`
	BodyRaw   string                  `gorm:"column:body_raw"`
	BodyClean string                  `gorm:"column:body_clean"`
	Stats     mailclean.CleaningStats `gorm:"column:cleaning_stats;type:text;serializer:json"`
	CleanedAt time.Time               `gorm:"column:cleaned_at;autoUpdateTime"`
}

func newRawRecord(m mailclean.RawMessage) rawRecord {
	return rawRecord{
		MessageID: m.ID,
		Subject:   m.Headers.Get("subject"),
		Sender:    m.Headers.Get("from"),
		Date:      m.Headers.Get("date"),
		Headers:   m.Headers,
		Payload:   m.Payload,
	}
}

func (r rawRecord) message() mailclean.RawMessage {
	return mailclean.RawMessage{
		ID:      r.MessageID,
		Headers: r.Headers,
		Payload: r.Payload,
	}
}

func newCleanedRecord(m mailclean.CleanedMessage) cleanedRecord {
	return cleanedRecord{
		MessageID: m.ID,
		Subject:   m.Headers.Get("subject"),
		Sender:    m.Headers.Get("from"),
		Date:      m.Headers.Get("date"),
		Headers:   m.Headers,
		BodyRaw:   m.BodyRaw,
		BodyClean: m.BodyClean,
		Stats:     m.Stats,
	}
}

func (r cleanedRecord) message() mailclean.CleanedMessage {
	return mailclean.CleanedMessage{
		ID:        r.MessageID,
		Headers:   r.Headers,
		BodyRaw:   r.BodyRaw,
		BodyClean: r.BodyClean,
		Stats:     r.Stats,
	}
}

func (r rawRecord) key() string     { return r.MessageID }
func (r cleanedRecord) key() string { return r.MessageID }
