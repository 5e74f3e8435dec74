package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Event types published by the service.
const (
	TypeRecordSaved     = "record.saved"
	TypeImportCompleted = "import.completed"
)

// RecordSaved is emitted after a single record save.
type RecordSaved struct {
	RollNo   string    `json:"roll_no"`
	Created  bool      `json:"created"`
	Subjects int       `json:"subjects"`
	By       string    `json:"by,omitempty"`
	At       time.Time `json:"at"`
}

// ImportCompleted is emitted after a workbook import.
type ImportCompleted struct {
	BatchID      string    `json:"batch_id"`
	Filename     string    `json:"filename,omitempty"`
	Sheets       int       `json:"sheets"`
	RowsUpserted int       `json:"rows_upserted"`
	RowsSkipped  int       `json:"rows_skipped"`
	RowsFailed   int       `json:"rows_failed"`
	ArchiveURL   string    `json:"archive_url,omitempty"`
	By           string    `json:"by,omitempty"`
	At           time.Time `json:"at"`
}

// Publisher is the publishing half of a Queue.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// PublishJSON encodes v and publishes it under typ. A nil publisher is a no-op.
func PublishJSON(ctx context.Context, p Publisher, typ string, v any) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, Message{Type: typ, Body: body})
}
