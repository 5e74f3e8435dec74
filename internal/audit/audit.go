// Package audit consumes portal events and writes them to the structured log.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"resultportal/internal/queue"
)

// Handle decodes one event and logs it.
func Handle(logger *zap.Logger, msg queue.Message) error {
	switch msg.Type {
	case queue.TypeRecordSaved:
		var evt queue.RecordSaved
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		logger.Info("record saved",
			zap.String("roll_no", evt.RollNo),
			zap.Bool("created", evt.Created),
			zap.Int("subjects", evt.Subjects),
			zap.String("by", evt.By),
			zap.Time("at", evt.At))
	case queue.TypeImportCompleted:
		var evt queue.ImportCompleted
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		logger.Info("import completed",
			zap.String("batch_id", evt.BatchID),
			zap.String("filename", evt.Filename),
			zap.Int("sheets", evt.Sheets),
			zap.Int("upserted", evt.RowsUpserted),
			zap.Int("skipped", evt.RowsSkipped),
			zap.Int("failed", evt.RowsFailed),
			zap.String("archive_url", evt.ArchiveURL),
			zap.String("by", evt.By),
			zap.Time("at", evt.At))
	default:
		return fmt.Errorf("unknown event type %q", msg.Type)
	}
	return nil
}

// Run consumes q until ctx is done. Bad events are logged and dropped.
func Run(ctx context.Context, q queue.Queue, logger *zap.Logger) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init failed: %w", err)
	}
	logger.Info("audit consumer started")
	for msg := range messages {
		if err := Handle(logger, msg); err != nil {
			logger.Warn("dropping event", zap.Error(err))
		}
	}
	logger.Info("audit consumer stopped")
	return nil
}
