package ingest

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resultportal/internal/results"
)

// Summary reports what an import did.
type Summary struct {
	BatchID      string `json:"batch_id"`
	Sheets       int    `json:"sheets"`
	RowsUpserted int    `json:"rows_upserted"`
	RowsSkipped  int    `json:"rows_skipped"`
	RowsFailed   int    `json:"rows_failed"`
}

// Observer receives per-row outcomes, e.g. for metrics.
type Observer interface {
	RowIngested(result string)
}

// Pipeline imports workbooks into a results repository.
type Pipeline struct {
	repo     results.Repository
	observer Observer
	logger   *zap.Logger
}

// NewPipeline creates a pipeline writing to repo.
func NewPipeline(repo results.Repository, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{repo: repo, observer: nopObserver{}, logger: logger}
}

// WithObserver attaches a row observer.
func (p *Pipeline) WithObserver(o Observer) *Pipeline {
	if o != nil {
		p.observer = o
	}
	return p
}

// IngestReader opens the workbook in r and ingests it. Nothing is written
// when the workbook cannot be read.
func (p *Pipeline) IngestReader(ctx context.Context, r io.Reader) (Summary, error) {
	wb, err := OpenWorkbook(r)
	if err != nil {
		p.logger.Error("error processing excel", zap.Error(err))
		return Summary{}, err
	}
	return p.Ingest(ctx, wb)
}

// Ingest upserts every record of every sheet. Row 1 of each sheet is the
// header. Blank and malformed rows are skipped; a failed upsert is counted
// and the import continues. Only context cancellation stops it early.
func (p *Pipeline) Ingest(ctx context.Context, wb *Workbook) (Summary, error) {
	sum := Summary{BatchID: uuid.NewString()}
	log := p.logger.With(zap.String("batch_id", sum.BatchID))

	for _, sheet := range wb.Sheets {
		sum.Sheets++
		if len(sheet.Rows) == 0 {
			continue
		}
		norm := NewNormalizer(sheet.Rows[0])
		for i, row := range sheet.Rows[1:] {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			rowNum := i + 2
			rec, err := norm.Normalize(row)
			if err != nil {
				sum.RowsSkipped++
				p.observer.RowIngested("skipped")
				if !errors.Is(err, ErrBlankRow) {
					log.Warn("skipping row", zap.String("sheet", sheet.Name), zap.Int("row", rowNum), zap.Error(err))
				}
				continue
			}
			if _, err := p.repo.Upsert(ctx, rec); err != nil {
				if ctx.Err() != nil {
					return sum, ctx.Err()
				}
				sum.RowsFailed++
				p.observer.RowIngested("failed")
				log.Error("upsert failed", zap.String("sheet", sheet.Name), zap.Int("row", rowNum),
					zap.String("roll_no", rec.RollNo), zap.Error(err))
				continue
			}
			sum.RowsUpserted++
			p.observer.RowIngested("upserted")
		}
	}
	log.Info("excel import finished",
		zap.Int("sheets", sum.Sheets),
		zap.Int("upserted", sum.RowsUpserted),
		zap.Int("skipped", sum.RowsSkipped),
		zap.Int("failed", sum.RowsFailed))
	return sum, nil
}

type nopObserver struct{}

func (nopObserver) RowIngested(string) {}
