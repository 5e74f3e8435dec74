package results

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"resultportal/internal/queue"
)

// SaveOutcome tells whether a save created or replaced a record.
type SaveOutcome string

const (
	Saved   SaveOutcome = "Saved Successfully"
	Updated SaveOutcome = "Updated Successfully"
)

// Observer receives save and lookup outcomes, e.g. for metrics.
type Observer interface {
	RecordSaved(outcome SaveOutcome)
	Lookup(found bool)
}

// Service coordinates saves and student lookups over a Repository.
type Service struct {
	repo     Repository
	events   queue.Publisher
	observer Observer
	logger   *zap.Logger
}

// NewService creates a service backed by a repository. events may be nil.
func NewService(repo Repository, events queue.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, events: events, observer: nopObserver{}, logger: logger}
}

// WithObserver attaches an outcome observer.
func (s *Service) WithObserver(o Observer) *Service {
	if o != nil {
		s.observer = o
	}
	return s
}

// Save fully replaces the record for rec.RollNo, recomputing every status.
func (s *Service) Save(ctx context.Context, rec StudentRecord, by string) (SaveOutcome, error) {
	rec.RollNo = strings.TrimSpace(rec.RollNo)
	if rec.RollNo == "" {
		return "", ErrRollNoRequired
	}
	rec = rec.WithDerivedStatus()

	created, err := s.repo.Upsert(ctx, rec)
	if err != nil {
		s.logger.Error("error saving student", zap.String("roll_no", rec.RollNo), zap.Error(err))
		return "", err
	}
	outcome := Updated
	if created {
		outcome = Saved
	}
	s.observer.RecordSaved(outcome)

	evt := queue.RecordSaved{RollNo: rec.RollNo, Created: created, Subjects: len(rec.Subjects), By: by, At: time.Now().UTC()}
	if err := queue.PublishJSON(ctx, s.events, queue.TypeRecordSaved, evt); err != nil {
		s.logger.Warn("publish record.saved failed", zap.String("roll_no", rec.RollNo), zap.Error(err))
	}
	return outcome, nil
}

// Lookup finds a record by roll number and date of birth. A missing record
// is reported as ok=false, not as an error. Statuses are recomputed on read.
func (s *Service) Lookup(ctx context.Context, rollNo, dob string) (StudentRecord, bool, error) {
	rec, err := s.repo.FindByRollNoAndDOB(ctx, rollNo, dob)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.observer.Lookup(false)
			return StudentRecord{}, false, nil
		}
		s.logger.Error("error fetching result", zap.String("roll_no", rollNo), zap.Error(err))
		return StudentRecord{}, false, err
	}
	s.observer.Lookup(true)
	return rec.WithDerivedStatus(), true, nil
}

type nopObserver struct{}

func (nopObserver) RecordSaved(SaveOutcome) {}
func (nopObserver) Lookup(bool)             {}
