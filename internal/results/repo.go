package results

import (
	"context"
	"sync"
)

// Repository persists student records. Upsert replaces the whole record for
// a roll number atomically and reports whether it was newly created.
type Repository interface {
	Upsert(ctx context.Context, rec StudentRecord) (created bool, err error)
	FindByRollNo(ctx context.Context, rollNo string) (StudentRecord, error)
	FindByRollNoAndDOB(ctx context.Context, rollNo, dob string) (StudentRecord, error)
	Count(ctx context.Context) (int, error)
}

// MemoryRepository keeps records in a map. Useful for development and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]StudentRecord
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]StudentRecord)}
}

func (m *MemoryRepository) Upsert(_ context.Context, rec StudentRecord) (bool, error) {
	if rec.RollNo == "" {
		return false, ErrRollNoRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.records[rec.RollNo]
	m.records[rec.RollNo] = rec.Clone()
	return !exists, nil
}

func (m *MemoryRepository) FindByRollNo(_ context.Context, rollNo string) (StudentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[rollNo]
	if !ok {
		return StudentRecord{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *MemoryRepository) FindByRollNoAndDOB(_ context.Context, rollNo, dob string) (StudentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[rollNo]
	if !ok || rec.DOB != dob {
		return StudentRecord{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *MemoryRepository) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}
