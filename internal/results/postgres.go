package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS students (
	roll_no    TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	dob        TEXT NOT NULL DEFAULT '',
	course     TEXT NOT NULL DEFAULT '',
	subjects   JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_students_roll_dob ON students (roll_no, dob);
`

// PostgresRepository persists records in Postgres, subjects as JSONB.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the students table when it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, postgresSchema)
	return err
}

// Upsert replaces every column of the row in a single statement, so
// concurrent saves for one roll number resolve to one complete record.
func (r *PostgresRepository) Upsert(ctx context.Context, rec StudentRecord) (bool, error) {
	if rec.RollNo == "" {
		return false, ErrRollNoRequired
	}
	subjects := rec.Subjects
	if subjects == nil {
		subjects = []SubjectResult{}
	}
	body, err := json.Marshal(subjects)
	if err != nil {
		return false, fmt.Errorf("encode subjects: %w", err)
	}
	var inserted bool
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO students (roll_no, name, dob, course, subjects)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (roll_no) DO UPDATE SET
			name = EXCLUDED.name,
			dob = EXCLUDED.dob,
			course = EXCLUDED.course,
			subjects = EXCLUDED.subjects,
			updated_at = NOW()
		RETURNING (xmax = 0)
	`, rec.RollNo, rec.Name, rec.DOB, rec.Course, string(body)).Scan(&inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (r *PostgresRepository) FindByRollNo(ctx context.Context, rollNo string) (StudentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT roll_no, name, dob, course, subjects
		FROM students WHERE roll_no = $1
	`, rollNo)
	return scanRecord(row)
}

func (r *PostgresRepository) FindByRollNoAndDOB(ctx context.Context, rollNo, dob string) (StudentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT roll_no, name, dob, course, subjects
		FROM students WHERE roll_no = $1 AND dob = $2
	`, rollNo, dob)
	return scanRecord(row)
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n)
	return n, err
}

func scanRecord(row *sql.Row) (StudentRecord, error) {
	var rec StudentRecord
	var subjects []byte
	if err := row.Scan(&rec.RollNo, &rec.Name, &rec.DOB, &rec.Course, &subjects); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StudentRecord{}, ErrNotFound
		}
		return StudentRecord{}, err
	}
	if len(subjects) > 0 {
		if err := json.Unmarshal(subjects, &rec.Subjects); err != nil {
			return StudentRecord{}, fmt.Errorf("decode subjects for %s: %w", rec.RollNo, err)
		}
	}
	return rec, nil
}
