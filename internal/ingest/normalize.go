package ingest

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"resultportal/internal/grade"
	"resultportal/internal/results"
)

// MaxSubjects is the number of subject column slots read per row.
const MaxSubjects = 25

var (
	// ErrBlankRow marks a row whose first cell is empty. Such rows are
	// skipped silently.
	ErrBlankRow = errors.New("blank row")
	// ErrMalformedRow marks a row that cannot produce a record.
	ErrMalformedRow = errors.New("malformed row")
)

// serialEpoch is day zero of spreadsheet date serials.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Normalizer turns data rows into records using one sheet's header row.
type Normalizer struct {
	columns map[string]int
}

// NewNormalizer indexes the header row. Names match case-insensitively
// after trimming; the first occurrence of a repeated name wins.
func NewNormalizer(header []Cell) *Normalizer {
	cols := make(map[string]int, len(header))
	for i, c := range header {
		name := strings.ToLower(c.String())
		if name == "" {
			continue
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return &Normalizer{columns: cols}
}

func (n *Normalizer) cell(row []Cell, names ...string) Cell {
	for _, name := range names {
		if i, ok := n.columns[strings.ToLower(name)]; ok && i < len(row) {
			return row[i]
		}
	}
	return Cell{}
}

// Normalize converts one data row into a canonical record. It returns
// ErrBlankRow when the first cell is empty and ErrMalformedRow when the row
// has no usable roll number.
func (n *Normalizer) Normalize(row []Cell) (results.StudentRecord, error) {
	if len(row) == 0 || row[0].IsEmpty() {
		return results.StudentRecord{}, ErrBlankRow
	}
	if _, ok := n.columns["rollno"]; !ok {
		return results.StudentRecord{}, fmt.Errorf("%w: no rollNo column", ErrMalformedRow)
	}
	rollNo := n.cell(row, "rollNo").String()
	if rollNo == "" {
		return results.StudentRecord{}, fmt.Errorf("%w: empty roll number", ErrMalformedRow)
	}

	rec := results.StudentRecord{
		RollNo:   rollNo,
		Name:     n.cell(row, "name").String(),
		DOB:      NormalizeDOB(n.cell(row, "dob", "dateOfBirth")),
		Course:   n.cell(row, "course").String(),
		Subjects: []results.SubjectResult{},
	}
	for i := 1; i <= MaxSubjects; i++ {
		code := n.cell(row, fmt.Sprintf("subjectCode%d", i))
		sem := n.cell(row, fmt.Sprintf("subjectSemester%d", i))
		g := n.cell(row, fmt.Sprintf("subjectGrade%d", i))
		if code.IsEmpty() || sem.IsEmpty() || g.IsEmpty() {
			continue
		}
		rec.Subjects = append(rec.Subjects, results.SubjectResult{
			Code:     code.String(),
			Semester: sem.String(),
			Grade:    g.String(),
			Status:   grade.Classify(g.String()),
		})
	}
	return rec, nil
}

// NormalizeDOB renders a date-of-birth cell as YYYY-MM-DD. Serial numbers
// count days from 1899-12-30, native dates are formatted directly, and text
// in DD/MM/YYYY form is reordered. Any other text is returned unchanged.
func NormalizeDOB(c Cell) string {
	switch c.Kind {
	case Number:
		days := int(math.Trunc(c.Number))
		return serialEpoch.AddDate(0, 0, days).Format(time.DateOnly)
	case Time:
		return c.Time.Format(time.DateOnly)
	case Text:
		if t, err := time.Parse("02/01/2006", strings.TrimSpace(c.Text)); err == nil {
			return t.Format(time.DateOnly)
		}
		return c.Text
	case Bool:
		return c.String()
	}
	return ""
}
