package results

import (
	"errors"

	"resultportal/internal/grade"
)

// ErrNotFound is returned by repositories when no record matches.
var ErrNotFound = errors.New("no result found")

// ErrRollNoRequired is returned when a record has no roll number.
var ErrRollNoRequired = errors.New("roll number required")

// SubjectResult is one graded subject. Status is derived from Grade and any
// stored or client-supplied value is ignored.
type SubjectResult struct {
	Code     string       `json:"code" bson:"code"`
	Semester string       `json:"semester" bson:"semester"`
	Grade    string       `json:"grade" bson:"grade"`
	Status   grade.Status `json:"status,omitempty" bson:"status"`
}

// StudentRecord is the canonical result record, keyed by RollNo.
type StudentRecord struct {
	RollNo   string          `json:"rollNo" bson:"rollNo"`
	Name     string          `json:"name" bson:"name"`
	DOB      string          `json:"dob" bson:"dob"`
	Course   string          `json:"course" bson:"course"`
	Subjects []SubjectResult `json:"subjects" bson:"subjects"`
}

// WithDerivedStatus returns a copy whose subject statuses are recomputed
// from their grades.
func (r StudentRecord) WithDerivedStatus() StudentRecord {
	out := r
	out.Subjects = make([]SubjectResult, len(r.Subjects))
	for i, s := range r.Subjects {
		s.Status = grade.Classify(s.Grade)
		out.Subjects[i] = s
	}
	return out
}

// Clone returns a deep copy.
func (r StudentRecord) Clone() StudentRecord {
	out := r
	if r.Subjects != nil {
		out.Subjects = make([]SubjectResult, len(r.Subjects))
		copy(out.Subjects, r.Subjects)
	}
	return out
}
