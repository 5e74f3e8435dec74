package ingest

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resultportal/internal/grade"
)

func header(names ...string) []Cell {
	out := make([]Cell, len(names))
	for i, n := range names {
		out[i] = TextCell(n)
	}
	return out
}

func TestNormalizeDOB(t *testing.T) {
	cases := []struct {
		name string
		in   Cell
		want string
	}{
		{"serial", NumberCell(36526), "2000-01-01"},
		{"serial with time", NumberCell(36526.75), "2000-01-01"},
		{"serial epoch", NumberCell(0), "1899-12-30"},
		{"native date", TimeCell(time.Date(1999, 7, 4, 0, 0, 0, 0, time.UTC)), "1999-07-04"},
		{"native datetime", TimeCell(time.Date(1999, 7, 4, 13, 30, 0, 0, time.UTC)), "1999-07-04"},
		{"dd/mm/yyyy", TextCell("01/01/2000"), "2000-01-01"},
		{"dd/mm/yyyy day first", TextCell("31/12/2001"), "2001-12-31"},
		{"padded text", TextCell(" 05/06/2002 "), "2002-06-05"},
		{"iso text kept", TextCell("2000-01-01"), "2000-01-01"},
		{"garbage kept verbatim", TextCell("not-a-date"), "not-a-date"},
		{"single digit kept verbatim", TextCell("1/1/2000"), "1/1/2000"},
		{"impossible date kept verbatim", TextCell("31/02/2000"), "31/02/2000"},
		{"empty", Cell{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeDOB(tc.in))
		})
	}
}

func TestNormalizeRow(t *testing.T) {
	n := NewNormalizer(header("rollNo", "name", "dob", "course",
		"subjectCode1", "subjectSemester1", "subjectGrade1",
		"subjectCode2", "subjectSemester2", "subjectGrade2",
		"subjectCode3", "subjectSemester3", "subjectGrade3"))

	rec, err := n.Normalize([]Cell{
		NumberCell(1001), TextCell("Asha"), NumberCell(36526), TextCell("BSc"),
		TextCell("CS101"), NumberCell(1), TextCell("a+"),
		TextCell("CS102"), NumberCell(1), TextCell("F"),
		TextCell("CS103"), Cell{}, TextCell("O"),
	})
	require.NoError(t, err)
	assert.Equal(t, "1001", rec.RollNo)
	assert.Equal(t, "Asha", rec.Name)
	assert.Equal(t, "2000-01-01", rec.DOB)
	assert.Equal(t, "BSc", rec.Course)
	require.Len(t, rec.Subjects, 2, "slot 3 has no semester")
	assert.Equal(t, "CS101", rec.Subjects[0].Code)
	assert.Equal(t, "1", rec.Subjects[0].Semester)
	assert.Equal(t, "a+", rec.Subjects[0].Grade)
	assert.Equal(t, grade.Pass, rec.Subjects[0].Status)
	assert.Equal(t, grade.Fail, rec.Subjects[1].Status)
}

func TestNormalizeHeaderCaseAndWhitespace(t *testing.T) {
	n := NewNormalizer(header(" ROLLNO ", "Name", "DateOfBirth", "COURSE", "SubjectCode1", "subjectsemester1", "SUBJECTGRADE1"))

	rec, err := n.Normalize([]Cell{
		TextCell("R-7"), TextCell("Ravi"), TextCell("02/03/2001"), TextCell("BCom"),
		TextCell("AC1"), TextCell("II"), TextCell("b"),
	})
	require.NoError(t, err)
	assert.Equal(t, "R-7", rec.RollNo)
	assert.Equal(t, "2001-03-02", rec.DOB)
	require.Len(t, rec.Subjects, 1)
	assert.Equal(t, grade.Pass, rec.Subjects[0].Status)
}

func TestNormalizeIgnoresSheetStatusColumn(t *testing.T) {
	n := NewNormalizer(header("rollNo", "subjectCode1", "subjectSemester1", "subjectGrade1", "subjectStatus1"))

	rec, err := n.Normalize([]Cell{TextCell("R1"), TextCell("X"), TextCell("1"), TextCell("F"), TextCell("Pass")})
	require.NoError(t, err)
	require.Len(t, rec.Subjects, 1)
	assert.Equal(t, grade.Fail, rec.Subjects[0].Status)
}

func TestNormalizeSkips(t *testing.T) {
	n := NewNormalizer(header("rollNo", "name"))

	_, err := n.Normalize(nil)
	assert.ErrorIs(t, err, ErrBlankRow)

	_, err = n.Normalize([]Cell{{}, TextCell("Nobody")})
	assert.ErrorIs(t, err, ErrBlankRow)

	_, err = n.Normalize([]Cell{TextCell("   "), TextCell("Nobody")})
	assert.ErrorIs(t, err, ErrBlankRow)

	noRoll := NewNormalizer(header("name", "dob"))
	_, err = noRoll.Normalize([]Cell{TextCell("Asha"), TextCell("01/01/2000")})
	assert.ErrorIs(t, err, ErrMalformedRow)

	// rollNo is not the first column and is empty
	shifted := NewNormalizer(header("name", "rollNo"))
	_, err = shifted.Normalize([]Cell{TextCell("Asha")})
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestNormalizeAllTwentyFiveSlots(t *testing.T) {
	names := []string{"rollNo"}
	row := []Cell{TextCell("R25")}
	for i := 1; i <= 26; i++ {
		names = append(names,
			"subjectCode"+strconv.Itoa(i), "subjectSemester"+strconv.Itoa(i), "subjectGrade"+strconv.Itoa(i))
		row = append(row, TextCell("C"+strconv.Itoa(i)), NumberCell(1), TextCell("B"))
	}
	rec, err := NewNormalizer(header(names...)).Normalize(row)
	require.NoError(t, err)
	assert.Len(t, rec.Subjects, MaxSubjects)
	assert.Equal(t, "C25", rec.Subjects[24].Code)
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "42", NumberCell(42).String())
	assert.Equal(t, "4.5", NumberCell(4.5).String())
	assert.Equal(t, "trimmed", TextCell("  trimmed ").String())
	assert.Equal(t, "TRUE", BoolCell(true).String())
	assert.Equal(t, "", Cell{}.String())
	assert.True(t, TextCell("").IsEmpty())
	assert.False(t, NumberCell(0).IsEmpty())
}
