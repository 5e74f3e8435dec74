package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the type of a spreadsheet cell value.
type Kind int

const (
	Empty Kind = iota
	Text
	Number
	Time
	Bool
)

// Cell is one typed spreadsheet value.
type Cell struct {
	Kind   Kind
	Text   string
	Number float64
	Time   time.Time
	Bool   bool
}

// TextCell builds a text cell; empty text yields an empty cell.
func TextCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: Text, Text: s}
}

func NumberCell(f float64) Cell { return Cell{Kind: Number, Number: f} }

func TimeCell(t time.Time) Cell { return Cell{Kind: Time, Time: t} }

func BoolCell(b bool) Cell { return Cell{Kind: Bool, Bool: b} }

// IsEmpty reports whether the cell carries no usable value. Whitespace-only
// text counts as empty.
func (c Cell) IsEmpty() bool {
	switch c.Kind {
	case Empty:
		return true
	case Text:
		return strings.TrimSpace(c.Text) == ""
	}
	return false
}

// String renders the cell as trimmed text. Integral numbers render without
// a fractional part so numeric roll numbers and semesters read naturally.
func (c Cell) String() string {
	switch c.Kind {
	case Text:
		return strings.TrimSpace(c.Text)
	case Number:
		if c.Number == math.Trunc(c.Number) && math.Abs(c.Number) < 1e15 {
			return strconv.FormatInt(int64(c.Number), 10)
		}
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case Time:
		if c.Time.Hour() == 0 && c.Time.Minute() == 0 && c.Time.Second() == 0 {
			return c.Time.Format(time.DateOnly)
		}
		return c.Time.Format(time.DateTime)
	case Bool:
		if c.Bool {
			return "TRUE"
		}
		return "FALSE"
	}
	return ""
}
