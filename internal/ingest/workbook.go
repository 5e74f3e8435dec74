package ingest

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ErrIngestionFailed is returned when a workbook cannot be read at all.
var ErrIngestionFailed = errors.New("error processing excel file")

// Sheet is a named grid of typed cells. Rows[0] is the header.
type Sheet struct {
	Name string
	Rows [][]Cell
}

// Workbook is a fully read spreadsheet.
type Workbook struct {
	Sheets []Sheet
}

// OpenWorkbook reads every sheet of an xlsx container into memory. Any read
// error fails the whole workbook.
func OpenWorkbook(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngestionFailed, err)
	}
	defer f.Close()

	props, err := f.GetWorkbookProps()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngestionFailed, err)
	}
	rd := &sheetReader{f: f, dateStyles: map[int]bool{}}
	if props.Date1904 != nil {
		rd.date1904 = *props.Date1904
	}

	wb := &Workbook{}
	for _, name := range f.GetSheetList() {
		rows, err := rd.read(name)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", ErrIngestionFailed, name, err)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
	}
	return wb, nil
}

type sheetReader struct {
	f          *excelize.File
	date1904   bool
	dateStyles map[int]bool
}

func (rd *sheetReader) read(sheet string) ([][]Cell, error) {
	raw, err := rd.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	rows := make([][]Cell, len(raw))
	for r, values := range raw {
		cells := make([]Cell, len(values))
		for c, v := range values {
			if v == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			typ, err := rd.f.GetCellType(sheet, axis)
			if err != nil {
				return nil, err
			}
			cell := typedCell(typ, v)
			if cell.Kind == Number {
				if cell, err = rd.numberOrDate(sheet, axis, cell); err != nil {
					return nil, err
				}
			}
			cells[c] = cell
		}
		rows[r] = cells
	}
	return rows, nil
}

// numberOrDate turns a date-formatted number into a time using the
// workbook's date system. Unformatted numbers stay numbers.
func (rd *sheetReader) numberOrDate(sheet, axis string, cell Cell) (Cell, error) {
	styleID, err := rd.f.GetCellStyle(sheet, axis)
	if err != nil {
		return cell, err
	}
	isDate, ok := rd.dateStyles[styleID]
	if !ok {
		if styleID != 0 {
			style, err := rd.f.GetStyle(styleID)
			if err != nil {
				return cell, err
			}
			isDate = isDateStyle(style)
		}
		rd.dateStyles[styleID] = isDate
	}
	if !isDate {
		return cell, nil
	}
	t, err := excelize.ExcelDateToTime(cell.Number, rd.date1904)
	if err != nil {
		return cell, nil
	}
	return TimeCell(t), nil
}

// isDateStyle reports whether a cell style renders its number as a date.
func isDateStyle(style *excelize.Style) bool {
	if style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormat(*style.CustomNumFmt)
	}
	switch n := style.NumFmt; {
	case n >= 14 && n <= 22, n >= 27 && n <= 36, n >= 45 && n <= 47, n >= 50 && n <= 58:
		return true
	}
	return false
}

// isDateFormat reports whether a custom number format has day or year
// tokens once quoted literals, escapes and bracketed sections are removed.
func isDateFormat(format string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(format); i++ {
		ch := format[i]
		switch {
		case inQuote:
			inQuote = ch != '"'
		case inBracket:
			inBracket = ch != ']'
		case ch == '"':
			inQuote = true
		case ch == '[':
			inBracket = true
		case ch == '\\' || ch == '_' || ch == '*':
			i++
		default:
			b.WriteByte(ch)
		}
	}
	f := strings.ToLower(b.String())
	return strings.ContainsAny(f, "dy")
}

// typedCell maps an excelize cell type and raw value onto a Cell. Cells
// without an explicit type attribute hold numbers in the file format.
func typedCell(typ excelize.CellType, raw string) Cell {
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return NumberCell(f)
		}
	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateOnly} {
			if t, err := time.Parse(layout, raw); err == nil {
				return TimeCell(t)
			}
		}
	case excelize.CellTypeBool:
		return BoolCell(raw == "1" || strings.EqualFold(raw, "true"))
	}
	return TextCell(raw)
}
