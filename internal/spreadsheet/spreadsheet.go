// Package spreadsheet reads student rosters from and writes quiz results to
// XLSX workbooks.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/scoring"
	"github.com/xuri/excelize/v2"
)

// MaxImportRows bounds the size of a roster import.
const MaxImportRows = 1000

var (
	ErrEmptySheet   = errors.New("spreadsheet has no student rows")
	ErrTooManyRows  = fmt.Errorf("spreadsheet has more than %d rows", MaxImportRows)
	ErrUnreadable   = errors.New("spreadsheet could not be read")
	resultsSheet    = "Results"
	resultsHeadings = []any{
		"Rank", "Student", "Group", "Status", "Score", "Total", "Percentage",
		"Time taken (s)", "Started at", "Completed at",
	}
)

// StudentRow is one roster line. Row is the 1-based sheet row.
type StudentRow struct {
	Row  int
	Name string
	Code string
}

// ReadStudents parses the first sheet of an XLSX roster: column A holds the
// student name and optional column B a student code. A first row whose
// column A reads "name" is treated as a header. Blank rows are skipped.
func ReadStudents(r io.Reader) ([]StudentRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	out := make([]StudentRow, 0, len(rows))
	for i, cols := range rows {
		if len(cols) == 0 {
			continue
		}
		name := strings.TrimSpace(cols[0])
		if i == 0 && strings.EqualFold(name, "name") {
			continue
		}
		if name == "" {
			continue
		}
		row := StudentRow{Row: i + 1, Name: name}
		if len(cols) > 1 {
			row.Code = strings.TrimSpace(cols[1])
		}
		out = append(out, row)
		if len(out) > MaxImportRows {
			return nil, ErrTooManyRows
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptySheet
	}
	return out, nil
}

// Results is the content of a results export.
type Results struct {
	QuizTitle string
	Deadline  time.Time
	Rows      []model.AttemptRow
}

// WriteResults renders one row per attempt into an XLSX workbook on w.
func WriteResults(w io.Writer, res Results) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), resultsSheet); err != nil {
		return err
	}

	if err := f.SetCellValue(resultsSheet, "A1", res.QuizTitle); err != nil {
		return err
	}
	if err := f.SetCellValue(resultsSheet, "A2", "Deadline: "+res.Deadline.UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(resultsSheet, "A1", "A1", bold); err != nil {
		return err
	}
	if err := f.SetSheetRow(resultsSheet, "A4", &resultsHeadings); err != nil {
		return err
	}
	if err := f.SetCellStyle(resultsSheet, "A4", "J4", bold); err != nil {
		return err
	}

	for i, r := range res.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+5)
		if err != nil {
			return err
		}
		values := []any{
			intOrBlank(r.Ranking), r.StudentName, r.GroupName, string(r.Status),
			r.Score, r.TotalQuestions, roundPct(scoring.Percentage(r.Score, r.TotalQuestions)),
			intOrBlank(r.TimeTakenSeconds), r.StartedAt.UTC().Format(time.RFC3339), timeOrBlank(r.CompletedAt),
		}
		if err := f.SetSheetRow(resultsSheet, cell, &values); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(resultsSheet, "B", "C", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(resultsSheet, "I", "J", 22); err != nil {
		return err
	}
	return f.Write(w)
}

func intOrBlank(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func timeOrBlank(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func roundPct(p float64) float64 {
	return float64(int(p*100+0.5)) / 100
}
