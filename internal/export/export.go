// Package export writes workout history as an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kdimtricp/repcoach/internal/models"
)

const (
	SheetSets   = "Sets"
	SheetTotals = "Totals"
)

var (
	setColumns = []column{
		{"A", "Ended", 20},
		{"B", "Exercise", 12},
		{"C", "Reps", 8},
		{"D", "Duration (s)", 14},
		{"E", "Session", 38},
		{"F", "Set ID", 38},
	}
	totalColumns = []column{
		{"A", "Exercise", 12},
		{"B", "Sets", 8},
		{"C", "Reps", 8},
	}
)

type column struct {
	col   string
	title string
	width float64
}

type styles struct {
	header int
	date   int
	number int
}

// WriteWorkbook writes sets and per-exercise totals as an .xlsx file to w.
func WriteWorkbook(w io.Writer, sets []*models.WorkoutSet, totals []models.ModeTotal) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSets); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", SheetSets, err)
	}
	if _, err := f.NewSheet(SheetTotals); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", SheetTotals, err)
	}

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	if err := writeHeader(f, SheetSets, setColumns, st); err != nil {
		return err
	}
	for i, s := range sets {
		row := i + 2
		values := []any{s.EndedAt, s.Mode, s.Reps, s.Duration().Seconds(), s.SessionID, s.ID}
		if err := f.SetSheetRow(SheetSets, fmt.Sprintf("A%d", row), &values); err != nil {
			return fmt.Errorf("failed to write set row %d: %w", row, err)
		}
		if err := f.SetCellStyle(SheetSets, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), st.date); err != nil {
			return fmt.Errorf("failed to style row %d: %w", row, err)
		}
		if err := f.SetCellStyle(SheetSets, fmt.Sprintf("C%d", row), fmt.Sprintf("D%d", row), st.number); err != nil {
			return fmt.Errorf("failed to style row %d: %w", row, err)
		}
	}

	if err := writeHeader(f, SheetTotals, totalColumns, st); err != nil {
		return err
	}
	for i, t := range totals {
		row := i + 2
		values := []any{t.Mode, t.Sets, t.Reps}
		if err := f.SetSheetRow(SheetTotals, fmt.Sprintf("A%d", row), &values); err != nil {
			return fmt.Errorf("failed to write totals row %d: %w", row, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error

	st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4275F5"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return st, fmt.Errorf("failed to create header style: %w", err)
	}

	format := "yyyy-mm-dd hh:mm:ss"
	st.date, err = f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return st, fmt.Errorf("failed to create date style: %w", err)
	}

	st.number, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return st, fmt.Errorf("failed to create number style: %w", err)
	}
	return st, nil
}

func writeHeader(f *excelize.File, sheet string, cols []column, st styles) error {
	for _, c := range cols {
		if err := f.SetColWidth(sheet, c.col, c.col, c.width); err != nil {
			return fmt.Errorf("failed to set width of %s!%s: %w", sheet, c.col, err)
		}
		if err := f.SetCellValue(sheet, c.col+"1", c.title); err != nil {
			return fmt.Errorf("failed to write header %s: %w", c.title, err)
		}
	}

	last := cols[len(cols)-1].col + "1"
	if err := f.SetCellStyle(sheet, "A1", last, st.header); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
