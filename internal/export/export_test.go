package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kdimtricp/repcoach/internal/models"
)

func TestWriteWorkbook(t *testing.T) {
	start := time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC)
	sets := []*models.WorkoutSet{
		{ID: "set-1", SessionID: "session-a", Mode: "squat", Reps: 12, StartedAt: start, EndedAt: start.Add(45 * time.Second)},
		{ID: "set-2", SessionID: "session-a", Mode: "push-up", Reps: 9, StartedAt: start.Add(time.Minute), EndedAt: start.Add(90 * time.Second)},
	}
	totals := []models.ModeTotal{
		{Mode: "push-up", Sets: 1, Reps: 9},
		{Mode: "squat", Sets: 1, Reps: 12},
	}

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, sets, totals); err != nil {
		t.Fatalf("Failed to write workbook: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != SheetSets || sheets[1] != SheetTotals {
		t.Fatalf("Unexpected sheets: %v", sheets)
	}

	rows, err := f.GetRows(SheetSets)
	if err != nil {
		t.Fatalf("Failed to read sets: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Ended" || rows[1][1] != "squat" || rows[1][2] != "12" || rows[1][3] != "45" {
		t.Errorf("Unexpected set rows: %v", rows)
	}
	if rows[2][5] != "set-2" {
		t.Errorf("Expected set id in last column, got %v", rows[2])
	}

	totalRows, err := f.GetRows(SheetTotals)
	if err != nil {
		t.Fatalf("Failed to read totals: %v", err)
	}
	if len(totalRows) != 3 || totalRows[2][0] != "squat" || totalRows[2][2] != "12" {
		t.Errorf("Unexpected totals rows: %v", totalRows)
	}
}

func TestWriteWorkbook_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, nil, nil); err != nil {
		t.Fatalf("Failed to write workbook: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetSets)
	if err != nil {
		t.Fatalf("Failed to read sets: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected only the header row, got %d", len(rows))
	}
}
