package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"crane-fleet-backend/internal/model"
)

const taskSheet = "Daily tasks"

var taskHeaders = []string{"Date", "Vendor", "Crane", "Hours", "Note"}

// TaskSource loads the live task logs dated within a range, with their crane.
type TaskSource interface {
	ListTasksBetweenDates(ctx context.Context, from, to time.Time) ([]model.DailyTask, error)
}

// TaskExporter writes the yearly daily task workbook.
type TaskExporter struct {
	source TaskSource
}

// NewTaskExporter creates a new TaskExporter.
func NewTaskExporter(source TaskSource) *TaskExporter {
	return &TaskExporter{source: source}
}

// WriteWorkbook renders the year's task logs ordered by date then crane
// number and returns the row count.
func (e *TaskExporter) WriteWorkbook(ctx context.Context, year int, w io.Writer) (int, error) {
	from, to, err := yearRange(year)
	if err != nil {
		return 0, err
	}
	tasks, err := e.source.ListTasksBetweenDates(ctx, from, to)
	if err != nil {
		return 0, err
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].TaskDate.Equal(tasks[j].TaskDate) {
			return tasks[i].TaskDate.Before(tasks[j].TaskDate)
		}
		return tasks[i].Crane.Number < tasks[j].Crane.Number
	})

	f, err := newSheet(taskSheet)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	header := make([]interface{}, len(taskHeaders))
	for i, h := range taskHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(taskSheet, "A1", &header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	for i, t := range tasks {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		values := []interface{}{t.TaskDate.Format("2006-01-02"), t.Vendor, t.Crane.Number, t.WorkTime, t.Note}
		if err := f.SetSheetRow(taskSheet, cell, &values); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(taskSheet, "A", "E", 15); err != nil {
		return 0, err
	}
	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return len(tasks), nil
}
