package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"crane-fleet-backend/internal/cycle"
	"crane-fleet-backend/internal/ledger"
	"crane-fleet-backend/internal/model"
	"crane-fleet-backend/internal/parse"
)

const sheetName = "Maintenance"

var headers = []string{
	"Date", "Crane", "Previous hours", "Hours", "Since previous",
	"Parts", "Consumables", "Cycle", "Pending parts", "Note",
}

// RecordSource loads the records dated within a range, with their crane.
type RecordSource interface {
	ListRecordsBetweenDates(ctx context.Context, from, to time.Time) ([]model.MaintenanceRecord, error)
}

// StatusSource reconstructs the cycle status of a record.
type StatusSource interface {
	DueAndPendingForRecord(ctx context.Context, recordID int64) (ledger.Status, error)
}

// Exporters bundles the workbooks served by the export endpoints.
type Exporters struct {
	Maintenance *Exporter
	Diesel      *DieselExporter
	Tasks       *TaskExporter
}

// yearRange returns the first and last day of a calendar year.
func yearRange(year int) (time.Time, time.Time, error) {
	if year < 1 || year > 9999 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: year %d", ledger.ErrInvalidInput, year)
	}
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC), nil
}

// newSheet opens a workbook whose only sheet carries the given name.
func newSheet(name string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), name); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	return f, nil
}

// Exporter writes the yearly maintenance compliance workbook.
type Exporter struct {
	records RecordSource
	status  StatusSource
	labels  *parse.Labels
}

// NewExporter creates a new Exporter.
func NewExporter(records RecordSource, status StatusSource, labels *parse.Labels) *Exporter {
	return &Exporter{records: records, status: status, labels: labels}
}

// Row is one line of the workbook.
type Row struct {
	Date         time.Time
	CraneNumber  string
	PrevHours    *int64
	Hours        int64
	CycleIndex   int
	Parts        []string
	Consumables  []string
	PendingParts []string
	Note         string
}

// Rows builds the workbook lines for a year, grouped by crane in hour order.
func (e *Exporter) Rows(ctx context.Context, year int) ([]Row, error) {
	from, to, err := yearRange(year)
	if err != nil {
		return nil, err
	}

	records, err := e.records.ListRecordsBetweenDates(ctx, from, to)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Crane.Number != b.Crane.Number {
			return a.Crane.Number < b.Crane.Number
		}
		if a.MaintenanceHours != b.MaintenanceHours {
			return a.MaintenanceHours < b.MaintenanceHours
		}
		return a.ID < b.ID
	})

	rows := make([]Row, 0, len(records))
	var prev *model.MaintenanceRecord
	for i := range records {
		r := records[i]
		st, err := e.status.DueAndPendingForRecord(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("status of record %d: %w", r.ID, err)
		}

		row := Row{
			Date:         r.RecordDate,
			CraneNumber:  r.Crane.Number,
			Hours:        r.MaintenanceHours,
			CycleIndex:   st.Cycle.Index,
			Parts:        e.partLabels(r.Parts),
			Consumables:  e.consumableLabels(r.Consumables),
			PendingParts: e.labels.PartLabels(st.PendingParts),
			Note:         r.Note,
		}
		if prev != nil && prev.CraneID == r.CraneID {
			h := prev.MaintenanceHours
			row.PrevHours = &h
		}
		rows = append(rows, row)
		prev = &records[i]
	}
	return rows, nil
}

// WriteWorkbook renders the year's rows as an xlsx file and returns the row count.
func (e *Exporter) WriteWorkbook(ctx context.Context, year int, w io.Writer) (int, error) {
	rows, err := e.Rows(ctx, year)
	if err != nil {
		return 0, err
	}

	f, err := newSheet(sheetName)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		prev, since := "", ""
		if r.PrevHours != nil {
			prev = strconv.FormatInt(*r.PrevHours, 10)
			since = strconv.FormatInt(r.Hours-*r.PrevHours, 10)
		}
		values := []interface{}{
			r.Date.Format("2006-01-02"),
			r.CraneNumber,
			prev,
			r.Hours,
			since,
			strings.Join(r.Parts, "、"),
			strings.Join(r.Consumables, "、"),
			r.CycleIndex,
			strings.Join(r.PendingParts, "、"),
			r.Note,
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "J", 15); err != nil {
		return 0, err
	}
	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return len(rows), nil
}

func (e *Exporter) partLabels(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, e.labels.PartLabel(cycle.Part(c)))
	}
	return out
}

func (e *Exporter) consumableLabels(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, e.labels.ConsumableLabel(cycle.Consumable(c)))
	}
	return out
}
