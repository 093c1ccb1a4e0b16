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

const dieselSheet = "Diesel"

// dieselColumns is the width of the diesel sheet, A through H.
const dieselColumns = 8

// DieselSource loads the drum and tank movements dated within a range.
type DieselSource interface {
	ListDrumRecordsBetweenDates(ctx context.Context, from, to time.Time) ([]model.OilDrumRecord, error)
	ListFuelRecordsBetweenDates(ctx context.Context, from, to time.Time) ([]model.TruckFuelRecord, error)
}

// DieselExporter writes the yearly truck diesel workbook.
type DieselExporter struct {
	source DieselSource
}

// NewDieselExporter creates a new DieselExporter.
func NewDieselExporter(source DieselSource) *DieselExporter {
	return &DieselExporter{source: source}
}

// DieselRow is one drum or tank movement. Unused columns stay nil.
type DieselRow struct {
	Date        time.Time
	TruckNumber string
	DrumIn      *float64
	DrumPrice   *float64
	DrumOut     *float64
	CraneNumber string
	TankIn      *float64
	TankPrice   *float64
}

// Rows lists the year's drum movements followed by tank refuellings, ordered
// by date then truck number.
func (e *DieselExporter) Rows(ctx context.Context, year int) ([]DieselRow, error) {
	from, to, err := yearRange(year)
	if err != nil {
		return nil, err
	}
	drums, err := e.source.ListDrumRecordsBetweenDates(ctx, from, to)
	if err != nil {
		return nil, err
	}
	fuels, err := e.source.ListFuelRecordsBetweenDates(ctx, from, to)
	if err != nil {
		return nil, err
	}

	rows := make([]DieselRow, 0, len(drums)+len(fuels))
	for _, r := range drums {
		row := DieselRow{Date: r.RecordDate, TruckNumber: r.Truck.Number}
		q := r.Quantity
		if r.IOType == model.DrumIn {
			row.DrumIn = &q
			row.DrumPrice = r.UnitPrice
		} else {
			row.DrumOut = &q
			if r.Crane != nil {
				row.CraneNumber = r.Crane.Number
			}
		}
		rows = append(rows, row)
	}
	for _, r := range fuels {
		q, p := r.Quantity, r.UnitPrice
		rows = append(rows, DieselRow{Date: r.RecordDate, TruckNumber: r.Truck.Number, TankIn: &q, TankPrice: &p})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].TruckNumber < rows[j].TruckNumber
	})
	return rows, nil
}

// WriteWorkbook renders the year's diesel rows under a two-level header and
// returns the row count.
func (e *DieselExporter) WriteWorkbook(ctx context.Context, year int, w io.Writer) (int, error) {
	rows, err := e.Rows(ctx, year)
	if err != nil {
		return 0, err
	}

	f, err := newSheet(dieselSheet)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := writeDieselHeader(f); err != nil {
		return 0, err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return 0, err
		}
		values := []interface{}{
			r.Date.Format("2006-01-02"),
			r.TruckNumber,
			orBlank(r.DrumIn),
			orBlank(r.DrumPrice),
			orBlank(r.DrumOut),
			r.CraneNumber,
			orBlank(r.TankIn),
			orBlank(r.TankPrice),
		}
		if err := f.SetSheetRow(dieselSheet, cell, &values); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", i+3, err)
		}
	}

	if err := f.SetColWidth(dieselSheet, "A", "H", 12); err != nil {
		return 0, err
	}
	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return len(rows), nil
}

// writeDieselHeader lays out the group row (Drum over C:F, Truck tank over G:H)
// above the column row. Date and Truck span both rows.
func writeDieselHeader(f *excelize.File) error {
	top := []interface{}{"Date", "Truck", "Drum", "", "", "", "Truck tank", ""}
	sub := []interface{}{"", "", "In (L)", "Unit price", "Out (L)", "Crane", "In (L)", "Unit price"}
	if err := f.SetSheetRow(dieselSheet, "A1", &top); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetSheetRow(dieselSheet, "A2", &sub); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, span := range [][2]string{{"A1", "A2"}, {"B1", "B2"}, {"C1", "F1"}, {"G1", "H1"}} {
		if err := f.MergeCell(dieselSheet, span[0], span[1]); err != nil {
			return fmt.Errorf("failed to merge %s:%s: %w", span[0], span[1], err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	return f.SetCellStyle(dieselSheet, "A1", "H2", style)
}

// orBlank renders a missing number as an empty cell.
func orBlank(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
