package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"crane-fleet-backend/internal/cycle"
	"crane-fleet-backend/internal/ledger"
	"crane-fleet-backend/internal/model"
	"crane-fleet-backend/internal/parse"
)

type fakeRecords struct {
	records  []model.MaintenanceRecord
	from, to time.Time
}

func (f *fakeRecords) ListRecordsBetweenDates(_ context.Context, from, to time.Time) ([]model.MaintenanceRecord, error) {
	f.from, f.to = from, to
	return f.records, nil
}

type fakeStatus map[int64]ledger.Status

func (f fakeStatus) DueAndPendingForRecord(_ context.Context, id int64) (ledger.Status, error) {
	st, ok := f[id]
	if !ok {
		return ledger.Status{}, ledger.ErrNotFound
	}
	return st, nil
}

func TestWriteWorkbook(t *testing.T) {
	craneA := model.Crane{ID: 1, Number: "TC-01"}
	craneB := model.Crane{ID: 2, Number: "TC-02"}
	day := func(m time.Month, d int) time.Time { return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC) }

	records := &fakeRecords{records: []model.MaintenanceRecord{
		{ID: 3, CraneID: 2, Crane: craneB, RecordDate: day(3, 1), MaintenanceHours: 700, Parts: []string{"engine_oil"}},
		{ID: 2, CraneID: 1, Crane: craneA, RecordDate: day(2, 1), MaintenanceHours: 1020, Parts: []string{"engine_oil"}, Consumables: []string{"engine_oil_filter"}, Note: "ok"},
		{ID: 1, CraneID: 1, Crane: craneA, RecordDate: day(1, 5), MaintenanceHours: 520, Parts: []string{"engine_oil", "main_hoist_gear_oil"}},
	}}
	status := fakeStatus{
		1: {Cycle: cycle.Info{Index: 2}, PendingParts: []cycle.Part{cycle.LionHeadGearOil}},
		2: {Cycle: cycle.Info{Index: 3}, PendingParts: []cycle.Part{cycle.AuxHoistGearOil, cycle.SlewingGearOil}},
		3: {Cycle: cycle.Info{Index: 2}, PendingParts: []cycle.Part{cycle.MainHoistGearOil}},
	}

	exporter := NewExporter(records, status, parse.MustDefaultLabels())

	var buf bytes.Buffer
	n, err := exporter.WriteWorkbook(context.Background(), 2025, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, day(1, 1), records.from)
	assert.Equal(t, day(12, 31), records.to)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, []string{"2025-01-05", "TC-01", "", "520", "", "機油、主捲", "", "2", "獅頭", ""}, pad(rows[1], len(headers)))
	assert.Equal(t, []string{"2025-02-01", "TC-01", "520", "1020", "500", "機油", "機油芯", "3", "補捲、旋回", "ok"}, pad(rows[2], len(headers)))
	assert.Equal(t, []string{"2025-03-01", "TC-02", "", "700", "", "機油", "", "2", "主捲", ""}, pad(rows[3], len(headers)))
}

// pad restores trailing empty cells that GetRows may trim.
func pad(row []string, width int) []string {
	for len(row) < width {
		row = append(row, "")
	}
	return row
}

func TestRows_InvalidYear(t *testing.T) {
	exporter := NewExporter(&fakeRecords{}, fakeStatus{}, parse.MustDefaultLabels())
	_, err := exporter.Rows(context.Background(), 0)
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
}

func TestRows_StatusError(t *testing.T) {
	records := &fakeRecords{records: []model.MaintenanceRecord{{ID: 9, CraneID: 1, MaintenanceHours: 10}}}
	exporter := NewExporter(records, fakeStatus{}, parse.MustDefaultLabels())
	_, err := exporter.Rows(context.Background(), 2025)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
