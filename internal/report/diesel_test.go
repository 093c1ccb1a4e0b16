package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"crane-fleet-backend/internal/ledger"
	"crane-fleet-backend/internal/model"
)

type fakeDiesel struct {
	drums    []model.OilDrumRecord
	fuels    []model.TruckFuelRecord
	fuelErr  error
	from, to time.Time
}

func (f *fakeDiesel) ListDrumRecordsBetweenDates(_ context.Context, from, to time.Time) ([]model.OilDrumRecord, error) {
	f.from, f.to = from, to
	return f.drums, nil
}

func (f *fakeDiesel) ListFuelRecordsBetweenDates(_ context.Context, _, _ time.Time) ([]model.TruckFuelRecord, error) {
	return f.fuels, f.fuelErr
}

type fakeTasks []model.DailyTask

func (f fakeTasks) ListTasksBetweenDates(_ context.Context, _, _ time.Time) ([]model.DailyTask, error) {
	return f, nil
}

func TestDieselWorkbook(t *testing.T) {
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }
	tr1 := model.Truck{ID: 1, Number: "TR-01"}
	tr2 := model.Truck{ID: 2, Number: "TR-02"}
	price := 31.5
	crane := &model.Crane{ID: 4, Number: "TC-04"}

	source := &fakeDiesel{
		drums: []model.OilDrumRecord{
			{ID: 1, Truck: tr2, RecordDate: day(3, 2), IOType: model.DrumIn, Quantity: 200, UnitPrice: &price},
			{ID: 2, Truck: tr1, RecordDate: day(3, 2), IOType: model.DrumOut, Quantity: 40.5, Crane: crane},
		},
		fuels: []model.TruckFuelRecord{
			{ID: 1, Truck: tr1, RecordDate: day(3, 1), Quantity: 60, UnitPrice: 29.2},
		},
	}

	var buf bytes.Buffer
	n, err := NewDieselExporter(source).WriteWorkbook(context.Background(), 2024, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, day(1, 1), source.from)
	assert.Equal(t, day(12, 31), source.to)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	merged, err := f.GetMergeCells(dieselSheet)
	require.NoError(t, err)
	var spans []string
	for _, m := range merged {
		spans = append(spans, m.GetStartAxis()+":"+m.GetEndAxis())
	}
	assert.ElementsMatch(t, []string{"A1:A2", "B1:B2", "C1:F1", "G1:H1"}, spans)

	rows, err := f.GetRows(dieselSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Date", "Truck", "Drum", "", "", "", "Truck tank", ""}, pad(rows[0], dieselColumns))
	assert.Equal(t, []string{"", "", "In (L)", "Unit price", "Out (L)", "Crane", "In (L)", "Unit price"}, pad(rows[1], dieselColumns))
	assert.Equal(t, []string{"2024-03-01", "TR-01", "", "", "", "", "60", "29.2"}, pad(rows[2], dieselColumns))
	assert.Equal(t, []string{"2024-03-02", "TR-01", "", "", "40.5", "TC-04", "", ""}, pad(rows[3], dieselColumns))
	assert.Equal(t, []string{"2024-03-02", "TR-02", "200", "31.5", "", "", "", ""}, pad(rows[4], dieselColumns))
}

func TestDieselRows_Errors(t *testing.T) {
	_, err := NewDieselExporter(&fakeDiesel{}).Rows(context.Background(), 10000)
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)

	boom := errors.New("boom")
	_, err = NewDieselExporter(&fakeDiesel{fuelErr: boom}).Rows(context.Background(), 2024)
	assert.ErrorIs(t, err, boom)
}

func TestTaskWorkbook(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 7, d, 0, 0, 0, 0, time.UTC) }
	tasks := fakeTasks{
		{ID: 1, Crane: model.Crane{Number: "TC-02"}, TaskDate: day(2), Vendor: "ACME", WorkTime: 8},
		{ID: 2, Crane: model.Crane{Number: "TC-01"}, TaskDate: day(2), WorkTime: 6.5, Note: "rain"},
		{ID: 3, Crane: model.Crane{Number: "TC-09"}, TaskDate: day(1), Vendor: "Beta", WorkTime: 4},
	}

	var buf bytes.Buffer
	n, err := NewTaskExporter(tasks).WriteWorkbook(context.Background(), 2025, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(taskSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, taskHeaders, rows[0])
	assert.Equal(t, []string{"2025-07-01", "Beta", "TC-09", "4", ""}, pad(rows[1], len(taskHeaders)))
	assert.Equal(t, []string{"2025-07-02", "", "TC-01", "6.5", "rain"}, pad(rows[2], len(taskHeaders)))
	assert.Equal(t, []string{"2025-07-02", "ACME", "TC-02", "8", ""}, pad(rows[3], len(taskHeaders)))
}
