package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crane-fleet-backend/config"
	"crane-fleet-backend/internal/db"
	"crane-fleet-backend/internal/ledger"
	"crane-fleet-backend/internal/model"
	"crane-fleet-backend/internal/mw"
	"crane-fleet-backend/internal/parse"
	"crane-fleet-backend/internal/report"
	"crane-fleet-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T) *gin.Engine {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	testDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(testDB))

	cfg := &config.Config{
		Server:      config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000},
		Maintenance: config.MaintenanceConfig{DefaultInitialHours: 100, Timezone: "Asia/Taipei"},
		Metrics:     config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}

	st := store.NewGormStore(testDB)
	svc, err := ledger.NewService(st, parse.MustDefaultLabels(), &cfg.Maintenance)
	require.NoError(t, err)
	handler := NewHandler(svc, report.Exporters{
		Maintenance: report.NewExporter(st, svc, svc.Labels()),
		Diesel:      report.NewDieselExporter(st),
		Tasks:       report.NewTaskExporter(st),
	})
	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	return NewRouter(cfg, handler, limiter)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func codes(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Code
	}
	return out
}

type taskEnvelope struct {
	Task         TaskResponse       `json:"task"`
	RunningHours model.RunningHours `json:"running_hours"`
}

func TestCraneEndpoints(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/cranes", gin.H{"crane_number": "TC-01", "crane_type": "tracked"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var crane CraneResponse
	decode(t, w, &crane)
	assert.Equal(t, int64(100), crane.InitialHours)
	assert.Equal(t, 100.0, crane.TotalHours)

	w = doJSON(t, router, http.MethodPost, "/api/cranes", gin.H{"crane_number": "TC-01", "crane_type": "wheeled"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/cranes", gin.H{"crane_number": "TC-02", "crane_type": "boat"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/cranes/%d", crane.ID), gin.H{"initial_hours": 480})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &crane)
	assert.Equal(t, 480.0, crane.TotalHours)
	assert.True(t, crane.Alert)

	w = doJSON(t, router, http.MethodGet, "/api/cranes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cranes []CraneResponse
	decode(t, w, &cranes)
	assert.Len(t, cranes, 1)

	w = doJSON(t, router, http.MethodGet, "/api/cranes/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/cranes/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid crane_id"}`, w.Body.String())
}

func TestMaintenanceEndpoints(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/cranes", gin.H{"crane_number": "TC-09", "crane_type": "wheeled"})
	require.Equal(t, http.StatusCreated, w.Code)
	var crane CraneResponse
	decode(t, w, &crane)

	w = doJSON(t, router, http.MethodPost, "/api/daily-tasks", gin.H{"crane_id": crane.ID, "task_date": "2025-05-02", "work_time": 450})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/cranes/%d/maintenance/due", crane.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status StatusResponse
	decode(t, w, &status)
	require.NotNil(t, status.TotalHours)
	assert.Equal(t, 550.0, *status.TotalHours)
	assert.Nil(t, status.MaintenanceHours)
	assert.Contains(t, w.Body.String(), `"total_hours":550`)
	assert.Equal(t, 2, status.Cycle.Index)
	assert.Equal(t, []string{"engine_oil", "main_hoist_gear_oil", "lion_head_gear_oil"}, codes(status.PendingParts))
	assert.Equal(t, "主捲", status.PendingParts[1].Label)

	base := fmt.Sprintf("/api/cranes/%d/maintenance", crane.ID)
	w = doJSON(t, router, http.MethodPost, base, gin.H{"maintenance_hours": 550, "parts": []string{"機油", "主捲"}, "record_date": "2025-05-03"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var dec DecisionResponse
	decode(t, w, &dec)
	assert.Equal(t, "2025-05-03", dec.Record.RecordDate)
	assert.Equal(t, []string{"engine_oil", "main_hoist_gear_oil"}, codes(dec.Record.Parts))
	assert.Equal(t, []string{"engine_oil_filter", "fuel_oil_filter"}, codes(dec.Record.Consumables))
	assert.Empty(t, dec.SkippedParts)

	w = doJSON(t, router, http.MethodPost, base, gin.H{"maintenance_hours": 600, "parts": []string{"engine_oil"}})
	require.Equal(t, http.StatusConflict, w.Code)
	var conflict struct {
		Skipped    []item `json:"skipped"`
		CycleIndex int    `json:"cycle_index"`
	}
	decode(t, w, &conflict)
	assert.Equal(t, 2, conflict.CycleIndex)
	assert.Equal(t, []item{{Code: "engine_oil", Label: "機油"}}, conflict.Skipped)

	w = doJSON(t, router, http.MethodPost, base, gin.H{"maintenance_hours": 600, "parts": []string{"engine_oil", "獅頭"}})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &dec)
	assert.Equal(t, []string{"lion_head_gear_oil"}, codes(dec.Record.Parts))
	assert.Equal(t, []string{"engine_oil"}, codes(dec.SkippedParts))
	secondID := dec.Record.ID

	w = doJSON(t, router, http.MethodPost, base, gin.H{"maintenance_hours": 600, "parts": []string{"windshield"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "windshield")

	w = doJSON(t, router, http.MethodPost, base, gin.H{"maintenance_hours": 600, "parts": []string{"windshield"}, "consumables": []string{"air_filter"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{
		"error": "unknown parts: windshield; unknown consumables: air_filter",
		"unknown": ["windshield", "air_filter"],
		"unknown_parts": ["windshield"],
		"unknown_consumables": ["air_filter"]
	}`, w.Body.String())

	w = doJSON(t, router, http.MethodPost, base, gin.H{"parts": []string{"engine_oil"}})
	assert.Equal(t, http.StatusBadRequest, w.Code, "maintenance_hours is required")

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/cranes/%d/maintenance/due", crane.ID), nil)
	decode(t, w, &status)
	assert.Empty(t, status.PendingParts)
	assert.Empty(t, status.PendingConsumables)

	w = doJSON(t, router, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []struct {
		Record RecordResponse `json:"record"`
		Status StatusResponse `json:"status"`
	}
	decode(t, w, &history)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].Status.Cycle.Index)

	w = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/maintenance/records/%d", secondID), gin.H{"note": "checked", "record_date": "2025-05-04"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &dec)
	assert.Equal(t, "checked", dec.Record.Note)
	assert.Equal(t, "2025-05-04", dec.Record.RecordDate)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/maintenance/records/%d", secondID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	status = StatusResponse{}
	decode(t, w, &status)
	require.NotNil(t, status.MaintenanceHours)
	assert.Equal(t, int64(600), *status.MaintenanceHours)
	assert.Nil(t, status.TotalHours)

	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/maintenance/records/%d", secondID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/maintenance/records/%d", secondID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskEndpoints(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/cranes", gin.H{"crane_number": "TC-05", "crane_type": "tracked", "initial_hours": 0})
	require.Equal(t, http.StatusCreated, w.Code)
	var crane CraneResponse
	decode(t, w, &crane)

	w = doJSON(t, router, http.MethodPost, "/api/daily-tasks", gin.H{
		"crane_id": crane.ID, "work_time": 8, "vendor": "ACME", "note": "pier 3", "task_date": "2025-04-02",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created taskEnvelope
	decode(t, w, &created)
	assert.Equal(t, 8.0, created.RunningHours.TotalHours)
	assert.Equal(t, "TC-05", created.Task.CraneNumber)
	assert.Equal(t, "2025-04-02", created.Task.TaskDate)

	// Only work_time is sent, so vendor, note and date stay.
	w = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/daily-tasks/%d", created.Task.ID), gin.H{"work_time": 9.5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &created)
	assert.Equal(t, 9.5, created.RunningHours.TotalHours)
	assert.Equal(t, "ACME", created.Task.Vendor)
	assert.Equal(t, "pier 3", created.Task.Note)
	assert.Equal(t, "2025-04-02", created.Task.TaskDate)

	w = doJSON(t, router, http.MethodPost, "/api/daily-tasks", gin.H{"crane_id": crane.ID, "work_time": 2, "task_date": "2025-04-03"})
	require.Equal(t, http.StatusCreated, w.Code)
	var second taskEnvelope
	decode(t, w, &second)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/daily-tasks?crane_id=%d", crane.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []TaskResponse
	decode(t, w, &listed)
	require.Len(t, listed, 2)
	assert.Equal(t, second.Task.ID, listed[0].ID, "newest first")
	assert.Equal(t, "TC-05", listed[1].CraneNumber)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/daily-tasks/%d", created.Task.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var one TaskResponse
	decode(t, w, &one)
	assert.Equal(t, 9.5, one.WorkTime)
	assert.Equal(t, "ACME", one.Vendor)

	w = doJSON(t, router, http.MethodPost, "/api/daily-tasks", gin.H{"crane_id": crane.ID, "work_time": -2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/daily-tasks", gin.H{"crane_id": crane.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code, "work_time is required")

	w = doJSON(t, router, http.MethodPost, "/api/daily-tasks", gin.H{"crane_id": crane.ID, "work_time": 1, "task_date": "05/02/2025"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/daily-tasks?crane_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(t, router, http.MethodGet, "/api/daily-tasks?crane_id=4242", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/export/daily-tasks?year=2025", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "daily-tasks-2025.xlsx")

	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/daily-tasks/%d", created.Task.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/daily-tasks/%d", created.Task.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, router, http.MethodGet, "/api/daily-tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &listed)
	assert.Len(t, listed, 1)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/cranes/%d/running-hours", crane.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &created.RunningHours)
	assert.Equal(t, 2.0, created.RunningHours.TotalHours)
}

func TestTruckEndpoints(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/cranes", gin.H{"crane_number": "TC-08", "crane_type": "wheeled"})
	require.Equal(t, http.StatusCreated, w.Code)
	var crane CraneResponse
	decode(t, w, &crane)

	w = doJSON(t, router, http.MethodPost, "/api/trucks", gin.H{"truck_number": "TR-01", "latitude": 24.1, "longitude": 120.6})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var truck TruckResponse
	decode(t, w, &truck)
	assert.Equal(t, "TR-01", truck.Number)

	w = doJSON(t, router, http.MethodPost, "/api/trucks", gin.H{"truck_number": "TR-01"})
	assert.Equal(t, http.StatusConflict, w.Code)

	drums := fmt.Sprintf("/api/trucks/%d/drums", truck.ID)
	w = doJSON(t, router, http.MethodPost, drums, gin.H{"io_type": "IN", "quantity": 200, "unit_price": 31.5, "record_date": "2025-05-01"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var refill DrumResponse
	decode(t, w, &refill)
	assert.Equal(t, "2025-05-01", refill.RecordDate)

	w = doJSON(t, router, http.MethodPost, drums, gin.H{"io_type": "OUT", "quantity": 50.25, "crane_id": crane.ID, "record_date": "2025-05-02"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out DrumResponse
	decode(t, w, &out)
	require.NotNil(t, out.CraneNumber)
	assert.Equal(t, "TC-08", *out.CraneNumber)

	w = doJSON(t, router, http.MethodPost, drums, gin.H{"io_type": "OUT", "quantity": 500, "crane_id": crane.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient oil")

	w = doJSON(t, router, http.MethodPost, drums, gin.H{"io_type": "IN", "quantity": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code, "refill needs a price")
	w = doJSON(t, router, http.MethodPost, drums, gin.H{"quantity": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code, "io_type is required")
	w = doJSON(t, router, http.MethodPost, "/api/trucks/999/drums", gin.H{"io_type": "IN", "quantity": 10, "unit_price": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/drums/%d", out.ID), gin.H{"quantity": 60})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &out)
	assert.Equal(t, 60.0, out.Quantity)
	assert.Equal(t, "2025-05-02", out.RecordDate)

	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/drums/%d", refill.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "refill still backs a dispense")

	fuels := fmt.Sprintf("/api/trucks/%d/fuels", truck.ID)
	w = doJSON(t, router, http.MethodPost, fuels, gin.H{"quantity": 40, "unit_price": 29.5, "record_date": "2025-05-03"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var fuel FuelResponse
	decode(t, w, &fuel)
	w = doJSON(t, router, http.MethodPost, fuels, gin.H{"quantity": 40})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/fuels/%d", fuel.ID), gin.H{"quantity": 45.5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/trucks/%d", truck.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &truck)
	assert.Equal(t, 140.0, truck.DrumRemain)
	assert.Equal(t, 45.5, truck.FuelRemain)

	w = doJSON(t, router, http.MethodGet, drums, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var drumList []DrumResponse
	decode(t, w, &drumList)
	require.Len(t, drumList, 2)
	assert.Equal(t, out.ID, drumList[0].ID, "newest first")

	w = doJSON(t, router, http.MethodGet, "/api/export/truck-diesel?year=2025", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Diesel")
	require.NoError(t, err)
	assert.Len(t, rows, 5, "two header rows and three movements")

	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/fuels/%d", fuel.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, router, http.MethodGet, fuels, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fuelList []FuelResponse
	decode(t, w, &fuelList)
	assert.Empty(t, fuelList)

	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/drums/%d", out.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/trucks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trucks []TruckResponse
	decode(t, w, &trucks)
	require.Len(t, trucks, 1)
	assert.Equal(t, 200.0, trucks[0].DrumRemain)
}

func TestPartsEndpointIsCached(t *testing.T) {
	router := setupRouter(t)

	first := doJSON(t, router, http.MethodGet, "/api/parts", nil)
	require.Equal(t, http.StatusOK, first.Code)
	second := doJSON(t, router, http.MethodGet, "/api/parts", nil)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))

	type partBody struct {
		Code          string `json:"code"`
		Label         string `json:"label"`
		IntervalHours int    `json:"interval_hours"`
		Implies       []item `json:"implies"`
	}
	var body struct {
		CycleHours int        `json:"cycle_hours"`
		Parts      []partBody `json:"parts"`
		Schedule   []dueRow   `json:"schedule"`
	}
	decode(t, second, &body)
	assert.Equal(t, 500, body.CycleHours)
	require.Len(t, body.Parts, 10)
	assert.Equal(t, "機油", body.Parts[0].Label)
	assert.Len(t, body.Parts[0].Implies, 2)
	require.Len(t, body.Schedule, 12)
	assert.Len(t, body.Schedule[11].Parts, 10)
}

func TestExportAndOps(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/cranes", gin.H{"crane_number": "TC-77", "crane_type": "tracked", "initial_hours": 0})
	require.Equal(t, http.StatusCreated, w.Code)
	var crane CraneResponse
	decode(t, w, &crane)
	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/cranes/%d/maintenance", crane.ID),
		gin.H{"maintenance_hours": 20, "parts": []string{"engine_oil"}, "record_date": "2025-03-01"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/export/maintenance?year=2025", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Maintenance")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "TC-77", rows[1][1])

	w = doJSON(t, router, http.MethodGet, "/api/export/maintenance?year=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fleet_ledger_decisions_total")
}
