package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crane-fleet-backend/internal/ledger"
	"crane-fleet-backend/internal/model"
)

// TruckResponse represents a truck with its drum and tank balances.
type TruckResponse struct {
	ID         int64     `json:"id"`
	Number     string    `json:"truck_number"`
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
	DrumRemain float64   `json:"drum_remain"`
	FuelRemain float64   `json:"fuel_remain"`
	CreatedAt  time.Time `json:"created_at"`
}

func truckResponse(s ledger.TruckSummary) TruckResponse {
	return TruckResponse{
		ID:         s.Truck.ID,
		Number:     s.Truck.Number,
		Latitude:   s.Truck.Latitude,
		Longitude:  s.Truck.Longitude,
		DrumRemain: s.DrumRemain,
		FuelRemain: s.FuelRemain,
		CreatedAt:  s.Truck.CreatedAt,
	}
}

// DrumResponse is a drum movement with its crane number resolved.
type DrumResponse struct {
	ID          int64        `json:"id"`
	TruckID     int64        `json:"truck_id"`
	RecordDate  string       `json:"record_date"`
	IOType      model.DrumIO `json:"io_type"`
	Quantity    float64      `json:"quantity"`
	UnitPrice   *float64     `json:"unit_price"`
	CraneID     *int64       `json:"crane_id"`
	CraneNumber *string      `json:"crane_number"`
}

func drumResponse(r model.OilDrumRecord) DrumResponse {
	out := DrumResponse{
		ID:         r.ID,
		TruckID:    r.TruckID,
		RecordDate: r.RecordDate.Format(dateLayout),
		IOType:     r.IOType,
		Quantity:   r.Quantity,
		UnitPrice:  r.UnitPrice,
		CraneID:    r.CraneID,
	}
	if r.Crane != nil {
		out.CraneNumber = &r.Crane.Number
	}
	return out
}

// FuelResponse is a refuelling of a truck's tank.
type FuelResponse struct {
	ID         int64   `json:"id"`
	TruckID    int64   `json:"truck_id"`
	RecordDate string  `json:"record_date"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
}

func fuelResponse(r model.TruckFuelRecord) FuelResponse {
	return FuelResponse{
		ID:         r.ID,
		TruckID:    r.TruckID,
		RecordDate: r.RecordDate.Format(dateLayout),
		Quantity:   r.Quantity,
		UnitPrice:  r.UnitPrice,
	}
}

type truckRequest struct {
	Number    string   `json:"truck_number"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type drumRequest struct {
	IOType     *model.DrumIO `json:"io_type"`
	Quantity   *float64      `json:"quantity"`
	UnitPrice  *float64      `json:"unit_price"`
	CraneID    *int64        `json:"crane_id"`
	RecordDate string        `json:"record_date"`
}

type fuelRequest struct {
	Quantity   *float64 `json:"quantity"`
	UnitPrice  *float64 `json:"unit_price"`
	RecordDate string   `json:"record_date"`
}

// optionalDate parses a date that only patches the record when present.
func (h *Handler) optionalDate(c *gin.Context, field, value string) (*time.Time, bool) {
	t, ok := h.parseDate(c, field, value)
	if !ok || t.IsZero() {
		return nil, ok
	}
	return &t, true
}

// ListTrucks handles GET /api/trucks.
func (h *Handler) ListTrucks(c *gin.Context) {
	trucks, err := h.ledger.ListTrucks(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]TruckResponse, 0, len(trucks))
	for _, s := range trucks {
		out = append(out, truckResponse(s))
	}
	c.JSON(http.StatusOK, out)
}

// CreateTruck handles POST /api/trucks.
func (h *Handler) CreateTruck(c *gin.Context) {
	var req truckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sum, err := h.ledger.CreateTruck(c.Request.Context(), ledger.TruckInput{
		Number:    req.Number,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, truckResponse(sum))
}

// GetTruck handles GET /api/trucks/:truck_id.
func (h *Handler) GetTruck(c *gin.Context) {
	id, ok := pathID(c, "truck_id")
	if !ok {
		return
	}
	sum, err := h.ledger.GetTruck(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, truckResponse(sum))
}

// ListDrumRecords handles GET /api/trucks/:truck_id/drums.
func (h *Handler) ListDrumRecords(c *gin.Context) {
	id, ok := pathID(c, "truck_id")
	if !ok {
		return
	}
	records, err := h.ledger.ListDrumRecords(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]DrumResponse, 0, len(records))
	for _, r := range records {
		out = append(out, drumResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

// CreateDrumRecord handles POST /api/trucks/:truck_id/drums.
func (h *Handler) CreateDrumRecord(c *gin.Context) {
	id, ok := pathID(c, "truck_id")
	if !ok {
		return
	}
	var req drumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.IOType == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "io_type is required"})
		return
	}
	date, ok := h.parseDate(c, "record_date", req.RecordDate)
	if !ok {
		return
	}
	record, err := h.ledger.AddDrumRecord(c.Request.Context(), id, ledger.DrumInput{
		IOType:     *req.IOType,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		CraneID:    req.CraneID,
		RecordDate: date,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, drumResponse(record))
}

// UpdateDrumRecord handles PUT /api/drums/:record_id. Omitted fields keep their values.
func (h *Handler) UpdateDrumRecord(c *gin.Context) {
	id, ok := pathID(c, "record_id")
	if !ok {
		return
	}
	var req drumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, ok := h.optionalDate(c, "record_date", req.RecordDate)
	if !ok {
		return
	}
	record, err := h.ledger.UpdateDrumRecord(c.Request.Context(), id, ledger.DrumPatch{
		IOType:     req.IOType,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		CraneID:    req.CraneID,
		RecordDate: date,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, drumResponse(record))
}

// DeleteDrumRecord handles DELETE /api/drums/:record_id.
func (h *Handler) DeleteDrumRecord(c *gin.Context) {
	id, ok := pathID(c, "record_id")
	if !ok {
		return
	}
	if err := h.ledger.DeleteDrumRecord(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListFuelRecords handles GET /api/trucks/:truck_id/fuels.
func (h *Handler) ListFuelRecords(c *gin.Context) {
	id, ok := pathID(c, "truck_id")
	if !ok {
		return
	}
	records, err := h.ledger.ListFuelRecords(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]FuelResponse, 0, len(records))
	for _, r := range records {
		out = append(out, fuelResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

// CreateFuelRecord handles POST /api/trucks/:truck_id/fuels.
func (h *Handler) CreateFuelRecord(c *gin.Context) {
	id, ok := pathID(c, "truck_id")
	if !ok {
		return
	}
	var req fuelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, ok := h.parseDate(c, "record_date", req.RecordDate)
	if !ok {
		return
	}
	record, err := h.ledger.AddFuelRecord(c.Request.Context(), id, ledger.FuelInput{
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		RecordDate: date,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fuelResponse(record))
}

// UpdateFuelRecord handles PUT /api/fuels/:record_id. Omitted fields keep their values.
func (h *Handler) UpdateFuelRecord(c *gin.Context) {
	id, ok := pathID(c, "record_id")
	if !ok {
		return
	}
	var req fuelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, ok := h.optionalDate(c, "record_date", req.RecordDate)
	if !ok {
		return
	}
	record, err := h.ledger.UpdateFuelRecord(c.Request.Context(), id, ledger.FuelPatch{
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		RecordDate: date,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, fuelResponse(record))
}

// DeleteFuelRecord handles DELETE /api/fuels/:record_id.
func (h *Handler) DeleteFuelRecord(c *gin.Context) {
	id, ok := pathID(c, "record_id")
	if !ok {
		return
	}
	if err := h.ledger.DeleteFuelRecord(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
