package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crane-fleet-backend/internal/cycle"
	"crane-fleet-backend/internal/ledger"
	"crane-fleet-backend/internal/model"
)

// StatusResponse is the due/already/pending view of one cycle window. The
// current view carries total_hours, a record view carries maintenance_hours.
type StatusResponse struct {
	CraneID              int64      `json:"crane_id"`
	TotalHours           *float64   `json:"total_hours,omitempty"`
	MaintenanceHours     *int64     `json:"maintenance_hours,omitempty"`
	Cycle                cycle.Info `json:"cycle"`
	DueParts             []item     `json:"due_parts"`
	ConsumablesHint      []item     `json:"consumables_hint"`
	AlreadyParts         []item     `json:"already_parts"`
	AlreadyConsumables   []item     `json:"already_consumables"`
	AlreadyReplacedParts []item     `json:"already_replaced_parts"`
	PendingParts         []item     `json:"pending_parts"`
	PendingConsumables   []item     `json:"pending_consumables"`
}

// RecordResponse is a maintenance record with labels resolved.
type RecordResponse struct {
	ID               int64     `json:"id"`
	CraneID          int64     `json:"crane_id"`
	RecordDate       string    `json:"record_date"`
	MaintenanceHours int64     `json:"maintenance_hours"`
	Parts            []item    `json:"parts"`
	Consumables      []item    `json:"consumables"`
	Note             string    `json:"note"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DecisionResponse reports what a submission stored and what it skipped.
type DecisionResponse struct {
	Record       RecordResponse `json:"record"`
	Cycle        cycle.Info     `json:"cycle"`
	SkippedParts []item         `json:"skipped_parts"`
}

func (h *Handler) currentStatusResponse(st ledger.Status) StatusResponse {
	resp := h.statusResponse(st)
	total := st.Hours
	resp.TotalHours = &total
	return resp
}

func (h *Handler) recordStatusResponse(st ledger.Status) StatusResponse {
	resp := h.statusResponse(st)
	hours := int64(st.Hours)
	resp.MaintenanceHours = &hours
	return resp
}

func (h *Handler) statusResponse(st ledger.Status) StatusResponse {
	return StatusResponse{
		CraneID:              st.CraneID,
		Cycle:                st.Cycle,
		DueParts:             h.partItems(st.DueParts),
		ConsumablesHint:      h.consumableItems(st.ConsumablesHint),
		AlreadyParts:         h.partItems(st.AlreadyParts),
		AlreadyConsumables:   h.consumableItems(st.AlreadyConsumables),
		AlreadyReplacedParts: h.partItems(st.AlreadyReplacedParts),
		PendingParts:         h.partItems(st.PendingParts),
		PendingConsumables:   h.consumableItems(st.PendingConsumables),
	}
}

func (h *Handler) recordResponse(r model.MaintenanceRecord) RecordResponse {
	parts := make([]cycle.Part, len(r.Parts))
	for i, p := range r.Parts {
		parts[i] = cycle.Part(p)
	}
	cons := make([]cycle.Consumable, len(r.Consumables))
	for i, c := range r.Consumables {
		cons[i] = cycle.Consumable(c)
	}
	return RecordResponse{
		ID:               r.ID,
		CraneID:          r.CraneID,
		RecordDate:       r.RecordDate.Format(dateLayout),
		MaintenanceHours: r.MaintenanceHours,
		Parts:            h.partItems(parts),
		Consumables:      h.consumableItems(cons),
		Note:             r.Note,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (h *Handler) decisionResponse(dec ledger.Decision, r model.MaintenanceRecord) DecisionResponse {
	return DecisionResponse{
		Record:       h.recordResponse(r),
		Cycle:        dec.Cycle,
		SkippedParts: h.partItems(dec.SkippedParts),
	}
}

type maintenanceRequest struct {
	MaintenanceHours *int64   `json:"maintenance_hours" binding:"required"`
	Parts            []string `json:"parts"`
	Consumables      []string `json:"consumables"`
	RecordDate       string   `json:"record_date"`
	Note             string   `json:"note"`
}

type maintenancePatchRequest struct {
	MaintenanceHours *int64   `json:"maintenance_hours"`
	Parts            []string `json:"parts"`
	Consumables      []string `json:"consumables"`
	RecordDate       *string  `json:"record_date"`
	Note             *string  `json:"note"`
}

// GetDue handles GET /api/cranes/:crane_id/maintenance/due.
func (h *Handler) GetDue(c *gin.Context) {
	id, ok := pathID(c, "crane_id")
	if !ok {
		return
	}
	st, err := h.ledger.DueAndPendingNow(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.currentStatusResponse(st))
}

// GetHistory handles GET /api/cranes/:crane_id/maintenance.
func (h *Handler) GetHistory(c *gin.Context) {
	id, ok := pathID(c, "crane_id")
	if !ok {
		return
	}
	history, err := h.ledger.History(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	type entry struct {
		Record RecordResponse `json:"record"`
		Status StatusResponse `json:"status"`
	}
	out := make([]entry, 0, len(history))
	for _, rs := range history {
		out = append(out, entry{Record: h.recordResponse(rs.Record), Status: h.recordStatusResponse(rs.Status)})
	}
	c.JSON(http.StatusOK, out)
}

// CreateMaintenance handles POST /api/cranes/:crane_id/maintenance.
func (h *Handler) CreateMaintenance(c *gin.Context) {
	id, ok := pathID(c, "crane_id")
	if !ok {
		return
	}
	var req maintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, ok := h.parseDate(c, "record_date", req.RecordDate)
	if !ok {
		return
	}

	dec, record, err := h.ledger.Submit(c.Request.Context(), ledger.Submission{
		CraneID:          id,
		MaintenanceHours: *req.MaintenanceHours,
		Parts:            req.Parts,
		Consumables:      req.Consumables,
		RecordDate:       date,
		Note:             req.Note,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.decisionResponse(dec, record))
}

// GetRecordStatus handles GET /api/maintenance/records/:record_id.
func (h *Handler) GetRecordStatus(c *gin.Context) {
	id, ok := pathID(c, "record_id")
	if !ok {
		return
	}
	st, err := h.ledger.DueAndPendingForRecord(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.recordStatusResponse(st))
}

// UpdateMaintenance handles PUT /api/maintenance/records/:record_id.
func (h *Handler) UpdateMaintenance(c *gin.Context) {
	id, ok := pathID(c, "record_id")
	if !ok {
		return
	}
	var req maintenancePatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := ledger.Patch{
		MaintenanceHours: req.MaintenanceHours,
		Parts:            req.Parts,
		Consumables:      req.Consumables,
		Note:             req.Note,
	}
	if req.RecordDate != nil {
		date, ok := h.parseDate(c, "record_date", *req.RecordDate)
		if !ok {
			return
		}
		if !date.IsZero() {
			patch.RecordDate = &date
		}
	}

	dec, record, err := h.ledger.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.decisionResponse(dec, record))
}

// DeleteMaintenance handles DELETE /api/maintenance/records/:record_id.
func (h *Handler) DeleteMaintenance(c *gin.Context) {
	id, ok := pathID(c, "record_id")
	if !ok {
		return
	}
	if err := h.ledger.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
