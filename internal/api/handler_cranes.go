package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crane-fleet-backend/internal/ledger"
	"crane-fleet-backend/internal/model"
)

// CraneResponse represents a crane with its running hours.
type CraneResponse struct {
	ID             int64           `json:"id"`
	Number         string          `json:"crane_number"`
	Type           model.CraneType `json:"crane_type"`
	InitialHours   int64           `json:"initial_hours"`
	TotalHours     float64         `json:"total_hours"`
	RecalculatedAt time.Time       `json:"recalculated_at"`
	Alert          bool            `json:"alert"`
}

func craneResponse(s ledger.CraneSummary) CraneResponse {
	return CraneResponse{
		ID:             s.Crane.ID,
		Number:         s.Crane.Number,
		Type:           s.Crane.Type,
		InitialHours:   s.Crane.InitialHours,
		TotalHours:     s.RunningHours.TotalHours,
		RecalculatedAt: s.RunningHours.RecalculatedAt,
		Alert:          s.Alert,
	}
}

type craneRequest struct {
	Number       string          `json:"crane_number"`
	Type         model.CraneType `json:"crane_type"`
	InitialHours *int64          `json:"initial_hours"`
}

// ListCranes handles GET /api/cranes.
func (h *Handler) ListCranes(c *gin.Context) {
	cranes, err := h.ledger.ListCranes(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]CraneResponse, 0, len(cranes))
	for _, s := range cranes {
		out = append(out, craneResponse(s))
	}
	c.JSON(http.StatusOK, out)
}

// CreateCrane handles POST /api/cranes.
func (h *Handler) CreateCrane(c *gin.Context) {
	var req craneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sum, err := h.ledger.CreateCrane(c.Request.Context(), ledger.CraneInput{
		Number:       req.Number,
		Type:         req.Type,
		InitialHours: req.InitialHours,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, craneResponse(sum))
}

// GetCrane handles GET /api/cranes/:crane_id.
func (h *Handler) GetCrane(c *gin.Context) {
	id, ok := pathID(c, "crane_id")
	if !ok {
		return
	}
	sum, err := h.ledger.GetCrane(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, craneResponse(sum))
}

// UpdateCrane handles PUT /api/cranes/:crane_id. Omitted fields keep their values.
func (h *Handler) UpdateCrane(c *gin.Context) {
	id, ok := pathID(c, "crane_id")
	if !ok {
		return
	}
	var req craneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sum, err := h.ledger.UpdateCrane(c.Request.Context(), id, ledger.CraneInput{
		Number:       req.Number,
		Type:         req.Type,
		InitialHours: req.InitialHours,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, craneResponse(sum))
}

// GetRunningHours handles GET /api/cranes/:crane_id/running-hours.
func (h *Handler) GetRunningHours(c *gin.Context) {
	id, ok := pathID(c, "crane_id")
	if !ok {
		return
	}
	rh, err := h.ledger.RecomputeTotalHours(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rh)
}
