package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crane-fleet-backend/internal/cycle"
)

type partInfo struct {
	item
	IntervalHours int    `json:"interval_hours"`
	Implies       []item `json:"implies"`
}

type dueRow struct {
	CycleIndex int    `json:"cycle_index"`
	Parts      []item `json:"parts"`
}

// GetParts handles GET /api/parts: the taxonomy with labels and the due table of one round.
func (h *Handler) GetParts(c *gin.Context) {
	parts := make([]partInfo, 0, len(cycle.Parts))
	for _, p := range cycle.Parts {
		parts = append(parts, partInfo{
			item:          item{Code: string(p), Label: h.labels.PartLabel(p)},
			IntervalHours: cycle.IntervalHours[p],
			Implies:       h.consumableItems(cycle.ImpliedConsumables(p)),
		})
	}

	schedule := make([]dueRow, 0, cycle.CyclesPerRound)
	for idx := 1; idx <= cycle.CyclesPerRound; idx++ {
		due, err := cycle.DueParts(idx)
		if err != nil {
			h.writeError(c, err)
			return
		}
		schedule = append(schedule, dueRow{CycleIndex: idx, Parts: h.partItems(due)})
	}

	c.JSON(http.StatusOK, gin.H{
		"cycle_hours":      cycle.CycleHours,
		"cycles_per_round": cycle.CyclesPerRound,
		"parts":            parts,
		"consumables":      h.consumableItems(cycle.Consumables),
		"schedule":         schedule,
	})
}
