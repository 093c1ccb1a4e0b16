package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"crane-fleet-backend/internal/cycle"
	"crane-fleet-backend/internal/ledger"
	"crane-fleet-backend/internal/parse"
	"crane-fleet-backend/internal/report"
)

const dateLayout = "2006-01-02"

// Handler holds shared dependencies for API handlers.
type Handler struct {
	ledger  *ledger.Service
	exports report.Exporters
	labels  *parse.Labels
	loc     *time.Location
}

// NewHandler creates a new API handler.
func NewHandler(svc *ledger.Service, exports report.Exporters) *Handler {
	return &Handler{
		ledger:  svc,
		exports: exports,
		labels:  svc.Labels(),
		loc:     svc.Location(),
	}
}

// item is a code with its display label.
type item struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

func (h *Handler) partItems(parts []cycle.Part) []item {
	out := make([]item, 0, len(parts))
	for _, p := range parts {
		out = append(out, item{Code: string(p), Label: h.labels.PartLabel(p)})
	}
	return out
}

func (h *Handler) consumableItems(cons []cycle.Consumable) []item {
	out := make([]item, 0, len(cons))
	for _, c := range cons {
		out = append(out, item{Code: string(c), Label: h.labels.ConsumableLabel(c)})
	}
	return out
}

// writeError maps service errors onto HTTP responses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		dup     *ledger.DuplicateInCycleError
		unknown *parse.UnknownCodeError
	)
	switch {
	case errors.As(err, &dup):
		c.JSON(http.StatusConflict, gin.H{
			"error":       "parts already serviced in this cycle",
			"skipped":     h.partItems(dup.Skipped),
			"cycle_index": dup.CycleIndex,
		})
	case errors.As(err, &unknown):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":               unknown.Error(),
			"unknown":             unknown.Items(),
			"unknown_parts":       orNone(unknown.Parts),
			"unknown_consumables": orNone(unknown.Consumables),
		})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func orNone(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// pathID reads a positive integer path parameter, answering 400 when it is malformed.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// parseDate accepts YYYY-MM-DD in the service timezone. Empty means unset.
func (h *Handler) parseDate(c *gin.Context, field, value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, true
	}
	t, err := time.ParseInLocation(dateLayout, value, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + field + ", expected YYYY-MM-DD"})
		return time.Time{}, false
	}
	return t, true
}
