package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type workbookFunc func(ctx context.Context, year int, w io.Writer) (int, error)

// ExportMaintenance handles GET /api/export/maintenance?year=YYYY.
func (h *Handler) ExportMaintenance(c *gin.Context) {
	h.serveWorkbook(c, "maintenance", h.exports.Maintenance.WriteWorkbook)
}

// ExportTruckDiesel handles GET /api/export/truck-diesel?year=YYYY.
func (h *Handler) ExportTruckDiesel(c *gin.Context) {
	h.serveWorkbook(c, "truck-diesel", h.exports.Diesel.WriteWorkbook)
}

// ExportTasks handles GET /api/export/daily-tasks?year=YYYY.
func (h *Handler) ExportTasks(c *gin.Context) {
	h.serveWorkbook(c, "daily-tasks", h.exports.Tasks.WriteWorkbook)
}

// serveWorkbook renders one year of a workbook, defaulting to the current year.
func (h *Handler) serveWorkbook(c *gin.Context, name string, write workbookFunc) {
	year := time.Now().In(h.loc).Year()
	if raw := c.Query("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
			return
		}
		year = y
	}

	var buf bytes.Buffer
	n, err := write(c.Request.Context(), year, &buf)
	if err != nil {
		h.writeError(c, err)
		return
	}
	log.Printf("Exported %d %s rows for %d", n, name, year)

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%d.xlsx"`, name, year))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
