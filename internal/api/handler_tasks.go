package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"crane-fleet-backend/internal/ledger"
	"crane-fleet-backend/internal/model"
)

// TaskResponse is a task log with its crane number resolved.
type TaskResponse struct {
	ID          int64     `json:"id"`
	CraneID     int64     `json:"crane_id"`
	CraneNumber string    `json:"crane_number"`
	TaskDate    string    `json:"task_date"`
	Vendor      string    `json:"vendor"`
	WorkTime    float64   `json:"work_time"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func taskResponse(t model.DailyTask) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		CraneID:     t.CraneID,
		CraneNumber: t.Crane.Number,
		TaskDate:    t.TaskDate.Format(dateLayout),
		Vendor:      t.Vendor,
		WorkTime:    t.WorkTime,
		Note:        t.Note,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// taskRequest serves both create and update. On update, omitted fields keep
// their stored values.
type taskRequest struct {
	CraneID  int64    `json:"crane_id"`
	TaskDate string   `json:"task_date"`
	Vendor   *string  `json:"vendor"`
	WorkTime *float64 `json:"work_time"`
	Note     *string  `json:"note"`
}

func (h *Handler) bindTask(c *gin.Context) (ledger.TaskInput, bool) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return ledger.TaskInput{}, false
	}
	date, ok := h.parseDate(c, "task_date", req.TaskDate)
	if !ok {
		return ledger.TaskInput{}, false
	}
	return ledger.TaskInput{
		CraneID:  req.CraneID,
		TaskDate: date,
		Vendor:   req.Vendor,
		WorkTime: req.WorkTime,
		Note:     req.Note,
	}, true
}

// ListTasks handles GET /api/daily-tasks, optionally filtered by ?crane_id=.
func (h *Handler) ListTasks(c *gin.Context) {
	var craneID int64
	if raw := c.Query("crane_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid crane_id"})
			return
		}
		craneID = id
	}

	tasks, err := h.ledger.ListTasks(c.Request.Context(), craneID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskResponse(t))
	}
	c.JSON(http.StatusOK, out)
}

// GetTask handles GET /api/daily-tasks/:task_id.
func (h *Handler) GetTask(c *gin.Context) {
	id, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	task, err := h.ledger.GetTask(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskResponse(task))
}

// CreateTask handles POST /api/daily-tasks.
func (h *Handler) CreateTask(c *gin.Context) {
	in, ok := h.bindTask(c)
	if !ok {
		return
	}
	if in.CraneID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "crane_id is required"})
		return
	}
	task, rh, err := h.ledger.CreateTask(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": taskResponse(task), "running_hours": rh})
}

// UpdateTask handles PUT /api/daily-tasks/:task_id.
func (h *Handler) UpdateTask(c *gin.Context) {
	id, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	in, ok := h.bindTask(c)
	if !ok {
		return
	}
	task, rh, err := h.ledger.UpdateTask(c.Request.Context(), id, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": taskResponse(task), "running_hours": rh})
}

// DeleteTask handles DELETE /api/daily-tasks/:task_id.
func (h *Handler) DeleteTask(c *gin.Context) {
	id, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	rh, err := h.ledger.DeleteTask(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"running_hours": rh})
}
