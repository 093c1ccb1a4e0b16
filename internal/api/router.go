package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crane-fleet-backend/config"
	"crane-fleet-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, handler *Handler, limiter *mw.IPRateLimiter) *gin.Engine {
	r := gin.Default()
	r.Use(mw.Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// The taxonomy only changes with a restart, so it is safe to cache.
	cacheStore := cache.New(cfg.Server.CacheTTL, 2*cfg.Server.CacheTTL)
	caching := mw.Cache(cacheStore, cfg.Server.CacheTTL)

	api := r.Group("/api")
	api.Use(mw.RateLimiter(limiter))
	{
		api.GET("/parts", caching, handler.GetParts)

		api.GET("/cranes", handler.ListCranes)
		api.POST("/cranes", handler.CreateCrane)
		api.GET("/cranes/:crane_id", handler.GetCrane)
		api.PUT("/cranes/:crane_id", handler.UpdateCrane)
		api.GET("/cranes/:crane_id/running-hours", handler.GetRunningHours)

		api.GET("/cranes/:crane_id/maintenance", handler.GetHistory)
		api.POST("/cranes/:crane_id/maintenance", handler.CreateMaintenance)
		api.GET("/cranes/:crane_id/maintenance/due", handler.GetDue)

		api.GET("/maintenance/records/:record_id", handler.GetRecordStatus)
		api.PUT("/maintenance/records/:record_id", handler.UpdateMaintenance)
		api.DELETE("/maintenance/records/:record_id", handler.DeleteMaintenance)

		api.GET("/daily-tasks", handler.ListTasks)
		api.POST("/daily-tasks", handler.CreateTask)
		api.GET("/daily-tasks/:task_id", handler.GetTask)
		api.PUT("/daily-tasks/:task_id", handler.UpdateTask)
		api.DELETE("/daily-tasks/:task_id", handler.DeleteTask)

		api.GET("/trucks", handler.ListTrucks)
		api.POST("/trucks", handler.CreateTruck)
		api.GET("/trucks/:truck_id", handler.GetTruck)
		api.GET("/trucks/:truck_id/drums", handler.ListDrumRecords)
		api.POST("/trucks/:truck_id/drums", handler.CreateDrumRecord)
		api.PUT("/drums/:record_id", handler.UpdateDrumRecord)
		api.DELETE("/drums/:record_id", handler.DeleteDrumRecord)
		api.GET("/trucks/:truck_id/fuels", handler.ListFuelRecords)
		api.POST("/trucks/:truck_id/fuels", handler.CreateFuelRecord)
		api.PUT("/fuels/:record_id", handler.UpdateFuelRecord)
		api.DELETE("/fuels/:record_id", handler.DeleteFuelRecord)

		api.GET("/export/maintenance", handler.ExportMaintenance)
		api.GET("/export/truck-diesel", handler.ExportTruckDiesel)
		api.GET("/export/daily-tasks", handler.ExportTasks)
	}

	return r
}

// ExpireLimiters evicts idle rate limiters until stop is closed.
func ExpireLimiters(limiter *mw.IPRateLimiter, every, maxIdle time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			limiter.Evict(maxIdle)
		case <-stop:
			return
		}
	}
}
