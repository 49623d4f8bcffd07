package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "tabnet-harvester/docs"
	"tabnet-harvester/internal/api/handler"
	"tabnet-harvester/internal/metrics"
	"tabnet-harvester/pkg/router"
)

func RegisterRoutes(r *router.Router, h *handler.RunsHandler) {
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	// More specific routes first
	r.GET("/api/v1/runs/*/errors", h.GetRunErrors)
	r.GET("/api/v1/runs/*/progress", h.GetRunProgress)
	r.GET("/api/v1/runs/*/result", h.GetRunResult)
	// Generic run routes last
	r.GET("/api/v1/runs/*", h.GetRun)
	r.DELETE("/api/v1/runs/*", h.CancelRun)

	r.Handle("/metrics", metrics.Handler())
	r.Handle("/swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
