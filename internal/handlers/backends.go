package handlers

import (
	"net/http"

	"frameworks/klaxon/pkg/api/klaxon"
	"frameworks/klaxon/pkg/middleware"
)

// ListBackends returns the configured alerting backends and their
// capabilities. The console uses this to pick the editing flow per backend.
func ListBackends(c middleware.Context) {
	c.JSON(http.StatusOK, klaxon.ListBackendsResponse{Backends: registry.List()})
}
