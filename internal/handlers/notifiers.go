package handlers

import (
	"net/http"

	"frameworks/klaxon/pkg/api/klaxon"
	"frameworks/klaxon/pkg/middleware"
)

// ListNotifiers returns the notifier type catalog the console renders
// integration forms from.
func ListNotifiers(c middleware.Context) {
	notifiers, err := fetcher.ListNotifiers(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, klaxon.NotifiersResponse{Notifiers: notifiers})
}
