package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"frameworks/klaxon/pkg/api/klaxon"
	"frameworks/klaxon/pkg/clients/aldis"
	"frameworks/klaxon/pkg/clients/mayday"
	"frameworks/klaxon/pkg/middleware"
)

// backendFrom resolves the :backend path parameter against the registry.
// Unknown backends render 404 and report false.
func backendFrom(c middleware.Context) (string, bool) {
	backendID := c.Param("backend")
	if !registry.Known(backendID) {
		c.JSON(http.StatusNotFound, klaxon.ErrorResponse{
			Error:   "unknown alerting backend: " + backendID,
			Service: "klaxon",
		})
		return "", false
	}
	return backendID, true
}

// requireWritable rejects mutations against read-only backends.
func requireWritable(c middleware.Context, backendID string) bool {
	if registry.IsReadOnly(backendID) {
		c.JSON(http.StatusForbidden, klaxon.ErrorResponse{
			Error:   "backend " + backendID + " is read-only",
			Service: "klaxon",
		})
		return false
	}
	return true
}

// renderError translates upstream failures. Engine and incident-service
// errors pass through with their original status code and message; anything
// else renders as a bad gateway.
func renderError(c middleware.Context, err error) {
	var aldisErr *aldis.APIError
	if errors.As(err, &aldisErr) {
		c.JSON(aldisErr.StatusCode, klaxon.ErrorResponse{
			Error:   upstreamMessage(aldisErr.Message, aldisErr.StatusCode),
			Service: "aldis",
		})
		return
	}

	var maydayErr *mayday.APIError
	if errors.As(err, &maydayErr) {
		c.JSON(maydayErr.StatusCode, klaxon.ErrorResponse{
			Error:   upstreamMessage(maydayErr.Message, maydayErr.StatusCode),
			Service: "mayday",
		})
		return
	}

	middleware.GetContextLogger(c, logger).WithError(err).Error("Upstream request failed")
	c.JSON(http.StatusBadGateway, klaxon.ErrorResponse{Error: "upstream request failed"})
}

func upstreamMessage(message string, statusCode int) string {
	if message != "" {
		return message
	}
	return http.StatusText(statusCode)
}

// validationFields flattens validator errors into a field-to-constraint map
// for the validation error envelope.
func validationFields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
