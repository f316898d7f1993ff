package handlers

import (
	"errors"
	"net/http"

	"frameworks/klaxon/internal/contactpoints"
	"frameworks/klaxon/pkg/api/klaxon"
	"frameworks/klaxon/pkg/middleware"
	"frameworks/klaxon/pkg/validation"
)

// ListContactPoints returns the enriched contact-point list for a backend.
// Auxiliary fetch failures surface as warnings alongside a complete list.
func ListContactPoints(c middleware.Context) {
	backendID, ok := backendFrom(c)
	if !ok {
		return
	}

	result := fetcher.FetchEnriched(c.Request.Context(), backendID)
	if result.Err != nil {
		renderError(c, result.Err)
		return
	}

	c.JSON(http.StatusOK, klaxon.ListContactPointsResponse{
		ContactPoints: result.ContactPoints,
		Warnings:      result.Warnings,
	})
}

// GetContactPoint looks up a single contact point by name or resource
// identifier. Percent-encoded spellings of the same name resolve identically.
func GetContactPoint(c middleware.Context) {
	backendID, ok := backendFrom(c)
	if !ok {
		return
	}

	point, err := fetcher.GetContactPoint(c.Request.Context(), backendID, c.Param("name"))
	if err != nil {
		if errors.Is(err, contactpoints.ErrNotFound) {
			c.JSON(http.StatusNotFound, klaxon.ErrorResponse{
				Error:   "contact point not found",
				Service: "klaxon",
			})
			return
		}
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, klaxon.ContactPointResponse{ContactPoint: *point})
}

// CreateContactPoint creates a contact point from a draft.
func CreateContactPoint(c middleware.Context) {
	backendID, ok := backendFrom(c)
	if !ok {
		return
	}
	if !requireWritable(c, backendID) {
		return
	}

	draft, ok := bindDraft(c)
	if !ok {
		return
	}

	point, err := mutator.CreateOrUpdate(c.Request.Context(), backendID, draft, "")
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, klaxon.SaveContactPointResponse{ContactPoint: *point})
}

// UpdateContactPoint updates the contact point whose current name is the
// :name path parameter. The body carries the draft, which may rename it.
func UpdateContactPoint(c middleware.Context) {
	backendID, ok := backendFrom(c)
	if !ok {
		return
	}
	if !requireWritable(c, backendID) {
		return
	}

	draft, ok := bindDraft(c)
	if !ok {
		return
	}

	point, err := mutator.CreateOrUpdate(c.Request.Context(), backendID, draft, c.Param("name"))
	if err != nil {
		if errors.Is(err, contactpoints.ErrNotFound) {
			c.JSON(http.StatusNotFound, klaxon.ErrorResponse{
				Error:   "contact point not found",
				Service: "klaxon",
			})
			return
		}
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, klaxon.SaveContactPointResponse{ContactPoint: *point})
}

// DeleteContactPoint deletes by name (legacy backends) or resource
// identifier (structured backends). Deleting an absent legacy name is a
// no-op write and still returns 204.
func DeleteContactPoint(c middleware.Context) {
	backendID, ok := backendFrom(c)
	if !ok {
		return
	}
	if !requireWritable(c, backendID) {
		return
	}

	if err := mutator.Delete(c.Request.Context(), backendID, c.Param("name")); err != nil {
		renderError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ValidateContactPointName reports whether a draft name is usable before
// the console submits the full draft. A taken name is a valid response
// carrying a message, not an error.
func ValidateContactPointName(c middleware.Context) {
	backendID, ok := backendFrom(c)
	if !ok {
		return
	}

	var req klaxon.ValidateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, klaxon.ErrorResponse{
			Error:   "invalid request: " + err.Error(),
			Service: "klaxon",
		})
		return
	}

	valid, message, err := mutator.ValidateName(c.Request.Context(), backendID, req.Name, req.OriginalName)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, klaxon.ValidateNameResponse{Valid: valid, Message: message})
}

// bindDraft decodes and validates the mutation payload. Malformed JSON is a
// 400; a structurally valid draft that fails domain validation is a 422.
func bindDraft(c middleware.Context) (*validation.ContactPointDraft, bool) {
	var draft validation.ContactPointDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, klaxon.ErrorResponse{
			Error:   "invalid request: " + err.Error(),
			Service: "klaxon",
		})
		return nil, false
	}

	if err := draftValidator.ValidateDraft(&draft); err != nil {
		c.JSON(http.StatusUnprocessableEntity, klaxon.ValidationErrorResponse{
			Error:  err.Error(),
			Fields: validationFields(err),
		})
		return nil, false
	}

	return &draft, true
}
