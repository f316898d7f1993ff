// Package handlers implements the console REST surface for contact-point
// configuration.
package handlers

import (
	"frameworks/klaxon/internal/backends"
	"frameworks/klaxon/internal/contactpoints"
	"frameworks/klaxon/pkg/logging"
	"frameworks/klaxon/pkg/validation"
)

var (
	fetcher        *contactpoints.Fetcher
	mutator        *contactpoints.Mutator
	registry       *backends.Registry
	draftValidator *validation.DraftValidator
	logger         logging.Logger
)

// Init initializes the handlers with their collaborators.
func Init(f *contactpoints.Fetcher, m *contactpoints.Mutator, reg *backends.Registry, log logging.Logger) {
	fetcher = f
	mutator = m
	registry = reg
	draftValidator = validation.NewDraftValidator()
	logger = log
}
