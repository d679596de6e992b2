// Copyright 2025 James Ross
package handlers

import "errors"

// ErrNoHandler is returned when no Handler is registered for a job's type.
var ErrNoHandler = errors.New("handlers: no handler registered for job type")

// ErrExtractionFailed represents the "handler scraping error" kind
// from the error taxonomy: extraction failed, e.g. an expected field
// was missing from the fetched page.
var ErrExtractionFailed = errors.New("handlers: extraction failed")
