// Copyright 2025 James Ross
package catalog

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError is the catalog writer's validation-error kind: it
// carries the offending field and value for diagnostics.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("catalog: validation failed on %s: %s", e.Field, e.Message)
}

const navigationSchemaJSON = `{
	"type": "object",
	"required": ["title", "source_url"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"source_url": {"type": "string", "minLength": 1},
		"parent_id": {"type": ["string", "null"]}
	}
}`

const categorySchemaJSON = `{
	"type": "object",
	"required": ["title", "source_url"],
	"properties": {
		"navigation_id": {"type": ["string", "null"]},
		"title": {"type": "string", "minLength": 1},
		"source_url": {"type": "string", "minLength": 1}
	}
}`

const productSchemaJSON = `{
	"type": "object",
	"required": ["title", "source_url"],
	"properties": {
		"category_id": {"type": ["string", "null"]},
		"title": {"type": "string", "minLength": 1},
		"source_url": {"type": "string", "minLength": 1},
		"source_id": {"type": "string"},
		"price": {"type": ["number", "null"], "exclusiveMinimum": 0},
		"currency": {"type": "string", "minLength": 3, "maxLength": 3},
		"image_urls": {"type": "array", "items": {"type": "string"}},
		"summary": {"type": "string"},
		"specs": {"type": "object"},
		"available": {"type": "boolean"}
	}
}`

var (
	navigationSchema = gojsonschema.NewStringLoader(navigationSchemaJSON)
	categorySchema   = gojsonschema.NewStringLoader(categorySchemaJSON)
	productSchema    = gojsonschema.NewStringLoader(productSchemaJSON)
)

func validateAgainst(loader gojsonschema.JSONLoader, v interface{}) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return &ValidationError{Field: "", Value: v, Message: err.Error()}
	}
	result, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &ValidationError{Field: "", Value: v, Message: err.Error()}
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return &ValidationError{Field: first.Field(), Value: first.Value(), Message: first.Description()}
	}
	return nil
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidateNavigation enforces: title non-empty, source_url absolute.
func ValidateNavigation(r NavigationRecord) error {
	if err := validateAgainst(navigationSchema, r); err != nil {
		return err
	}
	if !isAbsoluteHTTPURL(r.SourceURL) {
		return &ValidationError{Field: "source_url", Value: r.SourceURL, Message: "must be an absolute http(s) URL"}
	}
	return nil
}

// ValidateCategory enforces: title non-empty, source_url absolute.
func ValidateCategory(r CategoryRecord) error {
	if err := validateAgainst(categorySchema, r); err != nil {
		return err
	}
	if !isAbsoluteHTTPURL(r.SourceURL) {
		return &ValidationError{Field: "source_url", Value: r.SourceURL, Message: "must be an absolute http(s) URL"}
	}
	return nil
}

// ValidateProduct enforces the full product contract, applying defaults
// for currency/specs/available/image_urls when absent, and returning
// the normalized record alongside any error.
func ValidateProduct(r ProductRecord) (ProductRecord, error) {
	if err := validateAgainst(productSchema, r); err != nil {
		return r, err
	}
	if !isAbsoluteHTTPURL(r.SourceURL) {
		return r, &ValidationError{Field: "source_url", Value: r.SourceURL, Message: "must be an absolute http(s) URL"}
	}
	for i, u := range r.ImageURLs {
		if !isAbsoluteHTTPURL(u) {
			return r, &ValidationError{Field: fmt.Sprintf("image_urls[%d]", i), Value: u, Message: "must be an absolute http(s) URL"}
		}
	}
	if r.Price != nil && *r.Price <= 0 {
		return r, &ValidationError{Field: "price", Value: *r.Price, Message: "must be a positive number"}
	}
	if strings.TrimSpace(r.Currency) == "" {
		r.Currency = "GBP"
	}
	if len(r.Currency) != 3 {
		return r, &ValidationError{Field: "currency", Value: r.Currency, Message: "must be a 3-letter ISO 4217 code"}
	}
	r.Currency = strings.ToUpper(r.Currency)
	if r.Specs == nil {
		r.Specs = map[string]interface{}{}
	}
	if r.ImageURLs == nil {
		r.ImageURLs = []string{}
	}
	if r.Available == nil {
		t := true
		r.Available = &t
	}
	return r, nil
}
