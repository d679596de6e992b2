// Copyright 2025 James Ross
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// NavigationRecord is one candidate navigation entry emitted by the
// navigation page handler.
type NavigationRecord struct {
	Title     string     `json:"title"`
	SourceURL string     `json:"source_url"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
}

// CategoryRecord is the category half of a category-handler result.
type CategoryRecord struct {
	NavigationID *uuid.UUID `json:"navigation_id,omitempty"`
	Title        string     `json:"title"`
	SourceURL    string     `json:"source_url"`
}

// ProductSummary is the lightweight product stub a category listing
// page yields while paginating; it never reaches the catalog store
// directly, only the image pipeline (for its thumbnail).
type ProductSummary struct {
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Price     *float64 `json:"price,omitempty"`
	Currency  string   `json:"currency,omitempty"`
	Thumbnail string   `json:"thumbnail,omitempty"`
}

// ProductRecord is a full product detail record, as produced by the
// product handler after image URLs have been resolved through the
// image pipeline into canonical object-store URLs.
type ProductRecord struct {
	CategoryID *uuid.UUID             `json:"category_id,omitempty"`
	Title      string                 `json:"title"`
	SourceURL  string                 `json:"source_url"`
	SourceID   string                 `json:"source_id,omitempty"`
	Price      *float64               `json:"price,omitempty"`
	Currency   string                 `json:"currency,omitempty"`
	ImageURLs  []string               `json:"image_urls"`
	Summary    string                 `json:"summary,omitempty"`
	Specs      map[string]interface{} `json:"specs,omitempty"`
	Available  *bool                  `json:"available,omitempty"`
}

// StoredNavigation mirrors one navigation table row.
type StoredNavigation struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	SourceURL     string     `json:"source_url"`
	ParentID      *uuid.UUID `json:"parent_id,omitempty"`
	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// StoredCategory mirrors one category table row.
type StoredCategory struct {
	ID            uuid.UUID  `json:"id"`
	NavigationID  *uuid.UUID `json:"navigation_id,omitempty"`
	Title         string     `json:"title"`
	SourceURL     string     `json:"source_url"`
	ProductCount  int        `json:"product_count"`
	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// StoredProduct mirrors one product table row.
type StoredProduct struct {
	ID            uuid.UUID              `json:"id"`
	CategoryID    *uuid.UUID             `json:"category_id,omitempty"`
	Title         string                 `json:"title"`
	SourceURL     string                 `json:"source_url"`
	SourceID      string                 `json:"source_id,omitempty"`
	Price         *float64               `json:"price,omitempty"`
	Currency      string                 `json:"currency"`
	ImageURLs     []string               `json:"image_urls"`
	Summary       string                 `json:"summary,omitempty"`
	Specs         map[string]interface{} `json:"specs"`
	Available     bool                   `json:"available"`
	LastScrapedAt *time.Time             `json:"last_scraped_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// ScrapingResult is the aggregate input to UpsertScrapingResult: all
// records discovered while processing one job.
type ScrapingResult struct {
	Navigations []NavigationRecord
	Categories  []CategoryRecord
	Products    []ProductRecord
}
