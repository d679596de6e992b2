// Copyright 2025 James Ross
package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNavigation(t *testing.T) {
	err := ValidateNavigation(NavigationRecord{Title: "Fiction", SourceURL: "https://example.test/nav/fiction"})
	assert.NoError(t, err)

	err = ValidateNavigation(NavigationRecord{Title: "", SourceURL: "https://example.test/nav/fiction"})
	assert.Error(t, err)

	err = ValidateNavigation(NavigationRecord{Title: "Fiction", SourceURL: "/relative"})
	assert.Error(t, err)
}

func TestValidateCategory(t *testing.T) {
	err := ValidateCategory(CategoryRecord{Title: "Sci-Fi", SourceURL: "https://example.test/cat/scifi"})
	assert.NoError(t, err)

	err = ValidateCategory(CategoryRecord{Title: "Sci-Fi", SourceURL: "ftp://example.test/cat/scifi"})
	assert.Error(t, err)
}

func TestValidateProductDefaults(t *testing.T) {
	r, err := ValidateProduct(ProductRecord{
		Title:     "Dune",
		SourceURL: "https://example.test/p/dune",
	})
	require.NoError(t, err)
	assert.Equal(t, "GBP", r.Currency)
	assert.NotNil(t, r.Available)
	assert.True(t, *r.Available)
	assert.Empty(t, r.ImageURLs)
	assert.NotNil(t, r.Specs)
}

func TestValidateProductRejectsNegativePrice(t *testing.T) {
	price := -5.0
	_, err := ValidateProduct(ProductRecord{
		Title:     "Dune",
		SourceURL: "https://example.test/p/dune",
		Price:     &price,
	})
	assert.Error(t, err)
}

func TestValidateProductRejectsRelativeImageURL(t *testing.T) {
	_, err := ValidateProduct(ProductRecord{
		Title:     "Dune",
		SourceURL: "https://example.test/p/dune",
		ImageURLs: []string{"/images/dune.jpg"},
	})
	assert.Error(t, err)
}

func TestValidateProductMissingTitle(t *testing.T) {
	_, err := ValidateProduct(ProductRecord{
		SourceURL: "https://example.test/p/dune",
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}
