// Copyright 2025 James Ross
package urlpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateAllowsProductAndCollection(t *testing.T) {
	assert.True(t, Evaluate("https://example.test/p/dune").Allowed)
	assert.True(t, Evaluate("https://example.test/collections/fiction").Allowed)
}

func TestEvaluateDeniesAdminCartCheckout(t *testing.T) {
	assert.False(t, Evaluate("https://example.test/admin/orders").Allowed)
	assert.False(t, Evaluate("https://example.test/cart").Allowed)
	assert.False(t, Evaluate("https://example.test/checkout/step1").Allowed)
	assert.False(t, Evaluate("https://example.test/account/profile").Allowed)
}

func TestEvaluateDeniesNonHTTPScheme(t *testing.T) {
	assert.False(t, Evaluate("ftp://example.test/p/dune").Allowed)
}

func TestEvaluateDeniesFilteredCollection(t *testing.T) {
	assert.False(t, Evaluate("https://example.test/collections/fiction?color=red").Allowed)
}

func TestNormalizeStripsTrackingParams(t *testing.T) {
	out, err := Normalize("https://example.test/p/dune?utm_source=newsletter&ref=abc")
	assert.NoError(t, err)
	assert.NotContains(t, out, "utm_source")
	assert.NotContains(t, out, "ref=")
}
