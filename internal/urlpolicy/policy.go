// Copyright 2025 James Ross
// Package urlpolicy implements the allow/deny crawl policy and
// per-host rate limiting consumed by page handlers.
package urlpolicy

import (
	"net/url"
	"strings"
)

// denySegments are path segments that, anywhere in the URL path,
// exclude it from crawling.
var denySegments = []string{
	"/admin", "/account", "/cart", "/checkout", "/login", "/logout",
}

// trackingParams are stripped before dedup/allow-list checks.
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"gclid", "fbclid", "ref", "affid",
}

// Decision records why a URL was allowed or denied.
type Decision struct {
	Allowed bool
	Reason  string
}

// Normalize strips tracking parameters and re-serializes the URL with
// a stable (sorted) query string, so that equivalent URLs compare
// equal for dedup purposes.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Evaluate applies the allow/deny policy to a resolved, absolute URL.
// Filtered-collection URLs are detected as category/collection paths
// carrying a leftover query string after tracking-parameter stripping,
// since query-filtered listings are not canonical category pages.
func Evaluate(raw string) Decision {
	u, err := url.Parse(raw)
	if err != nil {
		return Decision{Allowed: false, Reason: "unparseable url"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Decision{Allowed: false, Reason: "non-http(s) scheme"}
	}

	path := strings.ToLower(u.Path)
	for _, seg := range denySegments {
		for _, part := range strings.Split(path, "/") {
			if "/"+part == seg {
				return Decision{Allowed: false, Reason: "denied path segment: " + seg}
			}
		}
	}

	normalized, err := Normalize(raw)
	if err != nil {
		return Decision{Allowed: false, Reason: "unparseable url"}
	}
	nu, _ := url.Parse(normalized)
	if nu.RawQuery != "" && (strings.Contains(path, "/category") || strings.Contains(path, "/collections")) {
		return Decision{Allowed: false, Reason: "filtered collection url"}
	}

	return Decision{Allowed: true, Reason: ""}
}
