// Copyright 2025 James Ross
package imagepipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// defaultMaxBytes caps a single downloaded image body.
	defaultMaxBytes = 5 * 1024 * 1024

	userAgent = "catalog-scrape-core/1.0 (+image-pipeline)"
)

// fetched is a downloaded, content-type-checked image body.
type fetched struct {
	data        []byte
	contentType string
	sourceURL   string
}

// resolveImageURL resolves raw against base if raw is relative, rewrites
// protocol-relative URLs ("//host/path") to https, and rejects anything
// that doesn't end up http or https.
func resolveImageURL(raw string, base *url.URL) (string, error) {
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("imagepipeline: parse image url %q: %w", raw, err)
	}

	if !u.IsAbs() {
		if base == nil {
			return "", fmt.Errorf("%w: relative url %q with no base", ErrUnsupportedScheme, raw)
		}
		u = base.ResolveReference(u)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	return u.String(), nil
}

// fetchImage downloads the resource at resolvedURL, enforcing the size
// cap and content type checks described in the image pipeline's fetch
// stage. maxBytes <= 0 selects defaultMaxBytes.
func fetchImage(ctx context.Context, client *http.Client, resolvedURL string, maxBytes int64) (fetched, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolvedURL, nil)
	if err != nil {
		return fetched{}, fmt.Errorf("imagepipeline: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := client.Do(req)
	if err != nil {
		return fetched{}, fmt.Errorf("imagepipeline: fetch %s: %w", resolvedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fetched{}, fmt.Errorf("imagepipeline: fetch %s: status %d", resolvedURL, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return fetched{}, fmt.Errorf("%w: content-type %q", ErrNotImage, contentType)
	}

	limited := io.LimitReader(resp.Body, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return fetched{}, fmt.Errorf("imagepipeline: read body of %s: %w", resolvedURL, err)
	}
	if int64(len(data)) > maxBytes {
		return fetched{}, fmt.Errorf("%w: %s", ErrTooLarge, resolvedURL)
	}
	if len(data) == 0 {
		return fetched{}, fmt.Errorf("%w: %s", ErrEmptyBody, resolvedURL)
	}

	return fetched{data: data, contentType: contentType, sourceURL: resolvedURL}, nil
}
