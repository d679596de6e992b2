// Copyright 2025 James Ross
package imagepipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultBatchConcurrency bounds how many images a single ProcessBatch
// call fetches/transforms/uploads at once.
const defaultBatchConcurrency = 3

// Result is the outcome of processing a single image: its canonical
// object-store URL, byte size after re-encoding, and detected source
// format.
type Result struct {
	URL    string
	Bytes  int
	Format string
}

// Pipeline ties the fetch, decode, transform and upload stages
// together. One Pipeline is shared by a worker pool.
type Pipeline struct {
	store       *ObjectStore
	client      *http.Client
	maxBytes    int64
	concurrency int
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithMaxBytes overrides the per-image size cap.
func WithMaxBytes(n int64) Option {
	return func(p *Pipeline) { p.maxBytes = n }
}

// WithConcurrency overrides the batch concurrency bound.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithHTTPClient overrides the HTTP client used to fetch images.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) { p.client = c }
}

func NewPipeline(store *ObjectStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		client:      &http.Client{Timeout: 15 * time.Second},
		maxBytes:    defaultMaxBytes,
		concurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessImage runs a single image through fetch, decode, resize and
// upload, returning its canonical object-store URL. base is used to
// resolve rawURL when it is relative or protocol-relative; it may be nil
// when rawURL is already absolute.
func (p *Pipeline) ProcessImage(ctx context.Context, rawURL string, base *url.URL) (Result, error) {
	resolved, err := resolveImageURL(rawURL, base)
	if err != nil {
		return Result{}, err
	}

	body, err := fetchImage(ctx, p.client, resolved, p.maxBytes)
	if err != nil {
		return Result{}, err
	}

	dec, err := decodeImage(body.data)
	if err != nil {
		return Result{}, err
	}

	resized := resizeIfNeeded(dec.img)
	encoded, err := encodeJPEG(resized)
	if err != nil {
		return Result{}, fmt.Errorf("imagepipeline: encode %s: %w", resolved, err)
	}

	objectURL, err := p.store.PutProductImage(uuid.NewString(), encoded, resolved)
	if err != nil {
		return Result{}, err
	}

	return Result{URL: objectURL, Bytes: len(encoded), Format: dec.format}, nil
}

// batchItem pairs a ProcessBatch result with its originating index so
// order can be restored after bounded-concurrency processing.
type batchItem struct {
	index  int
	result Result
	err    error
}

// ProcessBatch processes rawURLs with bounded concurrency. The input
// order is preserved in the returned slice; a failure on one image
// never aborts the rest of the batch, it is simply reported as a
// non-nil error at its index.
func (p *Pipeline) ProcessBatch(ctx context.Context, rawURLs []string, base *url.URL) ([]Result, []error) {
	results := make([]Result, len(rawURLs))
	errs := make([]error, len(rawURLs))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	out := make(chan batchItem, len(rawURLs))

	for i, raw := range rawURLs {
		wg.Add(1)
		go func(i int, raw string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := p.ProcessImage(ctx, raw, base)
			out <- batchItem{index: i, result: res, err: err}
		}(i, raw)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	for item := range out {
		results[item.index] = item.result
		errs[item.index] = item.err
	}
	return results, errs
}

// Health proxies the underlying object store's connectivity check.
func (p *Pipeline) Health() error {
	return p.store.Health()
}
