// Copyright 2025 James Ross
package imagepipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is a minimal PutObject-only double: it accepts any PUT and
// answers with an ETag, enough for s3manager.Uploader's single-part
// upload path to consider the call successful.
func fakeS3(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"fake-etag"`)
		w.WriteHeader(http.StatusOK)
	}))
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	s3srv := fakeS3(t)
	t.Cleanup(s3srv.Close)

	store, err := NewObjectStore(ObjectStoreConfig{
		Endpoint:  s3srv.URL,
		KeyID:     "test",
		Secret:    "test",
		Bucket:    "catalog-images",
		Region:    "us-east-1",
		PublicURL: "https://images.example.test",
		PathStyle: true,
	})
	require.NoError(t, err)
	return NewPipeline(store)
}

func TestPipelineProcessImage(t *testing.T) {
	data := testJPEG(t, 40, 30)
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(data)
	}))
	defer imgSrv.Close()

	p := newTestPipeline(t)
	result, err := p.ProcessImage(context.Background(), imgSrv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", result.Format)
	assert.Contains(t, result.URL, "https://images.example.test/products/")
	assert.Greater(t, result.Bytes, 0)
}

func TestPipelineProcessBatchPreservesOrderAndIsolatesFailures(t *testing.T) {
	data := testJPEG(t, 20, 20)
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("nope"))
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(data)
	}))
	defer imgSrv.Close()

	p := newTestPipeline(t)
	urls := []string{imgSrv.URL + "/a", imgSrv.URL + "/bad", imgSrv.URL + "/c"}
	results, errs := p.ProcessBatch(context.Background(), urls, (*url.URL)(nil))

	require.Len(t, results, 3)
	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.Error(t, errs[1])
	assert.NoError(t, errs[2])
	assert.NotEmpty(t, results[0].URL)
	assert.NotEmpty(t, results[2].URL)
}
