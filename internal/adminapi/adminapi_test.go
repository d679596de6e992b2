// Copyright 2025 James Ross
package adminapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(h *Handler) http.Handler {
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	var handler http.Handler = router
	handler = RecoveryMiddleware(h.log)(handler)
	handler = RequestIDMiddleware()(handler)
	return handler
}

func TestHealthOK(t *testing.T) {
	h := &Handler{log: zap.NewNop()}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestHealthLiveOK(t *testing.T) {
	h := &Handler{log: zap.NewNop()}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteReturns404JSON(t *testing.T) {
	h := &Handler{log: zap.NewNop()}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Code)
}

func TestCreateJobRejectsInvalidBody(t *testing.T) {
	h := &Handler{log: zap.NewNop()}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_BODY", body.Code)
}

func TestWorkerStatusUninitialized(t *testing.T) {
	h := &Handler{log: zap.NewNop(), pool: nil}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/worker/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecoveryMiddlewareCatchesPanic(t *testing.T) {
	panics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := RecoveryMiddleware(zap.NewNop())(panics)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDMiddlewarePreservesIncomingID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context().Value(contextKeyRequestID).(string)
	})
	handler := RequestIDMiddleware()(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "fixed-id", seen)
	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))
}
