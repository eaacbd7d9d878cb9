package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yami-59/network-ops-demo/internal/model"
)

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) { return false, errors.New("boom") }
func (brokenLimiter) Close() error { return nil }

func serve(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/assistant", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	t.Parallel()
	m, _ := newLimiter(t, 1, 1)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware(m, IPKeyFunc, func(*http.Request) string { return "req-1" }, slog.New(slog.DiscardHandler))(ok)

	assert.Equal(t, http.StatusNoContent, serve(h, "192.0.2.1:5000").Code)

	rec := serve(h, "192.0.2.1:5001")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	var body model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, model.ErrCodeRateLimited, body.Error.Code)
	assert.Equal(t, "req-1", body.Meta.RequestID)

	assert.Equal(t, http.StatusNoContent, serve(h, "192.0.2.2:5000").Code)
}

func TestMiddlewareFailsOpen(t *testing.T) {
	t.Parallel()
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware(brokenLimiter{}, IPKeyFunc, nil, slog.New(slog.DiscardHandler))(ok)
	assert.Equal(t, http.StatusNoContent, serve(h, "192.0.2.1:5000").Code)

	h = Middleware(nil, IPKeyFunc, nil, slog.New(slog.DiscardHandler))(ok)
	assert.Equal(t, http.StatusNoContent, serve(h, "192.0.2.1:5000").Code)
}

func TestIPKeyFunc(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"192.0.2.1:5000":   "192.0.2.1",
		"[2001:db8::1]:80": "2001:db8::1",
		"unix":             "unix",
	}
	for remote, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		assert.Equal(t, want, IPKeyFunc(req), remote)
	}
}
