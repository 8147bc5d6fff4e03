// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/bizcard-snap/internal/apperr"
	"codeberg.org/oliverandrich/bizcard-snap/internal/auth"
	"codeberg.org/oliverandrich/bizcard-snap/internal/i18n"
	"codeberg.org/oliverandrich/bizcard-snap/internal/middleware"
)

type stubAuthenticator map[string]string

func (s stubAuthenticator) Authenticate(token string) (string, error) {
	if u, ok := s[token]; ok {
		return u, nil
	}
	return "", &apperr.Error{Kind: apperr.KindAuth, Message: "Invalid or expired token", Err: errors.New("bad token")}
}

func echoUsername() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(auth.Username(r.Context())))
	})
}

func TestRequireBearer(t *testing.T) {
	h := middleware.RequireBearer(stubAuthenticator{"good": "alice"})(echoUsername())

	req := httptest.NewRequest(http.MethodGet, "/cards", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestRequireBearer_Rejects(t *testing.T) {
	h := middleware.RequireBearer(stubAuthenticator{"good": "alice"})(echoUsername())

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing", "", "Missing or invalid Authorization header"},
		{"wrong scheme", "Basic good", "Missing or invalid Authorization header"},
		{"empty token", "Bearer ", "Missing or invalid Authorization header"},
		{"invalid token", "Bearer bad", "Invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/cards", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"`+tt.want+`"}`, rec.Body.String())
		})
	}
}

func TestLocale(t *testing.T) {
	require.NoError(t, i18n.Init())
	var got string
	h := middleware.Locale(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = i18n.GetLocale(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.8")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "de", got)
	assert.Equal(t, "de", rec.Header().Get("Content-Language"))
}

func TestRateLimit(t *testing.T) {
	h := middleware.RateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "203.0.113.7:4711"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own budget.
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "198.51.100.1:4711"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	h := middleware.RateLimit(0)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for range 5 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestStripTrailingSlash(t *testing.T) {
	var got string
	h := middleware.StripTrailingSlash(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = r.URL.Path
	}))

	for in, want := range map[string]string{
		"/cards/":  "/cards",
		"/cards":   "/cards",
		"/":        "/",
		"/cards//": "/cards",
	} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, in, nil))
		assert.Equal(t, want, got, in)
	}
}
