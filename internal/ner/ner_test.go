// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/bizcard-snap/internal/extraction"
)

func TestGLiNER_Classify(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entities":[{"label":"person name","text":"John Smith","score":0.91}]}`))
	}))
	defer srv.Close()

	g := NewGLiNER(srv.URL+"/", srv.Client())
	spans, err := g.Classify(context.Background(), "John Smith, CEO", extraction.PromptLabels(),
		extraction.ClassifyOptions{Threshold: 0.3, Nested: true})

	require.NoError(t, err)
	assert.Equal(t, []extraction.Span{{Label: "person name", Text: "John Smith", Score: 0.91}}, spans)
	assert.Equal(t, "John Smith, CEO", got.Text)
	assert.Equal(t, extraction.PromptLabels(), got.Labels)
	assert.InDelta(t, 0.3, got.Threshold, 1e-9)
	assert.False(t, got.FlatNER)
}

func TestGLiNER_EmptyEntities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	spans, err := NewGLiNER(srv.URL, nil).Classify(context.Background(), "", nil, extraction.ClassifyOptions{})

	require.NoError(t, err)
	assert.NotNil(t, spans)
	assert.Empty(t, spans)
}

func TestGLiNER_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"entities":[]}`))
	}))
	defer srv.Close()

	_, err := NewGLiNER(srv.URL, nil).Classify(context.Background(), "x", nil, extraction.ClassifyOptions{})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGLiNER_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad labels", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewGLiNER(srv.URL, nil).Classify(context.Background(), "x", nil, extraction.ClassifyOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "bad labels")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGLiNER_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewGLiNER(srv.URL, nil).Classify(ctx, "x", nil, extraction.ClassifyOptions{})

	require.Error(t, err)
}

func TestParseSpans(t *testing.T) {
	raw := "```json\n[{\"label\":\"email\",\"text\":\"a@b.com\",\"score\":0.9},{\"label\":\"phone\",\"text\":\"123\",\"score\":0.1}]\n```"

	spans, err := parseSpans(raw, 0.3)

	require.NoError(t, err)
	assert.Equal(t, []extraction.Span{{Label: "email", Text: "a@b.com", Score: 0.9}}, spans)
}

func TestParseSpans_ProseAround(t *testing.T) {
	spans, err := parseSpans(`Here you go: [{"label":"job title","text":"CEO","score":0.8}] hope that helps`, 0.3)

	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "CEO", spans[0].Text)
}

func TestParseSpans_Invalid(t *testing.T) {
	_, err := parseSpans("not json", 0.3)
	require.Error(t, err)

	_, err = parseSpans("   ", 0.3)
	require.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("John", []string{"person name", "phone"}, true)

	assert.Contains(t, p, `"person name", "phone"`)
	assert.Contains(t, p, "may overlap")
	assert.Contains(t, p, "John")
	assert.Contains(t, buildPrompt("x", nil, false), "must not overlap")
}

func TestNewGemini_MissingKey(t *testing.T) {
	_, err := NewGemini(context.Background(), " ", "")

	require.Error(t, err)
}
