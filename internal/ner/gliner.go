// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ner provides entity classifiers for recognized card text.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"codeberg.org/oliverandrich/bizcard-snap/internal/extraction"
)

// Classifier names accepted by configuration.
const (
	ClassifierGLiNER = "gliner"
	ClassifierGemini = "gemini"
)

// GLiNER calls a GLiNER inference server over HTTP.
//
// The server exposes POST {baseURL}/predict taking
// {"text", "labels", "threshold", "flat_ner"} and answering
// {"entities": [{"label", "text", "score"}]}.
type GLiNER struct {
	client  *http.Client
	baseURL string
	retries uint64
}

// NewGLiNER creates a GLiNER client. A nil client uses http.DefaultClient.
func NewGLiNER(baseURL string, client *http.Client) *GLiNER {
	if client == nil {
		client = http.DefaultClient
	}
	return &GLiNER{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		retries: 2,
	}
}

type predictRequest struct {
	Text      string   `json:"text"`
	Labels    []string `json:"labels"`
	Threshold float64  `json:"threshold"`
	FlatNER   bool     `json:"flat_ner"`
}

type predictResponse struct {
	Entities []extraction.Span `json:"entities"`
}

// Classify sends text to the server and returns its spans. Server errors
// (5xx) and transport failures are retried until ctx expires.
func (g *GLiNER) Classify(ctx context.Context, text string, labels []string, opts extraction.ClassifyOptions) ([]extraction.Span, error) {
	body, err := json.Marshal(predictRequest{
		Text:      text,
		Labels:    labels,
		Threshold: opts.Threshold,
		FlatNER:   !opts.Nested,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var spans []extraction.Span
	backoff := retry.WithMaxRetries(g.retries, retry.NewExponential(100*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		spans, err = g.predict(ctx, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return spans, nil
}

func (g *GLiNER) predict(ctx context.Context, body []byte) ([]extraction.Span, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.RetryableError(fmt.Errorf("gliner request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("gliner returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, retry.RetryableError(err)
		}
		return nil, err
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gliner response: %w", err)
	}
	if out.Entities == nil {
		out.Entities = []extraction.Span{}
	}
	return out.Entities, nil
}
