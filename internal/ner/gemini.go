// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"codeberg.org/oliverandrich/bizcard-snap/internal/extraction"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-2.0-flash-lite"

const geminiPrompt = `You extract entities from the text of a scanned business card.

Rules:
1. Only use these labels: %s.
2. Return a JSON array. Each element is an object with "label", "text" and "score".
3. "text" must be copied verbatim from the input. "score" is your confidence between 0 and 1.
4. %s
5. Return ONLY the JSON array. No explanations, no text before or after it.

Text:
"""
%s
"""`

// Gemini classifies entities with a Google Gemini model.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini classifier authenticated with apiKey.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing gemini api key")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// Classify asks the model for labelled spans and drops those below the
// threshold.
func (g *Gemini) Classify(ctx context.Context, text string, labels []string, opts extraction.ClassifyOptions) ([]extraction.Span, error) {
	model := g.client.GenerativeModel(g.model)
	model.GenerationConfig = genai.GenerationConfig{ResponseMIMEType: "application/json"}
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx, genai.Text(buildPrompt(text, labels, opts.Nested)))
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil, errors.New("empty response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return parseSpans(sb.String(), opts.Threshold)
}

func buildPrompt(text string, labels []string, nested bool) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = `"` + l + `"`
	}
	overlap := "Spans must not overlap."
	if nested {
		overlap = "Spans may overlap or nest."
	}
	return fmt.Sprintf(geminiPrompt, strings.Join(quoted, ", "), overlap, text)
}

// parseSpans reads the model answer, tolerating code fences and prose
// around the JSON array.
func parseSpans(raw string, threshold float64) ([]extraction.Span, error) {
	s := stripCodeFences(strings.TrimSpace(raw))
	if start, end := strings.Index(s, "["), strings.LastIndex(s, "]"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	if s == "" {
		return nil, errors.New("no text in gemini response")
	}

	var spans []extraction.Span
	if err := json.Unmarshal([]byte(s), &spans); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	out := make([]extraction.Span, 0, len(spans))
	for _, sp := range spans {
		if sp.Score < threshold {
			continue
		}
		out = append(out, sp)
	}
	return out, nil
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
