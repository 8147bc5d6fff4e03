// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ocr provides text recognizers for card images.
package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
)

// Engine names accepted by configuration.
const (
	EngineTesseract = "tesseract"
	EngineVision    = "vision"
)

// encodePNG serializes img for engines that take encoded bytes.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// cleanFragments trims fragments and drops empty ones.
func cleanFragments(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.Join(strings.Fields(s), " ")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
