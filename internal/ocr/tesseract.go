// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text with a local Tesseract installation.
// Every call gets its own client, so one Tesseract serves concurrent requests.
type Tesseract struct {
	clientFactory  func() *gosseract.Client
	languages      []string
	tessdataPrefix string
}

// NewTesseract creates a Tesseract recognizer. An empty languages list uses
// Tesseract's default ("eng").
func NewTesseract(languages []string, tessdataPrefix string) *Tesseract {
	return &Tesseract{
		clientFactory:  gosseract.NewClient,
		languages:      languages,
		tessdataPrefix: tessdataPrefix,
	}
}

// Recognize returns one fragment per recognized paragraph in reading order.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	c := t.clientFactory()
	defer c.Close()

	if t.tessdataPrefix != "" {
		if err := c.SetTessdataPrefix(t.tessdataPrefix); err != nil {
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if len(t.languages) > 0 {
		if err := c.SetLanguage(t.languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_PARA)
	if err != nil {
		return nil, fmt.Errorf("recognize paragraphs: %w", err)
	}
	if len(boxes) > 0 {
		raw := make([]string, 0, len(boxes))
		for _, b := range boxes {
			raw = append(raw, b.Word)
		}
		return cleanFragments(raw), nil
	}

	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	return cleanFragments(strings.Split(text, "\n\n")), nil
}
