// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	vision "cloud.google.com/go/vision/apiv1"
	"google.golang.org/api/option"
)

// Vision recognizes text with the Google Cloud Vision API.
type Vision struct {
	client *vision.ImageAnnotatorClient
}

// NewVision creates a Vision recognizer. Credentials come from opts or the
// application default credentials.
func NewVision(ctx context.Context, opts ...option.ClientOption) (*Vision, error) {
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}
	return &Vision{client: client}, nil
}

// Close releases the underlying connection.
func (v *Vision) Close() error {
	return v.client.Close()
}

// Recognize returns one fragment per detected paragraph.
func (v *Vision) Recognize(ctx context.Context, img image.Image) ([]string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	vimg, err := vision.NewImageFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("prepare image: %w", err)
	}

	annotation, err := v.client.DetectDocumentText(ctx, vimg, nil)
	if err != nil {
		return nil, fmt.Errorf("detect document text: %w", err)
	}
	if annotation == nil {
		return []string{}, nil
	}

	var raw []string
	for _, page := range annotation.GetPages() {
		for _, block := range page.GetBlocks() {
			for _, para := range block.GetParagraphs() {
				words := make([]string, 0, len(para.GetWords()))
				for _, word := range para.GetWords() {
					var sb strings.Builder
					for _, sym := range word.GetSymbols() {
						sb.WriteString(sym.GetText())
					}
					words = append(words, sb.String())
				}
				raw = append(raw, strings.Join(words, " "))
			}
		}
	}
	if len(raw) == 0 && annotation.GetText() != "" {
		raw = strings.Split(annotation.GetText(), "\n")
	}
	return cleanFragments(raw), nil
}
