// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanFragments(t *testing.T) {
	got := cleanFragments([]string{"  John  Smith\n", "", "\t", "Acme\nCorp"})

	assert.Equal(t, []string{"John Smith", "Acme Corp"}, got)
}

func TestCleanFragments_Empty(t *testing.T) {
	got := cleanFragments(nil)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEncodePNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))

	data, err := encodePNG(img)

	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestTesseract_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTesseract([]string{"eng"}, "").Recognize(ctx, image.NewGray(image.Rect(0, 0, 1, 1)))

	assert.ErrorIs(t, err, context.Canceled)
}
