// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package qr reads QR codes from card images and renders contact QR codes.
package qr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/makiuchi-d/gozxing"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"

	"codeberg.org/oliverandrich/bizcard-snap/internal/imaging"
)

// Decoder finds the QR codes in an image and keeps the first one.
type Decoder struct {
	hints map[gozxing.DecodeHintType]any
}

// NewDecoder creates a Decoder that tries hard on noisy photos.
func NewDecoder() *Decoder {
	return &Decoder{
		hints: map[gozxing.DecodeHintType]any{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode returns the QR payload. found is false when no readable QR code is
// present; that is not an error.
func (d *Decoder) Decode(ctx context.Context, img image.Image) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(imaging.ToNRGBA(img))
	if err != nil {
		return "", false, fmt.Errorf("prepare bitmap: %w", err)
	}

	// Readers keep per-decode state, so each call gets fresh ones.
	results, err := multiqr.NewQRCodeMultiReader().DecodeMultiple(bmp, d.hints)
	if err != nil && !isAbsence(err) {
		return "", false, fmt.Errorf("decode qr codes: %w", err)
	}
	if len(results) > 0 {
		if len(results) > 1 {
			slog.Debug("multiple qr codes found, keeping first", "count", len(results))
		}
		return results[0].GetText(), true, nil
	}

	// The multi detector skips some symbols the single reader still finds.
	result, err := zxqr.NewQRCodeReader().Decode(bmp, d.hints)
	if err != nil {
		if isAbsence(err) {
			slog.Debug("no qr code found", "reason", err)
			return "", false, nil
		}
		return "", false, fmt.Errorf("decode qr: %w", err)
	}
	return result.GetText(), true, nil
}

// isAbsence reports whether err means no readable QR code, which covers
// missing, damaged and unreadable symbols.
func isAbsence(err error) bool {
	var rerr gozxing.ReaderException
	return errors.As(err, &rerr)
}
