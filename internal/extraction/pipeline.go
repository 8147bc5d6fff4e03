// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package extraction turns a business-card image into labelled fields.
//
// A Pipeline fans out to a text recognizer and a QR decoder, hands the
// recognized text to an entity classifier and merges the classifier output
// with a phone-number regex pass.
package extraction

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"codeberg.org/oliverandrich/bizcard-snap/internal/apperr"
)

// Classifier and timeout defaults, see DefaultOptions.
const (
	DefaultThreshold = 0.3
	DefaultTimeout   = 30 * time.Second
)

// QRKey is the response key carrying a decoded QR payload.
const QRKey = "QR URL"

// TextRecognizer returns the text fragments found in an image in reading order.
type TextRecognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]string, error)
}

// QRDecoder returns the payload of the first QR code in an image.
// found is false when the image holds no QR code.
type QRDecoder interface {
	Decode(ctx context.Context, img image.Image) (payload string, found bool, err error)
}

// ClassifyOptions tunes an EntityClassifier call.
type ClassifyOptions struct {
	Threshold float64
	Nested    bool
}

// EntityClassifier finds labelled spans in text.
type EntityClassifier interface {
	Classify(ctx context.Context, text string, labels []string, opts ClassifyOptions) ([]Span, error)
}

// Options configures a Pipeline. Threshold and Nested are passed to the
// classifier as given, so a zero Threshold keeps every span.
type Options struct {
	Threshold float64
	Nested    bool
	Timeout   time.Duration
}

// DefaultOptions returns the classifier policy defaults.
func DefaultOptions() Options {
	return Options{
		Threshold: DefaultThreshold,
		Nested:    true,
		Timeout:   DefaultTimeout,
	}
}

// Pipeline runs the extraction steps. It is safe for concurrent use when its
// capabilities are.
type Pipeline struct {
	recognizer TextRecognizer
	decoder    QRDecoder
	classifier EntityClassifier
	opts       Options
}

// Extraction is the outcome of one Pipeline run.
type Extraction struct {
	Text      string
	Fields    Fields
	QRPayload string
	HasQR     bool
}

// Result returns the response object: the six display labels, plus QRKey
// when a QR code was decoded.
func (e *Extraction) Result() map[string]string {
	out := make(map[string]string, len(Labels)+1)
	for _, l := range Labels {
		out[string(l)] = e.Fields.Get(l)
	}
	if e.HasQR {
		out[QRKey] = e.QRPayload
	}
	return out
}

// New creates a Pipeline. A zero Timeout falls back to DefaultTimeout.
func New(recognizer TextRecognizer, decoder QRDecoder, classifier EntityClassifier, opts Options) *Pipeline {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Pipeline{
		recognizer: recognizer,
		decoder:    decoder,
		classifier: classifier,
		opts:       opts,
	}
}

// Extract runs recognition and QR decoding concurrently, classifies the joined
// text and merges the findings. Any capability failure or timeout yields a
// KindDependency error.
func (p *Pipeline) Extract(ctx context.Context, img image.Image) (*Extraction, error) {
	var (
		fragments []string
		qr        decoded
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fragments, err = within(gctx, p.opts.Timeout, func(ctx context.Context) ([]string, error) {
			return p.recognizer.Recognize(ctx, img)
		})
		if err != nil {
			return fmt.Errorf("text recognition: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		qr, err = within(gctx, p.opts.Timeout, func(ctx context.Context) (decoded, error) {
			payload, found, err := p.decoder.Decode(ctx, img)
			return decoded{payload: payload, found: found}, err
		})
		if err != nil {
			return fmt.Errorf("qr decoding: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		slog.Error("extraction failed", "error", err)
		return nil, apperr.Dependency("extraction failed", err)
	}

	text := strings.Join(fragments, " ")
	slog.Debug("recognized text", "fragments", len(fragments), "has_qr", qr.found)

	labels := PromptLabels()
	opts := ClassifyOptions{Threshold: p.opts.Threshold, Nested: p.opts.Nested}
	spans, err := within(ctx, p.opts.Timeout, func(ctx context.Context) ([]Span, error) {
		return p.classifier.Classify(ctx, text, labels, opts)
	})
	if err != nil {
		err = fmt.Errorf("entity classification: %w", err)
		slog.Error("extraction failed", "error", err)
		return nil, apperr.Dependency("extraction failed", err)
	}

	return &Extraction{
		Text:      text,
		Fields:    Merge(spans, text),
		QRPayload: qr.payload,
		HasQR:     qr.found,
	}, nil
}

type decoded struct {
	payload string
	found   bool
}

// within runs fn under a deadline and gives up when the deadline passes,
// even if fn ignores its context.
func within[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{val: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
