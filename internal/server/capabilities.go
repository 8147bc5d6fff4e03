// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"google.golang.org/api/option"

	"codeberg.org/oliverandrich/bizcard-snap/internal/config"
	"codeberg.org/oliverandrich/bizcard-snap/internal/extraction"
	"codeberg.org/oliverandrich/bizcard-snap/internal/ner"
	"codeberg.org/oliverandrich/bizcard-snap/internal/ocr"
	"codeberg.org/oliverandrich/bizcard-snap/internal/qr"
	"codeberg.org/oliverandrich/bizcard-snap/internal/services/email"
	"codeberg.org/oliverandrich/bizcard-snap/internal/services/reset"
)

// capabilities holds the extraction backends chosen by configuration.
type capabilities struct {
	recognizer extraction.TextRecognizer
	decoder    extraction.QRDecoder
	classifier extraction.EntityClassifier
	closers    []io.Closer
}

func (c *capabilities) Close() {
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			slog.Error("failed to close capability", "error", err)
		}
	}
}

func newCapabilities(ctx context.Context, cfg config.ExtractionConfig) (*capabilities, error) {
	caps := &capabilities{decoder: qr.NewDecoder()}

	switch cfg.OCREngine {
	case ocr.EngineVision:
		var opts []option.ClientOption
		if cfg.VisionCredentials != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.VisionCredentials))
		}
		v, err := ocr.NewVision(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to init vision: %w", err)
		}
		caps.recognizer = v
		caps.closers = append(caps.closers, v)
	default:
		caps.recognizer = ocr.NewTesseract(cfg.OCRLanguages, cfg.TessdataPrefix)
	}

	switch cfg.Classifier {
	case ner.ClassifierGemini:
		g, err := ner.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			caps.Close()
			return nil, fmt.Errorf("failed to init gemini: %w", err)
		}
		caps.classifier = g
		caps.closers = append(caps.closers, g)
	default:
		caps.classifier = ner.NewGLiNER(cfg.GLiNERURL, &http.Client{Timeout: cfg.Timeout})
	}

	slog.Info("extraction configured",
		"ocr_engine", cfg.OCREngine,
		"classifier", cfg.Classifier,
		"threshold", cfg.Threshold,
		"nested", cfg.Nested,
	)
	return caps, nil
}

// newMailer returns the SMTP sender, or a sender that logs codes when SMTP
// is not configured.
func newMailer(cfg *config.SMTPConfig) (reset.Mailer, error) {
	if !cfg.Enabled() {
		slog.Warn("SMTP not configured, reset codes will be logged")
		return email.LogSender{}, nil
	}
	return email.NewService(cfg)
}
