// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package cards runs extractions for a user and manages the saved cards.
package cards

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/bizcard-snap/internal/apperr"
	"codeberg.org/oliverandrich/bizcard-snap/internal/extraction"
	"codeberg.org/oliverandrich/bizcard-snap/internal/imaging"
	"codeberg.org/oliverandrich/bizcard-snap/internal/models"
	"codeberg.org/oliverandrich/bizcard-snap/internal/qr"
	"codeberg.org/oliverandrich/bizcard-snap/internal/repository"
)

// Extractor turns an image into classified fields.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) (*extraction.Extraction, error)
}

// Service handles card extraction and storage.
type Service struct {
	repo         *repository.Repository
	extractor    Extractor
	maxImageSide int
	maxPixels    int
}

// NewService creates a card service. Uploads larger than maxImageSide on
// either edge are downscaled before extraction; 0 disables scaling.
func NewService(repo *repository.Repository, extractor Extractor, maxImageSide int) *Service {
	return &Service{
		repo:         repo,
		extractor:    extractor,
		maxImageSide: maxImageSide,
		maxPixels:    imaging.DefaultMaxPixels,
	}
}

// WithMaxPixels sets the largest accepted upload in pixels; 0 disables the
// check.
func (s *Service) WithMaxPixels(n int) *Service {
	s.maxPixels = n
	return s
}

// Extracted is the outcome of Extract: the stored card and the raw result.
type Extracted struct {
	Card   *models.Card
	Result *extraction.Extraction
}

// Response returns the /extract body: the card id, the six display labels
// and "QR URL" when a code was found.
func (e *Extracted) Response() map[string]string {
	out := e.Result.Result()
	out["id"] = e.Card.ID
	return out
}

// Extract decodes the uploaded image, runs the pipeline and saves the card.
func (s *Service) Extract(ctx context.Context, owner string, r io.Reader) (*Extracted, error) {
	img, format, err := imaging.Decode(r, s.maxPixels)
	if err != nil {
		slog.Warn("extract_invalid_image", "username", owner, "error", err)
		return nil, &apperr.Error{Kind: apperr.KindValidation, Message: "Invalid image", Err: err}
	}

	bounds := img.Bounds()
	img = imaging.Fit(img, s.maxImageSide)

	start := time.Now()
	result, err := s.extractor.Extract(ctx, img)
	if err != nil {
		return nil, err
	}

	card := cardFromFields(result.Fields)
	card.Owner = owner
	card.QRURL = result.QRPayload
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to save card: %w", err)
	}

	slog.Info("card_extracted",
		"username", owner,
		"card_id", card.ID,
		"format", format,
		"width", bounds.Dx(),
		"height", bounds.Dy(),
		"has_qr", result.HasQR,
		"duration", time.Since(start),
	)
	return &Extracted{Card: card, Result: result}, nil
}

func cardFromFields(f extraction.Fields) *models.Card {
	return &models.Card{
		PersonName:  f.Get(extraction.PersonName),
		CompanyName: f.Get(extraction.CompanyName),
		JobTitle:    f.Get(extraction.JobTitle),
		Phone:       f.Get(extraction.Phone),
		Email:       f.Get(extraction.Email),
		Address:     f.Get(extraction.Address),
	}
}

// List returns the cards of owner, newest first.
func (s *Service) List(ctx context.Context, owner string) ([]models.Card, error) {
	cards, err := s.repo.ListCards(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, nil
}

// Get returns one card of owner.
func (s *Service) Get(ctx context.Context, owner, id string) (*models.Card, error) {
	card, err := s.repo.GetCard(ctx, owner, id)
	if err != nil {
		return nil, notFound(err)
	}
	return card, nil
}

// Delete removes one card of owner by id.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if err := s.repo.DeleteCard(ctx, owner, id); err != nil {
		return notFound(err)
	}
	slog.Info("card_deleted", "username", owner, "card_id", id)
	return nil
}

// DeleteByTimestamp removes the card of owner created at the given ISO 8601
// timestamp. Timestamps without a zone are read as UTC.
func (s *Service) DeleteByTimestamp(ctx context.Context, owner, raw string) error {
	ts, err := ParseTimestamp(raw)
	if err != nil {
		return &apperr.Error{Kind: apperr.KindValidation, Message: "Invalid timestamp format", Err: err}
	}

	createdAt := models.FormatTimestamp(ts)
	if err := s.repo.DeleteCardByTimestamp(ctx, owner, createdAt); err != nil {
		return notFound(err)
	}
	slog.Info("card_deleted", "username", owner, "timestamp", createdAt)
	return nil
}

// QRCode renders the card as a vCard QR code PNG.
func (s *Service) QRCode(ctx context.Context, owner, id string) ([]byte, error) {
	card, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	png, err := qr.EncodePNG(qr.VCard(qr.Contact{
		Name:    card.PersonName,
		Company: card.CompanyName,
		Title:   card.JobTitle,
		Phone:   card.Phone,
		Email:   card.Email,
		Address: card.Address,
	}), qr.DefaultSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	return png, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp reads an ISO 8601 date-time.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", raw)
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &apperr.Error{Kind: apperr.KindNotFound, Message: "Card not found", Err: err}
	}
	return err
}
