// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	ctxauth "codeberg.org/oliverandrich/bizcard-snap/internal/auth"
	"codeberg.org/oliverandrich/bizcard-snap/internal/services/cards"
)

// CardHandlers contains handlers for extraction and saved cards.
type CardHandlers struct {
	cards *cards.Service
}

// NewCards creates a new CardHandlers instance.
func NewCards(svc *cards.Service) *CardHandlers {
	return &CardHandlers{cards: svc}
}

// Extract reads the multipart "image" field, extracts and saves the card.
func (h *CardHandlers) Extract(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "No image uploaded")
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "No image uploaded")
	}
	defer f.Close()

	ctx := c.Request().Context()
	extracted, err := h.cards.Extract(ctx, ctxauth.Username(ctx), f)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, extracted.Response())
}

// List returns the caller's cards, newest first.
func (h *CardHandlers) List(c echo.Context) error {
	ctx := c.Request().Context()
	list, err := h.cards.List(ctx, ctxauth.Username(ctx))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// DeleteByTimestamp deletes the card whose timestamp matches the
// "timestamp" query parameter.
func (h *CardHandlers) DeleteByTimestamp(c echo.Context) error {
	timestamp := c.QueryParam("timestamp")
	if timestamp == "" {
		return badRequest(c, "Timestamp required")
	}

	ctx := c.Request().Context()
	if err := h.cards.DeleteByTimestamp(ctx, ctxauth.Username(ctx), timestamp); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Card deleted"})
}

// Delete deletes a card by id.
func (h *CardHandlers) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.cards.Delete(ctx, ctxauth.Username(ctx), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Card deleted"})
}

// QRCode returns the card as a vCard QR code PNG.
func (h *CardHandlers) QRCode(c echo.Context) error {
	ctx := c.Request().Context()
	png, err := h.cards.QRCode(ctx, ctxauth.Username(ctx), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, "image/png", png)
}
