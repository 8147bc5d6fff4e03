// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/bizcard-snap/internal/apperr"
	"codeberg.org/oliverandrich/bizcard-snap/internal/services/auth"
)

const internalErrorMessage = "Internal server error"

// errorResponse maps err to a status and a client-facing message. Errors
// without a kind are logged and answered with a generic 500.
func errorResponse(c echo.Context, err error) (int, string) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindUnknown {
		slog.Error("unhandled error",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
		return http.StatusInternalServerError, internalErrorMessage
	}
	if kind == apperr.KindDependency {
		slog.Error("dependency failure", "path", c.Path(), "error", err)
	}
	return kind.Status(), apperr.Message(err, internalErrorMessage)
}

// respondError writes {"error": msg}, adding "errors" for password
// validation failures.
func respondError(c echo.Context, err error) error {
	status, msg := errorResponse(c, err)
	body := map[string]any{"error": msg}
	addValidationDetails(body, err)
	return c.JSON(status, body)
}

// respondFailure writes the {"success": false, ...} shape used by the login
// and reset endpoints.
func respondFailure(c echo.Context, err error) error {
	status, msg := errorResponse(c, err)
	body := map[string]any{
		"success": false,
		"message": msg,
		"error":   msg,
	}
	addValidationDetails(body, err)
	return c.JSON(status, body)
}

func addValidationDetails(body map[string]any, err error) {
	var pve *auth.PasswordValidationError
	if errors.As(err, &pve) {
		body["errors"] = pve.Messages()
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}
