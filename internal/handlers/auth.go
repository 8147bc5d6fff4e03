// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/bizcard-snap/internal/apperr"
	ctxauth "codeberg.org/oliverandrich/bizcard-snap/internal/auth"
	"codeberg.org/oliverandrich/bizcard-snap/internal/services/auth"
	"codeberg.org/oliverandrich/bizcard-snap/internal/services/reset"
)

// AuthHandlers contains handlers for accounts and password resets.
type AuthHandlers struct {
	accounts *auth.Service
	resets   *reset.Service
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(accounts *auth.Service, resets *reset.Service) *AuthHandlers {
	return &AuthHandlers{
		accounts: accounts,
		resets:   resets,
	}
}

// SignupRequest is the request body for creating an account.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup creates an account.
func (h *AuthHandlers) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.accounts.Signup(c.Request().Context(), auth.SignupParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"message":  "User created successfully",
		"username": user.Username,
	})
}

// LoginRequest is the request body for logging in.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return respondFailure(c, apperr.Validation("Invalid request body"))
	}

	token, err := h.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return respondFailure(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Login successful",
		"access_token": token,
	})
}

// ValidateToken confirms the bearer token. The middleware has already
// verified it.
func (h *AuthHandlers) ValidateToken(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Token is valid",
		"username": ctxauth.Username(c.Request().Context()),
	})
}

// CurrentUser returns the username and email of the caller.
func (h *AuthHandlers) CurrentUser(c echo.Context) error {
	user, err := h.accounts.CurrentUser(c.Request().Context(), ctxauth.Username(c.Request().Context()))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"username": user.Username,
		"email":    user.Email,
	})
}

// DeleteAccount removes the caller and all their cards.
func (h *AuthHandlers) DeleteAccount(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.accounts.DeleteAccount(ctx, ctxauth.Username(ctx)); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Account deleted successfully",
	})
}

// ResetRequest is the request body of the three reset endpoints.
type ResetRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

func (h *AuthHandlers) bindReset(c echo.Context) (ResetRequest, error) {
	var req ResetRequest
	if err := c.Bind(&req); err != nil {
		return req, apperr.Validation("Invalid request body")
	}
	return req, nil
}

func success(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": msg,
	})
}

// SendResetCode mails a reset code to a registered address.
func (h *AuthHandlers) SendResetCode(c echo.Context) error {
	req, err := h.bindReset(c)
	if err != nil {
		return respondFailure(c, err)
	}

	if err := h.resets.SendCode(c.Request().Context(), req.Email); err != nil {
		return respondFailure(c, err)
	}
	return success(c, "Reset code sent to email")
}

// VerifyResetCode checks a reset code.
func (h *AuthHandlers) VerifyResetCode(c echo.Context) error {
	req, err := h.bindReset(c)
	if err != nil {
		return respondFailure(c, err)
	}

	if err := h.resets.VerifyCode(c.Request().Context(), req.Email, req.Code); err != nil {
		return respondFailure(c, err)
	}
	return success(c, "Code verified")
}

// ResetPassword sets a new password after a verified or supplied code.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	req, err := h.bindReset(c)
	if err != nil {
		return respondFailure(c, err)
	}

	if err := h.resets.ResetPassword(c.Request().Context(), req.Email, req.Password, req.Code); err != nil {
		return respondFailure(c, err)
	}
	return success(c, "Password reset successfully")
}
