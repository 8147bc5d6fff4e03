// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/bizcard-snap/internal/apperr"
	"codeberg.org/oliverandrich/bizcard-snap/internal/auth"
)

// TokenAuthenticator resolves a bearer token to a username.
type TokenAuthenticator interface {
	Authenticate(token string) (string, error)
}

// RequireBearer rejects requests without a valid "Authorization: Bearer"
// token and stores the token subject in the request context.
func RequireBearer(authenticator TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
				return
			}

			username, err := authenticator.Authenticate(token)
			if err != nil {
				slog.Debug("bearer_rejected", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusUnauthorized, apperr.Message(err, "Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUsername(r.Context(), username)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
