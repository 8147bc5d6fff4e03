// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"net/http"

	"codeberg.org/oliverandrich/bizcard-snap/internal/i18n"
)

// Locale detects the user's preferred language from the Accept-Language
// header, stores it in the request context and echoes it as Content-Language.
func Locale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := i18n.MatchLanguage(r.Header.Get("Accept-Language"))
		ctx := i18n.WithLocale(r.Context(), lang)
		w.Header().Set("Content-Language", i18n.GetLocale(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
