// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// TimestampLayout is the fixed-width UTC layout of Card.CreatedAt.
// Lexicographic order of formatted values equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp formats t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Card is a saved extraction result. Multi-valued fields are joined by "; ".
type Card struct { //nolint:govet // fieldalignment: readability over optimization
	ID          string `db:"id" json:"id"`
	Owner       string `db:"owner" json:"-"`
	PersonName  string `db:"person_name" json:"person_name"`
	CompanyName string `db:"company_name" json:"company_name"`
	JobTitle    string `db:"job_title" json:"job_title"`
	Phone       string `db:"phone" json:"phone"`
	Email       string `db:"email" json:"email"`
	Address     string `db:"address" json:"address"`
	QRURL       string `db:"qr_url" json:"qr_url"`
	CreatedAt   string `db:"created_at" json:"timestamp"`
}
