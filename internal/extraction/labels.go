// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package extraction

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Label is one of the six semantic fields of a business card.
// Its value is the display spelling used in extraction responses.
type Label string

const (
	PersonName  Label = "Person Name"
	CompanyName Label = "Company Name"
	JobTitle    Label = "Job Title"
	Phone       Label = "Phone"
	Email       Label = "Email"
	Address     Label = "Address"
)

// Labels lists every label in output order.
var Labels = []Label{PersonName, CompanyName, JobTitle, Phone, Email, Address}

// Prompt returns the lower-case spelling handed to the entity classifier.
func (l Label) Prompt() string {
	return strings.ToLower(string(l))
}

// Key returns the snake_case spelling used for storage and card JSON.
func (l Label) Key() string {
	return strings.ReplaceAll(l.Prompt(), " ", "_")
}

// PromptLabels returns the classifier vocabulary in output order.
func PromptLabels() []string {
	out := make([]string, len(Labels))
	for i, l := range Labels {
		out[i] = l.Prompt()
	}
	return out
}

// ParseLabel normalizes a classifier label (trim, title-case) and matches it
// against the closed label set.
func ParseLabel(raw string) (Label, bool) {
	// cases.Caser keeps state, so each call gets its own.
	normalized := cases.Title(language.English).String(strings.TrimSpace(raw))
	for _, l := range Labels {
		if string(l) == normalized {
			return l, true
		}
	}
	return "", false
}
