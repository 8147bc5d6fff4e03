// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package extraction

import (
	"log/slog"
	"regexp"
	"strings"
)

// FieldSeparator joins multiple findings for one label.
const FieldSeparator = "; "

// phonePattern: optional "+", 1-3 digit country code, optional whitespace,
// 6-15 digit subscriber number.
var phonePattern = regexp.MustCompile(`\+?\d{1,3}\s?\d{6,15}`)

// Span is one entity classifier finding.
type Span struct {
	Label string  `json:"label"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Fields maps every label to its merged value. Merge always fills all six.
type Fields map[Label]string

// Get returns the value for l, or "" when absent.
func (f Fields) Get(l Label) string {
	return f[l]
}

// FindPhones returns all non-overlapping phone-like substrings of text.
func FindPhones(text string) []string {
	return phonePattern.FindAllString(text, -1)
}

// Merge combines classifier spans and regex phone matches over text into one
// value per label.
//
// Exact-string duplicates collapse; values differing in case or whitespace
// are kept. Regex phone matches are always added, whatever the classifier
// returned for Phone. Values are joined in first-seen order so the result
// only depends on the inputs.
func Merge(spans []Span, text string) Fields {
	slog.Debug("merge_input", "text", text, "spans", len(spans))

	sets := make(map[Label]*candidateSet, len(Labels))
	for _, l := range Labels {
		sets[l] = newCandidateSet()
	}

	for _, s := range spans {
		label, ok := ParseLabel(s.Label)
		if !ok {
			continue
		}
		sets[label].add(s.Text)
	}

	phones := FindPhones(text)
	slog.Debug("phone_regex_matches", "matches", phones)
	for _, p := range phones {
		sets[Phone].add(p)
	}

	fields := make(Fields, len(Labels))
	for _, l := range Labels {
		fields[l] = sets[l].join(FieldSeparator)
	}
	return fields
}

// candidateSet is an insertion-ordered string set.
type candidateSet struct {
	seen  map[string]struct{}
	items []string
}

func newCandidateSet() *candidateSet {
	return &candidateSet{seen: make(map[string]struct{})}
}

func (s *candidateSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *candidateSet) join(sep string) string {
	return strings.Join(s.items, sep)
}
