// Package matcher locates a target business inside a provider result list.
//
// Provider titles rarely match registered business names exactly (branch
// suffixes, abbreviations), so matching runs in two passes: an exact
// case-insensitive substring pass for precision, then a token-overlap pass for
// recall. Result lists are short (≤20 items), so no fuzzy-distance matching.
package matcher

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Unranked is returned when the business appears nowhere in the result list.
const Unranked = 0

// minTokenLen is the shortest business-name word considered distinctive
// enough for the token-overlap pass.
const minTokenLen = 4

// Candidate is one provider result, ordered by position.
type Candidate struct {
	Position int
	Title    string
}

// Match scans candidates in position order and returns the position of the
// first qualifying result, or Unranked. Scanning in rank order means a
// duplicated listing reports its best position.
func Match(candidates []Candidate, businessName string) int {
	if businessName == "" || len(candidates) == 0 {
		return Unranked
	}

	fold := cases.Fold()
	target := fold.String(businessName)

	// Pass 1: the full name appears verbatim inside a title.
	for _, c := range candidates {
		if strings.Contains(fold.String(c.Title), target) {
			return c.Position
		}
	}

	// Pass 2: any distinctive word of the name appears inside a title.
	tokens := distinctiveTokens(target)
	if len(tokens) == 0 {
		return Unranked
	}
	for _, c := range candidates {
		title := fold.String(c.Title)
		for _, tok := range tokens {
			if strings.Contains(title, tok) {
				return c.Position
			}
		}
	}

	return Unranked
}

// distinctiveTokens splits a case-folded name into words longer than three
// runes. Short words ("the", "co", "llc") match too freely to be useful.
func distinctiveTokens(folded string) []string {
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == '.' || r == '&' || r == '-' || r == '\''
	})
	var tokens []string
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
