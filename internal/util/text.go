package util

import (
	"regexp"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeWhitespace trims and collapses whitespace to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// ContainsFold reports whether needle is a substring of text, ignoring case.
// An empty needle matches.
func ContainsFold(text, needle string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(needle))
}

// SplitFields splits a REPL line into words, collapsing whitespace.
func SplitFields(s string) []string {
	return strings.Fields(NormalizeWhitespace(s))
}
