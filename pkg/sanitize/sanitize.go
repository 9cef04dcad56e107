// Package sanitize normalizes user-facing strings into safe download filenames.
package sanitize

import (
	"regexp"
	"strings"
)

const maxFilenameLength = 100

var (
	disallowedChars = regexp.MustCompile(`[^A-Za-z0-9\-_. ]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	dashRuns        = regexp.MustCompile(`-{2,}`)
)

// Filename rewrites name into a form safe to suggest as a download filename.
// The rules apply in a fixed order: disallowed characters become dashes,
// whitespace runs become a single dash, dash runs collapse, leading and
// trailing dashes are stripped, the result is lowercased and truncated to
// 100 characters. The function is idempotent; input with no allowed
// characters sanitizes to the empty string.
func Filename(name string) string {
	s := disallowedChars.ReplaceAllString(name, "-")
	s = whitespaceRuns.ReplaceAllString(s, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	s = strings.ToLower(s)
	if len(s) > maxFilenameLength {
		// Truncation may expose a trailing dash; strip it so the result is
		// stable under repeated application.
		s = strings.TrimRight(s[:maxFilenameLength], "-")
	}
	return s
}
