package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var strictPolicy = bluemonday.StrictPolicy()

// CleanText strips any markup from user-typed text, folds it to NFC and
// trims surrounding whitespace.
func CleanText(s string) string {
	// bluemonday escapes what it keeps; typed values are stored raw.
	s = html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.TrimSpace(norm.NFC.String(s))
}
