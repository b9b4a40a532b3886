// Package textutil cleans free text supplied by customers and staff.
package textutil

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// maxPasses bounds how many layers of entity encoding are peeled off.
const maxPasses = 5

// PlainText strips every HTML element from s and trims surrounding space.
// Entities are decoded so "&" survives as typed, and the result is stripped
// again until decoding no longer exposes markup. Input still changing after
// maxPasses is returned in its escaped form.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	for i := 0; i < maxPasses; i++ {
		decoded := html.UnescapeString(strict.Sanitize(s))
		if decoded == s {
			return strings.TrimSpace(decoded)
		}
		s = decoded
	}
	return strings.TrimSpace(strict.Sanitize(s))
}
