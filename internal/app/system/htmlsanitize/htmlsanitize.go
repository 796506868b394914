// Package htmlsanitize strips markup from untrusted text before it is
// stored. Admin-entered free-text fields (department, designation, user
// type descriptions) pass through here so stored values are plain text.
package htmlsanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Plain removes all HTML from s and trims whitespace.
func Plain(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}
