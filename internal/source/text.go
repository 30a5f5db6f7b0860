package source

import (
	"regexp"
	"strings"

	"github.com/k3a/html2text"
)

var (
	multiSpaceRe   = regexp.MustCompile(`[ \t]{2,}`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
	blankOnlyRe    = regexp.MustCompile(`^[ \r\n\t]+$`)
)

// cleanupText converts HTML-laden source text to plain text and squeezes the
// whitespace mess contributors leave behind. Returns "" when nothing readable
// survives, so callers can treat it like an absent field.
func cleanupText(input string) string {
	if input == "" {
		return ""
	}

	text := html2text.HTML2Text(input)
	text = strings.ReplaceAll(text, "\\", "")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	if text == "" || text == "N/A" || blankOnlyRe.MatchString(text) {
		return ""
	}
	return text
}
