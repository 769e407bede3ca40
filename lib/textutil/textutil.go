package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName collapses a rendered product title into a form that is
// stable against the site's markup whitespace and letter case.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	name = strings.ReplaceAll(name, "ё", "е")
	return name
}
