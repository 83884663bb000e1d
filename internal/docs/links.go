package docs

import (
	"regexp"
	"strings"
)

// roleRe matches interpreted text with an explicit role, with or without a
// domain: :php:meth:`Widget::render` or :meth:`render`.
var roleRe = regexp.MustCompile(":(?:([\\w-]+):)?([\\w-]+):`((?:[^`\\\\]|\\\\.)+)`")

// ScanRoles finds the roles written in RST prose.
func ScanRoles(text string) []RoleSpan {
	matches := roleRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	spans := make([]RoleSpan, 0, len(matches))
	for _, m := range matches {
		spans = append(spans, RoleSpan{
			Raw:    m[0],
			Domain: m[1],
			Role:   m[2],
			Text:   unescape(m[3]),
		})
	}
	return spans
}

// unescape removes RST backslash escapes, so `App\\Widget` and `App\Widget`
// both read as App\Widget.
func unescape(s string) string {
	return strings.ReplaceAll(s, `\\`, `\`)
}
