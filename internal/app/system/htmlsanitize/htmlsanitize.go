// Package htmlsanitize strips dangerous markup from user-supplied
// content before it is stored. Announcements may carry rich text;
// guardian-entered fields are reduced to plain text.
package htmlsanitize

import "github.com/microcosm-cc/bluemonday"

var (
	richPolicy  = newRichPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

func newRichPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("u", "s", "sub", "sup", "mark")
	p.AllowAttrs("class").OnElements("table", "thead", "tbody", "tr", "th", "td")
	p.AllowAttrs("colspan", "rowspan").OnElements("th", "td")
	return p
}

// Sanitize keeps safe formatting (headings, lists, tables, links) and
// removes scripts, event handlers, and javascript: URLs.
func Sanitize(s string) string {
	return richPolicy.Sanitize(s)
}

// StripTags removes all markup, leaving plain text.
func StripTags(s string) string {
	return plainPolicy.Sanitize(s)
}
