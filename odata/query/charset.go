package query

import (
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// NormalizeCharset returns the canonical WHATWG name of a charset label so
// that "utf8", "UTF-8" and "unicode-1-1-utf-8" produce the same metadata.
// Unknown labels are lower-cased and trimmed; an empty label stays empty.
func NormalizeCharset(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return strings.ToLower(label)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return strings.ToLower(label)
	}
	return name
}
