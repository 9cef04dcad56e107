// internal/export/escape.go
package export

import "strings"

// xmlEntities lists the five XML-reserved characters in replacement order.
// The ampersand must go first so already-produced entities are not
// re-encoded.
var xmlEntities = [5]struct {
	raw    string
	entity string
}{
	{"&", "&amp;"},
	{"<", "&lt;"},
	{">", "&gt;"},
	{`"`, "&quot;"},
	{"'", "&apos;"},
}

// escapeXML makes free text safe for element content and attribute values.
func escapeXML(s string) string {
	for _, e := range xmlEntities {
		s = strings.ReplaceAll(s, e.raw, e.entity)
	}
	return s
}
