package chat

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeQuery canonicalises a question so that trivially different
// spellings share a cache entry.
func NormalizeQuery(q string) string {
	folded := cases.Fold().String(norm.NFC.String(q))
	return strings.Join(strings.Fields(folded), " ")
}
