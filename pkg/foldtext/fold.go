package foldtext

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes Unicode combining marks (Mn category), which after
// NFD normalization are exactly the detached diacritics in U+0300..U+036F
// for the scripts this service indexes.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold normalizes s to NFD, strips combining marks, and lowercases the
// result. It is deterministic and side-effect free; callers apply it to
// both index-time text and query-time search terms.
func Fold(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		// transform.String only errors on a faulty Transformer; ours never
		// returns an error from Transform, so this path is unreachable in
		// practice. Fall back to the unfolded, lowercased input.
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}

// FoldPrefix folds q the same way as Fold and trims surrounding
// whitespace, suitable for building an FTS5 prefix-match query term
// ("token*").
func FoldPrefix(q string) string {
	return Fold(strings.TrimSpace(q))
}
