// Package identity derives the stable keys used for deduplication:
// the external identifier and the content fingerprint.
package identity

import (
	"crypto/md5" // #nosec G501 -- dedup fingerprint, not a security boundary
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const slugMaxLen = 40

// ExternalID builds the globally unique identity key {source}_{native id}.
// Sources that publish no native identifier fall back to a deterministic
// slug of the project name, so the same unidentified project maps to the
// same id across runs.
func ExternalID(source, nativeID, projectName string) string {
	id := strings.TrimSpace(nativeID)
	if id == "" {
		id = Slug(projectName)
	}
	if id == "" {
		id = "unnamed"
	}
	return source + "_" + id
}

// Fingerprint computes the 128-bit content hash over the salient normalized
// fields. Two records with the same fingerprint are the same logical
// project even when their external ids differ.
func Fingerprint(name string, capacityMW float64, location, source string) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(name)),
		strconv.FormatFloat(capacityMW, 'f', -1, 64),
		strings.ToLower(strings.TrimSpace(location)),
		strings.ToLower(strings.TrimSpace(source)),
	}
	sum := md5.Sum([]byte(strings.Join(parts, "|"))) // #nosec G401
	return hex.EncodeToString(sum[:])
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug normalizes a name into a compact identifier fragment: diacritics
// stripped, lowercased, runs of non-alphanumerics collapsed to single
// underscores, truncated to a fixed length.
func Slug(name string) string {
	folded, _, err := transform.String(stripMarks, strings.TrimSpace(name))
	if err != nil {
		folded = name
	}

	var b strings.Builder
	prevSep := true
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevSep = false
		default:
			if !prevSep {
				b.WriteByte('_')
				prevSep = true
			}
		}
	}

	s := strings.Trim(b.String(), "_")
	if len(s) > slugMaxLen {
		s = strings.Trim(s[:slugMaxLen], "_")
	}
	return s
}
