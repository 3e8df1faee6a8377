// Package cardname canonicalizes card names into the keys cards are stored
// under. Two names that only differ by accents or case map to the same key.
package cardname

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FaceSeparator joins the faces of split, adventure and double-faced cards.
const FaceSeparator = " // "

type Name struct {
	Front string
	Back  string
}

func (n Name) OK() bool { return n.Front != "" }

// Full is the canonical full name, FRONT // BACK for two-faced cards.
func (n Name) Full() string {
	if n.Back == "" {
		return n.Front
	}
	return n.Front + FaceSeparator + n.Back
}

// Resolve returns the canonical front and back keys for raw. Blank input
// yields the zero Name.
func Resolve(raw string) Name {
	s := Normalize(raw)
	if s == "" {
		return Name{}
	}
	if !strings.Contains(s, FaceSeparator) {
		return Name{Front: s}
	}
	parts := strings.SplitN(s, FaceSeparator, 2)
	return Name{Front: strings.TrimSpace(parts[0]), Back: strings.TrimSpace(parts[1])}
}

// Key is shorthand for Resolve(raw).Front.
func Key(raw string) string {
	return Resolve(raw).Front
}

// Normalize decomposes raw, drops combining marks and uppercases the result.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, raw)
	if err != nil {
		out = raw
	}
	return strings.ToUpper(out)
}

// SplitTypeLine splits a type line on face separators and the em dash between
// supertypes and subtypes.
func SplitTypeLine(typeLine string) []string {
	if strings.TrimSpace(typeLine) == "" {
		return nil
	}
	var out []string
	for _, face := range strings.Split(typeLine, FaceSeparator) {
		for _, part := range strings.Split(face, " — ") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
