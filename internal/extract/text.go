// Package extract converts raw HTML and text fragments from the federation
// portal into structured records. Everything here is a pure function; the
// parsers are deliberately tolerant of the portal's invalid markup
// (unquoted attributes, postback directives inside script text).
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"golang.org/x/text/runes"
	"golang.org/x/text/unicode/norm"
)

// Curated named entities: the portal emits a small set of accented Latin
// entities on top of the usual structural ones.
var namedEntities = map[string]string{
	"amp": "&", "lt": "<", "gt": ">", "quot": `"`, "apos": "'", "nbsp": " ",
	"agrave": "à", "aacute": "á", "acirc": "â", "auml": "ä", "ccedil": "ç",
	"egrave": "è", "eacute": "é", "ecirc": "ê", "euml": "ë",
	"igrave": "ì", "iacute": "í", "icirc": "î", "iuml": "ï",
	"ograve": "ò", "oacute": "ó", "ocirc": "ô", "ouml": "ö",
	"ugrave": "ù", "uacute": "ú", "ucirc": "û", "uuml": "ü", "yuml": "ÿ",
	"rsquo": "’", "lsquo": "’", "ndash": "–", "mdash": "—",
}

var (
	decimalEntityRe = regexp.MustCompile(`&#(\d+);`)
	hexEntityRe     = regexp.MustCompile(`(?i)&#x([0-9a-f]+);`)
	namedEntityRe   = regexp.MustCompile(`(?i)&([a-z]+);`)
	tagRe           = regexp.MustCompile(`<[^>]+>`)
	spaceRe         = regexp.MustCompile(`[\s\x{00a0}]+`)
	nonSlugRe       = regexp.MustCompile(`[^a-z0-9]+`)
)

// DecodeEntities resolves numeric references and the curated named subset.
// Unknown entities are left untouched.
func DecodeEntities(value string) string {
	out := decimalEntityRe.ReplaceAllStringFunc(value, func(m string) string {
		code, err := strconv.Atoi(m[2 : len(m)-1])
		if err != nil {
			return m
		}
		return string(rune(code))
	})
	out = hexEntityRe.ReplaceAllStringFunc(out, func(m string) string {
		code, err := strconv.ParseInt(m[3:len(m)-1], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(code))
	})
	return namedEntityRe.ReplaceAllStringFunc(out, func(m string) string {
		name := strings.ToLower(m[1 : len(m)-1])
		if repl, ok := namedEntities[name]; ok {
			return repl
		}
		return m
	})
}

// StripTags replaces every HTML tag with a space.
func StripTags(value string) string {
	return tagRe.ReplaceAllString(value, " ")
}

// CleanText strips tags, decodes entities and collapses whitespace.
func CleanText(value string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(DecodeEntities(StripTags(value)), " "))
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// Normalize lower-cases and strips diacritics, for lookup keys.
func Normalize(value string) string {
	decomposed := norm.NFD.String(value)
	return strings.ToLower(stripMarks.String(decomposed))
}

// Slugify produces a lowercase ascii slug.
func Slugify(value string) string {
	return strings.Trim(nonSlugRe.ReplaceAllString(Normalize(value), "-"), "-")
}

// FNV-1a seed and prime.
const (
	fnvSeed  uint32 = 2166136261
	fnvPrime uint32 = 16777619
)

// HashString is FNV-1a over the UTF-16 code units of value. Each unit is
// mixed in whole, not byte by byte: the published slugs were seeded this
// way and changing it would rename every club URL.
func HashString(value string) uint32 {
	hash := fnvSeed
	for _, unit := range utf16.Encode([]rune(value)) {
		hash ^= uint32(unit)
		hash *= fnvPrime
	}
	return hash
}

// ToBase36 renders a non-negative integer in base 36.
func ToBase36(value uint32) string {
	return strconv.FormatUint(uint64(value), 36)
}
