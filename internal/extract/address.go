package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	postalRe       = regexp.MustCompile(`\b(\d{5})\b`)
	parisPostalRe  = regexp.MustCompile(`^75\d{3}$`)
	brRe           = regexp.MustCompile(`(?i)<br\s*/?\s*>`)
	spaceCommaRe   = regexp.MustCompile(`\s+,`)
	commaSpaceRe   = regexp.MustCompile(`,\s+`)
	leadingPunctRe = regexp.MustCompile(`^[,;\x{2013}\x{2014}-]+`)
	hyphenGapRe    = regexp.MustCompile(`\s+-\s+`)
	multiSpaceRe   = regexp.MustCompile(`\s+`)
)

// Connector words stay lower-cased inside French commune names.
var connectorRe = regexp.MustCompile(`\b(De|Du|Des|La|Le|Les|Sur|Sous|Et|Aux|Au)\b`)

// d'/l' elisions keep the article lower with the next letter capitalized.
var elisionRe = regexp.MustCompile(`\b[DL]['’]\p{Lu}`)

// ExtractPostalCode returns the first standalone 5-digit token found across
// the candidate fields, or "".
func ExtractPostalCode(fields ...string) string {
	for _, f := range fields {
		if m := postalRe.FindStringSubmatch(f); m != nil {
			return m[1]
		}
	}
	return ""
}

// ExtractCityFromAddress guesses the city: text following the postal code,
// else the last comma-separated segment.
func ExtractCityFromAddress(value string) string {
	if value == "" {
		return ""
	}
	if postal := ExtractPostalCode(value); postal != "" {
		if idx := strings.Index(value, postal); idx >= 0 {
			after := strings.TrimSpace(value[idx+len(postal):])
			if after != "" {
				return strings.TrimSpace(leadingPunctRe.ReplaceAllString(after, ""))
			}
		}
	}
	parts := strings.Split(value, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		if p := strings.TrimSpace(parts[i]); p != "" {
			return p
		}
	}
	return ""
}

// FormatCommune title-cases a commune name the French way: every word and
// hyphenated segment capitalized, connector words lowered, d'/l' prefixes
// kept lower with the following letter capitalized.
func FormatCommune(value string) string {
	if value == "" {
		return ""
	}
	lower := strings.ToLower(multiSpaceRe.ReplaceAllString(value, " "))
	lower = hyphenGapRe.ReplaceAllString(lower, "-")

	var b strings.Builder
	capitalizeNext := true
	for _, r := range lower {
		if r == ' ' || r == '-' || r == '\'' || r == '’' {
			capitalizeNext = true
			b.WriteRune(r)
			continue
		}
		if capitalizeNext && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(r)
		}
		capitalizeNext = false
	}

	out := connectorRe.ReplaceAllStringFunc(b.String(), strings.ToLower)
	out = elisionRe.ReplaceAllStringFunc(out, func(m string) string {
		return strings.ToLower(m[:1]) + m[1:]
	})
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(out, " "))
}

// ParisArrondissement returns the arrondissement number for a 750xx postal
// code, or 0 if the code is not a valid Paris code.
func ParisArrondissement(postalCode string) int {
	code := strings.TrimSpace(postalCode)
	if !parisPostalRe.MatchString(code) {
		return 0
	}
	arr, err := strconv.Atoi(code[3:])
	if err != nil || arr < 1 || arr > 20 {
		return 0
	}
	return arr
}

// ParisArrondissementLabel renders "Paris 1er" / "Paris 15e" for a Paris
// postal code, or "".
func ParisArrondissementLabel(postalCode string) string {
	arr := ParisArrondissement(postalCode)
	if arr == 0 {
		return ""
	}
	suffix := "e"
	if arr == 1 {
		suffix = "er"
	}
	return fmt.Sprintf("Paris %d%s", arr, suffix)
}

// FormatCommuneWithPostal formats commune, promoting a Paris arrondissement
// label whenever the commune is empty, numeric-looking or already starts
// with "Paris".
func FormatCommuneWithPostal(commune, postalCode string) string {
	base := FormatCommune(commune)
	if label := ParisArrondissementLabel(postalCode); label != "" {
		looksNumeric := base != "" && base[0] >= '0' && base[0] <= '9'
		if base == "" || looksNumeric || strings.HasPrefix(strings.ToLower(base), "paris") {
			return label
		}
	}
	return base
}

// TidyAddress normalizes line breaks to comma separators and cleans up the
// comma/space layout.
func TidyAddress(value string) string {
	out := CleanText(brRe.ReplaceAllString(value, ", "))
	out = spaceCommaRe.ReplaceAllString(out, ",")
	out = commaSpaceRe.ReplaceAllString(out, ", ")
	return strings.TrimSpace(out)
}
