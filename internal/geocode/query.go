package geocode

import (
	"regexp"
	"strings"

	"github.com/echecs92/chess-sync/internal/extract"
)

// Club is the geocoder's view of one club record.
type Club struct {
	Slug            string
	ID              string
	Name            string
	Commune         string
	PostalCode      string
	Address         string
	Siege           string
	AddressStandard string
	DepartmentCode  string
	Latitude        *float64
	Longitude       *float64
}

var (
	streetKeywordsRe = regexp.MustCompile(`(?i)\b(rue|avenue|av\.?|boulevard|bd|place|route|chemin|impasse|all[ée]e|voie|quai|cours|passage|square|sentier|mail|esplanade|terrasse|pont|faubourg|clos|cité|cite|hameau|lotissement|residence|résidence|allee)\b`)
	houseNumberRe    = regexp.MustCompile(`(?i)\b\d+\p{L}?\b`)
	parenRe          = regexp.MustCompile(`\([^)]*\)`)
	segmentSplitRe   = regexp.MustCompile(`[,;/]+`)
	spaceRe          = regexp.MustCompile(`\s+`)
	postal5Re        = regexp.MustCompile(`\b\d{5}\b`)
)

// SimplifyStreet extracts the most street-like segment out of a free-form
// address, preferring numbered street segments over bare keywords.
func SimplifyStreet(value string) string {
	if value == "" {
		return ""
	}
	cleaned := parenRe.ReplaceAllString(value, " ")
	var parts []string
	for _, part := range segmentSplitRe.Split(cleaned, -1) {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(spaceRe.ReplaceAllString(cleaned, " "))
	}
	tests := []func(string) bool{
		func(p string) bool { return houseNumberRe.MatchString(p) && streetKeywordsRe.MatchString(p) },
		streetKeywordsRe.MatchString,
		houseNumberRe.MatchString,
	}
	for _, test := range tests {
		for _, part := range parts {
			if test(part) {
				return strings.TrimSpace(spaceRe.ReplaceAllString(part, " "))
			}
		}
	}
	return parts[0]
}

// StandardAddress assembles "street, postal city" from whichever address
// fields are populated.
func StandardAddress(primary, secondary, postalCode, city string) string {
	street := SimplifyStreet(primary)
	if street == "" {
		street = SimplifyStreet(secondary)
	}
	var components []string
	if street != "" {
		components = append(components, street)
	}
	var locality []string
	if postalCode != "" {
		locality = append(locality, postalCode)
	}
	if formatted := extract.FormatCommune(city); formatted != "" {
		locality = append(locality, formatted)
	}
	if len(locality) > 0 {
		components = append(components, strings.Join(locality, " "))
	}
	return strings.Join(components, ", ")
}

// CollectPostalCodes gathers every five-digit code seen on the record, own
// field first.
func CollectPostalCodes(club Club) []string {
	seen := map[string]bool{}
	var codes []string
	add := func(code string) {
		if code != "" && !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	add(club.PostalCode)
	for _, field := range []string{club.Address, club.Siege, club.AddressStandard} {
		for _, code := range postal5Re.FindAllString(field, -1) {
			add(code)
		}
	}
	return codes
}

// Queries builds the ordered, deduplicated query ladder for one club, from
// most precise to coarsest.
func Queries(club Club, expectedPostal string) []string {
	communePostal := ""
	if club.Commune != "" && expectedPostal != "" {
		communePostal = club.Commune + " " + expectedPostal
	}
	candidates := []string{
		club.AddressStandard,
		club.Address,
		club.Siege,
		communePostal,
		club.Commune,
		expectedPostal,
		club.Name,
	}
	seen := map[string]bool{}
	var queries []string
	for _, q := range candidates {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		queries = append(queries, q)
	}
	return queries
}
