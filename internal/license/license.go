// Package license reconciles freshly scraped licence counts with the
// published club files, patching counts in place without touching any other
// field.
package license

import (
	"strconv"
	"strings"

	"github.com/echecs92/chess-sync/internal/extract"
)

// Counts carries the two licence tallies of one club. A nil entry means the
// federation page did not expose that tally.
type Counts struct {
	A *int
	B *int
}

// Lookup indexes scraped licence counts by federation ref and, as a second
// chance for records whose ref drifted, by normalized name plus postal code.
type Lookup struct {
	byRef        map[string]Counts
	byNamePostal map[string]Counts
}

func namePostalKey(name, postal string) string {
	return extract.Normalize(name) + "|" + postal
}

// NewLookup builds the two indexes from scraped detail sheets. The first
// occurrence of a key wins so a duplicate listing cannot overwrite counts
// already recorded.
func NewLookup(details []extract.ClubDetail) *Lookup {
	l := &Lookup{
		byRef:        map[string]Counts{},
		byNamePostal: map[string]Counts{},
	}
	for _, d := range details {
		counts := Counts{A: d.LicencesA, B: d.LicencesB}
		if d.Ref != "" {
			if _, seen := l.byRef[d.Ref]; !seen {
				l.byRef[d.Ref] = counts
			}
		}
		postal := d.PostalCode
		if postal == "" {
			postal = extract.ExtractPostalCode(d.Adresse, d.Siege, d.SalleJeu)
		}
		if d.Name != "" && postal != "" {
			key := namePostalKey(d.Name, postal)
			if _, seen := l.byNamePostal[key]; !seen {
				l.byNamePostal[key] = counts
			}
		}
	}
	return l
}

// Match resolves the counts for one published record. A ref hit always wins
// over the name/postal fallback.
func (l *Lookup) Match(record map[string]any) (Counts, bool) {
	if ref := stringField(record, "ffe_ref", "ref"); ref != "" {
		if counts, ok := l.byRef[ref]; ok {
			return counts, true
		}
	}
	name := stringField(record, "nom", "name")
	postal := stringField(record, "postalCode", "postal_code")
	if postal == "" {
		postal = extract.ExtractPostalCode(
			stringField(record, "adresse"),
			stringField(record, "siege"),
			stringField(record, "salle_jeu"),
		)
	}
	if name != "" && postal != "" {
		if counts, ok := l.byNamePostal[namePostalKey(name, postal)]; ok {
			return counts, true
		}
	}
	return Counts{}, false
}

// Spelling variants seen in older published files.
var (
	aKeys = []string{"licences_a", "licenses_a", "license_a"}
	bKeys = []string{"licences_b", "licenses_b", "license_b"}
)

// PatchRecords applies matched counts onto decoded club records, rewriting
// the tallies under the canonical keys. It returns how many records were
// matched and how many ended with changed values.
func PatchRecords(records []map[string]any, lookup *Lookup) (matched, changed int) {
	for _, record := range records {
		counts, ok := lookup.Match(record)
		if !ok {
			continue
		}
		matched++
		aChanged := patchCount(record, aKeys, counts.A)
		bChanged := patchCount(record, bKeys, counts.B)
		if aChanged || bChanged {
			changed++
		}
	}
	return matched, changed
}

// patchCount writes the fresh tally under keys[0] and drops legacy
// spellings. A nil fresh value keeps whatever the record already holds.
func patchCount(record map[string]any, keys []string, fresh *int) bool {
	previous := coerceCount(record, keys)
	if fresh == nil {
		return false
	}
	for _, key := range keys[1:] {
		delete(record, key)
	}
	record[keys[0]] = *fresh
	return previous == nil || *previous != *fresh
}

// coerceCount reads an existing tally under any known spelling, tolerating
// the number-as-string values older files carry.
func coerceCount(record map[string]any, keys []string) *int {
	for _, key := range keys {
		v, ok := record[key]
		if !ok || v == nil {
			continue
		}
		switch value := v.(type) {
		case float64:
			n := int(value)
			return &n
		case int:
			n := value
			return &n
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				return &n
			}
		}
	}
	return nil
}

func stringField(record map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := record[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
