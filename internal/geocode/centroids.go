package geocode

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// CentroidEntry is one postal code reference point. On the wire it is the
// compact tuple [postalCode, lat, lng, label].
type CentroidEntry struct {
	PostalCode string
	Lat        float64
	Lng        float64
	Label      string
}

func (e CentroidEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.PostalCode, e.Lat, e.Lng, e.Label})
}

func (e *CentroidEntry) UnmarshalJSON(data []byte) error {
	var tuple []any
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) < 4 {
		return fmt.Errorf("centroid tuple needs 4 elements, got %d", len(tuple))
	}
	code, ok := tuple[0].(string)
	if !ok {
		return fmt.Errorf("centroid postal code is not a string")
	}
	lat, ok1 := tuple[1].(float64)
	lng, ok2 := tuple[2].(float64)
	label, ok3 := tuple[3].(string)
	if !ok1 || !ok2 || !ok3 {
		return fmt.Errorf("malformed centroid tuple for %s", code)
	}
	*e = CentroidEntry{PostalCode: code, Lat: lat, Lng: lng, Label: label}
	return nil
}

// CentroidTable indexes postal reference points for distance validation and
// the postal-centroid fallback. The first tuple per postal code wins.
type CentroidTable struct {
	byPostal map[string]CentroidEntry
}

// LoadCentroidTable reads the tuple file from disk. A missing file is not
// fatal: validation simply cannot reject anything.
func LoadCentroidTable(path string) (*CentroidTable, error) {
	table := &CentroidTable{byPostal: map[string]CentroidEntry{}}
	if path == "" {
		return table, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return table, nil
		}
		return nil, fmt.Errorf("read centroids: %w", err)
	}
	var entries []CentroidEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode centroids %s: %w", path, err)
	}
	for _, entry := range entries {
		if _, seen := table.byPostal[entry.PostalCode]; !seen {
			table.byPostal[entry.PostalCode] = entry
		}
	}
	return table, nil
}

// Lookup returns the reference point of a postal code.
func (t *CentroidTable) Lookup(postalCode string) (CentroidEntry, bool) {
	entry, ok := t.byPostal[postalCode]
	return entry, ok
}

func (t *CentroidTable) Len() int { return len(t.byPostal) }

// deptCentroids are the coarse last-resort coordinates per department.
var deptCentroids = map[string]CentroidEntry{
	"75": {PostalCode: "75", Lat: 48.8566, Lng: 2.3522, Label: "Paris"},
	"77": {PostalCode: "77", Lat: 48.5396, Lng: 2.6526, Label: "Seine-et-Marne"},
	"78": {PostalCode: "78", Lat: 48.8049, Lng: 2.1204, Label: "Yvelines"},
	"91": {PostalCode: "91", Lat: 48.6298, Lng: 2.4417, Label: "Essonne"},
	"92": {PostalCode: "92", Lat: 48.8927825, Lng: 2.2073652, Label: "Hauts-de-Seine"},
	"93": {PostalCode: "93", Lat: 48.9047, Lng: 2.4395, Label: "Seine-Saint-Denis"},
	"94": {PostalCode: "94", Lat: 48.7904, Lng: 2.455, Label: "Val-de-Marne"},
	"95": {PostalCode: "95", Lat: 49.036, Lng: 2.063, Label: "Val-d'Oise"},
}

// DeptCentroid returns the department-level coordinates for a postal code.
func DeptCentroid(postalCode string) (CentroidEntry, bool) {
	if len(postalCode) < 2 {
		return CentroidEntry{}, false
	}
	entry, ok := deptCentroids[postalCode[:2]]
	return entry, ok
}

var nonDigitRe = regexp.MustCompile(`\D`)

// NormalizePostalCode keeps only digits and requires the five-digit form.
func NormalizePostalCode(value string) string {
	code := nonDigitRe.ReplaceAllString(value, "")
	if len(code) != 5 {
		return ""
	}
	return code
}
