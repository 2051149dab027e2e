package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/echecs92/chess-sync/internal/fetch"
)

// communeRecord mirrors the geo.api.gouv.fr commune shape.
type communeRecord struct {
	Nom          string   `json:"nom"`
	CodesPostaux []string `json:"codesPostaux"`
	Centre       struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"centre"`
}

// FetchPostalCentroids pulls every commune centroid from the national
// address registry and flattens them into sorted postal tuples.
func FetchPostalCentroids(ctx context.Context, client *fetch.Client, endpoint string) ([]CentroidEntry, error) {
	query := url.Values{"fields": {"nom,codesPostaux,centre"}}
	body, err := client.Text(ctx, endpoint+"?"+query.Encode(), fetch.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("fetch communes: %w", err)
	}
	var records []communeRecord
	if err := json.Unmarshal([]byte(body), &records); err != nil {
		return nil, fmt.Errorf("decode communes: %w", err)
	}
	entries := BuildCentroidEntries(records)
	if len(entries) == 0 {
		return nil, fmt.Errorf("no postal coordinates recovered")
	}
	return entries, nil
}

// BuildCentroidEntries expands communes into one tuple per postal code,
// dropping records without usable coordinates and exact duplicates.
func BuildCentroidEntries(records []communeRecord) []CentroidEntry {
	seen := map[string]bool{}
	var entries []CentroidEntry
	for _, record := range records {
		coords := record.Centre.Coordinates
		if len(coords) < 2 {
			continue
		}
		lng, lat := coords[0], coords[1]
		for _, raw := range record.CodesPostaux {
			postal := NormalizePostalCode(raw)
			if postal == "" {
				continue
			}
			label := record.Nom
			if label == "" {
				label = postal
			}
			key := fmt.Sprintf("%s|%s|%v|%v", postal, label, lat, lng)
			if seen[key] {
				continue
			}
			seen[key] = true
			entries = append(entries, CentroidEntry{PostalCode: postal, Lat: lat, Lng: lng, Label: label})
		}
	}

	c := collate.New(language.French, collate.Loose)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].PostalCode != entries[j].PostalCode {
			return entries[i].PostalCode < entries[j].PostalCode
		}
		if cmp := c.CompareString(entries[i].Label, entries[j].Label); cmp != 0 {
			return cmp < 0
		}
		if entries[i].Lat != entries[j].Lat {
			return entries[i].Lat < entries[j].Lat
		}
		return entries[i].Lng < entries[j].Lng
	})
	return entries
}
