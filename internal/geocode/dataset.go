package geocode

import (
	"fmt"
	"path/filepath"

	"github.com/echecs92/chess-sync/internal/merge"
	"github.com/echecs92/chess-sync/internal/storage"
)

// datasetManifest is the slice of the published manifest the loader needs.
type datasetManifest struct {
	Departments []struct {
		Code string `json:"code"`
		File string `json:"file"`
	} `json:"departments"`
}

// normalizedRecord is one entry of a published normalized department file.
type normalizedRecord struct {
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	Commune    string `json:"commune"`
	PostalCode string `json:"postalCode"`
	Ref        string `json:"ref"`
}

// LoadClubs reads the published dataset back and joins, per department, the
// base records (address fields) with the normalized ones (slug, commune,
// postal code) on the federation ref.
func LoadClubs(dataDir string) ([]Club, error) {
	var manifest datasetManifest
	if err := storage.ReadJSON(filepath.Join(dataDir, "clubs-france.json"), &manifest); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if len(manifest.Departments) == 0 {
		return nil, fmt.Errorf("manifest lists no departments")
	}

	var clubs []Club
	for _, dept := range manifest.Departments {
		var base []merge.Club
		if err := storage.ReadJSON(filepath.Join(dataDir, "clubs-france", dept.File), &base); err != nil {
			return nil, fmt.Errorf("department %s: %w", dept.Code, err)
		}
		byRef := make(map[string]merge.Club, len(base))
		for _, record := range base {
			if record.FfeRef != "" {
				if _, seen := byRef[record.FfeRef]; !seen {
					byRef[record.FfeRef] = record
				}
			}
		}

		var normalized []normalizedRecord
		if err := storage.ReadJSON(filepath.Join(dataDir, "clubs-france-ffe", dept.File), &normalized); err != nil {
			return nil, fmt.Errorf("department %s: %w", dept.Code, err)
		}

		for _, record := range normalized {
			detail := byRef[record.Ref]
			club := Club{
				Slug:           record.Slug,
				ID:             record.Ref,
				Name:           record.Name,
				Commune:        record.Commune,
				PostalCode:     record.PostalCode,
				Address:        detail.Adresse,
				Siege:          detail.Siege,
				DepartmentCode: dept.Code,
			}
			club.AddressStandard = StandardAddress(club.Address, club.Siege, club.PostalCode, club.Commune)
			clubs = append(clubs, club)
		}
	}
	return clubs, nil
}
