package geocode

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Hint is one entry of the published hints file.
type Hint struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	PostalCode string  `json:"postalCode"`
	Source     string  `json:"source,omitempty"`
}

// HintsPayload is the clubs-france-hints.json document. Hints marshal with
// sorted keys so unchanged runs produce identical files.
type HintsPayload struct {
	Version     int             `json:"version"`
	GeneratedAt string          `json:"generatedAt"`
	Total       int             `json:"total"`
	Hints       map[string]Hint `json:"hints"`
}

// GenerateHints resolves every club without stored coordinates and collects
// the result map. Clubs that already carry coordinates are passed through
// untouched, without a source tag.
func GenerateHints(ctx context.Context, clubs []Club, resolver *Resolver, log *zap.Logger) (*HintsPayload, error) {
	hints := map[string]Hint{}
	resolved := 0
	for _, club := range clubs {
		if club.Latitude != nil && club.Longitude != nil {
			hints[club.Slug] = Hint{
				Lat:        *club.Latitude,
				Lng:        *club.Longitude,
				PostalCode: club.PostalCode,
			}
			continue
		}
		candidate, err := resolver.Resolve(ctx, club)
		if err != nil {
			return nil, err
		}
		if candidate == nil {
			continue
		}
		postal := candidate.PostalCode
		if postal == "" {
			postal = club.PostalCode
		}
		hints[club.Slug] = Hint{
			Lat:        candidate.Lat,
			Lng:        candidate.Lng,
			PostalCode: postal,
			Source:     candidate.Source,
		}
		resolved++
	}
	log.Info("hints generated",
		zap.Int("clubs", len(clubs)),
		zap.Int("hints", len(hints)),
		zap.Int("resolved", resolved),
	)
	return &HintsPayload{
		Version:     1,
		GeneratedAt: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Total:       len(clubs),
		Hints:       hints,
	}, nil
}
