package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/echecs92/chess-sync/internal/fetch"
)

// Candidate is one provider result, tagged with how it was obtained.
type Candidate struct {
	Point
	PostalCode string
	Label      string
	Source     string
}

const (
	SourceStrict         = "geocode-strict"
	SourceRelaxed        = "geocode-relaxed"
	SourcePostalFallback = "postal-centroid"
	SourceDeptFallback   = "dept-fallback"
	SourceForced         = "forced"
	SourceEnclave        = "manual-coordinates"
)

// Provider turns a free-text query into a coordinate candidate. A nil
// candidate with nil error means the provider found nothing usable.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, query, expectedPostal string, allowMismatch bool) (*Candidate, error)
}

// nominatim queries the OpenStreetMap search API.
type nominatim struct {
	client   *fetch.Client
	endpoint string
}

func NewNominatim(client *fetch.Client, endpoint string) Provider {
	return &nominatim{client: client, endpoint: endpoint}
}

func (n *nominatim) Name() string { return "nominatim" }

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		Postcode string `json:"postcode"`
	} `json:"address"`
}

func (n *nominatim) Geocode(ctx context.Context, query, expectedPostal string, allowMismatch bool) (*Candidate, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	if expectedPostal != "" && !strings.Contains(q, expectedPostal) {
		q = q + " " + expectedPostal
	}
	params := url.Values{
		"format":         {"json"},
		"addressdetails": {"1"},
		"limit":          {"1"},
		"countrycodes":   {"fr"},
		"q":              {q},
	}
	body, err := n.client.Text(ctx, n.endpoint+"?"+params.Encode(), fetch.DefaultOptions())
	if err != nil {
		return nil, err
	}
	var results []nominatimResult
	if err := json.Unmarshal([]byte(body), &results); err != nil {
		return nil, fmt.Errorf("decode nominatim response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	first := results[0]
	lat, err1 := strconv.ParseFloat(first.Lat, 64)
	lng, err2 := strconv.ParseFloat(first.Lon, 64)
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	// Nominatim may return "92100;92branch" style lists.
	postal := strings.TrimSpace(strings.SplitN(first.Address.Postcode, ";", 2)[0])
	if !allowMismatch && expectedPostal != "" && postal != "" && postal != expectedPostal {
		return nil, nil
	}
	if postal == "" {
		postal = expectedPostal
	}
	source := SourceStrict
	if allowMismatch {
		source = SourceRelaxed
	}
	return &Candidate{
		Point:      Point{Lat: lat, Lng: lng},
		PostalCode: postal,
		Label:      first.DisplayName,
		Source:     source,
	}, nil
}

// ban queries the national address base (api-adresse.data.gouv.fr).
type ban struct {
	client   *fetch.Client
	endpoint string
}

func NewBAN(client *fetch.Client, endpoint string) Provider {
	return &ban{client: client, endpoint: endpoint}
}

func (b *ban) Name() string { return "ban" }

type banResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label    string `json:"label"`
			Postcode string `json:"postcode"`
		} `json:"properties"`
	} `json:"features"`
}

func (b *ban) Geocode(ctx context.Context, query, expectedPostal string, allowMismatch bool) (*Candidate, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	params := url.Values{"q": {q}, "limit": {"1"}}
	if expectedPostal != "" {
		params.Set("postcode", expectedPostal)
	}
	body, err := b.client.Text(ctx, b.endpoint+"?"+params.Encode(), fetch.DefaultOptions())
	if err != nil {
		return nil, err
	}
	var resp banResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("decode ban response: %w", err)
	}
	if len(resp.Features) == 0 {
		return nil, nil
	}
	first := resp.Features[0]
	if len(first.Geometry.Coordinates) < 2 {
		return nil, nil
	}
	postal := strings.TrimSpace(first.Properties.Postcode)
	if !allowMismatch && expectedPostal != "" && postal != "" && postal != expectedPostal {
		return nil, nil
	}
	if postal == "" {
		postal = expectedPostal
	}
	source := SourceStrict
	if allowMismatch {
		source = SourceRelaxed
	}
	return &Candidate{
		Point:      Point{Lat: first.Geometry.Coordinates[1], Lng: first.Geometry.Coordinates[0]},
		PostalCode: postal,
		Label:      first.Properties.Label,
		Source:     source,
	}, nil
}
