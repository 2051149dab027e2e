package geocode

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/echecs92/chess-sync/internal/config"
	"github.com/echecs92/chess-sync/internal/extract"
	"github.com/echecs92/chess-sync/internal/issue"
)

// monacoCandidate short-circuits the one club seated outside the national
// postal scheme; providers constrained to fr cannot resolve it.
var monacoCandidate = Candidate{
	Point:      Point{Lat: 43.7384, Lng: 7.4246},
	PostalCode: "98000",
	Label:      "Monaco",
	Source:     SourceEnclave,
}

func isMonaco(club Club) bool {
	if strings.HasPrefix(club.PostalCode, "980") {
		return true
	}
	for _, field := range []string{club.Commune, club.Address, club.Siege, club.Name} {
		if strings.Contains(extract.Normalize(field), "monaco") {
			return true
		}
	}
	return false
}

// Resolver walks a club through the resolution ladder: forced override,
// enclave, strict providers, relaxed providers, postal centroid, department
// centroid.
type Resolver struct {
	primary   Provider
	secondary Provider
	centroids *CentroidTable
	cfg       config.GeocodeConfig
	pacer     *rate.Limiter
	issues    *issue.Log
	log       *zap.Logger
}

func NewResolver(primary, secondary Provider, centroids *CentroidTable, cfg config.GeocodeConfig, issues *issue.Log, log *zap.Logger) *Resolver {
	var pacer *rate.Limiter
	if cfg.DelayMs > 0 {
		pacer = rate.NewLimiter(rate.Every(time.Duration(cfg.DelayMs)*time.Millisecond), 1)
	}
	return &Resolver{
		primary:   primary,
		secondary: secondary,
		centroids: centroids,
		cfg:       cfg,
		pacer:     pacer,
		issues:    issues,
		log:       log,
	}
}

// Resolve returns the best candidate for a club, or nil when nothing
// resolved. A nil result is an issue, never an error: one unresolvable club
// must not stop the run.
func (r *Resolver) Resolve(ctx context.Context, club Club) (*Candidate, error) {
	if forced, ok := r.forcedOverride(club); ok {
		r.issues.Add(issue.CategoryForced, club.Slug, "forced override applied", forced.Label)
		return forced, nil
	}
	if isMonaco(club) {
		c := monacoCandidate
		return &c, nil
	}

	postals := CollectPostalCodes(club)
	expected := ""
	if len(postals) > 0 {
		expected = postals[0]
	}
	queries := Queries(club, expected)

	for _, allowMismatch := range []bool{false, true} {
		// The relaxed pass drops the postal constraint from the provider
		// requests entirely; a club whose recorded postal is wrong can
		// only resolve without it. Distance validation still runs.
		providerPostal := expected
		if allowMismatch {
			providerPostal = ""
		}
		for _, query := range queries {
			if r.pacer != nil {
				if err := r.pacer.Wait(ctx); err != nil {
					return nil, err
				}
			}
			candidate := r.queryProviders(ctx, club.Slug, query, providerPostal, allowMismatch)
			if candidate == nil {
				continue
			}
			if distance, ok := r.validate(candidate, expected); !ok {
				r.issues.Addf(issue.CategorySuspect, club.Slug,
					"distance validation failed",
					"%.1fkm from %s centroid via %s", distance, expected, candidate.Source)
				continue
			}
			return candidate, nil
		}
	}

	if entry, ok := r.centroids.Lookup(expected); ok {
		r.issues.Add(issue.CategoryFallback, club.Slug, "postal centroid used", expected)
		return &Candidate{
			Point:      Point{Lat: entry.Lat, Lng: entry.Lng},
			PostalCode: expected,
			Label:      entry.Label,
			Source:     SourcePostalFallback,
		}, nil
	}
	if entry, ok := DeptCentroid(expected); ok {
		r.issues.Add(issue.CategoryFallback, club.Slug, "department centroid used", entry.Label)
		return &Candidate{
			Point:      Point{Lat: entry.Lat, Lng: entry.Lng},
			PostalCode: expected,
			Label:      entry.Label,
			Source:     SourceDeptFallback,
		}, nil
	}

	r.issues.Add(issue.CategoryFailed, club.Slug, "no resolvable address", club.Name)
	return nil, nil
}

// queryProviders runs both providers on one query and reconciles. The
// primary answer wins; a large disagreement between the two is flagged.
func (r *Resolver) queryProviders(ctx context.Context, slug, query, expectedPostal string, allowMismatch bool) *Candidate {
	var primary, secondary *Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := r.primary.Geocode(gctx, query, expectedPostal, allowMismatch)
		if err != nil {
			r.log.Debug("provider error",
				zap.String("provider", r.primary.Name()), zap.String("query", query), zap.Error(err))
			return nil
		}
		primary = c
		return nil
	})
	if r.secondary != nil {
		g.Go(func() error {
			c, err := r.secondary.Geocode(gctx, query, expectedPostal, allowMismatch)
			if err != nil {
				r.log.Debug("provider error",
					zap.String("provider", r.secondary.Name()), zap.String("query", query), zap.Error(err))
				return nil
			}
			secondary = c
			return nil
		})
	}
	_ = g.Wait()

	if primary != nil && secondary != nil && r.cfg.SuspectDistanceKm > 0 {
		if d := Haversine(primary.Point, secondary.Point); d > r.cfg.SuspectDistanceKm {
			r.issues.Addf(issue.CategorySuspect, slug,
				"providers disagree",
				"%.1fkm between %s and %s for %q", d, r.primary.Name(), r.secondary.Name(), query)
		}
	}
	if primary != nil {
		return primary
	}
	return secondary
}

// validate checks a candidate against the centroid of its postal code. A
// postal code absent from the table cannot reject anything.
func (r *Resolver) validate(candidate *Candidate, expectedPostal string) (float64, bool) {
	postal := candidate.PostalCode
	if postal == "" {
		postal = expectedPostal
	}
	entry, ok := r.centroids.Lookup(postal)
	if !ok {
		return 0, true
	}
	distance := Haversine(candidate.Point, Point{Lat: entry.Lat, Lng: entry.Lng})
	return distance, distance <= r.cfg.MaxDistanceKm
}

func (r *Resolver) forcedOverride(club Club) (*Candidate, bool) {
	raw, ok := r.cfg.Overrides[club.Slug]
	if !ok {
		return nil, false
	}
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		r.log.Warn("malformed override", zap.String("slug", club.Slug), zap.String("value", raw))
		return nil, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		r.log.Warn("malformed override", zap.String("slug", club.Slug), zap.String("value", raw))
		return nil, false
	}
	return &Candidate{
		Point:      Point{Lat: lat, Lng: lng},
		PostalCode: club.PostalCode,
		Label:      fmt.Sprintf("override %s", club.Slug),
		Source:     SourceForced,
	}, true
}
