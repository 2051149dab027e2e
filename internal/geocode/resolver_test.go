package geocode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/echecs92/chess-sync/internal/config"
	"github.com/echecs92/chess-sync/internal/issue"
)

type stubProvider struct {
	name    string
	fn      func(query string, allowMismatch bool) *Candidate
	calls   int
	postals []string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Geocode(_ context.Context, query, expectedPostal string, allowMismatch bool) (*Candidate, error) {
	s.calls++
	s.postals = append(s.postals, expectedPostal)
	if s.fn == nil {
		return nil, nil
	}
	return s.fn(query, allowMismatch), nil
}

func testGeocodeConfig() config.GeocodeConfig {
	return config.GeocodeConfig{MaxDistanceKm: 15, SuspectDistanceKm: 5}
}

func antonyTable() *CentroidTable {
	return &CentroidTable{byPostal: map[string]CentroidEntry{
		"92160": {PostalCode: "92160", Lat: 48.7537, Lng: 2.2962, Label: "Antony"},
	}}
}

func antonyClub() Club {
	return Club{Slug: "c123", Name: "Le Pion", Commune: "Antony", PostalCode: "92160"}
}

func TestResolveStrictAccepted(t *testing.T) {
	t.Parallel()
	near := &Candidate{Point: Point{Lat: 48.75, Lng: 2.29}, PostalCode: "92160", Source: SourceStrict}
	primary := &stubProvider{name: "p", fn: func(string, bool) *Candidate { c := *near; return &c }}
	issues := issue.NewLog()
	r := NewResolver(primary, nil, antonyTable(), testGeocodeConfig(), issues, zap.NewNop())

	got, err := r.Resolve(context.Background(), antonyClub())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, SourceStrict, got.Source)
	require.Zero(t, issues.Count())
}

func TestResolveDistanceRejectionFallsBackToCentroid(t *testing.T) {
	t.Parallel()
	// Providers keep answering a point hundreds of kilometers off.
	far := &Candidate{Point: Point{Lat: 43.3, Lng: 5.37}, PostalCode: "92160"}
	primary := &stubProvider{name: "p", fn: func(_ string, allow bool) *Candidate {
		c := *far
		c.Source = SourceStrict
		if allow {
			c.Source = SourceRelaxed
		}
		return &c
	}}
	issues := issue.NewLog()
	r := NewResolver(primary, nil, antonyTable(), testGeocodeConfig(), issues, zap.NewNop())

	got, err := r.Resolve(context.Background(), antonyClub())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, SourcePostalFallback, got.Source)
	require.InDelta(t, 48.7537, got.Lat, 1e-6)
	require.Greater(t, issues.CountBy(issue.CategorySuspect), 0, "every rejected attempt is logged")
	require.Equal(t, 1, issues.CountBy(issue.CategoryFallback))
}

func TestResolveDeptFallback(t *testing.T) {
	t.Parallel()
	empty := &CentroidTable{byPostal: map[string]CentroidEntry{}}
	primary := &stubProvider{name: "p"}
	issues := issue.NewLog()
	r := NewResolver(primary, nil, empty, testGeocodeConfig(), issues, zap.NewNop())

	got, err := r.Resolve(context.Background(), antonyClub())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, SourceDeptFallback, got.Source)
	require.Equal(t, "Hauts-de-Seine", got.Label)
}

func TestResolveUnresolvedIsNilNotError(t *testing.T) {
	t.Parallel()
	empty := &CentroidTable{byPostal: map[string]CentroidEntry{}}
	primary := &stubProvider{name: "p"}
	issues := issue.NewLog()
	r := NewResolver(primary, nil, empty, testGeocodeConfig(), issues, zap.NewNop())

	got, err := r.Resolve(context.Background(), Club{Slug: "c9", Name: "Sans Adresse", PostalCode: "13001"})
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, 1, issues.CountBy(issue.CategoryFailed))
}

func TestResolveProvidersDisagreeFlagsSuspect(t *testing.T) {
	t.Parallel()
	primary := &stubProvider{name: "p", fn: func(string, bool) *Candidate {
		return &Candidate{Point: Point{Lat: 48.75, Lng: 2.29}, PostalCode: "92160", Source: SourceStrict}
	}}
	secondary := &stubProvider{name: "s", fn: func(string, bool) *Candidate {
		return &Candidate{Point: Point{Lat: 48.9, Lng: 2.6}, PostalCode: "92160", Source: SourceStrict}
	}}
	issues := issue.NewLog()
	r := NewResolver(primary, secondary, antonyTable(), testGeocodeConfig(), issues, zap.NewNop())

	got, err := r.Resolve(context.Background(), antonyClub())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.InDelta(t, 48.75, got.Lat, 1e-6, "primary provider wins")
	require.Equal(t, 1, issues.CountBy(issue.CategorySuspect))
}

func TestResolveRelaxedPassDropsPostalConstraint(t *testing.T) {
	t.Parallel()
	// A club whose recorded postal is wrong only resolves once the
	// provider request stops carrying it.
	primary := &stubProvider{name: "p", fn: func(_ string, allow bool) *Candidate {
		if !allow {
			return nil
		}
		return &Candidate{Point: Point{Lat: 48.7537, Lng: 2.2962}, PostalCode: "92160", Source: SourceRelaxed}
	}}
	issues := issue.NewLog()
	club := antonyClub()
	club.PostalCode = "99999"
	r := NewResolver(primary, nil, antonyTable(), testGeocodeConfig(), issues, zap.NewNop())

	got, err := r.Resolve(context.Background(), club)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, SourceRelaxed, got.Source)

	require.Contains(t, primary.postals, "99999", "strict pass constrains by the recorded postal")
	require.Contains(t, primary.postals, "", "relaxed pass sends no postal constraint")
	require.Equal(t, "", primary.postals[len(primary.postals)-1])
}

func TestResolveMonacoShortCircuit(t *testing.T) {
	t.Parallel()
	primary := &stubProvider{name: "p"}
	r := NewResolver(primary, nil, antonyTable(), testGeocodeConfig(), issue.NewLog(), zap.NewNop())

	got, err := r.Resolve(context.Background(), Club{Slug: "cmc", Name: "Cercle de Monaco", Commune: "MONACO", PostalCode: "98000"})
	require.NoError(t, err)
	require.Equal(t, SourceEnclave, got.Source)
	require.Equal(t, "98000", got.PostalCode)
	require.Zero(t, primary.calls, "providers skipped entirely")
}

func TestResolveForcedOverride(t *testing.T) {
	t.Parallel()
	cfg := testGeocodeConfig()
	cfg.Overrides = map[string]string{"c123": "48.1, 2.5"}
	primary := &stubProvider{name: "p"}
	issues := issue.NewLog()
	r := NewResolver(primary, nil, antonyTable(), cfg, issues, zap.NewNop())

	got, err := r.Resolve(context.Background(), antonyClub())
	require.NoError(t, err)
	require.Equal(t, SourceForced, got.Source)
	require.Equal(t, 48.1, got.Lat)
	require.Equal(t, 2.5, got.Lng)
	require.Zero(t, primary.calls)
	require.Equal(t, 1, issues.CountBy(issue.CategoryForced))
}

func TestGenerateHints(t *testing.T) {
	t.Parallel()
	lat, lng := 48.75, 2.29
	stored := Club{Slug: "ca", PostalCode: "92160", Latitude: &lat, Longitude: &lng}
	resolved := antonyClub()
	unresolved := Club{Slug: "cz", Name: "Introuvable", PostalCode: "13001"}

	primary := &stubProvider{name: "p", fn: func(query string, _ bool) *Candidate {
		if query == "Antony 92160" {
			return &Candidate{Point: Point{Lat: 48.7537, Lng: 2.2962}, PostalCode: "92160", Source: SourceStrict}
		}
		return nil
	}}
	r := NewResolver(primary, nil, antonyTable(), testGeocodeConfig(), issue.NewLog(), zap.NewNop())

	payload, err := GenerateHints(context.Background(), []Club{stored, resolved, unresolved}, r, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 3, payload.Total)
	require.Len(t, payload.Hints, 2)
	require.Empty(t, payload.Hints["ca"].Source, "stored coordinates carry no source tag")
	require.Equal(t, SourceStrict, payload.Hints["c123"].Source)
	require.NotContains(t, payload.Hints, "cz")
}
