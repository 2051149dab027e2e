package clubsync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/echecs92/chess-sync/internal/config"
	"github.com/echecs92/chess-sync/internal/fetch"
	"github.com/echecs92/chess-sync/internal/storage"
)

const comitesHTML = `<map name=carte>
<area shape=poly coords=1,2,3 href=FicheComite.aspx?Ref=75 alt=Paris>
<area shape=poly coords=4,5,6 href=FicheComite.aspx?Ref=92 alt=Hauts-de-Seine>
</map>`

func clubListHTML(dept, ref, name, commune string) string {
	return fmt.Sprintf(`<table>
<tr><td>%s</td><td>%s</td><td><a href="FicheClub.aspx?Ref=%s">%s</a></td></tr>
</table>`, dept, commune, ref, name)
}

func clubDetailHTML(name, siege, licences string) string {
	return fmt.Sprintf(`<div>
<span id="ctl00_ContentPlaceHolderMain_LabelNom">%s</span>
<span id="ctl00_ContentPlaceHolderMain_LabelAdresse">%s</span>
<span id="ctl00_ContentPlaceHolderMain_LabelAffilies">%s</span>
</div>`, name, siege, licences)
}

const emptyTableHTML = `<table></table>`

// portalServer serves a two-department portal: one club each, the second
// club's detail sheet always failing.
func portalServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/Comites.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, comitesHTML)
	})
	mux.HandleFunc("/ListeClubs.aspx", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("ComiteRef") {
		case "75":
			fmt.Fprint(w, clubListHTML("75", "1001", "Echiquier de la Cité", "Paris"))
		case "92":
			fmt.Fprint(w, clubListHTML("92", "2002", "Tour d'Antony", "Antony"))
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/FicheClub.aspx", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("Ref") {
		case "1001":
			fmt.Fprint(w, clubDetailHTML(
				"Echiquier de la Cité",
				"2 place du Châtelet - 75001 Paris",
				"Licences A : <b>40</b> Licences B : <b>12</b>"))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/ListeJoueurs.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, emptyTableHTML)
	})
	mux.HandleFunc("/ListeArbitres.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, emptyTableHTML)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(baseURL, dataDir string) config.Config {
	return config.Config{
		Federation: config.FederationConfig{
			BaseURL:           baseURL,
			DetailConcurrency: 2,
			RosterConcurrency: 2,
		},
		Output: config.OutputConfig{
			DataDir:  dataDir,
			BasePath: "/assets/data/",
		},
		Exclude: config.ExcludeConfig{
			Refs:         []string{"1901"},
			NamePatterns: []string{"(?i)championnat de france"},
		},
	}
}

func newTestRunner(t *testing.T, baseURL, dataDir string) *Runner {
	t.Helper()
	client := fetch.New(fetch.Config{MaxRetries: 0}, zap.NewNop())
	return NewRunner(testConfig(baseURL, dataDir), client, zap.NewNop())
}

func TestRunTwoDepartmentsOneFailingDetail(t *testing.T) {
	t.Parallel()
	server := portalServer(t)
	dataDir := filepath.Join(t.TempDir(), "data")

	result, err := newTestRunner(t, server.URL, dataDir).Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, 2, result.Departments)
	require.Equal(t, 2, result.Clubs)
	require.Equal(t, 2, result.Rosters)

	var base75 []map[string]any
	require.NoError(t, storage.ReadJSON(filepath.Join(dataDir, "clubs-france", "75.json"), &base75))
	require.Len(t, base75, 1)
	require.Equal(t, "Echiquier de la Cité", base75[0]["nom"])
	require.Equal(t, float64(40), base75[0]["licences_a"])
	require.Equal(t, float64(12), base75[0]["licences_b"])

	// The failed detail sheet publishes as a placeholder: listing data
	// only, empty contacts, null licence counts.
	var base92 []map[string]any
	require.NoError(t, storage.ReadJSON(filepath.Join(dataDir, "clubs-france", "92.json"), &base92))
	require.Len(t, base92, 1)
	require.Equal(t, "Tour d'Antony", base92[0]["nom"])
	require.Equal(t, "", base92[0]["email"])
	require.Equal(t, "", base92[0]["president"])
	require.Nil(t, base92[0]["licences_a"])
	require.Nil(t, base92[0]["licences_b"])

	var public75 []map[string]any
	require.NoError(t, storage.ReadJSON(filepath.Join(dataDir, "clubs-france-ffe", "75.json"), &public75))
	require.Len(t, public75, 1)
	require.Equal(t, "75001", public75[0]["postalCode"])
	require.NotEmpty(t, public75[0]["slug"])

	var manifest Manifest
	require.NoError(t, storage.ReadJSON(filepath.Join(dataDir, "clubs-france.json"), &manifest))
	require.Equal(t, 1, manifest.Version)
	require.Equal(t, "/assets/data/clubs-france/", manifest.BasePath)
	require.Len(t, manifest.Departments, 2)
	require.Equal(t, "75", manifest.Departments[0].Code)
	require.Equal(t, 1, manifest.Departments[0].Count)
	require.Equal(t, 1, manifest.Departments[1].Count)

	var publicManifestDoc Manifest
	require.NoError(t, storage.ReadJSON(filepath.Join(dataDir, "clubs-france-ffe.json"), &publicManifestDoc))
	require.Equal(t, "/assets/data/clubs-france-ffe/", publicManifestDoc.BasePath)

	require.FileExists(t, filepath.Join(dataDir, "clubs-france-ffe-details", "1001.json"))
	require.FileExists(t, filepath.Join(dataDir, "clubs-france-ffe-details", "2002.json"))

	// The failed detail counts as an issue, and the staging scratch dir
	// is gone after publication.
	require.Positive(t, result.Issues)
	entries, err := os.ReadDir(filepath.Dir(dataDir))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRunExcludesBlocklistedEntries(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/Comites.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<map><area href=FicheComite.aspx?Ref=75 alt=Paris></map>`)
	})
	mux.HandleFunc("/ListeClubs.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<table>
<tr><td>75</td><td>Paris</td><td><a href="FicheClub.aspx?Ref=1001">Echiquier de la Cité</a></td></tr>
<tr><td>75</td><td>Paris</td><td><a href="FicheClub.aspx?Ref=1901">Ligue administrative</a></td></tr>
<tr><td>75</td><td>Paris</td><td><a href="FicheClub.aspx?Ref=3003">Championnat de France Jeunes</a></td></tr>
</table>`)
	})
	mux.HandleFunc("/FicheClub.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, clubDetailHTML("", "", ""))
	})
	mux.HandleFunc("/ListeJoueurs.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, emptyTableHTML)
	})
	mux.HandleFunc("/ListeArbitres.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, emptyTableHTML)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dataDir := filepath.Join(t.TempDir(), "data")
	result, err := newTestRunner(t, server.URL, dataDir).Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, 1, result.Clubs)

	var public []map[string]any
	require.NoError(t, storage.ReadJSON(filepath.Join(dataDir, "clubs-france-ffe", "75.json"), &public))
	require.Len(t, public, 1)
	require.Equal(t, "Echiquier de la Cité", public[0]["name"])
}

func TestRunFailsWhenDepartmentsMissing(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>maintenance</body></html>")
	}))
	defer server.Close()

	_, err := newTestRunner(t, server.URL, t.TempDir()).Run(context.Background(), Options{})
	require.ErrorContains(t, err, "no departments")
}

func TestRunLicensesOnlyPatchesPublishedFiles(t *testing.T) {
	t.Parallel()
	server := portalServer(t)
	dataDir := filepath.Join(t.TempDir(), "data")

	stale := 7
	published := []map[string]any{{
		"ffe_ref":    "1001",
		"nom":        "Echiquier de la Cité",
		"adresse":    "2 place du Châtelet - 75001 Paris",
		"licenses_a": stale,
		"licences_b": 3,
	}}
	require.NoError(t, storage.WriteJSON(filepath.Join(dataDir, "clubs-france", "75.json"), published))

	result, err := newTestRunner(t, server.URL, dataDir).Run(context.Background(), Options{LicensesOnly: true})
	require.NoError(t, err)
	require.Equal(t, 2, result.Departments)

	var patched []map[string]any
	require.NoError(t, storage.ReadJSON(filepath.Join(dataDir, "clubs-france", "75.json"), &patched))
	require.Len(t, patched, 1)
	require.Equal(t, float64(40), patched[0]["licences_a"])
	require.Equal(t, float64(12), patched[0]["licences_b"])
	require.NotContains(t, patched[0], "licenses_a", "legacy spelling rewritten")

	// Licenses-only mode never rebuilds the dataset files.
	require.NoFileExists(t, filepath.Join(dataDir, "clubs-france.json"))
	require.NoFileExists(t, filepath.Join(dataDir, "clubs-france", "92.json"))
}
