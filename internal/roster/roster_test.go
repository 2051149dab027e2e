package roster

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/echecs92/chess-sync/internal/crawl"
	"github.com/echecs92/chess-sync/internal/fetch"
)

const memberListHTML = `<table>
<tr class="liste_titre"><td>NrFFE</td></tr>
<tr class="liste_clair">
<td>A12345</td><td><a href="FicheJoueur.aspx?Id=777">DUPONT Jean</a></td><td>A</td><td>-</td>
<td>1850</td><td>1800</td><td>1750</td><td>SenM</td><td>M</td><td>Le Pion</td>
</tr>
<tr class="liste_fonce">
<td>B67890</td><td><a href="FicheJoueur.aspx?Id=888">MARTIN Claire</a></td><td>A</td><td>-</td>
<td>1620</td><td>1600</td><td>1580</td><td>SenF</td><td>F</td><td>Le Pion</td>
</tr>
</table>`

const arbitrageListHTML = `<table>
<tr class="liste_clair">
<td>A12345</td><td>DUPONT Jean</td><td>Arbitre Elite</td><td>2026-08-31</td><td>Le Pion</td>
</tr>
</table>`

const emptyListHTML = `<table></table>`

func newTestFetcher(t *testing.T, baseURL string) *Fetcher {
	t.Helper()
	client := fetch.New(fetch.Config{MaxRetries: 0}, zap.NewNop())
	return NewFetcher(crawl.New(client, 0), baseURL, zap.NewNop())
}

func TestFetchClubListsFullDocument(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/ListeJoueurs.aspx", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1234", r.URL.Query().Get("ClubRef"))
		fmt.Fprint(w, memberListHTML)
	})
	mux.HandleFunc("/ListeArbitres.aspx", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("Action") == "DNACLUB" {
			fmt.Fprint(w, arbitrageListHTML)
			return
		}
		fmt.Fprint(w, emptyListHTML)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	roster, listErr := newTestFetcher(t, server.URL).FetchClubLists(context.Background(), "1234", "Le Pion")
	require.NotNil(t, roster)
	require.Nil(t, listErr)
	require.Equal(t, "1234", roster.Ref)
	require.NotEmpty(t, roster.Updated)

	require.Equal(t, 2, roster.Members.Count)
	require.Equal(t, "777", roster.Members.Rows[0].PlayerID)
	require.Equal(t, "DUPONT Jean", roster.Members.Rows[0].Name)
	require.Equal(t, "1850", roster.Members.Rows[0].Elo)

	require.Equal(t, 1, roster.Arbitrage.Count)
	require.Equal(t, "Arbitre Elite", roster.Arbitrage.Rows[0].Role)
	require.Equal(t, "777", roster.Arbitrage.Rows[0].PlayerID, "backfilled from the member lookup")

	require.Zero(t, roster.Animation.Count)
	require.NotNil(t, roster.Animation.Rows, "empty list still serializes as an array")
}

func TestFetchClubListsPartialFailure(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/ListeJoueurs.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, memberListHTML)
	})
	mux.HandleFunc("/ListeArbitres.aspx", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("Action") == "DNACLUB" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, emptyListHTML)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	roster, listErr := newTestFetcher(t, server.URL).FetchClubLists(context.Background(), "1234", "Le Pion")
	require.NotNil(t, roster)
	require.Equal(t, 2, roster.Members.Count, "other lists unaffected by one failure")
	require.NotEmpty(t, roster.Arbitrage.Error)
	require.Zero(t, roster.Arbitrage.Count)

	require.NotNil(t, listErr)
	require.Equal(t, "1234", listErr.Ref)
	require.Equal(t, "Le Pion", listErr.Name)
	require.Len(t, listErr.Details, 1)
	require.Contains(t, listErr.Details[0], "arbitrage")
}

func TestFetchClubListsInvalidRef(t *testing.T) {
	t.Parallel()
	roster, listErr := newTestFetcher(t, "http://unused.invalid").FetchClubLists(context.Background(), "X", "")
	require.Nil(t, roster)
	require.Nil(t, listErr)
}

func TestFetchClubListsDedupesAcrossPages(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Same rows on every list; duplicates collapse by key.
		fmt.Fprint(w, memberListHTML)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	roster, _ := newTestFetcher(t, server.URL).FetchClubLists(context.Background(), "Echiquier 5678", "")
	require.NotNil(t, roster)
	require.Equal(t, "5678", roster.Ref, "ref sanitized to its trailing digits")
	require.Equal(t, 2, roster.Members.Count)
}
