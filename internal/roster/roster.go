// Package roster fetches the six federation listings attached to a club
// (members, members by rating, and the four qualification lists) and folds
// them into one per-club document.
package roster

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/echecs92/chess-sync/internal/crawl"
	"github.com/echecs92/chess-sync/internal/extract"
)

// ListPayload is one listing inside the roster document. Error carries the
// fetch failure message when the list could not be retrieved; the document
// still publishes with the other lists intact.
type ListPayload struct {
	Count int                 `json:"count"`
	Rows  []extract.RosterRow `json:"rows"`
	Error string              `json:"error"`
}

// ClubRoster is the published per-club document.
type ClubRoster struct {
	Ref          string      `json:"ref"`
	Updated      string      `json:"updated"`
	Members      ListPayload `json:"members"`
	MembersByElo ListPayload `json:"members_by_elo"`
	Arbitrage    ListPayload `json:"arbitrage"`
	Animation    ListPayload `json:"animation"`
	Entrainement ListPayload `json:"entrainement"`
	Initiation   ListPayload `json:"initiation"`
}

// ListError summarizes which lists failed for one club.
type ListError struct {
	Ref     string   `json:"ref"`
	Name    string   `json:"name"`
	Details []string `json:"details"`
}

// Fetcher pulls roster listings through the paginated crawler.
type Fetcher struct {
	pager   *crawl.Pager
	baseURL string
	log     *zap.Logger
}

func NewFetcher(pager *crawl.Pager, baseURL string, log *zap.Logger) *Fetcher {
	return &Fetcher{pager: pager, baseURL: baseURL, log: log}
}

type listSpec struct {
	label  string
	url    string
	parser func(string) []extract.RosterRow
	key    func(extract.RosterRow) string
}

// FetchClubLists retrieves all six lists for a club. A nil roster means the
// ref was unusable. The ListError is nil when every list fetched cleanly.
func (f *Fetcher) FetchClubLists(ctx context.Context, ref, name string) (*ClubRoster, *ListError) {
	refID := extract.SanitizeClubRef(ref)
	if refID == "" {
		return nil, nil
	}
	escaped := url.QueryEscape(refID)

	specs := []listSpec{
		{"membres", f.baseURL + "/ListeJoueurs.aspx?Action=JOUEURCLUBREF&ClubRef=" + escaped, extract.ParseMemberRows, extract.MemberKey},
		{"membres_par_elo", f.baseURL + "/ListeJoueurs.aspx?Action=JOUEURCLUBREF&JrTri=Elo&ClubRef=" + escaped, extract.ParseMemberRows, extract.MemberKey},
		{"arbitrage", f.baseURL + "/ListeArbitres.aspx?Action=DNACLUB&ClubRef=" + escaped, extract.ParseQualificationRows, extract.StaffKey},
		{"animation", f.baseURL + "/ListeArbitres.aspx?Action=DAFFECLUB&ClubRef=" + escaped, extract.ParseQualificationRows, extract.StaffKey},
		{"entrainement", f.baseURL + "/ListeArbitres.aspx?Action=DEFFECLUB&ClubRef=" + escaped, extract.ParseQualificationRows, extract.StaffKey},
		{"initiation", f.baseURL + "/ListeArbitres.aspx?Action=DIFFECLUB&ClubRef=" + escaped, extract.ParseQualificationRows, extract.StaffKey},
	}

	var listErrors []string
	payloads := make([]ListPayload, len(specs))
	for i, spec := range specs {
		rows, err := f.fetchList(ctx, spec)
		payload := ListPayload{Count: len(rows), Rows: rows, Error: ""}
		if err != nil {
			payload.Error = err.Error()
			listErrors = append(listErrors, fmt.Sprintf("%s: %v", spec.label, err))
			f.log.Warn("roster list failed",
				zap.String("ref", refID), zap.String("list", spec.label), zap.Error(err))
		}
		payloads[i] = payload
	}

	// Member rows carry the only reliable player-id source; backfill the
	// other lists from them.
	lookup := extract.BuildMemberIDLookup(payloads[0].Rows)
	for i := range payloads {
		payloads[i].Rows = extract.ApplyPlayerIDs(payloads[i].Rows, lookup)
	}

	roster := &ClubRoster{
		Ref:          refID,
		Updated:      time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Members:      payloads[0],
		MembersByElo: payloads[1],
		Arbitrage:    payloads[2],
		Animation:    payloads[3],
		Entrainement: payloads[4],
		Initiation:   payloads[5],
	}
	if len(listErrors) > 0 {
		return roster, &ListError{Ref: refID, Name: name, Details: listErrors}
	}
	return roster, nil
}

func (f *Fetcher) fetchList(ctx context.Context, spec listSpec) ([]extract.RosterRow, error) {
	pages, err := f.pager.Pages(ctx, spec.url)
	if err != nil {
		return []extract.RosterRow{}, err
	}
	rows := []extract.RosterRow{}
	for _, page := range pages {
		rows = append(rows, spec.parser(page)...)
	}
	return extract.DedupeRows(rows, spec.key), nil
}
