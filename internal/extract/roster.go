package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RosterRow is one row of a club roster listing, either a member row
// (ratings populated) or a staff/qualification row (role populated).
type RosterRow struct {
	NrFfe    string `json:"nrFfe"`
	Name     string `json:"name"`
	Aff      string `json:"aff,omitempty"`
	PlayerID string `json:"playerId"`
	Elo      string `json:"elo,omitempty"`
	Rapid    string `json:"rapid,omitempty"`
	Blitz    string `json:"blitz,omitempty"`
	Category string `json:"category,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Validity string `json:"validity,omitempty"`
	Club     string `json:"club,omitempty"`
}

var playerIDRe = regexp.MustCompile(`(?i)FicheJoueur\.aspx\?Id=(\d+)`)

// tableRow is a listing row with its cell HTML preserved for link scans.
type tableRow struct {
	cells   []string
	rowHTML string
}

// listingRows returns the rows marked with the listing row class.
func listingRows(html string) []tableRow {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var rows []tableRow
	doc.Find(`tr[class^="liste_"]`).Each(func(_ int, tr *goquery.Selection) {
		var row tableRow
		if h, err := goquery.OuterHtml(tr); err == nil {
			row.rowHTML = h
		}
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			h, err := td.Html()
			if err != nil {
				h = ""
			}
			row.cells = append(row.cells, h)
		})
		if len(row.cells) > 0 {
			rows = append(rows, row)
		}
	})
	return rows
}

func extractPlayerID(html string) string {
	m := playerIDRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseMemberRows parses a members listing page. Rows with fewer than ten
// cells are layout furniture, not data.
func ParseMemberRows(html string) []RosterRow {
	var out []RosterRow
	for _, row := range listingRows(html) {
		if len(row.cells) < 10 {
			continue
		}
		values := make([]string, len(row.cells))
		for i, c := range row.cells {
			values[i] = CleanText(c)
		}
		if values[0] == "" || values[1] == "" {
			continue
		}
		out = append(out, RosterRow{
			NrFfe:    values[0],
			Name:     values[1],
			Aff:      values[2],
			PlayerID: extractPlayerID(row.rowHTML),
			Elo:      values[4],
			Rapid:    values[5],
			Blitz:    values[6],
			Category: values[7],
			Gender:   values[8],
			Club:     values[9],
		})
	}
	return out
}

// ParseQualificationRows parses an arbiter/trainer/initiator listing page.
func ParseQualificationRows(html string) []RosterRow {
	var out []RosterRow
	for _, row := range listingRows(html) {
		if len(row.cells) < 5 {
			continue
		}
		values := make([]string, len(row.cells))
		for i, c := range row.cells {
			values[i] = CleanText(c)
		}
		if values[0] == "" || values[1] == "" {
			continue
		}
		out = append(out, RosterRow{
			NrFfe:    values[0],
			Name:     values[1],
			Email:    ExtractEmail(row.rowHTML),
			Role:     values[2],
			Validity: values[3],
			Club:     values[4],
		})
	}
	return out
}

// DedupeRows drops rows whose key repeats, keeping first occurrences in
// order. Empty keys are dropped outright.
func DedupeRows(rows []RosterRow, key func(RosterRow) string) []RosterRow {
	seen := map[string]bool{}
	var out []RosterRow
	for _, row := range rows {
		k := key(row)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row)
	}
	return out
}

// MemberKey deduplicates member rows.
func MemberKey(r RosterRow) string {
	return r.NrFfe + "|" + r.Name + "|" + r.PlayerID
}

// StaffKey deduplicates qualification rows.
func StaffKey(r RosterRow) string {
	return r.NrFfe + "|" + r.Name + "|" + r.Role
}

// BuildMemberIDLookup maps member numbers to internal player ids, first
// binding wins.
func BuildMemberIDLookup(rows []RosterRow) map[string]string {
	lookup := map[string]string{}
	for _, row := range rows {
		nr := strings.TrimSpace(row.NrFfe)
		id := strings.TrimSpace(row.PlayerID)
		if nr == "" || id == "" {
			continue
		}
		if _, ok := lookup[nr]; !ok {
			lookup[nr] = id
		}
	}
	return lookup
}

// ApplyPlayerIDs backfills missing player ids from the member lookup.
func ApplyPlayerIDs(rows []RosterRow, lookup map[string]string) []RosterRow {
	out := make([]RosterRow, len(rows))
	for i, row := range rows {
		if row.PlayerID == "" && row.NrFfe != "" {
			if id, ok := lookup[row.NrFfe]; ok {
				row.PlayerID = id
			}
		}
		out[i] = row
	}
	return out
}
