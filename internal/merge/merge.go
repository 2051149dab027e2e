// Package merge assembles final club records out of listing rows and detail
// sheets: pairing, exclusion filtering, commune/postal reconciliation,
// locale-aware ordering and stable short-slug assignment.
package merge

import (
	"fmt"
	"regexp"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/echecs92/chess-sync/internal/extract"
)

// Club is the full per-department record consumed by the detail views.
type Club struct {
	FfeRef             string `json:"ffe_ref"`
	Nom                string `json:"nom"`
	Adresse            string `json:"adresse"`
	Siege              string `json:"siege"`
	SalleJeu           string `json:"salle_jeu"`
	Telephone          string `json:"telephone"`
	Fax                string `json:"fax"`
	Email              string `json:"email"`
	Site               string `json:"site"`
	President          string `json:"president"`
	PresidentEmail     string `json:"president_email"`
	Contact            string `json:"contact"`
	ContactEmail       string `json:"contact_email"`
	Horaires           string `json:"horaires"`
	AccesPMR           string `json:"acces_pmr"`
	Interclubs         string `json:"interclubs"`
	InterclubsJeunes   string `json:"interclubs_jeunes"`
	InterclubsFeminins string `json:"interclubs_feminins"`
	LabelFederal       string `json:"label_federal"`
	LicencesA          *int   `json:"licences_a"`
	LicencesB          *int   `json:"licences_b"`
}

// PublicClub is the normalized view used by list pages and the geocoder.
type PublicClub struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Commune        string `json:"commune"`
	PostalCode     string `json:"postalCode"`
	DepartmentCode string `json:"departmentCode"`
	DepartmentName string `json:"departmentName"`
	DepartmentSlug string `json:"departmentSlug"`
	Ref            string `json:"ref"`
	Slug           string `json:"slug"`
}

// Exclusions filters administrative non-club entries out of listings.
type Exclusions struct {
	refs     map[string]bool
	patterns []*regexp.Regexp
}

// NewExclusions compiles the exclusion config. Invalid patterns are an
// error: a silently dropped blocklist entry would let excluded records back
// into the dataset.
func NewExclusions(refs []string, namePatterns []string) (*Exclusions, error) {
	e := &Exclusions{refs: map[string]bool{}}
	for _, r := range refs {
		e.refs[r] = true
	}
	for _, p := range namePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("exclusion pattern %q: %w", p, err)
		}
		e.patterns = append(e.patterns, re)
	}
	return e, nil
}

// Excluded reports whether the (detail, list row) pair is blocklisted.
func (e *Exclusions) Excluded(detail extract.ClubDetail, row extract.ClubListRow) bool {
	ref := detail.Ref
	if ref == "" {
		ref = row.Ref
	}
	if ref != "" && e.refs[ref] {
		return true
	}
	name := detail.Name
	if name == "" {
		name = row.Name
	}
	for _, re := range e.patterns {
		if name != "" && re.MatchString(name) {
			return true
		}
	}
	return false
}

// BuildEntries combines a detail sheet with its listing row into the base
// and normalized records. Detail-page data wins, listing data fills gaps.
func BuildEntries(detail extract.ClubDetail, row extract.ClubListRow, dept extract.Department) (Club, PublicClub) {
	postal := detail.PostalCode
	if postal == "" {
		postal = extract.ExtractPostalCode(detail.Adresse, detail.Siege)
	}
	communeSource := detail.Commune
	if communeSource == "" {
		communeSource = row.Commune
	}
	commune := extract.FormatCommuneWithPostal(communeSource, postal)
	if commune == "" {
		commune = extract.FormatCommune(row.Commune)
	}

	name := detail.Name
	if name == "" {
		name = row.Name
	}
	ref := detail.Ref
	if ref == "" {
		ref = row.Ref
	}
	id := extract.Slugify(name)
	if id == "" {
		id = extract.Slugify(dept.Code + "-" + ref)
	}

	base := Club{
		FfeRef:             ref,
		Nom:                name,
		Adresse:            detail.Adresse,
		Siege:              detail.Siege,
		SalleJeu:           detail.SalleJeu,
		Telephone:          detail.Telephone,
		Fax:                detail.Fax,
		Email:              detail.Email,
		Site:               detail.Site,
		President:          detail.President,
		PresidentEmail:     detail.PresidentEmail,
		Contact:            detail.Contact,
		ContactEmail:       detail.ContactEmail,
		Horaires:           detail.Horaires,
		AccesPMR:           detail.AccesPMR,
		Interclubs:         detail.Interclubs,
		InterclubsJeunes:   detail.InterclubsJeunes,
		InterclubsFeminins: detail.InterclubsFeminins,
		LabelFederal:       detail.LabelFederal,
		LicencesA:          detail.LicencesA,
		LicencesB:          detail.LicencesB,
	}

	public := PublicClub{
		ID:             id,
		Name:           name,
		Commune:        commune,
		PostalCode:     postal,
		DepartmentCode: dept.Code,
		DepartmentName: dept.Name,
		DepartmentSlug: dept.Slug,
		Ref:            ref,
	}
	return base, public
}

// newCollator builds the French, case-insensitive collator used for every
// user-visible ordering.
func newCollator() *collate.Collator {
	return collate.New(language.French, collate.IgnoreCase)
}

// SortClubs orders base records by (name, address).
func SortClubs(clubs []Club) {
	c := newCollator()
	sort.SliceStable(clubs, func(i, j int) bool {
		if cmp := c.CompareString(clubs[i].Nom, clubs[j].Nom); cmp != 0 {
			return cmp < 0
		}
		return c.CompareString(clubs[i].Adresse, clubs[j].Adresse) < 0
	})
}

// SortPublicClubs orders normalized records by (name, commune).
func SortPublicClubs(clubs []PublicClub) {
	c := newCollator()
	sort.SliceStable(clubs, func(i, j int) bool {
		if cmp := c.CompareString(clubs[i].Name, clubs[j].Name); cmp != 0 {
			return cmp < 0
		}
		return c.CompareString(clubs[i].Commune, clubs[j].Commune) < 0
	})
}
