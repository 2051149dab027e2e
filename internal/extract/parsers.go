package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Department is one entry of the committees index page.
type Department struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	File string `json:"file"`
}

// ClubListRow is one row of a department club listing.
type ClubListRow struct {
	Ref     string `json:"ref"`
	Name    string `json:"name"`
	Commune string `json:"commune"`
	Dept    string `json:"dept"`
}

// ClubDetail is the structured form of a club detail sheet.
type ClubDetail struct {
	Ref                string `json:"ref"`
	Name               string `json:"name"`
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
	LicencesA          *int   `json:"licences_a"`
	LicencesB          *int   `json:"licences_b"`
	Interclubs         string `json:"interclubs"`
	InterclubsJeunes   string `json:"interclubs_jeunes"`
	InterclubsFeminins string `json:"interclubs_feminins"`
	LabelFederal       string `json:"label_federal"`
	PostalCode         string `json:"postalCode"`
	Commune            string `json:"commune"`
}

// PagerInfo describes the postback pager found on a listing page.
type PagerInfo struct {
	EventTarget string
	MaxPage     int
}

var (
	// The committees index uses image-map areas with unquoted attributes;
	// that markup never survives an HTML parser intact.
	departmentAreaRe = regexp.MustCompile(`(?i)<area[^>]*href=FicheComite\.aspx\?Ref=([^ >"']+)[^>]*alt=([^>]+)>`)
	doPostBackRe     = regexp.MustCompile(`__doPostBack\('([^']+)',\s*'([^']+)'\)`)
	pagerTargetRe    = regexp.MustCompile(`(?i)Pager`)
	digitsRe         = regexp.MustCompile(`^\d+$`)
	clubRefRe        = regexp.MustCompile(`FicheClub\.aspx\?Ref=(\d{2,})`)
	hrefRe           = regexp.MustCompile(`(?i)href\s*=\s*"?([^"\s>]+)"?`)
	mailtoRe         = regexp.MustCompile(`(?i)mailto:([^"\s>]+)`)
	emailRe          = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.[A-Za-z]{2,}`)
	licenceARe       = regexp.MustCompile(`(?i)Licences\s*A\s*:\s*<b>(\d+)`)
	licenceBRe       = regexp.MustCompile(`(?i)Licences\s*B\s*:\s*<b>(\d+)`)
	semicolonBrRe    = regexp.MustCompile(`(?i)<br\s*/?\s*>`)
	httpSchemeRe     = regexp.MustCompile(`(?i)^https?:`)
	trailingRefRe    = regexp.MustCompile(`(\d{2,})$`)
)

// ParseDepartments extracts the department entries from the committees index
// page, deduplicated on (code, name) and sorted by code.
func ParseDepartments(html string) []Department {
	seen := map[string]bool{}
	var out []Department
	for _, m := range departmentAreaRe.FindAllStringSubmatch(html, -1) {
		code := strings.TrimSpace(m[1])
		name := CleanText(m[2])
		if code == "" || name == "" {
			continue
		}
		key := code + "|" + name
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Department{
			Code: code,
			Name: name,
			Slug: Slugify(name),
			File: code + ".json",
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return compareNumericAware(out[i].Code, out[j].Code) < 0
	})
	return out
}

// compareNumericAware orders codes numerically when both are numbers,
// lexically otherwise ("2" before "10", "2A" after "19").
func compareNumericAware(a, b string) int {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// ParseClubList extracts club rows from a department listing page.
func ParseClubList(html string) []ClubListRow {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var out []ClubListRow
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		link := tr.Find(`a[href*="FicheClub.aspx?Ref="]`).First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")
		m := clubRefRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		cells := tr.Find("td")
		if cells.Length() < 3 {
			return
		}
		row := ClubListRow{
			Ref:     m[1],
			Name:    CleanText(link.Text()),
			Commune: CleanText(cells.Eq(1).Text()),
			Dept:    CleanText(cells.Eq(0).Text()),
		}
		if row.Ref == "" || row.Name == "" {
			return
		}
		out = append(out, row)
	})
	return out
}

// spanHTML returns the inner HTML of the labelled span with the given
// WebForms control id, or "".
func spanHTML(doc *goquery.Document, id string) string {
	sel := doc.Find("span#" + id).First()
	if sel.Length() == 0 {
		return ""
	}
	html, err := sel.Html()
	if err != nil {
		return ""
	}
	return html
}

const controlPrefix = "ctl00_ContentPlaceHolderMain_Label"

// ParseClubDetails converts a detail sheet into a ClubDetail. Missing spans
// simply produce empty fields.
func ParseClubDetails(html, ref string) ClubDetail {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return EmptyClubDetail(ref)
	}
	span := func(suffix string) string { return spanHTML(doc, controlPrefix+suffix) }

	siege := TidyAddress(span("Adresse"))
	salle := TidyAddress(span("Salle"))

	siteRaw := span("URL")
	site := ""
	if href := extractLinkHref(siteRaw); href != "" && httpSchemeRe.MatchString(href) {
		site = href
	} else {
		site = strings.ReplaceAll(CleanText(siteRaw), " ", "")
	}

	presidentRaw := span("President")
	contactRaw := span("Correspondant")
	licencesRaw := span("Affilies")

	d := ClubDetail{
		Ref:                ref,
		Name:               CleanText(span("Nom")),
		Siege:              siege,
		SalleJeu:           salle,
		Telephone:          CleanText(span("Tel")),
		Fax:                CleanText(span("Fax")),
		Email:              ExtractEmail(span("EMail")),
		Site:               site,
		President:          CleanText(presidentRaw),
		PresidentEmail:     ExtractEmail(presidentRaw),
		Contact:            CleanText(contactRaw),
		ContactEmail:       ExtractEmail(contactRaw),
		Horaires:           CleanText(semicolonBrRe.ReplaceAllString(span("Ouverture"), "; ")),
		AccesPMR:           CleanText(span("Handicape")),
		Interclubs:         CleanText(span("DivisionAdulte")),
		InterclubsJeunes:   CleanText(span("DivisionJeune")),
		InterclubsFeminins: CleanText(span("DivisionFeminines")),
		LabelFederal:       CleanText(span("Label")),
	}
	d.LicencesA, d.LicencesB = parseLicenceCounts(licencesRaw)

	// Playing venue beats the registered office as primary address.
	primary := salle
	if primary == "" {
		primary = siege
	}
	d.Adresse = primary
	d.PostalCode = ExtractPostalCode(primary, siege)
	d.Commune = ExtractCityFromAddress(primary)
	if d.Commune == "" {
		d.Commune = ExtractCityFromAddress(siege)
	}
	return d
}

// EmptyClubDetail is the placeholder used when a detail fetch failed for
// good: every field empty, license counters null.
func EmptyClubDetail(ref string) ClubDetail {
	return ClubDetail{Ref: ref}
}

func parseLicenceCounts(html string) (*int, *int) {
	var a, b *int
	if m := licenceARe.FindStringSubmatch(html); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			a = &n
		}
	}
	if m := licenceBRe.FindStringSubmatch(html); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			b = &n
		}
	}
	return a, b
}

func extractLinkHref(value string) string {
	m := hrefRe.FindStringSubmatch(value)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractEmail pulls an email out of an HTML fragment, preferring a mailto
// link over free text.
func ExtractEmail(value string) string {
	if m := mailtoRe.FindStringSubmatch(value); m != nil {
		return m[1]
	}
	return emailRe.FindString(CleanText(value))
}

// ExtractHiddenFields gathers every hidden input on the page into a map, for
// replay in the next postback POST.
func ExtractHiddenFields(html string) map[string]string {
	fields := map[string]string{}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fields
	}
	doc.Find(`input[type="hidden"]`).Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := input.Attr("value")
		fields[name] = value
	})
	return fields
}

// ExtractPagerInfo scans for __doPostBack directives whose target matches
// the pager naming convention; the numeric arguments give the highest page.
func ExtractPagerInfo(html string) PagerInfo {
	info := PagerInfo{MaxPage: 1}
	for _, m := range doPostBackRe.FindAllStringSubmatch(html, -1) {
		target, arg := m[1], m[2]
		if !pagerTargetRe.MatchString(target) {
			continue
		}
		if info.EventTarget == "" {
			info.EventTarget = target
		}
		if digitsRe.MatchString(arg) {
			if page, err := strconv.Atoi(arg); err == nil && page > info.MaxPage {
				info.MaxPage = page
			}
		}
	}
	return info
}

// SanitizeClubRef keeps the trailing digit run of a ref-like value.
func SanitizeClubRef(value string) string {
	m := trailingRefRe.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return ""
	}
	return m[1]
}
