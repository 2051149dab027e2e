package fide

import (
	"regexp"
	"strings"

	"github.com/echecs92/chess-sync/internal/extract"
)

// DownloadLinks are the current-period zip links found on the download page.
type DownloadLinks struct {
	PlayersTxt       string
	PlayersXml       string
	PlayersLegacyTxt string
	PlayersLegacyXml string
	StandardTxt      string
	StandardXml      string
	RapidTxt         string
	RapidXml         string
	BlitzTxt         string
	BlitzXml         string
}

// ArchivePeriod is one dated entry of the archive period selector.
type ArchivePeriod struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FormatLinks holds the txt and xml variants of one rating list.
type FormatLinks struct {
	Txt string `json:"txt,omitempty"`
	Xml string `json:"xml,omitempty"`
}

// ArchiveLinks groups the three rating list downloads of one period.
type ArchiveLinks struct {
	Standard FormatLinks `json:"standard"`
	Rapid    FormatLinks `json:"rapid"`
	Blitz    FormatLinks `json:"blitz"`
}

var zipLinkRe = regexp.MustCompile(`(?i)href=([^\s>]+?/download/[^"' >]+\.zip)`)

// normalizeURL resolves the loose href values the download page carries:
// entity-encoded, protocol-relative or site-relative.
func normalizeURL(value string) string {
	raw := strings.TrimSpace(extract.DecodeEntities(value))
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(strings.ToLower(raw), "http://"), strings.HasPrefix(strings.ToLower(raw), "https://"):
		return raw
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "/"):
		return "https://ratings.fide.com" + raw
	}
	return raw
}

func zipLinks(html string) []string {
	var links []string
	for _, m := range zipLinkRe.FindAllStringSubmatch(html, -1) {
		if url := normalizeURL(m[1]); url != "" {
			links = append(links, url)
		}
	}
	return links
}

func findByFile(links []string, needle string) string {
	needle = strings.ToLower(needle)
	for _, url := range links {
		if strings.Contains(strings.ToLower(url), needle) {
			return url
		}
	}
	return ""
}

// ParseDownloadLinks picks the current-period list links out of the
// download page markup.
func ParseDownloadLinks(html string) DownloadLinks {
	links := zipLinks(html)
	return DownloadLinks{
		PlayersTxt:       findByFile(links, "/download/players_list.zip"),
		PlayersXml:       findByFile(links, "/download/players_list_xml.zip"),
		PlayersLegacyTxt: findByFile(links, "/download/players_list_legacy.zip"),
		PlayersLegacyXml: findByFile(links, "/download/players_list_xml_legacy.zip"),
		StandardTxt:      findByFile(links, "/download/standard_rating_list.zip"),
		StandardXml:      findByFile(links, "/download/standard_rating_list_xml.zip"),
		RapidTxt:         findByFile(links, "/download/rapid_rating_list.zip"),
		RapidXml:         findByFile(links, "/download/rapid_rating_list_xml.zip"),
		BlitzTxt:         findByFile(links, "/download/blitz_rating_list.zip"),
		BlitzXml:         findByFile(links, "/download/blitz_rating_list_xml.zip"),
	}
}

var archiveOptionRe = regexp.MustCompile(`(?i)<option\s+value="(\d{4}-\d{2}-\d{2})">([^<]+)</option>`)

// ParseArchivePeriods extracts the dated period selector entries.
func ParseArchivePeriods(html string) []ArchivePeriod {
	var out []ArchivePeriod
	for _, m := range archiveOptionRe.FindAllStringSubmatch(html, -1) {
		value := strings.TrimSpace(m[1])
		label := extract.DecodeEntities(strings.TrimSpace(m[2]))
		if value == "" || label == "" {
			continue
		}
		out = append(out, ArchivePeriod{Value: value, Label: label})
	}
	return out
}

// ParseArchiveLinks sorts a period page's zip links into list kind and
// format buckets.
func ParseArchiveLinks(html string) ArchiveLinks {
	var result ArchiveLinks
	for _, url := range zipLinks(html) {
		lower := strings.ToLower(url)
		format := "txt"
		if strings.HasSuffix(lower, "_xml.zip") {
			format = "xml"
		}
		var target *FormatLinks
		switch {
		case strings.Contains(lower, "/download/standard_"):
			target = &result.Standard
		case strings.Contains(lower, "/download/rapid_"):
			target = &result.Rapid
		case strings.Contains(lower, "/download/blitz_"):
			target = &result.Blitz
		default:
			continue
		}
		if format == "xml" {
			target.Xml = url
		} else {
			target.Txt = url
		}
	}
	return result
}

var periodFolderRe = regexp.MustCompile(`[^0-9-]`)

// PeriodFolder sanitizes a period value into a directory name.
func PeriodFolder(period string) string {
	return periodFolderRe.ReplaceAllString(period, "")
}
