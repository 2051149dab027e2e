package fide

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()
	require.Equal(t, "https://ratings.fide.com/download/players_list.zip",
		normalizeURL("/download/players_list.zip"))
	require.Equal(t, "https://cdn.fide.com/x.zip", normalizeURL("//cdn.fide.com/x.zip"))
	require.Equal(t, "http://ratings.fide.com/a.zip", normalizeURL("http://ratings.fide.com/a.zip"))
	require.Equal(t, "https://x.test/a.zip?b=1&c=2", normalizeURL("https://x.test/a.zip?b=1&amp;c=2"))
	require.Empty(t, normalizeURL("  "))
}

func TestParseDownloadLinks(t *testing.T) {
	t.Parallel()
	html := `
<a href=/download/players_list.zip>TXT</a>
<a href="https://ratings.fide.com/download/players_list_xml.zip">XML</a>
<a href=/download/standard_rating_list.zip>STD</a>
<a href=/download/rapid_rating_list.zip>RPD</a>
<a href=/download/blitz_rating_list.zip>BLZ</a>
<a href=/other/readme.txt>skip</a>`
	links := ParseDownloadLinks(html)
	require.Equal(t, "https://ratings.fide.com/download/players_list.zip", links.PlayersTxt)
	require.Equal(t, "https://ratings.fide.com/download/players_list_xml.zip", links.PlayersXml)
	require.Equal(t, "https://ratings.fide.com/download/standard_rating_list.zip", links.StandardTxt)
	require.Equal(t, "https://ratings.fide.com/download/rapid_rating_list.zip", links.RapidTxt)
	require.Equal(t, "https://ratings.fide.com/download/blitz_rating_list.zip", links.BlitzTxt)
	require.Empty(t, links.StandardXml)
}

func TestParseArchivePeriods(t *testing.T) {
	t.Parallel()
	html := `
<select name="period">
<option value="2026-08-01">Aug 2026</option>
<option value="2026-07-01">Jul &amp; earlier</option>
<option value="latest">Latest</option>
</select>`
	periods := ParseArchivePeriods(html)
	require.Len(t, periods, 2)
	require.Equal(t, ArchivePeriod{Value: "2026-08-01", Label: "Aug 2026"}, periods[0])
	require.Equal(t, "Jul & earlier", periods[1].Label)
}

func TestParseArchiveLinks(t *testing.T) {
	t.Parallel()
	html := `
<a href=/download/standard_aug26frl.zip>s</a>
<a href=/download/standard_aug26frl_xml.zip>sx</a>
<a href=/download/rapid_aug26frl.zip>r</a>
<a href=/download/blitz_aug26frl_xml.zip>bx</a>`
	links := ParseArchiveLinks(html)
	require.Equal(t, "https://ratings.fide.com/download/standard_aug26frl.zip", links.Standard.Txt)
	require.Equal(t, "https://ratings.fide.com/download/standard_aug26frl_xml.zip", links.Standard.Xml)
	require.Equal(t, "https://ratings.fide.com/download/rapid_aug26frl.zip", links.Rapid.Txt)
	require.Empty(t, links.Rapid.Xml)
	require.Empty(t, links.Blitz.Txt)
	require.Equal(t, "https://ratings.fide.com/download/blitz_aug26frl_xml.zip", links.Blitz.Xml)
}

func TestPeriodFolder(t *testing.T) {
	t.Parallel()
	require.Equal(t, "2026-08-01", PeriodFolder("2026-08-01"))
	require.Equal(t, "2026-08-01", PeriodFolder("../2026-08-01"))
}

func TestSelectArchivePeriods(t *testing.T) {
	t.Parallel()
	entries := []ArchivePeriodEntry{{Period: "a"}, {Period: "b"}, {Period: "c"}}
	require.Len(t, selectArchivePeriods(entries, "all"), 3)
	require.Len(t, selectArchivePeriods(entries, "2"), 2)
	require.Len(t, selectArchivePeriods(entries, "9"), 3)
	require.Empty(t, selectArchivePeriods(entries, "0"))
	require.Empty(t, selectArchivePeriods(entries, "none"))
	require.Empty(t, selectArchivePeriods(nil, "all"))
}
