// Package fide ingests the official FIDE rating files: fixed-width players
// list parsing, per-id shard output, ranking statistics and archive period
// indexing.
package fide

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// HeaderError reports a players list whose header row does not carry the
// expected column tokens. The file layout shifted, so no row can be trusted.
type HeaderError struct {
	Header string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("unexpected players list header: %s", e.Header)
}

// Schema holds the column start offsets discovered in the header row. The
// players list is fixed width; each field runs from its own start offset to
// the start of the next column.
type Schema struct {
	NameStart  int
	FedStart   int
	SexStart   int
	TitStart   int
	WTitStart  int
	OTitStart  int
	FOAStart   int
	SRtngStart int
	SGmStart   int
	SKStart    int
	RRtngStart int
	RGmStart   int
	RkStart    int
	BRtngStart int
	BGmStart   int
	BKStart    int
	BdayStart  int
	FlagStart  int
	MinLength  int
}

var headerTokenRe = regexp.MustCompile(`\S+`)

// ParseHeader locates every expected column token in the header row. A
// single missing token is fatal.
func ParseHeader(line string) (*Schema, error) {
	positions := map[string]int{}
	for _, loc := range headerTokenRe.FindAllStringIndex(line, -1) {
		token := line[loc[0]:loc[1]]
		if _, seen := positions[token]; !seen {
			positions[token] = loc[0]
		}
	}

	find := func(token string) int {
		if at, ok := positions[token]; ok {
			return at
		}
		return -1
	}

	s := &Schema{
		NameStart:  find("Name"),
		FedStart:   find("Fed"),
		SexStart:   find("Sex"),
		TitStart:   find("Tit"),
		WTitStart:  find("WTit"),
		OTitStart:  find("OTit"),
		FOAStart:   find("FOA"),
		SRtngStart: find("SRtng"),
		SGmStart:   find("SGm"),
		SKStart:    find("SK"),
		RRtngStart: find("RRtng"),
		RGmStart:   find("RGm"),
		RkStart:    find("Rk"),
		BRtngStart: find("BRtng"),
		BGmStart:   find("BGm"),
		BKStart:    find("BK"),
		BdayStart:  find("B-day"),
		FlagStart:  find("Flag"),
	}
	for _, at := range []int{
		s.NameStart, s.FedStart, s.SexStart, s.TitStart, s.WTitStart, s.OTitStart,
		s.FOAStart, s.SRtngStart, s.SGmStart, s.SKStart, s.RRtngStart, s.RGmStart,
		s.RkStart, s.BRtngStart, s.BGmStart, s.BKStart, s.BdayStart, s.FlagStart,
	} {
		if at < 0 {
			return nil, &HeaderError{Header: line}
		}
	}
	s.MinLength = s.FlagStart + 6
	return s, nil
}

// Player is one players list row in its compact shard form. The short keys
// keep the hundred shard files small; the manifest carries the legend.
type Player struct {
	ID string `json:"id"`
	N  string `json:"n"`
	F  string `json:"f"`
	Sx string `json:"sx"`
	T  string `json:"t"`
	Wt string `json:"wt"`
	Ot string `json:"ot"`
	Ft string `json:"ft"`
	Sr int    `json:"sr"`
	Sg int    `json:"sg"`
	Sk int    `json:"sk"`
	Rr int    `json:"rr"`
	Rg int    `json:"rg"`
	Rk int    `json:"rk"`
	Br int    `json:"br"`
	Bg int    `json:"bg"`
	Bk int    `json:"bk"`
	By int    `json:"by"`
	Fl string `json:"fl"`
	Ct string `json:"ct,omitempty"`
}

func sliceField(line string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end < 0 || end > len(line) {
		end = len(line)
	}
	if end < start {
		end = start
	}
	return strings.TrimSpace(line[start:end])
}

func toInt(value string) int {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

var nonDigitRe = regexp.MustCompile(`[^\d]`)

// ParseRow decodes one fixed-width row. Rows too short for the schema are
// padded; rows without a leading numeric id (separators, blanks) return nil.
func ParseRow(line string, s *Schema) *Player {
	if len(line) < s.MinLength {
		line += strings.Repeat(" ", s.MinLength-len(line))
	}
	id := nonDigitRe.ReplaceAllString(sliceField(line, 0, s.NameStart), "")
	if id == "" {
		return nil
	}
	return &Player{
		ID: id,
		N:  sliceField(line, s.NameStart, s.FedStart),
		F:  sliceField(line, s.FedStart, s.SexStart),
		Sx: sliceField(line, s.SexStart, s.TitStart),
		T:  sliceField(line, s.TitStart, s.WTitStart),
		Wt: sliceField(line, s.WTitStart, s.OTitStart),
		Ot: sliceField(line, s.OTitStart, s.FOAStart),
		Ft: sliceField(line, s.FOAStart, s.SRtngStart),
		Sr: toInt(sliceField(line, s.SRtngStart, s.SGmStart)),
		Sg: toInt(sliceField(line, s.SGmStart, s.SKStart)),
		Sk: toInt(sliceField(line, s.SKStart, s.RRtngStart)),
		Rr: toInt(sliceField(line, s.RRtngStart, s.RGmStart)),
		Rg: toInt(sliceField(line, s.RGmStart, s.RkStart)),
		Rk: toInt(sliceField(line, s.RkStart, s.BRtngStart)),
		Br: toInt(sliceField(line, s.BRtngStart, s.BGmStart)),
		Bg: toInt(sliceField(line, s.BGmStart, s.BKStart)),
		Bk: toInt(sliceField(line, s.BKStart, s.BdayStart)),
		By: toInt(sliceField(line, s.BdayStart, s.FlagStart)),
		Fl: sliceField(line, s.FlagStart, -1),
	}
}
