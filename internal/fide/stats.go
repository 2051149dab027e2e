package fide

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// Counter is one aggregate bucket of the rank statistics. Federation and
// Continent identify the bucket and stay empty on the world counter.
type Counter struct {
	Federation           string `json:"federation,omitempty"`
	Continent            string `json:"continent,omitempty"`
	AllPlayers           int    `json:"allPlayers"`
	ActivePlayers        int    `json:"activePlayers"`
	InactivePlayers      int    `json:"inactivePlayers"`
	WomenPlayers         int    `json:"womenPlayers"`
	WomenInactivePlayers int    `json:"womenInactivePlayers"`
	StandardRatedPlayers int    `json:"standardRatedPlayers"`
	RapidRatedPlayers    int    `json:"rapidRatedPlayers"`
	BlitzRatedPlayers    int    `json:"blitzRatedPlayers"`
}

var (
	nonAlphaRe      = regexp.MustCompile(`[^A-Z]`)
	nonAlphaLowerRe = regexp.MustCompile(`[^a-z]`)
)

func normalizeSex(value string) string {
	return nonAlphaRe.ReplaceAllString(strings.ToUpper(strings.TrimSpace(value)), "")
}

func normalizeFlag(value string) string {
	return nonAlphaLowerRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "")
}

func isInactive(flag string) bool { return strings.Contains(normalizeFlag(flag), "i") }

func isWoman(flag string) bool { return strings.Contains(normalizeFlag(flag), "w") }

func (c *Counter) add(p *Player) {
	inactive := isInactive(p.Fl)
	woman := isWoman(p.Fl) || normalizeSex(p.Sx) == "F"

	c.AllPlayers++
	if inactive {
		c.InactivePlayers++
	} else {
		c.ActivePlayers++
	}
	if woman {
		c.WomenPlayers++
		if inactive {
			c.WomenInactivePlayers++
		}
	}
	if p.Sr > 0 {
		c.StandardRatedPlayers++
	}
	if p.Rr > 0 {
		c.RapidRatedPlayers++
	}
	if p.Br > 0 {
		c.BlitzRatedPlayers++
	}
}

// StatsAccumulator aggregates players at world, continent and federation
// level while the list streams by.
type StatsAccumulator struct {
	world              *Counter
	federations        map[string]*Counter
	continents         map[string]*Counter
	knownFederations   map[string]bool
	unknownFederations map[string]bool
	continentMap       map[string]string
}

func NewStatsAccumulator(continentMap map[string]string) *StatsAccumulator {
	return &StatsAccumulator{
		world:              &Counter{},
		federations:        map[string]*Counter{},
		continents:         map[string]*Counter{},
		knownFederations:   map[string]bool{},
		unknownFederations: map[string]bool{},
		continentMap:       continentMap,
	}
}

// Accumulate counts the player into every bucket and normalizes its
// federation and continent fields in place so the shard record carries them.
func (a *StatsAccumulator) Accumulate(p *Player) {
	fed := NormalizeFederation(p.F)
	continent := ContinentFor(fed, a.continentMap)
	p.F = fed
	p.Ct = continent

	a.world.add(p)

	fedKey := fed
	if fedKey == "" {
		fedKey = "UNK"
	}
	fc, ok := a.federations[fedKey]
	if !ok {
		fc = &Counter{Federation: fedKey, Continent: continent}
		a.federations[fedKey] = fc
	}
	if fc.Continent == continentUnknown && continent != continentUnknown {
		fc.Continent = continent
	}
	fc.add(p)

	cc, ok := a.continents[continent]
	if !ok {
		cc = &Counter{Continent: continent}
		a.continents[continent] = cc
	}
	cc.add(p)

	if fed != "" {
		if continent == continentUnknown {
			a.unknownFederations[fed] = true
		} else {
			a.knownFederations[fed] = true
		}
	}
}

// orderedCounters serializes a counter map as a JSON object ordered by
// descending allPlayers, then key.
type orderedCounters []struct {
	Key     string
	Counter *Counter
}

func sortCounters(m map[string]*Counter) orderedCounters {
	out := make(orderedCounters, 0, len(m))
	for key, counter := range m {
		out = append(out, struct {
			Key     string
			Counter *Counter
		}{key, counter})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Counter.AllPlayers != out[j].Counter.AllPlayers {
			return out[i].Counter.AllPlayers > out[j].Counter.AllPlayers
		}
		return strings.ToLower(out[i].Key) < strings.ToLower(out[j].Key)
	})
	return out
}

func (o orderedCounters) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(entry.Counter)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// StatsSource documents where the aggregates came from.
type StatsSource struct {
	PlayersListTxt string `json:"playersListTxt"`
	ContinentMap   string `json:"continentMap"`
}

// StatsCoverage reports how well federation codes resolved to continents.
type StatsCoverage struct {
	KnownFederations      int      `json:"knownFederations"`
	UnknownFederations    int      `json:"unknownFederations"`
	UnknownFederationList []string `json:"unknownFederationList"`
}

// StatsPayload is the rank-stats.json document.
type StatsPayload struct {
	Version     int             `json:"version"`
	Updated     string          `json:"updated"`
	Provider    string          `json:"provider"`
	Mode        string          `json:"mode"`
	Source      StatsSource     `json:"source"`
	World       *Counter        `json:"world"`
	Continents  orderedCounters `json:"continents"`
	Federations orderedCounters `json:"federations"`
	Coverage    StatsCoverage   `json:"coverage"`
}

const continentMapLegend = "CLDR codeMappings + territoryContainment (+ FIDE federation overrides)"

// Payload freezes the accumulator into the publishable document.
func (a *StatsAccumulator) Payload(updatedISO, playersTxtURL string) *StatsPayload {
	unknown := make([]string, 0, len(a.unknownFederations))
	for fed := range a.unknownFederations {
		unknown = append(unknown, fed)
	}
	sort.Strings(unknown)

	return &StatsPayload{
		Version:  1,
		Updated:  updatedISO,
		Provider: "FIDE",
		Mode:     "official-files",
		Source: StatsSource{
			PlayersListTxt: playersTxtURL,
			ContinentMap:   continentMapLegend,
		},
		World:       a.world,
		Continents:  sortCounters(a.continents),
		Federations: sortCounters(a.federations),
		Coverage: StatsCoverage{
			KnownFederations:      len(a.knownFederations),
			UnknownFederations:    len(a.unknownFederations),
			UnknownFederationList: unknown,
		},
	}
}
