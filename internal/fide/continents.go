package fide

import (
	"regexp"
	"strings"
)

// Continent names follow the CLDR territory containment buckets.
const continentUnknown = "Unknown"

// isoAlpha3Continents maps ISO 3166-1 alpha-3 codes to their continent.
// FIDE federation codes mostly coincide with ISO; the exceptions live in
// federationContinentOverrides.
var isoAlpha3Continents = buildContinentTable(map[string][]string{
	"Africa": {
		"AGO", "BDI", "BEN", "BFA", "BWA", "CAF", "CIV", "CMR", "COD", "COG",
		"COM", "CPV", "DJI", "DZA", "EGY", "ERI", "ESH", "ETH", "GAB", "GHA",
		"GIN", "GMB", "GNB", "GNQ", "KEN", "LBR", "LBY", "LSO", "MAR", "MDG",
		"MLI", "MOZ", "MRT", "MUS", "MWI", "MYT", "NAM", "NER", "NGA", "REU",
		"RWA", "SDN", "SEN", "SHN", "SLE", "SOM", "SSD", "STP", "SWZ", "SYC",
		"TCD", "TGO", "TUN", "TZA", "UGA", "ZAF", "ZMB", "ZWE",
	},
	"Americas": {
		"ABW", "AIA", "ARG", "ATG", "BES", "BHS", "BLM", "BLZ", "BMU", "BOL",
		"BRA", "BRB", "CAN", "CHL", "COL", "CRI", "CUB", "CUW", "CYM", "DMA",
		"DOM", "ECU", "FLK", "GLP", "GRD", "GRL", "GTM", "GUF", "GUY", "HND",
		"HTI", "JAM", "KNA", "LCA", "MAF", "MEX", "MSR", "MTQ", "NIC", "PAN",
		"PER", "PRI", "PRY", "SLV", "SPM", "SUR", "SXM", "TCA", "TTO", "URY",
		"USA", "VCT", "VEN", "VGB", "VIR",
	},
	"Asia": {
		"AFG", "ARE", "ARM", "AZE", "BGD", "BHR", "BRN", "BTN", "CHN", "GEO",
		"HKG", "IDN", "IND", "IRN", "IRQ", "ISR", "JOR", "JPN", "KAZ", "KGZ",
		"KHM", "KOR", "KWT", "LAO", "LBN", "LKA", "MAC", "MDV", "MMR", "MNG",
		"MYS", "NPL", "OMN", "PAK", "PHL", "PRK", "PSE", "QAT", "SAU", "SGP",
		"SYR", "THA", "TJK", "TKM", "TLS", "TUR", "TWN", "UZB", "VNM", "YEM",
	},
	"Europe": {
		"ALA", "ALB", "AND", "AUT", "BEL", "BGR", "BIH", "BLR", "CHE", "CYP",
		"CZE", "DEU", "DNK", "ESP", "EST", "FIN", "FRA", "FRO", "GBR", "GGY",
		"GIB", "GRC", "HRV", "HUN", "IMN", "IRL", "ISL", "ITA", "JEY", "LIE",
		"LTU", "LUX", "LVA", "MCO", "MDA", "MKD", "MLT", "MNE", "NLD", "NOR",
		"POL", "PRT", "ROU", "RUS", "SMR", "SRB", "SVK", "SVN", "SWE", "UKR",
		"VAT",
	},
	"Oceania": {
		"ASM", "AUS", "COK", "FJI", "FSM", "GUM", "KIR", "MHL", "MNP", "NCL",
		"NFK", "NIU", "NRU", "NZL", "PLW", "PNG", "PYF", "SLB", "TKL", "TON",
		"TUV", "VUT", "WLF", "WSM",
	},
})

// federationContinentOverrides patches FIDE federation codes that are not
// ISO alpha-3 or that FIDE files against a different continent.
var federationContinentOverrides = map[string]string{
	"AHO": "Americas",
	"ALG": "Africa",
	"ANG": "Africa",
	"ANT": "Americas",
	"ARU": "Americas",
	"BAH": "Americas",
	"BAN": "Asia",
	"BAR": "Americas",
	"BER": "Americas",
	"BHU": "Asia",
	"BIZ": "Americas",
	"BOT": "Africa",
	"BRU": "Asia",
	"BUL": "Europe",
	"BUR": "Africa",
	"CAM": "Asia",
	"CAY": "Americas",
	"CGO": "Africa",
	"CHA": "Africa",
	"CHI": "Americas",
	"CRC": "Americas",
	"CRO": "Europe",
	"DEN": "Europe",
	"ENG": "Europe",
	"ESA": "Americas",
	"FAI": "Europe",
	"FIJ": "Oceania",
	"FID": "Europe",
	"GAM": "Africa",
	"GCI": "Europe",
	"GEQ": "Africa",
	"GER": "Europe",
	"GRE": "Europe",
	"GRN": "Americas",
	"GUA": "Americas",
	"GUI": "Africa",
	"HAI": "Americas",
	"HON": "Americas",
	"INA": "Asia",
	"IOM": "Europe",
	"IRI": "Asia",
	"ISV": "Americas",
	"IVB": "Americas",
	"JCI": "Europe",
	"KOS": "Europe",
	"KSA": "Asia",
	"KUW": "Asia",
	"LAT": "Europe",
	"LBA": "Africa",
	"LES": "Africa",
	"MAD": "Africa",
	"MAS": "Asia",
	"MAW": "Africa",
	"MGL": "Asia",
	"MNC": "Europe",
	"MRI": "Africa",
	"MTN": "Africa",
	"MYA": "Asia",
	"NCA": "Americas",
	"NED": "Europe",
	"NEP": "Asia",
	"NIG": "Africa",
	"NIR": "Europe",
	"NON": "Unknown",
	"OMA": "Asia",
	"PAR": "Americas",
	"PHI": "Asia",
	"PLE": "Asia",
	"POR": "Europe",
	"PUR": "Americas",
	"RSA": "Africa",
	"SCO": "Europe",
	"SEY": "Africa",
	"SKN": "Americas",
	"SLO": "Europe",
	"SOL": "Oceania",
	"SRI": "Asia",
	"SUD": "Africa",
	"SUI": "Europe",
	"TAN": "Africa",
	"TGA": "Oceania",
	"TOG": "Africa",
	"TPE": "Asia",
	"UAE": "Asia",
	"UNK": "Unknown",
	"URU": "Americas",
	"VAN": "Oceania",
	"VIE": "Asia",
	"VIN": "Americas",
	"WLS": "Europe",
	"ZAM": "Africa",
	"ZIM": "Africa",
}

func buildContinentTable(byContinent map[string][]string) map[string]string {
	out := map[string]string{}
	for continent, codes := range byContinent {
		for _, code := range codes {
			out[code] = continent
		}
	}
	return out
}

// NewContinentMap combines the ISO base table with the federation
// overrides.
func NewContinentMap() map[string]string {
	out := make(map[string]string, len(isoAlpha3Continents)+len(federationContinentOverrides))
	for code, continent := range isoAlpha3Continents {
		out[code] = continent
	}
	for code, continent := range federationContinentOverrides {
		out[code] = continent
	}
	return out
}

var nonAlnumRe = regexp.MustCompile(`[^A-Z0-9]`)

// NormalizeFederation uppercases a federation code and strips everything
// outside A-Z0-9.
func NormalizeFederation(value string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToUpper(strings.TrimSpace(value)), "")
}

// ContinentFor resolves a federation code against the map.
func ContinentFor(fed string, continentMap map[string]string) string {
	code := NormalizeFederation(fed)
	if code == "" {
		return continentUnknown
	}
	if continent, ok := continentMap[code]; ok {
		return continent
	}
	return continentUnknown
}
