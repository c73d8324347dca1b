package utils

import "strings"

// stateAbbrs maps full US state names (lowercased) to their two-letter codes.
// Includes DC and the territories that show up in scraped clinic data.
var stateAbbrs = map[string]string{
	"alabama":              "AL",
	"alaska":               "AK",
	"arizona":              "AZ",
	"arkansas":             "AR",
	"california":           "CA",
	"colorado":             "CO",
	"connecticut":          "CT",
	"delaware":             "DE",
	"district of columbia": "DC",
	"florida":              "FL",
	"georgia":              "GA",
	"hawaii":               "HI",
	"idaho":                "ID",
	"illinois":             "IL",
	"indiana":              "IN",
	"iowa":                 "IA",
	"kansas":               "KS",
	"kentucky":             "KY",
	"louisiana":            "LA",
	"maine":                "ME",
	"maryland":             "MD",
	"massachusetts":        "MA",
	"michigan":             "MI",
	"minnesota":            "MN",
	"mississippi":          "MS",
	"missouri":             "MO",
	"montana":              "MT",
	"nebraska":             "NE",
	"nevada":               "NV",
	"new hampshire":        "NH",
	"new jersey":           "NJ",
	"new mexico":           "NM",
	"new york":             "NY",
	"north carolina":       "NC",
	"north dakota":         "ND",
	"ohio":                 "OH",
	"oklahoma":             "OK",
	"oregon":               "OR",
	"pennsylvania":         "PA",
	"puerto rico":          "PR",
	"rhode island":         "RI",
	"south carolina":       "SC",
	"south dakota":         "SD",
	"tennessee":            "TN",
	"texas":                "TX",
	"utah":                 "UT",
	"vermont":              "VT",
	"virginia":             "VA",
	"washington":           "WA",
	"west virginia":        "WV",
	"wisconsin":            "WI",
	"wyoming":              "WY",
}

var stateNames = func() map[string]string {
	names := make(map[string]string, len(stateAbbrs))
	for name, abbr := range stateAbbrs {
		names[abbr] = TitleCase(name)
	}
	return names
}()

// ResolveState resolves a state value that may be a full name or a two-letter
// code. It returns the full name, the abbreviation, and whether the value was
// recognized.
func ResolveState(value string) (name, abbr string, ok bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", "", false
	}

	if len(trimmed) == 2 {
		upper := strings.ToUpper(trimmed)
		if full, found := stateNames[upper]; found {
			return full, upper, true
		}
		return "", "", false
	}

	if code, found := stateAbbrs[strings.ToLower(trimmed)]; found {
		return stateNames[code], code, true
	}
	return "", "", false
}

// TitleCase uppercases the first letter of each space-separated word.
func TitleCase(value string) string {
	words := strings.Fields(value)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
