package services

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/reliefmap/backend/internal/domain/entities"
)

// Default fuzzy-match thresholds (0–100).
const (
	DefaultNameMatchThreshold    = 70
	DefaultAddressMatchThreshold = 75
)

// nameSuffixes vary between data sources and are stripped before name
// comparison. Ordered so longer suffixes strip before their substrings.
var nameSuffixes = []string{
	", llc", " llc", ", inc", " inc", ", pc", " pc", ", md", " md",
	", pa", " pa", ", pllc", " pllc", ", do", " do",
	" corp", " corporation", " associates", " group",
	" medical center", " medical", " center",
	" pain management", " pain clinic", " pain",
	" clinic", " clinics", " practice", " healthcare",
	" health", " wellness", " rehab", " rehabilitation",
}

// streetAbbreviations normalize street naming between sources.
var streetAbbreviations = [][2]string{
	{" northwest", " nw"},
	{" northeast", " ne"},
	{" southwest", " sw"},
	{" southeast", " se"},
	{" street", " st"},
	{" avenue", " ave"},
	{" boulevard", " blvd"},
	{" drive", " dr"},
	{" road", " rd"},
	{" lane", " ln"},
	{" court", " ct"},
	{" place", " pl"},
	{" suite", " ste"},
	{" north", " n"},
	{" south", " s"},
	{" east", " e"},
	{" west", " w"},
}

var (
	nonDigitPattern    = regexp.MustCompile(`\D`)
	unitPattern        = regexp.MustCompile(`\b(ste|suite|unit|apt|#)\s*\w+`)
	punctuationPattern = regexp.MustCompile(`[^\w\s]`)
)

// MatchStats counts matches per tier for one run.
type MatchStats struct {
	Phone     int `json:"phone"`
	Name      int `json:"name"`
	Address   int `json:"address"`
	Unmatched int `json:"unmatched"`
}

// RegistryMatchingService links stored clinics to national registry records
// using tiered matching: an exact phone hit is taken outright, otherwise the
// best fuzzy name match within the clinic's zip code, otherwise the best
// fuzzy street-address match within the zip.
type RegistryMatchingService struct {
	nameThreshold    int
	addressThreshold int
}

// NewRegistryMatchingService creates a matcher. Non-positive thresholds use
// the defaults.
func NewRegistryMatchingService(nameThreshold, addressThreshold int) *RegistryMatchingService {
	if nameThreshold <= 0 {
		nameThreshold = DefaultNameMatchThreshold
	}
	if addressThreshold <= 0 {
		addressThreshold = DefaultAddressMatchThreshold
	}
	return &RegistryMatchingService{
		nameThreshold:    nameThreshold,
		addressThreshold: addressThreshold,
	}
}

type indexedRegistry struct {
	records []entities.RegistryRecord
	names   []string
	streets []string
	byPhone map[string][]int
	byZip   map[string][]int
}

// Match runs the tiered matching pass and returns one match per clinic that
// cleared a threshold, plus per-tier stats.
func (s *RegistryMatchingService) Match(clinics []*entities.Clinic, registry []entities.RegistryRecord) ([]entities.ClinicMatch, MatchStats) {
	index := buildRegistryIndex(registry)
	matches := make([]entities.ClinicMatch, 0, len(clinics))
	stats := MatchStats{}

	for _, clinic := range clinics {
		match, tier := s.matchOne(clinic, index)
		if match == nil {
			stats.Unmatched++
			continue
		}

		switch tier {
		case entities.MatchTierPhone:
			stats.Phone++
		case entities.MatchTierName:
			stats.Name++
		case entities.MatchTierAddress:
			stats.Address++
		}
		matches = append(matches, *match)
	}

	return matches, stats
}

func (s *RegistryMatchingService) matchOne(clinic *entities.Clinic, index *indexedRegistry) (*entities.ClinicMatch, string) {
	zip := clinic.Address.PostalCode
	if len(zip) > 5 {
		zip = zip[:5]
	}
	name := normalizeClinicName(clinic.Name)
	street := normalizeStreet(clinic.Address.Street)

	// Tier 1: exact phone hit, highest confidence.
	for _, phone := range clinicPhones(clinic) {
		if rows, ok := index.byPhone[phone]; ok && len(rows) > 0 {
			return buildMatch(clinic, &index.records[rows[0]], entities.MatchTierPhone, 100), entities.MatchTierPhone
		}
	}

	candidates := index.byZip[zip]

	// Tier 2: fuzzy name within the zip.
	if zip != "" && name != "" {
		if row, score := bestCandidate(candidates, name, index.names, s.nameThreshold); row >= 0 {
			return buildMatch(clinic, &index.records[row], entities.MatchTierName, score), entities.MatchTierName
		}
	}

	// Tier 3: fuzzy street address within the zip.
	if zip != "" && street != "" {
		if row, score := bestCandidate(candidates, street, index.streets, s.addressThreshold); row >= 0 {
			return buildMatch(clinic, &index.records[row], entities.MatchTierAddress, score), entities.MatchTierAddress
		}
	}

	return nil, ""
}

func bestCandidate(candidates []int, target string, normalized []string, threshold int) (int, int) {
	bestRow := -1
	bestScore := 0
	for _, row := range candidates {
		value := normalized[row]
		if value == "" {
			continue
		}
		score := TokenSortRatio(target, value)
		if score >= threshold && score > bestScore {
			bestRow = row
			bestScore = score
		}
	}
	return bestRow, bestScore
}

func buildMatch(clinic *entities.Clinic, record *entities.RegistryRecord, tier string, score int) *entities.ClinicMatch {
	orgName := record.OrgName
	if orgName == "" {
		orgName = strings.TrimSpace(record.FirstName + " " + record.LastName)
	}
	return &entities.ClinicMatch{
		ClinicID:       clinic.ID,
		NPI:            record.NPI,
		MatchTier:      tier,
		MatchScore:     score,
		MatchedOrgName: orgName,
		EntityType:     record.EntityTypeCode,
		TaxonomyCode:   record.TaxonomyCode,
	}
}

func buildRegistryIndex(registry []entities.RegistryRecord) *indexedRegistry {
	index := &indexedRegistry{
		records: registry,
		names:   make([]string, len(registry)),
		streets: make([]string, len(registry)),
		byPhone: make(map[string][]int),
		byZip:   make(map[string][]int),
	}

	for i := range registry {
		record := &registry[i]

		if record.EntityTypeCode == "1" {
			index.names[i] = normalizeWhitespace(strings.ToLower(record.FirstName + " " + record.LastName))
		} else {
			index.names[i] = normalizeClinicName(record.OrgName)
		}
		index.streets[i] = normalizeStreet(record.Street)

		if phone := normalizePhone(record.Phone); phone != "" {
			index.byPhone[phone] = append(index.byPhone[phone], i)
		}
		zip := record.PostalCode
		if len(zip) > 5 {
			zip = zip[:5]
		}
		if len(zip) == 5 {
			index.byZip[zip] = append(index.byZip[zip], i)
		}
	}

	return index
}

func clinicPhones(clinic *entities.Clinic) []string {
	var phones []string
	seen := make(map[string]struct{})
	for _, raw := range append([]string{clinic.Phone}, clinic.Phones...) {
		phone := normalizePhone(raw)
		if phone == "" {
			continue
		}
		if _, dup := seen[phone]; dup {
			continue
		}
		seen[phone] = struct{}{}
		phones = append(phones, phone)
	}
	return phones
}

// normalizePhone strips a phone to its last 10 digits.
func normalizePhone(phone string) string {
	digits := nonDigitPattern.ReplaceAllString(phone, "")
	if len(digits) < 10 {
		return ""
	}
	return digits[len(digits)-10:]
}

// normalizeClinicName lowercases, strips suffixes that vary between sources,
// removes punctuation and collapses whitespace.
func normalizeClinicName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range nameSuffixes {
		if strings.HasSuffix(lowered, suffix) {
			lowered = lowered[:len(lowered)-len(suffix)]
		}
	}
	lowered = punctuationPattern.ReplaceAllString(lowered, "")
	return normalizeWhitespace(lowered)
}

// normalizeStreet lowercases, applies standard street abbreviations, drops
// unit/suite designators and punctuation, and collapses whitespace.
func normalizeStreet(street string) string {
	lowered := strings.ToLower(strings.TrimSpace(street))
	for _, pair := range streetAbbreviations {
		lowered = strings.ReplaceAll(lowered, pair[0], pair[1])
	}
	lowered = unitPattern.ReplaceAllString(lowered, "")
	lowered = punctuationPattern.ReplaceAllString(lowered, "")
	return normalizeWhitespace(lowered)
}

func normalizeWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// TokenSortRatio scores the similarity of two strings 0–100 after sorting
// their tokens, so word order differences between sources do not penalize
// the match.
func TokenSortRatio(a, b string) int {
	sortedA := sortTokens(a)
	sortedB := sortTokens(b)
	if sortedA == sortedB {
		return 100
	}
	if sortedA == "" || sortedB == "" {
		return 0
	}

	distance := levenshtein.ComputeDistance(sortedA, sortedB)
	longest := len([]rune(sortedA))
	if l := len([]rune(sortedB)); l > longest {
		longest = l
	}
	return 100 - (100*distance)/longest
}

func sortTokens(value string) string {
	tokens := strings.Fields(strings.ToLower(value))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
