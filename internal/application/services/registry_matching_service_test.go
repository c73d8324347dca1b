package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefmap/backend/internal/domain/entities"
)

func TestTokenSortRatio(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{"identical", "springfield pain", "springfield pain", 100},
		{"word order ignored", "pain springfield", "springfield pain", 100},
		{"empty side", "", "springfield", 0},
		{"both empty", "", "", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenSortRatio(tt.a, tt.b))
		})
	}

	// Disjoint strings stay far below the matching thresholds.
	assert.Less(t, TokenSortRatio("alpha beta", "gamma delta"), DefaultNameMatchThreshold)

	// Near matches land between the thresholds and 100.
	score := TokenSortRatio("springfield pain center", "springfield pain centre")
	assert.Greater(t, score, DefaultNameMatchThreshold)
	assert.Less(t, score, 100)
}

func TestNormalizeClinicName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Springfield Pain Clinic", "springfield"},
		{"Springfield Pain Clinic, LLC", "springfield"},
		{"ADVANCED WELLNESS", "advanced"},
		{"Dr. Smith & Associates", "dr smith"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeClinicName(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeStreet(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123 Main Street", "123 main st"},
		{"456 Oak Avenue, Suite 200", "456 oak ave"},
		{"789 Elm Dr Unit B", "789 elm dr"},
		{"100 Northwest Boulevard", "100 nw blvd"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeStreet(tt.in), "input %q", tt.in)
	}
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "2175550100", normalizePhone("(217) 555-0100"))
	assert.Equal(t, "2175550100", normalizePhone("+1 217 555 0100"))
	assert.Equal(t, "", normalizePhone("555-0100"))
	assert.Equal(t, "", normalizePhone(""))
}

func matchTestRegistry() []entities.RegistryRecord {
	return []entities.RegistryRecord{
		{
			NPI:            "1000000001",
			EntityTypeCode: "2",
			OrgName:        "Springfield Pain Management LLC",
			Phone:          "2175550100",
			Street:         "123 Main Street",
			PostalCode:     "627041234",
			TaxonomyCode:   "208VP0014X",
		},
		{
			NPI:            "1000000002",
			EntityTypeCode: "1",
			FirstName:      "Jane",
			LastName:       "Doe",
			Phone:          "2175550200",
			Street:         "456 Oak Avenue",
			PostalCode:     "62704",
		},
		{
			NPI:            "1000000003",
			EntityTypeCode: "2",
			OrgName:        "Chicago Spine Center",
			Street:         "900 Lake Shore Drive",
			PostalCode:     "60611",
		},
	}
}

func TestMatchPhoneTierWins(t *testing.T) {
	clinic := &entities.Clinic{
		ID:    "c1",
		Name:  "Totally Different Name",
		Phone: "(217) 555-0100",
		Address: entities.Address{
			Street:     "999 Nowhere Rd",
			PostalCode: "99999",
		},
	}

	matcher := NewRegistryMatchingService(0, 0)
	matches, stats := matcher.Match([]*entities.Clinic{clinic}, matchTestRegistry())

	require.Len(t, matches, 1)
	assert.Equal(t, "1000000001", matches[0].NPI)
	assert.Equal(t, entities.MatchTierPhone, matches[0].MatchTier)
	assert.Equal(t, 100, matches[0].MatchScore)
	assert.Equal(t, "Springfield Pain Management LLC", matches[0].MatchedOrgName)
	assert.Equal(t, 1, stats.Phone)
}

func TestMatchNameTierWithinZip(t *testing.T) {
	clinic := &entities.Clinic{
		ID:   "c1",
		Name: "Springfield Pain Management",
		Address: entities.Address{
			PostalCode: "62704-1234",
		},
	}

	matcher := NewRegistryMatchingService(0, 0)
	matches, stats := matcher.Match([]*entities.Clinic{clinic}, matchTestRegistry())

	require.Len(t, matches, 1)
	assert.Equal(t, "1000000001", matches[0].NPI)
	assert.Equal(t, entities.MatchTierName, matches[0].MatchTier)
	assert.GreaterOrEqual(t, matches[0].MatchScore, DefaultNameMatchThreshold)
	assert.Equal(t, 1, stats.Name)
}

func TestMatchAddressTierFallback(t *testing.T) {
	clinic := &entities.Clinic{
		ID:   "c1",
		Name: "Unrelated Clinic Name Entirely",
		Address: entities.Address{
			Street:     "456 Oak Ave Suite 3",
			PostalCode: "62704",
		},
	}

	matcher := NewRegistryMatchingService(0, 0)
	matches, stats := matcher.Match([]*entities.Clinic{clinic}, matchTestRegistry())

	require.Len(t, matches, 1)
	assert.Equal(t, "1000000002", matches[0].NPI)
	assert.Equal(t, entities.MatchTierAddress, matches[0].MatchTier)
	// Individual provider: matched name resolves to first + last name.
	assert.Equal(t, "Jane Doe", matches[0].MatchedOrgName)
	assert.Equal(t, 1, stats.Address)
}

func TestMatchUnmatchedOutsideZip(t *testing.T) {
	clinic := &entities.Clinic{
		ID:   "c1",
		Name: "Springfield Pain Management",
		Address: entities.Address{
			PostalCode: "10001",
		},
	}

	matcher := NewRegistryMatchingService(0, 0)
	matches, stats := matcher.Match([]*entities.Clinic{clinic}, matchTestRegistry())

	assert.Empty(t, matches)
	assert.Equal(t, 1, stats.Unmatched)
}

func TestMatchThresholdsAreHonored(t *testing.T) {
	// A street that scores high but below 100 against "456 Oak Avenue".
	clinic := &entities.Clinic{
		ID: "c1",
		Address: entities.Address{
			Street:     "456 Oak Av",
			PostalCode: "62704",
		},
	}

	relaxed := NewRegistryMatchingService(0, 0)
	matches, _ := relaxed.Match([]*entities.Clinic{clinic}, matchTestRegistry())
	require.Len(t, matches, 1)
	assert.Equal(t, entities.MatchTierAddress, matches[0].MatchTier)
	assert.Less(t, matches[0].MatchScore, 99)

	strict := NewRegistryMatchingService(99, 99)
	matches, stats := strict.Match([]*entities.Clinic{clinic}, matchTestRegistry())
	assert.Empty(t, matches)
	assert.Equal(t, 1, stats.Unmatched)
}

func TestLoadRegistryCSV(t *testing.T) {
	csv := `NPI,Entity Type Code,Provider Organization Name (Legal Business Name),Provider First Name,Provider Last Name (Legal Name),Provider Business Practice Location Address Telephone Number,Provider Business Practice Location Address First Line,Provider Business Practice Location Address Postal Code,Healthcare Provider Taxonomy Code_1
1000000001,2,Springfield Pain Management LLC,,,2175550100,123 Main Street,627041234,208VP0014X
1000000002,1,,Jane,Doe,2175550200,456 Oak Avenue,62704,
,2,No NPI Clinic,,,,,,
`
	path := filepath.Join(t.TempDir(), "registry.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	records, err := LoadRegistryCSV(path)
	require.NoError(t, err)

	require.Len(t, records, 2, "rows without an NPI are skipped")
	assert.Equal(t, "1000000001", records[0].NPI)
	assert.Equal(t, "Springfield Pain Management LLC", records[0].OrgName)
	assert.Equal(t, "627041234", records[0].PostalCode)
	assert.Equal(t, "1", records[1].EntityTypeCode)
	assert.Equal(t, "Jane", records[1].FirstName)
}

func TestLoadRegistryCSVMissingFile(t *testing.T) {
	_, err := LoadRegistryCSV(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}
