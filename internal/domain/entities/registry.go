package entities

// RegistryRecord is one provider row from the national NPI registry export,
// reduced to the fields the matcher needs.
type RegistryRecord struct {
	NPI            string `json:"npi"`
	OrgName        string `json:"org_name,omitempty"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	EntityTypeCode string `json:"entity_type_code"`
	Phone          string `json:"phone,omitempty"`
	Street         string `json:"street,omitempty"`
	PostalCode     string `json:"postal_code,omitempty"`
	TaxonomyCode   string `json:"taxonomy_code,omitempty"`
}

// Match tiers, strongest first.
const (
	MatchTierPhone   = "phone"
	MatchTierName    = "name"
	MatchTierAddress = "address"
)

// ClinicMatch links a stored clinic to a registry record with the tier and
// score that produced the match.
type ClinicMatch struct {
	ClinicID       string `json:"clinic_id"`
	NPI            string `json:"npi"`
	MatchTier      string `json:"match_tier"`
	MatchScore     int    `json:"match_score"`
	MatchedOrgName string `json:"matched_org_name"`
	EntityType     string `json:"entity_type"`
	TaxonomyCode   string `json:"taxonomy_code,omitempty"`
}
