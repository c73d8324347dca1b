package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/reliefmap/backend/internal/domain/entities"
)

// NPPES export column names. The filtered CSV keeps the original headers.
const (
	registryColNPI          = "NPI"
	registryColEntityType   = "Entity Type Code"
	registryColOrgName      = "Provider Organization Name (Legal Business Name)"
	registryColFirstName    = "Provider First Name"
	registryColLastName     = "Provider Last Name (Legal Name)"
	registryColPhone        = "Provider Business Practice Location Address Telephone Number"
	registryColStreet       = "Provider Business Practice Location Address First Line"
	registryColPostalCode   = "Provider Business Practice Location Address Postal Code"
	registryColTaxonomyCode = "Healthcare Provider Taxonomy Code_1"
)

// LoadRegistryCSV streams the filtered NPI registry export. Rows without an
// NPI are skipped; optional columns missing from the file yield empty fields
// rather than errors.
func LoadRegistryCSV(path string) ([]entities.RegistryRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read registry header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	if _, ok := columns[registryColNPI]; !ok {
		return nil, fmt.Errorf("registry file %s has no %q column", path, registryColNPI)
	}

	field := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	var records []entities.RegistryRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read registry row: %w", err)
		}

		npi := field(row, registryColNPI)
		if npi == "" {
			continue
		}

		records = append(records, entities.RegistryRecord{
			NPI:            npi,
			EntityTypeCode: field(row, registryColEntityType),
			OrgName:        field(row, registryColOrgName),
			FirstName:      field(row, registryColFirstName),
			LastName:       field(row, registryColLastName),
			Phone:          field(row, registryColPhone),
			Street:         field(row, registryColStreet),
			PostalCode:     field(row, registryColPostalCode),
			TaxonomyCode:   field(row, registryColTaxonomyCode),
		})
	}

	return records, nil
}
