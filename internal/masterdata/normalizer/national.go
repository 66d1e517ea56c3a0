package normalizer

import (
	"strings"

	"masterdata/internal/masterdata/fields"
	"masterdata/internal/masterdata/models"
)

const (
	nationalIdentifierConfidence = 0.98
	nationalAddressConfidence    = 0.9
)

// NationalRegistry maps company-profile payloads of a national business
// registry.
type NationalRegistry struct {
	fields   *fields.Registry
	mappings []mapping
}

func NewNationalRegistry(reg *fields.Registry) *NationalRegistry {
	if reg == nil {
		reg = fields.Default()
	}
	office := func(key string) func(map[string]any) string {
		return at("registered_office_address", key)
	}
	return &NationalRegistry{
		fields: reg,
		mappings: []mapping{
			{"registration_number", nationalIdentifierConfidence, at("company_number")},
			{"legal_name", nationalIdentifierConfidence, at("company_name")},
			{"legal_form", nationalIdentifierConfidence, at("type")},
			{"jurisdiction", nationalIdentifierConfidence, at("jurisdiction")},
			{"incorporation_date", nationalIdentifierConfidence, func(p map[string]any) string {
				return datePart(getString(p, "date_of_creation"))
			}},
			{"entity_status", nationalIdentifierConfidence, func(p map[string]any) string {
				return strings.ToUpper(getString(p, "company_status"))
			}},
			{"address_line1", nationalAddressConfidence, office("address_line_1")},
			{"address_line2", nationalAddressConfidence, office("address_line_2")},
			{"city", nationalAddressConfidence, office("locality")},
			{"region", nationalAddressConfidence, office("region")},
			{"postal_code", nationalAddressConfidence, office("postal_code")},
			{"country", nationalAddressConfidence, office("country")},
		},
	}
}

func (n *NationalRegistry) Source() models.Source { return models.SourceNationalRegistry }

// Map returns candidates for every populated field. An empty evidenceID
// defaults to "national:<company_number>".
func (n *NationalRegistry) Map(payload map[string]any, evidenceID string) []models.Candidate {
	if evidenceID == "" {
		if number := strings.TrimSpace(getString(payload, "company_number")); number != "" {
			evidenceID = "national:" + number
		}
	}
	return apply(n.fields, models.SourceNationalRegistry, n.mappings, payload, evidenceID)
}
