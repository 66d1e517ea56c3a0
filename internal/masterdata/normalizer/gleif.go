package normalizer

import (
	"strings"

	"masterdata/internal/masterdata/fields"
	"masterdata/internal/masterdata/models"
)

const (
	gleifIdentifierConfidence = 1.0
	gleifAddressConfidence    = 0.95
)

// GLEIF maps level-1 LEI records as served by the GLEIF API
// (data.attributes.*).
type GLEIF struct {
	fields   *fields.Registry
	mappings []mapping
}

func NewGLEIF(reg *fields.Registry) *GLEIF {
	if reg == nil {
		reg = fields.Default()
	}
	entity := func(path ...string) func(map[string]any) string {
		return at(append([]string{"data", "attributes", "entity"}, path...)...)
	}
	address := func(key string) func(map[string]any) string {
		return entity("legalAddress", key)
	}
	lines := func(payload map[string]any) []string {
		return getStrings(payload, "data", "attributes", "entity", "legalAddress", "addressLines")
	}
	return &GLEIF{
		fields: reg,
		mappings: []mapping{
			{"registration_number", gleifIdentifierConfidence, entity("registeredAs")},
			{"lei", gleifIdentifierConfidence, at("data", "attributes", "lei")},
			{"legal_name", gleifIdentifierConfidence, entity("legalName", "name")},
			{"legal_form", gleifIdentifierConfidence, entity("legalForm", "id")},
			{"jurisdiction", gleifIdentifierConfidence, entity("jurisdiction")},
			{"incorporation_date", gleifIdentifierConfidence, func(p map[string]any) string {
				return datePart(getString(p, "data", "attributes", "entity", "creationDate"))
			}},
			{"entity_status", gleifIdentifierConfidence, entity("status")},
			{"address_line1", gleifAddressConfidence, func(p map[string]any) string {
				if l := lines(p); len(l) > 0 {
					return l[0]
				}
				return ""
			}},
			{"address_line2", gleifAddressConfidence, func(p map[string]any) string {
				if l := lines(p); len(l) > 1 {
					return strings.Join(l[1:], ", ")
				}
				return ""
			}},
			{"city", gleifAddressConfidence, address("city")},
			{"region", gleifAddressConfidence, address("region")},
			{"postal_code", gleifAddressConfidence, address("postalCode")},
			{"country", gleifIdentifierConfidence, address("country")},
		},
	}
}

func (g *GLEIF) Source() models.Source { return models.SourceGLEIF }

// Map returns candidates for every populated field. An empty evidenceID
// defaults to "gleif:<lei>".
func (g *GLEIF) Map(payload map[string]any, evidenceID string) []models.Candidate {
	if evidenceID == "" {
		if lei := strings.TrimSpace(getString(payload, "data", "attributes", "lei")); lei != "" {
			evidenceID = "gleif:" + lei
		}
	}
	return apply(g.fields, models.SourceGLEIF, g.mappings, payload, evidenceID)
}
