package models

import "fmt"

// ProfileKind is the closed set of storage shapes a field can route to.
// Singleton kinds hold at most one row per entity; repeating kinds hold many.
type ProfileKind string

const (
	KindIdentity          ProfileKind = "identity"
	KindRegisteredAddress ProfileKind = "registered_address"
	KindTraders           ProfileKind = "traders"
	KindStakeholders      ProfileKind = "stakeholders"
)

// kindColumns enumerates the writable columns of each kind. A field catalog
// entry naming any other column is rejected at load time.
var kindColumns = map[ProfileKind][]string{
	KindIdentity: {
		"registration_number", "lei", "legal_name", "legal_form",
		"jurisdiction", "incorporation_date", "entity_status", "certificate_document_id",
	},
	KindRegisteredAddress: {
		"address_line1", "address_line2", "city", "region", "postal_code", "country",
	},
	KindTraders: {
		"trader_name", "trader_email", "authority_document_id", "authority_attestation",
	},
	KindStakeholders: {
		"party_type", "first_name", "last_name", "company_name", "ownership_percent", "nationality",
	},
}

// Kinds lists every profile kind in a stable order.
func Kinds() []ProfileKind {
	return []ProfileKind{KindIdentity, KindRegisteredAddress, KindTraders, KindStakeholders}
}

// ParseProfileKind validates a kind name.
func ParseProfileKind(s string) (ProfileKind, error) {
	k := ProfileKind(s)
	if _, ok := kindColumns[k]; !ok {
		return "", fmt.Errorf("unknown profile kind %q", s)
	}
	return k, nil
}

// Repeating reports whether the kind allows many rows per entity.
func (k ProfileKind) Repeating() bool {
	switch k {
	case KindTraders, KindStakeholders:
		return true
	default:
		return false
	}
}

// Columns returns the kind's writable columns.
func (k ProfileKind) Columns() []string {
	return append([]string(nil), kindColumns[k]...)
}

// HasColumn reports whether column belongs to the kind.
func (k ProfileKind) HasColumn(column string) bool {
	for _, c := range kindColumns[k] {
		if c == column {
			return true
		}
	}
	return false
}

func (k ProfileKind) String() string { return string(k) }
