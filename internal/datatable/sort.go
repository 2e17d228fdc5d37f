package datatable

import "strings"

// SortVocabulary is the pair of direction tokens a dataset accepts. The
// backend defines it; the table never assumes {asc, desc}.
type SortVocabulary struct {
	Asc  string
	Desc string
}

// DefaultSortVocabulary matches the inventory API.
var DefaultSortVocabulary = SortVocabulary{Asc: "asc", Desc: "dsc"}

// literalDesc is the token UI widgets emit for a descending sort.
const literalDesc = "desc"

// NormalizeDirection maps the literal "desc" to the dataset's descending
// token. Any other token passes through unchanged.
func (v SortVocabulary) NormalizeDirection(token string) string {
	if token == literalDesc && v.Desc != "" {
		return v.Desc
	}
	return token
}

// Toggle returns the opposite direction of token, treating anything that is
// not the ascending token as descending.
func (v SortVocabulary) Toggle(token string) string {
	if token == v.Asc {
		return v.Desc
	}
	return v.Asc
}

// IsDesc reports whether token is the dataset's descending token.
func (v SortVocabulary) IsDesc(token string) bool {
	return token == v.Desc || token == literalDesc
}

// ParseSortPayload splits a "field|direction" payload and normalizes the
// direction. A payload without a separator is a field with no direction.
func (v SortVocabulary) ParseSortPayload(payload string) (field, direction string) {
	field, direction, _ = strings.Cut(payload, "|")
	return strings.TrimSpace(field), v.NormalizeDirection(strings.TrimSpace(direction))
}

// SortPayload renders the "field|direction" form used on the wire.
func SortPayload(field, direction string) string {
	if field == "" {
		return ""
	}
	return field + "|" + direction
}
