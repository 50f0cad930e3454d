package cache

import (
	"slices"
	"strings"
)

// AllFieldsToken is the remote API token requesting every available field.
const AllFieldsToken = "_ALL"

// Fields is a field selection for a query.
type Fields []string

// AllFields selects every field of the target collection.
var AllFields = Fields{AllFieldsToken}

// String returns the canonical form: sorted, de-duplicated, comma joined.
// An empty selection is the server default and renders as "".
func (f Fields) String() string {
	if len(f) == 0 {
		return ""
	}
	canonical := make([]string, 0, len(f))
	for _, field := range f {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		canonical = append(canonical, field)
	}
	slices.Sort(canonical)
	canonical = slices.Compact(canonical)
	return strings.Join(canonical, ",")
}

// IsAll reports whether the selection asks for every field.
func (f Fields) IsAll() bool {
	return slices.Contains(f, AllFieldsToken)
}
