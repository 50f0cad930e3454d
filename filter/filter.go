package filter

import "github.com/goliatone/go-accelo-cache/cache"

// Interface assertion to ensure Filter can be used in a cache.QueryKey
var _ cache.Filter = Filter{}

// IDField is the unique identifier field of every collection.
const IDField = "id"

// Filter is an ordered list of expressions sent as `_filters`.
type Filter struct {
	exprs   []Expression
	refresh bool
}

// New returns an empty filter, matching every record.
func New() Filter {
	return Filter{}
}

// Where returns a filter with exprs.
func Where(exprs ...Expression) Filter {
	return New().And(exprs...)
}

// ByID returns the identity filter for id.
func ByID(id int) Filter {
	return Where(Eq(IDField, id))
}

// And returns a copy of f with exprs appended.
func (f Filter) And(exprs ...Expression) Filter {
	out := Filter{refresh: f.refresh}
	out.exprs = make([]Expression, 0, len(f.exprs)+len(exprs))
	out.exprs = append(out.exprs, f.exprs...)
	for _, e := range exprs {
		if e != nil {
			out.exprs = append(out.exprs, e)
		}
	}
	return out
}

// RefreshCache returns a copy of f that asks the cache to fetch again.
func (f Filter) RefreshCache() Filter {
	out := f.And()
	out.refresh = true
	return out
}

// Expressions returns a copy of the expressions in order.
func (f Filter) Expressions() []Expression {
	return append([]Expression(nil), f.exprs...)
}

// String returns the `_filters` value. The refresh flag is not included.
func (f Filter) String() string {
	return join(f.exprs)
}

// IsEmpty reports whether the filter has no expressions.
func (f Filter) IsEmpty() bool {
	return len(f.exprs) == 0
}

// IsIDFilter reports whether f is exactly one equality on the id field
// with a single value.
func (f Filter) IsIDFilter() bool {
	if len(f.exprs) != 1 {
		return false
	}
	e, ok := f.exprs[0].(eq)
	return ok && e.field == IDField && len(e.values) == 1
}

// IsRefreshCache reports whether RefreshCache was called.
func (f Filter) IsRefreshCache() bool {
	return f.refresh
}
