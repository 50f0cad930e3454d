package cache

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/cespare/xxhash/v2"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrInvalidKey is returned when a QueryKey fails structural validation.
var ErrInvalidKey = errors.New("invalid query key")

// Filter is the query filter carried by a QueryKey. Implementations are
// provided by the filter package; the cache only needs the canonical form
// and two predicates.
type Filter interface {
	// String returns the canonical representation used for key equality.
	// It must not include the refresh flag.
	String() string
	// IsIDFilter reports whether the filter selects exactly one record by id.
	IsIDFilter() bool
	// IsRefreshCache reports whether the caller asked to bypass the cache.
	IsRefreshCache() bool
}

var defaultSerializer = NewDefaultKeySerializer()

// QueryKey describes what was asked of the remote system: collection,
// filter, field selection and the expected row type.
//
// QueryKey is immutable. Keys are built fresh on every call, so equality is
// structural: use Equal, or compare String values. The refresh flag on the
// filter is not part of a key's identity.
type QueryKey struct {
	collection string
	filter     Filter
	fields     Fields
	rowType    reflect.Type
	canonical  string
	hash       uint64
}

// NewQueryKey validates the components and builds a key. rowType is the
// struct type rows decode into; a pointer to it must implement Entity.
func NewQueryKey(collection string, filter Filter, fields Fields, rowType reflect.Type) (QueryKey, error) {
	collection = strings.TrimSpace(collection)

	err := validation.Errors{
		"collection": validation.Validate(collection, validation.Required),
		"filter":     validation.Validate(filter, validation.NotNil),
		"rowType":    validation.Validate(rowType, validation.NotNil, validation.By(entityRow)),
	}.Filter()
	if err != nil {
		return QueryKey{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	fields = append(Fields(nil), fields...)
	canonical := defaultSerializer.SerializeKey(collection, filter, fields, typeName(rowType))

	return QueryKey{
		collection: collection,
		filter:     filter,
		fields:     fields,
		rowType:    rowType,
		canonical:  canonical,
		hash:       xxhash.Sum64String(canonical),
	}, nil
}

// MustQueryKey is like NewQueryKey but panics on invalid input.
func MustQueryKey(collection string, filter Filter, fields Fields, rowType reflect.Type) QueryKey {
	key, err := NewQueryKey(collection, filter, fields, rowType)
	if err != nil {
		panic(err)
	}
	return key
}

func entityRow(value any) error {
	t, ok := value.(reflect.Type)
	if !ok || t == nil {
		return nil
	}
	if t.Kind() == reflect.Ptr || !reflect.PointerTo(t).Implements(entityType) {
		return errors.New("pointer to row type must implement cache.Entity")
	}
	return nil
}

func typeName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// Collection returns the target collection (endpoint) of the query.
func (k QueryKey) Collection() string { return k.collection }

// Filter returns the filter the key was built with.
func (k QueryKey) Filter() Filter { return k.filter }

// Fields returns a copy of the field selection.
func (k QueryKey) Fields() Fields { return append(Fields(nil), k.fields...) }

// RowType returns the struct type result rows decode into.
func (k QueryKey) RowType() reflect.Type { return k.rowType }

// String returns the canonical form of the key.
func (k QueryKey) String() string { return k.canonical }

// Hash returns a 64-bit hash of the canonical form.
func (k QueryKey) Hash() uint64 { return k.hash }

// IsZero reports whether k is the zero key.
func (k QueryKey) IsZero() bool { return k.canonical == "" }

// Equal reports whether k and other describe the same query.
func (k QueryKey) Equal(other QueryKey) bool {
	return k.hash == other.hash && k.canonical == other.canonical
}

// IsIdentity reports whether the key constrains exactly one record by id.
func (k QueryKey) IsIdentity() bool {
	return k.filter != nil && k.filter.IsIDFilter()
}

// IsRefreshRequested reports whether the caller asked to bypass the cache.
func (k QueryKey) IsRefreshRequested() bool {
	return k.filter != nil && k.filter.IsRefreshCache()
}

// Derive returns a key for the same collection, fields and row type with a
// different filter.
func (k QueryKey) Derive(filter Filter) (QueryKey, error) {
	return NewQueryKey(k.collection, filter, k.fields, k.rowType)
}
