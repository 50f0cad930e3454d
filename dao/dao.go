package dao

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/goliatone/go-accelo-cache/cache"
	"github.com/goliatone/go-accelo-cache/filter"
	"github.com/goliatone/go-accelo-cache/querycache"
)

var (
	// ErrNotFound is returned by single-record lookups that matched nothing.
	ErrNotFound = errors.New("dao: record not found")
	// ErrUnexpectedRow is returned when the cache holds a row of another type.
	ErrUnexpectedRow = errors.New("dao: unexpected row type")
)

// Interface assertion to ensure the coordinator satisfies Querier
var _ Querier = (*querycache.Coordinator)(nil)

// Querier is the subset of querycache.Coordinator the data access objects
// depend on.
type Querier interface {
	Get(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error)
	FlushEntity(e cache.Entity)
	FlushEntities(entities []cache.Entity)
	FlushQuery(key cache.QueryKey)
}

// Dao reads one collection through the cache. T must be a pointer to the
// row struct, for example *entities.Contract.
type Dao[T cache.Entity] struct {
	querier    Querier
	collection string
	rowType    reflect.Type
}

// New creates a Dao for collection. An empty collection is derived from
// the row type name with CollectionName.
func New[T cache.Entity](q Querier, collection string) (*Dao[T], error) {
	if q == nil {
		return nil, errors.New("dao: nil querier")
	}

	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("dao: %s is not a pointer to a struct", t)
	}
	rowType := t.Elem()

	if collection == "" {
		collection = CollectionName(rowType.Name())
	}

	return &Dao[T]{querier: q, collection: collection, rowType: rowType}, nil
}

// Collection returns the endpoint the Dao reads from.
func (d *Dao[T]) Collection() string { return d.collection }

// Key builds the cache key for f and fields on the Dao's collection. The
// refresh flag is set when ctx was marked by WithRefresh.
func (d *Dao[T]) Key(ctx context.Context, f filter.Filter, fields cache.Fields) (cache.QueryKey, error) {
	return d.keyIn(ctx, d.collection, f, fields)
}

func (d *Dao[T]) keyIn(ctx context.Context, collection string, f filter.Filter, fields cache.Fields) (cache.QueryKey, error) {
	if RefreshRequested(ctx) {
		f = f.RefreshCache()
	}
	return cache.NewQueryKey(collection, f, fields, d.rowType)
}

// GetByID returns the record with id, or ErrNotFound.
func (d *Dao[T]) GetByID(ctx context.Context, id int) (T, error) {
	var zero T

	rows, err := d.Query(ctx, filter.ByID(id), cache.AllFields)
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("%w: %s id %d", ErrNotFound, d.collection, id)
	}
	return rows[0], nil
}

// GetAll returns every record matching f with all fields.
func (d *Dao[T]) GetAll(ctx context.Context, f filter.Filter) ([]T, error) {
	return d.Query(ctx, f, cache.AllFields)
}

// GetAllRefreshed is GetAll bypassing the cached result.
func (d *Dao[T]) GetAllRefreshed(ctx context.Context, f filter.Filter) ([]T, error) {
	return d.Query(ctx, f.RefreshCache(), cache.AllFields)
}

// Query returns the records matching f with the given field selection.
func (d *Dao[T]) Query(ctx context.Context, f filter.Filter, fields cache.Fields) ([]T, error) {
	return d.queryIn(ctx, d.collection, f, fields)
}

func (d *Dao[T]) queryIn(ctx context.Context, collection string, f filter.Filter, fields cache.Fields) ([]T, error) {
	key, err := d.keyIn(ctx, collection, f, fields)
	if err != nil {
		return nil, err
	}

	rows, err := d.querier.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return d.typed(rows)
}

func (d *Dao[T]) typed(rows []cache.Entity) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		typed, ok := row.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %T in %s", ErrUnexpectedRow, row, d.collection)
		}
		out = append(out, typed)
	}
	return out, nil
}

// Flush drops the cached by-id rows of e.
func (d *Dao[T]) Flush(e T) {
	d.querier.FlushEntity(e)
}

// FlushAll drops the cached by-id rows of every entity.
func (d *Dao[T]) FlushAll(entities []T) {
	rows := make([]cache.Entity, len(entities))
	for i, e := range entities {
		rows[i] = e
	}
	d.querier.FlushEntities(rows)
}

// FlushQuery drops the cached result of the query for f and fields.
func (d *Dao[T]) FlushQuery(f filter.Filter, fields cache.Fields) error {
	key, err := cache.NewQueryKey(d.collection, f, fields, d.rowType)
	if err != nil {
		return err
	}
	d.querier.FlushQuery(key)
	return nil
}
