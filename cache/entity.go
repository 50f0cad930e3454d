package cache

import "reflect"

// Entity is a record returned by the remote system. Every entity carries a
// unique numeric identifier within its collection.
type Entity interface {
	EntityID() int
}

// Equaler can be implemented by entities that need a stricter notion of
// equality than "same type, same id".
type Equaler interface {
	Equal(other Entity) bool
}

var entityType = reflect.TypeOf((*Entity)(nil)).Elem()

// SameEntity reports whether a and b represent the same entity.
// If a implements Equaler its Equal method decides, otherwise two entities
// are the same when they share a dynamic type and an id.
func SameEntity(a, b Entity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	return reflect.TypeOf(a) == reflect.TypeOf(b) && a.EntityID() == b.EntityID()
}

// ContainsEntity reports whether list holds an entity equal to e.
func ContainsEntity(list []Entity, e Entity) bool {
	for _, candidate := range list {
		if SameEntity(candidate, e) {
			return true
		}
	}
	return false
}

// RowTypeOf returns the row type for e, dereferencing pointers so that
// *Contract and Contract map to the same row type.
func RowTypeOf(e Entity) reflect.Type {
	t := reflect.TypeOf(e)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
