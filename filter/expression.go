package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Expression is a single `_filters` term.
type Expression interface {
	String() string
}

type eq struct {
	field  string
	values []string
}

// Eq matches records whose field equals one of values.
// time.Time values are sent as unix seconds.
func Eq(field string, values ...any) Expression {
	formatted := make([]string, len(values))
	for i, v := range values {
		formatted[i] = formatValue(v)
	}
	return eq{field: field, values: formatted}
}

func (e eq) String() string {
	return e.field + "(" + strings.Join(e.values, ",") + ")"
}

type dateBound struct {
	field  string
	suffix string
	at     time.Time
}

// Before matches records whose date field is before t.
func Before(field string, t time.Time) Expression {
	return dateBound{field: field, suffix: "_before", at: t}
}

// After matches records whose date field is after t.
func After(field string, t time.Time) Expression {
	return dateBound{field: field, suffix: "_after", at: t}
}

func (d dateBound) String() string {
	return d.field + d.suffix + "(" + strconv.FormatInt(d.at.Unix(), 10) + ")"
}

type compound struct {
	name  string
	exprs []Expression
}

// Compound nests exprs under name, as in against(company(42)).
func Compound(name string, exprs ...Expression) Expression {
	return compound{name: name, exprs: append([]Expression(nil), exprs...)}
}

func (c compound) String() string {
	return c.name + "(" + join(c.exprs) + ")"
}

func formatValue(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case time.Time:
		return strconv.FormatInt(value.Unix(), 10)
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}

func join(exprs []Expression) string {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			parts = append(parts, e.String())
		}
	}
	return strings.Join(parts, ",")
}
