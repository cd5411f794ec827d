package enums

import (
	"fmt"
	"slices"
)

// set is the closed list of values of one string enum, in declaration order.
type set[T ~string] struct {
	kind   string
	values []T
}

func newSet[T ~string](kind string, values ...T) set[T] {
	return set[T]{kind: kind, values: values}
}

func (s set[T]) has(v T) bool {
	return slices.Contains(s.values, v)
}

// parse matches raw exactly; wire values are case-sensitive.
func (s set[T]) parse(raw string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", s.kind, raw)
}

func (s set[T]) index(v T) int {
	if i := slices.Index(s.values, v); i >= 0 {
		return i
	}
	return len(s.values)
}

func (s set[T]) all() []T {
	return slices.Clone(s.values)
}
