// Package enums holds the string-backed enumerations stored in Postgres text
// columns and carried in JSON payloads.
package enums

import (
	"fmt"
	"slices"
)

func known[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

func parse[T ~string](kind, raw string, set []T) (T, error) {
	v := T(raw)
	if !slices.Contains(set, v) {
		return "", fmt.Errorf("invalid %s %q", kind, raw)
	}
	return v, nil
}
