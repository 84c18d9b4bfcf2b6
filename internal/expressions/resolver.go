package expressions

import (
	"sort"
	"strconv"
	"strings"
)

// Resolve navigates a dotted/bracketed path into a nested value.
//
// Path segments are split on ".". A plain segment looks up a key in an
// object; a bracketed segment "[n]" indexes an array positionally or, when
// the current value is not an array, selects the n-th value of the object in
// sorted-key order. An empty path returns the input unchanged.
//
// Resolution never fails hard: a missing key, an out-of-range index, or a
// traversal into a non-container yields ok=false for the whole path.
func Resolve(value any, path string) (any, bool) {
	if path == "" {
		return value, true
	}

	current := value
	for _, seg := range strings.Split(path, ".") {
		if idx, isIndex := parseIndex(seg); isIndex {
			next, ok := resolveIndex(current, idx)
			if !ok {
				return nil, false
			}
			current = next
			continue
		}

		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := obj[seg]
		if !ok {
			return nil, false
		}
		current = next
	}

	return current, true
}

// parseIndex recognizes bracketed segments of the form "[n]".
func parseIndex(seg string) (int, bool) {
	if len(seg) < 3 || seg[0] != '[' || seg[len(seg)-1] != ']' {
		return 0, false
	}
	n, err := strconv.Atoi(seg[1 : len(seg)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// resolveIndex applies a positional index to an array, or falls back to the
// n-th value of an object. Go maps carry no insertion order, so the object
// fallback iterates keys in sorted order to stay deterministic.
func resolveIndex(current any, idx int) (any, bool) {
	switch v := current.(type) {
	case []any:
		if idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	case map[string]any:
		if idx < 0 || idx >= len(v) {
			return nil, false
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return v[keys[idx]], true
	default:
		return nil, false
	}
}
