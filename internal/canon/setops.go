package canon

import "sort"

// SetEqual reports whether a and b are equal as sets under eq: every element
// of a has a counterpart in b and vice versa. Order and multiplicity do not
// matter.
func SetEqual[T any](a, b []T, eq func(x, y T) bool) bool {
	contains := func(haystack []T, needle T) bool {
		for _, h := range haystack {
			if eq(needle, h) {
				return true
			}
		}
		return false
	}
	for _, x := range a {
		if !contains(b, x) {
			return false
		}
	}
	for _, y := range b {
		if !contains(a, y) {
			return false
		}
	}
	return true
}

// UnionStrings returns the sorted union of two string sets.
func UnionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		seen[s] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
