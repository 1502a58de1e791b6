package canon

import "strings"

// Distance computes the Levenshtein distance between two strings,
// case-insensitively.
func Distance(s1, s2 string) int {
	s1 = strings.ToLower(s1)
	s2 = strings.ToLower(s2)

	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	cur := make([]int, len(s2)+1)
	for j := 0; j <= len(s2); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(s1); i++ {
		cur[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			min := prev[j] + 1 // deletion
			if ins := cur[j-1] + 1; ins < min {
				min = ins
			}
			if sub := prev[j-1] + cost; sub < min {
				min = sub
			}
			cur[j] = min
		}
		prev, cur = cur, prev
	}
	return prev[len(s2)]
}

// Similarity maps Distance onto [0,1]: 1 for equal strings (ignoring case),
// 0 for entirely different ones. Used to flag vocabulary values that look
// like near-duplicates of existing ones.
func Similarity(s1, s2 string) float64 {
	max := len(s1)
	if len(s2) > max {
		max = len(s2)
	}
	if max == 0 {
		return 1
	}
	return 1 - float64(Distance(s1, s2))/float64(max)
}
