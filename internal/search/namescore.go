package search

import (
	"strings"

	"github.com/cqs-dev/cqs/internal/nl"
)

// NameScore computes the lexical match score between query and name:
// exact match, substring containment either direction,
// then word-overlap on tokenized identifiers.
func NameScore(query, name string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	n := strings.ToLower(strings.TrimSpace(name))
	if q == "" || n == "" {
		return 0
	}
	if q == n {
		return 1.0
	}
	if strings.Contains(n, q) {
		return 0.8
	}
	if strings.Contains(q, n) {
		return 0.6
	}

	queryWords := nl.TokenizeIdentifier(query)
	nameWords := nl.TokenizeIdentifier(name)
	if len(queryWords) == 0 || len(nameWords) == 0 {
		return 0
	}

	overlap := 0
	for _, qw := range queryWords {
		for _, nw := range nameWords {
			if strings.Contains(nw, qw) || strings.Contains(qw, nw) {
				overlap++
				break
			}
		}
	}
	score := float64(overlap) / float64(len(queryWords)) * 0.5
	if score > 0.5 {
		score = 0.5
	}
	return score
}
