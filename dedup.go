package fgblock

import (
	"sort"

	log "github.com/sirupsen/logrus"
)

// Dedup returns the distinct values in lexicographic order
func Dedup(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))

	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}
	sort.Strings(unique)

	log.Infof("removed duplicates. %d -> %d unique addresses", len(values), len(unique))
	return unique
}
