package reconcile

import (
	"fmt"
	"strings"
)

// NameSet tracks item names already taken in the catalog plus names assigned
// earlier in the current batch. Comparison ignores case and surrounding
// whitespace, matching the catalog's unique index.
//
// A NameSet is an explicit accumulator: seed it from a catalog snapshot and
// pass it through every Reconcile call of one scan.
type NameSet struct {
	names map[string]struct{}
}

func NewNameSet(existing []string) *NameSet {
	s := &NameSet{names: make(map[string]struct{}, len(existing))}
	for _, n := range existing {
		s.add(n)
	}
	return s
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *NameSet) add(name string) {
	s.names[nameKey(name)] = struct{}{}
}

func (s *NameSet) Contains(name string) bool {
	_, ok := s.names[nameKey(name)]
	return ok
}

func (s *NameSet) Len() int {
	return len(s.names)
}

// Claim returns candidate, or candidate with the first free " (n)" suffix
// starting at 2, and records the returned name as taken.
func (s *NameSet) Claim(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	name := candidate
	for n := 2; s.Contains(name); n++ {
		name = fmt.Sprintf("%s (%d)", candidate, n)
	}
	s.add(name)
	return name
}

// Release frees name, e.g. after an item is renamed or deleted.
func (s *NameSet) Release(name string) {
	delete(s.names, nameKey(name))
}
