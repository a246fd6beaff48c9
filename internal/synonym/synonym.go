// Package synonym canonicalizes free-text room and object labels.
package synonym

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// groups are disjoint sets of equivalent terms. The first term of each group
// is its representative.
var groups = [][]string{
	{"kitchen", "kitchenette", "cookery", "pantry"},
	{"living room", "lounge", "parlor", "sitting room"},
	{"bedroom", "dormitory", "bedchamber"},
	{"bathroom", "washroom", "restroom", "lavatory"},
	{"garage", "carport", "workshop"},
	{"couch", "sofa", "settee"},
	{"tool", "gadget", "instrument", "implement"},
	{"box", "container", "bin", "crate", "carton"},
	{"shelf", "rack", "ledge"},
	{"closet", "wardrobe", "cupboard", "cabinet"},
}

var index = func() map[string]int {
	m := make(map[string]int)
	for i, g := range groups {
		for _, term := range g {
			m[term] = i
		}
	}
	return m
}()

// Normalize returns the representative term for raw's synonym group, or raw
// lowercased and trimmed when it is not an exact member of any group.
func Normalize(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if i, ok := index[key]; ok {
		return groups[i][0]
	}
	return key
}

// Synonyms returns every member of raw's group, representative first. An
// unknown term is returned on its own.
func Synonyms(raw string) []string {
	key := strings.ToLower(strings.TrimSpace(raw))
	i, ok := index[key]
	if !ok {
		return []string{key}
	}
	out := make([]string, len(groups[i]))
	copy(out, groups[i])
	return out
}

// Display returns the label to show for raw: the title-cased representative
// when raw belongs to a group, otherwise raw trimmed with its casing intact.
func Display(raw string) string {
	trimmed := strings.TrimSpace(raw)
	key := strings.ToLower(trimmed)
	i, ok := index[key]
	if !ok {
		return trimmed
	}
	return cases.Title(language.Und).String(groups[i][0])
}
