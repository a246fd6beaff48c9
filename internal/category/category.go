// Package category maps normalized labels to coarse categories.
//
// Matching is case-insensitive substring matching. The rule table is ordered
// and the first matching rule wins, so reordering rules changes behavior:
// "tool table" is Tools, not Furniture.
package category

import "strings"

// Default is returned when no rule matches.
const Default = "Decor & Misc"

type rule struct {
	category string
	keywords []string
}

var rules = []rule{
	{"Tools", []string{"tool", "hammer", "screw", "wrench"}},
	{"Media", []string{"book", "paper", "magazine", "newspaper"}},
	{"Electronics", []string{"electronics", "phone", "laptop", "computer", "tablet"}},
	{"Furniture", []string{"furniture", "chair", "table", "desk", "sofa", "bed"}},
	{"Kitchen", []string{"kitchen", "cook", "food", "appliance", "pot", "pan"}},
	{"Leisure", []string{"toy", "game", "puzzle"}},
	{"Apparel", []string{"clothing", "wear", "shoe", "shirt", "pant"}},
}

var containerKeywords = []string{
	"shelf", "bookcase", "cupboard", "wardrobe", "almirah", "rack", "drawer",
	"fridge", "refrigerator", "table", "desk", "box", "cabinet", "storage",
	"bin", "basket", "closet", "crate", "chest",
}

type Result struct {
	Category    string
	IsContainer bool
}

// Classify returns the category and container flag for label.
func Classify(label string) Result {
	return Result{
		Category:    MapToCategory(label),
		IsContainer: IsContainer(label),
	}
}

// MapToCategory returns the category of the first rule with a keyword that
// occurs in label, or Default.
func MapToCategory(label string) string {
	lower := strings.ToLower(label)
	for _, r := range rules {
		if containsAny(lower, r.keywords) {
			return r.category
		}
	}
	return Default
}

// IsContainer reports whether label names something that holds other things.
func IsContainer(label string) bool {
	return containsAny(strings.ToLower(label), containerKeywords)
}

// Categories lists every category Classify can return, in rule order.
func Categories() []string {
	out := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.category)
	}
	return append(out, Default)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
