package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapToCategory(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"hammer", "Tools"},
		{"Screwdriver", "Tools"},
		{"paperback book", "Media"},
		{"laptop", "Electronics"},
		{"office chair", "Furniture"},
		{"frying pan", "Kitchen"},
		{"board game", "Leisure"},
		{"running shoe", "Apparel"},
		{"vase", Default},
		{"", Default},
		// Tools precedes Furniture.
		{"tool table", "Tools"},
		// Electronics precedes Furniture: "tablet" is matched before "table".
		{"tablet", "Electronics"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, MapToCategory(tt.label))
		})
	}
}

func TestIsContainer(t *testing.T) {
	for _, label := range []string{"Shelf", "bookcase", "top drawer", "fridge", "storage bin", "laundry basket", "toy chest"} {
		assert.True(t, IsContainer(label), label)
	}
	for _, label := range []string{"mug", "spoon", "lamp", ""} {
		assert.False(t, IsContainer(label), label)
	}
}

func TestClassify(t *testing.T) {
	got := Classify("Desk")
	assert.Equal(t, Result{Category: "Furniture", IsContainer: true}, got)

	got = Classify("spoon")
	assert.Equal(t, Result{Category: Default, IsContainer: false}, got)
}

func TestCategories(t *testing.T) {
	cats := Categories()
	assert.Equal(t, "Tools", cats[0])
	assert.Equal(t, Default, cats[len(cats)-1])
	assert.Len(t, cats, len(rules)+1)
}
