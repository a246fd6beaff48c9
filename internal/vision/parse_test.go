package vision

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScene(t *testing.T) {
	raw := "Here is the scene:\n```json\n" + `{
  "objects": [
    {"label": "Kitchen", "isContainer": true, "confidence": 0.95},
    {"label": "Drawer", "isContainer": true, "confidence": 0.8, "parentLabel": "Kitchen", "box_2d": [500, 100, 700, 400]},
    {"label": "Spoon", "isContainer": false, "confidence": 0.7, "quantity": 3, "parentLabel": "Drawer"}
  ]
}` + "\n```"

	result := ParseScene(raw, 2000, 1000)
	require.Empty(t, result.Error)
	require.Len(t, result.Objects, 3)

	assert.Equal(t, Detection{Label: "Kitchen", IsContainer: true, Confidence: 0.95, Quantity: 1}, result.Objects[0])

	drawer := result.Objects[1]
	assert.Equal(t, "Kitchen", drawer.ParentLabel)
	require.NotNil(t, drawer.Box)
	assert.Equal(t, BoundingBox{Left: 200, Top: 500, Right: 800, Bottom: 700}, *drawer.Box)

	spoon := result.Objects[2]
	assert.Equal(t, 3, spoon.Quantity)
	assert.False(t, spoon.IsContainer)
	assert.Nil(t, spoon.Box)
}

func TestParseSceneDefaults(t *testing.T) {
	raw := `{"objects": [
		{"label": "  Storage Bin  "},
		{"label": "Lamp", "quantity": 0, "confidence": 3},
		{"label": "   "},
		{"label": "Cup", "box_2d": [1, 2, 3]}
	]}`

	result := ParseScene(raw, 100, 100)
	require.Len(t, result.Objects, 3)

	// isContainer missing: classified from the label.
	assert.Equal(t, "Storage Bin", result.Objects[0].Label)
	assert.True(t, result.Objects[0].IsContainer)
	assert.Equal(t, 1, result.Objects[0].Quantity)

	assert.False(t, result.Objects[1].IsContainer)
	assert.Equal(t, 1, result.Objects[1].Quantity)
	assert.Equal(t, 1.0, result.Objects[1].Confidence)

	assert.Nil(t, result.Objects[2].Box, "malformed box_2d is dropped")
}

func TestParseSceneSkipsOnlyMalformedObjects(t *testing.T) {
	raw := `{"objects": [
		{"label": "Shelf", "isContainer": true, "box_2d": "top left"},
		{"label": "Book", "quantity": 2.0, "confidence": "0.9", "parentLabel": "Shelf"},
		{"label": 42, "quantity": 1},
		"Lamp",
		{"label": "Pen", "quantity": "3", "confidence": null},
		{"label": "Cup", "quantity": 0.4}
	]}`

	result := ParseScene(raw, 100, 100)
	require.Empty(t, result.Error)
	require.Len(t, result.Objects, 4)

	assert.Equal(t, "Shelf", result.Objects[0].Label)
	assert.Nil(t, result.Objects[0].Box)

	book := result.Objects[1]
	assert.Equal(t, 2, book.Quantity)
	assert.Equal(t, 0.9, book.Confidence)
	assert.Equal(t, "Shelf", book.ParentLabel)

	assert.Equal(t, "Pen", result.Objects[2].Label)
	assert.Equal(t, 3, result.Objects[2].Quantity)
	assert.Zero(t, result.Objects[2].Confidence)

	assert.Equal(t, 1, result.Objects[3].Quantity)
}

func TestParseSceneUnknownDimensionsDropBoxes(t *testing.T) {
	result := ParseScene(`{"objects":[{"label":"Cup","box_2d":[0,0,500,500]}]}`, 0, 0)
	require.Len(t, result.Objects, 1)
	assert.Nil(t, result.Objects[0].Box)
}

func TestParseSceneErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "no json", raw: "I cannot see anything useful."},
		{name: "invalid json", raw: `{"objects": [ {"label": }`},
		{name: "explicit error", raw: `{"error": "image too dark"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseScene(tt.raw, 10, 10)
			assert.NotEmpty(t, result.Error)
			assert.Empty(t, result.Objects)
			assert.Equal(t, tt.raw, result.RawResponse)
		})
	}
}

func TestParseSceneEmptyObjectsIsNotAnError(t *testing.T) {
	result := ParseScene(`{"objects": []}`, 10, 10)
	assert.Empty(t, result.Error)
	assert.Empty(t, result.Objects)
}

func TestImageSize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 30))))

	w, h, err := ImageSize(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, h)

	_, _, err = ImageSize([]byte("not an image"))
	assert.Error(t, err)
}

func TestBoundingBox(t *testing.T) {
	b := BoundingBox{Left: 10, Top: 20, Right: 30, Bottom: 60}
	assert.True(t, b.Valid())

	x, y := b.Center()
	assert.Equal(t, 20, x)
	assert.Equal(t, 40, y)

	assert.True(t, b.Contains(10, 20))
	assert.True(t, b.Contains(30, 60))
	assert.False(t, b.Contains(31, 40))
	assert.Equal(t, int64(800), b.Area())

	assert.False(t, BoundingBox{Left: 5, Top: 5, Right: 5, Bottom: 10}.Valid())
	assert.False(t, BoundingBox{Left: -1, Top: 0, Right: 5, Bottom: 10}.Valid())
	assert.False(t, BoundingBox{Left: 10, Top: 0, Right: 5, Bottom: 10}.Valid())
}
