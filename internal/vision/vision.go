package vision

import (
	"context"
	"io"
)

// ScenePrompt is the shared prompt used by all scene adapters.
const ScenePrompt = `Analyze this room or storage area and list every piece of furniture,
every storage place and every item you can see.

1. Identify the room type (e.g. "Living Room").
2. Identify all storage (shelves, tables, desks, boxes, bins, drawers).
3. Identify all items sitting on or inside that storage.
4. Group identical items with a quantity count.

Respond with ONLY a JSON object, no markdown:
{
  "objects": [
    {
      "label": "Name",
      "isContainer": true,
      "confidence": 0.9,
      "quantity": 1,
      "parentLabel": "Label of the storage it belongs to",
      "box_2d": [ymin, xmin, ymax, xmax]
    }
  ]
}
Coordinates are normalized to 0-1000.`

// SceneAnalyzer recognizes the objects in a single photo. hint is an optional
// description of where the photo was taken.
type SceneAnalyzer interface {
	RecognizeScene(ctx context.Context, r io.Reader, mimeType, hint string) (*SceneResult, error)
}

// SceneResult is one unordered batch of detections. Error is set when the
// model answered but signaled that recognition failed.
type SceneResult struct {
	Objects     []Detection
	Error       string
	RawResponse string
}

type Detection struct {
	Label       string       `json:"label"`
	IsContainer bool         `json:"is_container"`
	Confidence  float64      `json:"confidence"`
	Box         *BoundingBox `json:"box,omitempty"`
	Quantity    int          `json:"quantity"`
	ParentLabel string       `json:"parent_label,omitempty"`
}

// BoundingBox is a rectangle in image pixel coordinates.
type BoundingBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Valid reports whether b has non-negative coordinates and a positive area.
func (b BoundingBox) Valid() bool {
	return b.Left >= 0 && b.Top >= 0 && b.Right > b.Left && b.Bottom > b.Top
}

// Center returns the midpoint of b.
func (b BoundingBox) Center() (x, y int) {
	return (b.Left + b.Right) / 2, (b.Top + b.Bottom) / 2
}

// Contains reports whether the point lies inside b, edges included.
func (b BoundingBox) Contains(x, y int) bool {
	return x >= b.Left && x <= b.Right && y >= b.Top && y <= b.Bottom
}

func (b BoundingBox) Area() int64 {
	return int64(b.Right-b.Left) * int64(b.Bottom-b.Top)
}
