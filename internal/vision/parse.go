package vision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/vbonduro/placemate/internal/category"
	"github.com/vbonduro/placemate/internal/synonym"
)

// boxScale is the per-axis range of model box coordinates.
const boxScale = 1000

// Objects are decoded one at a time so a malformed object only loses itself.
type sceneJSON struct {
	Objects []json.RawMessage `json:"objects"`
	Error   string            `json:"error"`
}

// Numbers use json.Number because models emit 2, 2.0 and "2" alike.
type objectJSON struct {
	Label       string          `json:"label"`
	IsContainer *bool           `json:"isContainer"`
	Confidence  json.Number     `json:"confidence"`
	Quantity    json.Number     `json:"quantity"`
	ParentLabel string          `json:"parentLabel"`
	Box2D       json.RawMessage `json:"box_2d"`
}

// ParseScene parses a model response in the ScenePrompt JSON format. width
// and height are the source image dimensions used to scale box_2d
// ([ymin, xmin, ymax, xmax] in 0-1000) to pixels; when either is zero boxes
// are dropped. A response that is not valid JSON yields a result with Error
// set rather than an error, because the model did answer.
func ParseScene(raw string, width, height int) *SceneResult {
	result := &SceneResult{RawResponse: raw}

	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		result.Error = "model returned no JSON object"
		return result
	}

	var parsed sceneJSON
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		result.Error = fmt.Sprintf("model returned invalid JSON: %v", err)
		return result
	}
	if parsed.Error != "" {
		result.Error = parsed.Error
		return result
	}

	result.Objects = make([]Detection, 0, len(parsed.Objects))
	for i, rawObj := range parsed.Objects {
		var obj objectJSON
		if err := json.Unmarshal(rawObj, &obj); err != nil {
			slog.Warn("skipping malformed scene object", "index", i, "error", err)
			continue
		}
		label := strings.TrimSpace(obj.Label)
		if label == "" {
			continue
		}

		det := Detection{
			Label:       label,
			Quantity:    1,
			ParentLabel: strings.TrimSpace(obj.ParentLabel),
		}
		if c, err := obj.Confidence.Float64(); err == nil {
			det.Confidence = clamp01(c)
		}
		if obj.IsContainer != nil {
			det.IsContainer = *obj.IsContainer
		} else {
			det.IsContainer = category.IsContainer(synonym.Normalize(label))
		}
		if q, err := obj.Quantity.Float64(); err == nil && q >= 1 {
			det.Quantity = int(math.Round(q))
		}
		var coords []float64
		if len(obj.Box2D) > 0 && json.Unmarshal(obj.Box2D, &coords) == nil {
			det.Box = scaleBox(coords, width, height)
		}

		result.Objects = append(result.Objects, det)
	}

	return result
}

// ImageSize returns the pixel dimensions of an encoded JPEG, PNG, GIF or WebP
// image without decoding the pixel data.
func ImageSize(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func scaleBox(box []float64, width, height int) *BoundingBox {
	if len(box) != 4 || width <= 0 || height <= 0 {
		return nil
	}
	ymin, xmin, ymax, xmax := box[0], box[1], box[2], box[3]
	return &BoundingBox{
		Left:   int(xmin * float64(width) / boxScale),
		Top:    int(ymin * float64(height) / boxScale),
		Right:  int(xmax * float64(width) / boxScale),
		Bottom: int(ymax * float64(height) / boxScale),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
