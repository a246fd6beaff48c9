package claude

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/placemate/internal/vision"
)

// maxTokens leaves room for a few dozen objects with boxes (~40 tokens each).
const maxTokens = 4096

type ClaudeAnalyzer struct {
	client *anthropic.Client
	model  string
}

// NewClaudeAnalyzer creates an analyzer for the Anthropic Messages API.
// Additional client options (base URL, HTTP client) are passed through.
func NewClaudeAnalyzer(apiKey, model string, opts ...anthropic.ClientOption) *ClaudeAnalyzer {
	return &ClaudeAnalyzer{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

// buildMessages constructs the message payload for a scene request.
func buildMessages(imageData []byte, mimeType, hint string) []anthropic.Message {
	prompt := vision.ScenePrompt
	if hint != "" {
		prompt += "\nThe photo was taken in: " + hint
	}
	return []anthropic.Message{{
		Role: anthropic.RoleUser,
		Content: []anthropic.MessageContent{
			anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
				anthropic.MessagesContentSourceTypeBase64,
				normaliseMIME(mimeType),
				base64.StdEncoding.EncodeToString(imageData),
			)),
			anthropic.NewTextMessageContent(prompt),
		},
	}}
}

func (a *ClaudeAnalyzer) RecognizeScene(ctx context.Context, r io.Reader, mimeType, hint string) (*vision.SceneResult, error) {
	imageData, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	width, height, err := vision.ImageSize(imageData)
	if err != nil {
		slog.Warn("image dimensions unavailable, bounding boxes dropped", "error", err)
	}

	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages:  buildMessages(imageData, mimeType, hint),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call claude: %w", err)
	}

	var responseText string
	for _, c := range resp.Content {
		if c.Type == anthropic.MessagesContentTypeText {
			responseText = c.GetText()
			break
		}
	}

	return vision.ParseScene(responseText, width, height), nil
}

// normaliseMIME maps browser MIME types to the values the Anthropic API accepts.
// Unknown types are coerced to jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
