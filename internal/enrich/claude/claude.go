package claude

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/shelfshot/internal/enrich"
)

// maxTokens leaves room for a fully populated attribute object.
const maxTokens = 1024

type ClaudeEnricher struct {
	client *anthropic.Client
	model  string
}

func NewClaudeEnricher(apiKey, model string, opts ...anthropic.ClientOption) *ClaudeEnricher {
	return &ClaudeEnricher{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

func buildMessages(images []enrich.Image, contextText string) []anthropic.Message {
	content := make([]anthropic.MessageContent, 0, len(images)+1)
	for _, img := range images {
		content = append(content, anthropic.NewImageMessageContent(anthropic.MessageContentSource{
			Type:      anthropic.MessagesContentSourceTypeBase64,
			MediaType: normaliseMIME(img.MimeType),
			Data:      base64.StdEncoding.EncodeToString(img.Data),
		}))
	}
	content = append(content, anthropic.NewTextMessageContent(enrich.Prompt(contextText)))
	return []anthropic.Message{{Role: anthropic.RoleUser, Content: content}}
}

func (e *ClaudeEnricher) DraftStructure(ctx context.Context, images []enrich.Image, contextText string) (json.RawMessage, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to describe")
	}

	resp, err := e.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(e.model),
		MaxTokens: maxTokens,
		Messages:  buildMessages(images, contextText),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call claude: %w", err)
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == anthropic.MessagesContentTypeText {
			text.WriteString(c.GetText())
		}
	}

	structure, err := enrich.ExtractJSON(text.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse claude response: %w", err)
	}
	return structure, nil
}

// normaliseMIME maps MIME types the API does not accept to image/jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
