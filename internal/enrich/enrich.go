// Package enrich drafts structured product attributes from photos.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// StructurePrompt is the shared prompt used by all enrichment adapters.
const StructurePrompt = `You are cataloguing a physical product for resale from the attached photos.
Return a single JSON object describing it with these keys when known:
name, brand.name, description, color, material, mpn, size,
weight.value, weight.unit_text, height.value, height.unit_text,
width.value, width.unit_text, depth.value, depth.unit_text.
Nest dotted keys as objects. Omit keys you cannot determine.
Respond with JSON only.`

// ErrNoJSON is returned when a model response contains no JSON object.
var ErrNoJSON = errors.New("no JSON object in response")

type Image struct {
	Data     []byte
	MimeType string
}

type Enricher interface {
	DraftStructure(ctx context.Context, images []Image, contextText string) (json.RawMessage, error)
}

// Prompt returns StructurePrompt with the seller's notes appended.
func Prompt(contextText string) string {
	contextText = strings.TrimSpace(contextText)
	if contextText == "" {
		return StructurePrompt
	}
	return StructurePrompt + "\n\nSeller notes:\n" + contextText
}

// ExtractJSON pulls the first JSON object out of a model response,
// tolerating code fences and surrounding prose.
func ExtractJSON(raw string) (json.RawMessage, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, ErrNoJSON
	}
	candidate := raw[start : end+1]

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, ErrNoJSON
	}
	return json.RawMessage(candidate), nil
}
