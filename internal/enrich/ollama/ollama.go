package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vbonduro/shelfshot/internal/enrich"
)

type OllamaEnricher struct {
	host   string
	model  string
	client *http.Client
}

func NewOllamaEnricher(host, model string) *OllamaEnricher {
	return &OllamaEnricher{
		host:   host,
		model:  model,
		client: &http.Client{},
	}
}

func (e *OllamaEnricher) DraftStructure(ctx context.Context, images []enrich.Image, contextText string) (json.RawMessage, error) {
	encoded := make([]string, 0, len(images))
	for _, img := range images {
		encoded = append(encoded, base64.StdEncoding.EncodeToString(img.Data))
	}

	reqBody := map[string]interface{}{
		"model":  e.model,
		"prompt": enrich.Prompt(contextText),
		"images": encoded,
		"format": "json",
		"stream": false,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var respBody struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	structure, err := enrich.ExtractJSON(respBody.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ollama response: %w", err)
	}
	return structure, nil
}
