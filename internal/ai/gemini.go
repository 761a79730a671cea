// internal/ai/gemini.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"discord-thread-bot/internal/models"
)

// GeminiProvider streams completions from Gemini through the Vertex AI
// backend, with Google Search and URL context tools enabled so the model
// can ground answers in live web content.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, projectID, location, model string) (*GeminiProvider, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("gemini provider requires project and location")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  projectID,
		Location: location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string {
	return fmt.Sprintf("gemini:%s", p.model)
}

func (p *GeminiProvider) Stream(ctx context.Context, messages []Message, onDelta func(string)) (string, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](temperature),
		MaxOutputTokens: maxOutputTokens,
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
			{URLContext: &genai.URLContext{}},
		},
	}

	var full strings.Builder
	for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, config) {
		if err != nil {
			return "", classifyGeminiError(err)
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		onDelta(chunk)
	}

	return full.String(), nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED":
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case apiErr.Code == 403 || apiErr.Status == "PERMISSION_DENIED":
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case apiErr.Code == 400 || apiErr.Status == "INVALID_ARGUMENT":
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnknown, err)
}
