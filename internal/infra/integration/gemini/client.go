package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/xavierca1/prospect-pipeline/internal/usecase"
)

const defaultModel = "gemini-2.5-flash"

var ErrEmptyResponse = errors.New("gemini devolveu resposta vazia")

// Client implementa usecase.TextGenerator sobre a API do Gemini.
type Client struct {
	client *genai.Client
	model  string
}

var _ usecase.TextGenerator = (*Client)(nil)

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = defaultModel
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao criar cliente gemini: %w", err)
	}
	return &Client{client: c, model: model}, nil
}

func (c *Client) Generate(ctx context.Context, req usecase.GenerationRequest) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), buildConfig(req))
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", req.Purpose, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func buildConfig(req usecase.GenerationRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Deterministic {
		cfg.Temperature = genai.Ptr[float32](0)
	}
	return cfg
}
