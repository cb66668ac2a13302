package codegen

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is used when GeminiConfig.Model is empty.
const DefaultModel = "gemini-2.5-flash"

var ErrNoAPIKey = errors.New("gemini API key is required")

// GeminiConfig configures the Gemini generator.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
}

// Gemini generates programs with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	temp   float32
}

// NewGemini creates a generator.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, temp: cfg.Temperature}, nil
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
			Temperature:       genai.Ptr(g.temp),
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", g.model, err)
	}
	return resp.Text(), nil
}
