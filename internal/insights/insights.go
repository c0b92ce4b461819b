// Package insights is the generation boundary: given page content it asks
// Gemini for flashcards, tags, a reflection question, and a short summary,
// enforcing a fixed response schema. Malformed generator output is a terminal
// error for the call, never silently recovered.
package insights

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"notulio/internal/core"
)

// DefaultModel is the default Gemini model used for insight generation.
const DefaultModel = "gemini-2.5-flash"

// Generator produces the insight bundle for one piece of content.
type Generator interface {
	Generate(ctx context.Context, title, description, content string) (*core.Insights, error)
}

// Client generates insights through the Gemini API.
type Client struct {
	modelName   string
	temperature float32
	maxTokens   int32
	gClient     *genai.Client
}

// NewClient creates a Gemini-backed insight generator.
func NewClient(ctx context.Context, apiKey, modelName string, temperature float32, maxTokens int32) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		modelName:   modelName,
		temperature: temperature,
		maxTokens:   maxTokens,
		gClient:     gClient,
	}, nil
}

// responseSchema enforces structured JSON output from the model.
func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"flashcards": {
				Type:        genai.TypeArray,
				Description: "5-10 question/answer study pairs",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"question": {Type: genai.TypeString},
						"answer":   {Type: genai.TypeString},
					},
					Required: []string{"question", "answer"},
				},
			},
			"reflection": {
				Type:        genai.TypeString,
				Description: "One reflection question encouraging critical thinking",
			},
			"tags": {
				Type:        genai.TypeArray,
				Description: "3-5 short lowercase topical tags",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
			"summary": {
				Type:        genai.TypeString,
				Description: "2-3 sentence neutral summary",
			},
		},
		Required: []string{"flashcards", "tags"},
	}
}

// Generate asks the model for the insight bundle and parses the structured
// response.
func (c *Client) Generate(ctx context.Context, title, description, content string) (*core.Insights, error) {
	prompt := BuildInsightsPrompt(title, description, content)

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
		Temperature:      genai.Ptr(c.temperature),
	}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = c.maxTokens
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate insights: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	return ParseInsights(text)
}

// ParseInsights decodes and validates the model's JSON output. A response
// that does not conform to the schema is a hard failure.
func ParseInsights(raw string) (*core.Insights, error) {
	var insights core.Insights
	if err := json.Unmarshal([]byte(raw), &insights); err != nil {
		return nil, fmt.Errorf("failed to parse insights JSON: %w", err)
	}

	if len(insights.Flashcards) == 0 {
		return nil, fmt.Errorf("insights response has no flashcards")
	}
	for i, card := range insights.Flashcards {
		if card.Question == "" || card.Answer == "" {
			return nil, fmt.Errorf("insights flashcard %d is incomplete", i)
		}
	}
	if len(insights.Tags) == 0 {
		return nil, fmt.Errorf("insights response has no tags")
	}

	return &insights, nil
}
