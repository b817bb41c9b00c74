// Package llm adapts the hosted Gemini model to port.ChatModel.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/technirvor/storefront/internal/core/domain"
)

const DefaultModel = "gemini-2.0-flash"

// SystemPrompt constrains the model to the storefront's intents.
const SystemPrompt = `You are the shopping assistant of Tech Nirvor, an online electronics and gadget store in Bangladesh.
Prices are in Bangladeshi taka. Be brief and friendly, answer in the language the customer uses.

Always answer with one JSON object:
{"type": "...", "message": "...", "query": "...", "category": "...", "order_number": "..."}

Pick "type" from:
- "product_search": the customer looks for a product. Put search keywords in "query".
- "category_search": the customer wants to browse a category. Put the category name in "category".
- "recommendations": the customer asks what to buy or for popular items.
- "flash_sale": the customer asks about deals, discounts or flash sales.
- "order_tracking": the customer asks about an order. Put the order number (like TN-DH-123456) in "order_number" when given.
- "text": anything else, answered in "message".

"message" is always a short reply shown above any results. Never invent products, prices or order details.`

type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
}

// Gemini calls the Gemini API with a JSON response schema.
type Gemini struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, config: generateConfig(cfg.Temperature)}, nil
}

func generateConfig(temperature float32) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    intentSchema(),
	}
	if temperature > 0 {
		cfg.Temperature = genai.Ptr(temperature)
	}
	return cfg
}

func intentSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"type":         {Type: genai.TypeString, Enum: domain.ChatIntents},
			"message":      {Type: genai.TypeString},
			"query":        {Type: genai.TypeString},
			"category":     {Type: genai.TypeString},
			"order_number": {Type: genai.TypeString},
		},
		Required:         []string{"type", "message"},
		PropertyOrdering: []string{"type", "message", "query", "category", "order_number"},
	}
}

// Generate sends history and returns the raw JSON text of the reply.
func (g *Gemini) Generate(ctx context.Context, history []domain.ChatMessage) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, toContents(history), g.config)
	if err != nil {
		if overloaded(err) {
			return "", fmt.Errorf("gemini %s: %w", g.model, domain.ErrModelOverloaded)
		}
		return "", fmt.Errorf("gemini %s: %w", g.model, err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini %s: empty response", g.model)
	}
	return text, nil
}

func toContents(history []domain.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == domain.ChatRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

// overloaded reports a 503 from the API.
func overloaded(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusServiceUnavailable
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code == http.StatusServiceUnavailable
	}
	return false
}
