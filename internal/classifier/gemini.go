package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.0-flash"

// GeminiCompleter implements Completer on top of the Gemini API.
// Clients are created lazily and cached per API key, so a key changed at
// runtime takes effect on the next call.
type GeminiCompleter struct {
	model       string
	temperature float32
	maxTokens   int32

	mu      sync.Mutex
	clients map[string]*genai.Client
}

func NewGeminiCompleter(model string, maxTokens int) *GeminiCompleter {
	if model == "" {
		model = DefaultModelName
	}
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &GeminiCompleter{
		model:       model,
		temperature: 0.1,
		maxTokens:   int32(maxTokens),
		clients:     make(map[string]*genai.Client),
	}
}

func (g *GeminiCompleter) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[apiKey]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	g.clients[apiKey] = c
	return c, nil
}

// Complete sends prompt as a single user turn and returns the text answer.
func (g *GeminiCompleter) Complete(ctx context.Context, apiKey, prompt string) (string, error) {
	if apiKey == "" {
		return "", errors.New("gemini: missing API key")
	}
	client, err := g.client(ctx, apiKey)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		MaxOutputTokens:  g.maxTokens,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini: empty response from model")
	}
	return text, nil
}
