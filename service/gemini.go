package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// TextGenerator produces free-form text from a system instruction and a
// prompt. The temperature parameter is explicit so that regeneration can
// run warmer without any caching between calls.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string, temperature float32) (string, error)
}

const (
	defaultGenerationModel = "gemini-1.5-pro"
	defaultEmbeddingModel  = "text-embedding-004"

	maxRetries     = 3
	initialBackoff = time.Second

	// maxPromptChars keeps prompts under the model context limit.
	maxPromptChars = 30000
)

var ErrGenerationEmpty = errors.New("model returned empty content")

// GeminiClient wraps the Gemini SDK for generation and embeddings. It
// implements TextGenerator and index.Embedder.
type GeminiClient struct {
	client          *genai.Client
	generationModel string
	embeddingModel  string
	logger          *zap.Logger
}

// NewGeminiClient creates a Gemini client from an API key.
func NewGeminiClient(ctx context.Context, apiKey string, logger *zap.Logger) (*GeminiClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{
		client:          client,
		generationModel: defaultGenerationModel,
		embeddingModel:  defaultEmbeddingModel,
		logger:          logger,
	}, nil
}

// Close releases the underlying SDK client.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// Generate calls the generation model with retry and exponential backoff.
func (g *GeminiClient) Generate(ctx context.Context, system, prompt string, temperature float32) (string, error) {
	model := g.client.GenerativeModel(g.generationModel)
	model.SetTemperature(temperature)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	if len(prompt) > maxPromptChars {
		g.logger.Warn("prompt too long, truncating",
			zap.Int("chars", len(prompt)), zap.Int("limit", maxPromptChars))
		prompt = prompt[:maxPromptChars] + "\n\n[Content truncated due to length...]"
	}

	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = err
			continue
		}

		text := collectText(resp)
		if text == "" {
			lastErr = ErrGenerationEmpty
			continue
		}
		return text, nil
	}

	return "", fmt.Errorf("generation failed after %d attempts: %w", maxRetries, lastErr)
}

// EmbedDocument embeds policy excerpt text for indexing.
func (g *GeminiClient) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return g.embed(ctx, text, genai.TaskTypeRetrievalDocument)
}

// EmbedQuery embeds retrieval query text with the same model used at
// index time.
func (g *GeminiClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return g.embed(ctx, text, genai.TaskTypeRetrievalQuery)
}

func (g *GeminiClient) embed(ctx context.Context, text string, taskType genai.TaskType) ([]float32, error) {
	em := g.client.EmbeddingModel(g.embeddingModel)
	em.TaskType = taskType

	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		res, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			lastErr = err
			continue
		}
		if res.Embedding == nil || len(res.Embedding.Values) == 0 {
			lastErr = errors.New("embedding response has no values")
			continue
		}
		return res.Embedding.Values, nil
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", maxRetries, lastErr)
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	return sb.String()
}
