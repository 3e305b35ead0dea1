package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lore-machine/config"

	"google.golang.org/genai"
)

// GeminiPromptWriter drafts daily story prompts.
type GeminiPromptWriter struct {
	client *genai.Client
	model  string
}

func NewGeminiPromptWriter(ctx context.Context, cfg config.GeminiConfig) (*GeminiPromptWriter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiPromptWriter{client: client, model: cfg.Model}, nil
}

const promptInstruction = `You write the daily prompt for a collaborative story game where every player adds one line (max 500 characters) to a shared onchain story.
Write ONE evocative prompt sentence, under 120 characters, no hashtags, no quotes, no emoji.
Here is an example of the tone: %q`

// WritePrompt returns a single-line prompt in the style of example.
func (g *GeminiPromptWriter) WritePrompt(ctx context.Context, example string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(fmt.Sprintf(promptInstruction, example)), nil)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	text = strings.Trim(text, `"`)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	if text == "" {
		return "", errors.New("gemini returned an empty prompt")
	}
	return text, nil
}
