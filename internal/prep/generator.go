package prep

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// StaticModel is recorded as the model of canned talking points.
const StaticModel = "static"

const systemInstruction = "You create concise meeting prep talking points."

// Generator produces talking points for a meeting.
type Generator interface {
	// Name is stored alongside the generated points.
	Name() string
	TalkingPoints(ctx context.Context, in *Input) ([]string, error)
}

// GenAIGenerator asks a Gemini model for talking points.
type GenAIGenerator struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGenAIGenerator creates a generator backed by the Gemini API.
func NewGenAIGenerator(ctx context.Context, logger *slog.Logger, apiKey, model string, httpOptions *genai.HTTPOptions) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if httpOptions != nil {
		cfg.HTTPOptions = *httpOptions
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIGenerator{client: client, model: model, logger: logger}, nil
}

// Name implements Generator.
func (g *GenAIGenerator) Name() string {
	return g.model
}

// TalkingPoints implements Generator.
func (g *GenAIGenerator) TalkingPoints(ctx context.Context, in *Input) ([]string, error) {
	prompt := BuildPrompt(in)
	g.logger.Debug("Requesting talking points.", "model", g.model, "meetingID", in.Meeting.ID, "promptLength", len(prompt))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0.4),
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}
	points := ParseBulletPoints(resp.Text())
	if len(points) == 0 {
		return nil, fmt.Errorf("model %s returned no talking points", g.model)
	}
	return points, nil
}

// StaticGenerator returns canned points. It is used when no API key is set.
type StaticGenerator struct{}

// Name implements Generator.
func (StaticGenerator) Name() string {
	return StaticModel
}

// TalkingPoints implements Generator.
func (StaticGenerator) TalkingPoints(_ context.Context, in *Input) ([]string, error) {
	return []string{
		fmt.Sprintf("Open the meeting by acknowledging %q and restating the desired outcome.", in.Meeting.Title),
		"Share one relevant story or win that proves your value.",
		"Ask a clarifying question that keeps the conversation focused on next steps.",
	}, nil
}
