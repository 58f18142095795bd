package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/mpapenbr/hyperdrive-race/log"
)

const (
	DefaultModel    = "gemini-3-flash-preview"
	temperature     = 0.9
	maxOutputTokens = 50
	maxCommentWords = 15
	promptTemplate  = `You are a hyper-energetic, futuristic racing commentator for a hover-car league.
Race event: %q
The pilot is currently in position %d of %d.
Give one short, punchy commentary line of at most %d words. No quotes, no emojis.`
)

var ErrMissingAPIKey = errors.New("gemini api key missing")

// contentGenerator is the part of the genai client the generator uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Generator produces commentary lines with the Gemini API.
type Generator struct {
	models contentGenerator
	model  string
	logger *log.Logger
}

type Option func(g *Generator)

func WithModel(name string) Option {
	return func(g *Generator) {
		if name != "" {
			g.model = name
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

func New(ctx context.Context, apiKey string, opts ...Option) (*Generator, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return newGenerator(client.Models, opts...), nil
}

func newGenerator(models contentGenerator, opts ...Option) *Generator {
	g := &Generator{models: models, model: DefaultModel}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.Default().Named("gemini")
	}
	return g
}

func Prompt(event string, rank, total int) string {
	return fmt.Sprintf(promptTemplate, event, rank, total, maxCommentWords)
}

func (g *Generator) Generate(ctx context.Context, event string, rank, total int) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model,
		genai.Text(Prompt(event, rank, total)),
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](temperature),
			MaxOutputTokens: maxOutputTokens,
		})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	g.logger.Debug("generated commentary",
		log.String("model", g.model), log.String("text", text))
	return text, nil
}
