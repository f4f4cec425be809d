package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float64
	TopK           int
	KnowledgeBase  string
}

// OpenAIBackend answers from the excerpts of the knowledge base that are
// closest to the question.
type OpenAIBackend struct {
	client      *openai.Client
	index       *Index
	model       string
	maxTokens   int
	temperature float64
	topK        int
	logger      *zap.Logger
}

func NewOpenAIBackend(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIBackend, error) {
	if cfg.KnowledgeBase == "" {
		return nil, errors.New("knowledge base directory is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}

	return &OpenAIBackend{
		client:      client,
		index:       NewIndex(cfg.KnowledgeBase, client, openai.EmbeddingModel(cfg.EmbeddingModel), logger),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topK:        cfg.TopK,
		logger:      logger,
	}, nil
}

// Warm builds the embedding index so the first question does not pay for it.
func (b *OpenAIBackend) Warm(ctx context.Context) error {
	return b.index.Build(ctx)
}

func (b *OpenAIBackend) Answer(ctx context.Context, req Request) (string, error) {
	excerpts, err := b.index.Search(ctx, req.Question, b.topK)
	if err != nil {
		return "", err
	}

	resp, err := b.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: b.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: req.SystemPolicy + "\n\n" + formatExcerpts(excerpts),
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: req.Question,
				},
			},
			MaxTokens:   b.maxTokens,
			Temperature: float32(b.temperature),
		},
	)
	if err != nil {
		b.logger.Error("Failed to get chat completion", zap.Error(err))
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// formatExcerpts labels excerpts [S1], [S2], ... for citation.
func formatExcerpts(excerpts []Excerpt) string {
	if len(excerpts) == 0 {
		return "參考資料：（無）"
	}
	var sb strings.Builder
	sb.WriteString("參考資料：")
	for i, e := range excerpts {
		fmt.Fprintf(&sb, "\n\n[S%d]（%s）\n%s", i+1, e.Source, e.Text)
	}
	return sb.String()
}

// mapOpenAIError turns HTTP 429 into ErrRateLimited and leaves anything else.
func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrRateLimited, reqErr.HTTPStatus)
	}
	return err
}
