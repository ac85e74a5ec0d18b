package provider

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/felixgeelhaar/stressguard/internal/errors"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1/"

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint
type OpenAIProvider struct {
	client  openai.Client
	cfg     Config
	baseURL string
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider(cfg Config, httpClient *http.Client) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewGeneratorAuthError("openai")
	}
	if cfg.Model == "" {
		return nil, errors.NewConfigInvalidError("provider.model is required for openai")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, option.WithHeader("User-Agent", cfg.UserAgent))
	}

	return &OpenAIProvider{
		client:  openai.NewClient(opts...),
		cfg:     cfg,
		baseURL: baseURL,
	}, nil
}

// Generate sends a non-streaming completion request
func (p *OpenAIProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()

	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.NewGeneratorError("openai", fmt.Errorf("no choices in response"))
	}

	return &GenerateResponse{
		Content:      resp.Choices[0].Message.Content,
		TokensUsed:   int(resp.Usage.TotalTokens),
		Model:        resp.Model,
		Latency:      time.Since(start),
		FinishReason: string(resp.Choices[0].FinishReason),
		Provider:     "openai",
	}, nil
}

// Stream opens a streaming completion and forwards deltas on the returned channel
func (p *OpenAIProvider) Stream(ctx context.Context, req *GenerateRequest) (<-chan StreamChunk, error) {
	chunkChan := make(chan StreamChunk, 10)
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.buildParams(req))

	go func() {
		defer close(chunkChan)
		defer stream.Close()

		var full strings.Builder
		tokens := 0

		for stream.Next() {
			chunk := stream.Current()
			if chunk.Usage.TotalTokens > 0 {
				tokens = int(chunk.Usage.TotalTokens)
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			full.WriteString(delta)

			if !emit(ctx, chunkChan, StreamChunk{Content: full.String(), Delta: delta, Timestamp: time.Now()}) {
				return
			}
		}

		final := StreamChunk{
			Content:    full.String(),
			Done:       true,
			TokensUsed: tokens,
			Timestamp:  time.Now(),
		}
		if err := stream.Err(); err != nil {
			final.Error = p.wrapError(err)
		}
		emit(ctx, chunkChan, final)
	}()

	return chunkChan, nil
}

func (p *OpenAIProvider) buildParams(req *GenerateRequest) openai.ChatCompletionNewParams {
	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}

	msgs := req.Messages()
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)),
	}
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	temperature := firstNonZero(req.Temperature, p.cfg.Temperature)
	if temperature > 0 {
		params.Temperature = openai.Float(temperature)
	}
	topP := firstNonZero(req.TopP, p.cfg.TopP)
	if topP > 0 {
		params.TopP = openai.Float(topP)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

func (p *OpenAIProvider) wrapError(err error) error {
	var apiErr *openai.Error
	if stderrors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return errors.NewGeneratorAuthError("openai")
	}
	return errors.NewGeneratorError("openai", err)
}

// GetInfo returns provider metadata
func (p *OpenAIProvider) GetInfo() *ProviderInfo {
	return &ProviderInfo{
		Name:    "openai",
		Model:   p.cfg.Model,
		BaseURL: p.baseURL,
		Type:    ProviderTypeAPI,
	}
}

// Health lists models to confirm the endpoint and key are usable
func (p *OpenAIProvider) Health(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return p.wrapError(err)
	}
	return nil
}

// Close cleans up resources
func (p *OpenAIProvider) Close() error {
	return nil
}

func firstNonZero(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
