package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/stressguard/internal/errors"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaProvider streams chat completions from an Ollama server's /api/chat
type OllamaProvider struct {
	baseURL string
	client  *http.Client
	cfg     Config
}

// Ollama API request/response structures
type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumPredict    int     `json:"num_predict,omitempty"` // max tokens
}

type ollamaChatResponse struct {
	Model           string  `json:"model"`
	CreatedAt       string  `json:"created_at"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	DoneReason      string  `json:"done_reason,omitempty"`
	PromptEvalCount int     `json:"prompt_eval_count,omitempty"`
	EvalCount       int     `json:"eval_count,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// NewOllamaProvider creates a provider for the Ollama server at cfg.BaseURL
func NewOllamaProvider(cfg Config, httpClient *http.Client) (*OllamaProvider, error) {
	if cfg.Model == "" {
		return nil, errors.NewConfigInvalidError("provider.model is required for ollama")
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OllamaProvider{baseURL: baseURL, client: httpClient, cfg: cfg}, nil
}

// Generate collects a streamed response into one GenerateResponse
func (p *OllamaProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()
	chunks, err := p.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &GenerateResponse{Model: p.model(req), Provider: "ollama"}
	for chunk := range chunks {
		if chunk.Error != nil {
			return nil, chunk.Error
		}
		resp.Content = chunk.Content
		if chunk.Done {
			resp.TokensUsed = chunk.TokensUsed
			resp.FinishReason = "stop"
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp.Latency = time.Since(start)
	return resp, nil
}

// Stream posts to /api/chat and reads the newline-delimited JSON response
func (p *OllamaProvider) Stream(ctx context.Context, req *GenerateRequest) (<-chan StreamChunk, error) {
	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	if p.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errors.NewGeneratorError("ollama", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return nil, errors.NewGeneratorError("ollama",
			fmt.Errorf("status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(msg))))
	}

	chunkChan := make(chan StreamChunk, 10)
	go p.readStream(ctx, httpResp, chunkChan)
	return chunkChan, nil
}

// readStream reads one JSON object per line until done
func (p *OllamaProvider) readStream(ctx context.Context, resp *http.Response, chunkChan chan StreamChunk) {
	defer close(chunkChan)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var full strings.Builder

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var msg ollamaChatResponse
		if err := json.Unmarshal(line, &msg); err != nil {
			emit(ctx, chunkChan, StreamChunk{
				Content: full.String(),
				Error:   errors.NewGeneratorError("ollama", fmt.Errorf("unmarshal chunk: %w", err)),
				Done:    true,
			})
			return
		}
		if msg.Error != "" {
			emit(ctx, chunkChan, StreamChunk{
				Content: full.String(),
				Error:   errors.NewGeneratorError("ollama", fmt.Errorf("%s", msg.Error)),
				Done:    true,
			})
			return
		}

		delta := msg.Message.Content
		full.WriteString(delta)

		if msg.Done {
			emit(ctx, chunkChan, StreamChunk{
				Content:    full.String(),
				Delta:      delta,
				Done:       true,
				TokensUsed: msg.PromptEvalCount + msg.EvalCount,
				Timestamp:  time.Now(),
			})
			return
		}
		if delta == "" {
			continue
		}

		if !emit(ctx, chunkChan, StreamChunk{Content: full.String(), Delta: delta, Timestamp: time.Now()}) {
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	final := StreamChunk{Content: full.String(), Done: true, Timestamp: time.Now()}
	if err := scanner.Err(); err != nil {
		final.Error = errors.NewGeneratorError("ollama", fmt.Errorf("read stream: %w", err))
	} else {
		final.Error = errors.NewGeneratorError("ollama", io.ErrUnexpectedEOF)
	}
	emit(ctx, chunkChan, final)
}

func (p *OllamaProvider) model(req *GenerateRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return p.cfg.Model
}

func (p *OllamaProvider) buildRequest(req *GenerateRequest) *ollamaChatRequest {
	opts := &ollamaOptions{
		Temperature:   firstNonZero(req.Temperature, p.cfg.Temperature),
		TopP:          firstNonZero(req.TopP, p.cfg.TopP),
		RepeatPenalty: firstNonZero(req.RepeatPenalty, p.cfg.RepeatPenalty),
		NumPredict:    req.MaxTokens,
	}
	return &ollamaChatRequest{
		Model:    p.model(req),
		Messages: req.Messages(),
		Stream:   true,
		Options:  opts,
	}
}

// GetInfo returns provider metadata
func (p *OllamaProvider) GetInfo() *ProviderInfo {
	return &ProviderInfo{
		Name:    "ollama",
		Model:   p.cfg.Model,
		BaseURL: p.baseURL,
		Type:    ProviderTypeLocal,
	}
}

// Health checks that the server answers /api/tags
func (p *OllamaProvider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return errors.NewGeneratorError("ollama", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.NewGeneratorError("ollama", fmt.Errorf("health check status %d", resp.StatusCode))
	}
	return nil
}

// Close cleans up resources
func (p *OllamaProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
