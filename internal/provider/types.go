package provider

import "time"

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GenerateRequest contains all parameters for generating a response
type GenerateRequest struct {
	// Prompt is the user message for this turn
	Prompt string `json:"prompt"`

	// SystemPrompt sets the system-level instructions
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Context provides previous messages for multi-turn conversations
	Context []Message `json:"context,omitempty"`

	// Model overrides the provider's default model
	Model string `json:"model,omitempty"`

	// MaxTokens limits the maximum response length
	// Set to 0 to use provider default
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness. Zero leaves the provider default.
	Temperature float64 `json:"temperature,omitempty"`

	// TopP controls nucleus sampling. Zero leaves the provider default.
	TopP float64 `json:"top_p,omitempty"`

	// RepeatPenalty discourages repetition on providers that support it
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`

	// Metadata for tracking and debugging
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Messages returns the full message list: system prompt, history, then the
// prompt as the final user turn
func (r *GenerateRequest) Messages() []Message {
	msgs := make([]Message, 0, len(r.Context)+2)
	if r.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: r.SystemPrompt})
	}
	msgs = append(msgs, r.Context...)
	if r.Prompt != "" {
		msgs = append(msgs, Message{Role: RoleUser, Content: r.Prompt})
	}
	return msgs
}

// GenerateResponse contains the model's response
type GenerateResponse struct {
	// Content is the generated text
	Content string `json:"content"`

	// TokensUsed is the total tokens consumed (input + output)
	TokensUsed int `json:"tokens_used"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// Latency is how long the generation took
	Latency time.Duration `json:"latency"`

	// FinishReason explains why generation stopped
	FinishReason string `json:"finish_reason"`

	// Provider is the name of the provider that handled this request
	Provider string `json:"provider"`
}

// Message represents a single message in a conversation
type Message struct {
	// Role is who sent the message: "user", "assistant", or "system"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// Config selects and tunes a provider
type Config struct {
	Name          string        `yaml:"name" json:"name"`
	Model         string        `yaml:"model" json:"model"`
	BaseURL       string        `yaml:"base_url" json:"base_url"`
	APIKey        string        `yaml:"api_key" json:"-"`
	Temperature   float64       `yaml:"temperature" json:"temperature"`
	TopP          float64       `yaml:"top_p" json:"top_p"`
	RepeatPenalty float64       `yaml:"repeat_penalty" json:"repeat_penalty"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	// Proxy is an optional socks5://host:port address
	Proxy string `yaml:"proxy" json:"proxy,omitempty"`
	// MaxRetries is passed to providers that retry on their own
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// UserAgent is sent with every request when set
	UserAgent string `yaml:"-" json:"-"`
}
