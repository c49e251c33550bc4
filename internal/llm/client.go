package llm

import (
	"context"
	"time"
)

// Client is one answer backend. Implementations wrap a chat-completion
// API and report token usage so the service layer can account cost.
type Client interface {
	// Chat sends a conversation and returns the completion.
	Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error)

	// ID returns the stable identifier used for backend selection.
	// IDs are compared case-insensitively and must be unique per deployment.
	ID() string

	// Name returns the human-readable display name.
	Name() string

	// Model returns the underlying model name used for pricing.
	Model() string
}

// Config holds backend client settings.
type Config struct {
	ID          string        // stable backend identifier
	DisplayName string        // name shown in responses, defaults to ID
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// DefaultConfig returns the backend defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:     60 * time.Second,
		MaxRetries:  1,
		MaxTokens:   1024,
		Temperature: 0.2,
		TopP:        0.9,
	}
}

// Option mutates a Config.
type Option func(*Config)

// WithID sets the stable backend identifier.
func WithID(id string) Option {
	return func(c *Config) {
		c.ID = id
	}
}

// WithDisplayName sets the display name.
func WithDisplayName(name string) Option {
	return func(c *Config) {
		c.DisplayName = name
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(apiKey string) Option {
	return func(c *Config) {
		c.APIKey = apiKey
	}
}

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxRetries sets the retry limit.
func WithMaxRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(tokens int) Option {
	return func(c *Config) {
		c.MaxTokens = tokens
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float32) Option {
	return func(c *Config) {
		c.Temperature = temp
	}
}

// WithTopP sets the nucleus sampling threshold.
func WithTopP(topP float32) Option {
	return func(c *Config) {
		c.TopP = topP
	}
}

// NewConfig creates a config and applies options.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.ID
	}
	return cfg
}

// ChatOption overrides per-request generation parameters.
type ChatOption func(*ChatOptions)

// ChatOptions are the per-request overrides.
type ChatOptions struct {
	MaxTokens   *int
	Temperature *float32
	TopP        *float32
}

// WithChatMaxTokens overrides the completion token limit for one request.
func WithChatMaxTokens(tokens int) ChatOption {
	return func(o *ChatOptions) {
		o.MaxTokens = &tokens
	}
}

// WithChatTemperature overrides the temperature for one request.
func WithChatTemperature(temp float32) ChatOption {
	return func(o *ChatOptions) {
		o.Temperature = &temp
	}
}

// WithChatTopP overrides top-p for one request.
func WithChatTopP(topP float32) ChatOption {
	return func(o *ChatOptions) {
		o.TopP = &topP
	}
}

// Factory builds a Client from options.
type Factory func(opts ...Option) (Client, error)

var clientFactories = make(map[string]Factory)

// RegisterClient registers a backend client factory under a type name.
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient creates the backend client registered under the type name.
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewLLMError(
			ErrCodeInvalidRequest,
			"llm client type not registered: "+name)
	}
	return factory(opts...)
}
