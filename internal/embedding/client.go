package embedding

import (
	"context"
	"time"
)

// Client turns text into vector representations.
type Client interface {
	// Embed generates the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the model name.
	Name() string

	// Dimensions returns the vector dimension this client produces.
	Dimensions() int
}

// Config holds embedding client settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Dimensions int
	BatchSize  int
}

// Option mutates a Config.
type Option func(*Config)

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

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxRetries sets the retry limit for transient failures.
func WithMaxRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// WithDimensions sets the expected vector dimension.
func WithDimensions(dimensions int) Option {
	return func(c *Config) {
		c.Dimensions = dimensions
	}
}

// WithBatchSize sets how many texts go into one API request.
func WithBatchSize(size int) Option {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// DefaultConfig returns the embedding defaults.
func DefaultConfig() *Config {
	return &Config{
		Model:      "text-embedding-3-small",
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		Dimensions: 1536,
		BatchSize:  64,
	}
}

// NewConfig creates a config and applies options.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Factory builds a Client from options.
type Factory func(opts ...Option) (Client, error)

var clientFactories = make(map[string]Factory)

// RegisterClient registers an embedding client factory under a name.
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient creates the embedding client registered under name.
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewEmbeddingError(
			ErrCodeInvalidRequest,
			"embedding client type not registered: "+name)
	}
	return factory(opts...)
}
