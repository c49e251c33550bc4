package embedding

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient embeds text through the OpenAI embeddings API.
type OpenAIClient struct {
	client *openai.Client
	config *Config
}

// NewOpenAIClient creates a client for the OpenAI embeddings API.
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(apiConfig),
		config: cfg,
	}, nil
}

// Embed generates the vector for a single text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}

	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds multiple texts, splitting into API-sized batches and
// preserving input order in the result.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
		}
	}

	batchSize := c.config.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := c.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// embedWithRetry sends one batch, retrying rate limit and server errors
// with exponential backoff.
func (c *OpenAIClient) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, NewEmbeddingError(ErrCodeTimeout, ErrMsgTimeout)
			}
		}

		reqCtx := ctx
		if c.config.Timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
			defer cancel()
		}

		resp, err := c.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequestStrings{
			Input: texts,
			Model: openai.EmbeddingModel(c.config.Model),
		})
		if err != nil {
			lastErr = translateError(err)
			if isRetryable(err) {
				continue
			}
			return nil, lastErr
		}

		if len(resp.Data) != len(texts) {
			return nil, NewEmbeddingError(ErrCodeServerError,
				"embedding response count does not match input count")
		}

		// Responses carry their input index; place each vector by it.
		vectors := make([][]float32, len(texts))
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(vectors) {
				return nil, NewEmbeddingError(ErrCodeServerError,
					"embedding response index out of range")
			}
			vectors[item.Index] = item.Embedding
		}
		return vectors, nil
	}
	return nil, lastErr
}

// Name returns the model name.
func (c *OpenAIClient) Name() string {
	return c.config.Model
}

// Dimensions returns the configured vector dimension.
func (c *OpenAIClient) Dimensions() int {
	return c.config.Dimensions
}

func translateError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401:
			return NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
		case apiErr.HTTPStatusCode == 429:
			return NewEmbeddingError(ErrCodeRateLimited, ErrMsgRateLimited)
		case apiErr.HTTPStatusCode >= 500:
			return NewEmbeddingError(ErrCodeServerError, ErrMsgServerError)
		}
		return NewEmbeddingError(ErrCodeInvalidRequest, apiErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewEmbeddingError(ErrCodeTimeout, ErrMsgTimeout)
	}
	return NewEmbeddingError(ErrCodeNetworkError, err.Error())
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
}
