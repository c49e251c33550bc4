package llm

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient answers questions through an OpenAI-compatible chat API.
// The DeepSeek backend reuses it with a different base URL.
type OpenAIClient struct {
	client *openai.Client
	config *Config
}

// NewOpenAIClient creates a ChatGPT backend client.
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.Model == "" {
		cfg.Model = ModelGPT35Turbo
	}
	return newChatClient(cfg)
}

func newChatClient(cfg *Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}
	if cfg.ID == "" {
		return nil, NewLLMError(ErrCodeInvalidRequest, "backend id cannot be empty")
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

// Chat sends the conversation and returns the completion with usage.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	chatOpts := &ChatOptions{}
	for _, opt := range options {
		opt(chatOpts)
	}

	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    toChatMessages(messages),
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		TopP:        c.config.TopP,
	}
	if chatOpts.MaxTokens != nil {
		req.MaxTokens = *chatOpts.MaxTokens
	}
	if chatOpts.Temperature != nil {
		req.Temperature = *chatOpts.Temperature
	}
	if chatOpts.TopP != nil {
		req.TopP = *chatOpts.TopP
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, NewLLMError(ErrCodeTimeout, ErrMsgTimeout)
			}
		}

		reqCtx := ctx
		if c.config.Timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
			defer cancel()
		}

		resp, err := c.client.CreateChatCompletion(reqCtx, req)
		if err != nil {
			lastErr = translateChatError(err)
			if isRetryableChatError(err) {
				continue
			}
			return nil, lastErr
		}

		if len(resp.Choices) == 0 {
			return nil, NewLLMError(ErrCodeServerError, "completion returned no choices")
		}

		return &Response{
			Text:             resp.Choices[0].Message.Content,
			ModelName:        c.config.Model,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
			FinishTime:       time.Now(),
		}, nil
	}
	return nil, lastErr
}

// ID returns the stable backend identifier.
func (c *OpenAIClient) ID() string {
	return c.config.ID
}

// Name returns the display name.
func (c *OpenAIClient) Name() string {
	return c.config.DisplayName
}

// Model returns the underlying model name.
func (c *OpenAIClient) Model() string {
	return c.config.Model
}

func toChatMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}
	return out
}

func translateChatError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401:
			return NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
		case apiErr.HTTPStatusCode == 429:
			return NewLLMError(ErrCodeRateLimited, ErrMsgRateLimited)
		case apiErr.HTTPStatusCode >= 500:
			return NewLLMError(ErrCodeServerError, ErrMsgServerError)
		}
		return NewLLMError(ErrCodeInvalidRequest, apiErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewLLMError(ErrCodeTimeout, ErrMsgTimeout)
	}
	return NewLLMError(ErrCodeNetworkError, err.Error())
}

func isRetryableChatError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func init() {
	RegisterClient("chatgpt", NewOpenAIClient)
}
