package llm

// deepSeekBaseURL is the OpenAI-compatible endpoint DeepSeek exposes.
const deepSeekBaseURL = "https://api.deepseek.com/v1"

// NewDeepSeekClient creates a DeepSeek backend client. The API speaks the
// OpenAI chat protocol, only the endpoint and models differ.
func NewDeepSeekClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.BaseURL == "" {
		cfg.BaseURL = deepSeekBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = ModelDeepSeekChat
	}
	return newChatClient(cfg)
}

func init() {
	RegisterClient("deepseek", NewDeepSeekClient)
}
