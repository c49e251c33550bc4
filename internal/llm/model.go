package llm

import "time"

// MessageRole identifies who authored a message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Response is the unified completion result across backends.
type Response struct {
	Text             string    // generated answer text
	ModelName        string    // model that produced the answer
	PromptTokens     int       // input token usage
	CompletionTokens int       // output token usage
	TotalTokens      int       // total token usage
	FinishTime       time.Time // when the completion finished
}

// Common model names.
const (
	ModelGPT4             = "gpt-4"
	ModelGPT4Turbo        = "gpt-4-turbo"
	ModelGPT35Turbo       = "gpt-3.5-turbo"
	ModelDeepSeekChat     = "deepseek-chat"
	ModelDeepSeekReasoner = "deepseek-reasoner"
)
