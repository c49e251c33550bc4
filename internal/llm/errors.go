package llm

import "fmt"

// LLMError describes a failure talking to an answer backend.
type LLMError struct {
	Code    int
	Message string
}

func (e LLMError) Error() string {
	return fmt.Sprintf("llm error (code=%d): %s", e.Code, e.Message)
}

// Error codes.
const (
	ErrCodeInvalidAPIKey  = 1001
	ErrCodeInvalidRequest = 1002
	ErrCodeNetworkError   = 1003
	ErrCodeRateLimited    = 1004
	ErrCodeServerError    = 1005
	ErrCodeTimeout        = 1006
	ErrCodeEmptyPrompt    = 1007
	ErrCodeContentFilter  = 1008
	ErrCodeModelOverload  = 1009
	ErrCodeContextTooLong = 1010
)

// Error messages.
const (
	ErrMsgInvalidAPIKey  = "invalid API key"
	ErrMsgInvalidRequest = "invalid request parameters"
	ErrMsgRateLimited    = "too many requests, rate limit exceeded"
	ErrMsgServerError    = "server error occurred"
	ErrMsgTimeout        = "request timed out"
	ErrMsgEmptyPrompt    = "prompt cannot be empty"
	ErrMsgNetworkError   = "network connection error"
	ErrMsgContentFilter  = "content filtered due to safety concerns"
	ErrMsgModelOverload  = "model is currently overloaded"
	ErrMsgContextTooLong = "context length exceeds model's maximum"
)

// NewLLMError creates a new backend error.
func NewLLMError(code int, message string) LLMError {
	return LLMError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an arbitrary error as an LLMError.
func WrapError(err error, code int) LLMError {
	if err == nil {
		return LLMError{Code: code, Message: "unknown error"}
	}
	if llmErr, ok := err.(LLMError); ok {
		return llmErr
	}
	return LLMError{
		Code:    code,
		Message: err.Error(),
	}
}
