package model

import (
	"time"

	"github.com/ufro-labs/norma-qa/internal/models"
	"github.com/ufro-labs/norma-qa/internal/services"
)

// Response is the common response envelope. Code 0 means success.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

// NewSuccessResponse wraps data in a success envelope.
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse builds an error envelope.
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// SourceInfo is one cited chunk in an answer.
type SourceInfo struct {
	DocID    string  `json:"doc_id"`
	Title    string  `json:"title"`
	Page     int     `json:"page"`
	Content  string  `json:"content"`
	Score    float32 `json:"score"`
	URL      string  `json:"url,omitempty"`
	Vigencia string  `json:"vigencia,omitempty"`
}

// AnswerInfo is one backend's answer.
type AnswerInfo struct {
	Provider   string       `json:"provider"`
	ProviderID string       `json:"provider_id,omitempty"`
	Answer     string       `json:"answer"`
	Sources    []SourceInfo `json:"sources"`
	Abstained  bool         `json:"abstained"`
	TokensUsed int          `json:"tokens_used"`
	Latency    float64      `json:"latency_seconds"`
	Cost       float64      `json:"cost_usd"`
	Cached     bool         `json:"cached,omitempty"`
}

// AskResponse is the body of a successful POST /api/ask.
type AskResponse struct {
	Question string       `json:"question"`
	Answers  []AnswerInfo `json:"answers"`
}

// ConvertAnswer maps a service response to its API form.
func ConvertAnswer(resp services.ProviderResponse) AnswerInfo {
	sources := make([]SourceInfo, len(resp.Sources))
	for i, s := range resp.Sources {
		sources[i] = SourceInfo{
			DocID:    s.DocID,
			Title:    s.Title,
			Page:     s.Page,
			Content:  s.Content,
			Score:    s.Score,
			URL:      s.URL,
			Vigencia: s.Vigencia,
		}
	}
	return AnswerInfo{
		Provider:   resp.ProviderName,
		ProviderID: resp.ProviderID,
		Answer:     resp.Answer,
		Sources:    sources,
		Abstained:  resp.Abstained(),
		TokensUsed: resp.TokensUsed,
		Latency:    resp.Latency,
		Cost:       resp.Cost,
		Cached:     resp.Cached,
	}
}

// ConvertAnswers maps service responses in order.
func ConvertAnswers(responses []services.ProviderResponse) []AnswerInfo {
	answers := make([]AnswerInfo, len(responses))
	for i, resp := range responses {
		answers[i] = ConvertAnswer(resp)
	}
	return answers
}

// DocumentInfo is one catalog document in a listing.
type DocumentInfo struct {
	DocID       string     `json:"doc_id"`
	Title       string     `json:"title"`
	Filename    string     `json:"filename"`
	URL         string     `json:"url,omitempty"`
	Vigencia    string     `json:"vigencia,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	Status      string     `json:"status"`
	PageCount   int        `json:"page_count"`
	ChunkCount  int        `json:"chunk_count"`
	Error       string     `json:"error,omitempty"`
	IndexedAt   *time.Time `json:"indexed_at,omitempty"`
}

// DocumentListResponse is the body of GET /api/documents.
type DocumentListResponse struct {
	Total     int64          `json:"total"`
	Page      int            `json:"page"`
	PageSize  int            `json:"page_size"`
	Documents []DocumentInfo `json:"documents"`
}

// ConvertDocument maps a catalog record to its API form.
func ConvertDocument(doc *models.Document) DocumentInfo {
	return DocumentInfo{
		DocID:       doc.DocID,
		Title:       doc.Title,
		Filename:    doc.Filename,
		URL:         doc.URL,
		Vigencia:    doc.Vigencia,
		ContentType: doc.ContentType,
		Status:      string(doc.Status),
		PageCount:   doc.PageCount,
		ChunkCount:  doc.ChunkCount,
		Error:       doc.Error,
		IndexedAt:   doc.IndexedAt,
	}
}
