package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ufro-labs/norma-qa/internal/cache"
	"github.com/ufro-labs/norma-qa/internal/embedding"
	"github.com/ufro-labs/norma-qa/internal/llm"
	"github.com/ufro-labs/norma-qa/internal/vectordb"
)

const (
	// AbstentionProvider labels responses produced without calling any backend.
	AbstentionProvider = "System"

	// AbstentionAnswer is returned verbatim when retrieval finds no evidence.
	AbstentionAnswer = "No encontré información sobre esto en la normativa UFRO disponible. " +
		"Te sugiero contactar a la Dirección de Asuntos Estudiantiles o la Secretaría Académica."

	answerSystemMessage = "Eres un asistente especializado en normativa universitaria."

	answerPromptTemplate = `Eres un asistente especializado en la normativa de la Universidad de La Frontera (UFRO).
Responde la pregunta del estudiante usando EXCLUSIVAMENTE la información del contexto entregado.

Reglas:
- Cita siempre el documento y la página de donde proviene la información, con el formato [Nombre del documento, página X].
- Si el contexto no contiene la información necesaria, dilo claramente y no inventes.
- Responde en español, de forma clara y directa.

Contexto:
%s

Pregunta: %s`

	sourcePreviewLen = 300

	defaultSearchLimit = 8
	defaultCallTimeout = 60 * time.Second
	defaultAnswerTTL   = time.Hour
	answerTemperature  = 0.1
	answerMaxTokens    = 1500
)

// queryExpansions maps lowercase trigger words to terms appended to the
// rewritten query. Order matters: expansions are applied in declaration order.
var queryExpansions = []struct {
	trigger string
	terms   string
}{
	{"matrícula", "matricula inscripción"},
	{"titulación", "titulacion graduación tesis"},
	{"apelación", "apelacion recurso reclamación"},
	{"beneficios", "beneficios becas ayudas"},
	{"calendario", "calendario fechas académico"},
}

// Source describes one retrieved chunk backing an answer.
type Source struct {
	DocID    string  `json:"doc_id"`
	Title    string  `json:"title"`
	Page     int     `json:"page"`
	Content  string  `json:"content"`
	Score    float32 `json:"score"`
	URL      string  `json:"url,omitempty"`
	Vigencia string  `json:"vigencia,omitempty"`
}

// ProviderResponse is one backend's answer to a question, with cost accounting.
type ProviderResponse struct {
	Answer       string   `json:"answer"`
	Sources      []Source `json:"sources"`
	ProviderID   string   `json:"provider_id"`
	ProviderName string   `json:"provider_name"`
	Model        string   `json:"model,omitempty"`
	TokensUsed   int      `json:"tokens_used"`
	Latency      float64  `json:"latency_seconds"`
	Cost         float64  `json:"cost_usd"`
	Cached       bool     `json:"cached,omitempty"`
}

// Abstained reports whether this response was produced without consulting a backend.
func (r *ProviderResponse) Abstained() bool {
	return r.ProviderName == AbstentionProvider
}

// QAService answers questions over the indexed corpus, dispatching answer
// generation to one or more LLM backends.
type QAService struct {
	embedder    embedding.Client
	vectorDB    vectordb.Repository
	providers   []llm.Client
	answerCache cache.Cache
	log         *logrus.Logger

	searchLimit int
	callTimeout time.Duration
	answerTTL   time.Duration
	skipCache   bool
}

// QAOption configures a QAService.
type QAOption func(*QAService)

// WithSearchLimit sets how many chunks are retrieved per question.
func WithSearchLimit(limit int) QAOption {
	return func(s *QAService) {
		if limit > 0 {
			s.searchLimit = limit
		}
	}
}

// WithCallTimeout bounds each backend call.
func WithCallTimeout(d time.Duration) QAOption {
	return func(s *QAService) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithAnswerCache enables per-question response caching.
func WithAnswerCache(c cache.Cache, ttl time.Duration) QAOption {
	return func(s *QAService) {
		s.answerCache = c
		if ttl > 0 {
			s.answerTTL = ttl
		}
	}
}

// WithCacheBypass disables cache reads and writes, for evaluation runs.
func WithCacheBypass() QAOption {
	return func(s *QAService) {
		s.skipCache = true
	}
}

// NewQAService builds a QAService over the given backends. Provider IDs must
// be unique ignoring case.
func NewQAService(embedder embedding.Client, vectorDB vectordb.Repository, providers []llm.Client, log *logrus.Logger, opts ...QAOption) (*QAService, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if vectorDB == nil {
		return nil, fmt.Errorf("vector repository is required")
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one LLM provider is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	seen := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		id := strings.ToLower(p.ID())
		if id == "" {
			return nil, fmt.Errorf("provider with empty ID")
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate provider ID %q", p.ID())
		}
		seen[id] = struct{}{}
	}

	s := &QAService{
		embedder:    embedder,
		vectorDB:    vectorDB,
		providers:   providers,
		log:         log,
		searchLimit: defaultSearchLimit,
		callTimeout: defaultCallTimeout,
		answerTTL:   defaultAnswerTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Providers returns the configured backends in registration order.
func (s *QAService) Providers() []llm.Client {
	return s.providers
}

// RewriteQuery normalizes a question and appends domain synonyms for any
// expansion trigger it contains.
func (s *QAService) RewriteQuery(query string) string {
	rewritten := strings.ToLower(strings.TrimSpace(query))
	for _, exp := range queryExpansions {
		if strings.Contains(rewritten, exp.trigger) {
			rewritten = rewritten + " " + exp.terms
		}
	}
	return rewritten
}

// Retrieve embeds the rewritten query and returns the assembled context text
// together with the sources it was built from. An empty source list means
// nothing relevant was found.
func (s *QAService) Retrieve(ctx context.Context, query string) (string, []Source, error) {
	rewritten := s.RewriteQuery(query)

	vector, err := s.embedder.Embed(ctx, rewritten)
	if err != nil {
		return "", nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.vectorDB.Search(vector, s.searchLimit)
	if err != nil {
		return "", nil, fmt.Errorf("search index: %w", err)
	}
	if len(results) == 0 {
		return "", nil, nil
	}

	blocks := make([]string, 0, len(results))
	sources := make([]Source, 0, len(results))
	for _, res := range results {
		seg := res.Segment
		blocks = append(blocks, fmt.Sprintf("[%s, página %d]: %s", seg.Title, seg.Page, seg.Content))

		preview := seg.Content
		if len([]rune(preview)) > sourcePreviewLen {
			preview = string([]rune(preview)[:sourcePreviewLen]) + "..."
		}
		sources = append(sources, Source{
			DocID:    seg.DocID,
			Title:    seg.Title,
			Page:     seg.Page,
			Content:  preview,
			Score:    res.Score,
			URL:      seg.URL,
			Vigencia: seg.Vigencia,
		})
	}
	return strings.Join(blocks, "\n\n"), sources, nil
}

// ProcessQuery answers a question. With an empty providerID every configured
// backend is consulted concurrently; otherwise only the backend whose ID
// matches ignoring case. An unknown ID yields no responses. When retrieval
// finds no evidence a single abstention response is returned without calling
// any backend.
func (s *QAService) ProcessQuery(ctx context.Context, query, providerID string) ([]ProviderResponse, error) {
	contextText, sources, err := s.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return []ProviderResponse{abstentionResponse()}, nil
	}

	targets := s.selectProviders(providerID)
	if len(targets) == 0 {
		s.log.WithField("provider_id", providerID).Warn("no provider matches requested ID")
		return []ProviderResponse{}, nil
	}

	results := make([]*ProviderResponse, len(targets))
	var wg sync.WaitGroup
	for i, p := range targets {
		wg.Add(1)
		go func(i int, p llm.Client) {
			defer wg.Done()
			resp, err := s.askProvider(ctx, p, query, contextText, sources)
			if err != nil {
				s.log.WithError(err).WithFields(logrus.Fields{
					"provider": p.ID(),
					"model":    p.Model(),
				}).Warn("provider call failed")
				return
			}
			results[i] = resp
		}(i, p)
	}
	wg.Wait()

	responses := make([]ProviderResponse, 0, len(targets))
	for _, r := range results {
		if r != nil {
			responses = append(responses, *r)
		}
	}
	return responses, nil
}

// Compare asks every configured backend the same question and keys the
// responses by display name.
func (s *QAService) Compare(ctx context.Context, query string) (map[string]ProviderResponse, error) {
	responses, err := s.ProcessQuery(ctx, query, "")
	if err != nil {
		return nil, err
	}
	byName := make(map[string]ProviderResponse, len(responses))
	for _, r := range responses {
		byName[r.ProviderName] = r
	}
	return byName, nil
}

func (s *QAService) selectProviders(providerID string) []llm.Client {
	if providerID == "" {
		return s.providers
	}
	want := strings.ToLower(providerID)
	for _, p := range s.providers {
		if strings.ToLower(p.ID()) == want {
			return []llm.Client{p}
		}
	}
	return nil
}

func (s *QAService) askProvider(ctx context.Context, p llm.Client, query, contextText string, sources []Source) (*ProviderResponse, error) {
	cacheKey := cache.AnswerKey(p.ID(), query)
	if cached := s.cachedAnswer(cacheKey); cached != nil {
		return cached, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: answerSystemMessage},
		{Role: llm.RoleUser, Content: fmt.Sprintf(answerPromptTemplate, contextText, query)},
	}

	start := time.Now()
	chatResp, err := p.Chat(callCtx, messages,
		llm.WithChatTemperature(answerTemperature),
		llm.WithChatMaxTokens(answerMaxTokens),
	)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start).Seconds()

	resp := &ProviderResponse{
		Answer:       chatResp.Text,
		Sources:      sources,
		ProviderID:   p.ID(),
		ProviderName: p.Name(),
		Model:        chatResp.ModelName,
		TokensUsed:   chatResp.TotalTokens,
		Latency:      latency,
		Cost:         llm.EstimateCost(chatResp.ModelName, chatResp.PromptTokens, chatResp.CompletionTokens),
	}
	s.storeAnswer(cacheKey, resp)
	return resp, nil
}

func (s *QAService) cachedAnswer(key string) *ProviderResponse {
	if s.answerCache == nil || s.skipCache {
		return nil
	}
	raw, found, err := s.answerCache.Get(key)
	if err != nil || !found {
		return nil
	}
	var resp ProviderResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("discarding malformed cached answer")
		return nil
	}
	resp.Cached = true
	return &resp
}

func (s *QAService) storeAnswer(key string, resp *ProviderResponse) {
	if s.answerCache == nil || s.skipCache {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.answerCache.Set(key, string(raw), s.answerTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("failed to cache answer")
	}
}

func abstentionResponse() ProviderResponse {
	return ProviderResponse{
		Answer:       AbstentionAnswer,
		Sources:      []Source{},
		ProviderName: AbstentionProvider,
	}
}
