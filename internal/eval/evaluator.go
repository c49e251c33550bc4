package eval

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ufro-labs/norma-qa/internal/services"
)

const defaultPrecisionK = 5

// Record is the scored result of one (question, provider) pair.
type Record struct {
	QuestionID            int      `json:"question_id"`
	Question              string   `json:"question"`
	ExpectedSources       []string `json:"expected_sources"`
	Category              string   `json:"category"`
	Difficulty            string   `json:"difficulty"`
	Provider              string   `json:"provider"`
	SemanticSimilarity    float64  `json:"semantic_similarity"`
	CitationCoverage      float64  `json:"citation_coverage"`
	PrecisionAtK          float64  `json:"precision_at_k"`
	HasProperCitations    bool     `json:"has_proper_citations"`
	Abstained             bool     `json:"abstained"`
	AbstentionAppropriate bool     `json:"abstention_appropriate"`
	TokensUsed            int      `json:"tokens_used"`
	Latency               float64  `json:"latency"`
	Cost                  float64  `json:"cost"`
}

// Failure marks a question that produced no responses at all.
type Failure struct {
	QuestionID int    `json:"question_id"`
	Question   string `json:"question"`
	Reason     string `json:"reason"`
}

// ProviderSummary aggregates one provider's records. Failed questions are not
// counted, so providers can have different question counts.
type ProviderSummary struct {
	Questions             int     `json:"n_questions"`
	AvgSemanticSimilarity float64 `json:"avg_semantic_similarity"`
	AvgCitationCoverage   float64 `json:"avg_citation_coverage"`
	AvgPrecisionAtK       float64 `json:"avg_precision_at_k"`
	CitationRate          float64 `json:"citation_rate"`
	AbstentionRate        float64 `json:"abstention_rate"`
	AvgLatency            float64 `json:"avg_latency"`
	TotalCost             float64 `json:"total_cost"`
	TotalTokens           int     `json:"total_tokens"`
	CostPerQuestion       float64 `json:"cost_per_question"`
}

// Report is the full outcome of one evaluation run.
type Report struct {
	Records  []Record                   `json:"detailed_results"`
	Failures []Failure                  `json:"failures,omitempty"`
	Summary  map[string]ProviderSummary `json:"summary"`
}

// QueryProcessor is the slice of the QA service the evaluator needs.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, query, providerID string) ([]services.ProviderResponse, error)
}

// Evaluator replays a labeled question set through the QA service and scores
// every backend's answers.
type Evaluator struct {
	qa     QueryProcessor
	scorer SimilarityScorer
	log    *logrus.Logger
	k      int
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithScorer replaces the placeholder similarity scorer.
func WithScorer(scorer SimilarityScorer) EvaluatorOption {
	return func(e *Evaluator) {
		if scorer != nil {
			e.scorer = scorer
		}
	}
}

// WithPrecisionK sets the retrieval precision cutoff.
func WithPrecisionK(k int) EvaluatorOption {
	return func(e *Evaluator) {
		if k > 0 {
			e.k = k
		}
	}
}

// NewEvaluator builds an evaluator over a QA service. The service should be
// constructed with cache bypass so scores reflect live backend behavior.
func NewEvaluator(qa QueryProcessor, log *logrus.Logger, opts ...EvaluatorOption) (*Evaluator, error) {
	if qa == nil {
		return nil, fmt.Errorf("QA service is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Evaluator{
		qa:     qa,
		scorer: LengthHeuristicScorer{},
		log:    log,
		k:      defaultPrecisionK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run evaluates every question against every configured backend. Questions
// whose dispatch fails or yields zero responses are reported as failures and
// excluded from the aggregates.
func (e *Evaluator) Run(ctx context.Context, questions []Question) (*Report, error) {
	report := &Report{Summary: make(map[string]ProviderSummary)}
	byProvider := make(map[string][]Record)

	for i, q := range questions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e.log.WithFields(logrus.Fields{
			"question": i + 1,
			"total":    len(questions),
		}).Info("evaluating question")

		responses, err := e.qa.ProcessQuery(ctx, q.Question, "")
		if err != nil {
			report.Failures = append(report.Failures, Failure{
				QuestionID: i,
				Question:   q.Question,
				Reason:     err.Error(),
			})
			continue
		}
		if len(responses) == 0 {
			report.Failures = append(report.Failures, Failure{
				QuestionID: i,
				Question:   q.Question,
				Reason:     "no responses generated",
			})
			continue
		}

		for _, resp := range responses {
			record := e.scoreResponse(i, q, resp)
			report.Records = append(report.Records, record)
			byProvider[record.Provider] = append(byProvider[record.Provider], record)
		}
	}

	for provider, records := range byProvider {
		report.Summary[provider] = summarize(records)
	}
	return report, nil
}

func (e *Evaluator) scoreResponse(questionID int, q Question, resp services.ProviderResponse) Record {
	return Record{
		QuestionID:            questionID,
		Question:              q.Question,
		ExpectedSources:       q.ExpectedSources,
		Category:              q.Category,
		Difficulty:            q.Difficulty,
		Provider:              resp.ProviderName,
		SemanticSimilarity:    e.scorer.Score(resp.Answer, ""),
		CitationCoverage:      CitationCoverage(resp.Sources, q.ExpectedSources),
		PrecisionAtK:          PrecisionAtK(resp.Sources, q.ExpectedSources, e.k),
		HasProperCitations:    HasProperCitations(resp.Answer),
		Abstained:             Abstained(resp.Answer),
		AbstentionAppropriate: len(resp.Sources) == 0,
		TokensUsed:            resp.TokensUsed,
		Latency:               resp.Latency,
		Cost:                  resp.Cost,
	}
}

func summarize(records []Record) ProviderSummary {
	n := len(records)
	if n == 0 {
		return ProviderSummary{}
	}

	var s ProviderSummary
	s.Questions = n
	citations, abstentions := 0, 0
	for _, r := range records {
		s.AvgSemanticSimilarity += r.SemanticSimilarity
		s.AvgCitationCoverage += r.CitationCoverage
		s.AvgPrecisionAtK += r.PrecisionAtK
		s.AvgLatency += r.Latency
		s.TotalCost += r.Cost
		s.TotalTokens += r.TokensUsed
		if r.HasProperCitations {
			citations++
		}
		if r.Abstained {
			abstentions++
		}
	}
	fn := float64(n)
	s.AvgSemanticSimilarity /= fn
	s.AvgCitationCoverage /= fn
	s.AvgPrecisionAtK /= fn
	s.AvgLatency /= fn
	s.CitationRate = float64(citations) / fn
	s.AbstentionRate = float64(abstentions) / fn
	s.CostPerQuestion = s.TotalCost / fn
	return s
}

var detailedColumns = []string{
	"question_id", "question", "expected_sources", "category", "difficulty",
	"provider", "semantic_similarity", "citation_coverage", "precision_at_k",
	"has_proper_citations", "abstained", "abstention_appropriate",
	"tokens_used", "latency", "cost",
}

// WriteDetailedCSV writes one row per scored (question, provider) pair.
func (r *Report) WriteDetailedCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(detailedColumns); err != nil {
		return err
	}
	for _, rec := range r.Records {
		row := []string{
			strconv.Itoa(rec.QuestionID),
			rec.Question,
			strings.Join(rec.ExpectedSources, ","),
			rec.Category,
			rec.Difficulty,
			rec.Provider,
			formatFloat(rec.SemanticSimilarity),
			formatFloat(rec.CitationCoverage),
			formatFloat(rec.PrecisionAtK),
			strconv.FormatBool(rec.HasProperCitations),
			strconv.FormatBool(rec.Abstained),
			strconv.FormatBool(rec.AbstentionAppropriate),
			strconv.Itoa(rec.TokensUsed),
			formatFloat(rec.Latency),
			formatFloat(rec.Cost),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSummaryJSON writes the per-provider summary.
func (r *Report) WriteSummaryJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r.Summary)
}

// PrintSummary writes a human-readable summary table.
func (r *Report) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "RESUMEN DE EVALUACIÓN")
	fmt.Fprintln(w, strings.Repeat("=", 60))

	providers := make([]string, 0, len(r.Summary))
	for provider := range r.Summary {
		providers = append(providers, provider)
	}
	sort.Strings(providers)

	for _, provider := range providers {
		s := r.Summary[provider]
		fmt.Fprintf(w, "\n%s:\n", provider)
		fmt.Fprintf(w, "  Preguntas: %d\n", s.Questions)
		fmt.Fprintf(w, "  Similitud Semántica: %.3f\n", s.AvgSemanticSimilarity)
		fmt.Fprintf(w, "  Cobertura de Citas: %.3f\n", s.AvgCitationCoverage)
		fmt.Fprintf(w, "  Precisión@K: %.3f\n", s.AvgPrecisionAtK)
		fmt.Fprintf(w, "  Tasa de Citas: %.3f\n", s.CitationRate)
		fmt.Fprintf(w, "  Tasa de Abstención: %.3f\n", s.AbstentionRate)
		fmt.Fprintf(w, "  Latencia Promedio: %.3fs\n", s.AvgLatency)
		fmt.Fprintf(w, "  Costo Total: $%.4f\n", s.TotalCost)
		fmt.Fprintf(w, "  Costo por Pregunta: $%.4f\n", s.CostPerQuestion)
		fmt.Fprintf(w, "  Tokens Totales: %d\n", s.TotalTokens)
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(w, "\nPreguntas fallidas: %d\n", len(r.Failures))
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
