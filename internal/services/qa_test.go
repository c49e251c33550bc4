package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufro-labs/norma-qa/internal/cache"
	"github.com/ufro-labs/norma-qa/internal/llm"
	"github.com/ufro-labs/norma-qa/internal/vectordb"
)

// fakeEmbedder returns a fixed unit vector for any input.
type fakeEmbedder struct {
	dim int
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, f.dim)
	vec[0] = 1
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vec, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (f *fakeEmbedder) Name() string { return "fake-embedder" }

func (f *fakeEmbedder) Dimensions() int { return f.dim }

// fakeLLM is a scriptable backend.
type fakeLLM struct {
	id    string
	name  string
	model string
	reply string
	err   error
	delay time.Duration
	calls int32
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, options ...llm.ChatOption) (*llm.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{
		Text:             f.reply,
		ModelName:        f.model,
		PromptTokens:     1000,
		CompletionTokens: 500,
		TotalTokens:      1500,
		FinishTime:       time.Now(),
	}, nil
}

func (f *fakeLLM) ID() string { return f.id }

func (f *fakeLLM) Name() string {
	if f.name != "" {
		return f.name
	}
	return f.id
}

func (f *fakeLLM) Model() string { return f.model }

func (f *fakeLLM) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testIndex(t *testing.T, segments []vectordb.Segment) vectordb.Repository {
	t.Helper()
	repo, err := vectordb.NewRepository(vectordb.Config{Type: "flat", Dimension: 3})
	require.NoError(t, err)
	require.NoError(t, repo.Build(segments))
	return repo
}

func matchingSegments() []vectordb.Segment {
	return []vectordb.Segment{
		{
			ChunkID:  "REG-MAT_p1_c0",
			DocID:    "REG-MAT",
			Title:    "Reglamento de Matrícula",
			Content:  "La matrícula debe renovarse cada semestre según el calendario académico.",
			Page:     1,
			Vigencia: "2024",
			Vector:   []float32{1, 0, 0},
		},
		{
			ChunkID:  "REG-TIT_p3_c1",
			DocID:    "REG-TIT",
			Title:    "Reglamento de Titulación",
			Content:  "El proceso de titulación exige la aprobación de la actividad de tesis.",
			Page:     3,
			Vigencia: "2023",
			Vector:   []float32{0.9, 0.1, 0},
		},
	}
}

func newTestService(t *testing.T, index vectordb.Repository, providers []llm.Client, opts ...QAOption) *QAService {
	t.Helper()
	svc, err := NewQAService(&fakeEmbedder{dim: 3}, index, providers, testLogger(), opts...)
	require.NoError(t, err)
	return svc
}

func TestNewQAService(t *testing.T) {
	index := testIndex(t, matchingSegments())

	t.Run("NoProviders", func(t *testing.T) {
		_, err := NewQAService(&fakeEmbedder{dim: 3}, index, nil, testLogger())
		assert.Error(t, err)
	})

	t.Run("DuplicateIDsIgnoringCase", func(t *testing.T) {
		providers := []llm.Client{
			&fakeLLM{id: "ChatGPT", model: "gpt-4"},
			&fakeLLM{id: "chatgpt", model: "gpt-3.5-turbo"},
		}
		_, err := NewQAService(&fakeEmbedder{dim: 3}, index, providers, testLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate provider ID")
	})

	t.Run("EmptyID", func(t *testing.T) {
		_, err := NewQAService(&fakeEmbedder{dim: 3}, index, []llm.Client{&fakeLLM{}}, testLogger())
		assert.Error(t, err)
	})
}

func TestRewriteQuery(t *testing.T) {
	svc := newTestService(t, testIndex(t, matchingSegments()), []llm.Client{&fakeLLM{id: "a", model: "gpt-4"}})

	t.Run("NormalizesCaseAndSpace", func(t *testing.T) {
		assert.Equal(t, "cuándo son las clases", svc.RewriteQuery("  Cuándo son las CLASES  "))
	})

	t.Run("ExpandsSynonyms", func(t *testing.T) {
		got := svc.RewriteQuery("¿Cómo renuevo mi MATRÍCULA?")
		assert.Equal(t, "¿cómo renuevo mi matrícula? matricula inscripción", got)
	})

	t.Run("MultipleTriggersInOrder", func(t *testing.T) {
		got := svc.RewriteQuery("calendario de matrícula")
		assert.Equal(t, "calendario de matrícula matricula inscripción calendario fechas académico", got)
	})

	t.Run("NoTriggerUnchanged", func(t *testing.T) {
		assert.Equal(t, "horario de biblioteca", svc.RewriteQuery("horario de biblioteca"))
	})
}

func TestRetrieve(t *testing.T) {
	svc := newTestService(t, testIndex(t, matchingSegments()), []llm.Client{&fakeLLM{id: "a", model: "gpt-4"}})

	contextText, sources, err := svc.Retrieve(context.Background(), "matrícula")
	require.NoError(t, err)
	require.Len(t, sources, 2)

	t.Run("ContextBlockFormat", func(t *testing.T) {
		blocks := strings.Split(contextText, "\n\n")
		require.Len(t, blocks, 2)
		assert.Equal(t, "[Reglamento de Matrícula, página 1]: La matrícula debe renovarse cada semestre según el calendario académico.", blocks[0])
		assert.True(t, strings.HasPrefix(blocks[1], "[Reglamento de Titulación, página 3]: "))
	})

	t.Run("SourcesRankedBySimilarity", func(t *testing.T) {
		assert.Equal(t, "REG-MAT", sources[0].DocID)
		assert.Equal(t, "REG-TIT", sources[1].DocID)
		assert.Greater(t, sources[0].Score, sources[1].Score)
	})

	t.Run("SourceMetadata", func(t *testing.T) {
		assert.Equal(t, "Reglamento de Matrícula", sources[0].Title)
		assert.Equal(t, 1, sources[0].Page)
		assert.Equal(t, "2024", sources[0].Vigencia)
	})
}

func TestRetrieveTruncatesLongPreviews(t *testing.T) {
	long := strings.Repeat("ñ", 400)
	segments := []vectordb.Segment{{
		ChunkID: "DOC_p1_c0",
		DocID:   "DOC",
		Title:   "Reglamento",
		Content: long,
		Page:    1,
		Vector:  []float32{1, 0, 0},
	}}
	svc := newTestService(t, testIndex(t, segments), []llm.Client{&fakeLLM{id: "a", model: "gpt-4"}})

	contextText, sources, err := svc.Retrieve(context.Background(), "pregunta")
	require.NoError(t, err)
	require.Len(t, sources, 1)

	assert.Equal(t, strings.Repeat("ñ", 300)+"...", sources[0].Content)
	assert.Contains(t, contextText, long, "context keeps the full chunk text")
}

func TestProcessQueryAbstainsWithoutEvidence(t *testing.T) {
	backend := &fakeLLM{id: "chatgpt", reply: "should not be used", model: "gpt-4"}
	svc := newTestService(t, testIndex(t, nil), []llm.Client{backend})

	responses, err := svc.ProcessQuery(context.Background(), "¿pregunta sin respuesta?", "")
	require.NoError(t, err)
	require.Len(t, responses, 1)

	resp := responses[0]
	assert.Equal(t, AbstentionAnswer, resp.Answer)
	assert.Equal(t, AbstentionProvider, resp.ProviderName)
	assert.Empty(t, resp.Sources)
	assert.Zero(t, resp.TokensUsed)
	assert.Zero(t, resp.Cost)
	assert.Zero(t, resp.Latency)
	assert.True(t, resp.Abstained())
	assert.Equal(t, 0, backend.callCount(), "no backend call on abstention")
}

func TestProcessQuerySelectsProviderByID(t *testing.T) {
	alpha := &fakeLLM{id: "alpha", name: "Alpha", reply: "respuesta alpha", model: "gpt-4"}
	beta := &fakeLLM{id: "beta", name: "Beta", reply: "respuesta beta", model: "deepseek-chat"}
	svc := newTestService(t, testIndex(t, matchingSegments()), []llm.Client{alpha, beta})

	t.Run("CaseInsensitiveMatch", func(t *testing.T) {
		responses, err := svc.ProcessQuery(context.Background(), "matrícula", "ALPHA")
		require.NoError(t, err)
		require.Len(t, responses, 1)
		assert.Equal(t, "alpha", responses[0].ProviderID)
		assert.Equal(t, "respuesta alpha", responses[0].Answer)
	})

	t.Run("UnknownIDYieldsNothing", func(t *testing.T) {
		responses, err := svc.ProcessQuery(context.Background(), "matrícula", "gamma")
		require.NoError(t, err)
		assert.Empty(t, responses)
	})

	t.Run("EmptyIDAsksEveryone", func(t *testing.T) {
		responses, err := svc.ProcessQuery(context.Background(), "titulación", "")
		require.NoError(t, err)
		assert.Len(t, responses, 2)
	})
}

func TestProcessQueryDropsFailedProviders(t *testing.T) {
	alpha := &fakeLLM{id: "alpha", name: "Alpha", reply: "respuesta", model: "gpt-4"}
	broken := &fakeLLM{id: "beta", name: "Beta", err: fmt.Errorf("upstream unavailable"), model: "deepseek-chat"}
	svc := newTestService(t, testIndex(t, matchingSegments()), []llm.Client{alpha, broken})

	responses, err := svc.ProcessQuery(context.Background(), "matrícula", "")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "alpha", responses[0].ProviderID)
}

func TestProcessQueryTimesOutSlowProviders(t *testing.T) {
	fast := &fakeLLM{id: "fast", reply: "rápida", model: "gpt-4"}
	slow := &fakeLLM{id: "slow", reply: "lenta", model: "gpt-4", delay: 200 * time.Millisecond}
	svc := newTestService(t, testIndex(t, matchingSegments()), []llm.Client{fast, slow},
		WithCallTimeout(20*time.Millisecond))

	responses, err := svc.ProcessQuery(context.Background(), "matrícula", "")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "fast", responses[0].ProviderID)
}

func TestProcessQueryAccounting(t *testing.T) {
	backend := &fakeLLM{id: "chatgpt", name: "ChatGPT", reply: "respuesta", model: "gpt-3.5-turbo"}
	svc := newTestService(t, testIndex(t, matchingSegments()), []llm.Client{backend})

	responses, err := svc.ProcessQuery(context.Background(), "matrícula", "")
	require.NoError(t, err)
	require.Len(t, responses, 1)

	resp := responses[0]
	assert.Equal(t, 1500, resp.TokensUsed)
	// 1000 prompt tokens at 0.001/1K plus 500 completion tokens at 0.002/1K.
	assert.InDelta(t, 0.002, resp.Cost, 1e-9)
	assert.GreaterOrEqual(t, resp.Latency, 0.0)
	assert.Equal(t, "gpt-3.5-turbo", resp.Model)
	require.Len(t, resp.Sources, 2)
}

func TestCompareKeysByDisplayName(t *testing.T) {
	alpha := &fakeLLM{id: "alpha", name: "Alpha", reply: "a", model: "gpt-4"}
	beta := &fakeLLM{id: "beta", name: "Beta", reply: "b", model: "deepseek-chat"}
	svc := newTestService(t, testIndex(t, matchingSegments()), []llm.Client{alpha, beta})

	t.Run("TwoBackends", func(t *testing.T) {
		byName, err := svc.Compare(context.Background(), "matrícula")
		require.NoError(t, err)
		require.Len(t, byName, 2)
		assert.Equal(t, "a", byName["Alpha"].Answer)
		assert.Equal(t, "b", byName["Beta"].Answer)
	})

	t.Run("SingleBackend", func(t *testing.T) {
		solo := newTestService(t, testIndex(t, matchingSegments()), []llm.Client{
			&fakeLLM{id: "alpha", name: "Alpha", reply: "única", model: "gpt-4"},
		})
		byName, err := solo.Compare(context.Background(), "matrícula")
		require.NoError(t, err)
		require.Len(t, byName, 1)
		assert.Equal(t, "única", byName["Alpha"].Answer)
	})

	t.Run("AbstentionKeyedAsSystem", func(t *testing.T) {
		empty := newTestService(t, testIndex(t, nil), []llm.Client{alpha})
		byName, err := empty.Compare(context.Background(), "sin evidencia")
		require.NoError(t, err)
		require.Len(t, byName, 1)
		assert.Equal(t, AbstentionAnswer, byName[AbstentionProvider].Answer)
	})
}

func TestAnswerCache(t *testing.T) {
	newCache := func(t *testing.T) cache.Cache {
		c, err := cache.NewMemoryCache(cache.DefaultConfig())
		require.NoError(t, err)
		return c
	}

	t.Run("SecondCallIsCached", func(t *testing.T) {
		backend := &fakeLLM{id: "chatgpt", name: "ChatGPT", reply: "respuesta", model: "gpt-4"}
		svc := newTestService(t, testIndex(t, matchingSegments()), []llm.Client{backend},
			WithAnswerCache(newCache(t), time.Minute))

		first, err := svc.ProcessQuery(context.Background(), "matrícula", "")
		require.NoError(t, err)
		require.Len(t, first, 1)
		assert.False(t, first[0].Cached)

		second, err := svc.ProcessQuery(context.Background(), "matrícula", "")
		require.NoError(t, err)
		require.Len(t, second, 1)
		assert.True(t, second[0].Cached)
		assert.Equal(t, first[0].Answer, second[0].Answer)
		assert.Equal(t, 1, backend.callCount())
	})

	t.Run("BypassSkipsCache", func(t *testing.T) {
		backend := &fakeLLM{id: "chatgpt", name: "ChatGPT", reply: "respuesta", model: "gpt-4"}
		svc := newTestService(t, testIndex(t, matchingSegments()), []llm.Client{backend},
			WithAnswerCache(newCache(t), time.Minute), WithCacheBypass())

		for i := 0; i < 2; i++ {
			_, err := svc.ProcessQuery(context.Background(), "matrícula", "")
			require.NoError(t, err)
		}
		assert.Equal(t, 2, backend.callCount())
	})
}
