package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ufro-labs/norma-qa/api"
	"github.com/ufro-labs/norma-qa/api/handler"
	"github.com/ufro-labs/norma-qa/api/middleware"
	appconfig "github.com/ufro-labs/norma-qa/config"
	"github.com/ufro-labs/norma-qa/internal/cache"
	"github.com/ufro-labs/norma-qa/internal/database"
	"github.com/ufro-labs/norma-qa/internal/document"
	"github.com/ufro-labs/norma-qa/internal/embedding"
	"github.com/ufro-labs/norma-qa/internal/eval"
	"github.com/ufro-labs/norma-qa/internal/llm"
	"github.com/ufro-labs/norma-qa/internal/repository"
	"github.com/ufro-labs/norma-qa/internal/services"
	"github.com/ufro-labs/norma-qa/internal/vectordb"
	"github.com/ufro-labs/norma-qa/pkg/storage"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to config file")
		mode       = flag.String("mode", "interactive", "run mode: build-index, interactive, batch, serve")
		ginMode    = flag.String("gin-mode", gin.ReleaseMode, "gin mode for serve (debug/release)")
	)
	flag.Parse()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := setupLogger(cfg.Logging)
	middleware.SetLogger(log)
	log.WithField("mode", *mode).Info("Starting norma-qa")

	if err := setupDatabase(cfg, log); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	store, err := setupStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	index, err := setupVectorDB(cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize vector index: %v", err)
	}
	defer index.Close()

	embedder, err := setupEmbedding(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize embedding client: %v", err)
	}

	providers, err := setupProviders(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize answer providers: %v", err)
	}

	docs := repository.NewDocumentRepository()

	switch *mode {
	case "build-index":
		runBuildIndex(cfg, store, embedder, index, docs, log)
	case "batch":
		runEvaluation(cfg, embedder, index, providers, log)
	case "interactive":
		runInteractive(cfg, embedder, index, providers, log)
	case "serve":
		gin.SetMode(*ginMode)
		runServer(cfg, embedder, index, providers, docs, log)
	default:
		log.Fatalf("Unknown mode %q", *mode)
	}
}

// setupLogger builds the application logger from config: JSON or text
// format, optional rotated file output.
func setupLogger(cfg appconfig.LoggingConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stdout, rotated))
	}
	return log
}

func setupDatabase(cfg *appconfig.Config, log *logrus.Logger) error {
	return database.Setup(&database.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.DSN,
	}, log)
}

func setupStorage(cfg *appconfig.Config) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "minio":
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		})
	default:
		return storage.NewLocalStorage(storage.LocalConfig{
			Path: cfg.Storage.Path,
		})
	}
}

func setupVectorDB(cfg *appconfig.Config, log *logrus.Logger) (vectordb.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.VectorDB.Path), 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	index, err := vectordb.NewRepository(vectordb.Config{
		Type:      cfg.VectorDB.Type,
		Path:      cfg.VectorDB.Path,
		Dimension: cfg.VectorDB.Dim,
	})
	if err != nil && cfg.VectorDB.Type == "faiss" {
		log.WithError(err).Warn("faiss index unavailable, falling back to flat index")
		return vectordb.NewRepository(vectordb.Config{
			Type:      "flat",
			Path:      cfg.VectorDB.Path,
			Dimension: cfg.VectorDB.Dim,
		})
	}
	return index, err
}

func setupEmbedding(cfg *appconfig.Config) (embedding.Client, error) {
	return embedding.NewClient(cfg.Embedding.Provider,
		embedding.WithAPIKey(cfg.Embedding.APIKey),
		embedding.WithBaseURL(cfg.Embedding.Endpoint),
		embedding.WithModel(cfg.Embedding.Model),
		embedding.WithDimensions(cfg.Embedding.Dimensions),
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
	)
}

func setupProviders(cfg *appconfig.Config) ([]llm.Client, error) {
	providers := make([]llm.Client, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		opts := []llm.Option{
			llm.WithID(p.ID),
			llm.WithDisplayName(p.DisplayName),
			llm.WithAPIKey(p.APIKey),
		}
		if p.Model != "" {
			opts = append(opts, llm.WithModel(p.Model))
		}
		if p.Endpoint != "" {
			opts = append(opts, llm.WithBaseURL(p.Endpoint))
		}
		if p.MaxTokens > 0 {
			opts = append(opts, llm.WithMaxTokens(p.MaxTokens))
		}
		if p.Temperature > 0 {
			opts = append(opts, llm.WithTemperature(p.Temperature))
		}

		client, err := llm.NewClient(p.Type, opts...)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.ID, err)
		}
		providers = append(providers, client)
	}
	return providers, nil
}

func setupQAService(cfg *appconfig.Config, embedder embedding.Client, index vectordb.Repository, providers []llm.Client, log *logrus.Logger, extra ...services.QAOption) (*services.QAService, error) {
	opts := []services.QAOption{
		services.WithSearchLimit(cfg.Search.Limit),
	}
	if cfg.Cache.Enable {
		cacheConfig := cache.DefaultConfig()
		cacheConfig.Type = cfg.Cache.Type
		cacheConfig.RedisAddr = cfg.Cache.Address
		cacheConfig.RedisPassword = cfg.Cache.Password
		cacheConfig.RedisDB = cfg.Cache.DB
		cacheConfig.DefaultTTL = cfg.Cache.CacheTTL()
		answerCache, err := cache.NewCache(cacheConfig)
		if err != nil {
			return nil, fmt.Errorf("answer cache: %w", err)
		}
		opts = append(opts, services.WithAnswerCache(answerCache, cfg.Cache.CacheTTL()))
	}
	opts = append(opts, extra...)
	return services.NewQAService(embedder, index, providers, log, opts...)
}

func loadIndex(index vectordb.Repository, log *logrus.Logger) {
	if err := index.Load(); err != nil {
		log.WithError(err).Fatal("Failed to load vector index; run with -mode build-index first")
	}
	count, _ := index.Count()
	log.WithField("segments", count).Info("Vector index loaded")
}

func runBuildIndex(cfg *appconfig.Config, store storage.Storage, embedder embedding.Client, index vectordb.Repository, docs repository.DocumentRepository, log *logrus.Logger) {
	chunker, err := document.NewChunker(document.ChunkerConfig{
		ChunkSize:    cfg.Document.ChunkSize,
		ChunkOverlap: cfg.Document.ChunkOverlap,
		MinChunkLen:  cfg.Document.MinChunkLen,
	})
	if err != nil {
		log.Fatalf("Invalid chunker settings: %v", err)
	}

	ingest, err := services.NewIngestService(store, embedder, index, docs, log,
		services.WithChunker(chunker),
		services.WithIndexInfo(cfg.VectorDB.Type, cfg.Embedding.Model),
	)
	if err != nil {
		log.Fatalf("Failed to initialize ingest service: %v", err)
	}

	report, err := ingest.BuildIndex(context.Background(), cfg.Storage.Manifest)
	if err != nil {
		log.Fatalf("Index build failed: %v", err)
	}

	fmt.Printf("Indexed %d documents (%d chunks, dimension %d), %d failed\n",
		report.Documents, report.Chunks, report.Dimension, report.Failed)
}

func runEvaluation(cfg *appconfig.Config, embedder embedding.Client, index vectordb.Repository, providers []llm.Client, log *logrus.Logger) {
	loadIndex(index, log)

	// Evaluation always hits the live backends.
	qa, err := setupQAService(cfg, embedder, index, providers, log, services.WithCacheBypass())
	if err != nil {
		log.Fatalf("Failed to initialize QA service: %v", err)
	}

	questions, err := eval.LoadQuestionSet(cfg.Eval.QuestionSet)
	if err != nil {
		log.Fatalf("Failed to load question set: %v", err)
	}

	evaluator, err := eval.NewEvaluator(qa, log, eval.WithPrecisionK(cfg.Eval.PrecisionK))
	if err != nil {
		log.Fatalf("Failed to initialize evaluator: %v", err)
	}

	report, err := evaluator.Run(context.Background(), questions)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	if err := saveEvalReport(report, cfg.Eval.OutputDir); err != nil {
		log.Fatalf("Failed to save evaluation results: %v", err)
	}
	report.PrintSummary(os.Stdout)
	fmt.Printf("\nResultados guardados en %s\n", cfg.Eval.OutputDir)
}

func saveEvalReport(report *eval.Report, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	detailed, err := os.Create(filepath.Join(outputDir, "results_detailed.csv"))
	if err != nil {
		return err
	}
	defer detailed.Close()
	if err := report.WriteDetailedCSV(detailed); err != nil {
		return err
	}

	summary, err := os.Create(filepath.Join(outputDir, "results_summary.json"))
	if err != nil {
		return err
	}
	defer summary.Close()
	return report.WriteSummaryJSON(summary)
}

func runServer(cfg *appconfig.Config, embedder embedding.Client, index vectordb.Repository, providers []llm.Client, docs repository.DocumentRepository, log *logrus.Logger) {
	loadIndex(index, log)

	qa, err := setupQAService(cfg, embedder, index, providers, log)
	if err != nil {
		log.Fatalf("Failed to initialize QA service: %v", err)
	}

	router := api.SetupRouter(handler.NewQAHandler(qa), handler.NewDocumentHandler(docs))
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Info("Server exited")
}

func runInteractive(cfg *appconfig.Config, embedder embedding.Client, index vectordb.Repository, providers []llm.Client, log *logrus.Logger) {
	loadIndex(index, log)

	qa, err := setupQAService(cfg, embedder, index, providers, log)
	if err != nil {
		log.Fatalf("Failed to initialize QA service: %v", err)
	}

	fmt.Println("Sistema de preguntas sobre normativa UFRO")
	fmt.Println("Comandos: /compare <pregunta> para comparar backends,")
	for _, p := range providers {
		fmt.Printf("          /%s <pregunta> para usar solo %s,\n", strings.ToLower(p.ID()), p.Name())
	}
	fmt.Println("          salir para terminar.")

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "salir" || line == "exit" {
			break
		}

		question, providerID, compare := parseCommand(line, providers)
		if question == "" {
			fmt.Println("Escribe una pregunta después del comando.")
			continue
		}

		if compare {
			byName, err := qa.Compare(ctx, question)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			for name, resp := range byName {
				printAnswer(name, resp)
			}
			continue
		}

		responses, err := qa.ProcessQuery(ctx, question, providerID)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		if len(responses) == 0 {
			fmt.Println("Ningún backend respondió.")
			continue
		}
		for _, resp := range responses {
			printAnswer(resp.ProviderName, resp)
		}
	}
}

// parseCommand splits an interactive line into its question, target provider
// and compare flag. Lines starting with /compare or /<provider-id> are
// commands; anything else is a plain question for every backend.
func parseCommand(line string, providers []llm.Client) (question, providerID string, compare bool) {
	if !strings.HasPrefix(line, "/") {
		return line, "", false
	}

	command, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)

	if strings.EqualFold(command, "compare") {
		return rest, "", true
	}
	for _, p := range providers {
		if strings.EqualFold(command, p.ID()) {
			return rest, p.ID(), false
		}
	}
	// Unknown command, treat the whole line as a question.
	return line, "", false
}

func printAnswer(name string, resp services.ProviderResponse) {
	fmt.Printf("\n--- %s ---\n%s\n", name, resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Println("\nFuentes:")
		for _, s := range resp.Sources {
			fmt.Printf("  [%s, página %d] (score %.3f)\n", s.Title, s.Page, s.Score)
		}
	}
	if !resp.Abstained() {
		fmt.Printf("\nTokens: %d | Latencia: %.2fs | Costo: $%.5f\n",
			resp.TokensUsed, resp.Latency, resp.Cost)
	}
}
