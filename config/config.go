package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Storage   StorageConfig    `mapstructure:"storage"`
	VectorDB  VectorDBConfig   `mapstructure:"vectordb"`
	Embedding EmbeddingConfig  `mapstructure:"embedding"`
	Providers []ProviderConfig `mapstructure:"providers"`
	Document  DocumentConfig   `mapstructure:"document"`
	Search    SearchConfig     `mapstructure:"search"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Eval      EvalConfig       `mapstructure:"eval"`
	Logging   LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StorageConfig selects where the raw corpus lives: local or minio.
type StorageConfig struct {
	Type      string `mapstructure:"type"`
	Path      string `mapstructure:"path"`     // corpus directory for local
	Manifest  string `mapstructure:"manifest"` // manifest CSV path
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// VectorDBConfig selects the vector index implementation: flat or faiss.
type VectorDBConfig struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
	Dim  int    `mapstructure:"dim"`
}

// EmbeddingConfig holds the embedding client settings.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	BatchSize  int    `mapstructure:"batch_size"`
	Dimensions int    `mapstructure:"dimensions"`
}

// ProviderConfig describes one LLM answer backend.
type ProviderConfig struct {
	ID          string  `mapstructure:"id"`
	Type        string  `mapstructure:"type"` // registry name: chatgpt or deepseek
	DisplayName string  `mapstructure:"display_name"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	Endpoint    string  `mapstructure:"endpoint"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// DocumentConfig holds chunking settings.
type DocumentConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	MinChunkLen  int `mapstructure:"min_chunk_len"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	Limit int `mapstructure:"limit"`
}

// CacheConfig holds answer cache settings.
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Type     string `mapstructure:"type"` // memory or redis
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl"` // seconds
}

// DatabaseConfig holds the metadata store settings.
type DatabaseConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// EvalConfig holds evaluation run settings.
type EvalConfig struct {
	QuestionSet string `mapstructure:"question_set"`
	OutputDir   string `mapstructure:"output_dir"`
	PrecisionK  int    `mapstructure:"precision_k"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or text
	File       string `mapstructure:"file"`   // empty for stdout only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// CacheTTL returns the answer cache TTL as a duration.
func (c CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// Load reads configuration from a YAML file with environment variable
// overrides. A missing file is not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	expandEnvironment(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// expandEnvironment resolves ${VAR} references in secret-bearing fields.
func expandEnvironment(cfg *Config) {
	cfg.Embedding.APIKey = expandEnvVar(cfg.Embedding.APIKey)
	cfg.Storage.AccessKey = expandEnvVar(cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = expandEnvVar(cfg.Storage.SecretKey)
	cfg.Cache.Password = expandEnvVar(cfg.Cache.Password)
	for i := range cfg.Providers {
		cfg.Providers[i].APIKey = expandEnvVar(cfg.Providers[i].APIKey)
	}
}

func expandEnvVar(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		if envVal := os.Getenv(value[2 : len(value)-1]); envVal != "" {
			return envVal
		}
	}
	return value
}

func validate(cfg *Config) error {
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("no answer providers configured")
	}
	seen := make(map[string]struct{}, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider with empty id")
		}
		id := strings.ToLower(p.ID)
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate provider id %q", p.ID)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./corpus")
	v.SetDefault("storage.manifest", "./corpus/manifest.csv")
	v.SetDefault("storage.bucket", "normaqa")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("vectordb.type", "flat")
	v.SetDefault("vectordb.path", "./data/index")
	v.SetDefault("vectordb.dim", 1536)

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.batch_size", 64)
	v.SetDefault("embedding.dimensions", 1536)

	v.SetDefault("document.chunk_size", 900)
	v.SetDefault("document.chunk_overlap", 120)
	v.SetDefault("document.min_chunk_len", 50)

	v.SetDefault("search.limit", 8)

	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 3600)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/norma.db")

	v.SetDefault("eval.question_set", "./eval/questions.csv")
	v.SetDefault("eval.output_dir", "./eval/results")
	v.SetDefault("eval.precision_k", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}
