// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Index, Analyzer, Search, Corpus, Batch, Redis, Logging, Metrics).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Index    IndexConfig    `yaml:"index"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Search   SearchConfig   `yaml:"search"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Batch    BatchConfig    `yaml:"batch"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// IndexConfig controls where the persisted index lives and how a build
// treats an existing sealed index at that location.
type IndexConfig struct {
	Dir         string `yaml:"dir"`
	Overwrite   bool   `yaml:"overwrite"`
	LogInterval int    `yaml:"logInterval"`
}

// AnalyzerConfig selects the analyzer variant by language tag.
type AnalyzerConfig struct {
	Language string `yaml:"language"`
	Stemming bool   `yaml:"stemming"`
}

// SearchConfig holds BM25 parameters and the field queries run against.
type SearchConfig struct {
	Field string  `yaml:"field"`
	K1    float64 `yaml:"k1"`
	B     float64 `yaml:"b"`
	TopN  int     `yaml:"topN"`
}

// CorpusConfig describes the raw document collection fed to the indexer.
type CorpusConfig struct {
	DocPath          string `yaml:"docPath"`
	Extension        string `yaml:"extension"`
	TitlePlaceholder string `yaml:"titlePlaceholder"`
}

// SplitConfig is one input/output TSV pair processed by the batch driver.
type SplitConfig struct {
	Name   string `yaml:"name"`
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// BatchConfig controls the question augmentation driver.
type BatchConfig struct {
	Splits          []SplitConfig `yaml:"splits"`
	RefineSentences bool          `yaml:"refineSentences"`
	RefineTopK      int           `yaml:"refineTopK"`
}

// RedisConfig holds Redis connection and caching parameters. The cache is
// optional; when disabled every lookup goes straight to the searcher.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
	// ConnectAttempts bounds the PINGs made before giving up at startup.
	ConnectAttempts int `yaml:"connectAttempts"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values, or a configuration error if the result does not validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrConfiguration, "reading config file %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Newf(apperrors.ErrConfiguration, "parsing config file %s: %v", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with the defaults used for local runs.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			Dir:         "data/index",
			LogInterval: 10000,
		},
		Analyzer: AnalyzerConfig{
			Language: "zh",
			Stemming: true,
		},
		Search: SearchConfig{
			Field: "content",
			K1:    1.2,
			B:     0.75,
			TopN:  1,
		},
		Corpus: CorpusConfig{
			DocPath:          "data/wiki",
			Extension:        "txt",
			TitlePlaceholder: "r",
		},
		Batch: BatchConfig{
			Splits: []SplitConfig{
				{Name: "test", Input: "lin_test.tsv", Output: "searched_lin_test.tsv"},
				{Name: "train", Input: "lin_train.tsv", Output: "searched_lin_train.tsv"},
				{Name: "dev", Input: "lin_dev.tsv", Output: "searched_lin_dev.tsv"},
			},
			RefineTopK: 3,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			PoolSize:        10,
			CacheTTL:        10 * time.Minute,
			ConnectAttempts: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// Validate checks value ranges. Language tags are checked by the analyzer
// registry, which is the only place that knows the supported set.
func (c *Config) Validate() error {
	if c.Index.Dir == "" {
		return apperrors.New(apperrors.ErrConfiguration, "index.dir must not be empty")
	}
	if c.Analyzer.Language == "" {
		return apperrors.New(apperrors.ErrConfiguration, "analyzer.language must not be empty")
	}
	if c.Search.Field == "" {
		return apperrors.New(apperrors.ErrConfiguration, "search.field must not be empty")
	}
	if c.Search.K1 < 0 {
		return apperrors.Newf(apperrors.ErrConfiguration, "search.k1 must be >= 0, got %v", c.Search.K1)
	}
	if c.Search.B < 0 || c.Search.B > 1 {
		return apperrors.Newf(apperrors.ErrConfiguration, "search.b must be within [0,1], got %v", c.Search.B)
	}
	if c.Search.TopN < 0 {
		return apperrors.Newf(apperrors.ErrConfiguration, "search.topN must be >= 0, got %d", c.Search.TopN)
	}
	if c.Batch.RefineSentences && c.Batch.RefineTopK <= 0 {
		return apperrors.Newf(apperrors.ErrConfiguration, "batch.refineTopK must be > 0 when refinement is on, got %d", c.Batch.RefineTopK)
	}
	return nil
}

// applyEnvOverrides reads PS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PS_INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
	if v := os.Getenv("PS_INDEX_OVERWRITE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Index.Overwrite = b
		}
	}
	if v := os.Getenv("PS_ANALYZER_LANGUAGE"); v != "" {
		cfg.Analyzer.Language = strings.ToLower(v)
	}
	if v := os.Getenv("PS_SEARCH_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.K1 = f
		}
	}
	if v := os.Getenv("PS_SEARCH_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.B = f
		}
	}
	if v := os.Getenv("PS_CORPUS_DOC_PATH"); v != "" {
		cfg.Corpus.DocPath = v
	}
	if v := os.Getenv("PS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("PS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("PS_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
			cfg.Metrics.Enabled = true
		}
	}
}
