package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Pages     PagesConfig     `mapstructure:"pages"`
	Pedimento PedimentoConfig `mapstructure:"pedimento"`
	Tariff    TariffConfig    `mapstructure:"tariff"`
	Catalogs  CatalogsConfig  `mapstructure:"catalogs"`
	Review    ReviewConfig    `mapstructure:"review"`
	Server    ServerConfig    `mapstructure:"server"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Log       LogConfig       `mapstructure:"log"`
}

// LLMConfig holds adjudicator-related configuration
type LLMConfig struct {
	Model          string        `mapstructure:"model"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Temperature    float32       `mapstructure:"temperature"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// PagesConfig holds the external text/OCR tooling
type PagesConfig struct {
	Pdftotext    string `mapstructure:"pdftotext"`
	Pdftoppm     string `mapstructure:"pdftoppm"`
	Tesseract    string `mapstructure:"tesseract"`
	TessLang     string `mapstructure:"tess_lang"`
	DPI          int    `mapstructure:"dpi"`
	MinPageChars int    `mapstructure:"min_page_chars"`
}

// PedimentoConfig tunes the section extractor
type PedimentoConfig struct {
	ProbePages int `mapstructure:"probe_pages"`
}

// TariffConfig points at the tariff / exchange-rate store; empty DSN disables lookups
type TariffConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	LookupTimeout   time.Duration `mapstructure:"lookup_timeout"`
}

// CatalogsConfig lists reference catalog files (XLSX or JSON)
type CatalogsConfig struct {
	Paths []string `mapstructure:"paths"`
}

// ReviewConfig controls a single expediente review
type ReviewConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	ClassifyBy string        `mapstructure:"classify_by"`
}

// ServerConfig holds daemon-related configuration
type ServerConfig struct {
	GRPCAddr    string `mapstructure:"grpc_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	InboxDir    string `mapstructure:"inbox_dir"`
	OutboxDir   string `mapstructure:"outbox_dir"`
}

// QueueConfig sizes the batch worker queue
type QueueConfig struct {
	Workers int `mapstructure:"workers"`
	Size    int `mapstructure:"size"`
}

// LogConfig selects the slog level and handler
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout", 90*time.Second)
	v.SetDefault("llm.max_concurrency", 8)

	v.SetDefault("pages.pdftotext", "pdftotext")
	v.SetDefault("pages.pdftoppm", "pdftoppm")
	v.SetDefault("pages.tesseract", "tesseract")
	v.SetDefault("pages.tess_lang", "spa+eng")
	v.SetDefault("pages.dpi", 300)
	v.SetDefault("pages.min_page_chars", 40)

	v.SetDefault("pedimento.probe_pages", 3)

	v.SetDefault("tariff.dsn", "")
	v.SetDefault("tariff.max_conns", 10)
	v.SetDefault("tariff.min_conns", 1)
	v.SetDefault("tariff.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("tariff.dial_timeout", 3*time.Second)
	v.SetDefault("tariff.lookup_timeout", 5*time.Second)

	v.SetDefault("catalogs.paths", []string{})

	v.SetDefault("review.timeout", 15*time.Minute)
	v.SetDefault("review.classify_by", "llm")

	v.SetDefault("server.grpc_addr", ":8080")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.inbox_dir", "")
	v.SetDefault("server.outbox_dir", "")

	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.size", 64)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig loads configuration from defaults, an optional YAML/JSON file and the environment.
// Environment keys use the GLOSA_ prefix (GLOSA_LLM_MODEL, GLOSA_TARIFF_DSN, ...); the API key
// also honors OPENAI_API_KEY.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GLOSA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "GLOSA_LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("llm.model", "GLOSA_LLM_MODEL", "OPENAI_MODEL"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read config file "+path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "decode config", err)
	}
	return &cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "llm.api_key (OPENAI_API_KEY) is required", ErrInvalidInput)
	}
	if c.LLM.MaxConcurrency <= 0 {
		return NewAppError("CONFIG_ERROR", "llm.max_concurrency must be positive", ErrInvalidInput)
	}
	if c.Pedimento.ProbePages <= 0 {
		return NewAppError("CONFIG_ERROR", "pedimento.probe_pages must be positive", ErrInvalidInput)
	}
	switch c.Review.ClassifyBy {
	case "llm", "manifest":
	default:
		return NewAppError("CONFIG_ERROR", "review.classify_by must be llm or manifest", ErrInvalidInput)
	}
	return nil
}
