package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the askweb service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	History   HistoryConfig   `mapstructure:"history"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug bool   `mapstructure:"debug"`
	Env   string `mapstructure:"env"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	CookieDomain string        `mapstructure:"cookie_domain"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (s ServerConfig) Normalize() ServerConfig {
	s.Address = strings.TrimSpace(s.Address)
	if s.Address == "" {
		s.Address = ":10001"
	}
	if s.Address[0] != ':' && !strings.Contains(s.Address, ":") {
		s.Address = ":" + s.Address
	}
	if len(s.AllowOrigins) == 0 {
		s.AllowOrigins = []string{"*"}
	}
	return s
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string        `mapstructure:"level"`  // debug, info, warn, error
	Format string        `mapstructure:"format"` // json, console
	Output string        `mapstructure:"output"` // console, file, both
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures lumberjack rotation when logs go to a file.
type LogFileConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

func (l LogConfig) Normalize() LogConfig {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "json"
	}
	if l.Output == "" {
		l.Output = "console"
	}
	if l.File.Filename == "" {
		l.File.Filename = "logs/askweb.log"
	}
	if l.File.MaxSize <= 0 {
		l.File.MaxSize = 100
	}
	if l.File.MaxAge <= 0 {
		l.File.MaxAge = 30
	}
	return l
}

func (l LogConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	if l.Format != "json" && l.Format != "console" {
		return fmt.Errorf("log.format must be json or console")
	}
	switch l.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("log.output must be console, file or both")
	}
	return nil
}

// LLMConfig contains the language model provider configuration
type LLMConfig struct {
	Type           string        `mapstructure:"type"` // openai (any OpenAI-compatible endpoint)
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	ChatModel      string        `mapstructure:"chat_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Temperature    float32       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// dashScopeEmbedBatch is the most inputs DashScope's text-embedding-v3 accepts
// in one request on the OpenAI-compatible endpoint.
const dashScopeEmbedBatch = 10

// EmbedBatchLimit returns the per-request input cap of the configured
// endpoint, or 0 when it is not known.
func (l LLMConfig) EmbedBatchLimit() int {
	if strings.Contains(strings.ToLower(l.BaseURL), "dashscope.aliyuncs.com") {
		return dashScopeEmbedBatch
	}
	return 0
}

func (l LLMConfig) Normalize() LLMConfig {
	if l.Type == "" {
		l.Type = "openai"
	}
	if l.ChatModel == "" {
		l.ChatModel = "gpt-4o-mini"
	}
	if l.EmbeddingModel == "" {
		l.EmbeddingModel = "text-embedding-3-small"
	}
	if l.Timeout <= 0 {
		l.Timeout = 60 * time.Second
	}
	return l
}

// SearchConfig controls the internet search fan-out.
type SearchConfig struct {
	Engines          []string          `mapstructure:"engines"` // bing, baidu, brave, serper
	ResultsPerEngine int               `mapstructure:"results_per_engine"`
	CandidateLimit   int               `mapstructure:"candidate_limit"`
	MaxWorkers       int               `mapstructure:"max_workers"`
	PageTimeout      time.Duration     `mapstructure:"page_timeout"`
	DetailTimeout    time.Duration     `mapstructure:"detail_timeout"`
	OverallTimeout   time.Duration     `mapstructure:"overall_timeout"`
	MaxBodyBytes     int64             `mapstructure:"max_body_bytes"`
	Fetcher          string            `mapstructure:"fetcher"` // http, chromedp
	UserAgent        string            `mapstructure:"user_agent"`
	BraveAPIKey      string            `mapstructure:"brave_api_key"`
	SerperAPIKey     string            `mapstructure:"serper_api_key"`
	CrawlPolicy      CrawlPolicyConfig `mapstructure:"crawl_policy"`
}

func (s SearchConfig) Normalize() SearchConfig {
	if len(s.Engines) == 0 {
		s.Engines = []string{"bing", "baidu"}
	}
	for i, e := range s.Engines {
		s.Engines[i] = strings.ToLower(strings.TrimSpace(e))
	}
	if s.ResultsPerEngine <= 0 {
		s.ResultsPerEngine = 3
	}
	if s.CandidateLimit < s.ResultsPerEngine {
		s.CandidateLimit = s.ResultsPerEngine * 3
	}
	if s.MaxWorkers <= 0 {
		s.MaxWorkers = 8
	}
	if s.PageTimeout <= 0 {
		s.PageTimeout = 8 * time.Second
	}
	if s.DetailTimeout <= 0 {
		s.DetailTimeout = 10 * time.Second
	}
	if s.OverallTimeout <= 0 {
		s.OverallTimeout = 45 * time.Second
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = 5 << 20
	}
	if s.Fetcher == "" {
		s.Fetcher = "http"
	}
	s.CrawlPolicy = s.CrawlPolicy.Normalize()
	return s
}

func (s SearchConfig) Validate() error {
	for _, e := range s.Engines {
		switch e {
		case "bing", "baidu":
		case "brave":
			if strings.TrimSpace(s.BraveAPIKey) == "" {
				return fmt.Errorf("search.brave_api_key required when brave engine is enabled")
			}
		case "serper":
			if strings.TrimSpace(s.SerperAPIKey) == "" {
				return fmt.Errorf("search.serper_api_key required when serper engine is enabled")
			}
		default:
			return fmt.Errorf("search.engines: unsupported engine %q", e)
		}
	}
	if s.Fetcher != "http" && s.Fetcher != "chromedp" {
		return fmt.Errorf("search.fetcher must be http or chromedp")
	}
	return s.CrawlPolicy.Validate()
}

// CacheConfig controls the on-disk page cache.
type CacheConfig struct {
	Dir     string        `mapstructure:"dir"`
	MaxIdle time.Duration `mapstructure:"max_idle"`
}

func (c CacheConfig) Normalize() CacheConfig {
	if strings.TrimSpace(c.Dir) == "" {
		c.Dir = filepath.Join("data", "cache", "internet")
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = time.Hour
	}
	return c
}

// RetrievalConfig controls chunking and nearest-neighbour lookup.
type RetrievalConfig struct {
	Mode         string `mapstructure:"mode"` // vector, hybrid, keyword
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	TopK         int    `mapstructure:"top_k"`
	EmbedBatch   int    `mapstructure:"embed_batch"`
}

func (r RetrievalConfig) Normalize() RetrievalConfig {
	if r.Mode == "" {
		r.Mode = "vector"
	}
	if r.ChunkSize <= 0 {
		r.ChunkSize = 2000
	}
	if r.ChunkOverlap < 0 {
		r.ChunkOverlap = 0
	}
	if r.ChunkOverlap == 0 {
		r.ChunkOverlap = 100
	}
	if r.TopK <= 0 {
		r.TopK = 6
	}
	if r.EmbedBatch <= 0 {
		r.EmbedBatch = 64
	}
	return r
}

func (r RetrievalConfig) Validate() error {
	switch r.Mode {
	case "vector", "hybrid", "keyword":
	default:
		return fmt.Errorf("retrieval.mode must be vector, hybrid or keyword")
	}
	if r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap must be smaller than retrieval.chunk_size")
	}
	return nil
}

// HistoryConfig controls conversation history retention.
type HistoryConfig struct {
	Store       string        `mapstructure:"store"` // inmemory, redis
	MaxMessages int           `mapstructure:"max_messages"`
	TTL         time.Duration `mapstructure:"ttl"`
}

func (h HistoryConfig) Normalize() HistoryConfig {
	if h.Store == "" {
		h.Store = "inmemory"
	}
	if h.MaxMessages <= 0 {
		h.MaxMessages = 20
	}
	if h.TTL <= 0 {
		h.TTL = 48 * time.Hour
	}
	return h
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether any connection settings were supplied.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

func (p PostgresConfig) Validate() error {
	if !p.Enabled() {
		return nil
	}
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a connection string, preferring URL when present.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// SchedulerConfig controls background maintenance jobs.
type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	JanitorSpec  string        `mapstructure:"janitor_spec"`
	HistorySweep string        `mapstructure:"history_sweep_spec"`
	PruneSpec    string        `mapstructure:"prune_spec"`
	RunRetention time.Duration `mapstructure:"run_retention"`
}

func (s SchedulerConfig) Normalize() SchedulerConfig {
	if s.JanitorSpec == "" {
		s.JanitorSpec = "*/15 * * * *"
	}
	if s.HistorySweep == "" {
		s.HistorySweep = "@hourly"
	}
	if s.PruneSpec == "" {
		s.PruneSpec = "@daily"
	}
	if s.RunRetention <= 0 {
		s.RunRetention = 30 * 24 * time.Hour
	}
	return s
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

func (t TelemetryConfig) Validate() error {
	if t.MetricsPort < 0 {
		return fmt.Errorf("telemetry.metrics_port cannot be negative")
	}
	return nil
}

// Normalize applies defaults to every section.
func (c *Config) Normalize() {
	c.Server = c.Server.Normalize()
	c.Log = c.Log.Normalize()
	c.LLM = c.LLM.Normalize()
	c.Search = c.Search.Normalize()
	c.Cache = c.Cache.Normalize()
	c.Retrieval = c.Retrieval.Normalize()
	if limit := c.LLM.EmbedBatchLimit(); limit > 0 && c.Retrieval.EmbedBatch > limit {
		c.Retrieval.EmbedBatch = limit
	}
	c.History = c.History.Normalize()
	c.Scheduler = c.Scheduler.Normalize()
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	if c.History.Store == "redis" {
		if err := c.Storage.Redis.Validate(); err != nil {
			return err
		}
	} else if c.History.Store != "inmemory" {
		return fmt.Errorf("history.store must be inmemory or redis")
	}
	if err := c.Storage.Postgres.Validate(); err != nil {
		return err
	}
	return c.Telemetry.Validate()
}

// Load reads configuration from path (or the default search paths when empty)
// and environment variables prefixed with ASKWEB_.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("telemetry.enabled", true)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("ASKWEB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig is Load for command entry points: configuration errors are fatal.
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return cfg
}
