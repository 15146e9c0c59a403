// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	APIKey         string        `yaml:"api_key"` // empty disables auth
	PlanRateLimit  int           `yaml:"plan_rate_limit"`
	PlanRateWindow time.Duration `yaml:"plan_rate_window"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type QueueConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Name        string `yaml:"name"`
	Concurrency int    `yaml:"concurrency"`
}

type MinioConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	AccessKey  string        `yaml:"access_key"`
	SecretKey  string        `yaml:"secret_key"`
	Bucket     string        `yaml:"bucket"`
	UseSSL     bool          `yaml:"use_ssl"`
	PresignTTL time.Duration `yaml:"presign_ttl"`
}

type StorageConfig struct {
	Kind     string      `yaml:"kind"` // local|minio
	LocalDir string      `yaml:"local_dir"`
	Minio    MinioConfig `yaml:"minio"`
}

type AIConfig struct {
	Provider        string `yaml:"provider"` // gemini|openai|noop
	GeminiKey       string `yaml:"gemini_key"`
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	PlannerModel    string `yaml:"planner_model"`
	CriticModel     string `yaml:"critic_model"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent AI calls
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`
}

// PollConfig drives one producer's submit-then-poll loop.
type PollConfig struct {
	Backoff     string        `yaml:"backoff"` // fixed|linear|exponential
	Interval    time.Duration `yaml:"interval"`
	MaxInterval time.Duration `yaml:"max_interval"`
	Factor      float64       `yaml:"factor"`
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
}

type ProviderConfig struct {
	Kind    string     `yaml:"kind"`
	Model   string     `yaml:"model"`
	APIKey  string     `yaml:"api_key"`
	BaseURL string     `yaml:"base_url"`
	Poll    PollConfig `yaml:"poll"`
}

type MediaConfig struct {
	Image         ProviderConfig `yaml:"image"`
	Video         ProviderConfig `yaml:"video"`
	Animate       ProviderConfig `yaml:"animate"`
	RefinePrompts bool           `yaml:"refine_prompts"`
}

type DispatchConfig struct {
	CinematicKeywords []string `yaml:"cinematic_keywords"`
}

type RefineConfig struct {
	MaxIterations  int `yaml:"max_iterations"`
	SummarizeAfter int `yaml:"summarize_after"`
}

type PipelineConfig struct {
	Dispatch            DispatchConfig `yaml:"dispatch"`
	Refine              RefineConfig   `yaml:"refine"`
	LLMTimeout          time.Duration  `yaml:"llm_timeout"`
	SceneTimeout        time.Duration  `yaml:"scene_timeout"`
	MaxParallelProjects int            `yaml:"max_parallel_projects"`
	RunLockTTL          time.Duration  `yaml:"run_lock_ttl"`
}

type RenderConfig struct {
	Interpreter       string        `yaml:"interpreter"`
	Timeout           time.Duration `yaml:"timeout"`
	ScriptDir         string        `yaml:"script_dir"`
	OutputDir         string        `yaml:"output_dir"`
	TransitionSeconds float64       `yaml:"transition_seconds"`
}

type SchedulerConfig struct {
	ReaperCron string        `yaml:"reaper_cron"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Queue     QueueConfig     `yaml:"queue"`
	Storage   StorageConfig   `yaml:"storage"`
	AI        AIConfig        `yaml:"ai"`
	Media     MediaConfig     `yaml:"media"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Render    RenderConfig    `yaml:"render"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

var DefaultCinematicKeywords = []string{"epic", "cinematic", "painterly", "dreamy", "scenic"}

// LoadConfig reads a .env file when present, expands ${VAR} references in the
// YAML from the environment, then applies defaults and minimal validation.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes YAML bytes after env expansion and applies defaults.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied and no external services.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = 2 * time.Minute
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 90 * time.Second
	}
	if c.HTTP.PlanRateLimit <= 0 {
		c.HTTP.PlanRateLimit = 10
	}
	if c.HTTP.PlanRateWindow <= 0 {
		c.HTTP.PlanRateWindow = time.Minute
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)

	if c.Queue.Name == "" {
		c.Queue.Name = "generation"
	}
	if c.Queue.Concurrency <= 0 {
		c.Queue.Concurrency = 4
	}

	if c.Storage.Kind == "" {
		c.Storage.Kind = "local"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "data/assets"
	}
	if c.Storage.Minio.PresignTTL <= 0 {
		c.Storage.Minio.PresignTTL = 24 * time.Hour
	}

	if c.AI.Provider == "" {
		c.AI.Provider = "gemini"
	}
	if c.AI.ConcurrentLimit <= 0 {
		c.AI.ConcurrentLimit = 16
	}
	if c.AI.PlannerModel == "" {
		c.AI.PlannerModel = "gemini-2.5-flash"
	}
	if c.AI.CriticModel == "" {
		c.AI.CriticModel = c.AI.PlannerModel
	}
	if c.AI.MaxPromptTokens <= 0 {
		c.AI.MaxPromptTokens = 32000
	}

	c.Media.Image.defaults("noop", 2*time.Second, 5*time.Minute, 60)
	c.Media.Video.defaults("noop", 10*time.Second, 10*time.Minute, 60)
	c.Media.Animate.defaults("noop", 10*time.Second, 10*time.Minute, 60)

	if len(c.Pipeline.Dispatch.CinematicKeywords) == 0 {
		c.Pipeline.Dispatch.CinematicKeywords = append([]string(nil), DefaultCinematicKeywords...)
	}
	if c.Pipeline.Refine.MaxIterations <= 0 {
		c.Pipeline.Refine.MaxIterations = 3
	}
	if c.Pipeline.Refine.SummarizeAfter <= 0 {
		c.Pipeline.Refine.SummarizeAfter = 2
	}
	if c.Pipeline.LLMTimeout <= 0 {
		c.Pipeline.LLMTimeout = 60 * time.Second
	}
	if c.Pipeline.SceneTimeout <= 0 {
		c.Pipeline.SceneTimeout = 15 * time.Minute
	}
	if c.Pipeline.MaxParallelProjects <= 0 {
		c.Pipeline.MaxParallelProjects = 4
	}
	if c.Pipeline.RunLockTTL <= 0 {
		c.Pipeline.RunLockTTL = 2 * time.Hour
	}

	if c.Render.Interpreter == "" {
		c.Render.Interpreter = "python3"
	}
	if c.Render.Timeout <= 0 {
		c.Render.Timeout = 10 * time.Minute
	}
	if c.Render.ScriptDir == "" {
		c.Render.ScriptDir = "data/scripts"
	}
	if c.Render.OutputDir == "" {
		c.Render.OutputDir = "data/output"
	}
	if c.Render.TransitionSeconds <= 0 {
		c.Render.TransitionSeconds = 0.5
	}

	if c.Scheduler.ReaperCron == "" {
		c.Scheduler.ReaperCron = "@every 5m"
	}
	if c.Scheduler.StaleAfter <= 0 {
		c.Scheduler.StaleAfter = time.Hour
	}
}

func (p *ProviderConfig) defaults(kind string, interval, timeout time.Duration, attempts int) {
	if p.Kind == "" {
		p.Kind = kind
	}
	p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
	if p.Poll.Backoff == "" {
		p.Poll.Backoff = "fixed"
	}
	if p.Poll.Interval <= 0 {
		p.Poll.Interval = interval
	}
	if p.Poll.MaxInterval <= 0 {
		p.Poll.MaxInterval = 6 * p.Poll.Interval
	}
	if p.Poll.Factor <= 1 {
		p.Poll.Factor = 2
	}
	if p.Poll.Timeout <= 0 {
		p.Poll.Timeout = timeout
	}
	if p.Poll.MaxAttempts <= 0 {
		p.Poll.MaxAttempts = attempts
	}
}

func (c *Config) validate() error {
	switch c.Storage.Kind {
	case "local", "minio":
	default:
		return fmt.Errorf("storage.kind %q is not one of local, minio", c.Storage.Kind)
	}
	for _, p := range []PollConfig{c.Media.Image.Poll, c.Media.Video.Poll, c.Media.Animate.Poll} {
		switch p.Backoff {
		case "fixed", "linear", "exponential":
		default:
			return fmt.Errorf("poll backoff %q is not one of fixed, linear, exponential", p.Backoff)
		}
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
