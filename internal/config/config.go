package config

import (
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
// Secret precedence:
// 1. Vault (if configured) - highest priority
// 2. Config file values
// 3. Environment variables (VACALYSER_AI_APIKEY, etc.)
// 4. Default values - lowest priority
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	AI            AIConfig            `mapstructure:"ai"`
	Wizard        WizardConfig        `mapstructure:"wizard"`
	Store         StoreConfig         `mapstructure:"store"`
	Events        EventsConfig        `mapstructure:"events"`
	Server        ServerConfig        `mapstructure:"server"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`

	// Templates holds prompt templates read from files. It is filled by
	// LoadConfig and refreshed by the prompt file watcher.
	Templates *TemplateStore `mapstructure:"-"`
}

// AIConfig holds text generation configuration
type AIConfig struct {
	// Global/fallback configuration
	Provider       string        `mapstructure:"provider"` // ollama, gemini, openai
	Endpoint       string        `mapstructure:"endpoint"` // generate URL for the ollama provider
	BaseURL        string        `mapstructure:"baseURL"`  // API base for the openai provider
	Model          string        `mapstructure:"model"`
	ContextSize    int           `mapstructure:"contextSize"`
	Timeout        time.Duration `mapstructure:"timeout"`
	APIKey         string        `mapstructure:"apiKey"`
	Temperature    float32       `mapstructure:"temperature"`
	SanitizeInput  bool          `mapstructure:"sanitizeInput"`
	TokenEstimator string        `mapstructure:"tokenEstimator"` // tiktoken or heuristic
	Templates      PromptConfig  `mapstructure:"templates"`

	// Operation-specific configurations
	JobAd     OperationAIConfig `mapstructure:"jobAd"`
	Interview OperationAIConfig `mapstructure:"interview"`
	Suggest   OperationAIConfig `mapstructure:"suggest"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// OperationAIConfig holds AI configuration for one group of artifacts.
// Pointer fields fall back to the global value when unset.
type OperationAIConfig struct {
	Provider       string               `mapstructure:"provider"`
	Endpoint       string               `mapstructure:"endpoint"`
	BaseURL        string               `mapstructure:"baseURL"`
	Model          string               `mapstructure:"model"`
	ContextSize    *int                 `mapstructure:"contextSize"`
	Timeout        *time.Duration       `mapstructure:"timeout"`
	APIKey         string               `mapstructure:"apiKey"`
	Temperature    *float32             `mapstructure:"temperature"`
	SanitizeInput  *bool                `mapstructure:"sanitizeInput"`
	TokenEstimator string               `mapstructure:"tokenEstimator"`
	Templates      PromptConfig         `mapstructure:"templates"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// PromptConfig overrides prompt templates, keyed by artifact kind
// (job_ad, interview_prep, onboarding, skills, benefits, recruitment_steps,
// tasks, company_info). Inline text wins over the built-in default; a file
// wins over inline text.
type PromptConfig struct {
	Inline map[string]string `mapstructure:"inline"`
	Files  map[string]string `mapstructure:"files"`
}

// WizardConfig holds wizard catalog configuration
type WizardConfig struct {
	StepsFile string `mapstructure:"stepsFile"` // YAML catalog; empty uses the built-in steps
}

// StoreConfig holds session persistence configuration
type StoreConfig struct {
	Driver        string        `mapstructure:"driver"` // memory, sqlite, postgres
	DSN           string        `mapstructure:"dsn"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
}

// EventsConfig holds event publishing configuration
type EventsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	SubjectPrefix  string        `mapstructure:"subjectPrefix"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	MaxRequestSize int64         `mapstructure:"maxRequestSize"`

	TLS TLSConfig `mapstructure:"tls"`

	// API Authentication
	APIKeys   []string `mapstructure:"apiKeys"`   // Valid API keys for authentication
	JWTSecret string   `mapstructure:"jwtSecret"` // HS256 secret; enables bearer JWT auth when set

	// Origins accepted by the websocket stream endpoint; empty accepts same-origin only
	AllowedOrigins []string `mapstructure:"allowedOrigins"`

	RateLimit RateLimitConfig `mapstructure:"rateLimit"`

	// SecretWatcher polls Vault for rotated API keys
	SecretWatcher SecretWatcherConfig `mapstructure:"secretWatcher"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Mode       string `mapstructure:"mode"`     // "disabled" or "server"
	CertFile   string `mapstructure:"certFile"` // Server certificate file (PEM)
	KeyFile    string `mapstructure:"keyFile"`  // Server private key file (PEM)
	MinVersion string `mapstructure:"minVersion"`

	// PEM content, loaded from Vault or set inline instead of files
	CertContent string `mapstructure:"certContent"`
	KeyContent  string `mapstructure:"keyContent"`

	AutoReload AutoReloadConfig `mapstructure:"autoReload"`
}

// AutoReloadConfig holds file watching configuration for certificates and prompt files
type AutoReloadConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DebounceDelay time.Duration `mapstructure:"debounceDelay"`
}

// SecretWatcherConfig holds configuration for Vault-based API key rotation
type SecretWatcherConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int           `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int           `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	ByIP           bool          `mapstructure:"byIP"`           // Enable per-IP rate limiting
	ByAPIKey       bool          `mapstructure:"byAPIKey"`       // Enable per-API-key rate limiting
	Window         time.Duration `mapstructure:"window"`         // Idle time after which a client limiter is dropped
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	LogFormat        string   `mapstructure:"logFormat"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
	OutputDir        string   `mapstructure:"outputDir"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	ConsoleOutput   bool                `mapstructure:"consoleOutput"`
	SampleRate      float64             `mapstructure:"sampleRate"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// CustomMetricsConfig holds fine-grained custom metrics configuration
type CustomMetricsConfig struct {
	AIOperations    AIOperationsMetricsConfig   `mapstructure:"aiOperations"`
	BusinessMetrics BusinessMetricsConfig       `mapstructure:"businessMetrics"`
	Infrastructure  InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

// AIOperationsMetricsConfig holds AI operation metrics configuration
type AIOperationsMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackDuration   bool `mapstructure:"trackDuration"`
	TrackTokenUsage bool `mapstructure:"trackTokenUsage"`
}

// BusinessMetricsConfig holds wizard and artifact metrics configuration
type BusinessMetricsConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	TrackTransitions bool `mapstructure:"trackTransitions"`
	TrackArtifacts   bool `mapstructure:"trackArtifacts"`
}

// InfrastructureMetricsConfig holds infrastructure metrics configuration
type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
	TrackSessions   bool `mapstructure:"trackSessions"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// LoadConfig loads configuration from environment variables and a config file
func LoadConfig() (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	v := viper.New()

	// Set up config file handling
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/vacalyser/")
	v.AddConfigPath("$HOME/.vacalyser")
	v.AddConfigPath(".")
	log.Println("[CONFIG] Configured config file search paths: /etc/vacalyser/, $HOME/.vacalyser, .")

	return LoadConfigWith(v)
}

// LoadConfigFile loads configuration from an explicit file path
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return LoadConfigWith(v)
}

// Default returns the built-in configuration with environment overrides and
// no config file
func Default() (*Config, error) {
	return LoadConfigWith(viper.New())
}

// LoadConfigWith finishes loading on a prepared viper instance: defaults,
// environment, file, fallbacks, prompt files and validation
func LoadConfigWith(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix("VACALYSER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// keys without a default are invisible to AutomaticEnv during Unmarshal
	for _, op := range []string{"jobAd", "interview", "suggest"} {
		_ = v.BindEnv("ai." + op + ".timeout")
	}
	log.Println("[CONFIG] Configured environment variable handling with prefix 'VACALYSER'")

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	log.Println("[CONFIG] Successfully unmarshaled configuration")

	config.applyFallbacks()
	log.Println("[CONFIG] Applied configuration fallbacks and environment variable overrides")

	config.logConfigurationSources(configFileUsed)

	if err := config.validatePromptFiles(); err != nil {
		return nil, fmt.Errorf("prompt file validation failed: %w", err)
	}

	templates, err := config.loadPromptsFromFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates from files: %w", err)
	}
	config.Templates = templates

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validateProvider(c.AI.Provider); err != nil {
		return err
	}
	for name, op := range map[string]OperationAIConfig{"jobAd": c.AI.JobAd, "interview": c.AI.Interview, "suggest": c.AI.Suggest} {
		if op.Timeout != nil && *op.Timeout <= 0 {
			return fmt.Errorf("ai.%s: timeout must be positive", name)
		}
		if op.Provider == "" {
			continue
		}
		if err := validateProvider(op.Provider); err != nil {
			return fmt.Errorf("ai.%s: %w", name, err)
		}
	}

	if c.AI.Timeout <= 0 {
		return fmt.Errorf("AI timeout must be positive")
	}
	if c.AI.ContextSize <= 0 {
		return fmt.Errorf("AI context size must be positive")
	}
	switch c.AI.TokenEstimator {
	case "tiktoken", "heuristic":
	default:
		return fmt.Errorf("invalid token estimator: %s (must be 'tiktoken' or 'heuristic')", c.AI.TokenEstimator)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if !slices.Contains(c.App.SupportedFormats, c.App.DefaultFormat) {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s driver", c.Store.Driver)
		}
	default:
		return fmt.Errorf("invalid store driver: %s (must be 'memory', 'sqlite' or 'postgres')", c.Store.Driver)
	}
	if c.Store.TTL <= 0 {
		return fmt.Errorf("store TTL must be positive")
	}
	if c.Store.SweepInterval <= 0 {
		return fmt.Errorf("store sweep interval must be positive")
	}

	if c.Events.Enabled && c.Events.URL == "" {
		return fmt.Errorf("events.url is required when events are enabled")
	}

	if err := c.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	return nil
}

func validateProvider(provider string) error {
	switch provider {
	case "ollama", "gemini", "openai":
		return nil
	default:
		return fmt.Errorf("unsupported AI provider: %s (must be 'ollama', 'gemini' or 'openai')", provider)
	}
}
