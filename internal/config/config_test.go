package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefaults(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadConfigWith(viper.New())
	require.NoError(t, err)
	return cfg
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, DefaultOllamaEndpoint, cfg.AI.Endpoint)
	assert.Equal(t, DefaultModel, cfg.AI.Model)
	assert.Equal(t, 8192, cfg.AI.ContextSize)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Store.TTL)
	assert.Equal(t, "vacalyser", cfg.Events.SubjectPrefix)
	assert.Equal(t, "disabled", cfg.Server.TLS.Mode)
	assert.Contains(t, cfg.App.SupportedFormats, "yaml")
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)
	assert.NotNil(t, cfg.Templates)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("VACALYSER_AI_MODEL", "llama3.1")
	t.Setenv("VACALYSER_SERVER_PORT", "9999")
	t.Setenv("VACALYSER_SERVER_APIKEYS", " k1 , k2 ,")

	cfg := loadDefaults(t)

	assert.Equal(t, "llama3.1", cfg.AI.Model)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
}

func TestOperationTimeoutsFollowGlobal(t *testing.T) {
	t.Setenv("VACALYSER_AI_TIMEOUT", "20s")

	cfg := loadDefaults(t)
	for name, op := range map[string]OperationAIConfig{
		"jobAd":     cfg.GetJobAdConfig(),
		"interview": cfg.GetInterviewConfig(),
		"suggest":   cfg.GetSuggestConfig(),
	} {
		require.NotNil(t, op.Timeout, name)
		assert.Equal(t, 20*time.Second, *op.Timeout, name)
	}
}

func TestOperationTimeoutEnvOverride(t *testing.T) {
	t.Setenv("VACALYSER_AI_JOBAD_TIMEOUT", "2m")

	cfg := loadDefaults(t)
	assert.Equal(t, 2*time.Minute, *cfg.GetJobAdConfig().Timeout)
	assert.Equal(t, 60*time.Second, *cfg.GetSuggestConfig().Timeout)
}

func TestLoadRejectsNonPositiveDurations(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		value   string
		wantErr string
	}{
		{"operation timeout", "VACALYSER_AI_JOBAD_TIMEOUT", "0s", "timeout must be positive"},
		{"sweep interval", "VACALYSER_STORE_SWEEPINTERVAL", "0s", "sweep interval must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			_, err := LoadConfigWith(viper.New())
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	prompt := filepath.Join(dir, "job_ad.md")
	require.NoError(t, os.WriteFile(prompt, []byte("Ad for {job_title}"), 0600))

	path := filepath.Join(dir, "config.yaml")
	yaml := `
ai:
  provider: openai
  baseURL: http://localhost:8000/v1
  model: gpt-4o-mini
  contextSize: 4096
  apiKey: sk-test
  templates:
    inline:
      skills: "Skills for {job_title}"
  jobAd:
    model: gpt-4o
    timeout: 2m
    templates:
      files:
        job_ad: ` + prompt + `
store:
  driver: sqlite
  dsn: ` + filepath.Join(dir, "sessions.db") + `
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "sqlite", cfg.Store.Driver)

	jobAd := cfg.GetJobAdConfig()
	assert.Equal(t, "gpt-4o", jobAd.Model)
	assert.Equal(t, 2*time.Minute, *jobAd.Timeout)
	assert.Equal(t, 4096, *jobAd.ContextSize)
	assert.Equal(t, "sk-test", jobAd.APIKey)

	suggest := cfg.GetSuggestConfig()
	assert.Equal(t, "gpt-4o-mini", suggest.Model)
	assert.Equal(t, 60*time.Second, *suggest.Timeout, "unset operation timeout inherits ai.timeout")

	assert.Equal(t, "Ad for {job_title}", cfg.TemplateFor("job_ad"))
	assert.Equal(t, "Skills for {job_title}", cfg.TemplateFor("skills"))
	assert.Empty(t, cfg.TemplateFor("benefits"))
}

func TestLoadConfigFileMissingPrompt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ai:\n  templates:\n    files:\n      tasks: /nonexistent/tasks.md\n"), 0600))

	_, err := LoadConfigFile(path)
	assert.ErrorContains(t, err, "prompt file validation failed")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad provider", func(c *Config) { c.AI.Provider = "claude" }, "unsupported AI provider"},
		{"bad operation provider", func(c *Config) { c.AI.Suggest.Provider = "x" }, "ai.suggest"},
		{"zero timeout", func(c *Config) { c.AI.Timeout = 0 }, "timeout must be positive"},
		{"zero operation timeout", func(c *Config) { d := time.Duration(0); c.AI.JobAd.Timeout = &d }, "ai.jobAd: timeout must be positive"},
		{"negative operation timeout", func(c *Config) { d := -time.Second; c.AI.Suggest.Timeout = &d }, "ai.suggest: timeout must be positive"},
		{"zero sweep interval", func(c *Config) { c.Store.SweepInterval = 0 }, "sweep interval must be positive"},
		{"zero context", func(c *Config) { c.AI.ContextSize = 0 }, "context size"},
		{"bad estimator", func(c *Config) { c.AI.TokenEstimator = "words" }, "token estimator"},
		{"no port", func(c *Config) { c.Server.Port = "" }, "port is required"},
		{"bad format", func(c *Config) { c.App.DefaultFormat = "xml" }, "default format"},
		{"sqlite without dsn", func(c *Config) { c.Store.Driver = "sqlite" }, "store.dsn"},
		{"bad driver", func(c *Config) { c.Store.Driver = "redis" }, "invalid store driver"},
		{"events without url", func(c *Config) { c.Events.Enabled = true; c.Events.URL = "" }, "events.url"},
		{"bad tls", func(c *Config) { c.Server.TLS.Mode = "server" }, "TLS configuration error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestOperationForKind(t *testing.T) {
	assert.Equal(t, OperationJobAd, OperationForKind("job_ad"))
	assert.Equal(t, OperationInterview, OperationForKind("interview_prep"))
	assert.Equal(t, OperationInterview, OperationForKind("onboarding"))
	assert.Equal(t, OperationSuggest, OperationForKind("skills"))
}

func TestApplyAPIKeyFallbacks(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gem")
	cfg := &Config{AI: AIConfig{Provider: "gemini"}}
	cfg.applyAPIKeyFallbacks()
	assert.Equal(t, "gem", cfg.AI.APIKey)

	cfg = &Config{AI: AIConfig{Provider: "ollama"}}
	cfg.applyAPIKeyFallbacks()
	assert.Empty(t, cfg.AI.APIKey)
}
