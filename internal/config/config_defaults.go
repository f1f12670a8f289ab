package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultOllamaEndpoint is the generate URL of a local Ollama daemon
const DefaultOllamaEndpoint = "http://127.0.0.1:11434/api/generate"

// DefaultModel is the model requested when none is configured
const DefaultModel = "koesn/dolphin-llama3-8b"

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// AI Configuration - Global defaults
	v.SetDefault("ai.provider", "ollama")
	v.SetDefault("ai.endpoint", DefaultOllamaEndpoint)
	v.SetDefault("ai.baseURL", "")
	v.SetDefault("ai.model", DefaultModel)
	v.SetDefault("ai.contextSize", 8192)
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.sanitizeInput", true)
	v.SetDefault("ai.tokenEstimator", "tiktoken")

	// Operation timeouts have no default so they inherit ai.timeout

	// AI Configuration - Job ad defaults
	v.SetDefault("ai.jobAd.temperature", 0.7)

	// AI Configuration - Interview prep and onboarding defaults
	v.SetDefault("ai.interview.temperature", 0.5)

	// AI Configuration - Suggestion defaults
	v.SetDefault("ai.suggest.temperature", 0.3) // Lists should stay on topic

	// Circuit Breaker Configuration defaults for all operations
	for _, op := range []string{"jobAd", "interview", "suggest"} {
		prefix := "ai." + op + ".circuitBreaker."
		v.SetDefault(prefix+"enabled", true)
		v.SetDefault(prefix+"maxRequests", 3)
		v.SetDefault(prefix+"interval", 60*time.Second)
		v.SetDefault(prefix+"timeout", 60*time.Second)
		v.SetDefault(prefix+"minRequests", 3)
		v.SetDefault(prefix+"failureThreshold", 0.6)
	}

	// Wizard Configuration
	v.SetDefault("wizard.stepsFile", "")

	// Store Configuration
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.ttl", 24*time.Hour)
	v.SetDefault("store.sweepInterval", 10*time.Minute)

	// Events Configuration
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.url", "nats://127.0.0.1:4222")
	v.SetDefault("events.subjectPrefix", "vacalyser")
	v.SetDefault("events.connectTimeout", 5*time.Second)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 120*time.Second) // Generation can take a while
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.maxRequestSize", 1024*1024)
	// TLS Configuration defaults
	v.SetDefault("server.tls.mode", "disabled") // disabled, server
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.tls.autoReload.enabled", true)
	v.SetDefault("server.tls.autoReload.debounceDelay", time.Second)
	// API Authentication defaults
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.jwtSecret", "")
	v.SetDefault("server.allowedOrigins", []string{})
	// Secret watcher defaults
	v.SetDefault("server.secretWatcher.enabled", false)
	v.SetDefault("server.secretWatcher.pollInterval", 5*time.Minute)
	// Rate limiting defaults
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.logFormat", "json")
	v.SetDefault("app.defaultFormat", "text")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown", "yaml"})
	v.SetDefault("app.maxFileSize", 1024*1024) // 1MB
	v.SetDefault("app.outputDir", ".")

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.llmKey", "")
	v.SetDefault("vault.secrets.jwtSecret", "")
	v.SetDefault("vault.secrets.tlsCerts", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "vacalyser")
	v.SetDefault("observability.serviceVersion", "")  // Will use app version if empty
	v.SetDefault("observability.serviceInstance", "") // Will be auto-generated if empty
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)

	// Metrics Configuration
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)

	// Custom Metrics Configuration
	v.SetDefault("observability.customMetrics.aiOperations.enabled", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackDuration", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackTokenUsage", true)
	v.SetDefault("observability.customMetrics.businessMetrics.enabled", true)
	v.SetDefault("observability.customMetrics.businessMetrics.trackTransitions", true)
	v.SetDefault("observability.customMetrics.businessMetrics.trackArtifacts", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackSessions", true)

	// Console Configuration
	v.SetDefault("observability.console.prettyPrint", true)

	// Prometheus Configuration
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")

	// OTLP Configuration
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}
