package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// applyFallbacks applies environment variable fallbacks
func (c *Config) applyFallbacks() {
	c.applyAPIKeyFallbacks()
	c.applyServerAPIKeyFallbacks()
	c.applyTLSDefaults()
	c.applyObservabilityDefaults()
}

// applyAPIKeyFallbacks reads provider keys from their conventional environment
// variables when no key is configured
func (c *Config) applyAPIKeyFallbacks() {
	if c.AI.APIKey != "" {
		return
	}
	switch c.AI.Provider {
	case "gemini":
		c.AI.APIKey = os.Getenv("GEMINI_API_KEY")
	case "openai":
		c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// applyServerAPIKeyFallbacks applies API key fallbacks from environment variables
func (c *Config) applyServerAPIKeyFallbacks() {
	if len(c.Server.APIKeys) == 0 {
		if apiKeysEnv := os.Getenv("VACALYSER_SERVER_APIKEYS"); apiKeysEnv != "" {
			c.Server.APIKeys = splitKeys(apiKeysEnv)
		}
		return
	}
	// Environment values arrive as one comma-joined string split without trimming
	c.Server.APIKeys = splitKeys(strings.Join(c.Server.APIKeys, ","))
}

// splitKeys splits a comma-separated key list, dropping blank entries
func splitKeys(s string) []string {
	keys := []string{}
	for key := range strings.SplitSeq(s, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// applyTLSDefaults applies default TLS configuration values
func (c *Config) applyTLSDefaults() {
	if c.Server.TLS.Mode == "" {
		c.Server.TLS.Mode = "disabled"
	}
	if c.Server.TLS.MinVersion == "" && c.Server.TLS.Mode != "disabled" {
		c.Server.TLS.MinVersion = "1.2"
	}
}

// applyObservabilityDefaults applies default observability configuration values
func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		"VACALYSER_AI_APIKEY",
		"VACALYSER_AI_PROVIDER",
		"VACALYSER_AI_MODEL",
		"VACALYSER_AI_ENDPOINT",
		"VACALYSER_SERVER_PORT",
		"VACALYSER_SERVER_HOST",
		"VACALYSER_APP_LOGLEVEL",
		"VACALYSER_STORE_DRIVER",
		"VACALYSER_VAULT_ENABLED",
		"GEMINI_API_KEY",
		"OPENAI_API_KEY",
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			if strings.Contains(strings.ToLower(envVar), "key") {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] AI Provider: %s", c.AI.Provider)
	log.Printf("[CONFIG] AI Model: %s", c.AI.Model)
	log.Printf("[CONFIG] AI Context Size: %d", c.AI.ContextSize)
	if c.AI.APIKey != "" {
		log.Println("[CONFIG] AI API Key: ***CONFIGURED***")
	} else {
		log.Println("[CONFIG] AI API Key: ***NOT SET***")
	}
	log.Printf("[CONFIG] Server Host: %s", c.Server.Host)
	log.Printf("[CONFIG] Server Port: %s", c.Server.Port)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] Store Driver: %s", c.Store.Driver)
	log.Printf("[CONFIG] Events Enabled: %t", c.Events.Enabled)
	log.Printf("[CONFIG] TLS Mode: %s", c.Server.TLS.Mode)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)

	log.Println("[CONFIG] === Operation-Specific AI Configurations ===")
	log.Printf("[CONFIG] JobAd - Provider: %s, Model: %s", c.AI.JobAd.Provider, c.AI.JobAd.Model)
	log.Printf("[CONFIG] Interview - Provider: %s, Model: %s", c.AI.Interview.Provider, c.AI.Interview.Model)
	log.Printf("[CONFIG] Suggest - Provider: %s, Model: %s", c.AI.Suggest.Provider, c.AI.Suggest.Model)

	log.Println("[CONFIG] =====================================")
}
