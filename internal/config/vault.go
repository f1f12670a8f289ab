package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/vault/api"

	"vacalyser/internal/errors"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets names the KVv2 paths each secret is read from. An empty path
// leaves the matching configuration value alone.
type VaultSecrets struct {
	// APIKeys holds a "keys" entry with comma-separated API keys; the first
	// one is primary and the rest stay valid during rotation.
	APIKeys   string `mapstructure:"apiKeys"`
	LLMKey    string `mapstructure:"llmKey"`    // "api_key" entry for the hosted model provider
	JWTSecret string `mapstructure:"jwtSecret"` // "secret" entry signing bearer tokens
	TLSCerts  string `mapstructure:"tlsCerts"`  // "cert" and "key" PEM entries
}

// VaultSecret is a KVv2 secret payload with its version number.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// VaultClient reads KVv2 secrets.
type VaultClient struct {
	client *api.Client
	config VaultConfig
	logger *errors.Logger
}

// NewVaultClient connects to Vault. It returns a nil client when the
// integration is disabled.
func NewVaultClient(cfg VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}
	if !cfg.Enabled {
		logger.Debug("Vault integration disabled")
		return nil, nil
	}

	apiCfg := api.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	token, err := resolveVaultToken(cfg, logger)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vault at %s: %w", cfg.Address, err)
	}
	logger.Info("Connected to Vault",
		"address", cfg.Address,
		"namespace", cfg.Namespace,
		"version", health.Version,
		"sealed", health.Sealed)

	return &VaultClient{client: client, config: cfg, logger: logger}, nil
}

// resolveVaultToken prefers the inline token over the token file
func resolveVaultToken(cfg VaultConfig, logger *errors.Logger) (string, error) {
	token := cfg.Token
	if token == "" && cfg.TokenFile != "" {
		logger.Debug("Reading Vault token from file", "file", cfg.TokenFile)
		raw, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// GetSecretV2 reads a secret from a KVv2 mount.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}
	vc.logger.Debug("Reading secret from Vault", "path", path)

	raw, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if raw == nil || raw.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}
	return decodeKVv2(raw, path)
}

// decodeKVv2 splits a KVv2 response into its data and metadata version
func decodeKVv2(raw *api.Secret, path string) (*VaultSecret, error) {
	data, ok := raw.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}
	metadata, ok := raw.Data["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	versionRaw, ok := metadata["version"]
	if !ok {
		return nil, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	}
	version, err := parseVersionValue(versionRaw, path)
	if err != nil {
		return nil, err
	}
	return &VaultSecret{Data: data, Version: version}, nil
}

// parseVersionValue accepts the number shapes the Vault client decodes to
func parseVersionValue(versionRaw any, path string) (int64, error) {
	var (
		version int64
		err     error
	)
	switch v := versionRaw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case json.Number:
		version, err = v.Int64()
	case string:
		version, err = strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, versionRaw)
	}
	if err != nil {
		return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
	}
	return version, nil
}

// GetStringSecret reads one string entry of a secret.
func (vc *VaultClient) GetStringSecret(path, key string) (string, error) {
	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return "", err
	}
	return stringEntry(secret, path, key)
}

func stringEntry(secret *VaultSecret, path, key string) (string, error) {
	value, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string in secret %s", key, path)
	}
	return s, nil
}

// GetStringSliceSecret reads a comma-separated entry as a list.
func (vc *VaultClient) GetStringSliceSecret(path, key string) ([]string, error) {
	value, err := vc.GetStringSecret(path, key)
	if err != nil {
		return nil, err
	}
	return splitKeys(value), nil
}

// maskSecret keeps the first and last four characters of long values
func maskSecret(s string) string {
	switch {
	case len(s) > 8:
		return s[:4] + "****" + s[len(s)-4:]
	case s != "":
		return "****"
	default:
		return ""
	}
}

// secretLoader applies one Vault secret to the configuration
type secretLoader struct {
	name  string
	path  func(VaultSecrets) string
	apply func(cfg *Config, secret *VaultSecret, path string, logger *errors.Logger) error
}

var secretLoaders = []secretLoader{
	{
		name: "API keys",
		path: func(s VaultSecrets) string { return s.APIKeys },
		apply: func(cfg *Config, secret *VaultSecret, path string, logger *errors.Logger) error {
			raw, err := stringEntry(secret, path, "keys")
			if err != nil {
				return err
			}
			keys := splitKeys(raw)
			if len(keys) == 0 {
				logger.Warn("No API keys found in Vault", "path", path)
				return nil
			}
			cfg.Server.APIKeys = keys
			logger.Info("API keys loaded from Vault", "count", len(keys))
			return nil
		},
	},
	{
		name: "LLM API key",
		path: func(s VaultSecrets) string { return s.LLMKey },
		apply: func(cfg *Config, secret *VaultSecret, path string, logger *errors.Logger) error {
			key, err := stringEntry(secret, path, "api_key")
			if err != nil {
				return err
			}
			if key == "" {
				logger.Warn("Empty LLM API key found in Vault", "path", path)
				return nil
			}
			applyLLMKeyToConfig(cfg, key)
			logger.Info("LLM API key loaded from Vault", "masked_value", maskSecret(key))
			return nil
		},
	},
	{
		name: "JWT secret",
		path: func(s VaultSecrets) string { return s.JWTSecret },
		apply: func(cfg *Config, secret *VaultSecret, path string, logger *errors.Logger) error {
			value, err := stringEntry(secret, path, "secret")
			if err != nil {
				return err
			}
			if value != "" {
				cfg.Server.JWTSecret = value
				logger.Info("JWT secret loaded from Vault")
			}
			return nil
		},
	},
	{
		name: "TLS certificates",
		path: func(s VaultSecrets) string { return s.TLSCerts },
		apply: func(cfg *Config, secret *VaultSecret, _ string, logger *errors.Logger) error {
			if err := validateTLSDeprecatedFields(secret); err != nil {
				return err
			}
			loaded := loadTLSCertificateContent(cfg, secret, logger)
			logger.Info("TLS certificates loaded from Vault", "certificates_loaded", loaded)
			return nil
		},
	},
}

// ApplyVaultSecrets overlays the secrets stored in Vault onto the config.
func ApplyVaultSecrets(cfg *Config, logger *errors.Logger) error {
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}
	if !cfg.Vault.Enabled {
		logger.Debug("Vault integration disabled, skipping secret loading")
		return nil
	}

	client, err := NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}
	return applySecrets(client, cfg, logger)
}

// secretReader is the part of VaultClient the loaders need
type secretReader interface {
	GetSecretV2(path string) (*VaultSecret, error)
}

func applySecrets(client secretReader, cfg *Config, logger *errors.Logger) error {
	for _, l := range secretLoaders {
		path := l.path(cfg.Vault.Secrets)
		if path == "" {
			continue
		}
		logger.Debug("Loading secret from Vault", "secret", l.name, "path", path)
		secret, err := client.GetSecretV2(path)
		if err != nil {
			return fmt.Errorf("failed to load %s from vault: %w", l.name, err)
		}
		if err := l.apply(cfg, secret, path, logger); err != nil {
			return fmt.Errorf("failed to load %s from vault: %w", l.name, err)
		}
	}
	return nil
}

// applyLLMKeyToConfig sets the shared provider key and fills operations
// that have no key of their own
func applyLLMKeyToConfig(cfg *Config, key string) {
	cfg.AI.APIKey = key
	for _, op := range []*OperationAIConfig{&cfg.AI.JobAd, &cfg.AI.Interview, &cfg.AI.Suggest} {
		if op.APIKey == "" {
			op.APIKey = key
		}
	}
}

// loadTLSCertificateContent copies the PEM entries and returns how many were set
func loadTLSCertificateContent(cfg *Config, secret *VaultSecret, logger *errors.Logger) int {
	n := 0
	for key, target := range map[string]*string{
		"cert": &cfg.Server.TLS.CertContent,
		"key":  &cfg.Server.TLS.KeyContent,
	} {
		if content, ok := secret.Data[key].(string); ok && content != "" {
			*target = content
			logger.Debug("TLS entry loaded from Vault", "entry", key, "content_length", len(content))
			n++
		}
	}
	return n
}

// validateTLSDeprecatedFields rejects file paths stored where PEM content belongs
func validateTLSDeprecatedFields(secret *VaultSecret) error {
	for _, field := range []string{"cert_file", "key_file"} {
		if _, ok := secret.Data[field]; ok {
			return fmt.Errorf("vault TLS configuration error: '%s' field is no longer supported. Store certificate content in '%s' field instead",
				field, strings.TrimSuffix(field, "_file"))
		}
	}
	return nil
}
