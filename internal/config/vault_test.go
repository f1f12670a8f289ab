package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vacalyser/internal/errors"
)

func newTestLogger() *errors.Logger {
	return errors.NewDiscardLogger()
}

type fakeSecrets map[string]*VaultSecret

func (f fakeSecrets) GetSecretV2(path string) (*VaultSecret, error) {
	s, ok := f[path]
	if !ok {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}
	return s, nil
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    int64
		expectError bool
	}{
		{name: "int64 value", input: int64(42), expected: 42},
		{name: "float64 value", input: float64(42.0), expected: 42},
		{name: "json number", input: json.Number("7"), expected: 7},
		{name: "string value", input: "42", expected: 42},
		{name: "invalid json number", input: json.Number("x"), expectError: true},
		{name: "invalid string value", input: "not-a-number", expectError: true},
		{name: "unsupported type", input: []string{"42"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, "secret/data/test")

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestApplyLLMKeyToConfig(t *testing.T) {
	cfg := &Config{
		AI: AIConfig{
			JobAd: OperationAIConfig{APIKey: "existing-job-ad-key"},
		},
	}

	applyLLMKeyToConfig(cfg, "vault-key")

	assert.Equal(t, "vault-key", cfg.AI.APIKey)
	assert.Equal(t, "existing-job-ad-key", cfg.AI.JobAd.APIKey)
	assert.Equal(t, "vault-key", cfg.AI.Interview.APIKey)
	assert.Equal(t, "vault-key", cfg.AI.Suggest.APIKey)
}

func TestLoadTLSCertificateContent(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]any
		expected int
		cert     string
	}{
		{"both entries", map[string]any{"cert": "cert-content", "key": "key-content"}, 2, "cert-content"},
		{"empty content", map[string]any{"cert": ""}, 0, ""},
		{"missing entries", map[string]any{"other": "value"}, 0, ""},
		{"non-string value", map[string]any{"cert": 123, "key": "k"}, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			n := loadTLSCertificateContent(cfg, &VaultSecret{Data: tt.data}, newTestLogger())
			assert.Equal(t, tt.expected, n)
			assert.Equal(t, tt.cert, cfg.Server.TLS.CertContent)
		})
	}
}

func TestValidateTLSDeprecatedFields(t *testing.T) {
	assert.NoError(t, validateTLSDeprecatedFields(&VaultSecret{Data: map[string]any{"cert": "x"}}))

	err := validateTLSDeprecatedFields(&VaultSecret{Data: map[string]any{"cert_file": "/tmp/cert.pem"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'cert_file' field is no longer supported")
}

func TestResolveVaultToken(t *testing.T) {
	logger := newTestLogger()

	t.Run("token from config", func(t *testing.T) {
		token, err := resolveVaultToken(VaultConfig{Token: "direct-token"}, logger)
		require.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("token from file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "vault-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token  \n"), 0600))

		token, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile}, logger)
		require.NoError(t, err)
		assert.Equal(t, "file-token", token)
	})

	t.Run("missing token file", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{TokenFile: "/nonexistent/token/file"}, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read vault token file")
	})

	t.Run("no token provided", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{}, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "vault token is required")
	})
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	cfg := &Config{Server: ServerConfig{APIKeys: []string{"local"}}}

	require.NoError(t, ApplyVaultSecrets(cfg, nil))
	assert.Equal(t, []string{"local"}, cfg.Server.APIKeys)
}

func TestApplySecrets(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{APIKeys: []string{"local"}},
		Vault: VaultConfig{Secrets: VaultSecrets{
			APIKeys:   "secret/data/api",
			LLMKey:    "secret/data/llm",
			JWTSecret: "secret/data/jwt",
			TLSCerts:  "secret/data/tls",
		}},
	}
	secrets := fakeSecrets{
		"secret/data/api": {Data: map[string]any{"keys": "k1, k2"}},
		"secret/data/llm": {Data: map[string]any{"api_key": "sk-1234567890"}},
		"secret/data/jwt": {Data: map[string]any{"secret": "signing"}},
		"secret/data/tls": {Data: map[string]any{"cert": "C", "key": "K"}},
	}

	require.NoError(t, applySecrets(secrets, cfg, newTestLogger()))
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.Equal(t, "sk-1234567890", cfg.AI.APIKey)
	assert.Equal(t, "signing", cfg.Server.JWTSecret)
	assert.Equal(t, "C", cfg.Server.TLS.CertContent)
	assert.Equal(t, "K", cfg.Server.TLS.KeyContent)
}

func TestApplySecretsErrors(t *testing.T) {
	tests := []struct {
		name    string
		secrets VaultSecrets
		store   fakeSecrets
		wantErr string
	}{
		{
			name:    "missing secret",
			secrets: VaultSecrets{JWTSecret: "secret/data/jwt"},
			store:   fakeSecrets{},
			wantErr: "failed to load JWT secret from vault",
		},
		{
			name:    "missing entry",
			secrets: VaultSecrets{APIKeys: "secret/data/api"},
			store:   fakeSecrets{"secret/data/api": {Data: map[string]any{"other": "x"}}},
			wantErr: "key 'keys' not found",
		},
		{
			name:    "deprecated tls field",
			secrets: VaultSecrets{TLSCerts: "secret/data/tls"},
			store:   fakeSecrets{"secret/data/tls": {Data: map[string]any{"key_file": "/k.pem"}}},
			wantErr: "'key_file' field is no longer supported",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Vault: VaultConfig{Secrets: tt.secrets}}
			err := applySecrets(tt.store, cfg, newTestLogger())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeKVv2(t *testing.T) {
	raw := &api.Secret{Data: map[string]any{
		"data":     map[string]any{"keys": "a,b"},
		"metadata": map[string]any{"version": json.Number("3")},
	}}

	secret, err := decodeKVv2(raw, "secret/data/api")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"keys": "a,b"}, secret.Data)
	assert.Equal(t, int64(3), secret.Version)

	_, err = decodeKVv2(&api.Secret{Data: map[string]any{"data": "not-a-map"}}, "p")
	assert.Error(t, err)
	_, err = decodeKVv2(&api.Secret{Data: map[string]any{
		"data":     map[string]any{},
		"metadata": map[string]any{},
	}}, "p")
	assert.Error(t, err)
}

func TestSplitKeysAndMask(t *testing.T) {
	assert.Equal(t, []string{}, splitKeys("  "))
	assert.Equal(t, []string{"a", "b"}, splitKeys("a , b"))
	assert.Equal(t, []string{"a", "b"}, splitKeys("a,,b, "))
	assert.Equal(t, "sk-1****7890", maskSecret("sk-1234567890"))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "", maskSecret(""))
}

func TestGetSecretV2NilClient(t *testing.T) {
	var vc *VaultClient
	_, err := vc.GetSecretV2("secret/data/api")
	assert.EqualError(t, err, "vault client not initialized")
}
