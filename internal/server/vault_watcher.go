package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"vacalyser/internal/config"
	"vacalyser/internal/errors"
)

// VaultClientInterface defines the interface for Vault operations
type VaultClientInterface interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
	GetStringSecret(path, key string) (string, error)
	GetStringSliceSecret(path, key string) ([]string, error)
}

// APIKeysCallback receives the key list of a new secret version
type APIKeysCallback func(keys []string, err error)

// VaultWatcher polls the API key secret in Vault and hands rotated keys to a
// callback when the KVv2 version moves forward
type VaultWatcher struct {
	mu sync.RWMutex

	client       VaultClientInterface
	secretPath   string
	pollInterval time.Duration
	onRotate     APIKeysCallback
	logger       *errors.Logger

	stopChan    chan struct{}
	loopDone    chan struct{}
	running     bool
	lastVersion int64
}

// NewVaultWatcher creates a new VaultWatcher
func NewVaultWatcher(client VaultClientInterface, secretPath string, pollInterval time.Duration, onRotate APIKeysCallback, logger *errors.Logger) *VaultWatcher {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}
	return &VaultWatcher{
		client:       client,
		secretPath:   secretPath,
		pollInterval: pollInterval,
		onRotate:     onRotate,
		logger:       logger,
		stopChan:     make(chan struct{}),
		loopDone:     make(chan struct{}),
	}
}

// Start records the current secret version and begins polling
func (vw *VaultWatcher) Start() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if vw.running {
		return fmt.Errorf("vault watcher is already running")
	}
	if secret, err := vw.client.GetSecretV2(vw.secretPath); err == nil && secret != nil {
		vw.lastVersion = secret.Version
	}
	vw.running = true
	go vw.pollLoop()
	vw.logger.Info("Vault watcher started", "secret_path", vw.secretPath, "poll_interval", vw.pollInterval)
	return nil
}

// Stop stops the Vault watcher and waits for the poll loop to exit
func (vw *VaultWatcher) Stop() error {
	vw.mu.Lock()
	if !vw.running {
		vw.mu.Unlock()
		return nil
	}
	close(vw.stopChan)
	vw.running = false
	vw.mu.Unlock()

	<-vw.loopDone
	vw.logger.Info("Vault watcher stopped")
	return nil
}

func (vw *VaultWatcher) pollLoop() {
	defer close(vw.loopDone)
	ticker := time.NewTicker(vw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			vw.poll()
		case <-vw.stopChan:
			return
		}
	}
}

// poll runs one version check and notifies on a new version
func (vw *VaultWatcher) poll() {
	secret, changed, err := vw.checkForUpdates()
	if err != nil {
		vw.logger.LogError(err, "Failed to check Vault for updates")
		return
	}
	if !changed {
		return
	}

	vw.logger.Info("Vault secret changed, applying new API keys", "version", secret.Version)
	keys, err := apiKeysFromSecret(secret)
	vw.onRotate(keys, err)
}

// checkForUpdates checks if the Vault secret version has changed
func (vw *VaultWatcher) checkForUpdates() (*config.VaultSecret, bool, error) {
	secret, err := vw.client.GetSecretV2(vw.secretPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil {
		return nil, false, fmt.Errorf("secret not found at path: %s", vw.secretPath)
	}

	vw.mu.Lock()
	defer vw.mu.Unlock()
	if secret.Version > vw.lastVersion {
		vw.lastVersion = secret.Version
		return secret, true, nil
	}
	return secret, false, nil
}

// apiKeysFromSecret reads the comma-separated "keys" entry
func apiKeysFromSecret(secret *config.VaultSecret) ([]string, error) {
	raw, ok := secret.Data["keys"].(string)
	if !ok {
		return nil, fmt.Errorf("secret has no string 'keys' entry")
	}
	var keys []string
	for k := range strings.SplitSeq(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("secret 'keys' entry is empty")
	}
	return keys, nil
}

// Status returns the current status of the VaultWatcher for health reporting
func (vw *VaultWatcher) Status() map[string]any {
	vw.mu.RLock()
	defer vw.mu.RUnlock()
	return map[string]any{
		"running":       vw.running,
		"poll_interval": vw.pollInterval.String(),
		"secret_path":   vw.secretPath,
		"last_version":  vw.lastVersion,
	}
}
