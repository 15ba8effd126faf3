// Package vault loads exchange API credentials from HashiCorp Vault. The
// Vault address and token default to the VAULT_ADDR/VAULT_TOKEN environment
// variables; credentials themselves are only read from Vault. Adapted from the teacher's
// pkg/vault/client.go: rewritten onto logrus (the teacher used the plain
// log package here, inconsistently with the rest of the codebase) and
// narrowed to the single credential shape this repository needs.
package vault

import (
	"fmt"
	"os"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/sirupsen/logrus"
)

// Client wraps the Vault API client.
type Client struct {
	client *vaultapi.Client
	log    *logrus.Entry
}

// Config holds Vault connection configuration.
type Config struct {
	Address string
	Token   string
}

// Credentials is an exchange's API key pair as stored in Vault.
type Credentials struct {
	APIKey    string
	APISecret string
}

// NewClient creates a Vault client, defaulting Address/Token from the
// VAULT_ADDR/VAULT_TOKEN environment variables, and verifies the server is
// reachable and unsealed before returning.
func NewClient(config Config, log *logrus.Entry) (*Client, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "vault")

	if config.Address == "" {
		config.Address = os.Getenv("VAULT_ADDR")
		if config.Address == "" {
			config.Address = "http://localhost:8200"
		}
	}
	if config.Token == "" {
		config.Token = os.Getenv("VAULT_TOKEN")
	}

	vaultConfig := vaultapi.DefaultConfig()
	vaultConfig.Address = config.Address

	client, err := vaultapi.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("vault: create client: %w", err)
	}
	client.SetToken(config.Token)

	health, err := client.Sys().Health()
	if err != nil {
		return nil, fmt.Errorf("vault: health check: %w", err)
	}
	if health.Sealed {
		return nil, fmt.Errorf("vault: sealed")
	}

	log.WithField("address", config.Address).Info("connected to vault")
	return &Client{client: client, log: log}, nil
}

// StoreExchangeKeys writes an API key pair at path.
func (c *Client) StoreExchangeKeys(path string, creds Credentials) error {
	data := map[string]interface{}{
		"data": map[string]interface{}{
			"api_key":    creds.APIKey,
			"api_secret": creds.APISecret,
		},
	}
	if _, err := c.client.Logical().Write(path, data); err != nil {
		return fmt.Errorf("vault: store keys at %s: %w", path, err)
	}
	c.log.WithField("path", path).Info("stored exchange keys")
	return nil
}

// GetExchangeKeys reads the API key pair stored at path (a KV v2 data path,
// e.g. "secret/data/exchanges/binance").
func (c *Client) GetExchangeKeys(path string) (Credentials, error) {
	secret, err := c.client.Logical().Read(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("vault: read keys at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return Credentials{}, fmt.Errorf("vault: no keys found at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return Credentials{}, fmt.Errorf("vault: unexpected secret format at %s", path)
	}

	apiKey, _ := data["api_key"].(string)
	apiSecret, _ := data["api_secret"].(string)
	if apiKey == "" || apiSecret == "" {
		return Credentials{}, fmt.Errorf("vault: incomplete credentials at %s", path)
	}
	return Credentials{APIKey: apiKey, APISecret: apiSecret}, nil
}

// DeleteExchangeKeys deletes the secret at path (for a KV v2 data path, its
// latest version; the metadata is kept).
func (c *Client) DeleteExchangeKeys(path string) error {
	if _, err := c.client.Logical().Delete(path); err != nil {
		return fmt.Errorf("vault: delete keys at %s: %w", path, err)
	}
	c.log.WithField("path", path).Info("deleted exchange keys")
	return nil
}

// EnableKV2 enables the KV v2 secret engine at the "secret/" mount if it
// isn't already enabled.
func (c *Client) EnableKV2() error {
	mounts, err := c.client.Sys().ListMounts()
	if err != nil {
		return fmt.Errorf("vault: list mounts: %w", err)
	}
	if _, ok := mounts["secret/"]; ok {
		c.log.Debug("kv v2 secret engine already enabled")
		return nil
	}
	if err := c.client.Sys().Mount("secret", &vaultapi.MountInput{Type: "kv-v2"}); err != nil {
		return fmt.Errorf("vault: enable kv v2: %w", err)
	}
	c.log.Info("enabled kv v2 secret engine")
	return nil
}
