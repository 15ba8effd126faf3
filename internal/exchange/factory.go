// Package exchange wires together configuration (spf13/viper), secrets
// (HashiCorp Vault via pkg/vault), and the concrete Binance spot adapter into
// a ready-to-use executor.Exchange. Grounded on the teacher's
// internal/exchange/factory.go (dotted viper key convention) generalized
// from a multi-exchange switch statement down to this repository's single
// supported venue.
package exchange

import (
	"fmt"

	"github.com/mExOms/rebalancer/internal/exchange/binancespot"
	"github.com/mExOms/rebalancer/internal/rebalance/executor"
	"github.com/mExOms/rebalancer/pkg/vault"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the resolved configuration needed to build the exchange adapter.
type Config struct {
	TestNet       bool
	APIKey        string
	APISecret     string
	VaultEnabled  bool
	VaultKeyPath  string // e.g. "secret/data/exchanges/binance"
}

// LoadConfig reads dotted viper keys under "exchanges.binance.*", matching
// the teacher's fmt.Sprintf("exchanges.%s.test_net", ...) convention.
func LoadConfig() Config {
	return Config{
		TestNet:      viper.GetBool("exchanges.binance.test_net"),
		VaultEnabled: viper.GetBool("exchanges.binance.vault_enabled"),
		VaultKeyPath: viper.GetString("exchanges.binance.vault_key_path"),
		APIKey:       viper.GetString("exchanges.binance.api_key"),
		APISecret:    viper.GetString("exchanges.binance.api_secret"),
	}
}

// BuildExchange resolves credentials (from Vault when VaultEnabled is set, a
// Vault failure being returned as an error; otherwise the config values
// already on Config) and returns the Binance spot adapter as an
// executor.Exchange.
func BuildExchange(cfg Config, log *logrus.Entry) (executor.Exchange, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	apiKey, apiSecret := cfg.APIKey, cfg.APISecret
	if cfg.VaultEnabled {
		client, err := vault.NewClient(vault.Config{}, log)
		if err != nil {
			return nil, fmt.Errorf("exchange: vault client: %w", err)
		}
		keys, err := client.GetExchangeKeys(cfg.VaultKeyPath)
		if err != nil {
			return nil, fmt.Errorf("exchange: load keys from vault: %w", err)
		}
		apiKey, apiSecret = keys.APIKey, keys.APISecret
	}

	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("exchange: no API credentials resolved (vault_enabled=%v)", cfg.VaultEnabled)
	}

	return binancespot.New(apiKey, apiSecret, cfg.TestNet, log), nil
}
