package config

import (
	"fmt"
	"go/types"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	supportconfig "github.com/stellar/go/support/config"
)

// Options returns the ConfigOptions binding cfg's fields to flags, env vars,
// and a toml file, exactly the pattern cmd/soroban-rpc/config.go uses for
// its own LocalConfig.
func Options(cfg *Config) supportconfig.ConfigOptions {
	return supportconfig.ConfigOptions{
		{
			Name:        "db-path",
			Usage:       "SQLite path backing the ledger entry store",
			OptType:     types.String,
			ConfigKey:   &cfg.SQLiteDBPath,
			FlagDefault: "ledgerclose.sqlite",
			Required:    false,
		},
		{
			Name:        "network-passphrase",
			Usage:       "Network passphrase the transaction sets being applied belong to",
			OptType:     types.String,
			ConfigKey:   &cfg.NetworkPassphrase,
			Required:    true,
		},
		{
			Name:        "max-operations-per-ledger",
			Usage:       "Operations-per-ledger bound, validated to be positive (the close path takes its surge-pricing limit from the ledger header)",
			OptType:     types.Int,
			ConfigKey:   &cfg.MaxOperationsPerLedger,
			FlagDefault: 1000,
			Required:    false,
		},
		{
			Name:        "metrics-namespace",
			Usage:       "Prometheus namespace prefixing every metric this process registers",
			OptType:     types.String,
			ConfigKey:   &cfg.MetricsNamespace,
			FlagDefault: "ledgerclose",
			Required:    false,
		},
		{
			Name:        "metrics-addr",
			Usage:       "listen address for the /metrics Prometheus endpoint",
			OptType:     types.String,
			ConfigKey:   &cfg.MetricsAddr,
			FlagDefault: "localhost:6061",
			Required:    false,
		},
		{
			Name:        "close-timeout-seconds",
			Usage:       "Close timeout in seconds (stored in the config; not applied to CloseLedger calls)",
			OptType:     types.Uint,
			FlagDefault: uint(30),
			Required:    false,
			CustomSetValue: func(co *supportconfig.ConfigOption) error {
				cfg.CloseTimeout = time.Duration(viper.GetInt(co.Name)) * time.Second
				return nil
			},
		},
		{
			Name:        "log-level",
			Usage:       "minimum log severity (debug, info, warn, error) to log",
			OptType:     types.String,
			ConfigKey:   &cfg.LogLevel,
			FlagDefault: "info",
			CustomSetValue: func(co *supportconfig.ConfigOption) error {
				ll, err := logrus.ParseLevel(viper.GetString(co.Name))
				if err != nil {
					return fmt.Errorf("could not parse log-level: %v", viper.GetString(co.Name))
				}
				*(co.ConfigKey.(*logrus.Level)) = ll
				return nil
			},
		},
		{
			Name:        "log-format",
			Usage:       "format used for output logs (json or text)",
			OptType:     types.String,
			FlagDefault: "text",
			Required:    false,
			ConfigKey:   &cfg.LogFormat,
			CustomSetValue: func(co *supportconfig.ConfigOption) error {
				switch viper.GetString(co.Name) {
				case "text":
					*(co.ConfigKey.(*LogFormat)) = LogFormatText
				case "json":
					*(co.ConfigKey.(*LogFormat)) = LogFormatJSON
				default:
					return fmt.Errorf("invalid log-format: %v", viper.GetString(co.Name))
				}
				return nil
			},
		},
	}
}
