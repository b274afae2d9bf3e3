// Package config declares ledgerclose's runtime configuration, bound to
// flags/env/toml the same way a cobra/viper daemon command typically does:
// one struct of typed fields, populated through
// github.com/stellar/go/support/config's ConfigOptions rather than a
// hand-rolled flag parser.
package config

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go/support/errors"
)

// Config holds everything a ledgerclose node needs to run a close loop
// against its own SQLite-backed ledger state. Its one network setting is
// MetricsAddr, the /metrics listen address; network transport and
// JSON/HTTP APIs are out of scope.
type Config struct {
	// SQLiteDBPath is where internal/store keeps ledger entries.
	SQLiteDBPath string

	// NetworkPassphrase disambiguates which network's transactions this
	// instance is willing to apply. Carried even though consensus/overlay
	// are out of scope, since a misconfigured passphrase is a footgun
	// worth keeping validated even in a library-only core.
	NetworkPassphrase string

	// MaxOperationsPerLedger is validated to be positive. It is not passed
	// to internal/closemgr: SurgePricingFilter's limit there comes from the
	// previous header's MaxTxSetSize or a max-tx-set-size upgrade.
	MaxOperationsPerLedger int

	// MetricsNamespace prefixes every Prometheus metric this process
	// registers (internal/metrics, internal/floodgate).
	MetricsNamespace string

	// MetricsAddr is the listen address for the /metrics HTTP endpoint —
	// the only network surface this core exposes, since overlay/RPC are
	// out of scope.
	MetricsAddr string

	LogLevel  logrus.Level
	LogFormat LogFormat

	// CloseTimeout is parsed from close-timeout-seconds. Nothing in this
	// module applies it to a CloseLedger call.
	CloseTimeout time.Duration
}

// LogFormat names logrus's text or JSON formatter. It is parsed and
// validated by Options; cmd/ledgerclose does not apply it to its logger.
type LogFormat int

const (
	LogFormatText LogFormat = iota
	LogFormatJSON
)

// Validate enforces the invariants Options.SetValues can't express through
// per-option CustomSetValue/Validate hooks alone.
func (c Config) Validate() error {
	if c.MaxOperationsPerLedger <= 0 {
		return errors.New("max-operations-per-ledger must be positive")
	}
	if c.NetworkPassphrase == "" {
		return errors.New("network-passphrase is required")
	}
	return nil
}
