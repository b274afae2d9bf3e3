package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRejectsZeroMaxOperations(t *testing.T) {
	cfg := Config{NetworkPassphrase: "Test SDF Network ; September 2015"}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateRejectsMissingPassphrase(t *testing.T) {
	cfg := Config{MaxOperationsPerLedger: 100}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := Config{
		MaxOperationsPerLedger: 100,
		NetworkPassphrase:      "Test SDF Network ; September 2015",
	}
	assert.NoError(t, cfg.Validate())
}
