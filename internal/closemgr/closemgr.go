// Package closemgr implements LedgerManager: the coordinator that drives
// one ledger close end to end, validating a transaction set, applying its
// operations, and persisting the resulting header.
package closemgr

import (
	"github.com/stellar/ledgerclose/internal/ledger"
	"github.com/stellar/ledgerclose/internal/txset"
)

// Header is LedgerHeader, kept in internal/ledger since internal/store
// persists it independently of this package.
type Header = ledger.Header

// UpgradeType tags which single header field a consensus-driven upgrade
// changes.
type UpgradeType int32

const (
	UpgradeBaseFee UpgradeType = iota
	UpgradeMaxTxSetSize
	UpgradeReserve
)

func (t UpgradeType) String() string {
	switch t {
	case UpgradeBaseFee:
		return "LEDGER_UPGRADE_BASE_FEE"
	case UpgradeMaxTxSetSize:
		return "LEDGER_UPGRADE_MAX_TX_SET_SIZE"
	case UpgradeReserve:
		return "LEDGER_UPGRADE_RESERVE"
	default:
		return "LEDGER_UPGRADE_UNKNOWN"
	}
}

// Upgrade is one consensus-value upgrade instruction, the carrier type for
// the ledger upgrades a StellarValue would otherwise reference by a bare
// name like LEDGER_UPGRADE_BASE_FEE. Only the field matching Type is
// meaningful; the others are ignored.
type Upgrade struct {
	Type            UpgradeType
	NewBaseFee      uint32
	NewMaxTxSetSize uint32
	NewReserve      int64
}

// ConsensusValue is the externally agreed close time and upgrade set every
// replica applies identically — the parts of StellarValue this core's
// Non-goals (consensus/SCP) leave for a caller to supply.
type ConsensusValue struct {
	CloseTime int64
	Upgrades  []Upgrade
}

// CloseData is LedgerCloseData: everything one CloseLedger call needs.
type CloseData struct {
	LedgerSeq      uint32
	TxSet          *txset.Frame
	ConsensusValue ConsensusValue
}

// CloseEvent is published once a close has committed, carrying what a
// flooding/metrics listener needs without re-reading the header back out of
// storage.
type CloseEvent struct {
	LedgerSeq uint32
	Hash      ledger.Hash
	BaseFee   uint32
	CloseTime int64
}

// CloseListener is notified, in registration order, after a successful
// close's root transaction has committed. An error returned from OnClose
// is a cleanup-step failure (e.g. a downstream archiver couldn't be
// reached) — logged and aggregated, never capable of unwinding a close
// that has already durably committed.
type CloseListener interface {
	OnClose(CloseEvent) error
}

// CloseListenerFunc adapts a plain function to CloseListener.
type CloseListenerFunc func(CloseEvent) error

func (f CloseListenerFunc) OnClose(e CloseEvent) error { return f(e) }
