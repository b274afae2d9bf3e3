package closemgr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stellar/go/support/errors"
	"github.com/stellar/go/support/log"
	"go.uber.org/multierr"

	"github.com/stellar/ledgerclose/internal/delta"
	"github.com/stellar/ledgerclose/internal/floodgate"
	"github.com/stellar/ledgerclose/internal/ledger"
	"github.com/stellar/ledgerclose/internal/metrics"
	"github.com/stellar/ledgerclose/internal/ops"
	"github.com/stellar/ledgerclose/internal/store"
	"github.com/stellar/ledgerclose/internal/txset"
)

// ErrPreviousLedgerMismatch is returned when a CloseData's tx set is
// anchored to a hash other than the chain tip's (§4.8 step 1).
var ErrPreviousLedgerMismatch = errors.New("closemgr: previous ledger hash mismatch")

// ErrOutOfOrderLedger is returned when LedgerSeq does not immediately
// follow the chain tip.
var ErrOutOfOrderLedger = errors.New("closemgr: ledger sequence out of order")

// Manager is LedgerManager: the sole actor driving a ledger close, per
// spec §5's single-threaded scheduling model. mu enforces that in Go terms
// — CloseLedger is not reentrant and must not be called concurrently with
// itself.
type Manager struct {
	mu sync.Mutex

	store     *store.Store
	gate      *floodgate.Gate
	metrics   *metrics.Metrics
	logger    *log.Entry
	ids       ops.IDGenerator
	listeners []CloseListener
}

// New builds a Manager. metrics and gate may be nil (a node run without
// Prometheus or flooding wired up still closes ledgers correctly).
func New(s *store.Store, gate *floodgate.Gate, m *metrics.Metrics, logger *log.Entry, ids ops.IDGenerator) *Manager {
	return &Manager{store: s, gate: gate, metrics: m, logger: logger, ids: ids}
}

// AddCloseListener registers l to be notified after every future successful
// close.
func (mgr *Manager) AddCloseListener(l CloseListener) {
	mgr.listeners = append(mgr.listeners, l)
}

// sequenceChecker implements txset.AccountSequenceChecker against one root
// transaction's account repo: a transaction is valid if its source account
// exists and its SeqNum is exactly one past the account's stored sequence
// number, the same check TransactionFrame::checkValid performs before
// consensus-level validation (out of scope here).
type sequenceChecker struct {
	tx *store.Tx
}

func (c sequenceChecker) CheckValid(tx txset.Transaction) bool {
	frame, ok, err := c.tx.Accounts.Load(ledger.AccountKey(tx.SourceAccount))
	if err != nil || !ok {
		return false
	}
	return tx.SeqNum == frame.Account().SeqNum+1
}

// CloseLedger drives one close to completion: validate the tx set, apply
// every surviving transaction's operations, apply upgrades, finalize and
// persist the new header, and clear the floodgate — spec §4.8's seven
// steps. Steps 1–6 run inside one SQL transaction, so step 6's "commit
// root delta atomically" is literally Store.WithTx's commit; step 7 runs
// after that commit.
func (mgr *Manager) CloseLedger(ctx context.Context, data CloseData) (Header, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	start := time.Now()
	var newHeader Header
	var newHash ledger.Hash

	err := mgr.store.WithTx(ctx, func(tx *store.Tx) error {
		prevHeader, prevHash, exists, err := tx.Headers.Latest()
		if err != nil {
			return errors.Wrap(err, "loading chain tip")
		}
		if exists && data.LedgerSeq != prevHeader.LedgerSeq+1 {
			return ErrOutOfOrderLedger
		}
		if data.TxSet.PreviousLedgerHash() != prevHash {
			return ErrPreviousLedgerMismatch
		}

		// Step 2: trim invalid transactions, then surge-price the rest.
		checker := sequenceChecker{tx: tx}
		removed := data.TxSet.TrimInvalid(checker)
		if mgr.logger != nil && len(removed) > 0 {
			mgr.logger.WithField("ledger_seq", data.LedgerSeq).WithField("removed", len(removed)).
				Info("closemgr: trimmed invalid transactions")
		}
		maxOps := 0
		for _, u := range data.ConsensusValue.Upgrades {
			if u.Type == UpgradeMaxTxSetSize {
				maxOps = int(u.NewMaxTxSetSize)
			}
		}
		if maxOps == 0 {
			maxOps = int(prevHeader.MaxTxSetSize)
		}
		if maxOps > 0 {
			data.TxSet.SurgePricingFilter(maxOps)
		}

		// Step 3: apply every surviving transaction, in deterministic order.
		rootDelta := delta.New()
		appliedOps := 0
		for txIndex, transaction := range data.TxSet.SortForApply() {
			if err := mgr.applyTransaction(tx, rootDelta, transaction, txIndex); err != nil {
				return err
			}
			appliedOps += len(transaction.Operations)
		}

		// Step 4: apply consensus-value upgrades onto the previous header's
		// fee parameters.
		newHeader = Header{
			LedgerSeq:    data.LedgerSeq,
			PreviousHash: prevHash,
			TxSetHash:    data.TxSet.ContentsHash(),
			CloseTime:    data.ConsensusValue.CloseTime,
			BaseFee:      prevHeader.BaseFee,
			MaxTxSetSize: prevHeader.MaxTxSetSize,
			BaseReserve:  prevHeader.BaseReserve,
		}
		for _, u := range data.ConsensusValue.Upgrades {
			switch u.Type {
			case UpgradeBaseFee:
				newHeader.BaseFee = u.NewBaseFee
			case UpgradeMaxTxSetSize:
				newHeader.MaxTxSetSize = u.NewMaxTxSetSize
			case UpgradeReserve:
				newHeader.BaseReserve = u.NewReserve
			}
		}
		if newHeader.BaseFee == 0 {
			newHeader.BaseFee = 100
		}
		if newHeader.MaxTxSetSize == 0 {
			newHeader.MaxTxSetSize = 1000
		}

		// Step 5: finalize the header hash.
		newHash = newHeader.Hash()

		// Step 6: persist the header; Store.WithTx commits the rest of this
		// closure's writes (rootDelta's mutations, already applied eagerly
		// against tx's repos) atomically alongside it.
		if err := tx.Headers.Insert(newHeader, newHash); err != nil {
			return errors.Wrap(err, "persisting header")
		}

		if mgr.metrics != nil {
			mgr.metrics.LatestLedgerMetric.Set(float64(data.LedgerSeq))
			mgr.metrics.TxSetSizeMetric.WithLabelValues("transactions").Set(float64(data.TxSet.Len()))
			mgr.metrics.TxSetSizeMetric.WithLabelValues("operations").Set(float64(appliedOps))
		}
		return nil
	})
	// The root transaction has ended (committed or rolled back): drop every
	// cached snapshot.
	mgr.store.Cache().FlushAll()
	if err != nil {
		if mgr.metrics != nil && errors.Cause(err) == store.ErrStorageInvariantViolation {
			mgr.metrics.StorageInvariantViolationsMetric.Inc()
		}
		return Header{}, err
	}

	if mgr.metrics != nil {
		mgr.metrics.CloseDurationMetric.Observe(time.Since(start).Seconds())
	}

	// Step 7: clear the floodgate and notify listeners, now that the close
	// has durably committed.
	if mgr.gate != nil {
		mgr.gate.ClearBelow(data.LedgerSeq)
	}
	event := CloseEvent{LedgerSeq: data.LedgerSeq, Hash: newHash, BaseFee: newHeader.BaseFee, CloseTime: newHeader.CloseTime}
	var cleanupErr error
	for _, l := range mgr.listeners {
		cleanupErr = multierr.Append(cleanupErr, l.OnClose(event))
	}
	if cleanupErr != nil && mgr.logger != nil {
		mgr.logger.WithError(cleanupErr).Warn("closemgr: close listener cleanup errors (ledger already committed)")
	}

	return newHeader, nil
}

// applyTransaction spawns a child delta for transaction, applies each of
// its operations under a nested SQL savepoint, and either commits the
// child delta into parent or rolls every one of its operations back —
// spec §4.7's "child spawned before each transaction (and before each
// operation within it)", with failure handled at the transaction
// granularity: one failing operation fails the whole transaction, none of
// its effects persist.
func (mgr *Manager) applyTransaction(tx *store.Tx, parent *delta.Delta, transaction txset.Transaction, txIndex int) error {
	txDelta := parent.Child()
	savepoint := fmt.Sprintf("tx_%d", txIndex)
	if err := tx.Savepoint(savepoint); err != nil {
		return errors.Wrap(err, "opening transaction savepoint")
	}

	failed := false
	for opIndex, op := range transaction.Operations {
		opSavepoint := fmt.Sprintf("%s_op_%d", savepoint, opIndex)
		if err := tx.Savepoint(opSavepoint); err != nil {
			return errors.Wrap(err, "opening operation savepoint")
		}
		opDelta := txDelta.Child()

		success, fatalErr := mgr.applyOperation(tx, opDelta, op)
		if fatalErr != nil {
			return fatalErr
		}
		if !success {
			if err := tx.RollbackToSavepoint(opSavepoint); err != nil {
				return errors.Wrap(err, "rolling back operation savepoint")
			}
			failed = true
			break
		}
		if err := tx.ReleaseSavepoint(opSavepoint); err != nil {
			return errors.Wrap(err, "releasing operation savepoint")
		}
		opDelta.Commit()
	}

	if failed {
		if err := tx.RollbackToSavepoint(savepoint); err != nil {
			return errors.Wrap(err, "rolling back transaction savepoint")
		}
		return nil
	}
	if err := tx.ReleaseSavepoint(savepoint); err != nil {
		return errors.Wrap(err, "releasing transaction savepoint")
	}
	txDelta.Commit()
	return nil
}

// applyOperation decodes op and dispatches it to the matching
// internal/ops applier. It returns (true, nil) on an operation-level
// success, (false, nil) on an ordinary operation-level failure (a result
// code short of success — ok for the caller to discard and move on), and
// (_, err) only for a decode failure or a storage-invariant violation,
// both of which must abort the entire close.
func (mgr *Manager) applyOperation(tx *store.Tx, d *delta.Delta, op txset.Operation) (bool, error) {
	opType, err := ops.PeekType(op.Body)
	if err != nil {
		return false, errors.Wrap(err, "decoding operation type")
	}

	var success bool
	var codeString string
	switch opType {
	case ops.OpTypeAllowTrust:
		decoded, err := ops.DecodeAllowTrust(op.Body)
		if err != nil {
			return false, errors.Wrap(err, "decoding AllowTrustOp")
		}
		code, err := ops.AllowTrust(tx, d, decoded)
		if err != nil {
			return false, err
		}
		success = code == ops.AllowTrustSuccess
		codeString = code.String()
	case ops.OpTypePathPayment:
		decoded, err := ops.DecodePathPayment(op.Body)
		if err != nil {
			return false, errors.Wrap(err, "decoding PathPaymentOp")
		}
		result, err := ops.PathPayment(tx, d, mgr.logger, decoded)
		if err != nil {
			return false, err
		}
		success = result.Code == ops.PathPaymentSuccess
		codeString = result.Code.String()
	case ops.OpTypeManageOffer:
		decoded, err := ops.DecodeManageOffer(op.Body)
		if err != nil {
			return false, errors.Wrap(err, "decoding ManageOfferOp")
		}
		result, err := ops.ManageOffer(tx, d, mgr.logger, mgr.ids, decoded)
		if err != nil {
			return false, err
		}
		success = result.Code == ops.ManageOfferSuccess
		codeString = result.Code.String()
	default:
		return false, errors.New("closemgr: unknown operation type")
	}

	if mgr.metrics != nil {
		mgr.metrics.OperationResultsMetric.WithLabelValues(opType.String(), codeString).Inc()
	}
	return success, nil
}
