// Package txset implements TxSetFrame: canonical ordering, content hashing,
// and validity trimming for the set of transactions one ledger close
// applies. Two nodes given the same transaction set must derive the same
// content hash and the same apply order, so every sort here is total and
// free of map-iteration or other nondeterministic Go behavior.
package txset

import (
	"crypto/sha256"
	"sort"

	"github.com/stellar/ledgerclose/internal/ledger"
)

// Operation is an single operation inside a transaction envelope. The core
// does not interpret its Body beyond what ordering and surge pricing need;
// appliers in internal/ops consume the decoded form directly.
type Operation struct {
	Body []byte
}

// Transaction is the minimal transaction envelope the set orders and
// hashes — restoring what the distilled spec leaves out (spec §4.3 refers
// to "transactions" without defining the envelope shape).
type Transaction struct {
	SourceAccount ledger.AccountID
	SeqNum        int64
	Fee           int64
	Operations    []Operation
	Hash          ledger.Hash
}

// AccountSequenceChecker validates a transaction's source-account sequence
// number and authorization against current ledger state. It is the seam
// CheckValid/TrimInvalid call through rather than owning signature
// verification or sequence bookkeeping themselves (out of scope per the
// Non-goals on consensus and peer validation).
type AccountSequenceChecker interface {
	CheckValid(tx Transaction) bool
}

// Frame is TxSetFrame: an unordered bag of transactions plus the
// previous ledger's hash, the seed for the deterministic apply-order
// permutation.
type Frame struct {
	previousLedgerHash ledger.Hash
	transactions       []Transaction
}

// New returns an empty set scoped to the ledger that will close on top of
// previousLedgerHash.
func New(previousLedgerHash ledger.Hash) *Frame {
	return &Frame{previousLedgerHash: previousLedgerHash}
}

// FromWire reconstructs a Frame from a previously serialized transaction
// list, e.g. one received from a peer. The core has no peering layer
// (Non-goals), so this is exercised only by tests and by callers feeding it
// a locally assembled candidate set.
func FromWire(previousLedgerHash ledger.Hash, txs []Transaction) *Frame {
	f := New(previousLedgerHash)
	for _, tx := range txs {
		f.Add(tx)
	}
	return f
}

// PreviousLedgerHash returns the ledger hash the set is anchored to, the
// value internal/closemgr checks against the chain tip before applying it
// (§4.8 step 1).
func (f *Frame) PreviousLedgerHash() ledger.Hash {
	return f.previousLedgerHash
}

// Add appends tx to the set. Order of Add calls has no bearing on
// ContentsHash or SortForApply — both re-derive a canonical order from the
// transaction bodies themselves.
func (f *Frame) Add(tx Transaction) {
	f.transactions = append(f.transactions, tx)
}

// Transactions returns the set's contents in their current order: insertion
// order until SortForHash, ContentsHash or SurgePricingFilter rearranges the
// set in place.
func (f *Frame) Transactions() []Transaction {
	return f.transactions
}

// Len reports how many transactions are in the set.
func (f *Frame) Len() int {
	return len(f.transactions)
}

// SortForHash orders transactions by (source account, sequence number,
// hash) ascending, the total order spec §3 names for sortForHash. This is
// the base order SortForApply shuffles, so two implementations that sort
// by hash alone would derive different apply orders from the same set even
// though ContentsHash (order-independent by construction) would still
// agree.
func (f *Frame) SortForHash() {
	sort.Slice(f.transactions, func(i, j int) bool {
		a, b := f.transactions[i], f.transactions[j]
		if a.SourceAccount != b.SourceAccount {
			return lessAccountID(a.SourceAccount, b.SourceAccount)
		}
		if a.SeqNum != b.SeqNum {
			return a.SeqNum < b.SeqNum
		}
		return lessHash(a.Hash, b.Hash)
	})
}

func lessAccountID(a, b ledger.AccountID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func lessHash(a, b ledger.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// ContentsHash sorts the set with SortForHash and returns SHA-256 over the
// concatenation of every transaction hash in that order — a pure function
// of set membership, not of insertion order.
func (f *Frame) ContentsHash() ledger.Hash {
	f.SortForHash()
	h := sha256.New()
	for _, tx := range f.transactions {
		h.Write(tx.Hash[:])
	}
	var out ledger.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// CheckValid reports whether every transaction in the set passes app's
// sequence/authorization check.
func (f *Frame) CheckValid(app AccountSequenceChecker) bool {
	for _, tx := range f.transactions {
		if !app.CheckValid(tx) {
			return false
		}
	}
	return true
}

// TrimInvalid removes transactions app rejects and returns the ones it
// removed, in their original order — a transaction-level fatal condition
// per spec §7 stratum 2, handled by dropping rather than aborting the
// close.
func (f *Frame) TrimInvalid(app AccountSequenceChecker) []Transaction {
	kept := f.transactions[:0:0]
	var removed []Transaction
	for _, tx := range f.transactions {
		if app.CheckValid(tx) {
			kept = append(kept, tx)
		} else {
			removed = append(removed, tx)
		}
	}
	f.transactions = kept
	return removed
}
