// Package delta implements LedgerDelta, the rollback-capable change journal
// described in spec §4.7/§9: a tree of staging areas where a child's changes
// either merge into its parent on commit or are discarded entirely, with no
// inverse-operation bookkeeping since every store call is buffered up to the
// owning SQL transaction.
package delta

import "github.com/stellar/ledgerclose/internal/ledger"

// changeKind distinguishes the three journal entry kinds a key can carry.
type changeKind int

const (
	kindAdded changeKind = iota
	kindModified
	kindDeleted
)

type change struct {
	kind  changeKind
	key   ledger.LedgerKey
	frame ledger.EntryFrame // nil for deletions
}

// Delta is one node in the rollback tree. The root is constructed with New;
// every transaction, and every operation within a transaction, spawns a
// Child before mutating state and either Commits it (merging upward) or
// simply drops it (discarding the child's journal with no effect on the
// parent).
type Delta struct {
	parent  *Delta
	changes map[string]change
}

// New returns a fresh root delta.
func New() *Delta {
	return &Delta{changes: make(map[string]change)}
}

// Child spawns a staging delta whose eventual Commit merges into d.
func (d *Delta) Child() *Delta {
	return &Delta{parent: d, changes: make(map[string]change)}
}

// AddEntry journals the addition of frame.
func (d *Delta) AddEntry(frame ledger.EntryFrame) {
	d.changes[frame.Key().CacheKey()] = change{kind: kindAdded, key: frame.Key(), frame: frame}
}

// ModEntry journals the modification of frame.
func (d *Delta) ModEntry(frame ledger.EntryFrame) {
	d.changes[frame.Key().CacheKey()] = change{kind: kindModified, key: frame.Key(), frame: frame}
}

// DeleteEntry journals the deletion of key.
func (d *Delta) DeleteEntry(key ledger.LedgerKey) {
	d.changes[key.CacheKey()] = change{kind: kindDeleted, key: key}
}

// Commit merges d's journal into its parent: added ∪ modified ∪ deleted,
// with deleted dominating any prior add/modify for the same key (since a
// key added then deleted within the same delta never existed as far as the
// parent is concerned... except the parent must still know to delete it if
// *it* had the key from an earlier ancestor; we keep the deletion entry
// either way, the store layer treats "delete a key that was never added" as
// a no-op outside of the root transaction).
func (d *Delta) Commit() {
	if d.parent == nil {
		return
	}
	for k, c := range d.changes {
		d.parent.changes[k] = c
	}
}

// Keys returns every key touched by this delta, for diagnostics and tests.
func (d *Delta) Keys() []ledger.LedgerKey {
	out := make([]ledger.LedgerKey, 0, len(d.changes))
	for _, c := range d.changes {
		out = append(out, c.key)
	}
	return out
}

// Added returns the frames journaled as additions.
func (d *Delta) Added() []ledger.EntryFrame {
	return framesOfKind(d, kindAdded)
}

// Modified returns the frames journaled as modifications.
func (d *Delta) Modified() []ledger.EntryFrame {
	return framesOfKind(d, kindModified)
}

// Deleted returns the keys journaled as deletions.
func (d *Delta) Deleted() []ledger.LedgerKey {
	var out []ledger.LedgerKey
	for _, c := range d.changes {
		if c.kind == kindDeleted {
			out = append(out, c.key)
		}
	}
	return out
}

func framesOfKind(d *Delta, kind changeKind) []ledger.EntryFrame {
	var out []ledger.EntryFrame
	for _, c := range d.changes {
		if c.kind == kind {
			out = append(out, c.frame)
		}
	}
	return out
}
